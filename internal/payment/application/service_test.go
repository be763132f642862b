package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkout "github.com/salehm/coaching-store/internal/checkout/domain"
	"github.com/salehm/coaching-store/internal/payment/domain"
)

type fakeGateway struct {
	created  []CreatePayment
	payments map[string]domain.Payment
	fetchErr error
}

func (f *fakeGateway) CreatePayment(_ context.Context, req CreatePayment) (domain.Payment, error) {
	f.created = append(f.created, req)
	return domain.Payment{ID: "pay_1", Status: domain.StatusInitiated, Amount: req.Amount,
		Currency: req.Currency, OrderID: req.OrderID, TransactionURL: "https://gateway.example/pay_1"}, nil
}

func (f *fakeGateway) FetchPayment(_ context.Context, id string) (domain.Payment, error) {
	if f.fetchErr != nil {
		return domain.Payment{}, f.fetchErr
	}
	return f.payments[id], nil
}

type fakeLedger struct {
	orders     map[string]checkout.Order
	markPaid   []string
	markPaidTx []string
	markErr    error
}

func (f *fakeLedger) Order(_ context.Context, id string) (checkout.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return checkout.Order{}, checkout.ErrOrderNotFound
}

func (f *fakeLedger) MarkPaid(_ context.Context, orderID, transactionID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.markPaid = append(f.markPaid, orderID)
	f.markPaidTx = append(f.markPaidTx, transactionID)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateSession_UsesPersistedTotal(t *testing.T) {
	gw := &fakeGateway{}
	ledger := &fakeLedger{orders: map[string]checkout.Order{
		"o-1": {ID: "o-1", OrderNumber: "ORD-1", Total: 23200},
	}}
	s := NewService(discard(), gw, ledger)

	p, err := s.CreateSession(context.Background(), "o-1", "https://store.example/confirm")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)

	require.Len(t, gw.created, 1)
	assert.Equal(t, int64(23200), gw.created[0].Amount)
	assert.Equal(t, "SAR", gw.created[0].Currency)
	assert.Equal(t, "o-1", gw.created[0].OrderID)
	assert.Equal(t, "Order ORD-1", gw.created[0].Description)
}

func TestCreateSession_UnknownOrder(t *testing.T) {
	s := NewService(discard(), &fakeGateway{}, &fakeLedger{orders: map[string]checkout.Order{}})
	_, err := s.CreateSession(context.Background(), "missing", "")
	assert.True(t, errors.Is(err, checkout.ErrOrderNotFound))
}

func TestVerify(t *testing.T) {
	t.Run("paid payment reconciles the order", func(t *testing.T) {
		gw := &fakeGateway{payments: map[string]domain.Payment{
			"pay_1": {ID: "pay_1", Status: domain.StatusPaid, OrderID: "o-1", Amount: 23200},
		}}
		ledger := &fakeLedger{}
		s := NewService(discard(), gw, ledger)

		p, err := s.Verify(context.Background(), "pay_1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, p.Status)
		assert.Equal(t, []string{"o-1"}, ledger.markPaid)
		assert.Equal(t, []string{"pay_1"}, ledger.markPaidTx)
	})

	t.Run("repeat verify calls MarkPaid again, ledger stays idempotent", func(t *testing.T) {
		gw := &fakeGateway{payments: map[string]domain.Payment{
			"pay_1": {ID: "pay_1", Status: domain.StatusPaid, OrderID: "o-1"},
		}}
		ledger := &fakeLedger{}
		s := NewService(discard(), gw, ledger)

		_, err := s.Verify(context.Background(), "pay_1")
		require.NoError(t, err)
		_, err = s.Verify(context.Background(), "pay_1")
		require.NoError(t, err)
		assert.Equal(t, []string{"o-1", "o-1"}, ledger.markPaid)
	})

	t.Run("unpaid payment does not touch the ledger", func(t *testing.T) {
		gw := &fakeGateway{payments: map[string]domain.Payment{
			"pay_2": {ID: "pay_2", Status: domain.StatusInitiated, OrderID: "o-1"},
		}}
		ledger := &fakeLedger{}
		s := NewService(discard(), gw, ledger)

		_, err := s.Verify(context.Background(), "pay_2")
		require.NoError(t, err)
		assert.Empty(t, ledger.markPaid)
	})

	t.Run("paid without order reference is returned untouched", func(t *testing.T) {
		gw := &fakeGateway{payments: map[string]domain.Payment{
			"pay_3": {ID: "pay_3", Status: domain.StatusPaid},
		}}
		ledger := &fakeLedger{}
		s := NewService(discard(), gw, ledger)

		p, err := s.Verify(context.Background(), "pay_3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, p.Status)
		assert.Empty(t, ledger.markPaid)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("paid event marks the order", func(t *testing.T) {
		ledger := &fakeLedger{}
		s := NewService(discard(), &fakeGateway{}, ledger)

		err := s.HandleWebhook(ctx, domain.WebhookEvent{
			Type: domain.EventPaymentPaid,
			Data: domain.WebhookData{ID: "pay_1", Status: domain.StatusPaid,
				Metadata: domain.Metadata{OrderID: "o-1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"o-1"}, ledger.markPaid)
	})

	t.Run("unknown event type is a no-op", func(t *testing.T) {
		ledger := &fakeLedger{}
		s := NewService(discard(), &fakeGateway{}, ledger)

		err := s.HandleWebhook(ctx, domain.WebhookEvent{Type: "payment.refunded"})
		require.NoError(t, err)
		assert.Empty(t, ledger.markPaid)
	})

	t.Run("paid event without order metadata is a no-op", func(t *testing.T) {
		ledger := &fakeLedger{}
		s := NewService(discard(), &fakeGateway{}, ledger)

		err := s.HandleWebhook(ctx, domain.WebhookEvent{
			Type: domain.EventPaymentPaid,
			Data: domain.WebhookData{ID: "pay_9"},
		})
		require.NoError(t, err)
		assert.Empty(t, ledger.markPaid)
	})

	t.Run("ledger failure propagates for redelivery", func(t *testing.T) {
		ledger := &fakeLedger{markErr: errors.New("db down")}
		s := NewService(discard(), &fakeGateway{}, ledger)

		err := s.HandleWebhook(ctx, domain.WebhookEvent{
			Type: domain.EventPaymentPaid,
			Data: domain.WebhookData{ID: "pay_1", Metadata: domain.Metadata{OrderID: "o-1"}},
		})
		assert.Error(t, err)
	})
}
