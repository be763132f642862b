package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkout "github.com/salehm/coaching-store/internal/checkout/domain"
	"github.com/salehm/coaching-store/internal/payment/application"
	"github.com/salehm/coaching-store/internal/payment/domain"
)

type stubGateway struct {
	payments map[string]domain.Payment
}

func (s *stubGateway) CreatePayment(_ context.Context, req application.CreatePayment) (domain.Payment, error) {
	return domain.Payment{ID: "pay_1", Status: domain.StatusInitiated, Amount: req.Amount,
		OrderID: req.OrderID, TransactionURL: "https://gateway.example/pay_1"}, nil
}

func (s *stubGateway) FetchPayment(_ context.Context, id string) (domain.Payment, error) {
	return s.payments[id], nil
}

type stubLedger struct {
	orders   map[string]checkout.Order
	markPaid []string
}

func (s *stubLedger) Order(_ context.Context, id string) (checkout.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return checkout.Order{}, checkout.ErrOrderNotFound
}

func (s *stubLedger) MarkPaid(_ context.Context, orderID, _ string) error {
	s.markPaid = append(s.markPaid, orderID)
	return nil
}

type memDeduper struct {
	recorded map[string]bool
}

func (m *memDeduper) WebhookKey(eventType, paymentID string) string {
	return eventType + ":" + paymentID
}

func (m *memDeduper) Seen(_ context.Context, key string) (bool, error) {
	return m.recorded[key], nil
}

func (m *memDeduper) Record(_ context.Context, key string) error {
	m.recorded[key] = true
	return nil
}

type flakyLedger struct {
	stubLedger
	failures int
}

func (f *flakyLedger) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("db down")
	}
	return f.stubLedger.MarkPaid(ctx, orderID, transactionID)
}

func newTestRouter(gw *stubGateway, ledger application.OrderLedger, idem Deduper) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(log, application.NewService(log, gw, ledger), idem)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestWebhook_UnknownEventAckedWithoutMutation(t *testing.T) {
	ledger := &stubLedger{}
	router := newTestRouter(&stubGateway{}, ledger, nil)

	body := `{"type":"payment.refunded","data":{}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Empty(t, ledger.markPaid)
}

func TestWebhook_PaidEventMarksOrder(t *testing.T) {
	ledger := &stubLedger{}
	router := newTestRouter(&stubGateway{}, ledger, nil)

	body := `{"type":"payment.paid","data":{"id":"pay_1","status":"paid","metadata":{"order_id":"o-1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"o-1"}, ledger.markPaid)
}

// A delivery is deduplicated only after a prior delivery committed. When the
// first attempt fails the key stays unrecorded, so the gateway's retry is
// processed instead of being acked as a duplicate.
func TestWebhook_DedupeOnlyAfterCommit(t *testing.T) {
	ledger := &flakyLedger{failures: 1}
	idem := &memDeduper{recorded: make(map[string]bool)}
	router := newTestRouter(&stubGateway{}, ledger, idem)

	body := `{"type":"payment.paid","data":{"id":"pay_1","status":"paid","metadata":{"order_id":"o-1"}}}`
	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// first attempt: the local write fails, nothing may be recorded
	rec := post()
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, ledger.markPaid)
	assert.Empty(t, idem.recorded)

	// retry: processed, committed, and only now recorded
	rec = post()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"o-1"}, ledger.markPaid)
	assert.True(t, idem.recorded[idem.WebhookKey("payment.paid", "pay_1")])

	// genuine duplicate after commit: acked without touching the ledger again
	rec = post()
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"o-1"}, ledger.markPaid)
}

func TestWebhook_MalformedBodyIsAcked(t *testing.T) {
	ledger := &stubLedger{}
	router := newTestRouter(&stubGateway{}, ledger, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ledger.markPaid)
}

func TestCreatePayment(t *testing.T) {
	ledger := &stubLedger{orders: map[string]checkout.Order{
		"o-1": {ID: "o-1", OrderNumber: "ORD-1", Total: 25500},
	}}
	router := newTestRouter(&stubGateway{}, ledger, nil)

	t.Run("opens a session for an existing order", func(t *testing.T) {
		body := `{"order_id":"o-1","callback_url":"https://store.example/confirm"}`
		req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "https://gateway.example/pay_1")
	})

	t.Run("missing order_id rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown order is 404", func(t *testing.T) {
		body := `{"order_id":"ghost"}`
		req := httptest.NewRequest(http.MethodPost, "/payments/create", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	gw := &stubGateway{payments: map[string]domain.Payment{
		"pay_1": {ID: "pay_1", Status: domain.StatusPaid, Amount: 25500, Currency: "SAR", OrderID: "o-1"},
	}}
	ledger := &stubLedger{}
	router := newTestRouter(gw, ledger, nil)

	req := httptest.NewRequest(http.MethodGet, "/payments/verify/pay_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)
	assert.Equal(t, []string{"o-1"}, ledger.markPaid)
}
