package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salehm/coaching-store/internal/payment/domain"
)

type Service struct {
	log     *slog.Logger
	gateway Gateway
	ledger  OrderLedger
}

func NewService(log *slog.Logger, gateway Gateway, ledger OrderLedger) *Service {
	return &Service{log: log, gateway: gateway, ledger: ledger}
}

// CreateSession opens a gateway payment for an existing order. The amount is
// always the order's persisted total; the client never supplies it.
func (s *Service) CreateSession(ctx context.Context, orderID, callbackURL string) (domain.Payment, error) {
	o, err := s.ledger.Order(ctx, orderID)
	if err != nil {
		return domain.Payment{}, err
	}

	p, err := s.gateway.CreatePayment(ctx, CreatePayment{
		Amount:      o.Total,
		Currency:    "SAR",
		Description: fmt.Sprintf("Order %s", o.OrderNumber),
		CallbackURL: callbackURL,
		OrderID:     o.ID,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment session created", "order_id", o.ID, "payment_id", p.ID)
	return p, nil
}

// Verify polls the gateway for a payment's current state and reconciles a
// paid result into the order ledger. Safe to call any number of times.
func (s *Service) Verify(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if p.Status == domain.StatusPaid && p.OrderID != "" {
		if err := s.ledger.MarkPaid(ctx, p.OrderID, p.ID); err != nil {
			return domain.Payment{}, err
		}
	}
	return p, nil
}

// HandleWebhook applies a pushed gateway event. Unknown event types and
// events without an order reference are deliberate no-ops: the gateway gets
// an ack and nothing is mutated. An error here means the local write failed
// and the caller must signal the gateway to redeliver.
func (s *Service) HandleWebhook(ctx context.Context, ev domain.WebhookEvent) error {
	if ev.Type != domain.EventPaymentPaid {
		s.log.Debug("webhook event ignored", "type", ev.Type)
		return nil
	}
	orderID := ev.Data.Metadata.OrderID
	if orderID == "" {
		s.log.Warn("paid webhook without order_id metadata", "payment_id", ev.Data.ID)
		return nil
	}
	if err := s.ledger.MarkPaid(ctx, orderID, ev.Data.ID); err != nil {
		return err
	}
	s.log.Info("payment reconciled", "order_id", orderID, "payment_id", ev.Data.ID)
	return nil
}
