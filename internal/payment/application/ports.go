package application

import (
	"context"

	checkout "github.com/salehm/coaching-store/internal/checkout/domain"
	"github.com/salehm/coaching-store/internal/payment/domain"
)

type CreatePayment struct {
	Amount      int64
	Currency    string
	Description string
	CallbackURL string
	OrderID     string
}

// Gateway talks to the payment provider. Both calls must be bounded by the
// client's timeout; a timeout means unknown outcome, never success.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePayment) (domain.Payment, error)
	FetchPayment(ctx context.Context, id string) (domain.Payment, error)
}

// OrderLedger is the slice of the order store reconciliation needs. MarkPaid
// must be idempotent: repeat calls for an already-paid order are no-ops.
type OrderLedger interface {
	Order(ctx context.Context, id string) (checkout.Order, error)
	MarkPaid(ctx context.Context, orderID, transactionID string) error
}
