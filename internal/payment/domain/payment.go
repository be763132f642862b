package domain

// Gateway payment statuses as reported by Moyasar.
const (
	StatusInitiated = "initiated"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
)

// EventPaymentPaid is the only webhook type this system acts on; everything
// else is acknowledged and dropped.
const EventPaymentPaid = "payment.paid"

// Payment is the gateway's view of a payment. Amount is in halalas, matching
// the rest of the module.
type Payment struct {
	ID             string
	Status         string
	Amount         int64
	Currency       string
	OrderID        string
	TransactionURL string
}

type WebhookEvent struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Metadata Metadata `json:"metadata"`
}

type Metadata struct {
	OrderID string `json:"order_id"`
}
