package domain

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
)

type OrderCreated struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	CustomerEmail string `json:"customer_email"`
	Total         int64  `json:"total"`
}

type OrderPaid struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}
