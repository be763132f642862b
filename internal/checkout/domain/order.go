package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Customer struct {
	ID        string
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Order is a permanent ledger entry. The five money fields are a pricing
// snapshot fixed at creation; only payment fields, status, tracking and the
// lifecycle timestamps are ever mutated afterward.
type Order struct {
	ID                   string
	OrderNumber          string
	CustomerID           string
	CustomerEmail        string
	CustomerPhone        string
	CustomerName         string
	ShippingAddress      Address
	Subtotal             int64
	ShippingCost         int64
	Tax                  int64
	Discount             int64
	Total                int64
	CouponCode           *string
	Status               Status
	PaymentMethod        string
	PaymentStatus        PaymentStatus
	PaymentTransactionID *string
	ShippingMethod       string
	ShippingCompany      *string
	TrackingNumber       *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	PaidAt               *time.Time
	ShippedAt            *time.Time
	DeliveredAt          *time.Time
	Items                []OrderItem
}

// OrderItem snapshots the product at time of purchase so later catalog edits
// do not rewrite order history.
type OrderItem struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	ProductSKU   string
	ProductImage *string
	Price        int64
	Quantity     int
	Subtotal     int64
}

// NewOrderNumber returns a time-derived human-readable order number, unique
// even for orders landing in the same millisecond.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ValidateTransition enforces the fulfillment state machine. Moving to
// shipped additionally requires a tracking number.
func ValidateTransition(current, next Status, trackingNumber string) error {
	allowed, ok := transitions[current]
	if !ok {
		return &InvalidTransitionError{From: current, To: next}
	}
	for _, s := range allowed {
		if s == next {
			if next == StatusShipped && strings.TrimSpace(trackingNumber) == "" {
				return ErrTrackingRequired
			}
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: next}
}
