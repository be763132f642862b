package application

import (
	"context"

	catalog "github.com/salehm/coaching-store/internal/catalog/domain"
	"github.com/salehm/coaching-store/internal/checkout/domain"
)

// Catalog is the read-only slice of the catalog the orchestrator needs.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	ShippingMethod(ctx context.Context, id string) (*catalog.ShippingMethod, error)
	CouponByCode(ctx context.Context, code string) (*catalog.Coupon, error)
}

type StockDecrement struct {
	ProductID   string
	ProductName string
	Quantity    int
}

type OrderFilter struct {
	Status string
	Page   int
	Limit  int
}

// OrderRepository owns the order ledger. CreateOrder must persist the order,
// its items, the customer upsert, stock decrements, the coupon usage increment
// and the outbox event in a single transaction.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *domain.Order, cust domain.Customer, couponID *string, decrements []StockDecrement, eventType string, payload []byte) error
	Order(ctx context.Context, id string) (domain.Order, error)
	OrderByTracking(ctx context.Context, trackingNumber string) (domain.Order, error)
	List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, current, next domain.Status, trackingNumber *string) (domain.Order, error)
}
