package application

import (
	"context"

	"github.com/salehm/coaching-store/internal/catalog/domain"
)

type ProductFilter struct {
	CategoryID string
	Status     string
	Search     string
	Page       int
	Limit      int
}

// CatalogRepository is the read-only catalog boundary. Lookups that miss
// return nil rather than an error; the callers decide whether that is fatal.
type CatalogRepository interface {
	Products(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, int, error)
	ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	ShippingMethod(ctx context.Context, id string) (*domain.ShippingMethod, error)
	CouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
}
