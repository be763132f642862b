package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salehm/coaching-store/internal/catalog/domain"
)

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrShippingMethodNotFound = errors.New("shipping method not found")
)

type Service struct {
	repo CatalogRepository
	now  func() time.Time
}

func NewService(repo CatalogRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.repo.ListProducts(ctx, f)
}

func (s *Service) Product(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.Product(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if p == nil {
		return domain.Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (s *Service) ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	return s.repo.ShippingMethods(ctx)
}

type ShippingQuote struct {
	Method        string `json:"method"`
	Cost          int64  `json:"cost"`
	EstimatedDays string `json:"estimated_days"`
	Currency      string `json:"currency"`
}

// QuoteShipping prices a shipping method for an optional subtotal, so the
// storefront can show threshold-aware costs before checkout.
func (s *Service) QuoteShipping(ctx context.Context, methodID string, subtotal int64) (ShippingQuote, error) {
	m, err := s.repo.ShippingMethod(ctx, methodID)
	if err != nil {
		return ShippingQuote{}, err
	}
	if m == nil || !m.IsActive {
		return ShippingQuote{}, ErrShippingMethodNotFound
	}
	return ShippingQuote{
		Method:        m.NameAr,
		Cost:          m.CostFor(subtotal),
		EstimatedDays: m.EstimatedDays(),
		Currency:      "SAR",
	}, nil
}

type CouponValidation struct {
	Valid    bool   `json:"valid"`
	Discount int64  `json:"discount,omitempty"`
	Code     string `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ValidateCoupon is the display-only pre-check used by the cart page. The
// discount is capped at the amount, matching the checkout pricing policy.
func (s *Service) ValidateCoupon(ctx context.Context, code string, amount int64) (CouponValidation, error) {
	c, err := s.repo.CouponByCode(ctx, code)
	if err != nil {
		return CouponValidation{}, err
	}
	if c == nil || !c.IsActive {
		return CouponValidation{Valid: false}, nil
	}
	now := s.now()
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return CouponValidation{Valid: false}, nil
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return CouponValidation{Valid: false}, nil
	}
	if amount < c.MinimumOrderAmount {
		return CouponValidation{
			Valid: false,
			Error: fmt.Sprintf("الحد الأدنى للطلب %s ر.س", domain.FormatSAR(c.MinimumOrderAmount)),
		}, nil
	}
	return CouponValidation{
		Valid:    true,
		Discount: c.DiscountFor(amount),
		Code:     c.Code,
	}, nil
}
