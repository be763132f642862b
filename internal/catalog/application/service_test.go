package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salehm/coaching-store/internal/catalog/domain"
)

type fakeRepo struct {
	products map[string]domain.Product
	methods  []domain.ShippingMethod
	coupons  map[string]domain.Coupon
}

func (f *fakeRepo) Products(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeRepo) Product(_ context.Context, id string) (*domain.Product, error) {
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeRepo) ListProducts(_ context.Context, _ ProductFilter) ([]domain.Product, int, error) {
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ShippingMethods(_ context.Context) ([]domain.ShippingMethod, error) {
	return f.methods, nil
}

func (f *fakeRepo) ShippingMethod(_ context.Context, id string) (*domain.ShippingMethod, error) {
	for _, m := range f.methods {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	if c, ok := f.coupons[code]; ok {
		return &c, nil
	}
	return nil, nil
}

func newTestService(repo *fakeRepo, now time.Time) *Service {
	s := NewService(repo)
	s.now = func() time.Time { return now }
	return s
}

func TestProduct_NotFound(t *testing.T) {
	s := newTestService(&fakeRepo{products: map[string]domain.Product{}}, time.Now())
	_, err := s.Product(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestQuoteShipping(t *testing.T) {
	threshold := int64(20000)
	repo := &fakeRepo{methods: []domain.ShippingMethod{
		{ID: "express", NameAr: "شحن سريع", Price: 3500, FreeShippingThreshold: &threshold,
			EstimatedDaysMin: 1, EstimatedDaysMax: 2, IsActive: true},
		{ID: "retired", NameAr: "قديم", Price: 1000, IsActive: false},
	}}
	s := newTestService(repo, time.Now())

	t.Run("below threshold", func(t *testing.T) {
		q, err := s.QuoteShipping(context.Background(), "express", 15000)
		require.NoError(t, err)
		assert.Equal(t, int64(3500), q.Cost)
		assert.Equal(t, "SAR", q.Currency)
		assert.Equal(t, "1-2 أيام عمل", q.EstimatedDays)
	})

	t.Run("at threshold ships free", func(t *testing.T) {
		q, err := s.QuoteShipping(context.Background(), "express", 20000)
		require.NoError(t, err)
		assert.Zero(t, q.Cost)
	})

	t.Run("inactive method is not quotable", func(t *testing.T) {
		_, err := s.QuoteShipping(context.Background(), "retired", 1000)
		assert.True(t, errors.Is(err, ErrShippingMethodNotFound))
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := s.QuoteShipping(context.Background(), "nope", 1000)
		assert.True(t, errors.Is(err, ErrShippingMethodNotFound))
	})
}

func TestValidateCoupon(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	one := 1

	repo := &fakeRepo{coupons: map[string]domain.Coupon{
		"SAVE10": {ID: "c-1", Code: "SAVE10", DiscountType: domain.DiscountPercentage,
			DiscountValue: 10, MinimumOrderAmount: 10000, ExpiresAt: &future, IsActive: true},
		"EXPIRED": {ID: "c-2", Code: "EXPIRED", DiscountType: domain.DiscountPercentage,
			DiscountValue: 10, ExpiresAt: &expired, IsActive: true},
		"USEDUP": {ID: "c-3", Code: "USEDUP", DiscountType: domain.DiscountFixed,
			DiscountValue: 500, UsageLimit: &one, TimesUsed: 1, IsActive: true},
		"BIG50": {ID: "c-4", Code: "BIG50", DiscountType: domain.DiscountFixed,
			DiscountValue: 5000, IsActive: true},
		"OFF": {ID: "c-5", Code: "OFF", DiscountType: domain.DiscountPercentage,
			DiscountValue: 10, IsActive: false},
	}}
	s := newTestService(repo, now)
	ctx := context.Background()

	t.Run("valid percentage coupon", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "SAVE10", 20000)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, int64(2000), res.Discount)
		assert.Equal(t, "SAVE10", res.Code)
	})

	t.Run("below minimum order carries Arabic message", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "SAVE10", 9999)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "الحد الأدنى للطلب 100 ر.س", res.Error)
	})

	t.Run("expired", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "EXPIRED", 20000)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("usage limit reached", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "USEDUP", 20000)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("inactive", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "OFF", 20000)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("unknown code", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "NOPE", 20000)
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("fixed discount capped at amount", func(t *testing.T) {
		res, err := s.ValidateCoupon(ctx, "BIG50", 3000)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, int64(3000), res.Discount)
	})
}
