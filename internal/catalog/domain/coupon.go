package domain

import (
	"fmt"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon codes are stored upper-cased and matched case-insensitively.
// DiscountValue is whole percent for percentage coupons and halalas for fixed
// ones.
type Coupon struct {
	ID                 string
	Code               string
	DiscountType       DiscountType
	DiscountValue      int64
	MinimumOrderAmount int64
	ExpiresAt          *time.Time
	UsageLimit         *int
	TimesUsed          int
	IsActive           bool
}

// RedeemableAt reports whether the coupon can be applied at time t to an order
// with the given subtotal.
func (c Coupon) RedeemableAt(t time.Time, subtotal int64) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(t) {
		return false
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return false
	}
	return subtotal >= c.MinimumOrderAmount
}

// DiscountFor computes the discount in halalas, always capped at the subtotal
// so a total can never go negative.
func (c Coupon) DiscountFor(subtotal int64) int64 {
	var d int64
	switch c.DiscountType {
	case DiscountPercentage:
		d = roundedPercent(subtotal, c.DiscountValue)
	case DiscountFixed:
		d = c.DiscountValue
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return d
}

func roundedPercent(amount, percent int64) int64 {
	return (amount*percent + 50) / 100
}

// FormatSAR renders halalas as a riyal amount for user-facing messages.
func FormatSAR(halalas int64) string {
	if halalas%100 == 0 {
		return fmt.Sprintf("%d", halalas/100)
	}
	return fmt.Sprintf("%d.%02d", halalas/100, halalas%100)
}
