package domain

import (
	"time"

	catalog "github.com/salehm/coaching-store/internal/catalog/domain"
)

// VATRatePercent is the fixed Saudi VAT rate applied after the discount.
const VATRatePercent = 15

type CartLine struct {
	Product  catalog.Product
	Quantity int
}

type PricedLine struct {
	Product   catalog.Product
	Quantity  int
	UnitPrice int64
	Subtotal  int64
}

type Totals struct {
	Subtotal     int64
	Discount     int64
	ShippingCost int64
	Tax          int64
	Total        int64
}

// PriceLines snapshots effective unit prices and line subtotals for a cart.
func PriceLines(lines []CartLine) []PricedLine {
	priced := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		unit := l.Product.EffectivePrice()
		priced = append(priced, PricedLine{
			Product:   l.Product,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			Subtotal:  unit * int64(l.Quantity),
		})
	}
	return priced
}

// ComputeTotals is the pricing engine: a pure function of the priced cart, an
// optional shipping method and an optional coupon. The coupon must already
// have been checked for redeemability; a nil coupon means no discount.
//
//	total = subtotal + shipping - discount + tax
//	tax   = (subtotal - discount) * 15%
func ComputeTotals(lines []PricedLine, method *catalog.ShippingMethod, coupon *catalog.Coupon, now time.Time) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.Subtotal
	}

	if coupon != nil && coupon.RedeemableAt(now, t.Subtotal) {
		t.Discount = coupon.DiscountFor(t.Subtotal)
	}

	if method != nil {
		t.ShippingCost = method.CostFor(t.Subtotal)
	}

	t.Tax = roundedPercent(t.Subtotal-t.Discount, VATRatePercent)
	t.Total = t.Subtotal + t.ShippingCost - t.Discount + t.Tax
	return t
}

func roundedPercent(amount, percent int64) int64 {
	return (amount*percent + 50) / 100
}
