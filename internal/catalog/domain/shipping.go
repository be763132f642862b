package domain

import "fmt"

type ShippingMethod struct {
	ID                    string
	NameAr                string
	NameEn                string
	Company               *string
	Price                 int64
	FreeShippingThreshold *int64
	EstimatedDaysMin      int
	EstimatedDaysMax      int
	DisplayOrder          int
	IsActive              bool
}

// CostFor applies the free-shipping threshold: shipping is waived once the
// order subtotal reaches the threshold, otherwise the flat price applies.
func (m ShippingMethod) CostFor(subtotal int64) int64 {
	if m.FreeShippingThreshold != nil && subtotal >= *m.FreeShippingThreshold {
		return 0
	}
	return m.Price
}

func (m ShippingMethod) EstimatedDays() string {
	return fmt.Sprintf("%d-%d أيام عمل", m.EstimatedDaysMin, m.EstimatedDaysMax)
}
