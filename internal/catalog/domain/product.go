package domain

// Product is a catalog read model. All monetary amounts across the module are
// integer halalas (SAR minor units).
type Product struct {
	ID             string
	CategoryID     *string
	NameAr         string
	NameEn         string
	Price          int64
	SalePrice      *int64
	StockQuantity  int
	TrackInventory bool
	SKU            string
	Images         []string
	Status         string
}

// EffectivePrice is the unit price the customer actually pays: the sale price
// when one is set, otherwise the base price.
func (p Product) EffectivePrice() int64 {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice
	}
	return p.Price
}

func (p Product) FirstImage() *string {
	if len(p.Images) == 0 {
		return nil
	}
	img := p.Images[0]
	return &img
}
