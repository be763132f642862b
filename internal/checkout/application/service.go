package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	catalogdomain "github.com/salehm/coaching-store/internal/catalog/domain"
	"github.com/salehm/coaching-store/internal/checkout/domain"
)

type Service struct {
	log     *slog.Logger
	catalog Catalog
	orders  OrderRepository
	now     func() time.Time
}

func NewService(log *slog.Logger, catalog Catalog, orders OrderRepository) *Service {
	return &Service{log: log, catalog: catalog, orders: orders, now: time.Now}
}

type CheckoutCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type CheckoutItem struct {
	ProductID string
	Quantity  int
}

type CheckoutShipping struct {
	MethodID string
	Address  domain.Address
}

type CreateOrderInput struct {
	Customer      CheckoutCustomer
	Items         []CheckoutItem
	Shipping      CheckoutShipping
	PaymentMethod string
	CouponCode    string
}

type OrderResult struct {
	OrderID     string
	OrderNumber string
	Totals      domain.Totals
	Status      domain.Status
}

// CreateOrder runs the checkout pipeline: resolve products, validate stock,
// recompute all prices server-side, upsert the customer and persist the order
// atomically. Client-submitted totals are never consulted.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderResult, error) {
	now := s.now().UTC()

	products, err := s.catalog.Products(ctx, productIDs(in.Items))
	if err != nil {
		return OrderResult{}, err
	}

	lines := make([]domain.CartLine, 0, len(in.Items))
	for _, item := range in.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return OrderResult{}, &domain.ProductNotFoundError{ProductID: item.ProductID}
		}
		if p.TrackInventory && item.Quantity > p.StockQuantity {
			return OrderResult{}, &domain.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.NameAr,
				Requested:   item.Quantity,
				Available:   p.StockQuantity,
			}
		}
		lines = append(lines, domain.CartLine{Product: p, Quantity: item.Quantity})
	}
	priced := domain.PriceLines(lines)

	// A missing shipping method is a zero-cost fallback, not an error.
	method, err := s.catalog.ShippingMethod(ctx, in.Shipping.MethodID)
	if err != nil {
		return OrderResult{}, err
	}

	coupon, err := s.resolveCoupon(ctx, in.CouponCode, priced, now)
	if err != nil {
		return OrderResult{}, err
	}

	totals := domain.ComputeTotals(priced, method, coupon, now)

	order := buildOrder(in, priced, totals, method, coupon, now)
	cust := domain.Customer{
		Email:     in.Customer.Email,
		Phone:     in.Customer.Phone,
		FirstName: in.Customer.FirstName,
		LastName:  in.Customer.LastName,
	}

	var couponID *string
	if coupon != nil {
		couponID = &coupon.ID
	}

	payload, err := json.Marshal(domain.OrderCreated{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
	})
	if err != nil {
		return OrderResult{}, err
	}

	if err := s.orders.CreateOrder(ctx, &order, cust, couponID, decrements(priced), domain.EventOrderCreated, payload); err != nil {
		return OrderResult{}, err
	}

	s.log.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total", order.Total,
	)
	return OrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Totals:      totals,
		Status:      order.Status,
	}, nil
}

// resolveCoupon looks up and re-validates the coupon. An unknown or
// non-redeemable code is dropped silently; the order proceeds undiscounted.
func (s *Service) resolveCoupon(ctx context.Context, code string, priced []domain.PricedLine, now time.Time) (*catalogdomain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.catalog.CouponByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	var subtotal int64
	for _, l := range priced {
		subtotal += l.Subtotal
	}
	if c == nil || !c.RedeemableAt(now, subtotal) {
		s.log.Info("coupon skipped at checkout", "code", strings.ToUpper(code))
		return nil, nil
	}
	return c, nil
}

func (s *Service) Order(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Order(ctx, id)
}

type ShipmentTracking struct {
	TrackingNumber  string        `json:"tracking_number"`
	OrderNumber     string        `json:"order_number"`
	ShippingCompany *string       `json:"shipping_company"`
	Status          domain.Status `json:"status"`
	ShippedAt       *time.Time    `json:"shipped_at"`
}

// TrackShipment is the public shipment lookup keyed by tracking number.
func (s *Service) TrackShipment(ctx context.Context, trackingNumber string) (ShipmentTracking, error) {
	o, err := s.orders.OrderByTracking(ctx, trackingNumber)
	if err != nil {
		return ShipmentTracking{}, err
	}
	return ShipmentTracking{
		TrackingNumber:  trackingNumber,
		OrderNumber:     o.OrderNumber,
		ShippingCompany: o.ShippingCompany,
		Status:          o.Status,
		ShippedAt:       o.ShippedAt,
	}, nil
}

func (s *Service) List(ctx context.Context, f OrderFilter) ([]domain.Order, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.orders.List(ctx, f)
}

// UpdateStatus applies an admin fulfillment transition under the state
// machine rules. Money fields are never touched.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.Status, trackingNumber string) (domain.Order, error) {
	o, err := s.orders.Order(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := domain.ValidateTransition(o.Status, next, trackingNumber); err != nil {
		return domain.Order{}, err
	}
	var tracking *string
	if next == domain.StatusShipped {
		tn := strings.TrimSpace(trackingNumber)
		tracking = &tn
	}
	return s.orders.UpdateStatus(ctx, id, o.Status, next, tracking)
}

func productIDs(items []CheckoutItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func decrements(priced []domain.PricedLine) []StockDecrement {
	byProduct := make(map[string]int)
	names := make(map[string]string)
	order := make([]string, 0, len(priced))
	for _, l := range priced {
		if !l.Product.TrackInventory {
			continue
		}
		if _, ok := byProduct[l.Product.ID]; !ok {
			order = append(order, l.Product.ID)
			names[l.Product.ID] = l.Product.NameAr
		}
		byProduct[l.Product.ID] += l.Quantity
	}
	out := make([]StockDecrement, 0, len(order))
	for _, id := range order {
		out = append(out, StockDecrement{ProductID: id, ProductName: names[id], Quantity: byProduct[id]})
	}
	return out
}

func buildOrder(in CreateOrderInput, priced []domain.PricedLine, totals domain.Totals, method *catalogdomain.ShippingMethod, coupon *catalogdomain.Coupon, now time.Time) domain.Order {
	orderID := uuid.NewString()

	items := make([]domain.OrderItem, 0, len(priced))
	for _, l := range priced {
		items = append(items, domain.OrderItem{
			ID:           uuid.NewString(),
			OrderID:      orderID,
			ProductID:    l.Product.ID,
			ProductName:  l.Product.NameAr,
			ProductSKU:   l.Product.SKU,
			ProductImage: l.Product.FirstImage(),
			Price:        l.UnitPrice,
			Quantity:     l.Quantity,
			Subtotal:     l.Subtotal,
		})
	}

	shippingName := in.Shipping.MethodID
	var shippingCompany *string
	if method != nil {
		shippingName = method.NameAr
		shippingCompany = method.Company
	}

	var couponCode *string
	if coupon != nil {
		couponCode = &coupon.Code
	}

	cust := domain.Customer{
		Email:     in.Customer.Email,
		Phone:     in.Customer.Phone,
		FirstName: in.Customer.FirstName,
		LastName:  in.Customer.LastName,
	}

	return domain.Order{
		ID:              orderID,
		OrderNumber:     domain.NewOrderNumber(now),
		CustomerEmail:   cust.Email,
		CustomerPhone:   cust.Phone,
		CustomerName:    cust.FullName(),
		ShippingAddress: in.Shipping.Address,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.ShippingCost,
		Tax:             totals.Tax,
		Discount:        totals.Discount,
		Total:           totals.Total,
		CouponCode:      couponCode,
		Status:          domain.StatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   domain.PaymentPending,
		ShippingMethod:  shippingName,
		ShippingCompany: shippingCompany,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}
}
