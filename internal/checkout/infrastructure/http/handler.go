package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/salehm/coaching-store/internal/checkout/application"
	"github.com/salehm/coaching-store/internal/checkout/domain"
)

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		tracer:   otel.Tracer("checkout-http"),
	}
}

// Register adds the public storefront endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/public/{id}", h.publicOrder)
	r.Get("/shipping/track/{tracking_number}", h.trackShipment)
}

// RegisterAdmin adds the back-office endpoints; the router passed in must
// already carry the admin auth middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

type createOrderReq struct {
	Customer struct {
		FirstName string `json:"first_name" validate:"required"`
		LastName  string `json:"last_name" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Phone     string `json:"phone" validate:"required"`
	} `json:"customer"`
	Items []struct {
		ProductID string `json:"product_id" validate:"required"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
	Shipping struct {
		MethodID string `json:"method_id" validate:"required"`
		Address  struct {
			Street     string `json:"street" validate:"required"`
			City       string `json:"city" validate:"required"`
			PostalCode string `json:"postal_code"`
			Country    string `json:"country" validate:"required"`
		} `json:"address"`
	} `json:"shipping"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	CouponCode    string `json:"coupon_code"`
}

type orderCreatedResp struct {
	OrderID      string        `json:"order_id"`
	OrderNumber  string        `json:"order_number"`
	Total        int64         `json:"total"`
	Subtotal     int64         `json:"subtotal"`
	ShippingCost int64         `json:"shipping_cost"`
	Tax          int64         `json:"tax"`
	Discount     int64         `json:"discount"`
	Status       domain.Status `json:"status"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "بيانات الطلب غير صالحة")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "حقول مطلوبة ناقصة في الطلب")
		return
	}

	in := application.CreateOrderInput{
		Customer: application.CheckoutCustomer{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
		},
		Shipping: application.CheckoutShipping{
			MethodID: req.Shipping.MethodID,
			Address: domain.Address{
				Street:     req.Shipping.Address.Street,
				City:       req.Shipping.Address.City,
				PostalCode: req.Shipping.Address.PostalCode,
				Country:    req.Shipping.Address.Country,
			},
		},
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, application.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.service.CreateOrder(ctx, in)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderCreatedResp{
		OrderID:      res.OrderID,
		OrderNumber:  res.OrderNumber,
		Total:        res.Totals.Total,
		Subtotal:     res.Totals.Subtotal,
		ShippingCost: res.Totals.ShippingCost,
		Tax:          res.Totals.Tax,
		Discount:     res.Totals.Discount,
		Status:       res.Status,
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var notFound *domain.ProductNotFoundError
	var noStock *domain.InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("منتج غير موجود: %s", notFound.ProductID))
	case errors.As(err, &noStock):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("الكمية المطلوبة غير متوفرة لـ: %s", noStock.ProductName))
	case errors.Is(err, domain.ErrCouponExhausted):
		writeError(w, http.StatusConflict, "انتهى عدد مرات استخدام الكوبون، يرجى إعادة المحاولة")
	default:
		h.log.Error("create order failed", "err", err)
		writeError(w, http.StatusInternalServerError, "فشل إنشاء الطلب")
	}
}

// publicOrder is a deliberately minimal projection for post-payment
// confirmation pages; no customer PII beyond what the order id implies.
func (h *Handler) publicOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PublicOrder")
	defer span.End()

	o, err := h.service.Order(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.log.Error("public order lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":              o.ID,
		"order_number":    o.OrderNumber,
		"total":           o.Total,
		"payment_status":  o.PaymentStatus,
		"status":          o.Status,
		"shipping_method": o.ShippingMethod,
		"created_at":      o.CreatedAt,
	})
}

func (h *Handler) trackShipment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TrackShipment")
	defer span.End()

	tr, err := h.service.TrackShipment(ctx, chi.URLParam(r, "tracking_number"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "رقم التتبع غير موجود")
			return
		}
		h.log.Error("track shipment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	f := application.OrderFilter{
		Status: r.URL.Query().Get("status"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}
	orders, total, err := h.service.List(ctx, f)
	if err != nil {
		h.log.Error("list orders failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"total":      total,
		"page":       f.Page,
		"totalPages": (total + f.Limit - 1) / f.Limit,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Order(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.log.Error("get order failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type updateStatusReq struct {
	Status         string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	o, err := h.service.UpdateStatus(ctx, chi.URLParam(r, "id"), domain.Status(req.Status), req.TrackingNumber)
	if err != nil {
		var invalid *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, domain.ErrTrackingRequired):
			writeError(w, http.StatusBadRequest, "tracking number is required for shipped orders")
		case errors.As(err, &invalid):
			writeError(w, http.StatusConflict, invalid.Error())
		default:
			h.log.Error("update status failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
