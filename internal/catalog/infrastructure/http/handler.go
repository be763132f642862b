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

	"github.com/salehm/coaching-store/internal/catalog/application"
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
		tracer:   otel.Tracer("catalog-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/shipping/methods", h.shippingMethods)
	r.Post("/shipping/calculate", h.calculateShipping)
	r.Post("/coupons/validate", h.validateCoupon)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	q := r.URL.Query()
	f := application.ProductFilter{
		CategoryID: q.Get("category"),
		Status:     q.Get("status"),
		Search:     q.Get("search"),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 20),
	}
	products, total, err := h.service.ListProducts(ctx, f)
	if err != nil {
		h.log.Error("list products failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"total":      total,
		"page":       f.Page,
		"totalPages": (total + f.Limit - 1) / f.Limit,
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	p, err := h.service.Product(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, application.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.log.Error("get product failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) shippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ShippingMethods")
	defer span.End()

	methods, err := h.service.ShippingMethods(ctx)
	if err != nil {
		h.log.Error("shipping methods failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

type calculateShippingReq struct {
	ShippingMethodID string `json:"shipping_method_id" validate:"required"`
	Subtotal         int64  `json:"subtotal" validate:"gte=0"`
}

func (h *Handler) calculateShipping(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CalculateShipping")
	defer span.End()

	var req calculateShippingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "shipping_method_id is required")
		return
	}

	quote, err := h.service.QuoteShipping(ctx, req.ShippingMethodID, req.Subtotal)
	if err != nil {
		if errors.Is(err, application.ErrShippingMethodNotFound) {
			writeError(w, http.StatusNotFound, "طريقة الشحن غير موجودة")
			return
		}
		h.log.Error("calculate shipping failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type validateCouponReq struct {
	Code   string `json:"code" validate:"required"`
	Amount int64  `json:"amount" validate:"gte=0"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ValidateCoupon")
	defer span.End()

	var req validateCouponReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := h.service.ValidateCoupon(ctx, req.Code, req.Amount)
	if err != nil {
		h.log.Error("validate coupon failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, res)
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
