package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	checkout "github.com/salehm/coaching-store/internal/checkout/domain"
	"github.com/salehm/coaching-store/internal/payment/application"
	"github.com/salehm/coaching-store/internal/payment/domain"
)

// Deduper short-circuits repeat webhook deliveries. Seen must be a read-only
// check; Record is called only once the local write has committed.
type Deduper interface {
	WebhookKey(eventType, paymentID string) string
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	idem    Deduper
	tracer  trace.Tracer
}

// NewHandler wires the payment endpoints. idem may be nil; deduplication is a
// fast path, not a correctness requirement.
func NewHandler(log *slog.Logger, service *application.Service, idem Deduper) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("payment-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/payments/create", h.createPayment)
	r.Get("/payments/verify/{payment_id}", h.verify)
	r.Post("/payments/webhook", h.webhook)
}

type createPaymentReq struct {
	OrderID     string `json:"order_id"`
	CallbackURL string `json:"callback_url"`
}

// createPayment opens a gateway session for an order. The amount is taken
// from the persisted order total, never from the request.
func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePaymentSession")
	defer span.End()

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	p, err := h.service.CreateSession(ctx, req.OrderID, req.CallbackURL)
	if err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.log.Error("create payment session failed", "order_id", req.OrderID, "err", err)
		writeError(w, http.StatusBadGateway, "فشل إنشاء جلسة الدفع")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id":  p.ID,
		"payment_url": p.TransactionURL,
		"status":      p.Status,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	p, err := h.service.Verify(ctx, chi.URLParam(r, "payment_id"))
	if err != nil {
		h.log.Error("payment verify failed", "err", err)
		writeError(w, http.StatusBadGateway, "فشل التحقق من الدفع")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   p.Status,
		"amount":   p.Amount,
		"currency": p.Currency,
		"order_id": p.OrderID,
	})
}

// webhook always acks events it chooses to ignore; a non-2xx is returned only
// when the local write failed, so the gateway redelivers.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	var ev domain.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		// Malformed payloads are acked; redelivery cannot fix them.
		h.log.Warn("malformed webhook payload", "err", err)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var key string
	if h.idem != nil && ev.Data.ID != "" {
		key = h.idem.WebhookKey(ev.Type, ev.Data.ID)
		seen, err := h.idem.Seen(ctx, key)
		if err != nil {
			h.log.Error("webhook idempotency check failed", "err", err)
		} else if seen {
			h.log.Info("duplicate webhook skipped", "type", ev.Type, "payment_id", ev.Data.ID)
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	if err := h.service.HandleWebhook(ctx, ev); err != nil {
		h.log.Error("webhook processing failed", "type", ev.Type, "err", err)
		writeError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	// The key is recorded only after the local write committed. A delivery
	// interrupted before this point stays unrecorded, so the gateway's retry
	// is processed instead of being skipped as a duplicate.
	if key != "" {
		if err := h.idem.Record(ctx, key); err != nil {
			h.log.Error("webhook idempotency record failed", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
