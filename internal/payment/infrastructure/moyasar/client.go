package moyasar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/salehm/coaching-store/internal/payment/application"
	"github.com/salehm/coaching-store/internal/payment/domain"
)

// Client talks to the Moyasar REST API. All amounts on the wire are halalas,
// which is also this module's internal representation, so no conversion
// happens here.
type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(log *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		log:     log,
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type paymentResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Source   struct {
		TransactionURL string `json:"transaction_url"`
	} `json:"source"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

func (c *Client) CreatePayment(ctx context.Context, req application.CreatePayment) (domain.Payment, error) {
	body, err := json.Marshal(map[string]any{
		"amount":       req.Amount,
		"currency":     req.Currency,
		"description":  req.Description,
		"callback_url": req.CallbackURL,
		"source":       map[string]string{"type": "creditcard"},
		"metadata":     map[string]string{"order_id": req.OrderID},
	})
	if err != nil {
		return domain.Payment{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return domain.Payment{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.apiKey, "")

	return c.do(httpReq)
}

func (c *Client) FetchPayment(ctx context.Context, id string) (domain.Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return domain.Payment{}, err
	}
	httpReq.SetBasicAuth(c.apiKey, "")

	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (domain.Payment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("moyasar request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("moyasar response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("moyasar error response", "status", resp.StatusCode, "body", string(raw))
		return domain.Payment{}, fmt.Errorf("moyasar status %d", resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return domain.Payment{}, fmt.Errorf("moyasar decode: %w", err)
	}
	return domain.Payment{
		ID:             pr.ID,
		Status:         pr.Status,
		Amount:         pr.Amount,
		Currency:       pr.Currency,
		OrderID:        pr.Metadata.OrderID,
		TransactionURL: pr.Source.TransactionURL,
	}, nil
}
