package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storesync/internal/domain"
)

// Client talks to the marketplace backend's REST API. Mutations retry
// transient failures with exponential backoff and carry an
// idempotency key so a retried cart add can never double-apply.
type Client struct {
	baseURL    string
	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryBase, retryMax time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		retryMax:   retryMax,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LocationUpload is the telemetry payload for POST /location/store.
// The IP annotation fields are best effort and may be empty.
type LocationUpload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IPAddress string  `json:"ip_address,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
}

// CartAdd is the payload for POST /cart/add. Exactly one of ProductID
// and ServiceID is set.
type CartAdd struct {
	ProductID string `json:"product_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) StoreLocation(ctx context.Context, token string, up LocationUpload) error {
	return c.post(ctx, "/location/store", token, up)
}

func (c *Client) AddToCart(ctx context.Context, token string, add CartAdd) error {
	return c.post(ctx, "/cart/add", token, add)
}

func (c *Client) CartSummary(ctx context.Context, token string) (domain.CartSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cart/summary", nil)
	if err != nil {
		return domain.CartSummary{}, err
	}
	authorize(req, token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.CartSummary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.CartSummary{}, fmt.Errorf("cart summary returned %d", resp.StatusCode)
	}
	var summary domain.CartSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return domain.CartSummary{}, err
	}
	return summary, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	idempotencyKey := uuid.NewString()

	backoff := c.retryBase
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > c.retryMax {
				backoff = c.retryMax
			}
		}

		lastErr = c.attempt(ctx, path, token, idempotencyKey, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		var re *retryableError
		if !errors.As(lastErr, &re) {
			return lastErr
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", path, c.maxRetries+1, lastErr)
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) attempt(ctx context.Context, path, token, idempotencyKey string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)
	authorize(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &retryableError{err: fmt.Errorf("%s returned %d", path, resp.StatusCode)}
	default:
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
}

func authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
