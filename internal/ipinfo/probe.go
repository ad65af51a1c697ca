package ipinfo

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"
)

// Result is the approximate location inferred from the caller's
// network address. It only ever annotates a location write; the
// client never lets it decide coordinates.
type Result struct {
	IP     string  `json:"ip"`
	City   string  `json:"city"`
	Region string  `json:"region"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

// Diverges reports whether the probe's coordinates differ from the
// device-reported ones by more than threshold degrees on either axis.
// Divergence is logged, never arbitrated: both readings still go to
// the backend for it to reconcile.
func (r *Result) Diverges(lat, lng, threshold float64) bool {
	if r == nil || (r.Lat == 0 && r.Lon == 0) {
		return false
	}
	return math.Abs(r.Lat-lat) > threshold || math.Abs(r.Lon-lng) > threshold
}

// Client performs the best-effort IP lookup.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Probe races the lookup against the fixed timeout and returns nil on
// any failure. It never returns an error and never blocks the caller
// past the budget.
func (c *Client) Probe(ctx context.Context) *Result {
	if c.baseURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	return &result
}
