package push

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"storesync/internal/domain"
)

// Stream subscribes to the backend's per-user cart topic over
// server-sent events. It is strictly optional: any error here makes
// the coordinator fall back to pull-based refresh.
type Stream struct {
	baseURL    string
	httpClient *http.Client
}

func NewStream(baseURL string) *Stream {
	// No client timeout: the connection is long-lived and bounded by
	// the caller's context instead.
	return &Stream{baseURL: baseURL, httpClient: &http.Client{}}
}

// Run connects and delivers pushed summaries until the stream ends or
// ctx is cancelled. It always returns a non-nil error; the caller
// decides whether and when to reconnect.
func (s *Stream) Run(ctx context.Context, token string, onSummary func(domain.CartSummary)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/cart/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cart stream returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var summary domain.CartSummary
		if err := json.Unmarshal([]byte(payload), &summary); err != nil {
			// Malformed frames are skipped, not fatal.
			continue
		}
		onSummary(summary)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("cart stream closed by server")
}
