package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPLocator bridges device geolocation through a local agent
// endpoint (the piece of the platform that can actually ask the user
// for permission). Its status codes map onto the device error
// taxonomy so callers only ever see the normalized reasons.
type HTTPLocator struct {
	url        string
	httpClient *http.Client
}

func NewHTTPLocator(url string, timeout time.Duration) *HTTPLocator {
	return &HTTPLocator{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLocator) CurrentPosition(ctx context.Context) (Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Coordinates{}, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized:
		return Coordinates{}, ErrPermissionDenied
	default:
		return Coordinates{}, fmt.Errorf("geolocation agent returned %d: %w", resp.StatusCode, ErrPositionUnavailable)
	}

	var pos Coordinates
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return Coordinates{}, fmt.Errorf("decode position: %w", ErrPositionUnavailable)
	}
	return pos, nil
}
