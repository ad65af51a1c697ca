package geo

import (
	"context"
	"errors"
	"time"

	"storesync/internal/sched"
)

// ErrSuperseded is delivered to a Search callback whose query was
// replaced by a newer one before it could run, or whose results came
// back after a newer query had already been dispatched.
var ErrSuperseded = errors.New("query superseded")

// Locator is the device geolocation source.
type Locator interface {
	CurrentPosition(ctx context.Context) (Coordinates, error)
}

type LocatorFunc func(ctx context.Context) (Coordinates, error)

func (f LocatorFunc) CurrentPosition(ctx context.Context) (Coordinates, error) {
	return f(ctx)
}

// Unavailable is the locator wired when no device geolocation bridge
// is configured; resolution degrades to manual selection.
var Unavailable Locator = LocatorFunc(func(ctx context.Context) (Coordinates, error) {
	return Coordinates{}, ErrPositionUnavailable
})

// Provider is the slice of the geocoding provider the resolver needs.
type Provider interface {
	Predict(ctx context.Context, input, countryFilter string) ([]Prediction, error)
	GeocodeLatLng(ctx context.Context, lat, lng float64) (Address, error)
}

// Resolver wraps device geolocation and the geocoding provider behind
// one interface with a normalized error taxonomy. It is stateless
// between calls apart from the Search debounce.
type Resolver struct {
	locator  Locator
	provider Provider
	timeout  time.Duration
	country  string
	searches *sched.Latest
}

// NewResolver builds a resolver. timeout bounds device and provider
// calls that the underlying platform does not bound itself;
// searchDebounce is the quiet window for forward-geocode queries.
func NewResolver(locator Locator, provider Provider, timeout, searchDebounce time.Duration, country string) *Resolver {
	return &Resolver{
		locator:  locator,
		provider: provider,
		timeout:  timeout,
		country:  country,
		searches: sched.NewLatest(searchDebounce),
	}
}

// ResolveCurrentPosition asks the device for its coordinates, bounded
// by the resolver timeout so a hung platform callback cannot stall
// the caller forever.
func (r *Resolver) ResolveCurrentPosition(ctx context.Context) (Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	pos, err := r.locator.CurrentPosition(ctx)
	if err != nil {
		return Coordinates{}, normalizeErr(err, ReasonPositionUnavailable)
	}
	return pos, nil
}

// ReverseGeocode resolves coordinates to a human-readable address.
func (r *Resolver) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	addr, err := r.provider.GeocodeLatLng(ctx, lat, lng)
	if err != nil {
		return "", normalizeErr(err, ReasonProvider)
	}
	return addr.Formatted, nil
}

// Search forward-geocodes a free-text query, debounced so that only
// the most recent query within the window is dispatched. The callback
// is invoked at most once: with predictions, with a normalized error,
// or with ErrSuperseded when a newer query overtook this one after it
// was dispatched. A query superseded before its window closed is
// dropped without a callback. Supersession is decided by token
// comparison, not only by transport cancellation, since not every
// provider supports aborting a request.
func (r *Resolver) Search(query string, apply func([]Prediction, error)) {
	token := r.searches.Do(func(ctx context.Context, token string) {
		preds, err := r.provider.Predict(ctx, query, r.country)
		if !r.searches.Current(token) {
			apply(nil, ErrSuperseded)
			return
		}
		if err != nil {
			apply(nil, normalizeErr(err, ReasonProvider))
			return
		}
		apply(preds, nil)
	})
	if token == "" {
		apply(nil, ErrSuperseded)
	}
}

// Close drops any pending or in-flight search.
func (r *Resolver) Close() {
	r.searches.Close()
}
