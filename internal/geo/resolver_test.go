package geo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu       sync.Mutex
	queries  []string
	preds    []Prediction
	predErr  error
	address  Address
	geoErr   error
	predWait time.Duration
}

func (f *fakeProvider) Predict(ctx context.Context, input, countryFilter string) ([]Prediction, error) {
	f.mu.Lock()
	f.queries = append(f.queries, input)
	f.mu.Unlock()
	if f.predWait > 0 {
		select {
		case <-time.After(f.predWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.preds, f.predErr
}

func (f *fakeProvider) GeocodeLatLng(ctx context.Context, lat, lng float64) (Address, error) {
	return f.address, f.geoErr
}

func (f *fakeProvider) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

func newTestResolver(t *testing.T, locator Locator, provider Provider) *Resolver {
	t.Helper()
	r := NewResolver(locator, provider, time.Second, 20*time.Millisecond, "in")
	t.Cleanup(r.Close)
	return r
}

func TestSearch_OnlyLastQueryInWindowIsDispatched(t *testing.T) {
	provider := &fakeProvider{preds: []Prediction{{Description: "Koramangala, Bengaluru", PlaceID: "pl-1"}}}
	r := newTestResolver(t, Unavailable, provider)

	results := make(chan []Prediction, 1)
	r.Search("kor", func([]Prediction, error) { t.Error("superseded query dispatched") })
	r.Search("kora", func([]Prediction, error) { t.Error("superseded query dispatched") })
	r.Search("koramangala", func(preds []Prediction, err error) {
		if err != nil {
			t.Errorf("search: %v", err)
		}
		results <- preds
	})

	select {
	case preds := <-results:
		if len(preds) != 1 || preds[0].PlaceID != "pl-1" {
			t.Fatalf("got %v", preds)
		}
	case <-time.After(time.Second):
		t.Fatal("search callback never fired")
	}

	if got := provider.recorded(); len(got) != 1 || got[0] != "koramangala" {
		t.Fatalf("provider saw %v, want only the last query", got)
	}
}

func TestSearch_StaleResultDiscardedByToken(t *testing.T) {
	provider := &fakeProvider{predWait: 60 * time.Millisecond}
	r := newTestResolver(t, Unavailable, provider)

	superseded := make(chan error, 1)
	r.Search("first", func(_ []Prediction, err error) { superseded <- err })

	// Wait until the first query is actually in flight, then overtake it.
	deadline := time.Now().Add(time.Second)
	for len(provider.recorded()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first query never dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	done := make(chan struct{}, 1)
	r.Search("second", func([]Prediction, error) { done <- struct{}{} })

	select {
	case err := <-superseded:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("overtaken query's callback never fired")
	}
	<-done
}

// With a zero debounce window the query dispatches on the timer
// goroutine concurrently with Search returning; the live token must
// come from the scheduler itself, so the uncontested query still
// resolves rather than being misread as superseded.
func TestSearch_ZeroWindowDispatchSeesOwnToken(t *testing.T) {
	provider := &fakeProvider{preds: []Prediction{{Description: "Indiranagar, Bengaluru", PlaceID: "pl-2"}}}
	r := NewResolver(Unavailable, provider, time.Second, 0, "in")
	defer r.Close()

	for i := 0; i < 20; i++ {
		results := make(chan error, 1)
		r.Search("indiranagar", func(preds []Prediction, err error) {
			if err == nil && len(preds) != 1 {
				err = errors.New("missing predictions")
			}
			results <- err
		})
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("uncontested search failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("search callback never fired")
		}
	}
}

func TestResolveCurrentPosition_NormalizesDeviceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason Reason
	}{
		{"denied", ErrPermissionDenied, ReasonPermissionDenied},
		{"unavailable", ErrPositionUnavailable, ReasonPositionUnavailable},
		{"timeout", context.DeadlineExceeded, ReasonTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			locator := LocatorFunc(func(ctx context.Context) (Coordinates, error) {
				return Coordinates{}, tc.err
			})
			r := newTestResolver(t, locator, &fakeProvider{})
			_, err := r.ResolveCurrentPosition(context.Background())
			if ReasonOf(err) != tc.reason {
				t.Fatalf("reason = %q, want %q", ReasonOf(err), tc.reason)
			}
		})
	}
}

func TestResolveCurrentPosition_BoundsHungLocator(t *testing.T) {
	locator := LocatorFunc(func(ctx context.Context) (Coordinates, error) {
		<-ctx.Done()
		return Coordinates{}, ctx.Err()
	})
	r := NewResolver(locator, &fakeProvider{}, 30*time.Millisecond, 20*time.Millisecond, "in")
	defer r.Close()

	start := time.Now()
	_, err := r.ResolveCurrentPosition(context.Background())
	if ReasonOf(err) != ReasonTimeout {
		t.Fatalf("reason = %q, want timeout", ReasonOf(err))
	}
	if time.Since(start) > time.Second {
		t.Fatal("hung locator stalled the caller")
	}
}

func TestReverseGeocode_ReturnsFormattedAddress(t *testing.T) {
	provider := &fakeProvider{address: Address{Formatted: "MG Road, Bengaluru"}}
	r := newTestResolver(t, Unavailable, provider)

	addr, err := r.ReverseGeocode(context.Background(), 12.97, 77.59)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if addr != "MG Road, Bengaluru" {
		t.Fatalf("got %q", addr)
	}
}

func TestComponentNamed(t *testing.T) {
	addr := Address{Components: []Component{
		{Types: []string{"locality", "political"}, LongName: "Bengaluru"},
		{Types: []string{"administrative_area_level_1"}, LongName: "Karnataka"},
	}}
	if got := addr.ComponentNamed("locality"); got != "Bengaluru" {
		t.Fatalf("locality = %q", got)
	}
	if got := addr.ComponentNamed("country"); got != "" {
		t.Fatalf("missing component should be empty, got %q", got)
	}
}
