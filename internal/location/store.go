package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"storesync/internal/backend"
	"storesync/internal/bus"
	"storesync/internal/domain"
	"storesync/internal/ipinfo"
	"storesync/internal/kv"
	"storesync/internal/sched"
)

// Persister is the remote side of location persistence. Failures are
// telemetry-grade: logged and swallowed, never surfaced to the UI.
type Persister interface {
	StoreLocation(ctx context.Context, token string, up backend.LocationUpload) error
}

// Prober supplies the best-effort IP annotation.
type Prober interface {
	Probe(ctx context.Context) *ipinfo.Result
}

// Options tune the store. Zero values get the observed defaults.
type Options struct {
	// Debounce is the quiet window before a remote persistence call.
	Debounce time.Duration
	// DivergenceThreshold is the degree delta beyond which the IP
	// inference is logged as disagreeing with the device coordinates.
	DivergenceThreshold float64
	// Token supplies the backend session token, empty for guests.
	Token func() string
}

const (
	defaultDebounce  = time.Second
	defaultThreshold = 0.1
)

// Store is the single source of truth for the delivery location. The
// local copy (in-process state plus durable kv) is written
// synchronously and in call order; the server copy trails behind a
// debounced, cancellable, latest-wins persistence call.
type Store struct {
	mu        sync.RWMutex
	store     kv.Store
	persister Persister
	prober    Prober
	broadcast *bus.Bus
	persists  *sched.Latest
	threshold float64
	token     func() string

	lat, lng *float64
	address  string
}

func NewStore(store kv.Store, persister Persister, prober Prober, b *bus.Bus, opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.DivergenceThreshold <= 0 {
		opts.DivergenceThreshold = defaultThreshold
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}
	s := &Store{
		store:     store,
		persister: persister,
		prober:    prober,
		broadcast: b,
		persists:  sched.NewLatest(opts.Debounce),
		threshold: opts.DivergenceThreshold,
		token:     opts.Token,
	}
	s.restore()
	return s
}

// restore loads the last-known location with parse-or-null semantics:
// malformed or missing values yield no coordinates, never an error.
func (s *Store) restore() {
	lat, errLat := s.readFloat(kv.KeyLatitude)
	lng, errLng := s.readFloat(kv.KeyLongitude)
	if errLat == nil && errLng == nil {
		s.lat, s.lng = &lat, &lng
	}
	if addr, err := s.store.Get(kv.KeyAddress); err == nil {
		s.address = addr
	}
}

func (s *Store) readFloat(key string) (float64, error) {
	raw, err := s.store.Get(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(raw, 64)
}

// Current returns the location visible to all readers. It reflects
// the most recent Update immediately, regardless of any remote call
// still in flight.
func (s *Store) Current() domain.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc := domain.Location{Address: s.address}
	if s.lat != nil && s.lng != nil {
		lat, lng := *s.lat, *s.lng
		loc.Latitude, loc.Longitude = &lat, &lng
	}
	return loc
}

// Update applies a new location. Coordinates accept floats or
// numeric-looking strings. The local copy is written before Update
// returns; address is only touched when one is supplied, so a
// coordinate-only update never clears a known address. Remote
// persistence is debounced and latest-wins: each Update cancels the
// pending timer and any in-flight request for a superseded location.
func (s *Store) Update(latitude, longitude interface{}, address ...string) error {
	lat, err := parseCoordinate(latitude)
	if err != nil {
		return fmt.Errorf("latitude: %w", err)
	}
	lng, err := parseCoordinate(longitude)
	if err != nil {
		return fmt.Errorf("longitude: %w", err)
	}

	s.mu.Lock()
	s.lat, s.lng = &lat, &lng
	if err := s.store.Set(kv.KeyLatitude, strconv.FormatFloat(lat, 'f', -1, 64)); err != nil {
		log.Printf("persist latitude locally: %v", err)
	}
	if err := s.store.Set(kv.KeyLongitude, strconv.FormatFloat(lng, 'f', -1, 64)); err != nil {
		log.Printf("persist longitude locally: %v", err)
	}
	if len(address) > 0 && address[0] != "" {
		s.address = address[0]
		if err := s.store.Set(kv.KeyAddress, address[0]); err != nil {
			log.Printf("persist address locally: %v", err)
		}
	}
	s.mu.Unlock()

	if s.broadcast != nil {
		s.broadcast.Publish(domain.TopicLocationChanged)
	}
	s.schedulePersist(lat, lng)
	return nil
}

func (s *Store) schedulePersist(lat, lng float64) {
	s.persists.Do(func(ctx context.Context, _ string) {
		up := backend.LocationUpload{Latitude: lat, Longitude: lng}
		if probe := s.prober.Probe(ctx); probe != nil {
			up.IPAddress = probe.IP
			up.City = probe.City
			up.State = probe.Region
			if probe.Diverges(lat, lng, s.threshold) {
				// Both readings still go up; the backend reconciles.
				log.Printf("ip inference diverges from device coordinates (%f,%f vs %f,%f)",
					probe.Lat, probe.Lon, lat, lng)
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.persister.StoreLocation(ctx, s.token(), up); err != nil {
			log.Printf("store location remotely: %v", err)
		}
	})
}

// Close cancels the pending persistence timer and any in-flight
// request so nothing fires after the store's scope ends.
func (s *Store) Close() {
	s.persists.Close()
}

func parseCoordinate(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing coordinate")
	default:
		return 0, fmt.Errorf("unsupported coordinate type %T", v)
	}
}
