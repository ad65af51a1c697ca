package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storesync/internal/bus"
	"storesync/internal/cart"
	"storesync/internal/config"
	"storesync/internal/domain"
	"storesync/internal/geo"
	"storesync/internal/location"
	"storesync/internal/session"
)

// Server is the local API the storefront UI surfaces talk to. Every
// mutating endpoint funnels into the location store or the cart
// coordinator; /events re-broadcasts their change notifications so
// independently mounted components stay in sync without references
// to each other.
type Server struct {
	cfg         config.Config
	locations   *location.Store
	resolver    *geo.Resolver
	ledger      *cart.Ledger
	coordinator *cart.Coordinator
	sessions    *session.Manager
	broadcast   *bus.Bus
}

func NewServer(
	cfg config.Config,
	locations *location.Store,
	resolver *geo.Resolver,
	ledger *cart.Ledger,
	coordinator *cart.Coordinator,
	sessions *session.Manager,
	broadcast *bus.Bus,
) *Server {
	return &Server{
		cfg:         cfg,
		locations:   locations,
		resolver:    resolver,
		ledger:      ledger,
		coordinator: coordinator,
		sessions:    sessions,
		broadcast:   broadcast,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/location", s.handleGetLocation)
	r.Post("/location", s.handleUpdateLocation)
	r.Post("/location/resolve", s.handleResolveLocation)
	r.Get("/places/search", s.handlePlacesSearch)

	r.Get("/cart", s.handleGetCart)
	r.Post("/cart/items", s.handleCartAdd)
	r.Get("/cart/summary", s.handleCartSummary)
	r.Post("/catalog/merge", s.handleCatalogMerge)

	r.Put("/session", s.handleSetSession)
	r.Delete("/session", s.handleClearSession)

	r.Get("/events", s.handleEvents)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.locations.Current())
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  interface{} `json:"latitude"`
		Longitude interface{} `json:"longitude"`
		Address   string      `json:"address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var err error
	if req.Address != "" {
		err = s.locations.Update(req.Latitude, req.Longitude, req.Address)
	} else {
		err = s.locations.Update(req.Latitude, req.Longitude)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.locations.Current())
}

// handleResolveLocation drives the "use current location" flow:
// device position, then reverse geocode, then a store update. Device
// or provider failures come back as a reason tag the UI branches on
// to offer manual selection; they are never 5xx surprises.
func (s *Server) handleResolveLocation(w http.ResponseWriter, r *http.Request) {
	pos, err := s.resolver.ResolveCurrentPosition(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"resolved": false,
			"reason":   geo.ReasonOf(err),
		})
		return
	}

	address, err := s.resolver.ReverseGeocode(r.Context(), pos.Lat, pos.Lng)
	if err != nil {
		// Coordinates are still good; the address can arrive later.
		if uerr := s.locations.Update(pos.Lat, pos.Lng); uerr != nil {
			writeError(w, http.StatusInternalServerError, uerr.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"resolved":       true,
			"address_reason": geo.ReasonOf(err),
			"location":       s.locations.Current(),
		})
		return
	}

	if err := s.locations.Update(pos.Lat, pos.Lng, address); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resolved": true,
		"location": s.locations.Current(),
	})
}

func (s *Server) handlePlacesSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	type outcome struct {
		predictions []geo.Prediction
		err         error
	}
	done := make(chan outcome, 1)
	s.resolver.Search(query, func(predictions []geo.Prediction, err error) {
		done <- outcome{predictions: predictions, err: err}
	})

	// Keystrokes arrive as separate requests; a request whose query
	// was superseded inside the debounce window never gets a
	// callback, so bound the wait.
	bound := time.NewTimer(s.cfg.SearchDebounce + s.cfg.PlacesTimeout + time.Second)
	defer bound.Stop()

	select {
	case out := <-done:
		if errors.Is(out.err, geo.ErrSuperseded) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"superseded": true})
			return
		}
		if out.err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"predictions": []geo.Prediction{},
				"reason":      geo.ReasonOf(out.err),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": out.predictions})
	case <-bound.C:
		writeJSON(w, http.StatusOK, map[string]interface{}{"superseded": true})
	case <-r.Context().Done():
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": s.ledger.Lines()})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   string `json:"item_id"`
		ItemType string `json:"item_type"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	if req.ItemType == "" {
		req.ItemType = string(domain.ItemTypeProduct)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	lines, err := s.coordinator.Add(r.Context(), req.ItemID, domain.ItemType(req.ItemType), req.Quantity)
	if errors.Is(err, cart.ErrAuthRequired) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": "authentication required",
			"code":  "auth_required",
		})
		return
	}
	resp := map[string]interface{}{
		"items":  lines,
		"synced": err == nil,
	}
	if err != nil {
		resp["sync_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCartSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.coordinator.Summary(r.Context())
	resp := map[string]interface{}{"summary": summary}
	if err != nil {
		resp["stale"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCatalogMerge accepts either a flat item list or a map of
// lists keyed by category name and returns it with ledger counts
// attached, so a returning guest sees previous quantities without a
// server round trip.
func (s *Server) handleCatalogMerge(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var items []domain.CatalogItem
	if err := json.Unmarshal(raw, &items); err == nil {
		writeJSON(w, http.StatusOK, s.ledger.MergeItems(items))
		return
	}
	var groups map[string][]domain.CatalogItem
	if err := json.Unmarshal(raw, &groups); err == nil {
		writeJSON(w, http.StatusOK, s.ledger.MergeGrouped(groups))
		return
	}
	writeError(w, http.StatusBadRequest, "catalog must be an item list or a map of item lists")
}

func (s *Server) handleSetSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sessions.Set(req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleEvents streams bus broadcasts as server-sent events. Frames
// carry only topic and id; consumers re-read the endpoints that own
// the state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := s.broadcast.Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
