package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storesync/internal/backend"
	"storesync/internal/bus"
	"storesync/internal/cart"
	"storesync/internal/config"
	"storesync/internal/geo"
	apphttp "storesync/internal/http"
	"storesync/internal/ipinfo"
	"storesync/internal/kv"
	filekv "storesync/internal/kv/file"
	memorykv "storesync/internal/kv/memory"
	postgreskv "storesync/internal/kv/postgres"
	rediskv "storesync/internal/kv/redis"
	"storesync/internal/location"
	"storesync/internal/push"
	"storesync/internal/security/secretbox"
	"storesync/internal/session"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	store := openStore(cfg)

	var box *secretbox.Box
	if cfg.SessionEncryptionKey != "" {
		b, err := secretbox.New(cfg.SessionEncryptionKey)
		if err != nil {
			log.Fatalf("session encryption key: %v", err)
		}
		box = b
	}
	sessions := session.NewManager(store, cfg.JWTSecret, box)

	broadcast := bus.New()

	provider := geo.NewProviderClient(cfg.PlacesBaseURL, cfg.PlacesAPIKey, cfg.PlacesTimeout)
	locator := geo.Unavailable
	if cfg.GeolocationURL != "" {
		locator = geo.NewHTTPLocator(cfg.GeolocationURL, cfg.GeolocationTimeout)
	}
	resolver := geo.NewResolver(locator, provider, cfg.GeolocationTimeout, cfg.SearchDebounce, cfg.PlacesCountry)
	defer resolver.Close()

	prober := ipinfo.NewClient(cfg.IPInfoBaseURL, cfg.IPInfoTimeout)
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout,
		cfg.BackendMaxRetries, cfg.BackendRetryBase, cfg.BackendRetryMax)

	locations := location.NewStore(store, backendClient, prober, broadcast, location.Options{
		Debounce:            cfg.PersistDebounce,
		DivergenceThreshold: cfg.DivergenceThreshold,
		Token: func() string {
			token, _ := sessions.Token()
			return token
		},
	})
	defer locations.Close()

	ledger := cart.NewLedger(store)
	coordinator := cart.NewCoordinator(ledger, backendClient, sessions, broadcast)

	ctx, stopPush := context.WithCancel(context.Background())
	if cfg.PushEnabled && cfg.BackendBaseURL != "" {
		stream := push.NewStream(cfg.BackendBaseURL)
		go coordinator.RunPush(ctx, stream, cfg.PushRetryBase, cfg.PushRetryMax)
	}

	srv := apphttp.NewServer(cfg, locations, resolver, ledger, coordinator, sessions, broadcast)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // /events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storesync listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopPush()
	broadcast.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// openStore picks the durable backend, falling back towards memory so
// a broken backend never blocks startup: last-known state is a
// convenience, not a precondition.
func openStore(cfg config.Config) kv.Store {
	switch cfg.KVMode {
	case "postgres":
		if cfg.DatabaseURL != "" {
			st, err := postgreskv.NewStore(cfg.DatabaseURL)
			if err == nil {
				return st
			}
			log.Printf("postgres kv unavailable, falling back to file store: %v", err)
		}
	case "redis":
		if cfg.RedisAddr != "" {
			st, err := rediskv.NewStore(cfg.RedisAddr)
			if err == nil {
				return st
			}
			log.Printf("redis kv unavailable, falling back to file store: %v", err)
		}
	case "memory":
		return memorykv.NewStore()
	}

	st, err := filekv.NewStore(cfg.KVFilePath)
	if err != nil {
		log.Printf("file kv unavailable, falling back to memory store: %v", err)
		return memorykv.NewStore()
	}
	return st
}
