package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storesync/internal/backend"
	"storesync/internal/bus"
	"storesync/internal/domain"
)

// ErrAuthRequired is a deliberate, distinguishable outcome, not a
// transport failure: the caller must present login, not retry.
var ErrAuthRequired = errors.New("authentication required")

// RemoteCart is the backend's cart surface. The coordinator is its
// only caller; UI components never talk to the server cart directly.
type RemoteCart interface {
	AddToCart(ctx context.Context, token string, add backend.CartAdd) error
	CartSummary(ctx context.Context, token string) (domain.CartSummary, error)
}

// TokenSource reports whether a usable session token is held.
type TokenSource interface {
	Valid() (string, bool)
}

// PushStream is the optional server-push side of the cart. Errors
// from it only ever degrade to pull-based refresh.
type PushStream interface {
	Run(ctx context.Context, token string, onSummary func(domain.CartSummary)) error
}

// Coordinator reconciles ledger mutations with the server cart and
// broadcasts change notifications so every mounted surface re-derives
// its view from the same source of truth.
type Coordinator struct {
	ledger    *Ledger
	remote    RemoteCart
	sessions  TokenSource
	broadcast *bus.Bus

	mu      sync.Mutex
	summary *domain.CartSummary
}

func NewCoordinator(ledger *Ledger, remote RemoteCart, sessions TokenSource, b *bus.Bus) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		remote:    remote,
		sessions:  sessions,
		broadcast: b,
	}
}

// Add applies quantityDelta for the item: ledger first (optimistic),
// then the remote mutation. A remote failure does not roll back the
// local change; it only skips the authoritative summary refresh, and
// the error is returned alongside the updated ledger so callers can
// tell the user. Exactly one cart-changed event is broadcast per Add.
func (c *Coordinator) Add(ctx context.Context, itemID string, itemType domain.ItemType, quantityDelta int) (map[string]domain.CartLine, error) {
	token, ok := c.sessions.Valid()
	if !ok {
		return nil, ErrAuthRequired
	}

	add := backend.CartAdd{Quantity: quantityDelta}
	switch itemType {
	case domain.ItemTypeService:
		add.ServiceID = itemID
	case domain.ItemTypeProduct:
		add.ProductID = itemID
	default:
		// Rejected before the ledger is touched; a bad type must not
		// leave a guest-visible line or fire a change event.
		return nil, fmt.Errorf("unknown item type %q", itemType)
	}

	lines := c.ledger.ApplyDelta(itemID, quantityDelta)
	defer c.broadcast.Publish(domain.TopicCartChanged)

	if err := c.remote.AddToCart(ctx, token, add); err != nil {
		// Optimistic local state stands; the next refresh (explicit,
		// pushed, or next mount) reconciles.
		log.Printf("remote cart mutation failed: %v", err)
		return lines, fmt.Errorf("sync cart: %w", err)
	}

	if summary, err := c.remote.CartSummary(ctx, token); err != nil {
		log.Printf("cart summary refresh failed: %v", err)
	} else {
		c.setSummary(summary)
	}
	return lines, nil
}

// Summary returns the authoritative summary for authenticated users
// and the ledger-derived one (zero amount) for guests.
func (c *Coordinator) Summary(ctx context.Context) (domain.CartSummary, error) {
	token, ok := c.sessions.Valid()
	if !ok {
		return domain.CartSummary{TotalQuantity: c.ledger.TotalQuantity()}, nil
	}
	summary, err := c.remote.CartSummary(ctx, token)
	if err != nil {
		// Degrade to the last authoritative value, then to the local
		// derivation. Stale-but-present beats blocking.
		if cached, ok := c.cachedSummary(); ok {
			return cached, nil
		}
		return domain.CartSummary{TotalQuantity: c.ledger.TotalQuantity()}, err
	}
	c.setSummary(summary)
	return summary, nil
}

// RunPush consumes the optional per-user push channel, republishing
// every pushed summary as a cart-changed event. It reconnects with
// backoff and returns only when ctx is done. Pull-based refresh keeps
// working regardless, so the UI never depends on push alone.
func (c *Coordinator) RunPush(ctx context.Context, stream PushStream, retryBase, retryMax time.Duration) {
	backoff := retryBase
	for {
		token, ok := c.sessions.Valid()
		if ok {
			err := stream.Run(ctx, token, func(summary domain.CartSummary) {
				c.setSummary(summary)
				c.broadcast.Publish(domain.TopicCartChanged)
				backoff = retryBase
			})
			if ctx.Err() == nil {
				log.Printf("cart push channel: %v (falling back to pull refresh)", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > retryMax {
			backoff = retryMax
		}
	}
}

func (c *Coordinator) setSummary(summary domain.CartSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = &summary
}

func (c *Coordinator) cachedSummary() (domain.CartSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return domain.CartSummary{}, false
	}
	return *c.summary, true
}
