package cart

import (
	"encoding/json"
	"log"
	"sync"

	"storesync/internal/domain"
	"storesync/internal/kv"
)

// Ledger is the durable count-per-item record: the system of record
// for guests and the optimistic cache for authenticated users. It is
// the only writer of the cart key in durable storage.
type Ledger struct {
	mu    sync.Mutex
	store kv.Store
}

func NewLedger(store kv.Store) *Ledger {
	return &Ledger{store: store}
}

// Lines returns the current ledger. A missing or corrupt durable
// value yields an empty ledger, never an error.
func (l *Ledger) Lines() map[string]domain.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// ApplyDelta adds delta to the item's count, creating the line on
// first add and deleting it when the count drops to zero or below.
// The write is synchronous; the returned map is the full updated
// ledger so callers can merge it into their view without re-reading.
func (l *Ledger) ApplyDelta(itemID string, delta int) map[string]domain.CartLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines := l.load()
	current := lines[itemID].Count
	next := current + delta
	if next <= 0 {
		delete(lines, itemID)
	} else {
		lines[itemID] = domain.CartLine{ID: itemID, Count: next}
	}
	l.save(lines)
	return lines
}

// TotalQuantity sums all counts; the guest-side summary quantity.
func (l *Ledger) TotalQuantity() int {
	total := 0
	for _, line := range l.Lines() {
		total += line.Count
	}
	return total
}

// MergeItems attaches ledger counts to a flat catalog list. Items not
// in the ledger keep a zero count. Pure with respect to the input and
// idempotent: counts are assigned, never accumulated.
func (l *Ledger) MergeItems(items []domain.CatalogItem) []domain.CatalogItem {
	lines := l.Lines()
	merged := make([]domain.CatalogItem, len(items))
	for i, item := range items {
		item.Count = lines[item.ID].Count
		merged[i] = item
	}
	return merged
}

// MergeGrouped is MergeItems for a catalog shaped as a map of lists
// keyed by category name.
func (l *Ledger) MergeGrouped(groups map[string][]domain.CatalogItem) map[string][]domain.CatalogItem {
	lines := l.Lines()
	merged := make(map[string][]domain.CatalogItem, len(groups))
	for category, items := range groups {
		out := make([]domain.CatalogItem, len(items))
		for i, item := range items {
			item.Count = lines[item.ID].Count
			out[i] = item
		}
		merged[category] = out
	}
	return merged
}

func (l *Ledger) load() map[string]domain.CartLine {
	lines := make(map[string]domain.CartLine)
	raw, err := l.store.Get(kv.KeyCartItems)
	if err != nil || raw == "" {
		return lines
	}
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return make(map[string]domain.CartLine)
	}
	return lines
}

func (l *Ledger) save(lines map[string]domain.CartLine) {
	raw, err := json.Marshal(lines)
	if err != nil {
		log.Printf("encode cart ledger: %v", err)
		return
	}
	if err := l.store.Set(kv.KeyCartItems, string(raw)); err != nil {
		log.Printf("persist cart ledger: %v", err)
	}
}
