package cart

import (
	"reflect"
	"testing"

	"storesync/internal/domain"
	"storesync/internal/kv"
	"storesync/internal/kv/memory"
)

func TestApplyDelta_FloorsAtAbsence(t *testing.T) {
	ledger := NewLedger(memory.NewStore())

	for i := 0; i < 3; i++ {
		ledger.ApplyDelta("p1", 1)
	}
	lines := ledger.Lines()
	if lines["p1"].Count != 3 || lines["p1"].ID != "p1" {
		t.Fatalf("after three adds, got %+v", lines["p1"])
	}

	ledger.ApplyDelta("p1", -1)
	lines = ledger.ApplyDelta("p1", -1)
	if lines["p1"].Count != 1 {
		t.Fatalf("after two decreases, count = %d, want 1", lines["p1"].Count)
	}

	lines = ledger.ApplyDelta("p1", -1)
	if _, ok := lines["p1"]; ok {
		t.Fatal("line should be absent after decreasing to zero, not retained at zero")
	}

	// Decreasing an absent line stays a no-op, never negative.
	lines = ledger.ApplyDelta("p1", -1)
	if _, ok := lines["p1"]; ok {
		t.Fatal("decreasing an absent line must not create it")
	}
}

func TestApplyDelta_IsDurable(t *testing.T) {
	store := memory.NewStore()
	NewLedger(store).ApplyDelta("p7", 2)

	// A fresh ledger over the same storage sees the line.
	lines := NewLedger(store).Lines()
	if lines["p7"].Count != 2 {
		t.Fatalf("expected durable count 2, got %+v", lines["p7"])
	}
}

func TestLines_CorruptStorageYieldsEmptyLedger(t *testing.T) {
	store := memory.NewStore()
	_ = store.Set(kv.KeyCartItems, "{broken")

	if lines := NewLedger(store).Lines(); len(lines) != 0 {
		t.Fatalf("expected empty ledger, got %v", lines)
	}
}

func TestMergeItems_AttachesCountsIdempotently(t *testing.T) {
	ledger := NewLedger(memory.NewStore())
	ledger.ApplyDelta("p1", 3)

	catalog := []domain.CatalogItem{
		{ID: "p1", Name: "Apples"},
		{ID: "p2", Name: "Bananas"},
	}
	once := ledger.MergeItems(catalog)
	if once[0].Count != 3 {
		t.Fatalf("p1 count = %d, want 3", once[0].Count)
	}
	if once[1].Count != 0 {
		t.Fatalf("p2 count = %d, want 0", once[1].Count)
	}

	twice := ledger.MergeItems(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge is not idempotent: %v vs %v", once, twice)
	}

	// The input slice is untouched.
	if catalog[0].Count != 0 {
		t.Fatal("merge mutated its input")
	}
}

func TestMergeGrouped_SupportsCategoryMap(t *testing.T) {
	ledger := NewLedger(memory.NewStore())
	ledger.ApplyDelta("s1", 2)

	groups := map[string][]domain.CatalogItem{
		"cleaning": {{ID: "s1", Name: "Deep clean"}},
		"grocery":  {{ID: "p1", Name: "Apples"}},
	}
	merged := ledger.MergeGrouped(groups)
	if merged["cleaning"][0].Count != 2 {
		t.Fatalf("s1 count = %d, want 2", merged["cleaning"][0].Count)
	}
	if merged["grocery"][0].Count != 0 {
		t.Fatalf("p1 count = %d, want 0", merged["grocery"][0].Count)
	}
	if !reflect.DeepEqual(merged, ledger.MergeGrouped(merged)) {
		t.Fatal("grouped merge is not idempotent")
	}
}

func TestTotalQuantity(t *testing.T) {
	ledger := NewLedger(memory.NewStore())
	ledger.ApplyDelta("p1", 2)
	ledger.ApplyDelta("p2", 5)
	if got := ledger.TotalQuantity(); got != 7 {
		t.Fatalf("total = %d, want 7", got)
	}
}
