package memory

import (
	"errors"
	"testing"

	"storesync/internal/kv"
)

func TestSetGetDelete(t *testing.T) {
	store := NewStore()

	if _, err := store.Get("missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := store.Set("sessionToken", "tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get("sessionToken")
	if err != nil || got != "tok-1" {
		t.Fatalf("get = %q, %v", got, err)
	}

	if err := store.Delete("sessionToken"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get("sessionToken"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
