package push

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storesync/internal/domain"
)

func TestRun_DeliversPushedSummaries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart/stream" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: {\"totalQuantity\":2,\"totalAmount\":80}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"totalQuantity\":3,\"totalAmount\":120}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	var got []domain.CartSummary
	err := NewStream(srv.URL).Run(context.Background(), "tok", func(s domain.CartSummary) {
		got = append(got, s)
	})
	if err == nil {
		t.Fatal("Run must report why the stream ended")
	}
	if len(got) != 2 {
		t.Fatalf("delivered %d summaries, want 2 (malformed frame skipped)", len(got))
	}
	if got[1].TotalQuantity != 3 || got[1].TotalAmount != 120 {
		t.Fatalf("got %+v", got[1])
	}
}

func TestRun_ContextCancellationEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewStream(srv.URL).Run(ctx, "tok", func(domain.CartSummary) {})
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not end on context cancellation")
	}
}

func TestRun_ErrorStatusIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewStream(srv.URL).Run(context.Background(), "tok", func(domain.CartSummary) {}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
