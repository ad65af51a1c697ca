package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_CoalescesBurstIntoLastTask(t *testing.T) {
	l := NewLatest(30 * time.Millisecond)
	defer l.Close()

	var ran int32
	var got atomic.Value
	for _, name := range []string{"a", "b", "c"} {
		name := name
		l.Do(func(ctx context.Context, _ string) {
			atomic.AddInt32(&ran, 1)
			got.Store(name)
		})
		time.Sleep(5 * time.Millisecond)
	}

	l.Wait()
	if n := atomic.LoadInt32(&ran); n != 1 {
		t.Fatalf("expected exactly one execution, got %d", n)
	}
	if got.Load() != "c" {
		t.Fatalf("expected last task to run, got %v", got.Load())
	}
}

func TestDo_CancelsInFlightTaskOnSupersession(t *testing.T) {
	l := NewLatest(5 * time.Millisecond)
	defer l.Close()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	l.Do(func(ctx context.Context, _ string) {
		close(started)
		select {
		case <-ctx.Done():
			close(cancelled)
		case <-time.After(2 * time.Second):
		}
	})

	<-started
	l.Do(func(ctx context.Context, _ string) {})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded task's context was not cancelled")
	}
	l.Wait()
}

func TestCurrent_TracksLatestToken(t *testing.T) {
	l := NewLatest(50 * time.Millisecond)
	defer l.Close()

	first := l.Do(func(ctx context.Context, _ string) {})
	second := l.Do(func(ctx context.Context, _ string) {})

	if l.Current(first) {
		t.Fatal("superseded token reported as current")
	}
	if !l.Current(second) {
		t.Fatal("latest token not reported as current")
	}
	l.Wait()
}

// The scheduler hands the task its own token; tasks must not read the
// caller's copy of Do's return value, which is written concurrently
// with a zero quiet window.
func TestDo_TaskReceivesOwnTokenWithoutCallerHandoff(t *testing.T) {
	l := NewLatest(0)
	defer l.Close()

	current := make(chan bool, 1)
	l.Do(func(ctx context.Context, token string) {
		current <- l.Current(token)
	})

	select {
	case ok := <-current:
		if !ok {
			t.Fatal("task's own token not reported as current")
		}
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	l.Wait()
}

func TestClose_DropsPendingTask(t *testing.T) {
	l := NewLatest(20 * time.Millisecond)

	var ran int32
	l.Do(func(ctx context.Context, _ string) {
		atomic.AddInt32(&ran, 1)
	})
	l.Close()
	l.Wait()

	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("pending task ran after Close")
	}
	if token := l.Do(func(ctx context.Context, _ string) {}); token != "" {
		t.Fatal("Do after Close should return an empty token")
	}
}

func TestCancel_DropsPendingWithoutClosing(t *testing.T) {
	l := NewLatest(20 * time.Millisecond)
	defer l.Close()

	var ran int32
	l.Do(func(ctx context.Context, _ string) { atomic.AddInt32(&ran, 1) })
	l.Cancel()
	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("cancelled task still ran")
	}

	l.Do(func(ctx context.Context, _ string) { atomic.AddInt32(&ran, 1) })
	l.Wait()
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("scheduler unusable after Cancel")
	}
}
