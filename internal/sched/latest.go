package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Latest coalesces bursts of calls into one execution of the most
// recent task after a quiet window. Every Do supersedes the previous
// one: the pending timer is stopped and any in-flight task's context
// is cancelled, so a stale result can never land after a fresher one.
type Latest struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
	cancel context.CancelFunc
	token  string
	closed bool
	done   sync.WaitGroup
}

func NewLatest(window time.Duration) *Latest {
	return &Latest{window: window}
}

// Do schedules task to run after the quiet window, replacing whatever
// was scheduled or running before. The token identifying this call is
// passed to the task and returned; it is assigned under the lock
// before the timer is armed, so the task may compare it against
// Current without racing the caller. Checking inside the task matters
// when the transport cannot be cancelled: a stale completion is
// detected by the token no longer being current.
func (l *Latest) Do(task func(ctx context.Context, token string)) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ""
	}
	l.supersedeLocked()
	token := uuid.NewString()
	l.token = token
	l.done.Add(1)
	l.timer = time.AfterFunc(l.window, func() {
		defer l.done.Done()
		l.run(token, task)
	})
	return token
}

// Current reports whether token belongs to the most recent Do call.
// Callers use it to discard results from superseded work when the
// underlying transport cannot be cancelled.
func (l *Latest) Current(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && token != "" && token == l.token
}

// Cancel drops any pending or in-flight task without scheduling a
// replacement.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supersedeLocked()
	l.token = ""
}

// Close cancels outstanding work and rejects further Do calls.
func (l *Latest) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.supersedeLocked()
	l.mu.Unlock()
}

// Wait blocks until all fired timers have returned. Test helper; the
// production teardown path is Close.
func (l *Latest) Wait() {
	l.done.Wait()
}

func (l *Latest) supersedeLocked() {
	if l.timer != nil {
		if l.timer.Stop() {
			// Timer never fired, so its done.Done deferred in the
			// AfterFunc body will not run.
			l.done.Done()
		}
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Latest) run(token string, task func(ctx context.Context, token string)) {
	l.mu.Lock()
	if l.closed || l.token != token {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	task(ctx, token)

	l.mu.Lock()
	if l.token == token && l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()
}
