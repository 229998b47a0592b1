package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WatchdogState is the life cycle of a watchdog.
type WatchdogState uint8

const (
	// WatchdogInProgress waits for a response.
	WatchdogInProgress WatchdogState = iota
	// WatchdogCompleted received its response.
	WatchdogCompleted
	// WatchdogExpired gave up waiting.
	WatchdogExpired
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogInProgress:
		return "IN_PROGRESS"
	case WatchdogCompleted:
		return "COMPLETED"
	case WatchdogExpired:
		return "EXPIRED"
	}
	return fmt.Sprintf("WatchdogState(%d)", uint8(s))
}

// Watchdog lets the sender of a message wait for the response with the same
// correlation id. It leaves IN_PROGRESS exactly once.
type Watchdog struct {
	request Message
	sentAt  time.Time

	mu       sync.Mutex
	state    WatchdogState
	claimed  bool
	response Message
	cause    error
	done     chan struct{}
}

func newWatchdog(request Message, claimed bool) *Watchdog {
	return &Watchdog{
		request: request,
		sentAt:  time.Now(),
		claimed: claimed,
		done:    make(chan struct{}),
	}
}

// CorrelationID returns the correlation id the watchdog waits for.
func (w *Watchdog) CorrelationID() string {
	return w.request.CorrelationID
}

// State returns the current watchdog state.
func (w *Watchdog) State() WatchdogState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// claim makes the caller the only one to consume the watchdog. It succeeds once.
func (w *Watchdog) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.claimed {
		return false
	}
	w.claimed = true
	return true
}

// complete stores the response: IN_PROGRESS -> COMPLETED.
func (w *Watchdog) complete(response Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WatchdogInProgress {
		return false
	}
	w.state = WatchdogCompleted
	w.response = response
	close(w.done)
	return true
}

// expire gives up waiting: IN_PROGRESS -> EXPIRED.
func (w *Watchdog) expire(cause error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WatchdogInProgress {
		return false
	}
	w.state = WatchdogExpired
	w.cause = cause
	close(w.done)
	return true
}

// wait blocks until the watchdog completes or expires. When ctx ends first
// the watchdog is expired with timeout as its cause.
func (w *Watchdog) wait(ctx context.Context, timeout error) (Message, error) {
	select {
	case <-w.done:
	case <-ctx.Done():
		w.expire(fmt.Errorf("%w: %w", timeout, ctx.Err()))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatchdogCompleted {
		return w.response, nil
	}
	return Message{}, w.cause
}

// watchdogs maps correlation ids to in-flight watchdogs.
type watchdogs struct {
	m sync.Map
}

// register adds a watchdog for request, already claimed by the caller when
// claimed is true. It returns false if the correlation id is already in
// flight and leaves that registration untouched.
func (ws *watchdogs) register(request Message, claimed bool) (*Watchdog, bool) {
	w := newWatchdog(request, claimed)
	if _, loaded := ws.m.LoadOrStore(request.CorrelationID, w); loaded {
		return nil, false
	}
	return w, true
}

func (ws *watchdogs) lookup(correlationID string) (*Watchdog, bool) {
	v, ok := ws.m.Load(correlationID)
	if !ok {
		return nil, false
	}
	return v.(*Watchdog), true
}

// remove deletes w unless the id was registered again since.
func (ws *watchdogs) remove(w *Watchdog) {
	ws.m.CompareAndDelete(w.CorrelationID(), w)
}

// clear removes every watchdog and returns the removed ones.
func (ws *watchdogs) clear() []*Watchdog {
	var removed []*Watchdog
	ws.m.Range(func(key, v any) bool {
		if ws.m.CompareAndDelete(key, v) {
			removed = append(removed, v.(*Watchdog))
		}
		return true
	})
	return removed
}

func (ws *watchdogs) len() int {
	n := 0
	ws.m.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
