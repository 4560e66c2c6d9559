package rate

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLimiterClosed = errors.New("rate limiter closed")
	ErrInvalidPolicy = errors.New("invalid rate policy")
)

// Limiter lets at most maxCalls actions start per fixed window. The window
// starts when the first call of a fresh window is admitted and resets lazily
// once interval has elapsed. Callers over quota wait in FIFO order.
type Limiter struct {
	interval time.Duration
	maxCalls int

	mu          sync.Mutex
	calls       int
	windowStart time.Time
	queue       *list.List
	timer       *time.Timer
	closed      bool

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

type waiter struct {
	ready chan error
	elem  *list.Element
}

func NewLimiter(interval time.Duration, maxCalls int) (*Limiter, error) {
	if interval <= 0 || maxCalls <= 0 {
		return nil, ErrInvalidPolicy
	}
	return &Limiter{
		interval:  interval,
		maxCalls:  maxCalls,
		queue:     list.New(),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}, nil
}

// Acquire blocks until the caller may start its action. A caller whose
// context ends while queued leaves the queue without consuming a slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLimiterClosed
	}
	l.resetWindowLocked()
	if l.queue.Len() == 0 && l.calls < l.maxCalls {
		l.admitLocked()
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan error, 1)}
	w.elem = l.queue.PushBack(w)
	l.scheduleLocked()
	l.mu.Unlock()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		l.mu.Lock()
		if w.elem != nil {
			l.queue.Remove(w.elem)
			w.elem = nil
			l.mu.Unlock()
			return ctx.Err()
		}
		l.mu.Unlock()
		// Admitted concurrently with cancellation; the slot is spent.
		<-w.ready
		return ctx.Err()
	}
}

// Pending returns the number of queued callers.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Close releases queued callers with ErrLimiterClosed and rejects new ones.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	for e := l.queue.Front(); e != nil; e = l.queue.Front() {
		w := l.queue.Remove(e).(*waiter)
		w.elem = nil
		w.ready <- ErrLimiterClosed
	}
}

func (l *Limiter) resetWindowLocked() {
	if l.windowStart.IsZero() || l.now().Sub(l.windowStart) >= l.interval {
		l.calls = 0
		l.windowStart = time.Time{}
	}
}

func (l *Limiter) admitLocked() {
	if l.calls == 0 {
		l.windowStart = l.now()
	}
	l.calls++
}

func (l *Limiter) scheduleLocked() {
	if l.timer != nil || l.queue.Len() == 0 {
		return
	}
	wait := l.interval
	if !l.windowStart.IsZero() {
		wait = l.interval - l.now().Sub(l.windowStart)
	}
	if wait < 0 {
		wait = 0
	}
	l.timer = l.afterFunc(wait, l.onTimer)
}

func (l *Limiter) onTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timer = nil
	if l.closed {
		return
	}
	l.resetWindowLocked()
	for l.calls < l.maxCalls && l.queue.Len() > 0 {
		w := l.queue.Remove(l.queue.Front()).(*waiter)
		w.elem = nil
		l.admitLocked()
		w.ready <- nil
	}
	l.scheduleLocked()
}

// Run waits for a slot on l and then invokes action.
func Run[T any](ctx context.Context, l *Limiter, action func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := l.Acquire(ctx); err != nil {
		return zero, err
	}
	return action(ctx)
}
