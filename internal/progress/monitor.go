// Package progress provides the progress and cancellation handle passed to
// long-running saves.
package progress

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the cancellation cause recorded by Monitor.Cancel.
var ErrCancelled = errors.New("cancelled by user")

// Func receives progress updates. Fraction is in [0, 1].
type Func func(fraction float64, message string)

// Monitor reports progress and carries a cooperative cancellation request.
// A nil *Monitor is valid: it never cancels and drops progress.
type Monitor struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	fraction float64
	message  string
	onUpdate Func
}

// New creates a monitor that is also cancelled when parent is done.
func New(parent context.Context) *Monitor {
	ctx, cancel := context.WithCancelCause(parent)
	return &Monitor{ctx: ctx, cancel: cancel}
}

// OnUpdate registers fn to receive progress updates.
func (m *Monitor) OnUpdate(fn Func) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.onUpdate = fn
	m.mu.Unlock()
}

// Cancel requests cancellation. Safe to call more than once.
func (m *Monitor) Cancel() {
	if m == nil {
		return
	}
	m.cancel(ErrCancelled)
}

// Done is closed once cancellation has been requested.
func (m *Monitor) Done() <-chan struct{} {
	if m == nil {
		return nil
	}
	return m.ctx.Done()
}

// Check returns the cancellation cause once cancellation has been requested
// on the monitor or ctx, and nil otherwise.
func (m *Monitor) Check(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
	}
	if m == nil {
		return nil
	}
	if m.ctx.Err() != nil {
		return context.Cause(m.ctx)
	}
	return nil
}

// Set records progress and notifies the registered callback.
func (m *Monitor) Set(fraction float64, message string) {
	if m == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	m.mu.Lock()
	m.fraction = fraction
	m.message = message
	fn := m.onUpdate
	m.mu.Unlock()

	if fn != nil {
		fn(fraction, message)
	}
}

// Progress returns the last recorded progress.
func (m *Monitor) Progress() (float64, string) {
	if m == nil {
		return 0, ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fraction, m.message
}
