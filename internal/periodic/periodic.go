// Package periodic implements the periodic worker framework (C3): a
// cancellable periodic task wrapper around a user step function, with an
// atomically-swappable state snapshot and on-demand forced-update
// semantics. Grounded on the task-spawn/select-loop shape of the Rust
// original's periodic_component/src/lib.rs, generalized to spec.md §4.3
// (state snapshot, ForceUpdate, control-message coalescing), which
// supersedes that file's simpler shape.
package periodic

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StepFunc advances a periodic's state by one tick. Step is strictly
// CPU/IO-suspending work; the wrapper treats every call as a single
// serialized unit — no two Step invocations for the same Periodic overlap.
type StepFunc[S any] func(ctx context.Context, state S) (S, error)

type controlKind int

const (
	controlUpdate controlKind = iota
	controlForceUpdate
	controlStop
)

type controlMsg struct {
	kind   controlKind
	notify chan struct{}
}

// Periodic wraps a StepFunc into a cancellable periodic task. State() is
// safe to call concurrently with the task's own writes: reads observe the
// most recently written snapshot or a strictly earlier one, never a torn
// value (spec.md §5).
type Periodic[S any] struct {
	name   string
	logger *slog.Logger

	state   atomic.Pointer[S]
	control chan controlMsg
	taskDone chan struct{}

	stopOnce sync.Once
	stopped  atomic.Bool
}

// controlBufferSize bounds how many force-update/stop requests can queue
// before a caller blocks posting one; it is large enough that bursts like
// Testable Property #10 (ten concurrent ForceUpdate calls) never block.
const controlBufferSize = 64

// New performs the wrapper's build-time lifecycle (spec.md §4.3): holds the
// initial state, invokes step once immediately (retaining the initial state
// on error), then spawns the long-lived task loop on the given period.
func New[S any](ctx context.Context, name string, updatePeriod time.Duration, initialState S, step StepFunc[S], logger *slog.Logger) *Periodic[S] {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Periodic[S]{
		name:     name,
		logger:   logger,
		control:  make(chan controlMsg, controlBufferSize),
		taskDone: make(chan struct{}),
	}
	p.state.Store(&initialState)

	if next, err := step(ctx, initialState); err != nil {
		p.logger.Error("initial step failed, retaining initial state", "periodic", name, "error", err)
	} else {
		p.state.Store(&next)
	}

	go p.run(ctx, updatePeriod, step)

	return p
}

// State returns the current state snapshot.
func (p *Periodic[S]) State() S {
	return *p.state.Load()
}

// ForceUpdate posts a ForceUpdate control message and, if timeout is
// non-nil, waits for it to be serviced (success or failure both count) or
// for the timeout to expire — whichever is first. Expiry is logged, not
// returned as an error. A nil timeout returns immediately after posting.
func (p *Periodic[S]) ForceUpdate(ctx context.Context, timeout *time.Duration) error {
	notify := make(chan struct{})
	select {
	case p.control <- controlMsg{kind: controlForceUpdate, notify: notify}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.taskDone:
		return nil
	}

	if timeout == nil {
		return nil
	}

	timer := time.NewTimer(*timeout)
	defer timer.Stop()

	select {
	case <-notify:
		return nil
	case <-timer.C:
		p.logger.Warn("force update timed out", "periodic", p.name, "timeout", *timeout)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy posts Stop and awaits the task's exit. It is idempotent: calling
// it a second time on an already-stopped Periodic is a no-op.
func (p *Periodic[S]) Destroy(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		select {
		case p.control <- controlMsg{kind: controlStop}:
		case <-p.taskDone:
			// Task already exited on its own; nothing to post to.
			return
		}
		<-p.taskDone
	})
	return nil
}

// run is the task loop: wait on either a ticker tick or a control message,
// drain and coalesce any further pending messages, then perform shutdown or
// exactly one Step invocation.
func (p *Periodic[S]) run(ctx context.Context, updatePeriod time.Duration, step StepFunc[S]) {
	defer close(p.taskDone)

	ticker := time.NewTicker(updatePeriod)
	defer ticker.Stop()

	for {
		var woke controlMsg
		select {
		case <-ticker.C:
			woke = controlMsg{kind: controlUpdate}
		case woke = <-p.control:
		case <-ctx.Done():
			return
		}

		stopRequested := woke.kind == controlStop
		var notifies []chan struct{}
		if woke.kind == controlForceUpdate {
			notifies = append(notifies, woke.notify)
		}

	drain:
		for {
			select {
			case extra := <-p.control:
				if extra.kind == controlStop {
					stopRequested = true
				}
				if extra.kind == controlForceUpdate {
					notifies = append(notifies, extra.notify)
				}
			default:
				break drain
			}
		}

		if stopRequested {
			for _, n := range notifies {
				close(n)
			}
			return
		}

		next, err := step(ctx, p.State())
		if err != nil {
			p.logger.Error("periodic step failed", "periodic", p.name, "error", err)
		} else {
			p.state.Store(&next)
		}

		for _, n := range notifies {
			close(n)
		}
	}
}
