// Package reactor implements the single-threaded cooperative event loop
// described in spec §5: one goroutine owns all timers and dispatches every
// posted event in the order it arrives. Socket readiness, which the
// original design multiplexes with select()/epoll, is instead produced by
// per-connection reader goroutines that decode frames and Post the result
// as an Event — the loop itself never blocks on I/O, only on waiting for
// the next event or timer deadline (§9 design note).
package reactor

import (
	"context"
	"sync"
	"time"

	"github.com/barriernet/barriernet/internal/logging"
)

var log = logging.L("reactor")

// Event is any value posted to the reactor for dispatch. Handlers type-switch
// on the concrete type to recover what happened (a parsed message, a
// connection lifecycle notice, a worker-pool result, or an external CLI
// action), keeping the reactor itself ignorant of the engine's event
// vocabulary (§5: "Handlers are plain closures or tagged enums keyed off
// the id").
type Event any

// Handler processes one event on the reactor goroutine. It must never
// block: a handler that needs to do blocking I/O should hand the work to a
// worker pool and have the result Post back as a new Event.
type Handler func(Event)

// Reactor is the event loop: one queue of posted events, one timer heap,
// one goroutine.
type Reactor struct {
	handler  Handler
	queue    chan Event
	wheel    *timerWheel
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Reactor with the given event queue depth and handler. The
// handler runs exclusively on the Reactor's own goroutine once Run starts.
func New(handler Handler, queueSize int) *Reactor {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Reactor{
		handler: handler,
		queue:   make(chan Event, queueSize),
		wheel:   newTimerWheel(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Post enqueues an event for dispatch. Safe to call from any goroutine.
// Returns false if the reactor has stopped or the queue is full.
func (r *Reactor) Post(e Event) bool {
	select {
	case <-r.stopCh:
		return false
	default:
	}
	select {
	case r.queue <- e:
		return true
	case <-r.stopCh:
		return false
	default:
		log.Warn("reactor event queue full, event dropped")
		return false
	}
}

// Schedule arranges for fn to run once on the reactor goroutine after delay.
// Scheduling must be called from the reactor goroutine (typically from
// within a Handler or before Run starts); to schedule from another
// goroutine, Post an event whose handler calls Schedule.
func (r *Reactor) Schedule(delay time.Duration, fn func()) TimerID {
	return r.wheel.schedule(time.Now(), delay, 0, fn)
}

// SchedulePeriodic arranges for fn to run repeatedly every period, starting
// after the first period elapses.
func (r *Reactor) SchedulePeriodic(period time.Duration, fn func()) TimerID {
	return r.wheel.schedule(time.Now(), period, period, fn)
}

// Cancel cancels a pending timer. Cancelling an already-fired or unknown
// timer is a no-op (§5: "timers scheduled against a now-dead target are
// skipped at fire time").
func (r *Reactor) Cancel(id TimerID) {
	r.wheel.cancel(id)
}

// Run drives the event loop until ctx is cancelled or Stop is called. It
// returns only after the loop has fully exited, so callers can rely on no
// further handler invocations once Run returns.
func (r *Reactor) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		var timer *time.Timer
		if deadline, ok := r.wheel.nextDeadline(); ok {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-r.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return nil
		case e := <-r.queue:
			if timer != nil {
				timer.Stop()
			}
			r.dispatch(e)
		case now := <-timerChanOrNever(timer):
			r.wheel.fireDue(now)
		}
	}
}

// timerChanOrNever returns t.C, or a channel that never fires when t is nil,
// so the select above can omit the timer case cleanly when no timer is
// pending.
func timerChanOrNever(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (r *Reactor) dispatch(e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("reactor handler panicked", "panic", rec)
		}
	}()
	r.handler(e)
}

// Stop signals the loop to exit at its next opportunity. It does not wait
// for Run to return; callers that need that should select on Done.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Done returns a channel closed once Run has exited.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}
