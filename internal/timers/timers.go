package timers

import (
	"context"
	"sync"
	"time"

	"github.com/alarmd/alarmd/internal/clock"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// ExactFunc is called when the main timer expires or a past-due entry is
// replayed. FireNow invokes it synchronously on the caller's goroutine;
// expired timers invoke it through the submit function.
type ExactFunc func(ctx context.Context, id int, entryType scheduler.Type)

// InexactFunc is called when a low-priority per-alarm timer expires.
type InexactFunc func(ctx context.Context, id int)

// AfterFuncTimer implements the platform timer pair on top of
// time.AfterFunc. One exact timer plus any number of per-alarm inexact
// timers may be armed at once.
type AfterFuncTimer struct {
	// clock supplies "now" for delay computation.
	clock clock.Clock
	// submit serializes expiry callbacks onto the owner's event loop.
	submit func(fn func(ctx context.Context))
	// onExact consumes main timer expiries.
	onExact ExactFunc
	// onInexact consumes low-priority timer expiries.
	onInexact InexactFunc

	mu sync.Mutex
	// exact is the single armed main timer, nil when disarmed.
	exact *time.Timer
	// exactSeq invalidates callbacks from timers that were re-armed or
	// disarmed after their AfterFunc already fired.
	exactSeq uint64
	// inexact holds per-alarm low-priority timers keyed by alarm id.
	inexact map[int]*time.Timer
	// inexactSeq mirrors exactSeq for the per-alarm timers.
	inexactSeq map[int]uint64
}

// New creates an in-process timer pair. Expired timers deliver their
// callbacks through submit; FireNow bypasses it.
func New(clk clock.Clock, submit func(fn func(ctx context.Context)), onExact ExactFunc, onInexact InexactFunc) *AfterFuncTimer {
	return &AfterFuncTimer{
		clock:      clk,
		submit:     submit,
		onExact:    onExact,
		onInexact:  onInexact,
		inexact:    make(map[int]*time.Timer),
		inexactSeq: make(map[int]uint64),
	}
}

// ArmExact points the main timer at the provided instant, replacing any
// previously armed one. An in-process timer has no permission model, so the
// returned error is always nil.
func (t *AfterFuncTimer) ArmExact(ctx context.Context, id int, entryType scheduler.Type, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exact != nil {
		t.exact.Stop()
	}

	t.exactSeq++
	seq := t.exactSeq

	delay := at.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}

	logger.DebugKV(ctx, "Arming exact timer", "alarm_id", id, "type", entryType.String(), "at", at)

	t.exact = time.AfterFunc(delay, func() {
		t.submit(func(ctx context.Context) {
			t.mu.Lock()
			stale := seq != t.exactSeq
			if !stale {
				t.exact = nil
			}
			t.mu.Unlock()

			if stale {
				return
			}

			t.onExact(ctx, id, entryType)
		})
	})

	return nil
}

// Disarm clears the main timer.
func (t *AfterFuncTimer) Disarm(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exact == nil {
		return
	}

	t.exact.Stop()
	t.exact = nil
	t.exactSeq++

	logger.DebugKV(ctx, "Disarmed exact timer")
}

// ArmInexact points the low-priority timer for the alarm at the instant,
// replacing any previously armed one for the same alarm.
func (t *AfterFuncTimer) ArmInexact(ctx context.Context, id int, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.inexact[id]; ok {
		prev.Stop()
	}

	t.inexactSeq[id]++
	seq := t.inexactSeq[id]

	delay := at.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}

	logger.DebugKV(ctx, "Arming inexact timer", "alarm_id", id, "at", at)

	t.inexact[id] = time.AfterFunc(delay, func() {
		t.submit(func(ctx context.Context) {
			t.mu.Lock()
			stale := seq != t.inexactSeq[id]
			if !stale {
				delete(t.inexact, id)
			}
			t.mu.Unlock()

			if stale {
				return
			}

			t.onInexact(ctx, id)
		})
	})

	return nil
}

// DisarmInexact clears the low-priority timer for the alarm.
func (t *AfterFuncTimer) DisarmInexact(ctx context.Context, id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.inexact[id]
	if !ok {
		return
	}

	timer.Stop()
	delete(t.inexact, id)
	t.inexactSeq[id]++

	logger.DebugKV(ctx, "Disarmed inexact timer", "alarm_id", id)
}

// FireNow delivers an immediate fire for an entry observed in the past. It
// runs on the caller's goroutine so catch-up stays synchronous.
func (t *AfterFuncTimer) FireNow(ctx context.Context, id int, entryType scheduler.Type) {
	t.onExact(ctx, id, entryType)
}

// Stop cancels every armed timer. Pending callbacks already handed to the
// submit function are invalidated and ignored.
func (t *AfterFuncTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exact != nil {
		t.exact.Stop()
		t.exact = nil
	}

	t.exactSeq++

	for id, timer := range t.inexact {
		timer.Stop()
		t.inexactSeq[id]++
	}

	t.inexact = make(map[int]*time.Timer)
}
