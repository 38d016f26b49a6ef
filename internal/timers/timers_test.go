package timers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alarmd/alarmd/internal/clock"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// firing records one delivered expiry.
type firing struct {
	// id is the alarm the expiry belongs to.
	id int
	// entryType is the fired entry kind; zero value for inexact expiries.
	entryType scheduler.Type
	// inexact marks low-priority deliveries.
	inexact bool
}

// harness wires an AfterFuncTimer to a submit function that runs closures
// immediately and records every delivery.
type harness struct {
	timer *AfterFuncTimer

	mu sync.Mutex
	// fired collects deliveries in arrival order.
	fired []firing
}

func newHarness() *harness {
	h := &harness{}

	submit := func(fn func(ctx context.Context)) {
		fn(context.Background())
	}

	onExact := func(_ context.Context, id int, entryType scheduler.Type) {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.fired = append(h.fired, firing{id: id, entryType: entryType})
	}

	onInexact := func(_ context.Context, id int) {
		h.mu.Lock()
		defer h.mu.Unlock()

		h.fired = append(h.fired, firing{id: id, inexact: true})
	}

	h.timer = New(clock.System{}, submit, onExact, onInexact)

	return h
}

// firings returns a snapshot of deliveries so far.
func (h *harness) firings() []firing {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]firing(nil), h.fired...)
}

// waitFor polls until the predicate holds or the deadline passes.
func (h *harness) waitFor(t *testing.T, predicate func([]firing) bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if predicate(h.firings()) {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("condition not reached, firings: %v", h.firings())
}

// TestArmExact_DeliversThroughSubmit verifies that a past-due instant fires
// immediately through the submit function.
func TestArmExact_DeliversThroughSubmit(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.timer.ArmExact(ctx, 7, scheduler.TypePrealarm, time.Now().Add(-time.Minute)))

	h.waitFor(t, func(fired []firing) bool {
		return len(fired) == 1
	})

	require.Equal(t, firing{id: 7, entryType: scheduler.TypePrealarm}, h.firings()[0])
}

// TestArmExact_RearmInvalidatesPrevious verifies that re-arming drops the
// earlier timer even if its callback was already in flight.
func TestArmExact_RearmInvalidatesPrevious(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.timer.ArmExact(ctx, 1, scheduler.TypeNormal, time.Now().Add(time.Hour)))
	require.NoError(t, h.timer.ArmExact(ctx, 2, scheduler.TypeNormal, time.Now()))

	h.waitFor(t, func(fired []firing) bool {
		return len(fired) == 1
	})

	require.Equal(t, 2, h.firings()[0].id)

	// The replaced timer never fires.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, h.firings(), 1)
}

// TestDisarm verifies that a disarmed timer stays silent.
func TestDisarm(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.timer.ArmExact(ctx, 1, scheduler.TypeNormal, time.Now().Add(20*time.Millisecond)))
	h.timer.Disarm(ctx)

	// Disarming when nothing is armed is a no-op.
	h.timer.Disarm(ctx)

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, h.firings())
}

// TestInexact_PerAlarm verifies independent low-priority timers per alarm.
func TestInexact_PerAlarm(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.timer.ArmInexact(ctx, 1, time.Now()))
	require.NoError(t, h.timer.ArmInexact(ctx, 2, time.Now().Add(time.Hour)))
	h.timer.DisarmInexact(ctx, 2)
	h.timer.DisarmInexact(ctx, 99)

	h.waitFor(t, func(fired []firing) bool {
		return len(fired) == 1
	})

	require.Equal(t, firing{id: 1, inexact: true}, h.firings()[0])

	time.Sleep(50 * time.Millisecond)
	require.Len(t, h.firings(), 1)
}

// TestFireNow_Synchronous verifies replayed entries bypass the submit path.
func TestFireNow_Synchronous(t *testing.T) {
	t.Parallel()

	h := newHarness()

	h.timer.FireNow(context.Background(), 4, scheduler.TypeNormal)

	require.Equal(t, []firing{{id: 4, entryType: scheduler.TypeNormal}}, h.firings())
}

// TestStop verifies Stop cancels both timer kinds.
func TestStop(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.timer.ArmExact(ctx, 1, scheduler.TypeNormal, time.Now().Add(20*time.Millisecond)))
	require.NoError(t, h.timer.ArmInexact(ctx, 2, time.Now().Add(20*time.Millisecond)))

	h.timer.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, h.firings())
}
