package engine

import (
	"context"
	"time"

	"github.com/alarmd/alarmd/internal/clock"
	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// Store persists alarm values. Writes are fire-and-forget from the state
// machine's point of view: failures are logged by the caller and never block
// event processing.
type Store interface {
	// List returns all persisted alarm values.
	List(ctx context.Context) ([]*alarm.Value, error)
	// Save writes a full replacement value for the alarm.
	Save(ctx context.Context, value *alarm.Value) error
	// Delete removes the persisted record for the alarm.
	Delete(ctx context.Context, id int) error
}

// Preferences supplies the user-tunable durations read synchronously inside
// transition logic. A zero duration means the feature is off.
type Preferences interface {
	// PrealarmDuration is the offset of the early warning before the main fire.
	PrealarmDuration() time.Duration
	// SnoozeDuration is the default snooze length.
	SnoozeDuration() time.Duration
	// AutoSilenceDuration stops a ringing alarm after this long if not dismissed.
	AutoSilenceDuration() time.Duration
	// SkipWindow is how long before the fire the skip preview appears.
	SkipWindow() time.Duration
}

// Broadcaster receives outbound state-change signals. A zero instant means
// the signal carries no accompanying time.
type Broadcaster interface {
	Publish(ctx context.Context, id int, signal alarm.Signal, at time.Time)
}

// ListPublisher receives the full current alarm list after every mutation.
type ListPublisher interface {
	PublishList(ctx context.Context, values []*alarm.Value)
}

// Timers is the slice of the scheduler the state machine drives. The
// scheduler is the sole owner of the physical timers; alarms never touch the
// platform directly.
type Timers interface {
	SetAlarm(ctx context.Context, id int, entryType scheduler.Type, at time.Time, value *alarm.Value)
	RemoveAlarm(ctx context.Context, id int)
	SetInexactAlarm(ctx context.Context, id int, at time.Time)
	RemoveInexactAlarm(ctx context.Context, id int)
}

// Deps bundles the collaborators shared by every Alarm instance.
type Deps struct {
	// Clock supplies "now" for all calendar math.
	Clock clock.Clock
	// Store persists alarm values.
	Store Store
	// Timers schedules and cancels fire instants.
	Timers Timers
	// Prefs supplies the tunable durations.
	Prefs Preferences
	// Broadcast publishes state-change signals.
	Broadcast Broadcaster
	// OnChange is invoked after any value mutation, so the owner can
	// republish the alarm list. Optional.
	OnChange func(ctx context.Context)
	// OnDelete is invoked from the Deleted entry action, so the owner can
	// drop the instance. Optional.
	OnDelete func(ctx context.Context, id int)
	// Strict makes an event with no handler in the current state a fatal
	// programming error. The default (lenient) logs and ignores it.
	Strict bool
}
