package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/alarmd/alarmd/internal/clock"
	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
)

// Type classifies a scheduled entry.
type Type int

const (
	// TypeNormal is a regular fire of the main alarm.
	TypeNormal Type = iota
	// TypePrealarm is the earlier, quieter warning fire.
	TypePrealarm
	// TypeAutoSilence stops a ringing alarm that was never dismissed.
	// Bookkeeping only; never surfaces in the "next alarm" projection.
	TypeAutoSilence
)

// String returns the entry type name for logs and wire payloads.
func (t Type) String() string {
	switch t {
	case TypeNormal:
		return "NORMAL"
	case TypePrealarm:
		return "PREALARM"
	case TypeAutoSilence:
		return "AUTOSILENCE"
	default:
		return "UNKNOWN"
	}
}

// PlatformTimer is the narrow contract to the single physical timer pair.
// The scheduler is its sole owner and mutator.
type PlatformTimer interface {
	// ArmExact points the main timer at the provided instant.
	// A denial (permission refused) is returned as an error; the scheduler
	// logs it and proceeds without the physical timer.
	ArmExact(ctx context.Context, id int, entryType Type, at time.Time) error
	// Disarm clears the main timer.
	Disarm(ctx context.Context)
	// ArmInexact points the low-priority per-alarm timer at the instant.
	ArmInexact(ctx context.Context, id int, at time.Time) error
	// DisarmInexact clears the low-priority timer for the alarm.
	DisarmInexact(ctx context.Context, id int)
	// FireNow delivers an immediate, synchronous fire for an entry observed
	// in the past. Used only by the catch-up pass.
	FireNow(ctx context.Context, id int, entryType Type)
}

// NextAlarm is the display projection of the earliest user-visible entry.
type NextAlarm struct {
	// ID of the owning alarm.
	ID int
	// IsPrealarm reports whether the earliest entry is the pre-alarm warning.
	IsPrealarm bool
	// At is the real (main) fire instant. When the earliest entry is a
	// pre-alarm, the pre-alarm offset is added back to obtain it.
	At time.Time
	// Value is a read-only copy of the owning alarm, for display only.
	Value *alarm.Value
}

// NextPublisher consumes the "what's next" projection after queue mutations.
// A nil NextAlarm means no eligible entry remains.
type NextPublisher interface {
	PublishNext(ctx context.Context, next *NextAlarm)
}

// Preferences supplies the pre-alarm offset needed to derive the real fire
// instant from a pre-alarm entry.
type Preferences interface {
	// PrealarmDuration returns the configured offset; zero means off.
	PrealarmDuration() time.Duration
}

// entry is a scheduled alarm: at most one per alarm id, ordered by instant
// with insertion order breaking ties.
type entry struct {
	// id of the owning alarm.
	id int
	// entryType classifies the fire.
	entryType Type
	// at is the absolute fire instant.
	at time.Time
	// value is a read-only snapshot carried for the next-alarm projection.
	value *alarm.Value
	// seq preserves insertion order for deterministic tie-breaking.
	seq uint64
}

// Scheduler keeps the ordered entry set and mirrors its earliest entry onto
// the platform timer. Not safe for concurrent use; see package doc.
type Scheduler struct {
	// clock supplies "now" for the catch-up pass.
	clock clock.Clock
	// timer is the platform timer pair owned by this scheduler.
	timer PlatformTimer
	// prefs supplies the pre-alarm offset for the next-alarm projection.
	prefs Preferences
	// next consumes the projection after every queue mutation.
	next NextPublisher

	// queue holds entries sorted by (at, seq).
	queue []*entry
	// inexact maps alarm id to its pending skip-preview instant.
	inexact map[int]time.Time
	// armed mirrors the entry currently on the platform timer, nil when clear.
	armed *entry
	// started gates all platform interaction until Start is called, so many
	// alarms can be loaded before the first timer is armed.
	started bool
	// syncing suppresses nested catch-up passes while FireNow callbacks
	// re-enter the scheduler; the outermost pass re-arms once at the end.
	syncing bool
	// seq is the insertion counter.
	seq uint64
}

// New creates a scheduler. The next publisher may be nil when no consumer
// cares about the projection.
func New(clk clock.Clock, timer PlatformTimer, prefs Preferences, next NextPublisher) *Scheduler {
	return &Scheduler{
		clock:   clk,
		timer:   timer,
		prefs:   prefs,
		next:    next,
		inexact: make(map[int]time.Time),
	}
}

// Start flips the scheduler into active mode: recorded mutations are caught
// up, the earliest entry is armed, and pending inexact timers are pushed to
// the platform.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}

	s.started = true

	for id, at := range s.inexact {
		s.armInexact(ctx, id, at)
	}

	s.sync(ctx)
}

// SetAlarm upserts the entry for the alarm, replacing any prior one.
func (s *Scheduler) SetAlarm(ctx context.Context, id int, entryType Type, at time.Time, value *alarm.Value) {
	s.removeFromQueue(id)

	s.seq++
	e := &entry{
		id:        id,
		entryType: entryType,
		at:        at,
		value:     value.Clone(),
		seq:       s.seq,
	}

	index := sort.Search(len(s.queue), func(i int) bool {
		if s.queue[i].at.Equal(e.at) {
			return s.queue[i].seq > e.seq
		}

		return s.queue[i].at.After(e.at)
	})

	s.queue = append(s.queue, nil)
	copy(s.queue[index+1:], s.queue[index:])
	s.queue[index] = e

	logger.DebugKV(ctx, "Alarm scheduled", "alarm_id", id, "type", entryType.String(), "at", at)

	s.sync(ctx)
}

// RemoveAlarm deletes the entry for the alarm if present.
func (s *Scheduler) RemoveAlarm(ctx context.Context, id int) {
	if !s.removeFromQueue(id) {
		return
	}

	logger.DebugKV(ctx, "Alarm unscheduled", "alarm_id", id)

	s.sync(ctx)
}

// SetInexactAlarm arms the low-priority skip-preview timer for the alarm.
// Inexact timers are keyed by id and never ordered against the main queue.
func (s *Scheduler) SetInexactAlarm(ctx context.Context, id int, at time.Time) {
	s.inexact[id] = at

	if s.started {
		s.armInexact(ctx, id, at)
	}
}

// RemoveInexactAlarm clears the skip-preview timer for the alarm, if any.
func (s *Scheduler) RemoveInexactAlarm(ctx context.Context, id int) {
	if _, ok := s.inexact[id]; !ok {
		return
	}

	delete(s.inexact, id)

	if s.started {
		s.timer.DisarmInexact(ctx, id)
	}
}

// NextScheduled returns the current projection without publishing it.
func (s *Scheduler) NextScheduled() *NextAlarm {
	return s.projectNext()
}

// removeFromQueue deletes the entry with the given id, reporting presence.
func (s *Scheduler) removeFromQueue(id int) bool {
	for i, e := range s.queue {
		if e.id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)

			return true
		}
	}

	return false
}

// sync runs the catch-up pass, re-arms the platform timer when the earliest
// entry changed, and publishes the next-alarm projection.
func (s *Scheduler) sync(ctx context.Context) {
	if !s.started || s.syncing {
		return
	}

	// Fire entries already in the past synchronously instead of leaving them
	// queued. Covers the race where two alarms share an instant and the
	// second is observed slightly in the past by the time it is inserted.
	s.syncing = true

	for len(s.queue) > 0 {
		head := s.queue[0]
		if head.at.After(s.clock.Now()) {
			break
		}

		s.queue = s.queue[1:]

		logger.InfoKV(ctx, "Firing past-due entry", "alarm_id", head.id, "type", head.entryType.String(), "at", head.at)
		s.timer.FireNow(ctx, head.id, head.entryType)
	}

	s.syncing = false

	s.rearm(ctx)
	s.publishNext(ctx)
}

// rearm mirrors the earliest entry onto the platform timer. No platform call
// is made when the earliest entry is unchanged.
func (s *Scheduler) rearm(ctx context.Context) {
	var head *entry
	if len(s.queue) > 0 {
		head = s.queue[0]
	}

	if sameEntry(head, s.armed) {
		return
	}

	s.armed = head

	if head == nil {
		s.timer.Disarm(ctx)

		return
	}

	if err := s.timer.ArmExact(ctx, head.id, head.entryType, head.at); err != nil {
		// Permission denial: proceed without the physical timer. The alarm
		// will not fire until it is re-armed, e.g. via a refresh.
		logger.WarnKV(ctx, "Platform refused exact timer",
			"alarm_id", head.id, "type", head.entryType.String(), "at", head.at, "error", err)
	}
}

// armInexact pushes a skip-preview timer to the platform, logging denials.
func (s *Scheduler) armInexact(ctx context.Context, id int, at time.Time) {
	if err := s.timer.ArmInexact(ctx, id, at); err != nil {
		logger.WarnKV(ctx, "Platform refused inexact timer", "alarm_id", id, "at", at, "error", err)
	}
}

// projectNext derives the earliest non-auto-silence entry for display.
func (s *Scheduler) projectNext() *NextAlarm {
	for _, e := range s.queue {
		if e.entryType == TypeAutoSilence {
			continue
		}

		next := &NextAlarm{
			ID:         e.id,
			IsPrealarm: e.entryType == TypePrealarm,
			At:         e.at,
			Value:      e.value.Clone(),
		}

		// A pre-alarm entry carries the warning instant; add the offset back
		// to report the real fire time.
		if next.IsPrealarm && s.prefs != nil {
			next.At = e.at.Add(s.prefs.PrealarmDuration())
		}

		return next
	}

	return nil
}

// publishNext recomputes and publishes the projection after a mutation.
func (s *Scheduler) publishNext(ctx context.Context) {
	if s.next == nil {
		return
	}

	s.next.PublishNext(ctx, s.projectNext())
}

// sameEntry reports whether both entries describe the same platform timer.
func sameEntry(a, b *entry) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.id == b.id && a.entryType == b.entryType && a.at.Equal(b.at)
}
