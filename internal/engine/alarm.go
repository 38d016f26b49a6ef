package engine

import (
	"context"
	"fmt"
	"time"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
)

// eventKind enumerates the external triggers an alarm reacts to.
type eventKind int

const (
	eventEnable eventKind = iota
	eventDisable
	eventChange
	eventDelete
	eventDismiss
	eventRefresh
	eventFired
	eventSnooze
	eventRequestSkip
	eventInexactFired
	eventTimeSet
	eventPrealarmDurationChanged
	eventMute
	eventDemute
)

// eventNames are for logs only.
var eventNames = map[eventKind]string{
	eventEnable:                  "Enable",
	eventDisable:                 "Disable",
	eventChange:                  "Change",
	eventDelete:                  "Delete",
	eventDismiss:                 "Dismiss",
	eventRefresh:                 "Refresh",
	eventFired:                   "Fired",
	eventSnooze:                  "Snooze",
	eventRequestSkip:             "RequestSkip",
	eventInexactFired:            "InexactFired",
	eventTimeSet:                 "TimeSet",
	eventPrealarmDurationChanged: "PrealarmDurationChanged",
	eventMute:                    "Mute",
	eventDemute:                  "Demute",
}

// event is the tagged union delivered to the state machine.
type event struct {
	// kind selects the trigger.
	kind eventKind
	// value carries the replacement snapshot for Change.
	value *alarm.Value
	// hour and minute carry the explicit snooze target when hasTime is set.
	hour, minute int
	hasTime      bool
}

// Alarm is the lifecycle state machine of a single alarm. One instance exists
// per live id; the Manager owns creation and teardown. All methods must be
// called from the single event-processing goroutine.
type Alarm struct {
	// id is the stable alarm identifier.
	id int
	// value is the current owned snapshot, rewritten copy-on-write.
	value *alarm.Value
	// current is the active leaf state.
	current stateID
	// deps are the shared collaborators.
	deps Deps
	// pendingSnooze carries the computed wake-up instant from a snooze
	// handler into the Snoozed entry action.
	pendingSnooze pendingInstant
}

// pendingInstant is a one-shot value handed from a handler to an entry action.
type pendingInstant struct {
	at  time.Time
	set bool
}

// newAlarm wires an alarm around its owned value. The machine is inert until
// Start resumes it into its persisted state.
func newAlarm(value *alarm.Value, deps Deps) *Alarm {
	return &Alarm{
		id:      value.ID,
		value:   value.Clone(),
		current: stateDisabled,
		deps:    deps,
	}
}

// ID returns the stable alarm identifier.
func (a *Alarm) ID() int {
	return a.id
}

// Value returns a copy of the current snapshot.
func (a *Alarm) Value() *alarm.Value {
	return a.value.Clone()
}

// StateName returns the name of the active leaf state.
func (a *Alarm) StateName() string {
	return a.current.String()
}

// Start resumes the machine from the persisted state name.
//
// Armed states and Skipping re-derive their timers against the current clock.
// Ringing and snoozed states are treated as missed while the process was down
// and go through the reschedule decision; re-ringing on boot without the
// fired context would be wrong. Anything unknown starts over from the enabled
// flag.
func (a *Alarm) Start(ctx context.Context) {
	ctx = a.logContext(ctx)

	persisted, known := stateByName(a.value.State)
	if !known {
		persisted = stateNone
	}

	switch persisted {
	case stateNormalSet, statePreAlarmSet:
		a.transitionTo(ctx, stateEnableTransition)
	case stateSkipping:
		a.resumeSkipping(ctx)
	case stateFired, statePreAlarmFired, stateSnoozed, statePreAlarmSnoozed:
		a.transitionTo(ctx, stateRescheduleTransition)
	case stateDisabled:
		a.current = stateDisabled
	case stateDeleted:
		// A deleted record should not have been loaded; finish the teardown.
		a.transitionTo(ctx, stateDeleted)
	default:
		if a.value.IsEnabled {
			a.transitionTo(ctx, stateEnableTransition)

			return
		}

		a.current = stateDisabled
		a.value.State = stateDisabled.String()
		a.persist(ctx)
	}
}

// resumeSkipping re-enters Skipping only while the skipped occurrence is
// still ahead; once it has passed the skip is complete and the alarm re-arms
// normally.
func (a *Alarm) resumeSkipping(ctx context.Context) {
	now := a.deps.Clock.Now()

	recomputed := a.value.NextFireTime(now)
	if !a.value.NextTime.IsZero() && recomputed.Before(a.value.NextTime) {
		a.transitionTo(ctx, stateSkipping)

		return
	}

	// The skipped occurrence passed while the process was down.
	a.value.Skipping = false
	a.transitionTo(ctx, stateEnableTransition)
}

// Enable switches the alarm on.
func (a *Alarm) Enable(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventEnable})
}

// Disable switches the alarm off.
func (a *Alarm) Disable(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventDisable})
}

// Change replaces the alarm configuration with the provided value.
func (a *Alarm) Change(ctx context.Context, value *alarm.Value) {
	a.dispatch(ctx, event{kind: eventChange, value: value})
}

// Delete tears the alarm down from any state.
func (a *Alarm) Delete(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventDelete})
}

// Dismiss acknowledges a ringing or pending alarm and reschedules it.
func (a *Alarm) Dismiss(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventDismiss})
}

// Refresh re-derives timers, e.g. after platform permissions return.
func (a *Alarm) Refresh(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventRefresh})
}

// Fired delivers a platform timer fire for this alarm.
func (a *Alarm) Fired(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventFired})
}

// Snooze postpones a ringing alarm by the configured snooze duration.
func (a *Alarm) Snooze(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventSnooze})
}

// SnoozeTo postpones a ringing alarm to the explicit hour and minute.
func (a *Alarm) SnoozeTo(ctx context.Context, hour, minute int) {
	a.dispatch(ctx, event{kind: eventSnooze, hour: hour, minute: minute, hasTime: true})
}

// RequestSkip suppresses the next occurrence. A non-repeating alarm is
// disabled instead; a skipping alarm is un-skipped.
func (a *Alarm) RequestSkip(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventRequestSkip})
}

// InexactFired delivers the low-priority skip-preview timer fire.
func (a *Alarm) InexactFired(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventInexactFired})
}

// TimeSet reacts to a device clock change.
func (a *Alarm) TimeSet(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventTimeSet})
}

// PrealarmDurationChanged reacts to a pre-alarm preference change.
func (a *Alarm) PrealarmDurationChanged(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventPrealarmDurationChanged})
}

// Mute silences a ringing alarm without dismissing it.
func (a *Alarm) Mute(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventMute})
}

// Demute restores sound after Mute.
func (a *Alarm) Demute(ctx context.Context) {
	a.dispatch(ctx, event{kind: eventDemute})
}

// dispatch routes an event to the current leaf state, bubbling unhandled
// events to ancestors. An event nothing handles is a programming error in
// strict mode and a logged no-op otherwise.
func (a *Alarm) dispatch(ctx context.Context, ev event) {
	ctx = a.logContext(ctx)

	if a.current == stateDeleted {
		logger.WarnKV(ctx, "Event on deleted alarm ignored", "event", eventNames[ev.kind])

		return
	}

	// Deletion is legal from every state.
	if ev.kind == eventDelete {
		a.transitionTo(ctx, stateDeleted)

		return
	}

	for st := a.current; st != stateNone; st = stateParents[st] {
		next, handled := a.handle(ctx, st, ev)
		if !handled {
			continue
		}

		logger.DebugKV(ctx, "Event handled",
			"event", eventNames[ev.kind], "state", a.current.String(), "handled_in", st.String())

		if next != stateNone {
			a.transitionTo(ctx, next)
		}

		return
	}

	if a.deps.Strict {
		panic(fmt.Sprintf("alarm %d: event %s not handled in state %s",
			a.id, eventNames[ev.kind], a.current))
	}

	logger.WarnKV(ctx, "Event not handled", "event", eventNames[ev.kind], "state", a.current.String())
}

// handle runs the event handler of a single state in the ancestor chain.
// The returned state is the transition target; stateNone means stay.
//
//nolint:cyclop,funlen // The transition table is clearer as one switch.
func (a *Alarm) handle(ctx context.Context, st stateID, ev event) (stateID, bool) {
	switch st {
	case stateDisabled:
		switch ev.kind {
		case eventEnable:
			a.value.IsEnabled = true

			return stateEnableTransition, true
		case eventChange:
			a.applyChange(ev.value)
			if a.value.IsEnabled {
				return stateEnableTransition, true
			}

			a.persist(ctx)
			a.notifyChange(ctx)

			return stateNone, true
		case eventRefresh:
			// Nothing to re-arm while disabled.
			return stateNone, true
		}

	case stateEnabled:
		switch ev.kind {
		case eventDisable:
			a.value.IsEnabled = false

			return stateDisabled, true
		case eventDismiss:
			return stateRescheduleTransition, true
		case eventRefresh:
			return stateEnableTransition, true
		case eventChange:
			a.applyChange(ev.value)
			if a.value.IsEnabled {
				return stateEnableTransition, true
			}

			return stateDisabled, true
		}

	case stateSet:
		switch ev.kind {
		case eventRequestSkip:
			if a.value.DaysOfWeek.IsRepeating() && a.value.Date == nil {
				return stateSkipping, true
			}

			// One-shot: skipping the only occurrence disables the alarm.
			return stateRescheduleTransition, true
		case eventInexactFired:
			a.broadcast(ctx, alarm.SignalShowSkip, a.value.NextTime)

			return stateNone, true
		case eventTimeSet, eventPrealarmDurationChanged:
			return stateEnableTransition, true
		}

	case stateNormalSet:
		if ev.kind == eventFired {
			return stateFired, true
		}

	case statePreAlarmSet:
		if ev.kind == eventFired {
			return statePreAlarmFired, true
		}

	case stateSkipping:
		switch ev.kind {
		case eventFired:
			return stateFired, true
		case eventInexactFired:
			// The skipped occurrence has passed; re-evaluate.
			return stateEnableTransition, true
		case eventRequestSkip:
			// Second request toggles the skip off.
			return stateEnableTransition, true
		case eventTimeSet:
			return stateEnableTransition, true
		}

	case stateFired:
		switch ev.kind {
		case eventFired:
			// Auto-silence expired without a user dismiss.
			a.broadcast(ctx, alarm.SignalSoundExpired, time.Time{})

			return stateRescheduleTransition, true
		case eventSnooze:
			a.stashSnoozeTarget(ev)

			return stateSnoozed, true
		case eventMute:
			a.broadcast(ctx, alarm.SignalMute, time.Time{})

			return stateNone, true
		case eventDemute:
			a.broadcast(ctx, alarm.SignalDemute, time.Time{})

			return stateNone, true
		}

	case statePreAlarmFired:
		switch ev.kind {
		case eventFired:
			return stateFired, true
		case eventSnooze:
			if ev.hasTime {
				a.stashSnoozeTarget(ev)

				return stateSnoozed, true
			}

			return statePreAlarmSnoozed, true
		case eventMute:
			a.broadcast(ctx, alarm.SignalMute, time.Time{})

			return stateNone, true
		case eventDemute:
			a.broadcast(ctx, alarm.SignalDemute, time.Time{})

			return stateNone, true
		}

	case stateSnoozed:
		if ev.kind == eventFired {
			return stateFired, true
		}

	case statePreAlarmSnoozed:
		switch ev.kind {
		case eventFired:
			return stateFired, true
		case eventSnooze:
			a.stashSnoozeTarget(ev)

			return stateSnoozed, true
		}
	}

	return stateNone, false
}

// stashSnoozeTarget computes the wake-up instant for the Snoozed entry action.
func (a *Alarm) stashSnoozeTarget(ev event) {
	now := a.deps.Clock.Now()

	a.pendingSnooze = pendingInstant{
		at:  alarm.SnoozeTime(now, a.deps.Prefs.SnoozeDuration(), ev.hour, ev.minute, ev.hasTime),
		set: true,
	}
}

// applyChange replaces the owned snapshot, keeping machine-owned fields.
func (a *Alarm) applyChange(value *alarm.Value) {
	if value == nil {
		return
	}

	next := value.Clone()
	next.ID = a.id
	next.State = a.value.State
	next.Skipping = false

	a.value = next
}
