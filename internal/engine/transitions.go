package engine

import (
	"context"
	"time"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// transitionTo moves the machine to the target state: transient targets are
// resolved first, exit actions run from the current leaf up to the common
// ancestor, the new state name is persisted, then entry actions run from the
// ancestor down to the target.
func (a *Alarm) transitionTo(ctx context.Context, target stateID) {
	for target.isTransient() {
		target = a.decide(ctx, target)
	}

	from := a.current
	ancestor := commonAncestor(from, target)

	// A transition that resolves back to the current leaf is external, not a
	// no-op: the whole branch exits and re-enters so derived state (timers,
	// NextTime, skip preview) is recomputed from the current clock and value.
	if from == target {
		ancestor = stateParents[target]
		for ancestor != stateNone && stateParents[ancestor] != stateNone {
			ancestor = stateParents[ancestor]
		}
	}

	logger.InfoKV(ctx, "State transition", "from", from.String(), "to", target.String())

	for st := from; st != ancestor && st != stateNone; st = stateParents[st] {
		a.exitState(ctx, st)
	}

	// The new name is written before the entry chain runs, so a crash during
	// entry resumes into the target state rather than the abandoned one.
	a.value.State = target.String()
	a.persist(ctx)

	a.current = target

	var path []stateID
	for st := target; st != ancestor && st != stateNone; st = stateParents[st] {
		path = append(path, st)
	}

	for i := len(path) - 1; i >= 0; i-- {
		a.enterState(ctx, path[i])
	}

	// Entry actions rewrite value fields (flags, next fire time).
	if target != stateDeleted {
		a.persist(ctx)
	}

	a.notifyChange(ctx)
}

// decide resolves a pass-through state to its destination. Decision logic may
// rewrite value fields; the results are persisted by transitionTo.
func (a *Alarm) decide(ctx context.Context, st stateID) stateID {
	switch st {
	case stateEnableTransition:
		return a.decideArmed(ctx)

	case stateRescheduleTransition:
		if a.value.DaysOfWeek.IsRepeating() && a.value.Date == nil {
			return a.decideArmed(ctx)
		}

		if a.value.IsDeleteAfterDismiss {
			return stateDeleted
		}

		// One-shot done: keep the alarm around but switched off.
		a.value.IsEnabled = false

		return stateDisabled

	default:
		return st
	}
}

// decideArmed picks PreAlarmSet when the pre-alarm feature applies and its
// warning instant is still ahead; otherwise NormalSet.
func (a *Alarm) decideArmed(_ context.Context) stateID {
	now := a.deps.Clock.Now()

	offset := a.deps.Prefs.PrealarmDuration()
	if a.value.IsPrealarm && offset > 0 {
		candidate := a.value.NextFireTime(now).Add(-offset)
		if candidate.After(now) {
			return statePreAlarmSet
		}
	}

	return stateNormalSet
}

// enterState runs the entry action of one state on the path to the target.
//
//nolint:cyclop // One switch per state keeps the graph readable.
func (a *Alarm) enterState(ctx context.Context, st stateID) {
	now := a.deps.Clock.Now()

	switch st {
	case stateEnabled:
		a.value.IsEnabled = true

	case stateSet:
		a.armSkipPreview(ctx, now)

	case stateNormalSet:
		fire := a.value.NextFireTime(now)
		a.value.NextTime = fire
		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeNormal, fire, a.value)

	case statePreAlarmSet:
		fire := a.value.NextFireTime(now)
		pre := a.value.PrealarmFireTime(now, a.deps.Prefs.PrealarmDuration())
		a.value.NextTime = fire
		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypePrealarm, pre, a.value)

	case stateSkipping:
		skipped := a.value.NextFireTime(now)
		following := a.value.NextFireTime(skipped)

		a.value.Skipping = true
		a.value.NextTime = following

		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeNormal, following, a.value)
		// Wake up once the skipped occurrence has passed to clear the flag.
		a.deps.Timers.SetInexactAlarm(ctx, a.id, skipped)

	case stateFired:
		a.broadcast(ctx, alarm.SignalAlert, time.Time{})

		if silence := a.deps.Prefs.AutoSilenceDuration(); silence > 0 {
			a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeAutoSilence, now.Add(silence), a.value)
		}

	case statePreAlarmFired:
		a.broadcast(ctx, alarm.SignalPrealarm, time.Time{})

		// The real alarm still fires at its own time.
		fire := a.value.NextFireTime(now)
		a.value.NextTime = fire
		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeNormal, fire, a.value)

	case stateSnoozed:
		at := a.takeSnoozeTarget(now)
		a.value.NextTime = at
		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeNormal, at, a.value)
		a.broadcast(ctx, alarm.SignalSnooze, at)

	case statePreAlarmSnoozed:
		fire := a.value.NextFireTime(now)
		a.value.NextTime = fire
		a.deps.Timers.SetAlarm(ctx, a.id, scheduler.TypeNormal, fire, a.value)
		a.broadcast(ctx, alarm.SignalSnooze, fire)

	case stateDisabled:
		a.deps.Timers.RemoveAlarm(ctx, a.id)

	case stateDeleted:
		a.teardown(ctx)
	}
}

// exitState runs the exit action of one state on the way to the ancestor.
func (a *Alarm) exitState(ctx context.Context, st stateID) {
	switch st {
	case stateSet:
		// Leaving the armed family always cancels the preview timer.
		a.deps.Timers.RemoveInexactAlarm(ctx, a.id)
		a.broadcast(ctx, alarm.SignalRemoveSkip, time.Time{})

	case stateSkipping:
		a.value.Skipping = false
		a.deps.Timers.RemoveInexactAlarm(ctx, a.id)

	case stateFired:
		a.deps.Timers.RemoveAlarm(ctx, a.id)
		a.broadcast(ctx, alarm.SignalDismiss, time.Time{})

	case statePreAlarmFired:
		a.broadcast(ctx, alarm.SignalDismiss, time.Time{})

	case stateSnoozed, statePreAlarmSnoozed:
		a.broadcast(ctx, alarm.SignalCancelSnooze, time.Time{})
	}
}

// armSkipPreview implements the skip-preview heuristic on entering Set: show
// the preview immediately when the fire is already within the window, arm the
// inexact timer when the window opens later, do nothing when the feature is
// off.
func (a *Alarm) armSkipPreview(ctx context.Context, now time.Time) {
	window := a.deps.Prefs.SkipWindow()
	if window <= 0 {
		return
	}

	fire := a.value.NextFireTime(now)

	previewAt := fire.Add(-window)
	if previewAt.After(now) {
		a.deps.Timers.SetInexactAlarm(ctx, a.id, previewAt)

		return
	}

	a.broadcast(ctx, alarm.SignalShowSkip, fire)
}

// takeSnoozeTarget consumes the instant stashed by the snooze handler,
// falling back to the plain snooze duration.
func (a *Alarm) takeSnoozeTarget(now time.Time) time.Time {
	if a.pendingSnooze.set {
		at := a.pendingSnooze.at
		a.pendingSnooze = pendingInstant{}

		return at
	}

	return now.Add(a.deps.Prefs.SnoozeDuration())
}

// teardown is the Deleted entry action: clear timers, drop the record, and
// hand the instance back to the owner.
func (a *Alarm) teardown(ctx context.Context) {
	a.deps.Timers.RemoveAlarm(ctx, a.id)
	a.deps.Timers.RemoveInexactAlarm(ctx, a.id)

	if err := a.deps.Store.Delete(ctx, a.id); err != nil {
		logger.ErrorKV(ctx, "Failed to delete alarm record", "error", err)
	}

	if a.deps.OnDelete != nil {
		a.deps.OnDelete(ctx, a.id)
	}
}

// persist writes the full replacement value. Persistence failures are the
// store's concern; the in-memory machine never waits on them.
func (a *Alarm) persist(ctx context.Context) {
	if err := a.deps.Store.Save(ctx, a.value.Clone()); err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarm value", "error", err)
	}
}

// notifyChange lets the owner republish the alarm list.
func (a *Alarm) notifyChange(ctx context.Context) {
	if a.deps.OnChange != nil {
		a.deps.OnChange(ctx)
	}
}

// broadcast publishes an outbound signal for this alarm.
func (a *Alarm) broadcast(ctx context.Context, signal alarm.Signal, at time.Time) {
	if a.deps.Broadcast == nil {
		return
	}

	a.deps.Broadcast.Publish(ctx, a.id, signal, at)
}

// logContext scopes the logger to this alarm.
func (a *Alarm) logContext(ctx context.Context) context.Context {
	return logger.WithKV(ctx, "alarm_id", a.id)
}
