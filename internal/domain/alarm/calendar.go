package alarm

import "time"

// daysInWeek bounds the repeat-mask advancement loop.
const daysInWeek = 7

// NextFireTime returns the earliest fire instant strictly after now.
//
// With a date override the instant is that date at the alarm's hour and
// minute, regardless of the repeat mask; such alarms fire exactly once and do
// not self-reschedule. Otherwise the candidate is today at hour:minute,
// pushed to tomorrow when not in the future, then advanced to the next day
// whose bit is set in the repeat mask (zero days when the mask is empty or
// already satisfied).
func (v *Value) NextFireTime(now time.Time) time.Time {
	if v.Date != nil {
		d := *v.Date

		return time.Date(d.Year(), d.Month(), d.Day(), v.Hour, v.Minutes, 0, 0, now.Location())
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), v.Hour, v.Minutes, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return advanceToMask(next, v.DaysOfWeek)
}

// PrealarmFireTime returns the pre-alarm warning instant for the next fire:
// the fire instant minus offset, pushed to the following matching occurrence
// when the warning would already be in the past. The pre-alarm can straddle
// midnight into a different day than its main fire.
func (v *Value) PrealarmFireTime(now time.Time, offset time.Duration) time.Time {
	fire := v.NextFireTime(now)

	pre := fire.Add(-offset)
	if !pre.After(now) {
		pre = v.NextFireTime(fire).Add(-offset)
	}

	return pre
}

// SnoozeTime computes the wake-up instant for a snooze request.
//
// A custom hour:minute is honored when that time is still ahead today;
// otherwise, and for plain snoozes, the result is now plus the configured
// snooze duration.
func SnoozeTime(now time.Time, duration time.Duration, hour, minute int, hasCustom bool) time.Time {
	if hasCustom {
		custom := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if custom.After(now) {
			return custom
		}
	}

	return now.Add(duration)
}

// advanceToMask pushes t forward day by day until its weekday bit is set.
// An empty mask matches immediately.
func advanceToMask(t time.Time, mask Weekdays) time.Time {
	if !mask.IsRepeating() {
		return t
	}

	for i := 0; i < daysInWeek; i++ {
		if mask.Contains(t.Weekday()) {
			return t
		}

		t = t.AddDate(0, 0, 1)
	}

	return t
}
