package alarm

import (
	"fmt"
	"time"
)

// Weekdays is a 7-bit repeat mask; bit n corresponds to time.Weekday(n),
// so bit 0 is Sunday and bit 6 is Saturday. The zero mask means one-shot.
type Weekdays uint8

// WeekdaysOf builds a mask from individual weekdays.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var mask Weekdays
	for _, d := range days {
		mask |= 1 << uint(d)
	}

	return mask
}

// Contains reports whether the mask includes the provided weekday.
func (w Weekdays) Contains(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// IsRepeating reports whether any weekday bit is set.
func (w Weekdays) IsRepeating() bool {
	return w != 0
}

// String renders the mask as a compact Sun..Sat bit list for logs.
func (w Weekdays) String() string {
	if w == 0 {
		return "once"
	}

	names := [...]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

	var out string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			out += names[d]
		}
	}

	return out
}

// ToneKind enumerates the ringtone variants an alarm can carry.
type ToneKind int

const (
	// ToneSilent plays nothing when the alarm fires.
	ToneSilent ToneKind = iota
	// ToneDefault plays the application default ringtone.
	ToneDefault
	// ToneSystemDefault plays the platform default ringtone.
	ToneSystemDefault
	// ToneSound plays the sound identified by URI.
	ToneSound
)

// Tone describes which sound an alarm plays. URI is set only for ToneSound.
type Tone struct {
	// Kind selects the ringtone variant.
	Kind ToneKind
	// URI locates the sound for ToneSound; empty otherwise.
	URI string
}

// Signal names the outbound state-change notifications produced by the core.
// Consumers (sound, notification rendering) subscribe to these; the core does
// not know how many consumers exist.
type Signal string

const (
	// SignalAlert fires when the main alarm starts ringing.
	SignalAlert Signal = "ALERT"
	// SignalPrealarm fires when the quieter pre-alarm warning starts.
	SignalPrealarm Signal = "PREALARM"
	// SignalSnooze fires when the user snoozes, carrying the wake-up instant.
	SignalSnooze Signal = "SNOOZE"
	// SignalCancelSnooze fires when a pending snooze is abandoned.
	SignalCancelSnooze Signal = "CANCEL_SNOOZE"
	// SignalDismiss fires when a ringing alarm stops ringing.
	SignalDismiss Signal = "DISMISS"
	// SignalSoundExpired fires when auto-silence stopped the sound instead of the user.
	SignalSoundExpired Signal = "SOUND_EXPIRED"
	// SignalShowSkip offers the user a chance to skip the imminent occurrence.
	SignalShowSkip Signal = "SHOW_SKIP"
	// SignalRemoveSkip withdraws a previously shown skip offer.
	SignalRemoveSkip Signal = "REMOVE_SKIP"
	// SignalMute temporarily silences a ringing alarm.
	SignalMute Signal = "MUTE"
	// SignalDemute restores sound after SignalMute.
	SignalDemute Signal = "DEMUTE"
)

// Value is an immutable snapshot of a single alarm. Every change produces a
// fresh copy; there is no shared mutable aliasing between alarms.
type Value struct {
	// ID is the stable identifier assigned at creation, unique among live alarms.
	ID int
	// IsEnabled indicates whether the alarm is active.
	IsEnabled bool
	// Hour of day in [0,23].
	Hour int
	// Minutes within the hour in [0,59].
	Minutes int
	// DaysOfWeek is the repeat mask; empty means one-shot.
	DaysOfWeek Weekdays
	// Label is the user-visible description.
	Label string
	// IsPrealarm enables the earlier, quieter warning.
	IsPrealarm bool
	// IsVibrate enables vibration alongside sound.
	IsVibrate bool
	// Tone selects the ringtone.
	Tone Tone
	// Skipping is true while the next occurrence is being skipped.
	Skipping bool
	// Date, when set, makes the alarm fire once on that calendar date
	// instead of advancing through the weekday mask.
	Date *time.Time
	// IsDeleteAfterDismiss removes the alarm entirely once dismissed.
	IsDeleteAfterDismiss bool
	// State is the persisted name of the current state machine state.
	State string
	// NextTime is the last computed absolute fire instant, for display only.
	NextTime time.Time
}

// Clone returns a deep copy of the value to avoid leaking internal references.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}

	cloned := *v

	if v.Date != nil {
		date := *v.Date
		cloned.Date = &date
	}

	return &cloned
}

// String renders a short description for logs.
func (v *Value) String() string {
	return fmt.Sprintf("alarm %d %02d:%02d %s enabled=%t state=%s",
		v.ID, v.Hour, v.Minutes, v.DaysOfWeek, v.IsEnabled, v.State)
}
