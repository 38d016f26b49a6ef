package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alarmd/alarmd/internal/domain/alarm"
)

// Message is the wire envelope. Type selects the command or reply kind and
// Data carries the type-specific payload.
type Message struct {
	// Type is one of the Command* or Reply* constants.
	Type string `json:"type"`
	// Data is the JSON payload for the given type; may be absent.
	Data json.RawMessage `json:"data,omitempty"`
}

// Command types understood by the daemon.
const (
	// CommandList requests the full alarm list.
	CommandList = "list"
	// CommandCreate creates a new alarm with default settings.
	CommandCreate = "create"
	// CommandChange replaces the settings of an existing alarm.
	CommandChange = "change"
	// CommandEnable turns an alarm on.
	CommandEnable = "enable"
	// CommandDisable turns an alarm off.
	CommandDisable = "disable"
	// CommandDelete removes an alarm entirely.
	CommandDelete = "delete"
	// CommandDismiss stops a ringing alarm or cancels a pending snooze.
	CommandDismiss = "dismiss"
	// CommandSnooze postpones a ringing alarm, optionally to a custom time.
	CommandSnooze = "snooze"
	// CommandSkip toggles skipping of the next occurrence.
	CommandSkip = "skip"
	// CommandMute silences a ringing alarm without dismissing it.
	CommandMute = "mute"
	// CommandDemute restores the sound of a muted ringing alarm.
	CommandDemute = "demute"
	// CommandRefresh recomputes an alarm's schedule.
	CommandRefresh = "refresh"
	// CommandTimeSet tells the daemon the wall clock changed externally.
	CommandTimeSet = "time-set"
	// CommandSetPrealarmDuration updates the pre-alarm offset preference.
	CommandSetPrealarmDuration = "set-prealarm-duration"
)

// Reply types sent by the daemon.
const (
	// ReplyOK acknowledges a command, carrying a Result payload.
	ReplyOK = "ok"
	// ReplyError reports a failed command, carrying a Result payload with
	// the Error field set.
	ReplyError = "error"
)

// TargetRequest addresses a single alarm by its identifier.
type TargetRequest struct {
	// ID is the alarm identifier.
	ID int `json:"id"`
}

// SnoozeRequest postpones a ringing alarm. Hour and Minute are optional; when
// both are present the alarm wakes at that time of day instead of after the
// default snooze interval.
type SnoozeRequest struct {
	// ID is the alarm identifier.
	ID int `json:"id"`
	// Hour of day in [0,23]; nil for the default snooze interval.
	Hour *int `json:"hour,omitempty"`
	// Minute within the hour in [0,59]; nil for the default snooze interval.
	Minute *int `json:"minute,omitempty"`
}

// ChangeRequest replaces an alarm's settings.
type ChangeRequest struct {
	// Alarm is the full replacement settings snapshot.
	Alarm Alarm `json:"alarm"`
}

// PrealarmDurationRequest updates the pre-alarm offset preference.
type PrealarmDurationRequest struct {
	// Minutes is the new offset. Zero disables pre-alarms.
	Minutes int `json:"minutes"`
}

// Result is the payload of every reply.
type Result struct {
	// Error is the failure description; empty on success.
	Error string `json:"error,omitempty"`
	// Alarms is the current alarm list, present for commands that mutate
	// or query it.
	Alarms []Alarm `json:"alarms,omitempty"`
	// Alarm is the alarm a single-target command acted on.
	Alarm *Alarm `json:"alarm,omitempty"`
}

// Alarm is the wire representation of a single alarm.
type Alarm struct {
	// ID is the stable alarm identifier.
	ID int `json:"id"`
	// IsEnabled indicates whether the alarm is active.
	IsEnabled bool `json:"is_enabled"`
	// Hour of day in [0,23].
	Hour int `json:"hour"`
	// Minutes within the hour in [0,59].
	Minutes int `json:"minutes"`
	// DaysOfWeek is the 7-bit repeat mask; bit 0 is Sunday.
	DaysOfWeek uint8 `json:"days_of_week"`
	// Label is the user-visible description.
	Label string `json:"label"`
	// IsPrealarm enables the earlier, quieter warning.
	IsPrealarm bool `json:"is_prealarm"`
	// IsVibrate enables vibration alongside sound.
	IsVibrate bool `json:"is_vibrate"`
	// ToneKind selects the ringtone variant.
	ToneKind int `json:"tone_kind"`
	// ToneURI locates the custom ringtone sound; empty otherwise.
	ToneURI string `json:"tone_uri,omitempty"`
	// Skipping is true while the next occurrence is being skipped.
	Skipping bool `json:"skipping"`
	// Date is an optional one-shot calendar date in 2006-01-02 form.
	Date string `json:"date,omitempty"`
	// IsDeleteAfterDismiss removes the alarm entirely once dismissed.
	IsDeleteAfterDismiss bool `json:"is_delete_after_dismiss"`
	// State is the current lifecycle state name.
	State string `json:"state"`
	// NextTime is the next fire instant in RFC 3339 form; empty when the
	// alarm is not scheduled.
	NextTime string `json:"next_time,omitempty"`
}

// dateLayout is the wire form of one-shot calendar dates.
const dateLayout = "2006-01-02"

// FromValue converts a domain snapshot to its wire representation.
func FromValue(v *alarm.Value) Alarm {
	out := Alarm{
		ID:                   v.ID,
		IsEnabled:            v.IsEnabled,
		Hour:                 v.Hour,
		Minutes:              v.Minutes,
		DaysOfWeek:           uint8(v.DaysOfWeek),
		Label:                v.Label,
		IsPrealarm:           v.IsPrealarm,
		IsVibrate:            v.IsVibrate,
		ToneKind:             int(v.Tone.Kind),
		ToneURI:              v.Tone.URI,
		Skipping:             v.Skipping,
		IsDeleteAfterDismiss: v.IsDeleteAfterDismiss,
		State:                v.State,
	}

	if v.Date != nil {
		out.Date = v.Date.Format(dateLayout)
	}

	if !v.NextTime.IsZero() {
		out.NextTime = v.NextTime.Format(time.RFC3339)
	}

	return out
}

// ToValue converts a wire alarm back to a domain snapshot. Out-of-range
// clock fields are rejected; time.Date would silently normalize them into a
// different day.
func (a Alarm) ToValue() (*alarm.Value, error) {
	if a.Hour < 0 || a.Hour > 23 {
		return nil, fmt.Errorf("hour %d out of range [0,23]", a.Hour)
	}

	if a.Minutes < 0 || a.Minutes > 59 {
		return nil, fmt.Errorf("minutes %d out of range [0,59]", a.Minutes)
	}

	out := &alarm.Value{
		ID:                   a.ID,
		IsEnabled:            a.IsEnabled,
		Hour:                 a.Hour,
		Minutes:              a.Minutes,
		DaysOfWeek:           alarm.Weekdays(a.DaysOfWeek),
		Label:                a.Label,
		IsPrealarm:           a.IsPrealarm,
		IsVibrate:            a.IsVibrate,
		Tone:                 alarm.Tone{Kind: alarm.ToneKind(a.ToneKind), URI: a.ToneURI},
		Skipping:             a.Skipping,
		IsDeleteAfterDismiss: a.IsDeleteAfterDismiss,
		State:                a.State,
	}

	if a.Date != "" {
		date, err := time.ParseInLocation(dateLayout, a.Date, time.Local)
		if err != nil {
			return nil, err
		}

		out.Date = &date
	}

	if a.NextTime != "" {
		next, err := time.Parse(time.RFC3339, a.NextTime)
		if err != nil {
			return nil, err
		}

		out.NextTime = next
	}

	return out, nil
}

// Encode wraps a payload into an envelope of the given type.
func Encode(messageType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: messageType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{Type: messageType, Data: data}, nil
}
