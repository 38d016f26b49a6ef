// Package alarm defines the domain model shared by the alarm lifecycle core:
// the immutable Value snapshot describing a single alarm, the weekday repeat
// mask, ringtone variants, outbound signal names, and the calendar math that
// turns an alarm description into absolute fire instants.
package alarm
