// Package scheduler owns the time-ordered set of scheduled alarm entries and
// guarantees that at most one platform timer is outstanding across all
// alarms: the one for the globally earliest entry. It also manages the
// secondary low-priority ("inexact") timer used per alarm for skip previews.
//
// The scheduler performs no internal locking; callers serialize all access on
// a single event-processing goroutine.
package scheduler
