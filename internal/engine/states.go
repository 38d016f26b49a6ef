package engine

// stateID identifies a node in the alarm state graph.
type stateID int

const (
	// stateNone marks "no state" in parent links and transition results.
	stateNone stateID = iota - 1

	// stateDisabled is the resting state of an alarm that is switched off.
	stateDisabled
	// stateEnableTransition decides PreAlarmSet vs NormalSet on (re)activation.
	// Pass-through: never current, never persisted.
	stateEnableTransition
	// stateRescheduleTransition decides the follow-up state after a dismiss.
	// Pass-through: never current, never persisted.
	stateRescheduleTransition
	// stateEnabled is the umbrella over every active state. It re-asserts the
	// enabled flag on entry and handles disable/delete/change/refresh for all
	// children. Never a leaf, does not persist its own name.
	stateEnabled
	// stateSet is the umbrella over the armed states; it owns the
	// skip-preview timer lifecycle. Never a leaf.
	stateSet
	// stateNormalSet waits for the main fire instant.
	stateNormalSet
	// statePreAlarmSet waits for the pre-alarm warning instant.
	statePreAlarmSet
	// stateSkipping suppresses exactly the next occurrence of a repeating alarm.
	stateSkipping
	// stateFired is the ringing state.
	stateFired
	// statePreAlarmFired is the pre-alarm warning ringing state.
	statePreAlarmFired
	// stateSnoozed waits for the snooze instant.
	stateSnoozed
	// statePreAlarmSnoozed waits for the main fire after a snoozed pre-alarm.
	statePreAlarmSnoozed
	// stateDeleted is terminal; entry tears the alarm down.
	stateDeleted

	// stateCount sizes the lookup tables.
	stateCount
)

// stateNames are the persisted state identifiers. They are part of the stored
// record format; renaming them breaks resume after restart.
var stateNames = [stateCount]string{
	stateDisabled:             "Disabled",
	stateEnableTransition:     "EnableTransition",
	stateRescheduleTransition: "RescheduleTransition",
	stateEnabled:              "Enabled",
	stateSet:                  "Set",
	stateNormalSet:            "NormalSet",
	statePreAlarmSet:          "PreAlarmSet",
	stateSkipping:             "Skipping",
	stateFired:                "Fired",
	statePreAlarmFired:        "PreAlarmFired",
	stateSnoozed:              "Snoozed",
	statePreAlarmSnoozed:      "PreAlarmSnoozed",
	stateDeleted:              "Deleted",
}

// stateParents is the explicit hierarchy: entry actions run from the
// outermost ancestor down, exit actions from the leaf up.
var stateParents = [stateCount]stateID{
	stateDisabled:             stateNone,
	stateEnableTransition:     stateNone,
	stateRescheduleTransition: stateNone,
	stateEnabled:              stateNone,
	stateSet:                  stateEnabled,
	stateNormalSet:            stateSet,
	statePreAlarmSet:          stateSet,
	stateSkipping:             stateEnabled,
	stateFired:                stateEnabled,
	statePreAlarmFired:        stateEnabled,
	stateSnoozed:              stateEnabled,
	statePreAlarmSnoozed:      stateEnabled,
	stateDeleted:              stateNone,
}

// String returns the persisted state name.
func (s stateID) String() string {
	if s <= stateNone || s >= stateCount {
		return "None"
	}

	return stateNames[s]
}

// isTransient reports whether the state only routes to another state.
func (s stateID) isTransient() bool {
	return s == stateEnableTransition || s == stateRescheduleTransition
}

// stateByName resolves a persisted name back to its state, for resume.
func stateByName(name string) (stateID, bool) {
	for id := stateID(0); id < stateCount; id++ {
		if stateNames[id] == name {
			return id, true
		}
	}

	return stateNone, false
}

// depth returns the number of ancestors above the state.
func (s stateID) depth() int {
	d := 0
	for p := stateParents[s]; p != stateNone; p = stateParents[p] {
		d++
	}

	return d
}

// commonAncestor returns the deepest shared ancestor of two states, or
// stateNone when the branches are disjoint.
func commonAncestor(a, b stateID) stateID {
	if a == stateNone || b == stateNone {
		return stateNone
	}

	da, db := a.depth(), b.depth()

	for da > db {
		a, da = stateParents[a], da-1
	}

	for db > da {
		b, db = stateParents[b], db-1
	}

	for a != b {
		a = stateParents[a]
		b = stateParents[b]
	}

	return a
}
