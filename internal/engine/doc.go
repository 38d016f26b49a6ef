// Package engine implements the per-alarm lifecycle state machine and the
// manager that owns the set of live alarm instances.
//
// The machine is a pure synchronous reducer over (state, event): states form
// an explicit graph with parent links, entry and exit actions run
// outer-to-inner on entry and inner-to-outer on exit, and unhandled events
// bubble from the current leaf to its ancestors. All side effects go through
// narrow collaborator contracts (store, scheduler, broadcaster, preferences),
// so the core stays independent of persistence and rendering concerns.
//
// Nothing here locks: every external trigger must be serialized onto a single
// event-processing goroutine before touching an Alarm or the Manager.
package engine
