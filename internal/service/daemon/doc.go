// Package daemon runs the alarm daemon: it owns the alarm manager, the
// scheduler and the platform timers, persists alarms to SQLite, broadcasts
// state-change signals, and serves JSON commands over TCP.
//
// All alarm work runs on a single event loop goroutine; connections and
// expired timers submit closures to it, so the manager and scheduler need no
// internal locking.
package daemon
