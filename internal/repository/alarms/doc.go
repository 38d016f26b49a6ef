// Package alarms persists alarm values in an SQLite database.
//
// The schema is created on open from the embedded migration script. Writes
// are full-row upserts keyed by alarm id, matching the copy-on-write value
// model of the engine.
package alarms
