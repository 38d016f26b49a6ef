// Package broadcast delivers the core's outbound events to the outside
// world: per-alarm state-change signals, the full alarm list, and the "next
// alarm" projection. The core only produces these events; it neither knows
// nor cares how many consumers exist.
//
// Two publishers are provided: a Redis pub/sub publisher for real consumers
// and a logging publisher used when no Redis address is configured. Fanout
// combines several publishers into one.
package broadcast
