// Package client implements the alarmctl control tool: it sends a single
// JSON command to the alarm daemon and prints the reply.
package client
