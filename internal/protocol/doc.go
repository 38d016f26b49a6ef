// Package protocol defines the JSON wire format spoken between the alarm
// daemon and its control client. Every exchange is one request message and
// one response message over a short-lived TCP connection.
package protocol
