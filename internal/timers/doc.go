// Package timers provides an in-process implementation of the platform
// timer pair using the standard library timer facilities. Expiry callbacks
// are handed to a submit function so the owner can serialize them onto its
// event loop.
package timers
