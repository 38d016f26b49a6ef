// Package config defines the daemon settings and provides helpers to load,
// validate and save them in YAML format.
//
// Besides the listen address and storage locations, the settings carry the
// user-tunable alarm durations (pre-alarm offset, snooze, auto-silence,
// skip-preview window); a zero minutes value switches the feature off.
package config
