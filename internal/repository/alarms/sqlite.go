package alarms

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	// Registers the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
)

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0o750

// dateLayout stores the optional fire-date override.
const dateLayout = "2006-01-02"

//go:embed migrations.sql
var migrations string

// SQLiteStore persists alarm values in a local SQLite database file.
type SQLiteStore struct {
	// db is the open database handle.
	db *sql.DB
}

// NewSQLiteStore opens (and creates, if needed) the database at path and
// applies the schema migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path must be provided")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err = db.ExecContext(ctx, migrations); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns all persisted alarm values ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]*alarm.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enabled, hour, minutes, days_of_week, label, prealarm,
		       vibrate, tone_kind, tone_uri, skipping, fire_date,
		       delete_after_dismiss, state, next_time
		FROM alarms
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()

	var values []*alarm.Value

	for rows.Next() {
		value, err := scanValue(rows)
		if err != nil {
			return nil, err
		}

		values = append(values, value)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}

	return values, nil
}

// Save writes a full replacement row for the alarm.
func (s *SQLiteStore) Save(ctx context.Context, value *alarm.Value) error {
	if value == nil {
		return fmt.Errorf("alarm value must be provided")
	}

	fireDate := ""
	if value.Date != nil {
		fireDate = value.Date.Format(dateLayout)
	}

	nextTime := ""
	if !value.NextTime.IsZero() {
		nextTime = value.NextTime.Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alarms (
			id, enabled, hour, minutes, days_of_week, label, prealarm,
			vibrate, tone_kind, tone_uri, skipping, fire_date,
			delete_after_dismiss, state, next_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			hour = excluded.hour,
			minutes = excluded.minutes,
			days_of_week = excluded.days_of_week,
			label = excluded.label,
			prealarm = excluded.prealarm,
			vibrate = excluded.vibrate,
			tone_kind = excluded.tone_kind,
			tone_uri = excluded.tone_uri,
			skipping = excluded.skipping,
			fire_date = excluded.fire_date,
			delete_after_dismiss = excluded.delete_after_dismiss,
			state = excluded.state,
			next_time = excluded.next_time`,
		value.ID, value.IsEnabled, value.Hour, value.Minutes, int(value.DaysOfWeek),
		value.Label, value.IsPrealarm, value.IsVibrate, int(value.Tone.Kind),
		value.Tone.URI, value.Skipping, fireDate, value.IsDeleteAfterDismiss,
		value.State, nextTime)
	if err != nil {
		return fmt.Errorf("upsert alarm %d: %w", value.ID, err)
	}

	return nil
}

// Delete removes the row for the alarm. Deleting a missing row is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete alarm %d: %w", id, err)
	}

	return nil
}

// scanValue reads one row into a domain value.
func scanValue(rows *sql.Rows) (*alarm.Value, error) {
	var (
		value    alarm.Value
		days     int
		toneKind int
		fireDate string
		nextTime string
	)

	err := rows.Scan(&value.ID, &value.IsEnabled, &value.Hour, &value.Minutes,
		&days, &value.Label, &value.IsPrealarm, &value.IsVibrate, &toneKind,
		&value.Tone.URI, &value.Skipping, &fireDate,
		&value.IsDeleteAfterDismiss, &value.State, &nextTime)
	if err != nil {
		return nil, fmt.Errorf("scan alarm row: %w", err)
	}

	value.DaysOfWeek = alarm.Weekdays(days)
	value.Tone.Kind = alarm.ToneKind(toneKind)

	if fireDate != "" {
		date, err := time.ParseInLocation(dateLayout, fireDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse fire date of alarm %d: %w", value.ID, err)
		}

		value.Date = &date
	}

	if nextTime != "" {
		at, err := time.Parse(time.RFC3339, nextTime)
		if err != nil {
			return nil, fmt.Errorf("parse next time of alarm %d: %w", value.ID, err)
		}

		value.NextTime = at
	}

	return &value, nil
}
