package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
)

// Default alarm times seeded into a fresh, empty store.
const (
	defaultWeekdayHour   = 8
	defaultWeekdayMinute = 30
	defaultWeekendHour   = 9
	defaultWeekendMinute = 30
)

// Manager owns the set of live Alarm instances: it creates and destroys
// them, routes platform timer callbacks to the right instance, and publishes
// the shared alarm list. Like the alarms themselves it must only be touched
// from the single event-processing goroutine.
type Manager struct {
	// deps is the collaborator bundle handed to every alarm, with the
	// manager's own callbacks filled in.
	deps Deps
	// list receives the full alarm list after every mutation. Optional.
	list ListPublisher
	// alarms maps id to its live instance.
	alarms map[int]*Alarm
	// nextID is the next identifier to assign; ids are never reused while
	// the alarm exists.
	nextID int
}

// NewManager wires a manager around the shared collaborators.
func NewManager(deps Deps, list ListPublisher) *Manager {
	m := &Manager{
		deps:   deps,
		list:   list,
		alarms: make(map[int]*Alarm),
		nextID: 1,
	}

	m.deps.OnChange = m.publishList
	m.deps.OnDelete = m.dropInstance

	return m
}

// Start loads all persisted records and resumes an alarm per record. A fresh,
// empty store is seeded with two default alarms.
func (m *Manager) Start(ctx context.Context) error {
	ctx = logger.WithName(ctx, "manager")

	values, err := m.deps.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}

	if len(values) == 0 {
		values = m.seedDefaults(ctx)
	}

	for _, v := range values {
		if v.ID >= m.nextID {
			m.nextID = v.ID + 1
		}

		m.alarms[v.ID] = newAlarm(v, m.deps)
	}

	for _, id := range m.sortedIDs() {
		m.alarms[id].Start(ctx)
	}

	logger.InfoKV(ctx, "Alarms loaded", "count", len(m.alarms))
	m.publishList(ctx)

	return nil
}

// CreateNewAlarm allocates a record, constructs its alarm, and starts it.
// New alarms begin disabled.
func (m *Manager) CreateNewAlarm(ctx context.Context) *Alarm {
	id := m.nextID
	m.nextID++

	value := &alarm.Value{
		ID:      id,
		Hour:    defaultWeekdayHour,
		Minutes: 0,
		Tone:    alarm.Tone{Kind: alarm.ToneDefault},
	}

	a := newAlarm(value, m.deps)
	m.alarms[id] = a
	a.Start(ctx)

	logger.InfoKV(ctx, "Alarm created", "alarm_id", id)
	m.publishList(ctx)

	return a
}

// Alarm returns the live instance for the id.
func (m *Manager) Alarm(id int) (*Alarm, bool) {
	a, ok := m.alarms[id]

	return a, ok
}

// Values returns display copies of all live alarms, ordered by id.
func (m *Manager) Values() []*alarm.Value {
	values := make([]*alarm.Value, 0, len(m.alarms))
	for _, id := range m.sortedIDs() {
		values = append(values, m.alarms[id].Value())
	}

	return values
}

// OnAlarmFired routes a platform timer fire to the owning alarm. The
// scheduler entry is removed first as an idempotent safety net; a fire for an
// id that no longer exists is logged and dropped.
func (m *Manager) OnAlarmFired(ctx context.Context, id int) {
	m.deps.Timers.RemoveAlarm(ctx, id)

	a, ok := m.alarms[id]
	if !ok {
		logger.ErrorKV(ctx, "Fired event for unknown alarm", "alarm_id", id)

		return
	}

	a.Fired(ctx)
}

// OnInexactAlarmFired routes a skip-preview timer fire to the owning alarm.
func (m *Manager) OnInexactAlarmFired(ctx context.Context, id int) {
	m.deps.Timers.RemoveInexactAlarm(ctx, id)

	a, ok := m.alarms[id]
	if !ok {
		logger.ErrorKV(ctx, "Inexact fire for unknown alarm", "alarm_id", id)

		return
	}

	a.InexactFired(ctx)
}

// OnTimeSet fans a device clock change out to every alarm.
func (m *Manager) OnTimeSet(ctx context.Context) {
	for _, id := range m.sortedIDs() {
		m.alarms[id].TimeSet(ctx)
	}
}

// OnPrealarmDurationChanged fans a pre-alarm preference change out to every alarm.
func (m *Manager) OnPrealarmDurationChanged(ctx context.Context) {
	for _, id := range m.sortedIDs() {
		m.alarms[id].PrealarmDurationChanged(ctx)
	}
}

// seedDefaults creates the first-run alarms: a weekday and a weekend one,
// both disabled until the user opts in.
func (m *Manager) seedDefaults(ctx context.Context) []*alarm.Value {
	logger.Info(ctx, "Empty store, seeding default alarms")

	weekday := &alarm.Value{
		ID:      m.nextID,
		Hour:    defaultWeekdayHour,
		Minutes: defaultWeekdayMinute,
		DaysOfWeek: alarm.WeekdaysOf(
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		),
		Tone: alarm.Tone{Kind: alarm.ToneDefault},
	}

	weekend := &alarm.Value{
		ID:         m.nextID + 1,
		Hour:       defaultWeekendHour,
		Minutes:    defaultWeekendMinute,
		DaysOfWeek: alarm.WeekdaysOf(time.Saturday, time.Sunday),
		Tone:       alarm.Tone{Kind: alarm.ToneDefault},
	}

	seeds := []*alarm.Value{weekday, weekend}
	for _, v := range seeds {
		if err := m.deps.Store.Save(ctx, v); err != nil {
			logger.ErrorKV(ctx, "Failed to persist seeded alarm", "alarm_id", v.ID, "error", err)
		}
	}

	return seeds
}

// publishList pushes the full current list to the publisher.
func (m *Manager) publishList(ctx context.Context) {
	if m.list == nil {
		return
	}

	m.list.PublishList(ctx, m.Values())
}

// dropInstance removes a deleted alarm from the live set.
func (m *Manager) dropInstance(_ context.Context, id int) {
	delete(m.alarms, id)
}

// sortedIDs returns the live ids in ascending order for deterministic fan-out.
func (m *Manager) sortedIDs() []int {
	ids := make([]int, 0, len(m.alarms))
	for id := range m.alarms {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}
