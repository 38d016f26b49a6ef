package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alarmd/alarmd/internal/clock"
	"github.com/alarmd/alarmd/internal/config"
	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/engine"
	"github.com/alarmd/alarmd/internal/protocol"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// memStore keeps alarm values in memory.
type memStore struct {
	// values maps alarm id to its last saved snapshot.
	values map[int]*alarm.Value
}

func newMemStore() *memStore {
	return &memStore{values: make(map[int]*alarm.Value)}
}

func (s *memStore) List(context.Context) ([]*alarm.Value, error) {
	out := make([]*alarm.Value, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v.Clone())
	}

	return out, nil
}

func (s *memStore) Save(_ context.Context, value *alarm.Value) error {
	s.values[value.ID] = value.Clone()

	return nil
}

func (s *memStore) Delete(_ context.Context, id int) error {
	delete(s.values, id)

	return nil
}

// nopTimers absorbs scheduling calls.
type nopTimers struct{}

func (nopTimers) SetAlarm(context.Context, int, scheduler.Type, time.Time, *alarm.Value) {}
func (nopTimers) RemoveAlarm(context.Context, int)                                       {}
func (nopTimers) SetInexactAlarm(context.Context, int, time.Time)                        {}
func (nopTimers) RemoveInexactAlarm(context.Context, int)                                {}

// nopBroadcast absorbs outbound signals.
type nopBroadcast struct{}

func (nopBroadcast) Publish(context.Context, int, alarm.Signal, time.Time) {}

// newTestService builds a service over a manager seeded with the two default
// alarms. The settings double as the preference source.
func newTestService(t *testing.T) *service {
	t.Helper()

	settings := config.Default()

	manager := engine.NewManager(engine.Deps{
		Clock:     clock.NewFake(time.Date(2025, time.March, 10, 6, 0, 0, 0, time.Local)),
		Store:     newMemStore(),
		Timers:    nopTimers{},
		Prefs:     settings,
		Broadcast: nopBroadcast{},
	}, nil)

	require.NoError(t, manager.Start(context.Background()))

	return &service{
		manager:    manager,
		settings:   settings,
		configPath: filepath.Join(t.TempDir(), config.DefaultConfigFilename),
	}
}

// dispatch executes one command and decodes the reply payload.
func dispatch(t *testing.T, svc *service, commandType string, payload any) (string, *protocol.Result) {
	t.Helper()

	request, err := protocol.Encode(commandType, payload)
	require.NoError(t, err)

	reply := svc.handleMessage(context.Background(), request)

	var result protocol.Result
	require.NoError(t, json.Unmarshal(reply.Data, &result))

	return reply.Type, &result
}

// TestService_List verifies the seeded alarm list is reported.
func TestService_List(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandList, nil)
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Len(t, result.Alarms, 2)
	require.Equal(t, "Disabled", result.Alarms[0].State)
}

// TestService_Create verifies creation reports both the new alarm and the list.
func TestService_Create(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandCreate, nil)
	require.Equal(t, protocol.ReplyOK, replyType)
	require.NotNil(t, result.Alarm)
	require.Equal(t, 3, result.Alarm.ID)
	require.False(t, result.Alarm.IsEnabled)
	require.Len(t, result.Alarms, 3)
}

// TestService_EnableAndDisable verifies single-target commands round-trip the
// acted-on alarm.
func TestService_EnableAndDisable(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandEnable, protocol.TargetRequest{ID: 1})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.NotNil(t, result.Alarm)
	require.True(t, result.Alarm.IsEnabled)
	require.Equal(t, "NormalSet", result.Alarm.State)
	require.NotEmpty(t, result.Alarm.NextTime)

	replyType, result = dispatch(t, svc, protocol.CommandDisable, protocol.TargetRequest{ID: 1})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.False(t, result.Alarm.IsEnabled)
	require.Equal(t, "Disabled", result.Alarm.State)
}

// TestService_MuteOutsideRinging verifies mute on a non-ringing alarm is a
// harmless no-op.
func TestService_MuteOutsideRinging(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandMute, protocol.TargetRequest{ID: 1})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Equal(t, "Disabled", result.Alarm.State)
}

// TestService_Delete verifies deletion reports no surviving alarm snapshot.
func TestService_Delete(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandDelete, protocol.TargetRequest{ID: 2})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Nil(t, result.Alarm)
	require.Len(t, result.Alarms, 1)
}

// TestService_Change verifies a full settings replacement.
func TestService_Change(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, current := dispatch(t, svc, protocol.CommandList, nil)

	changed := current.Alarms[0]
	changed.Hour = 6
	changed.Minutes = 45
	changed.Label = "gym"

	replyType, result := dispatch(t, svc, protocol.CommandChange, protocol.ChangeRequest{Alarm: changed})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Equal(t, 6, result.Alarm.Hour)
	require.Equal(t, 45, result.Alarm.Minutes)
	require.Equal(t, "gym", result.Alarm.Label)
}

// TestService_RejectsOutOfRangeClock verifies change and snooze refuse hour
// or minute values outside the clock range.
func TestService_RejectsOutOfRangeClock(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, current := dispatch(t, svc, protocol.CommandList, nil)

	changed := current.Alarms[0]
	changed.Hour = 99

	replyType, result := dispatch(t, svc, protocol.CommandChange, protocol.ChangeRequest{Alarm: changed})
	require.Equal(t, protocol.ReplyError, replyType)
	require.Contains(t, result.Error, "out of range")

	hour, minute := 7, 75
	replyType, result = dispatch(t, svc, protocol.CommandSnooze,
		protocol.SnoozeRequest{ID: 1, Hour: &hour, Minute: &minute})
	require.Equal(t, protocol.ReplyError, replyType)
	require.Contains(t, result.Error, "out of range")
}

// TestService_UnknownAlarm verifies targeting a missing id yields an error reply.
func TestService_UnknownAlarm(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandDismiss, protocol.TargetRequest{ID: 99})
	require.Equal(t, protocol.ReplyError, replyType)
	require.Contains(t, result.Error, "no such alarm")
}

// TestService_UnknownCommand verifies unrecognized types yield an error reply.
func TestService_UnknownCommand(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, "reboot", nil)
	require.Equal(t, protocol.ReplyError, replyType)
	require.Contains(t, result.Error, "unknown command")
}

// TestService_TimeSet verifies the clock-change fan-out replies with the list.
func TestService_TimeSet(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, result := dispatch(t, svc, protocol.CommandTimeSet, nil)
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Len(t, result.Alarms, 2)
}

// TestService_SetPrealarmDuration verifies the preference update is applied
// and persisted.
func TestService_SetPrealarmDuration(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	replyType, _ := dispatch(t, svc, protocol.CommandSetPrealarmDuration,
		protocol.PrealarmDurationRequest{Minutes: 45})
	require.Equal(t, protocol.ReplyOK, replyType)
	require.Equal(t, 45, svc.settings.PrealarmMinutes)

	saved, err := os.ReadFile(svc.configPath)
	require.NoError(t, err)
	require.Contains(t, string(saved), "45")

	replyType, result := dispatch(t, svc, protocol.CommandSetPrealarmDuration,
		protocol.PrealarmDurationRequest{Minutes: -1})
	require.Equal(t, protocol.ReplyError, replyType)
	require.NotEmpty(t, result.Error)
}
