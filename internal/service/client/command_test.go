package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alarmd/alarmd/internal/protocol"
)

// startFakeDaemon accepts one connection and replies with the provided
// message, recording the received request.
func startFakeDaemon(t *testing.T, reply *protocol.Message) (string, <-chan *protocol.Message) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = listener.Close()
	})

	received := make(chan *protocol.Message, 1)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var request protocol.Message
		if err := json.NewDecoder(conn).Decode(&request); err != nil {
			return
		}

		received <- &request

		_ = json.NewEncoder(conn).Encode(reply)
	}()

	return listener.Addr().String(), received
}

// missingConfigPath returns a path whose absence makes Load fall back to
// defaults, keeping the test independent of any real settings file.
func missingConfigPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "absent.yaml")
}

// TestBuildRequest verifies payload selection per command.
func TestBuildRequest(t *testing.T) {
	t.Parallel()

	message, err := buildRequest(&Options{Command: protocol.CommandList})
	require.NoError(t, err)
	require.Nil(t, message.Data)

	message, err = buildRequest(&Options{Command: protocol.CommandDismiss, AlarmID: 4})
	require.NoError(t, err)

	var target protocol.TargetRequest
	require.NoError(t, json.Unmarshal(message.Data, &target))
	require.Equal(t, 4, target.ID)

	hour, minute := 9, 30
	message, err = buildRequest(&Options{Command: protocol.CommandSnooze, AlarmID: 2, Hour: &hour, Minute: &minute})
	require.NoError(t, err)

	var snooze protocol.SnoozeRequest
	require.NoError(t, json.Unmarshal(message.Data, &snooze))
	require.Equal(t, 2, snooze.ID)
	require.Equal(t, 9, *snooze.Hour)

	_, err = buildRequest(&Options{Command: protocol.CommandChange})
	require.Error(t, err)

	message, err = buildRequest(&Options{Command: protocol.CommandSetPrealarmDuration, Minutes: 20})
	require.NoError(t, err)

	var duration protocol.PrealarmDurationRequest
	require.NoError(t, json.Unmarshal(message.Data, &duration))
	require.Equal(t, 20, duration.Minutes)
}

// TestRun_RoundTrip verifies the full exchange and output rendering.
func TestRun_RoundTrip(t *testing.T) {
	t.Parallel()

	reply, err := protocol.Encode(protocol.ReplyOK, &protocol.Result{
		Alarms: []protocol.Alarm{
			{ID: 1, IsEnabled: true, Hour: 7, Minutes: 30, Label: "work", State: "NormalSet", NextTime: "2025-03-10T07:30:00Z"},
			{ID: 2, Hour: 9, Minutes: 0, State: "Disabled", Skipping: true},
		},
	})
	require.NoError(t, err)

	address, received := startFakeDaemon(t, reply)

	var out bytes.Buffer
	err = Run(context.Background(), &Options{
		ConfigPath:    missingConfigPath(t),
		ServerAddress: address,
		Command:       protocol.CommandList,
		Output:        &out,
	})
	require.NoError(t, err)

	request := <-received
	require.Equal(t, protocol.CommandList, request.Type)

	require.Contains(t, out.String(), "#1 07:30 [on] work (NormalSet) next 2025-03-10T07:30:00Z")
	require.Contains(t, out.String(), "#2 09:00 [off]  (Disabled) skipping")
}

// TestDo_ErrorReply verifies daemon-side failures surface as errors.
func TestDo_ErrorReply(t *testing.T) {
	t.Parallel()

	reply, err := protocol.Encode(protocol.ReplyError, &protocol.Result{Error: "no such alarm: 9"})
	require.NoError(t, err)

	address, _ := startFakeDaemon(t, reply)

	_, err = Do(context.Background(), &Options{
		ConfigPath:    missingConfigPath(t),
		ServerAddress: address,
		Command:       protocol.CommandDismiss,
		AlarmID:       9,
	})
	require.ErrorIs(t, err, errCommandFailed)
	require.Contains(t, err.Error(), "no such alarm")
}

// TestDo_DialFailure verifies an unreachable daemon is reported.
func TestDo_DialFailure(t *testing.T) {
	t.Parallel()

	_, err := Do(context.Background(), &Options{
		ConfigPath:    missingConfigPath(t),
		ServerAddress: "127.0.0.1:1",
		Command:       protocol.CommandList,
	})
	require.Error(t, err)
}

// TestFormatAlarm verifies the rendered line shape.
func TestFormatAlarm(t *testing.T) {
	t.Parallel()

	line := formatAlarm(protocol.Alarm{ID: 3, IsEnabled: true, Hour: 6, Minutes: 5, Label: "run", State: "Fired"})
	require.Equal(t, "#3 06:05 [on] run (Fired)", line)
}
