package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// newTestPublisher starts an in-process Redis and a publisher plus a
// subscription to one channel.
func newTestPublisher(t *testing.T, channel string) (*RedisPublisher, <-chan *redis.Message) {
	t.Helper()

	server := miniredis.RunT(t)

	publisher, err := NewRedisPublisher(context.Background(), server.Addr(), "test")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, publisher.Close())
	})

	subscriber := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = subscriber.Close()
	})

	sub := subscriber.Subscribe(context.Background(), "test:"+channel)

	// Wait for the subscription to be established before publishing.
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	return publisher, sub.Channel()
}

// receive pulls one message or fails the test.
func receive(t *testing.T, messages <-chan *redis.Message) string {
	t.Helper()

	select {
	case message := <-messages:
		return message.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")

		return ""
	}
}

// TestRedisPublisher_Publish verifies the signal payload shape.
func TestRedisPublisher_Publish(t *testing.T) {
	t.Parallel()

	publisher, messages := newTestPublisher(t, "signals")

	at := time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC)
	publisher.Publish(context.Background(), 3, alarm.SignalSnooze, at)

	var payload struct {
		AlarmID int    `json:"alarm_id"`
		Signal  string `json:"signal"`
		At      string `json:"at"`
	}

	require.NoError(t, json.Unmarshal([]byte(receive(t, messages)), &payload))
	require.Equal(t, 3, payload.AlarmID)
	require.Equal(t, "SNOOZE", payload.Signal)
	require.Equal(t, "2025-03-10T07:00:00Z", payload.At)

	// A zero instant omits the at field.
	publisher.Publish(context.Background(), 3, alarm.SignalAlert, time.Time{})
	require.NotContains(t, receive(t, messages), `"at"`)
}

// TestRedisPublisher_PublishList verifies the list payload.
func TestRedisPublisher_PublishList(t *testing.T) {
	t.Parallel()

	publisher, messages := newTestPublisher(t, "list")

	values := []*alarm.Value{
		{ID: 1, IsEnabled: true, Hour: 7, Minutes: 30, Label: "work", State: "NormalSet"},
		{ID: 2, Hour: 9, State: "Disabled"},
	}

	publisher.PublishList(context.Background(), values)

	var payload []map[string]any
	require.NoError(t, json.Unmarshal([]byte(receive(t, messages)), &payload))
	require.Len(t, payload, 2)
	require.EqualValues(t, 1, payload[0]["id"])
	require.Equal(t, "work", payload[0]["label"])
	require.Equal(t, "Disabled", payload[1]["state"])
}

// TestRedisPublisher_PublishNext verifies the projection payload including the
// explicit null for "nothing scheduled".
func TestRedisPublisher_PublishNext(t *testing.T) {
	t.Parallel()

	publisher, messages := newTestPublisher(t, "next")

	at := time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC)
	publisher.PublishNext(context.Background(), &scheduler.NextAlarm{ID: 2, IsPrealarm: true, At: at})

	var payload struct {
		AlarmID    int    `json:"alarm_id"`
		IsPrealarm bool   `json:"is_prealarm"`
		At         string `json:"at"`
	}

	require.NoError(t, json.Unmarshal([]byte(receive(t, messages)), &payload))
	require.Equal(t, 2, payload.AlarmID)
	require.True(t, payload.IsPrealarm)

	publisher.PublishNext(context.Background(), nil)
	require.Equal(t, "null", receive(t, messages))
}

// TestNewRedisPublisher_Validation verifies address handling.
func TestNewRedisPublisher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRedisPublisher(context.Background(), "", "test")
	require.Error(t, err)

	// An unreachable server fails fast instead of at first publish.
	_, err = NewRedisPublisher(context.Background(), "127.0.0.1:1", "test")
	require.Error(t, err)
}
