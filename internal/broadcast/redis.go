package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// Channel name suffixes under the configured prefix.
const (
	signalChannel = "signals"
	listChannel   = "list"
	nextChannel   = "next"
)

// RedisPublisher fans outbound events to Redis pub/sub channels as JSON.
// Publish failures are logged and dropped; signal delivery is best-effort
// and must never stall event processing.
type RedisPublisher struct {
	// client is the shared Redis connection.
	client *redis.Client
	// prefix namespaces the channels, e.g. "alarmd" -> "alarmd:signals".
	prefix string
}

// NewRedisPublisher connects to Redis at addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr, prefix string) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address must be provided")
	}

	if prefix == "" {
		prefix = "alarmd"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPublisher{
		client: client,
		prefix: prefix,
	}, nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// signalPayload is the wire form of a state-change signal.
type signalPayload struct {
	AlarmID int    `json:"alarm_id"`
	Signal  string `json:"signal"`
	At      string `json:"at,omitempty"`
}

// valuePayload is the wire form of one alarm in the published list.
type valuePayload struct {
	ID                 int    `json:"id"`
	Enabled            bool   `json:"enabled"`
	Hour               int    `json:"hour"`
	Minutes            int    `json:"minutes"`
	DaysOfWeek         int    `json:"days_of_week"`
	Label              string `json:"label"`
	Prealarm           bool   `json:"prealarm"`
	Vibrate            bool   `json:"vibrate"`
	Skipping           bool   `json:"skipping"`
	DeleteAfterDismiss bool   `json:"delete_after_dismiss"`
	State              string `json:"state"`
	NextTime           string `json:"next_time,omitempty"`
}

// nextPayload is the wire form of the next-alarm projection.
type nextPayload struct {
	AlarmID    int    `json:"alarm_id"`
	IsPrealarm bool   `json:"is_prealarm"`
	At         string `json:"at"`
}

// Publish sends a state-change signal.
func (p *RedisPublisher) Publish(ctx context.Context, id int, signal alarm.Signal, at time.Time) {
	payload := signalPayload{
		AlarmID: id,
		Signal:  string(signal),
	}

	if !at.IsZero() {
		payload.At = at.Format(time.RFC3339)
	}

	p.send(ctx, signalChannel, payload)
}

// PublishList sends the full current alarm list.
func (p *RedisPublisher) PublishList(ctx context.Context, values []*alarm.Value) {
	payloads := make([]valuePayload, 0, len(values))
	for _, v := range values {
		payloads = append(payloads, toValuePayload(v))
	}

	p.send(ctx, listChannel, payloads)
}

// PublishNext sends the next-alarm projection; "none" is published as null.
func (p *RedisPublisher) PublishNext(ctx context.Context, next *scheduler.NextAlarm) {
	if next == nil {
		p.send(ctx, nextChannel, (*nextPayload)(nil))

		return
	}

	p.send(ctx, nextChannel, nextPayload{
		AlarmID:    next.ID,
		IsPrealarm: next.IsPrealarm,
		At:         next.At.Format(time.RFC3339),
	})
}

// send marshals and publishes one payload, logging failures.
func (p *RedisPublisher) send(ctx context.Context, suffix string, payload any) {
	channel := p.prefix + ":" + suffix

	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to marshal broadcast payload", "channel", channel, "error", err)

		return
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		logger.WarnKV(ctx, "Failed to publish broadcast", "channel", channel, "error", err)
	}
}

// toValuePayload converts a domain value to its wire form.
func toValuePayload(v *alarm.Value) valuePayload {
	payload := valuePayload{
		ID:                 v.ID,
		Enabled:            v.IsEnabled,
		Hour:               v.Hour,
		Minutes:            v.Minutes,
		DaysOfWeek:         int(v.DaysOfWeek),
		Label:              v.Label,
		Prealarm:           v.IsPrealarm,
		Vibrate:            v.IsVibrate,
		Skipping:           v.Skipping,
		DeleteAfterDismiss: v.IsDeleteAfterDismiss,
		State:              v.State,
	}

	if !v.NextTime.IsZero() {
		payload.NextTime = v.NextTime.Format(time.RFC3339)
	}

	return payload
}
