package broadcast

import (
	"context"
	"time"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/scheduler"
)

// Publisher is the combined outbound surface the daemon wires into the core:
// the state broadcaster, the alarm-list publisher, and the next-alarm
// projection consumer.
type Publisher interface {
	// Publish delivers a per-alarm state-change signal. A zero instant means
	// the signal carries no accompanying time.
	Publish(ctx context.Context, id int, signal alarm.Signal, at time.Time)
	// PublishList delivers the full current alarm list.
	PublishList(ctx context.Context, values []*alarm.Value)
	// PublishNext delivers the next-alarm projection; nil means none.
	PublishNext(ctx context.Context, next *scheduler.NextAlarm)
}

// LogPublisher writes every outbound event to the log. It is the fallback
// consumer when no Redis address is configured, and keeps signal traffic
// observable in development.
type LogPublisher struct{}

// NewLogPublisher creates the logging publisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs a state-change signal.
func (p *LogPublisher) Publish(ctx context.Context, id int, signal alarm.Signal, at time.Time) {
	if at.IsZero() {
		logger.InfoKV(ctx, "Signal", "alarm_id", id, "signal", string(signal))

		return
	}

	logger.InfoKV(ctx, "Signal", "alarm_id", id, "signal", string(signal), "at", at)
}

// PublishList logs the list size only; the full list is debug noise.
func (p *LogPublisher) PublishList(ctx context.Context, values []*alarm.Value) {
	logger.DebugKV(ctx, "Alarm list updated", "count", len(values))
}

// PublishNext logs the projection.
func (p *LogPublisher) PublishNext(ctx context.Context, next *scheduler.NextAlarm) {
	if next == nil {
		logger.Debug(ctx, "No next alarm")

		return
	}

	logger.InfoKV(ctx, "Next alarm", "alarm_id", next.ID, "at", next.At, "prealarm", next.IsPrealarm)
}

// Fanout delivers every event to all wrapped publishers in order.
type Fanout struct {
	// targets are the wrapped publishers.
	targets []Publisher
}

// NewFanout combines publishers into one.
func NewFanout(targets ...Publisher) *Fanout {
	return &Fanout{targets: targets}
}

// Publish delivers a signal to every target.
func (f *Fanout) Publish(ctx context.Context, id int, signal alarm.Signal, at time.Time) {
	for _, t := range f.targets {
		t.Publish(ctx, id, signal, at)
	}
}

// PublishList delivers the list to every target.
func (f *Fanout) PublishList(ctx context.Context, values []*alarm.Value) {
	for _, t := range f.targets {
		t.PublishList(ctx, values)
	}
}

// PublishNext delivers the projection to every target.
func (f *Fanout) PublishNext(ctx context.Context, next *scheduler.NextAlarm) {
	for _, t := range f.targets {
		t.PublishNext(ctx, next)
	}
}
