// Package notify carries status changes to the affected user. Emitting is
// fire-and-forget from the caller's side: a failed emit never undoes the
// change it reports.
package notify

import (
	"context"
	"log/slog"

	"github.com/campusride/rideshare/internal/domain"
)

type Emitter interface {
	Emit(ctx context.Context, event domain.RideEvent) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// KafkaEmitter publishes to the ride events topic keyed by ride id and
// mirrors the event to the notifications topic when one is configured.
type KafkaEmitter struct {
	publisher          Publisher
	eventsTopic        string
	notificationsTopic string
}

type KafkaEmitterOption func(*KafkaEmitter)

func WithNotificationsTopic(topic string) KafkaEmitterOption {
	return func(e *KafkaEmitter) {
		e.notificationsTopic = topic
	}
}

func NewKafkaEmitter(publisher Publisher, eventsTopic string, opts ...KafkaEmitterOption) *KafkaEmitter {
	e := &KafkaEmitter{publisher: publisher, eventsTopic: eventsTopic}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *KafkaEmitter) Emit(ctx context.Context, event domain.RideEvent) error {
	if e.publisher == nil || e.eventsTopic == "" {
		return nil
	}
	if err := e.publisher.Publish(ctx, e.eventsTopic, event.RideID, event); err != nil {
		return err
	}
	if e.notificationsTopic != "" {
		return e.publisher.Publish(ctx, e.notificationsTopic, event.Recipient, event)
	}
	return nil
}

// LogEmitter is used when no broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event domain.RideEvent) error {
	e.logger.InfoContext(ctx, "ride event",
		"type", event.Type,
		"ride_id", event.RideID,
		"recipient", event.Recipient,
		"status", event.Status,
	)
	return nil
}

var (
	_ Emitter = (*KafkaEmitter)(nil)
	_ Emitter = (*LogEmitter)(nil)
)
