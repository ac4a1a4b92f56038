package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventBus is the publish/subscribe surface modules are wired against.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

// Config tunes the in-process bus.
type Config struct {
	// OutputBuffer is the per-subscriber channel buffer.
	OutputBuffer int64
}

// NewInProcess creates a bus that delivers messages between goroutines of
// this process. Messages are not persisted.
func NewInProcess(cfg Config, logger *slog.Logger) EventBus {
	if cfg.OutputBuffer <= 0 {
		cfg.OutputBuffer = 256
	}
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.OutputBuffer,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
}

// NewMessage marshals payload as JSON and stamps the correlation id carried
// on ctx, or a fresh one.
func NewMessage(ctx context.Context, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)

	correlationID := attr.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = watermill.NewShortUUID()
	}
	middleware.SetCorrelationID(correlationID, msg)
	msg.SetContext(ctx)
	return msg, nil
}

// Publish marshals payload and publishes it on topic.
func Publish(ctx context.Context, pub message.Publisher, topic string, payload any) error {
	msg, err := NewMessage(ctx, payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	msg.Metadata.Set("topic", topic)
	if err := pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
