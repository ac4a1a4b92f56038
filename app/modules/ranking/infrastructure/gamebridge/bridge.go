// Package gamebridge relays game-server traffic between NATS and the
// in-process event bus.
package gamebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	rankingbroadcast "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/broadcast"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// HeaderCorrelationID carries the correlation id on NATS messages.
const HeaderCorrelationID = "Correlation-Id"

// redeliveryDelay spaces JetStream redeliveries of messages the bus refused.
const redeliveryDelay = 2 * time.Second

type Config struct {
	URL           string
	SubjectPrefix string
	Stream        string
	Durable       string
	MaxAge        time.Duration
}

func (c *Config) applyDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "maprank"
	}
	if c.Stream == "" {
		c.Stream = "MAPRANK_INBOUND"
	}
	if c.Durable == "" {
		c.Durable = "maprank-ranking"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
}

// Bridge consumes inbound game subjects from a JetStream stream and relays
// outbound bus topics to plain NATS subjects.
type Bridge struct {
	cfg      Config
	nc       *nats.Conn
	publish  func(*nats.Msg) error
	consumer jetstream.Consumer
	bus      eventbus.EventBus
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// Dial connects to NATS and prepares the inbound stream and durable consumer.
func Dial(ctx context.Context, cfg Config, bus eventbus.EventBus, logger *slog.Logger) (*Bridge, error) {
	cfg.applyDefaults()

	nc, err := nats.Connect(cfg.URL,
		nats.Name("maprank"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("initialize JetStream: %w", err)
	}

	stream, err := eventbus.EnsureStream(ctx, js, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: InboundSubjects(cfg.SubjectPrefix),
		MaxAge:   cfg.MaxAge,
	}, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer %s: %w", cfg.Durable, err)
	}

	return &Bridge{cfg: cfg, nc: nc, publish: nc.PublishMsg, consumer: consumer, bus: bus, logger: logger}, nil
}

// Run relays in both directions until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for _, topic := range rankingevents.OutboundTopics() {
		msgs, err := b.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		b.wg.Add(1)
		go b.relayOutbound(topic, msgs)
	}

	cc, err := b.consumer.Consume(func(msg jetstream.Msg) {
		b.forwardInbound(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.cfg.Stream, err)
	}

	b.logger.InfoContext(ctx, "Game bridge running",
		attr.String("stream", b.cfg.Stream),
		attr.String("prefix", b.cfg.SubjectPrefix),
	)
	<-ctx.Done()
	cc.Stop()
	b.wg.Wait()
	return nil
}

func (b *Bridge) forwardInbound(ctx context.Context, msg jetstream.Msg) {
	topic, ok := TopicForSubject(b.cfg.SubjectPrefix, msg.Subject())
	if !ok {
		b.logger.WarnContext(ctx, "Unroutable game subject", attr.String("subject", msg.Subject()))
		_ = msg.Term()
		return
	}

	payload := msg.Data()
	if topic == rankingevents.FinishRecordedV1 {
		stamped, err := stampArrival(msg)
		if err != nil {
			b.logger.WarnContext(ctx, "Dropping malformed finish", attr.String("subject", msg.Subject()), attr.Error(err))
			_ = msg.Term()
			return
		}
		payload = stamped
	}

	out := message.NewMessage(watermill.NewUUID(), payload)
	correlationID := msg.Headers().Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = watermill.NewShortUUID()
	}
	middleware.SetCorrelationID(correlationID, out)
	out.Metadata.Set("topic", topic)
	out.Metadata.Set("nats_subject", msg.Subject())

	if err := b.bus.Publish(topic, out); err != nil {
		b.logger.ErrorContext(ctx, "Failed to forward game message", attr.String("topic", topic), attr.Error(err))
		_ = msg.NakWithDelay(redeliveryDelay)
		return
	}
	_ = msg.Ack()
}

// stampArrival fills arrived_at from the stream timestamp when the game
// server left it out, so redelivery keeps the original arrival.
func stampArrival(msg jetstream.Msg) ([]byte, error) {
	var p rankingevents.FinishRecordedPayloadV1
	if err := json.Unmarshal(msg.Data(), &p); err != nil {
		return nil, err
	}
	if !p.ArrivedAt.IsZero() {
		return msg.Data(), nil
	}
	md, err := msg.Metadata()
	if err != nil {
		return nil, err
	}
	p.ArrivedAt = md.Timestamp.UTC()
	return json.Marshal(p)
}

// relayOutbound acks every message, delivered or not. Outbound traffic is
// superseded by the next push, and a nack would spin the bus redelivering
// the same message while NATS is down.
func (b *Bridge) relayOutbound(topic string, msgs <-chan *message.Message) {
	defer b.wg.Done()
	for msg := range msgs {
		subject := OutboundSubject(b.cfg.SubjectPrefix, topic, msg.Metadata.Get(rankingbroadcast.MetadataObserverID))
		out := nats.NewMsg(subject)
		out.Data = msg.Payload
		out.Header.Set(HeaderCorrelationID, middleware.MessageCorrelationID(msg))

		if err := b.publish(out); err != nil {
			b.logger.Warn("Dropped outbound message",
				attr.String("subject", subject),
				attr.Error(err),
			)
		}
		msg.Ack()
	}
}

// Close drains the NATS connection.
func (b *Bridge) Close() error {
	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
