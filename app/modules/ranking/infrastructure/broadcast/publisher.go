package rankingbroadcast

import (
	"context"
	"fmt"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MetadataObserverID names the message metadata key carrying the recipient.
const MetadataObserverID = "observer_id"

// PublisherDeliverer publishes windows on the event bus.
type PublisherDeliverer struct {
	publisher message.Publisher
}

func NewPublisherDeliverer(publisher message.Publisher) *PublisherDeliverer {
	return &PublisherDeliverer{publisher: publisher}
}

func (d *PublisherDeliverer) Deliver(ctx context.Context, w Window) error {
	msg, err := eventbus.NewMessage(ctx, rankingevents.WindowPushedPayloadV1{
		ObserverID: w.ObserverID,
		Scope:      w.Scope,
		MapID:      w.MapID,
		MapRows:    w.MapRows,
		GlobalRows: w.GlobalRows,
	})
	if err != nil {
		return err
	}
	msg.Metadata.Set("topic", rankingevents.WindowPushedV1)
	msg.Metadata.Set(MetadataObserverID, string(w.ObserverID))

	// Publish takes no context; a stuck transport must not hold the
	// observer's delivery goroutine past its deadline.
	done := make(chan error, 1)
	go func() {
		done <- d.publisher.Publish(rankingevents.WindowPushedV1, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("deliver window to %s: %w", w.ObserverID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deliver window to %s: %w", w.ObserverID, ctx.Err())
	}
}
