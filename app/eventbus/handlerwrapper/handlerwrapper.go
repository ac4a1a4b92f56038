// Package handlerwrapper adapts typed handlers to watermill consumer handlers.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is one outbound message produced by a handler.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// WrapTransformingTyped decodes the JSON payload into T, runs handler and
// publishes every returned Result. Undecodable payloads are logged and acked;
// handler errors are returned so router middleware can retry.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	publisher message.Publisher,
	handler func(context.Context, *T) ([]Result, error),
) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		correlationID := middleware.MessageCorrelationID(msg)
		ctx := attr.WithCorrelationID(msg.Context(), correlationID)
		ctx, span := tracer.Start(ctx, handlerName, trace.WithAttributes(
			attribute.String("message.uuid", msg.UUID),
			attribute.String("correlation_id", correlationID),
		))
		defer span.End()

		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			logger.ErrorContext(ctx, "Dropping undecodable message",
				attr.String("handler", handlerName),
				attr.CorrelationIDFromMsg(msg),
				attr.Error(err),
			)
			span.SetStatus(codes.Error, "undecodable payload")
			return nil
		}

		results, err := handler(ctx, &payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%s: %w", handlerName, err)
		}

		for _, r := range results {
			out, err := eventbus.NewMessage(ctx, r.Payload)
			if err != nil {
				return fmt.Errorf("%s: %w", handlerName, err)
			}
			for k, v := range r.Metadata {
				out.Metadata.Set(k, v)
			}
			out.Metadata.Set("topic", r.Topic)
			out.Metadata.Set("handler_name", handlerName)
			if err := publisher.Publish(r.Topic, out); err != nil {
				span.RecordError(err)
				return fmt.Errorf("%s: publish %s: %w", handlerName, r.Topic, err)
			}
		}
		return nil
	}
}
