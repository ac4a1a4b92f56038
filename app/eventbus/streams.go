package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureStream creates the JetStream stream if missing, or adds any subjects
// it does not capture yet.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig, logger *slog.Logger) (jetstream.Stream, error) {
	stream, err := js.Stream(ctx, cfg.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err = js.CreateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.InfoContext(ctx, "Created JetStream stream",
			slog.String("stream", cfg.Name),
			slog.Any("subjects", cfg.Subjects),
		)
		return stream, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check stream %s: %w", cfg.Name, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream info %s: %w", cfg.Name, err)
	}
	missing := false
	for _, subject := range cfg.Subjects {
		if !slices.Contains(info.Config.Subjects, subject) {
			info.Config.Subjects = append(info.Config.Subjects, subject)
			missing = true
		}
	}
	if !missing {
		return stream, nil
	}

	stream, err = js.UpdateStream(ctx, info.Config)
	if err != nil {
		return nil, fmt.Errorf("update stream %s: %w", cfg.Name, err)
	}
	logger.InfoContext(ctx, "Stream updated with new subjects",
		slog.String("stream", cfg.Name),
		slog.Any("subjects", info.Config.Subjects),
	)
	return stream, nil
}
