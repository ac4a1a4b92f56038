package rankingqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/riverqueue/river"
)

// Auditor is the part of the ranking service the audit job needs.
type Auditor interface {
	AuditConsistency(ctx context.Context) (rankingservice.AuditOutcome, error)
}

// ConsistencyAuditWorker runs the periodic totals audit.
type ConsistencyAuditWorker struct {
	river.WorkerDefaults[ConsistencyAuditJob]
	auditor Auditor
	logger  *slog.Logger
}

func NewConsistencyAuditWorker(logger *slog.Logger, auditor Auditor) *ConsistencyAuditWorker {
	return &ConsistencyAuditWorker{auditor: auditor, logger: logger}
}

func (w *ConsistencyAuditWorker) Work(ctx context.Context, job *river.Job[ConsistencyAuditJob]) error {
	outcome, err := w.auditor.AuditConsistency(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Consistency audit failed",
			attr.Int64("job_id", job.ID),
			attr.Error(err),
		)
		return err
	}
	if outcome.Rebuilt {
		w.logger.WarnContext(ctx, "Consistency audit rebuilt rankings",
			attr.Int64("job_id", job.ID),
			attr.Int("divergent", len(outcome.Divergent)),
		)
	}
	return nil
}

// MapResyncWorker turns a queued resync into a resync request on the bus, so
// it takes the same path as one sent by an operator over NATS.
type MapResyncWorker struct {
	river.WorkerDefaults[MapResyncJob]
	publisher message.Publisher
	logger    *slog.Logger
}

func NewMapResyncWorker(logger *slog.Logger, publisher message.Publisher) *MapResyncWorker {
	return &MapResyncWorker{publisher: publisher, logger: logger}
}

func (w *MapResyncWorker) Work(ctx context.Context, job *river.Job[MapResyncJob]) error {
	payload := rankingevents.ResyncRequestedPayloadV1{
		MapID:       rankingdomain.MapID(job.Args.MapID),
		RequestedBy: job.Args.RequestedBy,
	}
	if err := eventbus.Publish(ctx, w.publisher, rankingevents.ResyncRequestedV1, payload); err != nil {
		return fmt.Errorf("publish resync request: %w", err)
	}
	w.logger.InfoContext(ctx, "Queued resync dispatched",
		attr.Int64("job_id", job.ID),
		attr.MapID(payload.MapID),
		attr.String("requested_by", payload.RequestedBy),
	)
	return nil
}
