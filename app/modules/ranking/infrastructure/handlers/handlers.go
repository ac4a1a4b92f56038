package rankinghandlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Black-And-White-Club/maprank/app/eventbus/handlerwrapper"
	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"go.opentelemetry.io/otel/trace"
)

// RankingHandlers implements the Handlers interface.
type RankingHandlers struct {
	service rankingservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(
	service rankingservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &RankingHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleFinishRecorded ingests a finish and announces accepted improvements.
// It never returns an error, so the router does not retry finishes.
func (h *RankingHandlers) HandleFinishRecorded(ctx context.Context, payload *rankingevents.FinishRecordedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleFinishRecorded")
	defer span.End()

	result, err := h.service.RecordFinish(ctx, rankingdomain.FinishEvent{
		ParticipantID: payload.ParticipantID,
		MapID:         payload.MapID,
		TimeMs:        payload.TimeMs,
		ArrivedAt:     payload.ArrivedAt,
	})
	if err != nil {
		// Acked: a retry would stall the topic for every other participant.
		// The stored rows are untouched and the next finish recomputes the map.
		h.logger.ErrorContext(ctx, "Finish not recorded",
			attr.MapID(payload.MapID),
			attr.ParticipantID(payload.ParticipantID),
			attr.Error(err),
		)
		return nil, nil
	}
	if result.IsFailure() {
		h.logger.WarnContext(ctx, "Finish rejected",
			attr.MapID(payload.MapID),
			attr.ParticipantID(payload.ParticipantID),
			attr.Error(*result.Failure),
		)
		return nil, nil
	}

	note := result.Success.Notification
	if !result.Success.Improved || note == nil {
		return nil, nil
	}

	name := string(note.ParticipantID)
	if i := note.Leaderboard.IndexOf(note.ParticipantID); i >= 0 {
		name = note.Leaderboard.Rows[i].DisplayName
	}

	if note.Kind == rankingdomain.NotificationNewRecord {
		return []handlerwrapper.Result{{
			Topic: rankingevents.NewRecordV1,
			Payload: &rankingevents.NewRecordPayloadV1{
				MapID:         note.MapID,
				ParticipantID: note.ParticipantID,
				DisplayName:   name,
				TimeMs:        note.TimeMs,
				Time:          rankingdomain.FormatTime(note.TimeMs),
				PreviousMs:    note.PreviousMs,
				Points:        note.Points,
				PointsDelta:   note.PointsDelta,
				Leaderboard:   note.Leaderboard,
			},
		}}, nil
	}

	return []handlerwrapper.Result{{
		Topic: rankingevents.StandingsUpdatedV1,
		Payload: &rankingevents.StandingsUpdatedPayloadV1{
			MapID:         note.MapID,
			ParticipantID: note.ParticipantID,
			DisplayName:   name,
			TimeMs:        note.TimeMs,
			Time:          rankingdomain.FormatTime(note.TimeMs),
			PreviousMs:    note.PreviousMs,
			Points:        note.Points,
			PointsDelta:   note.PointsDelta,
			Rank:          note.Rank,
			PreviousRank:  note.PreviousRank,
			Leaderboard:   note.Leaderboard,
		},
	}}, nil
}

func (h *RankingHandlers) HandleMapBegan(ctx context.Context, payload *rankingevents.MapLifecyclePayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleMapBegan")
	defer span.End()

	result, err := h.service.BeginMap(ctx, payload.MapID)
	return h.resyncResults(ctx, payload.MapID, result, err), nil
}

func (h *RankingHandlers) HandleMapEnded(ctx context.Context, payload *rankingevents.MapLifecyclePayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleMapEnded")
	defer span.End()

	result, err := h.service.EndMap(ctx, payload.MapID)
	return h.resyncResults(ctx, payload.MapID, result, err), nil
}

// HandleResyncRequested resyncs the named map, the active map when none is
// named, or every map when nothing is active.
func (h *RankingHandlers) HandleResyncRequested(ctx context.Context, payload *rankingevents.ResyncRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleResyncRequested")
	defer span.End()

	mapID := payload.MapID
	if mapID == "" {
		mapID = h.service.ActiveMap()
	}
	h.logger.InfoContext(ctx, "Resync requested",
		attr.MapID(mapID),
		attr.String("requested_by", payload.RequestedBy),
	)

	result, err := h.service.Resync(ctx, mapID)
	return h.resyncResults(ctx, mapID, result, err), nil
}

// resyncResults turns a resync outcome into snapshot messages, or a failure
// report. Resync errors are reported rather than retried.
func (h *RankingHandlers) resyncResults(ctx context.Context, mapID rankingdomain.MapID, result rankingservice.ResyncResult, err error) []handlerwrapper.Result {
	if err == nil && result.IsFailure() {
		err = *result.Failure
	}
	if err == nil && !result.IsSuccess() {
		err = errors.New("resync returned no result")
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Resync failed", attr.MapID(mapID), attr.Error(err))
		return []handlerwrapper.Result{{
			Topic:   rankingevents.ResyncFailedV1,
			Payload: &rankingevents.ResyncFailedPayloadV1{MapID: mapID, Reason: err.Error()},
		}}
	}

	out := result.Success
	results := make([]handlerwrapper.Result, 0, 2)
	if mapID != "" {
		results = append(results, handlerwrapper.Result{
			Topic:   rankingevents.MapSnapshotSyncedV1,
			Payload: &rankingevents.MapSnapshotSyncedPayloadV1{MapID: mapID, Leaderboard: out.Map},
		})
	}
	results = append(results, handlerwrapper.Result{
		Topic:   rankingevents.GlobalSnapshotSyncedV1,
		Payload: &rankingevents.GlobalSnapshotSyncedPayloadV1{Leaderboard: out.Global},
	})
	return results
}

func (h *RankingHandlers) HandleObserverConnected(ctx context.Context, payload *rankingevents.ObserverConnectedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleObserverConnected")
	defer span.End()

	if err := h.service.ConnectObserver(ctx, payload.ParticipantID, payload.DisplayName); err != nil {
		if errors.Is(err, rankingservice.ErrInvalidObserver) {
			h.logger.WarnContext(ctx, "Ignoring observer without participant id")
			return nil, nil
		}
		return nil, err
	}
	return nil, nil
}

func (h *RankingHandlers) HandleObserverDisconnected(ctx context.Context, payload *rankingevents.ObserverDisconnectedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RankingHandlers.HandleObserverDisconnected")
	defer span.End()

	h.service.DisconnectObserver(ctx, payload.ParticipantID)
	return nil, nil
}
