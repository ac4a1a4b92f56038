package rankingservice

import (
	"context"
	"errors"
	"fmt"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/Black-And-White-Club/maprank/app/shared/results"
	"github.com/uptrace/bun"
)

// Start recomputes every persisted map and rebuilds global ranks.
func (s *RankingService) Start(ctx context.Context) error {
	out, err := s.resync(ctx, "", RebuildStartup)
	if err != nil {
		return fmt.Errorf("ranking startup: %w", err)
	}
	s.logger.InfoContext(ctx, "Ranking state loaded",
		attr.Int("maps", out.MapsChecked),
		attr.Int("participants", len(out.Global.Rows)),
		attr.Int("map_rows_rewritten", out.MapRows),
		attr.Int("rank_rows_rewritten", out.RankRows),
	)
	return nil
}

// BeginMap marks mapID active and resynchronises it.
func (s *RankingService) BeginMap(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error) {
	return withTelemetry(s, ctx, "BeginMap", mapID, func(ctx context.Context) (ResyncResult, error) {
		if mapID == "" {
			return results.FailureResult[ResyncOutcome, error](ErrMapIDRequired), nil
		}
		s.cache.setActive(mapID)
		out, err := s.resync(ctx, mapID, RebuildResync)
		if err != nil {
			return ResyncResult{}, err
		}
		return results.SuccessResult[ResyncOutcome, error](out), nil
	})
}

// EndMap resynchronises mapID one last time and clears it as the active map.
func (s *RankingService) EndMap(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error) {
	return withTelemetry(s, ctx, "EndMap", mapID, func(ctx context.Context) (ResyncResult, error) {
		if mapID == "" {
			return results.FailureResult[ResyncOutcome, error](ErrMapIDRequired), nil
		}
		out, err := s.resync(ctx, mapID, RebuildResync)
		s.cache.clearActive(mapID)
		if err != nil {
			return ResyncResult{}, err
		}
		out.ActiveMap = s.cache.activeMap()
		return results.SuccessResult[ResyncOutcome, error](out), nil
	})
}

// Resync recomputes mapID, or every map when mapID is empty, then rebuilds
// global ranks. Running it twice leaves the store unchanged.
func (s *RankingService) Resync(ctx context.Context, mapID rankingdomain.MapID) (ResyncResult, error) {
	return withTelemetry(s, ctx, "Resync", mapID, func(ctx context.Context) (ResyncResult, error) {
		out, err := s.resync(ctx, mapID, RebuildResync)
		if err != nil {
			return ResyncResult{}, err
		}
		return results.SuccessResult[ResyncOutcome, error](out), nil
	})
}

func (s *RankingService) resync(ctx context.Context, mapID rankingdomain.MapID, reason string) (ResyncOutcome, error) {
	ids := []rankingdomain.MapID{mapID}
	if mapID == "" {
		var err error
		if ids, err = s.repo.FindMapIDs(ctx, nil); err != nil {
			return ResyncOutcome{}, err
		}
	}

	// Concurrent writers rebuild inline until the final rebuild lands.
	s.aggregator.Invalidate()

	out := ResyncOutcome{MapsChecked: len(ids)}
	for _, id := range ids {
		n, err := s.recomputeMap(ctx, id)
		if err != nil {
			return ResyncOutcome{}, fmt.Errorf("recompute map %s: %w", id, err)
		}
		out.MapRows += n
	}

	_, changed, err := s.aggregator.Rebuild(ctx, reason)
	if err != nil {
		return ResyncOutcome{}, err
	}
	out.RankRows = changed

	view := s.syncView(ctx)
	out.ActiveMap = view.ActiveMap
	out.Global = view.Global
	if mapID != "" {
		out.Map, err = s.GetMapLeaderboard(ctx, mapID)
		if err != nil {
			return ResyncOutcome{}, err
		}
	}
	s.broadcaster.Publish(view)
	return out, nil
}

// recomputeMap re-ranks one map from its stored best times and writes the rows
// that moved. It returns the number of rows written.
func (s *RankingService) recomputeMap(ctx context.Context, mapID rankingdomain.MapID) (int, error) {
	unlock := s.mapLocks.Lock(mapID)
	defer unlock()

	var scores, changed []rankingdomain.MapScore
	err := s.runInTx(ctx, func(ctx context.Context, db bun.IDB) error {
		if err := s.repo.AcquireMapLock(ctx, db, mapID); err != nil {
			return err
		}
		existing, err := s.repo.FindMapScores(ctx, db, mapID, rankingdb.OrderByTime)
		if err != nil {
			return err
		}
		records := make([]rankingdomain.TimedRecord, len(existing))
		for i, sc := range existing {
			records[i] = sc.Record()
		}
		scores, changed, _ = rescoreMap(mapID, existing, records, s.points, s.now())
		return s.repo.UpsertMapScores(ctx, db, changed)
	})
	if err != nil {
		s.metrics.RecordPersistenceFailure(ctx, "RecomputeMap")
		return 0, err
	}

	s.cache.setMap(mapID, scores)
	return len(changed), nil
}

// AuditConsistency compares in-memory totals with persisted map points and
// rebuilds when they diverge.
func (s *RankingService) AuditConsistency(ctx context.Context) (AuditOutcome, error) {
	err := s.aggregator.Verify(ctx)
	if err == nil {
		return AuditOutcome{}, nil
	}

	var ce *ConsistencyError
	if !errors.As(err, &ce) {
		return AuditOutcome{}, fmt.Errorf("audit consistency: %w", err)
	}

	s.logger.WarnContext(ctx, "Ranking totals diverged from store",
		attr.Int("participants", len(ce.Participants)),
		attr.Error(ce),
	)
	if _, _, err := s.aggregator.Rebuild(ctx, RebuildConsistency); err != nil {
		return AuditOutcome{Divergent: ce.Participants}, fmt.Errorf("rebuild after divergence: %w", err)
	}
	s.broadcaster.Publish(s.syncView(ctx))
	return AuditOutcome{Divergent: ce.Participants, Rebuilt: true}, nil
}

// ConnectObserver registers an observer and sends its first window.
func (s *RankingService) ConnectObserver(ctx context.Context, participant rankingdomain.ParticipantID, displayName string) error {
	if participant == "" {
		return ErrInvalidObserver
	}
	s.names.Remember(participant, displayName)
	s.broadcaster.Connect(participant, s.syncView(ctx))
	s.logger.InfoContext(ctx, "Observer connected",
		attr.ParticipantID(participant),
		attr.String("display_name", displayName),
	)
	return nil
}

func (s *RankingService) DisconnectObserver(ctx context.Context, participant rankingdomain.ParticipantID) {
	s.broadcaster.Disconnect(participant)
	s.logger.InfoContext(ctx, "Observer disconnected", attr.ParticipantID(participant))
}
