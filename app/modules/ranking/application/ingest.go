package rankingservice

import (
	"context"
	"fmt"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
	"github.com/Black-And-White-Club/maprank/app/shared/results"
	"github.com/uptrace/bun"
)

// finishPlan is the outcome of applying one finish to a map's current rows.
type finishPlan struct {
	improved bool
	previous *rankingdomain.MapScore
	current  rankingdomain.MapScore
	scores   []rankingdomain.MapScore
	changed  []rankingdomain.MapScore
	deltas   map[rankingdomain.ParticipantID]int
}

// planFinish recomputes the map with ev applied. existing must hold every row
// of the map. Nothing changes unless ev beats the participant's best time.
func planFinish(existing []rankingdomain.MapScore, ev rankingdomain.FinishEvent, cfg rankingdomain.PointsConfig, now time.Time) finishPlan {
	var plan finishPlan
	for _, s := range existing {
		if s.ParticipantID == ev.ParticipantID {
			prev := s
			plan.previous = &prev
		}
	}
	if plan.previous != nil && ev.TimeMs >= plan.previous.BestTimeMs {
		return plan
	}
	plan.improved = true

	records := make([]rankingdomain.TimedRecord, 0, len(existing)+1)
	for _, s := range existing {
		if s.ParticipantID != ev.ParticipantID {
			records = append(records, s.Record())
		}
	}
	records = append(records, rankingdomain.TimedRecord{
		ParticipantID: ev.ParticipantID,
		TimeMs:        ev.TimeMs,
		AchievedAt:    ev.ArrivedAt,
	})

	plan.scores, plan.changed, plan.deltas = rescoreMap(ev.MapID, existing, records, cfg, now)
	for _, row := range plan.scores {
		if row.ParticipantID == ev.ParticipantID {
			plan.current = row
			break
		}
	}
	return plan
}

// rescoreMap ranks records and diffs the result against the existing rows.
// Rows whose time, points or rank moved get UpdatedAt = now.
func rescoreMap(
	mapID rankingdomain.MapID,
	existing []rankingdomain.MapScore,
	records []rankingdomain.TimedRecord,
	cfg rankingdomain.PointsConfig,
	now time.Time,
) (scores, changed []rankingdomain.MapScore, deltas map[rankingdomain.ParticipantID]int) {
	byID := make(map[rankingdomain.ParticipantID]rankingdomain.MapScore, len(existing))
	for _, s := range existing {
		byID[s.ParticipantID] = s
	}

	ranked := rankingdomain.CalculateMapPoints(records, cfg)
	scores = make([]rankingdomain.MapScore, len(ranked))
	deltas = make(map[rankingdomain.ParticipantID]int)
	for i, r := range ranked {
		row := rankingdomain.MapScore{
			MapID:         mapID,
			ParticipantID: r.ParticipantID,
			BestTimeMs:    r.TimeMs,
			Points:        r.Points,
			Rank:          r.Rank,
			AchievedAt:    r.AchievedAt,
		}
		old, existed := byID[r.ParticipantID]
		if !existed || old.BestTimeMs != row.BestTimeMs || old.Points != row.Points || old.Rank != row.Rank {
			row.UpdatedAt = now
			changed = append(changed, row)
		} else {
			row.UpdatedAt = old.UpdatedAt
		}
		if d := row.Points - old.Points; d != 0 {
			deltas[r.ParticipantID] = d
		}
		scores[i] = row
	}
	return scores, changed, deltas
}

func validateFinish(ev rankingdomain.FinishEvent) error {
	switch {
	case ev.ParticipantID == "":
		return fmt.Errorf("%w: participant id is required", ErrInvalidFinish)
	case ev.MapID == "":
		return fmt.Errorf("%w: map id is required", ErrInvalidFinish)
	case ev.TimeMs <= 0:
		return fmt.Errorf("%w: time must be positive, got %d", ErrInvalidFinish, ev.TimeMs)
	}
	return nil
}

// RecordFinish ingests one finish event.
//
// Map rows and the resulting global rank rows are written in one transaction
// while holding the map lock and the aggregator lock, in that order. Caches
// change only after the transaction commits.
func (s *RankingService) RecordFinish(ctx context.Context, ev rankingdomain.FinishEvent) (FinishResult, error) {
	return withTelemetry(s, ctx, "RecordFinish", ev.MapID, func(ctx context.Context) (FinishResult, error) {
		if err := validateFinish(ev); err != nil {
			s.metrics.RecordFinish(ctx, observability.FinishRejected)
			return results.FailureResult[FinishOutcome, error](err), nil
		}
		if ev.ArrivedAt.IsZero() {
			ev.ArrivedAt = s.now()
		}

		unlock := s.mapLocks.Lock(ev.MapID)
		defer unlock()

		var (
			plan    finishPlan
			pending *PendingTotals
		)
		defer func() {
			// Releases the aggregator if the transaction panicked.
			if pending != nil {
				pending.Abort()
			}
		}()
		err := s.runInTx(ctx, func(ctx context.Context, db bun.IDB) error {
			if err := s.repo.AcquireMapLock(ctx, db, ev.MapID); err != nil {
				return err
			}
			existing, err := s.repo.FindMapScores(ctx, db, ev.MapID, rankingdb.OrderByTime)
			if err != nil {
				return err
			}

			plan = planFinish(existing, ev, s.points, s.now())
			if !plan.improved {
				return nil
			}

			pending, err = s.aggregator.Prepare(ctx, plan.deltas)
			if err != nil {
				return err
			}
			if err := s.repo.UpsertMapScores(ctx, db, plan.changed); err != nil {
				return err
			}
			return s.repo.UpsertPlayerRanks(ctx, db, pending.Changed())
		})
		if err != nil {
			s.metrics.RecordPersistenceFailure(ctx, "RecordFinish")
			s.metrics.RecordFinish(ctx, observability.FinishFailed)
			return FinishResult{}, err
		}

		if !plan.improved {
			s.metrics.RecordFinish(ctx, observability.FinishNotImproved)
			s.logger.DebugContext(ctx, "Finish did not improve best time",
				attr.MapID(ev.MapID),
				attr.ParticipantID(ev.ParticipantID),
				attr.Int64("time_ms", ev.TimeMs),
			)
			return results.SuccessResult[FinishOutcome, error](FinishOutcome{}), nil
		}

		pending.Commit()
		s.cache.setMap(ev.MapID, plan.scores)
		s.metrics.RecordFinish(ctx, observability.FinishImproved)

		board := s.renderMap(ev.MapID, newMapSnapshot(plan.scores))
		note := s.notification(plan, board)
		s.logger.InfoContext(ctx, "Finish recorded",
			attr.MapID(ev.MapID),
			attr.ParticipantID(ev.ParticipantID),
			attr.Int64("time_ms", ev.TimeMs),
			attr.Int("rank", note.Rank),
			attr.Int("points", note.Points),
			attr.String("kind", string(note.Kind)),
		)

		if s.scope == ScopeGlobal || ev.MapID == s.cache.activeMap() {
			s.broadcaster.Publish(s.syncView(ctx))
		}

		return results.SuccessResult[FinishOutcome, error](FinishOutcome{Improved: true, Notification: &note}), nil
	})
}

func (s *RankingService) notification(plan finishPlan, board rankingdomain.MapLeaderboard) rankingdomain.RecordNotification {
	note := rankingdomain.RecordNotification{
		Kind:          rankingdomain.NotificationStandingsUpdate,
		MapID:         plan.current.MapID,
		ParticipantID: plan.current.ParticipantID,
		TimeMs:        plan.current.BestTimeMs,
		Points:        plan.current.Points,
		PointsDelta:   plan.current.Points,
		Rank:          plan.current.Rank,
		Leaderboard:   board,
	}
	if plan.current.Rank == 1 {
		note.Kind = rankingdomain.NotificationNewRecord
	}
	if plan.previous != nil {
		note.PreviousMs = plan.previous.BestTimeMs
		note.PreviousRank = plan.previous.Rank
		note.PointsDelta = plan.current.Points - plan.previous.Points
	}
	return note
}
