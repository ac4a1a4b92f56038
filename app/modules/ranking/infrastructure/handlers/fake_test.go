package rankinghandlers

import (
	"context"

	rankingservice "github.com/Black-And-White-Club/maprank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// FakeRankingService is a programmable stub for rankingservice.Service.
type FakeRankingService struct {
	trace []string

	RecordFinishFunc       func(ctx context.Context, ev rankingdomain.FinishEvent) (rankingservice.FinishResult, error)
	BeginMapFunc           func(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error)
	EndMapFunc             func(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error)
	ResyncFunc             func(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error)
	ConnectObserverFunc    func(ctx context.Context, participant rankingdomain.ParticipantID, displayName string) error
	DisconnectObserverFunc func(ctx context.Context, participant rankingdomain.ParticipantID)
	ActiveMapValue         rankingdomain.MapID
}

func NewFakeRankingService() *FakeRankingService {
	return &FakeRankingService{trace: []string{}}
}

func (f *FakeRankingService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRankingService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRankingService) Start(context.Context) error {
	f.record("Start")
	return nil
}

func (f *FakeRankingService) RecordFinish(ctx context.Context, ev rankingdomain.FinishEvent) (rankingservice.FinishResult, error) {
	f.record("RecordFinish")
	if f.RecordFinishFunc != nil {
		return f.RecordFinishFunc(ctx, ev)
	}
	return rankingservice.FinishResult{}, nil
}

func (f *FakeRankingService) BeginMap(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error) {
	f.record("BeginMap")
	if f.BeginMapFunc != nil {
		return f.BeginMapFunc(ctx, mapID)
	}
	return rankingservice.ResyncResult{}, nil
}

func (f *FakeRankingService) EndMap(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error) {
	f.record("EndMap")
	if f.EndMapFunc != nil {
		return f.EndMapFunc(ctx, mapID)
	}
	return rankingservice.ResyncResult{}, nil
}

func (f *FakeRankingService) Resync(ctx context.Context, mapID rankingdomain.MapID) (rankingservice.ResyncResult, error) {
	f.record("Resync")
	if f.ResyncFunc != nil {
		return f.ResyncFunc(ctx, mapID)
	}
	return rankingservice.ResyncResult{}, nil
}

func (f *FakeRankingService) AuditConsistency(context.Context) (rankingservice.AuditOutcome, error) {
	f.record("AuditConsistency")
	return rankingservice.AuditOutcome{}, nil
}

func (f *FakeRankingService) ConnectObserver(ctx context.Context, participant rankingdomain.ParticipantID, displayName string) error {
	f.record("ConnectObserver")
	if f.ConnectObserverFunc != nil {
		return f.ConnectObserverFunc(ctx, participant, displayName)
	}
	return nil
}

func (f *FakeRankingService) DisconnectObserver(ctx context.Context, participant rankingdomain.ParticipantID) {
	f.record("DisconnectObserver")
	if f.DisconnectObserverFunc != nil {
		f.DisconnectObserverFunc(ctx, participant)
	}
}

func (f *FakeRankingService) ActiveMap() rankingdomain.MapID { return f.ActiveMapValue }

func (f *FakeRankingService) GetMapLeaderboard(context.Context, rankingdomain.MapID) (rankingdomain.MapLeaderboard, error) {
	return rankingdomain.MapLeaderboard{}, nil
}

func (f *FakeRankingService) GetGlobalLeaderboard(context.Context) (rankingdomain.GlobalLeaderboard, error) {
	return rankingdomain.GlobalLeaderboard{}, nil
}

func (f *FakeRankingService) GetPlayerRank(context.Context, rankingdomain.ParticipantID) (rankingdomain.GlobalRow, error) {
	return rankingdomain.GlobalRow{}, rankingservice.ErrNotRanked
}

func (f *FakeRankingService) GetMapRecord(context.Context, rankingdomain.MapID, rankingdomain.ParticipantID) (rankingdomain.MapRow, error) {
	return rankingdomain.MapRow{}, rankingservice.ErrNotRanked
}

func (f *FakeRankingService) ListMaps(context.Context) ([]rankingdomain.MapID, error) {
	return nil, nil
}

var _ rankingservice.Service = (*FakeRankingService)(nil)
