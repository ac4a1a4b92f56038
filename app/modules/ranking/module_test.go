package ranking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Black-And-White-Club/maprank/app/eventbus"
	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
	rankingapi "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/api"
	rankingbroadcast "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/broadcast"
	rankingdb "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/repositories"
	rankingrouter "github.com/Black-And-White-Club/maprank/app/modules/ranking/infrastructure/router"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/config"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	module *Module
	bus    eventbus.EventBus
	http   http.Handler
	out    map[string]<-chan *message.Message
}

func startPipeline(t *testing.T) *pipeline {
	t.Helper()
	t.Setenv(rankingrouter.TestEnvironmentFlag, rankingrouter.TestEnvironmentValue)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.StorageDriverMemory}}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	obs := observability.NewNoop()
	bus := eventbus.NewInProcess(eventbus.Config{}, obs.Logger)
	router, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	httpRouter := rankingapi.NewRootRouter(nil, nil)

	module, err := NewRankingModule(ctx, cfg, obs, rankingdb.NewMemoryRepository(), nil, bus, router, httpRouter)
	require.NoError(t, err)
	require.NoError(t, module.Start(ctx))

	p := &pipeline{module: module, bus: bus, http: httpRouter, out: map[string]<-chan *message.Message{}}
	for _, topic := range rankingevents.OutboundTopics() {
		ch, err := bus.Subscribe(ctx, topic)
		require.NoError(t, err)
		p.out[topic] = ch
	}

	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		_ = module.Close()
		_ = router.Close()
		_ = bus.Close()
	})
	return p
}

func (p *pipeline) publish(t *testing.T, topic string, payload any) {
	t.Helper()
	require.NoError(t, eventbus.Publish(context.Background(), p.bus, topic, payload))
}

func receive[T any](t *testing.T, p *pipeline, topic string) (T, *message.Message) {
	t.Helper()
	var out T
	select {
	case msg := <-p.out[topic]:
		msg.Ack()
		require.NoError(t, json.Unmarshal(msg.Payload, &out))
		return out, msg
	case <-time.After(5 * time.Second):
		t.Fatalf("nothing published on %s", topic)
	}
	return out, nil
}

func TestRankingModule_EndToEnd(t *testing.T) {
	p := startPipeline(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.publish(t, rankingevents.MapBeganV1, rankingevents.MapLifecyclePayloadV1{MapID: "m1"})
	snap, _ := receive[rankingevents.MapSnapshotSyncedPayloadV1](t, p, rankingevents.MapSnapshotSyncedV1)
	assert.Equal(t, rankingdomain.MapID("m1"), snap.MapID)
	assert.Empty(t, snap.Leaderboard.Rows)
	assert.Equal(t, rankingdomain.MapID("m1"), p.module.RankingService.ActiveMap())

	p.publish(t, rankingevents.ObserverConnectedV1, rankingevents.ObserverConnectedPayloadV1{ParticipantID: "p2", DisplayName: "Second"})
	window, msg := receive[rankingevents.WindowPushedPayloadV1](t, p, rankingevents.WindowPushedV1)
	assert.Equal(t, rankingdomain.ParticipantID("p2"), window.ObserverID)
	assert.Equal(t, "p2", msg.Metadata.Get(rankingbroadcast.MetadataObserverID))

	p.publish(t, rankingevents.FinishRecordedV1, rankingevents.FinishRecordedPayloadV1{ParticipantID: "p1", MapID: "m1", TimeMs: 40000, ArrivedAt: at})
	record, _ := receive[rankingevents.NewRecordPayloadV1](t, p, rankingevents.NewRecordV1)
	assert.Equal(t, 1000, record.Points)
	assert.Equal(t, "0:40.000", record.Time)

	p.publish(t, rankingevents.FinishRecordedV1, rankingevents.FinishRecordedPayloadV1{ParticipantID: "p2", MapID: "m1", TimeMs: 45000, ArrivedAt: at.Add(time.Second)})
	update, _ := receive[rankingevents.StandingsUpdatedPayloadV1](t, p, rankingevents.StandingsUpdatedV1)
	assert.Equal(t, 2, update.Rank)
	assert.Equal(t, 496, update.Points)
	assert.Equal(t, "Second", update.DisplayName)

	rec := httptest.NewRecorder()
	p.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/maps/m1/leaderboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var board rankingdomain.MapLeaderboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Rows, 2)
	assert.Equal(t, rankingdomain.ParticipantID("p1"), board.Rows[0].ParticipantID)

	p.publish(t, rankingevents.MapEndedV1, rankingevents.MapLifecyclePayloadV1{MapID: "m1"})
	global, _ := receive[rankingevents.GlobalSnapshotSyncedPayloadV1](t, p, rankingevents.GlobalSnapshotSyncedV1)
	// the begin resync published one too
	if len(global.Leaderboard.Rows) == 0 {
		global, _ = receive[rankingevents.GlobalSnapshotSyncedPayloadV1](t, p, rankingevents.GlobalSnapshotSyncedV1)
	}
	require.Len(t, global.Leaderboard.Rows, 2)
	assert.Equal(t, 1496, global.Leaderboard.Rows[0].Points+global.Leaderboard.Rows[1].Points)
	assert.Equal(t, rankingdomain.MapID(""), p.module.RankingService.ActiveMap())
}
