package rankinghandlers

import (
	"context"

	"github.com/Black-And-White-Club/maprank/app/eventbus/handlerwrapper"
	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
)

// Handlers handles inbound ranking events.
type Handlers interface {
	HandleFinishRecorded(ctx context.Context, payload *rankingevents.FinishRecordedPayloadV1) ([]handlerwrapper.Result, error)
	HandleMapBegan(ctx context.Context, payload *rankingevents.MapLifecyclePayloadV1) ([]handlerwrapper.Result, error)
	HandleMapEnded(ctx context.Context, payload *rankingevents.MapLifecyclePayloadV1) ([]handlerwrapper.Result, error)
	HandleObserverConnected(ctx context.Context, payload *rankingevents.ObserverConnectedPayloadV1) ([]handlerwrapper.Result, error)
	HandleObserverDisconnected(ctx context.Context, payload *rankingevents.ObserverDisconnectedPayloadV1) ([]handlerwrapper.Result, error)
	HandleResyncRequested(ctx context.Context, payload *rankingevents.ResyncRequestedPayloadV1) ([]handlerwrapper.Result, error)
}
