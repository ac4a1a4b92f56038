// Package rankingbroadcast pushes leaderboard windows to connected observers.
//
// Each observer owns a goroutine and a one-slot queue. A newer view replaces
// an undelivered one, so a slow observer only ever receives the latest state
// and never delays the others.
package rankingbroadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
	"github.com/Black-And-White-Club/maprank/app/observability"
	"github.com/Black-And-White-Club/maprank/app/observability/attr"
)

// Scopes select which leaderboard an observer's window is cut from.
const (
	ScopeMap    = "map"
	ScopeGlobal = "global"
)

// Window is the slice of a leaderboard one observer receives.
type Window struct {
	ObserverID rankingdomain.ParticipantID
	Scope      string
	MapID      rankingdomain.MapID
	MapRows    []rankingdomain.MapRow
	GlobalRows []rankingdomain.GlobalRow
}

// Deliverer sends a window to one observer.
type Deliverer interface {
	Deliver(ctx context.Context, window Window) error
}

// Config tunes a SyncBroadcaster.
type Config struct {
	Scope           string
	Window          rankingdomain.WindowConfig
	DeliveryTimeout time.Duration
}

// SyncBroadcaster fans views out to per-observer workers.
type SyncBroadcaster struct {
	mu        sync.Mutex
	observers map[rankingdomain.ParticipantID]*observerQueue
	closed    bool
	wg        sync.WaitGroup

	deliverer Deliverer
	cfg       Config
	logger    *slog.Logger
	metrics   observability.RankingMetrics
}

type observerQueue struct {
	id   rankingdomain.ParticipantID
	slot chan rankingdomain.SyncView
	done chan struct{}
	// seq is the newest view queued so far; guarded by SyncBroadcaster.mu.
	seq uint64
}

func NewSyncBroadcaster(deliverer Deliverer, cfg Config, logger *slog.Logger, metrics observability.RankingMetrics) *SyncBroadcaster {
	if cfg.Scope == "" {
		cfg.Scope = ScopeMap
	}
	if cfg.Window == (rankingdomain.WindowConfig{}) {
		cfg.Window = rankingdomain.DefaultWindowConfig()
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 2 * time.Second
	}
	return &SyncBroadcaster{
		observers: make(map[rankingdomain.ParticipantID]*observerQueue),
		deliverer: deliverer,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Connect registers observer, or refreshes it if already connected, and
// queues its first window.
func (b *SyncBroadcaster) Connect(observer rankingdomain.ParticipantID, view rankingdomain.SyncView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	q, ok := b.observers[observer]
	if !ok {
		q = &observerQueue{
			id:   observer,
			slot: make(chan rankingdomain.SyncView, 1),
			done: make(chan struct{}),
		}
		b.observers[observer] = q
		b.wg.Add(1)
		go b.run(q)
		b.metrics.SetObservers(len(b.observers))
	}
	b.offer(q, view)
}

// Disconnect stops the observer's worker. Unknown observers are ignored.
func (b *SyncBroadcaster) Disconnect(observer rankingdomain.ParticipantID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.observers[observer]
	if !ok {
		return
	}
	delete(b.observers, observer)
	close(q.done)
	b.metrics.SetObservers(len(b.observers))
}

// Publish queues view for every connected observer without blocking.
func (b *SyncBroadcaster) Publish(view rankingdomain.SyncView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.observers {
		b.offer(q, view)
	}
}

// Observers returns the number of connected observers.
func (b *SyncBroadcaster) Observers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Close disconnects every observer and waits for in-flight deliveries.
func (b *SyncBroadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, q := range b.observers {
		delete(b.observers, id)
		close(q.done)
	}
	b.metrics.SetObservers(0)
	b.mu.Unlock()

	b.wg.Wait()
}

// offer must be called with b.mu held; it is the only writer of q.slot.
// Views older than one already queued are dropped.
func (b *SyncBroadcaster) offer(q *observerQueue, view rankingdomain.SyncView) {
	if view.Seq < q.seq {
		b.metrics.RecordDelivery(context.Background(), observability.DeliveryStale)
		return
	}
	q.seq = view.Seq

	select {
	case q.slot <- view:
		return
	default:
	}
	select {
	case <-q.slot:
		b.metrics.RecordDelivery(context.Background(), observability.DeliveryReplaced)
	default:
	}
	q.slot <- view
}

func (b *SyncBroadcaster) run(q *observerQueue) {
	defer b.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case view := <-q.slot:
			select {
			case <-q.done:
				return
			default:
			}
			b.deliver(q.id, view)
		}
	}
}

func (b *SyncBroadcaster) deliver(observer rankingdomain.ParticipantID, view rankingdomain.SyncView) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.DeliveryTimeout)
	defer cancel()

	if err := b.deliverer.Deliver(ctx, b.window(observer, view)); err != nil {
		b.metrics.RecordDelivery(ctx, observability.DeliveryFailed)
		b.logger.WarnContext(ctx, "Window delivery failed",
			attr.ParticipantID(observer),
			attr.Error(err),
		)
		return
	}
	b.metrics.RecordDelivery(ctx, observability.DeliveryOK)
}

// window cuts the observer's slice out of view. In map scope with no active
// map the global standings are used instead.
func (b *SyncBroadcaster) window(observer rankingdomain.ParticipantID, view rankingdomain.SyncView) Window {
	w := Window{ObserverID: observer, Scope: b.cfg.Scope, MapID: view.ActiveMap}
	if b.cfg.Scope == ScopeMap && view.ActiveMap != "" {
		w.MapRows = rankingdomain.SelectWindow(view.Map.Rows, view.Map.IndexOf(observer), b.cfg.Window)
		return w
	}
	w.Scope = ScopeGlobal
	w.GlobalRows = rankingdomain.SelectWindow(view.Global.Rows, view.Global.IndexOf(observer), b.cfg.Window)
	return w
}
