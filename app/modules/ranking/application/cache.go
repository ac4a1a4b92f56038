package rankingservice

import (
	"sync"
	"sync/atomic"
	"time"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// mapSnapshot is a rank-ordered copy of one map's rows. It is replaced
// wholesale and never mutated, so readers may hold it without copying.
type mapSnapshot struct {
	scores []rankingdomain.MapScore
	at     time.Time
}

// newMapSnapshot stamps the snapshot with its newest row, so re-ranking a
// map that did not move yields an identical snapshot.
func newMapSnapshot(scores []rankingdomain.MapScore) mapSnapshot {
	return mapSnapshot{scores: scores, at: rankingdomain.LatestUpdate(scores)}
}

// snapshotCache holds the last-known-good map snapshots and the active map.
type snapshotCache struct {
	mu     sync.RWMutex
	maps   map[rankingdomain.MapID]mapSnapshot
	active rankingdomain.MapID

	// gen counts swaps; it moves after the swap is visible.
	gen atomic.Uint64
}

func (c *snapshotCache) generation() uint64 { return c.gen.Load() }

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{maps: make(map[rankingdomain.MapID]mapSnapshot)}
}

func (c *snapshotCache) setMap(mapID rankingdomain.MapID, scores []rankingdomain.MapScore) {
	c.mu.Lock()
	c.maps[mapID] = newMapSnapshot(scores)
	c.mu.Unlock()
	c.gen.Add(1)
}

// setMapIfAbsent stores a loaded snapshot unless a writer got there first.
func (c *snapshotCache) setMapIfAbsent(mapID rankingdomain.MapID, scores []rankingdomain.MapScore) mapSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.maps[mapID]; ok {
		return snap
	}
	snap := newMapSnapshot(scores)
	c.maps[mapID] = snap
	c.gen.Add(1)
	return snap
}

func (c *snapshotCache) mapSnapshot(mapID rankingdomain.MapID) (mapSnapshot, bool) {
	c.mu.RLock()
	snap, ok := c.maps[mapID]
	c.mu.RUnlock()
	return snap, ok
}

func (c *snapshotCache) setActive(mapID rankingdomain.MapID) {
	c.mu.Lock()
	c.active = mapID
	c.mu.Unlock()
	c.gen.Add(1)
}

// clearActive unsets the active map if it is still mapID.
func (c *snapshotCache) clearActive(mapID rankingdomain.MapID) {
	c.mu.Lock()
	if c.active == mapID {
		c.active = ""
	}
	c.mu.Unlock()
	c.gen.Add(1)
}

func (c *snapshotCache) activeMap() rankingdomain.MapID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}
