package rankingservice

import (
	"sync"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// PlayerDirectory maps participant ids to the names observers announced.
// Names are not persisted; unknown participants render as their id.
type PlayerDirectory struct {
	mu    sync.RWMutex
	names map[rankingdomain.ParticipantID]string
}

func NewPlayerDirectory() *PlayerDirectory {
	return &PlayerDirectory{names: make(map[rankingdomain.ParticipantID]string)}
}

// Remember stores name for id. An empty name is ignored.
func (d *PlayerDirectory) Remember(id rankingdomain.ParticipantID, name string) {
	if name == "" {
		return
	}
	d.mu.Lock()
	d.names[id] = name
	d.mu.Unlock()
}

func (d *PlayerDirectory) Name(id rankingdomain.ParticipantID) string {
	d.mu.RLock()
	name, ok := d.names[id]
	d.mu.RUnlock()
	if !ok {
		return string(id)
	}
	return name
}
