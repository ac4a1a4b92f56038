package rankingqueue

import "time"

// Queue is the river queue ranking jobs run on.
const Queue = "ranking"

// ConsistencyAuditJob compares in-memory totals with the store.
type ConsistencyAuditJob struct{}

func (ConsistencyAuditJob) Kind() string { return "consistency_audit" }

// MapResyncJob asks the serving process to resync one map. An empty MapID
// means the active map, or every map when none is active. Only MapID takes
// part in uniqueness.
type MapResyncJob struct {
	MapID       string    `json:"map_id" river:"unique"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

func (MapResyncJob) Kind() string { return "map_resync" }

// JobInfo describes a queued ranking job.
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	MapID       string `json:"map_id,omitempty"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	Attempt     int    `json:"attempt"`
}
