package rankingservice

import (
	"errors"
	"fmt"
	"strings"

	rankingdomain "github.com/Black-And-White-Club/maprank/app/modules/ranking/domain"
)

// Business failures. Handlers treat these as final outcomes (ack and report)
// rather than retrying the message.
var (
	// ErrInvalidFinish indicates a finish event that can never be accepted.
	ErrInvalidFinish = errors.New("invalid finish event")

	// ErrNotRanked indicates the participant has no row in the requested leaderboard.
	ErrNotRanked = errors.New("participant not ranked")

	// ErrMapIDRequired indicates a lifecycle event without a map id.
	ErrMapIDRequired = errors.New("map id is required")

	// ErrInvalidObserver indicates an observer event without a participant id.
	ErrInvalidObserver = errors.New("observer participant id is required")
)

// ConsistencyError reports participants whose in-memory totals disagree with
// the sum of their persisted map points.
type ConsistencyError struct {
	Participants []rankingdomain.ParticipantID
}

func (e *ConsistencyError) Error() string {
	ids := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		ids[i] = string(p)
	}
	return fmt.Sprintf("ranking totals diverged for %d participant(s): %s", len(ids), strings.Join(ids, ", "))
}
