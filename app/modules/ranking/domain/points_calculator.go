package rankingdomain

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	DefaultMinValue   = 0.2
	DefaultMultiplier = 1000.0

	// ceilEpsilon absorbs float noise so an exact integer is not rounded up.
	ceilEpsilon = 1e-9
)

var (
	ErrInvalidMinValue   = errors.New("points min value must be in [0, 1)")
	ErrInvalidMultiplier = errors.New("points multiplier must be positive")
)

// PointsConfig holds the tunables of the points curve.
type PointsConfig struct {
	MinValue   float64 `yaml:"min_value"`
	Multiplier float64 `yaml:"multiplier"`
}

// DefaultPointsConfig returns the standard curve (last place keeps 20%, first gets 1000).
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{MinValue: DefaultMinValue, Multiplier: DefaultMultiplier}
}

func (c PointsConfig) Validate() error {
	if c.MinValue < 0 || c.MinValue >= 1 || math.IsNaN(c.MinValue) {
		return fmt.Errorf("%w: %v", ErrInvalidMinValue, c.MinValue)
	}
	if c.Multiplier <= 0 || math.IsNaN(c.Multiplier) || math.IsInf(c.Multiplier, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidMultiplier, c.Multiplier)
	}
	return nil
}

// TimedRecord is the input to the points curve: one best time on one map.
type TimedRecord struct {
	ParticipantID ParticipantID
	TimeMs        int64
	AchievedAt    time.Time
}

// RankedRecord is a TimedRecord with its rank and points assigned.
type RankedRecord struct {
	TimedRecord
	Rank   int
	Points int
}

// CompareRecords orders by time, then earliest achievement, then participant id.
func CompareRecords(a, b TimedRecord) int {
	if c := cmp.Compare(a.TimeMs, b.TimeMs); c != 0 {
		return c
	}
	if c := a.AchievedAt.Compare(b.AchievedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ParticipantID, b.ParticipantID)
}

// CalculateMapPoints ranks every record of a map and assigns points.
//
// With N records and rank r (1-based):
//
//	normalized = (log10(N+1) - log10(r)) / log10(N+1)
//	points     = ceil((normalized*(1-min) + min) * multiplier)
//
// The input slice is not modified.
func CalculateMapPoints(records []TimedRecord, cfg PointsConfig) []RankedRecord {
	if len(records) == 0 {
		return nil
	}

	sorted := slices.Clone(records)
	slices.SortFunc(sorted, CompareRecords)

	total := logBase(float64(len(sorted) + 1))
	ranked := make([]RankedRecord, len(sorted))
	for i, rec := range sorted {
		rank := i + 1
		ranked[i] = RankedRecord{
			TimedRecord: rec,
			Rank:        rank,
			Points:      pointsFor(rank, total, cfg),
		}
	}
	return ranked
}

// PointsForRank returns the points of a single rank on a map with n records.
func PointsForRank(rank, n int, cfg PointsConfig) int {
	if rank < 1 || n < 1 || rank > n {
		return 0
	}
	return pointsFor(rank, logBase(float64(n+1)), cfg)
}

func pointsFor(rank int, logTotal float64, cfg PointsConfig) int {
	normalized := (logTotal - logBase(float64(rank))) / logTotal
	scaled := (normalized*(1-cfg.MinValue) + cfg.MinValue) * cfg.Multiplier
	return int(math.Ceil(scaled - ceilEpsilon))
}

func logBase(x float64) float64 {
	return math.Log(x) / math.Log(10)
}
