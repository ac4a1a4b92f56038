package rankingdomain

import (
	"cmp"
	"maps"
	"slices"
	"time"
)

// RankTotals orders participants by total points (desc) with participant id as
// tie-break and assigns dense global ranks 1..P.
func RankTotals(totals map[ParticipantID]int, now time.Time) []PlayerRank {
	if len(totals) == 0 {
		return nil
	}

	ids := slices.Collect(maps.Keys(totals))
	slices.SortFunc(ids, func(a, b ParticipantID) int {
		if c := cmp.Compare(totals[b], totals[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	ranks := make([]PlayerRank, len(ids))
	for i, id := range ids {
		ranks[i] = PlayerRank{
			ParticipantID: id,
			TotalPoints:   totals[id],
			GlobalRank:    i + 1,
			UpdatedAt:     now,
		}
	}
	return ranks
}

// SumPoints folds map scores into per-participant totals.
func SumPoints(scores []MapScore) map[ParticipantID]int {
	totals := make(map[ParticipantID]int)
	for _, s := range scores {
		totals[s.ParticipantID] += s.Points
	}
	return totals
}

// ChangedRanks returns the entries of next whose total or rank differ from prev.
// Unchanged entries keep prev's UpdatedAt, so next stays stable across
// recomputations that move nothing.
func ChangedRanks(prev map[ParticipantID]PlayerRank, next []PlayerRank) []PlayerRank {
	var changed []PlayerRank
	for i, r := range next {
		old, ok := prev[r.ParticipantID]
		if ok && old.TotalPoints == r.TotalPoints && old.GlobalRank == r.GlobalRank {
			next[i].UpdatedAt = old.UpdatedAt
			continue
		}
		changed = append(changed, r)
	}
	return changed
}

// LatestUpdate returns the newest UpdatedAt among scores, or the zero time.
func LatestUpdate(scores []MapScore) time.Time {
	var latest time.Time
	for _, s := range scores {
		if s.UpdatedAt.After(latest) {
			latest = s.UpdatedAt
		}
	}
	return latest
}

// DivergentTotals lists participants whose totals differ between a and b.
func DivergentTotals(a, b map[ParticipantID]int) []ParticipantID {
	var out []ParticipantID
	for id, v := range a {
		if b[id] != v {
			out = append(out, id)
		}
	}
	for id, v := range b {
		if _, ok := a[id]; !ok && v != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
