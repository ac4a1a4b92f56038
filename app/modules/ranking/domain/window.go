package rankingdomain

// WindowConfig shapes the slice of a leaderboard an observer sees.
type WindowConfig struct {
	TopCount      int `yaml:"top_count"`
	ExtendedCount int `yaml:"extended_count"`
	Before        int `yaml:"before"`
	After         int `yaml:"after"`
}

// DefaultWindowConfig shows ranks 1-5, then 6-10 or the observer's neighbourhood.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{TopCount: 5, ExtendedCount: 10, Before: 3, After: 1}
}

// WindowIndexes returns the ascending row indexes visible to an observer at
// index observer (0-based, -1 when absent) in a leaderboard of n rows.
func WindowIndexes(n, observer int, cfg WindowConfig) []int {
	if n <= 0 {
		return nil
	}

	seen := make([]bool, n)
	mark := func(from, to int) {
		from = max(from, 0)
		to = min(to, n)
		for i := from; i < to; i++ {
			seen[i] = true
		}
	}

	mark(0, cfg.TopCount)
	if observer >= cfg.ExtendedCount {
		mark(observer-cfg.Before, observer+cfg.After+1)
	} else {
		mark(cfg.TopCount, cfg.ExtendedCount)
	}

	out := make([]int, 0, cfg.ExtendedCount)
	for i, ok := range seen {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// SelectWindow copies the rows picked by WindowIndexes.
func SelectWindow[T any](rows []T, observer int, cfg WindowConfig) []T {
	idx := WindowIndexes(len(rows), observer, cfg)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
