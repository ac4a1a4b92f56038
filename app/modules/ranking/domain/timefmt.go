package rankingdomain

import "fmt"

// FormatTime renders a run time as m:ss.mmm, or h:mm:ss.mmm past an hour.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	millis := ms % 1000
	secs := (ms / 1000) % 60
	mins := (ms / 60000) % 60
	hours := ms / 3600000
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, mins, secs, millis)
	}
	return fmt.Sprintf("%d:%02d.%03d", mins, secs, millis)
}
