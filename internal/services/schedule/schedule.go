// Package schedule holds the wall-clock arithmetic behind the dashboard's daily refresh.
package schedule

import "time"

// WIBOffset is Western Indonesian Time, the zone the dashboard refreshes at midnight in.
const WIBOffset = 7 * time.Hour

var WIB = time.FixedZone("WIB", int(WIBOffset.Seconds()))

// DurationUntilNextMidnight returns how long after now the next midnight falls in a zone
// that is offset east of UTC. Exactly at midnight the answer is a full day.
func DurationUntilNextMidnight(now time.Time, offset time.Duration) time.Duration {
	local := now.In(time.FixedZone("", int(offset.Seconds())))
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())
	return midnight.Sub(local)
}
