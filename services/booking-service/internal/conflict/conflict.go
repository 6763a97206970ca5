// Package conflict decides whether a candidate interval collides with an
// already-booked one. Appointments and derived blockages (breaks, turns in
// service) get identical treatment.
package conflict

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// IsFree reports whether [start, end) stays clear of every booked interval
// once the safety buffer is applied on both sides. A candidate conflicts
// with a booked [s, e] iff start < e+buffer && end+buffer > s: the buffer
// protects the booked interval's tail and the candidate's tail alike, so
// the verdict is symmetric under swapping which interval is "existing".
func IsFree(start, end time.Time, booked []Interval, buffer time.Duration) bool {
	for _, b := range booked {
		if start.Before(b.End.Add(buffer)) && end.Add(buffer).After(b.Start) {
			return false
		}
	}
	return true
}
