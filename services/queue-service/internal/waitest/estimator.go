// Package waitest computes wait estimates from a queue snapshot. Estimates
// are advisory: missing duration data falls back to a default instead of
// failing, so an estimate is always available.
package waitest

import (
	"time"

	"github.com/turnohq/turnoline/services/queue-service/internal/model"
)

// FallbackServiceMinutes is used when a service has no configured duration.
const FallbackServiceMinutes = 25

// Durations maps service names to their length in minutes.
type Durations map[string]int

func (d Durations) Minutes(service string) int {
	if v, ok := d[service]; ok && v > 0 {
		return v
	}
	return FallbackServiceMinutes
}

// ForCode estimates the wait in minutes for the waiting turn with the given
// code: the remaining time of every in-service turn plus the full durations
// of waiting turns strictly ahead of the code. An unknown code means the
// whole queue is ahead.
func ForCode(snap model.Snapshot, durations Durations, code string, now time.Time) int {
	total := inServiceRemainder(snap.InService, durations, now)
	for _, t := range snap.Waiting {
		if t.Code == code {
			break
		}
		total += durations.Minutes(t.ServiceName)
	}
	if total < 0 {
		return 0
	}
	return total
}

// FacilityWide estimates the average wait for a newcomer when no specific
// turn is named: the combined backlog divided by the number of barbers
// working in parallel.
func FacilityWide(snap model.Snapshot, durations Durations, activeBarbers int, now time.Time) int {
	total := inServiceRemainder(snap.InService, durations, now)
	for _, t := range snap.Waiting {
		total += durations.Minutes(t.ServiceName)
	}
	if activeBarbers < 1 {
		activeBarbers = 1
	}
	est := total / activeBarbers
	if est < 0 {
		return 0
	}
	return est
}

func inServiceRemainder(inService []model.Turn, durations Durations, now time.Time) int {
	total := 0
	for _, t := range inService {
		dur := durations.Minutes(t.ServiceName)
		if t.StartedAt == nil {
			total += dur
			continue
		}
		elapsed := int(now.Sub(*t.StartedAt).Minutes())
		remaining := dur - elapsed
		if remaining > 0 {
			total += remaining
		}
	}
	return total
}
