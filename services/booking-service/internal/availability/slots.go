package availability

import (
	"time"

	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
)

// ComputeSlots returns the start times within [open, close) where an
// appointment of length serviceDur could be booked. Candidates advance in
// steps of serviceDur+buffer from open; a candidate survives when its end
// fits before close, it starts no earlier than now+lead on the current day,
// and it clears the conflict guard against existing bookings and blockages.
//
// All times are expected to be in the same location (timezone).
func ComputeSlots(open, close time.Time, serviceDur, buffer, lead time.Duration, booked, blockages []conflict.Interval, isToday bool, now time.Time) []time.Time {
	if serviceDur <= 0 {
		return nil
	}
	if !close.After(open) {
		return nil
	}

	step := serviceDur + buffer
	busy := make([]conflict.Interval, 0, len(booked)+len(blockages))
	busy = append(busy, booked...)
	busy = append(busy, blockages...)

	earliest := now.Add(lead)

	var slots []time.Time
	for t := open; !t.Add(serviceDur).After(close); t = t.Add(step) {
		if isToday && t.Before(earliest) {
			continue
		}
		if conflict.IsFree(t, t.Add(serviceDur), busy, buffer) {
			slots = append(slots, t)
		}
	}
	return slots
}
