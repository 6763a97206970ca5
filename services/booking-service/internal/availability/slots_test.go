package availability

import (
	"testing"
	"time"

	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
)

func clock(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestComputeSlots_StepIncludesBuffer(t *testing.T) {
	// Opening 08:00, closing 21:00, 30-minute service, 5-minute buffer:
	// slots advance every 35 minutes starting at 08:00 and the last start
	// leaves room for the service before close.
	slots := ComputeSlots(clock(8, 0), clock(21, 0), 30*time.Minute, 5*time.Minute, 0, nil, nil, false, time.Time{})
	if len(slots) == 0 {
		t.Fatal("expected slots for a full day")
	}
	if !slots[0].Equal(clock(8, 0)) {
		t.Fatalf("first slot = %s, want 08:00", slots[0].Format("15:04"))
	}
	if !slots[1].Equal(clock(8, 35)) {
		t.Fatalf("second slot = %s, want 08:35", slots[1].Format("15:04"))
	}
	last := slots[len(slots)-1]
	if last.After(clock(20, 30)) {
		t.Fatalf("last slot = %s, must be at or before 20:30", last.Format("15:04"))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("slots not strictly increasing at %d", i)
		}
	}
}

func TestComputeSlots_LeadTimeOnToday(t *testing.T) {
	now := clock(9, 50)
	lead := 10 * time.Minute

	slots := ComputeSlots(clock(8, 0), clock(12, 0), 30*time.Minute, 0, lead, nil, nil, true, now)
	for _, s := range slots {
		if s.Before(now.Add(lead)) {
			t.Fatalf("slot %s starts before now+lead", s.Format("15:04"))
		}
	}
	if len(slots) == 0 {
		t.Fatal("expected future slots to remain")
	}

	// On other days the lead filter does not apply.
	future := ComputeSlots(clock(8, 0), clock(12, 0), 30*time.Minute, 0, lead, nil, nil, false, now)
	if !future[0].Equal(clock(8, 0)) {
		t.Fatalf("non-today first slot = %s, want 08:00", future[0].Format("15:04"))
	}
}

func TestComputeSlots_BookedAndBlockages(t *testing.T) {
	booked := []conflict.Interval{{Start: clock(9, 0), End: clock(9, 30)}}
	blockages := []conflict.Interval{{Start: clock(10, 0), End: clock(10, 30)}}

	slots := ComputeSlots(clock(8, 0), clock(12, 0), 30*time.Minute, 0, 0, booked, blockages, false, time.Time{})
	for _, s := range slots {
		end := s.Add(30 * time.Minute)
		if s.Before(clock(9, 30)) && end.After(clock(9, 0)) {
			t.Fatalf("slot %s overlaps booked interval", s.Format("15:04"))
		}
		if s.Before(clock(10, 30)) && end.After(clock(10, 0)) {
			t.Fatalf("slot %s overlaps blockage", s.Format("15:04"))
		}
	}
}

func TestComputeSlots_OvernightWindow(t *testing.T) {
	// A close past midnight arrives as a next-day timestamp; slots keep
	// being generated across the boundary.
	open := clock(22, 0)
	close := clock(23, 59).Add(2*time.Hour + 1*time.Minute) // 02:00 next day
	slots := ComputeSlots(open, close, 30*time.Minute, 0, 0, nil, nil, false, time.Time{})
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots across midnight, got %d", len(slots))
	}
	last := slots[len(slots)-1]
	if !last.Equal(clock(23, 0).Add(2*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot = %s", last.Format("Jan 2 15:04"))
	}
}

func TestComputeSlots_DegenerateWindows(t *testing.T) {
	if got := ComputeSlots(clock(9, 0), clock(9, 0), 30*time.Minute, 0, 0, nil, nil, false, time.Time{}); got != nil {
		t.Fatalf("zero-length window yielded %d slots", len(got))
	}
	if got := ComputeSlots(clock(9, 0), clock(9, 20), 30*time.Minute, 0, 0, nil, nil, false, time.Time{}); got != nil {
		t.Fatalf("window shorter than the service yielded %d slots", len(got))
	}
	if got := ComputeSlots(clock(9, 0), clock(10, 0), 0, 0, 0, nil, nil, false, time.Time{}); got != nil {
		t.Fatal("zero duration must yield nothing")
	}
}

func TestComputeSlots_FullyBookedDay(t *testing.T) {
	booked := []conflict.Interval{{Start: clock(8, 0), End: clock(12, 0)}}
	slots := ComputeSlots(clock(8, 0), clock(12, 0), 30*time.Minute, 5*time.Minute, 0, booked, nil, false, time.Time{})
	if len(slots) != 0 {
		t.Fatalf("expected empty result, got %d slots", len(slots))
	}
}
