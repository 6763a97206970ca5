package conflict

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestIsFree_BufferedOverlap(t *testing.T) {
	// Appointment [14:00, 14:30), buffer 10: a candidate starting 14:25
	// collides because the booked interval's end+buffer reaches 14:40.
	booked := []Interval{{Start: at(14, 0), End: at(14, 30)}}
	if IsFree(at(14, 25), at(14, 55), booked, 10*time.Minute) {
		t.Fatal("candidate starting inside end+buffer must conflict")
	}
	if !IsFree(at(14, 40), at(15, 10), booked, 10*time.Minute) {
		t.Fatal("candidate starting exactly at end+buffer is free")
	}
}

func TestIsFree_CandidateTailProtected(t *testing.T) {
	// The buffer also keeps a booked interval from starting right after
	// the candidate ends.
	booked := []Interval{{Start: at(15, 0), End: at(15, 30)}}
	if IsFree(at(14, 25), at(14, 55), booked, 10*time.Minute) {
		t.Fatal("candidate ending within buffer of the next booking must conflict")
	}
	if !IsFree(at(14, 20), at(14, 50), booked, 10*time.Minute) {
		t.Fatal("candidate ending exactly buffer before the next booking is free")
	}
}

func TestIsFree_SymmetricUnderSwap(t *testing.T) {
	buffer := 7 * time.Minute
	pairs := []struct {
		aStart, aEnd time.Time
		bStart, bEnd time.Time
	}{
		{at(9, 0), at(9, 30), at(9, 32), at(10, 0)},
		{at(9, 0), at(9, 30), at(10, 0), at(10, 30)},
		{at(9, 0), at(10, 0), at(9, 15), at(9, 45)},
		{at(9, 0), at(9, 30), at(9, 30), at(10, 0)},
	}
	for i, p := range pairs {
		forward := IsFree(p.aStart, p.aEnd, []Interval{{Start: p.bStart, End: p.bEnd}}, buffer)
		backward := IsFree(p.bStart, p.bEnd, []Interval{{Start: p.aStart, End: p.aEnd}}, buffer)
		if forward != backward {
			t.Errorf("case %d: verdict not symmetric: %v vs %v", i, forward, backward)
		}
	}
}

func TestIsFree_NoBookings(t *testing.T) {
	if !IsFree(at(9, 0), at(9, 30), nil, 5*time.Minute) {
		t.Fatal("empty booked set is always free")
	}
}

func TestIsFree_ZeroBuffer(t *testing.T) {
	booked := []Interval{{Start: at(10, 0), End: at(10, 30)}}
	if !IsFree(at(10, 30), at(11, 0), booked, 0) {
		t.Fatal("back-to-back intervals are free with zero buffer")
	}
	if IsFree(at(10, 29), at(10, 59), booked, 0) {
		t.Fatal("one-minute overlap must conflict")
	}
}
