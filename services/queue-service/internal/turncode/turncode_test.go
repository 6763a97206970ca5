package turncode

import (
	"testing"
	"time"
)

func TestDayLetter_Cycle(t *testing.T) {
	cases := []struct {
		offsetDays int
		want       string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "A"},
		{27, "B"},
		{52, "A"},
	}
	for _, tc := range cases {
		day := Epoch.AddDate(0, 0, tc.offsetDays)
		if got := DayLetter(day); got != tc.want {
			t.Errorf("offset %d: got %s, want %s", tc.offsetDays, got, tc.want)
		}
	}
}

func TestDayLetter_BeforeEpoch(t *testing.T) {
	// One day before the epoch wraps back to Z, not a panic or negative rune.
	if got := DayLetter(Epoch.AddDate(0, 0, -1)); got != "Z" {
		t.Fatalf("got %s, want Z", got)
	}
	if got := DayLetter(Epoch.AddDate(0, 0, -26)); got != "A" {
		t.Fatalf("got %s, want A", got)
	}
}

func TestNext_Empty(t *testing.T) {
	if got := Next(Epoch, nil); got != "A01" {
		t.Fatalf("got %s, want A01", got)
	}
}

func TestNext_Monotone(t *testing.T) {
	day := Epoch.AddDate(0, 0, 1) // letter B
	existing := []string{"B01", "B02", "B07"}
	if got := Next(day, existing); got != "B08" {
		t.Fatalf("got %s, want B08", got)
	}
	// Codes from another day's letter are ignored.
	existing = append(existing, "A99")
	if got := Next(day, existing); got != "B08" {
		t.Fatalf("got %s, want B08 with foreign letter present", got)
	}
}

func TestNext_Deterministic(t *testing.T) {
	day := Epoch.AddDate(0, 0, 3)
	existing := []string{"D02", "D01"}
	first := Next(day, existing)
	second := Next(day, existing)
	if first != second {
		t.Fatalf("Next not deterministic: %s vs %s", first, second)
	}
}

func TestFormat_WidensPast99(t *testing.T) {
	if got := Format("A", 7); got != "A07" {
		t.Fatalf("got %s, want A07", got)
	}
	if got := Format("A", 100); got != "A100" {
		t.Fatalf("got %s, want A100", got)
	}
}

func TestSequence(t *testing.T) {
	if got := Sequence("A07"); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	if got := Sequence("garbage"); got != 0 {
		t.Fatalf("got %d, want 0 for malformed code", got)
	}
}

func TestDayLetter_LocalTimesNormalized(t *testing.T) {
	loc := time.FixedZone("UTC-4", -4*60*60)
	day := time.Date(2024, time.August, 23, 20, 0, 0, 0, loc)
	if got := DayLetter(day); got != "B" {
		// 2024-08-23 20:00 UTC-4 is 2024-08-24 UTC.
		t.Fatalf("got %s, want B", got)
	}
}
