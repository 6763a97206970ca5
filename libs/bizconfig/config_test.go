package bizconfig

import (
	"testing"
	"time"
)

func TestWindow_Normal(t *testing.T) {
	cfg := Config{OpenTime: "08:00", CloseTime: "21:00"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start, end, err := cfg.Window(day)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if start.Hour() != 8 || end.Hour() != 21 {
		t.Fatalf("got [%s, %s)", start, end)
	}
	if !end.After(start) {
		t.Fatal("window end must follow start")
	}
}

func TestWindow_PastMidnight(t *testing.T) {
	cfg := Config{OpenTime: "18:00", CloseTime: "02:00"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start, end, err := cfg.Window(day)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if end.Day() != start.Day()+1 {
		t.Fatalf("close before open should roll to next day, got [%s, %s)", start, end)
	}
	if got := end.Sub(start); got != 8*time.Hour {
		t.Fatalf("window length %s, want 8h", got)
	}
}

func TestWindow_MidnightClose(t *testing.T) {
	cfg := Config{OpenTime: "08:00", CloseTime: "00:00"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start, end, err := cfg.Window(day)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if got := end.Sub(start); got != 16*time.Hour {
		t.Fatalf("window length %s, want 16h", got)
	}
}

func TestBusinessWindow_AfterMidnight(t *testing.T) {
	cfg := Config{OpenTime: "22:00", CloseTime: "02:00"}

	// 01:00 on March 3 sits inside the window that opened March 2.
	at := time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC)
	day, open, close, err := cfg.BusinessWindow(at)
	if err != nil {
		t.Fatalf("business window: %v", err)
	}
	if day.Day() != 2 {
		t.Fatalf("business day %s, want March 2", day)
	}
	if at.Before(open) || !at.Before(close) {
		t.Fatalf("instant %s not inside [%s, %s)", at, open, close)
	}
	// A 30-minute booking at that instant fits the window, so the
	// opening-hours bounds check accepts it.
	if end := at.Add(30 * time.Minute); end.After(close) {
		t.Fatalf("slot ending %s should fit before close %s", end, close)
	}

	// 23:00 on March 2 is the same window, keyed to its own day.
	at = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	day, open, _, err = cfg.BusinessWindow(at)
	if err != nil {
		t.Fatalf("business window: %v", err)
	}
	if day.Day() != 2 || at.Before(open) {
		t.Fatalf("got day %s open %s for %s", day, open, at)
	}
}

func TestBusinessWindow_DaytimeHours(t *testing.T) {
	cfg := Config{OpenTime: "08:00", CloseTime: "21:00"}

	// With no overnight window, an early-morning instant stays on its
	// own calendar day and falls before open.
	at := time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC)
	day, open, _, err := cfg.BusinessWindow(at)
	if err != nil {
		t.Fatalf("business window: %v", err)
	}
	if day.Day() != 3 {
		t.Fatalf("business day %s, want March 3", day)
	}
	if !at.Before(open) {
		t.Fatalf("%s should precede open %s", at, open)
	}
}

func TestWindow_BadClock(t *testing.T) {
	cfg := Config{OpenTime: "8am", CloseTime: "21:00"}
	if _, _, err := cfg.Window(time.Now()); err == nil {
		t.Fatal("expected error for malformed open time")
	}
}

func TestOperatesOn_FailsOpen(t *testing.T) {
	cfg := Config{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !cfg.OperatesOn(d) {
			t.Fatalf("empty weekday list must operate every day, failed on %s", d)
		}
	}

	cfg.OperatingWeekdays = []int{1, 2, 3, 4, 5}
	if cfg.OperatesOn(time.Sunday) {
		t.Fatal("Sunday should be closed")
	}
	if !cfg.OperatesOn(time.Wednesday) {
		t.Fatal("Wednesday should be open")
	}
}

func TestServiceMinutes_Fallback(t *testing.T) {
	cfg := Default()
	if got := cfg.ServiceMinutes("Barbería"); got != 30 {
		t.Fatalf("got %d, want 30", got)
	}
	if got := cfg.ServiceMinutes("desconocido"); got != FallbackServiceMinutes {
		t.Fatalf("got %d, want %d", got, FallbackServiceMinutes)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		h, m int
		ok   bool
	}{
		{"08:00", 8, 0, true},
		{"23:59", 23, 59, true},
		{" 9:30 ", 9, 30, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"noon", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, err := ParseClock(tc.in)
		if tc.ok && (err != nil || h != tc.h || m != tc.m) {
			t.Errorf("%q: got %d:%d err=%v", tc.in, h, m, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%q: expected error", tc.in)
		}
	}
}
