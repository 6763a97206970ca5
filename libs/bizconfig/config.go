// Package bizconfig holds the per-business scheduling configuration shared
// by the queue and booking services. A config is loaded once per scheduling
// decision and treated as immutable for that decision.
package bizconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable marks a config read that fell back to defaults. It never
// blocks a scheduling decision.
var ErrUnavailable = errors.New("business config unavailable")

// FallbackServiceMinutes applies to services with no configured duration.
const FallbackServiceMinutes = 25

type Config struct {
	OpenTime          string         `json:"open_time"`  // "08:00"
	CloseTime         string         `json:"close_time"` // "21:00"; before OpenTime means past midnight
	OperatingWeekdays []int          `json:"operating_weekdays"`
	ServiceDurations  map[string]int `json:"service_durations"`
	BufferMinutes     int            `json:"buffer_minutes"`
	LeadMinutes       int            `json:"lead_minutes"`
	DailyTurnLimit    int            `json:"daily_turn_limit"`
}

func Default() Config {
	return Config{
		OpenTime:  "08:00",
		CloseTime: "21:00",
		ServiceDurations: map[string]int{
			"Barbería":          30,
			"Corte de cabello":  20,
			"Afeitado":          15,
			"Tratamiento facial": 40,
		},
		BufferMinutes:  5,
		LeadMinutes:    10,
		DailyTurnLimit: 50,
	}
}

// ServiceMinutes never fails; unknown services get the fallback duration.
func (c Config) ServiceMinutes(service string) int {
	if v, ok := c.ServiceDurations[service]; ok && v > 0 {
		return v
	}
	return FallbackServiceMinutes
}

// OperatesOn reports whether the weekday (0=Sunday) is an operating day.
// No configured weekdays means every day operates: failing open here beats
// silently refusing all business.
func (c Config) OperatesOn(weekday time.Weekday) bool {
	if len(c.OperatingWeekdays) == 0 {
		return true
	}
	for _, d := range c.OperatingWeekdays {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// Window builds the operating window [open, close) for a calendar day.
// A close time at or before the open time rolls to the next day.
func (c Config) Window(day time.Time) (time.Time, time.Time, error) {
	openH, openM, err := ParseClock(c.OpenTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	closeH, closeM, err := ParseClock(c.CloseTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), openH, openM, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), closeH, closeM, 0, 0, day.Location())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// BusinessWindow locates the operating window an instant belongs to.
// With a close time past midnight, an instant before today's open may
// still sit inside the window that opened yesterday; the returned day is
// the calendar day that opened the window and is the instant's business
// day. An instant outside both windows gets its own calendar day's
// window back, so callers reject it with the usual bounds check.
func (c Config) BusinessWindow(t time.Time) (day, open, close time.Time, err error) {
	day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	open, close, err = c.Window(day)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, err
	}
	if t.Before(open) {
		prev := day.AddDate(0, 0, -1)
		prevOpen, prevClose, prevErr := c.Window(prev)
		if prevErr == nil && !t.Before(prevOpen) && t.Before(prevClose) {
			return prev, prevOpen, prevClose, nil
		}
	}
	return day, open, close, nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h, m, nil
}
