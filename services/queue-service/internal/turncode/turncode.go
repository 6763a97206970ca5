// Package turncode generates the day-scoped human codes handed to walk-in
// customers ("A01", "A02", ... with the letter rotating daily).
package turncode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Epoch is the date where the series letter was "A". The letter advances
// one place per calendar day and wraps every 26 days.
var Epoch = time.Date(2024, time.August, 23, 0, 0, 0, 0, time.UTC)

// MaxAttempts caps how many sequence numbers an insert may try before the
// day-letter is declared exhausted.
const MaxAttempts = 100

type DuplicateCodeError struct {
	Code string
}

func (e DuplicateCodeError) Error() string {
	return fmt.Sprintf("turn code %s already taken", e.Code)
}

type CodeExhaustedError struct {
	Letter   string
	Attempts int
}

func (e CodeExhaustedError) Error() string {
	return fmt.Sprintf("no free turn code for letter %s after %d attempts", e.Letter, e.Attempts)
}

// DayLetter returns the series letter for a calendar day.
func DayLetter(day time.Time) string {
	d := day.UTC()
	midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(midnight.Sub(Epoch).Hours() / 24)
	idx := ((offset % 26) + 26) % 26
	return string(rune('A' + idx))
}

// Next returns the next code for day given the codes already issued that
// day. Codes with a different series letter are ignored.
func Next(day time.Time, existing []string) string {
	letter := DayLetter(day)
	max := 0
	for _, code := range existing {
		if !strings.HasPrefix(code, letter) {
			continue
		}
		n, err := strconv.Atoi(code[len(letter):])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return Format(letter, max+1)
}

// Format builds a code from a letter and a sequence number. Sequences are
// zero-padded to two digits and widen naturally past 99.
func Format(letter string, seq int) string {
	return fmt.Sprintf("%s%02d", letter, seq)
}

// Sequence extracts the numeric part of a code, or 0 if malformed.
func Sequence(code string) int {
	if len(code) < 2 {
		return 0
	}
	n, err := strconv.Atoi(code[1:])
	if err != nil {
		return 0
	}
	return n
}
