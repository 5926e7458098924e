// Package calendar provides the date and clock-time arithmetic the
// scheduling engine is built on: minute-of-day clock values, half-open
// time windows, and day iteration helpers. Everything here is a pure
// value computation; no I/O, no timezone conversions (dates are treated
// as civil dates in the hospital's local calendar).
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClockTime is a time of day expressed as minutes since midnight.
// Valid values are 0 (00:00) through 1440 (24:00, usable only as a
// window end).
type ClockTime int

const (
	Midnight  ClockTime = 0
	EndOfDay  ClockTime = 24 * 60
	minuteStr           = "15:04"
)

// ParseClock parses "HH:MM" into a ClockTime.
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse(minuteStr, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

// Valid reports whether c lies within a single day.
func (c ClockTime) Valid() bool { return c >= Midnight && c <= EndOfDay }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Add advances the clock time by d, truncated to whole minutes.
// The result may exceed EndOfDay; callers bound-check via Valid.
func (c ClockTime) Add(d time.Duration) ClockTime {
	return c + ClockTime(d/time.Minute)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Window is a half-open interval [Start, End) within one day.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// Valid reports whether the window is well-formed and non-empty.
func (w Window) Valid() bool {
	return w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	if !w.Valid() {
		return 0
	}
	return time.Duration(w.End-w.Start) * time.Minute
}

// Overlaps reports whether two half-open windows share any minute.
// Touching endpoints (w.End == other.Start) do not overlap.
func (w Window) Overlaps(other Window) bool {
	if !w.Valid() || !other.Valid() {
		return false
	}
	return w.Start < other.End && other.Start < w.End
}

// Contains reports whether the window fully covers other.
func (w Window) Contains(other Window) bool {
	return w.Valid() && other.Valid() && w.Start <= other.Start && other.End <= w.End
}

// Subtract removes the carved window from w and returns the remaining
// sub-windows in order. A carve that does not overlap w (including a
// malformed one) leaves w intact; carving the whole window returns an
// empty slice.
func (w Window) Subtract(carve Window) []Window {
	if !w.Valid() {
		return nil
	}
	if !w.Overlaps(carve) {
		return []Window{w}
	}
	var out []Window
	if w.Start < carve.Start {
		out = append(out, Window{Start: w.Start, End: carve.Start})
	}
	if carve.End < w.End {
		out = append(out, Window{Start: carve.End, End: w.End})
	}
	return out
}

// Tile splits the window into consecutive slots of the given size,
// dropping any trailing remainder shorter than the slot size.
func (w Window) Tile(slot time.Duration) []Window {
	step := ClockTime(slot / time.Minute)
	if !w.Valid() || step <= 0 {
		return nil
	}
	var out []Window
	for start := w.Start; start+step <= w.End; start += step {
		out = append(out, Window{Start: start, End: start + step})
	}
	return out
}

// DateOnly truncates t to its civil date, dropping the time of day and
// normalizing the location to UTC so dates compare with ==.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a civil date as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DaysBetween returns the number of calendar days from a to b
// inclusive of both endpoints. Returns 0 when b precedes a.
func DaysBetween(a, b time.Time) int {
	a, b = DateOnly(a), DateOnly(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// EachDay calls fn for every civil date from a through b inclusive,
// stopping early if fn returns an error.
func EachDay(a, b time.Time, fn func(time.Time) error) error {
	for d := DateOnly(a); !d.After(DateOnly(b)); d = d.AddDate(0, 0, 1) {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
