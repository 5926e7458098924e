// Package availability turns weekly shift templates into concrete
// bookable slots and runs the booking ledger over them. Slots are the
// only rows patients ever touch: generation, suppression, and cleanup
// all leave booked slots alone.
package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
)

// Slot is one bookable interval on a concrete date. ShiftID goes nil
// when the source shift is deleted after the slot was booked; the
// booking itself stays valid.
type Slot struct {
	ID         uuid.UUID          `db:"id" json:"id"`
	ShiftID    *uuid.UUID         `db:"shift_id" json:"shift_id,omitempty"`
	DoctorID   uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Date       time.Time          `db:"slot_date" json:"date"`
	StartTime  calendar.ClockTime `db:"start_min" json:"start_time"`
	EndTime    calendar.ClockTime `db:"end_min" json:"end_time"`
	Available  bool               `db:"available" json:"available"`
	Booked     bool               `db:"booked" json:"booked"`
	BookedBy   *uuid.UUID         `db:"booked_by" json:"booked_by,omitempty"`
	BookingRef *string            `db:"booking_ref" json:"booking_ref,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// Bookable reports whether the slot can accept a booking right now.
func (s *Slot) Bookable() bool {
	return s.Available && !s.Booked
}

// ShiftTemplate is the generator's view of a weekly shift: the doctor,
// the weekday window, and the optional break carved out of it.
type ShiftTemplate struct {
	ID                 uuid.UUID
	DoctorID           uuid.UUID
	Weekday            time.Weekday
	Window             calendar.Window
	Break              *calendar.Window
	DefaultDurationMin int
}

// WorkWindows returns the template's working windows with the break
// carved out.
func (t *ShiftTemplate) WorkWindows() []calendar.Window {
	if t.Break == nil {
		return []calendar.Window{t.Window}
	}
	return t.Window.Subtract(*t.Break)
}

// DaySchedule is one day of a doctor's weekly schedule.
type DaySchedule struct {
	Date        string           `json:"date"`
	Weekday     time.Weekday     `json:"weekday"`
	Shifts      []*ShiftTemplate `json:"-"`
	ShiftCount  int              `json:"shift_count"`
	TotalSlots  int              `json:"total_slots"`
	Available   int              `json:"available_slots"`
	Booked      int              `json:"booked_slots"`
	Unavailable bool             `json:"unavailable"`
}

// Utilization summarizes a doctor's booking activity over a date range.
type Utilization struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	TotalSlots  int       `json:"total_slots"`
	BookedSlots int       `json:"booked_slots"`
	OpenSlots   int       `json:"open_slots"`
	WorkingDays int       `json:"working_days"`
	BookingRate float64   `json:"booking_rate"`
}
