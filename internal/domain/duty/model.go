// Package duty holds the employment side of the schedule: a Duty is a
// doctor's engagement at a hospital, and a Shift is a weekly recurring
// working window within an active duty. Shifts are the templates the
// slot generator expands into concrete bookable slots.
package duty

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

// DutyKind classifies the engagement.
type DutyKind string

const (
	DutyOutpatient DutyKind = "OUTPATIENT"
	DutyInpatient  DutyKind = "INPATIENT"
	DutyEmergency  DutyKind = "EMERGENCY"
	DutyAdmin      DutyKind = "ADMIN"
)

var validDutyKinds = map[DutyKind]bool{
	DutyOutpatient: true,
	DutyInpatient:  true,
	DutyEmergency:  true,
	DutyAdmin:      true,
}

// Duty is a doctor's engagement at a hospital. EndDate is nil while the
// engagement is open-ended; Active is cleared when the duty is ended.
// DepartmentID is optional since not every hospital models departments.
type Duty struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	HospitalID   uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Kind         DutyKind   `db:"duty_kind" json:"duty_kind"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Active       bool       `db:"active" json:"active"`
	Notes        string     `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks the duty's field constraints.
func (d *Duty) Validate() error {
	var c validation.Check
	c.Require(d.DoctorID != uuid.Nil, "doctor_id is required")
	c.Require(d.HospitalID != uuid.Nil, "hospital_id is required")
	c.Require(validDutyKinds[d.Kind], "duty_kind must be one of OUTPATIENT, INPATIENT, EMERGENCY, ADMIN")
	c.Require(!d.StartDate.IsZero(), "start_date is required")
	if d.EndDate != nil {
		c.Require(!d.EndDate.Before(d.StartDate), "end_date must not precede start_date")
	}
	return c.Err()
}

// CoversDate reports whether the duty is in force on the given date.
func (d *Duty) CoversDate(date time.Time) bool {
	date = calendar.DateOnly(date)
	if date.Before(calendar.DateOnly(d.StartDate)) {
		return false
	}
	if d.EndDate != nil && date.After(calendar.DateOnly(*d.EndDate)) {
		return false
	}
	return d.Active
}

// Shift is a weekly recurring working window within a duty. The optional
// break window must lie fully inside the working window.
// DefaultDurationMin is the slot length the background generator uses
// when expanding this shift. MaxConcurrentBookings is the per-slot
// capacity the integrating appointment system enforces; each generated
// slot row still carries a single booking. Inactive shifts are kept but
// no longer expanded into slots.
type Shift struct {
	ID                    uuid.UUID           `db:"id" json:"id"`
	DutyID                uuid.UUID           `db:"duty_id" json:"duty_id"`
	Weekday               time.Weekday        `db:"weekday" json:"weekday"`
	StartTime             calendar.ClockTime  `db:"start_min" json:"start_time"`
	EndTime               calendar.ClockTime  `db:"end_min" json:"end_time"`
	BreakStart            *calendar.ClockTime `db:"break_start_min" json:"break_start,omitempty"`
	BreakEnd              *calendar.ClockTime `db:"break_end_min" json:"break_end,omitempty"`
	DefaultDurationMin    int                 `db:"default_duration_min" json:"default_duration_min"`
	MaxConcurrentBookings int                 `db:"max_concurrent_bookings" json:"max_concurrent_bookings"`
	Active                bool                `db:"active" json:"active"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// Window returns the shift's working window.
func (s *Shift) Window() calendar.Window {
	return calendar.Window{Start: s.StartTime, End: s.EndTime}
}

// BreakWindow returns the break window, or ok=false when the shift has
// no break.
func (s *Shift) BreakWindow() (calendar.Window, bool) {
	if s.BreakStart == nil || s.BreakEnd == nil {
		return calendar.Window{}, false
	}
	return calendar.Window{Start: *s.BreakStart, End: *s.BreakEnd}, true
}

// Validate checks the shift's field constraints.
func (s *Shift) Validate() error {
	var c validation.Check
	c.Require(s.DutyID != uuid.Nil, "duty_id is required")
	c.Require(s.Weekday >= time.Sunday && s.Weekday <= time.Saturday, "weekday must be between 0 and 6")
	c.Require(s.Window().Valid(), "end_time must be after start_time")
	c.Require((s.BreakStart == nil) == (s.BreakEnd == nil), "break_start and break_end must be set together")
	if brk, ok := s.BreakWindow(); ok {
		c.Require(brk.Valid(), "break_end must be after break_start")
		c.Require(s.Window().Contains(brk), "break must lie within the shift window")
	}
	c.Require(s.DefaultDurationMin >= 5, "default_duration_min must be at least 5")
	c.Require(s.MaxConcurrentBookings >= 1, "max_concurrent_bookings must be at least 1")
	return c.Err()
}
