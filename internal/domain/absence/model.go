// Package absence holds the exceptions that punch holes in (or add to)
// the recurring schedule: leave requests with an approval workflow, and
// single-date overrides.
package absence

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "PENDING"
	LeaveApproved  LeaveStatus = "APPROVED"
	LeaveRejected  LeaveStatus = "REJECTED"
	LeaveCancelled LeaveStatus = "CANCELLED"
)

var validStatuses = map[LeaveStatus]bool{
	LeavePending:   true,
	LeaveApproved:  true,
	LeaveRejected:  true,
	LeaveCancelled: true,
}

// Leave is a doctor's absence request over an inclusive date range.
// Only PENDING and APPROVED leaves block the schedule. Kind is caller
// vocabulary (sick, casual, conference) and is stored verbatim;
// ApprovedBy and ApprovalNotes record who decided the request and why.
type Leave struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	DoctorID      uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	Kind          string      `db:"leave_kind" json:"leave_kind,omitempty"`
	StartDate     time.Time   `db:"start_date" json:"start_date"`
	EndDate       time.Time   `db:"end_date" json:"end_date"`
	Reason        string      `db:"reason" json:"reason,omitempty"`
	Status        LeaveStatus `db:"status" json:"status"`
	ApprovedBy    *uuid.UUID  `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalNotes string      `db:"approval_notes" json:"approval_notes,omitempty"`
	DecidedAt     *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Blocking reports whether the leave counts against the schedule.
func (l *Leave) Blocking() bool {
	return l.Status == LeavePending || l.Status == LeaveApproved
}

// Covers reports whether the leave's date range includes date.
func (l *Leave) Covers(date time.Time) bool {
	date = calendar.DateOnly(date)
	return !date.Before(calendar.DateOnly(l.StartDate)) && !date.After(calendar.DateOnly(l.EndDate))
}

// Validate checks the leave's field constraints.
func (l *Leave) Validate() error {
	var c validation.Check
	c.Require(l.DoctorID != uuid.Nil, "doctor_id is required")
	c.Require(!l.StartDate.IsZero(), "start_date is required")
	c.Require(!l.EndDate.IsZero(), "end_date is required")
	if !l.StartDate.IsZero() && !l.EndDate.IsZero() {
		c.Require(!l.EndDate.Before(l.StartDate), "end_date must not precede start_date")
	}
	c.Require(validStatuses[l.Status], "invalid status")
	return c.Err()
}

// Override marks a single date as unavailable (Available=false) or as
// extra availability (Available=true) regardless of the weekly pattern.
// The optional time window narrows the override to part of the day.
type Override struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	DoctorID  uuid.UUID           `db:"doctor_id" json:"doctor_id"`
	Date      time.Time           `db:"override_date" json:"date"`
	Available bool                `db:"available" json:"available"`
	StartTime *calendar.ClockTime `db:"start_min" json:"start_time,omitempty"`
	EndTime   *calendar.ClockTime `db:"end_min" json:"end_time,omitempty"`
	Reason    string              `db:"reason" json:"reason,omitempty"`
	CreatedBy uuid.UUID           `db:"created_by" json:"created_by"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// Validate checks the override's field constraints.
func (o *Override) Validate() error {
	var c validation.Check
	c.Require(o.DoctorID != uuid.Nil, "doctor_id is required")
	c.Require(!o.Date.IsZero(), "date is required")
	c.Require(o.CreatedBy != uuid.Nil, "created_by is required")
	c.Require((o.StartTime == nil) == (o.EndTime == nil), "start_time and end_time must be set together")
	if o.StartTime != nil && o.EndTime != nil {
		w := calendar.Window{Start: *o.StartTime, End: *o.EndTime}
		c.Require(w.Valid(), "end_time must be after start_time")
	}
	return c.Err()
}
