package absence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a leave or override does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLeaveOverlap is returned when a new leave overlaps a PENDING or
	// APPROVED one for the same doctor.
	ErrLeaveOverlap = errors.New("leave overlaps an existing request")
	// ErrInvalidTransition is returned when a status change is requested
	// from a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid leave status transition")
	// ErrDuplicateOverride is returned when the doctor already has an
	// override for the date.
	ErrDuplicateOverride = errors.New("override already exists for this date")
)

// LeaveRepository persists leave requests.
type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	GetByID(ctx context.Context, id uuid.UUID) (*Leave, error)
	Update(ctx context.Context, l *Leave) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status LeaveStatus, limit, offset int) ([]*Leave, int, error)
	ListPending(ctx context.Context, limit, offset int) ([]*Leave, int, error)
	// HasBlockingOverlap reports whether the doctor has a PENDING or
	// APPROVED leave intersecting [start, end], excluding excludeID.
	HasBlockingOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error)
	// ListApprovedOverlapping returns APPROVED leaves intersecting the
	// inclusive date range.
	ListApprovedOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Leave, error)
}

// OverrideRepository persists schedule overrides.
type OverrideRepository interface {
	// Create inserts the override, returning ErrDuplicateOverride when
	// the (doctor, date) pair is taken.
	Create(ctx context.Context, o *Override) error
	GetByID(ctx context.Context, id uuid.UUID) (*Override, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Override, int, error)
	ListInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Override, error)
}

// SlotSuppressor hides and restores generated slots when absences are
// approved, cancelled, or overridden. Booked slots are never touched.
type SlotSuppressor interface {
	SuppressRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error)
	SuppressDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error)
	RestoreRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error)
	RestoreDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error)
}
