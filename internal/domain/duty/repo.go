package duty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a duty or shift does not exist.
var ErrNotFound = errors.New("not found")

// DutyRepository persists duties.
type DutyRepository interface {
	Create(ctx context.Context, d *Duty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Duty, error)
	Update(ctx context.Context, d *Duty) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Duty, int, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Duty, int, error)
	ListActive(ctx context.Context) ([]*Duty, error)
}

// ShiftRepository persists shifts.
type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	CreateBatch(ctx context.Context, shifts []*Shift) error
	GetByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	Update(ctx context.Context, s *Shift) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDuty(ctx context.Context, dutyID uuid.UUID) ([]*Shift, error)
	// ListForDate returns the doctor's shifts whose duty is active and
	// covers the date and whose weekday matches it.
	ListForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Shift, error)
}

// SlotCleaner removes generated slots when their source shift or duty
// goes away. Booked slots are never touched.
type SlotCleaner interface {
	DeleteFutureUnbookedByShift(ctx context.Context, shiftID uuid.UUID, from time.Time) (int64, error)
	DeleteFutureUnbookedByDuty(ctx context.Context, dutyID uuid.UUID, from time.Time) (int64, error)
}
