package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a slot does not exist.
	ErrNotFound = errors.New("slot not found")
	// ErrSlotUnavailable is returned when a booking races or targets a
	// suppressed or already-booked slot.
	ErrSlotUnavailable = errors.New("slot is not available for booking")
	// ErrNotBooked is returned when cancelling a slot that holds no
	// booking.
	ErrNotBooked = errors.New("slot is not booked")
	// ErrRangeTooLarge is returned when a generation request exceeds the
	// range cap.
	ErrRangeTooLarge = errors.New("generation range exceeds the maximum")
)

// SlotRepository persists availability slots. Book and Cancel are the
// only mutations that touch booking state and both are atomic.
type SlotRepository interface {
	// BulkInsert writes the batch in one transaction, silently skipping
	// rows whose (shift, date, start) key already exists. Returns the
	// number of rows actually inserted.
	BulkInsert(ctx context.Context, slots []*Slot) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Slot, error)
	ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error)
	ListBookedBy(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Slot, int, error)

	// Book marks the slot booked for the patient, failing with
	// ErrSlotUnavailable unless the slot is available and unbooked at
	// commit time. At most one concurrent caller wins.
	Book(ctx context.Context, slotID, patientID uuid.UUID, bookingRef string) (*Slot, error)
	// Cancel clears the booking, failing with ErrNotBooked when there is
	// none.
	Cancel(ctx context.Context, slotID uuid.UUID) (*Slot, error)

	SuppressRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error)
	SuppressDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error)
	RestoreRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error)
	RestoreDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error)

	DeleteFutureUnbookedByShift(ctx context.Context, shiftID uuid.UUID, from time.Time) (int64, error)
	DeleteFutureUnbookedByDuty(ctx context.Context, dutyID uuid.UUID, from time.Time) (int64, error)
	// DeleteUnbookedBefore prunes stale unbooked slots older than the
	// cutoff date.
	DeleteUnbookedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Counts aggregates slot totals for analytics over an inclusive
	// date range.
	Counts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (SlotCounts, error)
	// CountsByDate splits the aggregates per date.
	CountsByDate(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]SlotCounts, error)
}

// SlotCounts is an aggregate over a set of slots.
type SlotCounts struct {
	Total     int
	Booked    int
	Available int
	Days      int
}

// ShiftSource supplies the shift templates slots are generated from.
// The duty domain provides the implementation.
type ShiftSource interface {
	TemplateByID(ctx context.Context, shiftID uuid.UUID) (*ShiftTemplate, error)
	// ActiveTemplates returns the templates of every duty in force today.
	ActiveTemplates(ctx context.Context) ([]*ShiftTemplate, error)
	// TemplatesByDoctor returns the doctor's active templates.
	TemplatesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ShiftTemplate, error)
}

// AbsenceSource reports the dates a doctor must not be scheduled on.
// The absence domain provides the implementation.
type AbsenceSource interface {
	UnavailableDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]bool, error)
}
