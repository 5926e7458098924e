package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

// GetSlot returns one slot by id.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

// AvailableSlots lists the doctor's open slots on a date.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Slot, error) {
	return s.slots.ListAvailable(ctx, doctorID, calendar.DateOnly(date))
}

// SlotsInRange lists every slot of the doctor over an inclusive range,
// booked or not.
func (s *Service) SlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	var ck validation.Check
	ck.Require(!to.Before(from), "to must not precede from")
	if err := ck.Err(); err != nil {
		return nil, err
	}
	return s.slots.ListByDoctorRange(ctx, doctorID, from, to)
}

// BookSlot claims the slot for the patient. At most one concurrent
// caller succeeds; everyone else gets ErrSlotUnavailable.
func (s *Service) BookSlot(ctx context.Context, slotID, patientID uuid.UUID, bookingRef string) (*Slot, error) {
	var ck validation.Check
	ck.Require(patientID != uuid.Nil, "patient_id is required")
	if err := ck.Err(); err != nil {
		return nil, err
	}
	if bookingRef == "" {
		bookingRef = uuid.NewString()
	}
	slot, err := s.slots.Book(ctx, slotID, patientID, bookingRef)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("slot_id", slotID.String()).
		Str("patient_id", patientID.String()).
		Str("booking_ref", bookingRef).
		Msg("slot booked")
	return slot, nil
}

// CancelBooking releases a booked slot. Whether the freed slot goes
// back into the pool depends on the doctor's current leaves and
// overrides, not on the availability the slot had when it was booked.
func (s *Service) CancelBooking(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.slots.Cancel(ctx, slotID)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("slot_id", slotID.String()).
		Bool("available", slot.Available).
		Msg("booking cancelled")
	return slot, nil
}

// PatientBookings lists the slots a patient currently holds.
func (s *Service) PatientBookings(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	return s.slots.ListBookedBy(ctx, patientID, limit, offset)
}
