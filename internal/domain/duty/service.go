package duty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

// TxRunner executes fn atomically. Production wiring passes db.WithTx;
// tests pass a passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service implements duty and shift operations on top of the repositories.
type Service struct {
	duties  DutyRepository
	shifts  ShiftRepository
	cleaner SlotCleaner
	tx      TxRunner
}

func NewService(duties DutyRepository, shifts ShiftRepository, cleaner SlotCleaner, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{duties: duties, shifts: shifts, cleaner: cleaner, tx: tx}
}

// CreateDuty registers a new engagement. New duties start active and
// default to outpatient work when no kind is given.
func (s *Service) CreateDuty(ctx context.Context, d *Duty) error {
	d.StartDate = calendar.DateOnly(d.StartDate)
	if d.EndDate != nil {
		e := calendar.DateOnly(*d.EndDate)
		d.EndDate = &e
	}
	if d.Kind == "" {
		d.Kind = DutyOutpatient
	}
	d.Active = true
	if err := d.Validate(); err != nil {
		return err
	}
	return s.duties.Create(ctx, d)
}

func (s *Service) GetDuty(ctx context.Context, id uuid.UUID) (*Duty, error) {
	return s.duties.GetByID(ctx, id)
}

func (s *Service) UpdateDuty(ctx context.Context, d *Duty) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.duties.Update(ctx, d)
}

// EndDuty closes the engagement on endDate and removes the unbooked
// slots generated for dates past it. Booked slots are left in place.
func (s *Service) EndDuty(ctx context.Context, id uuid.UUID, endDate time.Time) (*Duty, error) {
	endDate = calendar.DateOnly(endDate)
	d, err := s.duties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if endDate.Before(calendar.DateOnly(d.StartDate)) {
		return nil, &validation.Error{Violations: []string{"end_date must not precede start_date"}}
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		d.EndDate = &endDate
		d.Active = false
		if err := s.duties.Update(ctx, d); err != nil {
			return fmt.Errorf("end duty: %w", err)
		}
		if _, err := s.cleaner.DeleteFutureUnbookedByDuty(ctx, d.ID, endDate.AddDate(0, 0, 1)); err != nil {
			return fmt.Errorf("clean slots for ended duty: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDutiesByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Duty, int, error) {
	return s.duties.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListDutiesByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Duty, int, error) {
	return s.duties.ListByHospital(ctx, hospitalID, limit, offset)
}

// CurrentDuties returns every duty in force today.
func (s *Service) CurrentDuties(ctx context.Context) ([]*Duty, error) {
	return s.duties.ListActive(ctx)
}

// CreateShift adds a recurring shift to an active duty. New shifts
// start active and default to single-booking slots.
func (s *Service) CreateShift(ctx context.Context, sh *Shift) error {
	d, err := s.duties.GetByID(ctx, sh.DutyID)
	if err != nil {
		return err
	}
	if !d.Active {
		return &validation.Error{Violations: []string{"duty is not active"}}
	}
	if sh.MaxConcurrentBookings == 0 {
		sh.MaxConcurrentBookings = 1
	}
	sh.Active = true
	if err := sh.Validate(); err != nil {
		return err
	}
	return s.shifts.Create(ctx, sh)
}

// CreateShiftsForDays creates one shift per weekday with a shared time
// window. Duplicated weekdays are collapsed. The whole batch is written
// atomically.
func (s *Service) CreateShiftsForDays(ctx context.Context, dutyID uuid.UUID, days []time.Weekday, tmpl Shift) ([]*Shift, error) {
	d, err := s.duties.GetByID(ctx, dutyID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, &validation.Error{Violations: []string{"duty is not active"}}
	}
	if len(days) == 0 {
		return nil, &validation.Error{Violations: []string{"at least one weekday is required"}}
	}
	if tmpl.MaxConcurrentBookings == 0 {
		tmpl.MaxConcurrentBookings = 1
	}
	tmpl.Active = true

	seen := make(map[time.Weekday]bool)
	var shifts []*Shift
	for _, day := range days {
		if seen[day] {
			continue
		}
		seen[day] = true
		sh := tmpl
		sh.DutyID = dutyID
		sh.Weekday = day
		if err := sh.Validate(); err != nil {
			return nil, err
		}
		shifts = append(shifts, &sh)
	}

	if err := s.shifts.CreateBatch(ctx, shifts); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return s.shifts.GetByID(ctx, id)
}

func (s *Service) UpdateShift(ctx context.Context, sh *Shift) error {
	if err := sh.Validate(); err != nil {
		return err
	}
	return s.shifts.Update(ctx, sh)
}

// DeleteShift removes the shift and the unbooked slots it generated for
// today onward. Booked slots survive without their source shift.
func (s *Service) DeleteShift(ctx context.Context, id uuid.UUID) error {
	today := calendar.DateOnly(time.Now())
	return s.tx(ctx, func(ctx context.Context) error {
		if _, err := s.cleaner.DeleteFutureUnbookedByShift(ctx, id, today); err != nil {
			return fmt.Errorf("clean slots for deleted shift: %w", err)
		}
		return s.shifts.Delete(ctx, id)
	})
}

func (s *Service) ListShiftsByDuty(ctx context.Context, dutyID uuid.UUID) ([]*Shift, error) {
	return s.shifts.ListByDuty(ctx, dutyID)
}

// ShiftsForDate returns the doctor's working windows on a concrete date.
func (s *Service) ShiftsForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Shift, error) {
	return s.shifts.ListForDate(ctx, doctorID, calendar.DateOnly(date))
}
