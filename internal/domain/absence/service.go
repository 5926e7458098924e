package absence

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

// Service implements the leave workflow and override operations.
type Service struct {
	leaves     LeaveRepository
	overrides  OverrideRepository
	suppressor SlotSuppressor
	tx         TxRunner
}

func NewService(leaves LeaveRepository, overrides OverrideRepository, suppressor SlotSuppressor, tx TxRunner) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{leaves: leaves, overrides: overrides, suppressor: suppressor, tx: tx}
}

// RequestLeave files a new PENDING leave. A request that intersects any
// of the doctor's PENDING or APPROVED leaves is rejected with
// ErrLeaveOverlap.
func (s *Service) RequestLeave(ctx context.Context, l *Leave) error {
	l.StartDate = calendar.DateOnly(l.StartDate)
	l.EndDate = calendar.DateOnly(l.EndDate)
	l.Status = LeavePending
	if err := l.Validate(); err != nil {
		return err
	}

	overlaps, err := s.leaves.HasBlockingOverlap(ctx, l.DoctorID, l.StartDate, l.EndDate, uuid.Nil)
	if err != nil {
		return fmt.Errorf("check leave overlap: %w", err)
	}
	if overlaps {
		return ErrLeaveOverlap
	}
	return s.leaves.Create(ctx, l)
}

func (s *Service) GetLeave(ctx context.Context, id uuid.UUID) (*Leave, error) {
	return s.leaves.GetByID(ctx, id)
}

// ApproveLeave moves a PENDING leave to APPROVED and, in the same
// transaction, hides the doctor's unbooked slots over the leave range.
// Slots already booked stay booked. The approver is recorded on the
// leave together with any decision notes.
func (s *Service) ApproveLeave(ctx context.Context, id, approverID uuid.UUID, notes string) (*Leave, error) {
	return s.decide(ctx, id, approverID, notes, LeaveApproved)
}

// RejectLeave moves a PENDING leave to REJECTED. The schedule is not
// touched. The decider is recorded the same way an approval is.
func (s *Service) RejectLeave(ctx context.Context, id, approverID uuid.UUID, notes string) (*Leave, error) {
	return s.decide(ctx, id, approverID, notes, LeaveRejected)
}

func (s *Service) decide(ctx context.Context, id, approverID uuid.UUID, notes string, to LeaveStatus) (*Leave, error) {
	if approverID == uuid.Nil {
		return nil, &validation.Error{Violations: []string{"approver_id is required"}}
	}
	l, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != LeavePending {
		return nil, fmt.Errorf("%w: %s leave cannot be %s", ErrInvalidTransition, l.Status, to)
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		now := time.Now()
		l.Status = to
		l.ApprovedBy = &approverID
		l.ApprovalNotes = notes
		l.DecidedAt = &now
		if err := s.leaves.Update(ctx, l); err != nil {
			return err
		}
		if to == LeaveApproved {
			if _, err := s.suppressor.SuppressRange(ctx, l.DoctorID, l.StartDate, l.EndDate); err != nil {
				return fmt.Errorf("suppress slots for approved leave: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CancelLeave withdraws a PENDING or APPROVED leave. Cancelling an
// APPROVED leave brings suppressed slots back, except on dates still
// covered by another approved leave or a negative override.
func (s *Service) CancelLeave(ctx context.Context, id uuid.UUID) (*Leave, error) {
	l, err := s.leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != LeavePending && l.Status != LeaveApproved {
		return nil, fmt.Errorf("%w: %s leave cannot be cancelled", ErrInvalidTransition, l.Status)
	}
	wasApproved := l.Status == LeaveApproved

	err = s.tx(ctx, func(ctx context.Context) error {
		l.Status = LeaveCancelled
		if err := s.leaves.Update(ctx, l); err != nil {
			return err
		}
		if wasApproved {
			if _, err := s.suppressor.RestoreRange(ctx, l.DoctorID, l.StartDate, l.EndDate); err != nil {
				return fmt.Errorf("restore slots for cancelled leave: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListLeavesByDoctor(ctx context.Context, doctorID uuid.UUID, status LeaveStatus, limit, offset int) ([]*Leave, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, &validation.Error{Violations: []string{fmt.Sprintf("invalid status filter %q", status)}}
	}
	return s.leaves.ListByDoctor(ctx, doctorID, status, limit, offset)
}

func (s *Service) ListPendingLeaves(ctx context.Context, limit, offset int) ([]*Leave, int, error) {
	return s.leaves.ListPending(ctx, limit, offset)
}

// CreateOverride records a single-date exception. A negative override
// immediately hides that date's unbooked slots; a positive one restores
// previously hidden slots when nothing else suppresses the date.
func (s *Service) CreateOverride(ctx context.Context, o *Override) error {
	o.Date = calendar.DateOnly(o.Date)
	if err := o.Validate(); err != nil {
		return err
	}

	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.overrides.Create(ctx, o); err != nil {
			return err
		}
		if o.Available {
			if _, err := s.suppressor.RestoreDate(ctx, o.DoctorID, o.Date); err != nil {
				return fmt.Errorf("restore slots for positive override: %w", err)
			}
			return nil
		}
		if _, err := s.suppressor.SuppressDate(ctx, o.DoctorID, o.Date); err != nil {
			return fmt.Errorf("suppress slots for negative override: %w", err)
		}
		return nil
	})
}

func (s *Service) GetOverride(ctx context.Context, id uuid.UUID) (*Override, error) {
	return s.overrides.GetByID(ctx, id)
}

// DeleteOverride removes the exception. Removing a negative override
// restores the date's slots unless another suppressor still covers it.
func (s *Service) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	o, err := s.overrides.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.overrides.Delete(ctx, o.ID); err != nil {
			return err
		}
		if !o.Available {
			if _, err := s.suppressor.RestoreDate(ctx, o.DoctorID, o.Date); err != nil {
				return fmt.Errorf("restore slots for removed override: %w", err)
			}
		}
		return nil
	})
}

func (s *Service) ListOverrides(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Override, int, error) {
	return s.overrides.ListByDoctor(ctx, doctorID, limit, offset)
}

// UnavailableDates returns the dates in [from, to] on which the doctor
// must not be scheduled: approved leave days and negative override days.
// Keys are formatted as YYYY-MM-DD.
func (s *Service) UnavailableDates(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]bool, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	out := make(map[string]bool)

	leaves, err := s.leaves.ListApprovedOverlapping(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list approved leaves: %w", err)
	}
	for _, l := range leaves {
		start, end := calendar.DateOnly(l.StartDate), calendar.DateOnly(l.EndDate)
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		_ = calendar.EachDay(start, end, func(d time.Time) error {
			out[calendar.FormatDate(d)] = true
			return nil
		})
	}

	overrides, err := s.overrides.ListInRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	for _, o := range overrides {
		if !o.Available {
			out[calendar.FormatDate(o.Date)] = true
		}
	}
	return out, nil
}
