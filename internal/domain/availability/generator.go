package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

// MaxGenerationDays caps a single generation request. Longer horizons
// are produced incrementally by the horizon engine.
const MaxGenerationDays = 60

const minSlotMinutes = 5

// Service generates slots from shift templates and runs the booking
// ledger over them.
type Service struct {
	slots              SlotRepository
	shifts             ShiftSource
	absences           AbsenceSource
	defaultDurationMin int
	log                zerolog.Logger
}

func NewService(slots SlotRepository, shifts ShiftSource, absences AbsenceSource, defaultDurationMin int, logger zerolog.Logger) *Service {
	return &Service{
		slots:              slots,
		shifts:             shifts,
		absences:           absences,
		defaultDurationMin: defaultDurationMin,
		log:                logger,
	}
}

// GenerateSlots materializes slots for one shift over an inclusive date
// range. Existing slots are left untouched, so the call is idempotent;
// the returned count covers newly inserted rows only. A durationMin of
// zero falls back to the shift's default, then the service default.
func (s *Service) GenerateSlots(ctx context.Context, shiftID uuid.UUID, from, to time.Time, durationMin int) (int64, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	var ck validation.Check
	ck.Require(!to.Before(from), "to must not precede from")
	if err := ck.Err(); err != nil {
		return 0, err
	}
	if calendar.DaysBetween(from, to) > MaxGenerationDays {
		return 0, fmt.Errorf("%w: %d days requested, limit is %d",
			ErrRangeTooLarge, calendar.DaysBetween(from, to), MaxGenerationDays)
	}

	tmpl, err := s.shifts.TemplateByID(ctx, shiftID)
	if err != nil {
		return 0, err
	}
	dur := s.resolveDuration(tmpl, durationMin)
	if dur < minSlotMinutes {
		return 0, &validation.Error{Violations: []string{
			fmt.Sprintf("slot duration must be at least %d minutes", minSlotMinutes),
		}}
	}

	unavailable, err := s.absences.UnavailableDates(ctx, tmpl.DoctorID, from, to)
	if err != nil {
		return 0, err
	}

	batch := buildSlots(tmpl, from, to, dur, unavailable)
	if len(batch) == 0 {
		return 0, nil
	}
	inserted, err := s.slots.BulkInsert(ctx, batch)
	if err != nil {
		return 0, err
	}
	s.log.Info().
		Str("shift_id", shiftID.String()).
		Str("doctor_id", tmpl.DoctorID.String()).
		Str("from", calendar.FormatDate(from)).
		Str("to", calendar.FormatDate(to)).
		Int64("inserted", inserted).
		Int("candidates", len(batch)).
		Msg("slots generated")
	return inserted, nil
}

// GenerateForDoctor runs generation over every active shift the doctor
// holds. Returns the total number of newly inserted slots.
func (s *Service) GenerateForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, durationMin int) (int64, error) {
	templates, err := s.shifts.TemplatesByDoctor(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, t := range templates {
		n, err := s.GenerateSlots(ctx, t.ID, from, to, durationMin)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Service) resolveDuration(tmpl *ShiftTemplate, requested int) int {
	if requested > 0 {
		return requested
	}
	if tmpl.DefaultDurationMin > 0 {
		return tmpl.DefaultDurationMin
	}
	return s.defaultDurationMin
}

// buildSlots walks the date range and tiles the template's working
// windows into slot candidates. Dates on which the doctor is absent
// produce nothing; a break splits the window and tiling resumes at the
// break's end, so partial intervals before the break are dropped.
func buildSlots(tmpl *ShiftTemplate, from, to time.Time, durationMin int, unavailable map[string]bool) []*Slot {
	var out []*Slot
	dur := time.Duration(durationMin) * time.Minute
	shiftID := tmpl.ID
	_ = calendar.EachDay(from, to, func(d time.Time) error {
		if d.Weekday() != tmpl.Weekday || unavailable[calendar.FormatDate(d)] {
			return nil
		}
		for _, win := range tmpl.WorkWindows() {
			for _, slot := range win.Tile(dur) {
				out = append(out, &Slot{
					ShiftID:   &shiftID,
					DoctorID:  tmpl.DoctorID,
					Date:      d,
					StartTime: slot.Start,
					EndTime:   slot.End,
					Available: true,
				})
			}
		}
		return nil
	})
	return out
}
