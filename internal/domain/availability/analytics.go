package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

// WeeklySchedule assembles seven consecutive days of the doctor's
// schedule starting at the given date: the shift templates in force,
// the slot counts already materialized, and whether the day is blocked
// by an absence.
func (s *Service) WeeklySchedule(ctx context.Context, doctorID uuid.UUID, start time.Time) ([]DaySchedule, error) {
	start = calendar.DateOnly(start)
	end := start.AddDate(0, 0, 6)

	templates, err := s.shifts.TemplatesByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	byWeekday := make(map[time.Weekday][]*ShiftTemplate)
	for _, t := range templates {
		byWeekday[t.Weekday] = append(byWeekday[t.Weekday], t)
	}

	counts, err := s.slots.CountsByDate(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	unavailable, err := s.absences.UnavailableDates(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}

	days := make([]DaySchedule, 0, 7)
	_ = calendar.EachDay(start, end, func(d time.Time) error {
		key := calendar.FormatDate(d)
		shifts := byWeekday[d.Weekday()]
		c := counts[key]
		days = append(days, DaySchedule{
			Date:        key,
			Weekday:     d.Weekday(),
			Shifts:      shifts,
			ShiftCount:  len(shifts),
			TotalSlots:  c.Total,
			Available:   c.Available,
			Booked:      c.Booked,
			Unavailable: unavailable[key],
		})
		return nil
	})
	return days, nil
}

// Utilization aggregates a doctor's booking activity over an inclusive
// date range. BookingRate is a percentage; zero slots yield zero.
func (s *Service) Utilization(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Utilization, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	var ck validation.Check
	ck.Require(!to.Before(from), "to must not precede from")
	if err := ck.Err(); err != nil {
		return nil, err
	}

	c, err := s.slots.Counts(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	u := &Utilization{
		DoctorID:    doctorID,
		From:        calendar.FormatDate(from),
		To:          calendar.FormatDate(to),
		TotalSlots:  c.Total,
		BookedSlots: c.Booked,
		OpenSlots:   c.Available,
		WorkingDays: c.Days,
	}
	if c.Total > 0 {
		u.BookingRate = float64(c.Booked) / float64(c.Total) * 100
	}
	return u, nil
}
