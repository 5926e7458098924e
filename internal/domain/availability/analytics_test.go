package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/validation"
)

func TestWeeklySchedule(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	leaveDay := calendar.FormatDate(mon.AddDate(0, 0, 2))
	absences := &mockAbsenceSource{dates: map[string]bool{leaveDay: true}}
	svc := newTestService(repo, newMockShiftSource(tmpl), absences)

	if _, err := svc.GenerateSlots(context.Background(), tmpl.ID, mon, mon.AddDate(0, 0, 6), 0); err != nil {
		t.Fatalf("generate: %v", err)
	}
	open, err := svc.AvailableSlots(context.Background(), tmpl.DoctorID, mon)
	if err != nil || len(open) == 0 {
		t.Fatalf("AvailableSlots: %v, %d slots", err, len(open))
	}
	if _, err := svc.BookSlot(context.Background(), open[0].ID, uuid.New(), ""); err != nil {
		t.Fatalf("book: %v", err)
	}

	days, err := svc.WeeklySchedule(context.Background(), tmpl.DoctorID, mon)
	if err != nil {
		t.Fatalf("WeeklySchedule: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("len(days) = %d, want 7", len(days))
	}

	monday := days[0]
	if monday.Weekday != time.Monday || monday.ShiftCount != 1 {
		t.Fatalf("monday = %+v, want one shift on Monday", monday)
	}
	if monday.TotalSlots != 6 || monday.Booked != 1 || monday.Available != 5 {
		t.Fatalf("monday counts = %+v, want 6 total / 1 booked / 5 available", monday)
	}

	wednesday := days[2]
	if !wednesday.Unavailable {
		t.Fatalf("wednesday %s should be flagged unavailable", wednesday.Date)
	}

	tuesday := days[1]
	if tuesday.ShiftCount != 0 || tuesday.TotalSlots != 0 {
		t.Fatalf("tuesday = %+v, want an empty day", tuesday)
	}
}

func TestUtilization(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)

	if _, err := svc.GenerateSlots(context.Background(), tmpl.ID, mon, mon, 0); err != nil {
		t.Fatalf("generate: %v", err)
	}
	open, err := svc.AvailableSlots(context.Background(), tmpl.DoctorID, mon)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	for _, s := range open[:3] {
		if _, err := svc.BookSlot(context.Background(), s.ID, uuid.New(), ""); err != nil {
			t.Fatalf("book: %v", err)
		}
	}

	u, err := svc.Utilization(context.Background(), tmpl.DoctorID, mon, mon.AddDate(0, 0, 6))
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.TotalSlots != 6 || u.BookedSlots != 3 || u.OpenSlots != 3 {
		t.Fatalf("utilization = %+v, want 6 total / 3 booked / 3 open", u)
	}
	if u.WorkingDays != 1 {
		t.Fatalf("working days = %d, want 1", u.WorkingDays)
	}
	if u.BookingRate != 50 {
		t.Fatalf("booking rate = %v, want 50", u.BookingRate)
	}
}

func TestUtilization_NoSlots(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	svc := newTestService(newMockSlotRepo(), newMockShiftSource(tmpl), nil)

	u, err := svc.Utilization(context.Background(), tmpl.DoctorID, mon, mon)
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.TotalSlots != 0 || u.BookingRate != 0 {
		t.Fatalf("empty range should yield zeroes, got %+v", u)
	}
}

func TestUtilization_InvalidRange(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	svc := newTestService(newMockSlotRepo(), newMockShiftSource(tmpl), nil)

	_, err := svc.Utilization(context.Background(), tmpl.DoctorID, mon, mon.AddDate(0, 0, -1))
	if !validation.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
