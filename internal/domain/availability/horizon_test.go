package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestHorizonEngine_RunOnce(t *testing.T) {
	// Anchor the run on the fixed Monday so slot counts are stable.
	now := mon

	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)

	// A stale unbooked slot past the retention cutoff and a stale booked
	// one that must survive pruning.
	stale := mon.AddDate(0, 0, -10)
	patient := uuid.New()
	seed := []*Slot{
		{ShiftID: &tmpl.ID, DoctorID: tmpl.DoctorID, Date: stale, StartTime: clock("09:00"), EndTime: clock("09:30"), Available: true},
		{ShiftID: &tmpl.ID, DoctorID: tmpl.DoctorID, Date: stale, StartTime: clock("09:30"), EndTime: clock("10:00"), Available: true, Booked: true, BookedBy: &patient},
	}
	if _, err := repo.BulkInsert(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := NewHorizonEngine(svc, 14, 7, time.Hour, zerolog.Nop())
	generated, pruned, err := engine.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	// 14-day horizon starting Monday covers two Mondays at 6 slots each.
	if generated != 12 {
		t.Fatalf("generated = %d, want 12", generated)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1 (booked slot survives)", pruned)
	}

	booked, _, err := svc.PatientBookings(context.Background(), patient, 10, 0)
	if err != nil {
		t.Fatalf("PatientBookings: %v", err)
	}
	if len(booked) != 1 {
		t.Fatalf("stale booked slot was pruned")
	}
}

func TestHorizonEngine_RunOnce_Idempotent(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)
	engine := NewHorizonEngine(svc, 14, 7, time.Hour, zerolog.Nop())

	if _, _, err := engine.RunOnce(context.Background(), mon); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	generated, _, err := engine.RunOnce(context.Background(), mon)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if generated != 0 {
		t.Fatalf("second pass generated = %d, want 0", generated)
	}
}

func TestHorizonEngine_StartStopsOnCancel(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)
	engine := NewHorizonEngine(svc, 7, 7, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	// The immediate pass materialized the coming week's Monday.
	slots, err := repo.ListByDoctorRange(context.Background(), tmpl.DoctorID, todayUTC(), todayUTC().AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListByDoctorRange: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("engine pass produced no slots")
	}
}

func todayUTC() time.Time {
	n := time.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
