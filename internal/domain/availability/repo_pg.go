package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/pkg/calendar"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

// inTx runs fn in the caller's transaction when one is bound to ctx,
// otherwise opens its own.
func (r *slotRepoPG) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, r.pool, fn)
}

const slotCols = `id, shift_id, doctor_id, slot_date, start_min, end_min,
	available, booked, booked_by, booking_ref, created_at, updated_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var startMin, endMin int
	err := row.Scan(&s.ID, &s.ShiftID, &s.DoctorID, &s.Date, &startMin, &endMin,
		&s.Available, &s.Booked, &s.BookedBy, &s.BookingRef, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.StartTime = calendar.ClockTime(startMin)
	s.EndTime = calendar.ClockTime(endMin)
	return &s, nil
}

func (r *slotRepoPG) BulkInsert(ctx context.Context, slots []*Slot) (int64, error) {
	var inserted int64
	err := r.inTx(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)
		for _, s := range slots {
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			tag, err := q.Exec(ctx, `
				INSERT INTO availability_slot
					(id, shift_id, doctor_id, slot_date, start_min, end_min, available)
				VALUES ($1,$2,$3,$4,$5,$6,$7)
				ON CONFLICT (shift_id, slot_date, start_min) DO NOTHING`,
				s.ID, s.ShiftID, s.DoctorID, s.Date, int(s.StartTime), int(s.EndTime), s.Available)
			if err != nil {
				return err
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM availability_slot WHERE id = $1`, id))
}

func (r *slotRepoPG) ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM availability_slot
		WHERE doctor_id = $1 AND slot_date = $2 AND available AND NOT booked
		ORDER BY start_min`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *slotRepoPG) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM availability_slot
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, start_min`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *slotRepoPG) ListBookedBy(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Slot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM availability_slot WHERE booked AND booked_by = $1`,
		patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM availability_slot
		WHERE booked AND booked_by = $1
		ORDER BY slot_date, start_min LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

// Book locks the slot row, re-checks its state, and claims it. The row
// lock makes concurrent bookings of the same slot serialize; exactly one
// caller sees the slot still bookable.
func (r *slotRepoPG) Book(ctx context.Context, slotID, patientID uuid.UUID, bookingRef string) (*Slot, error) {
	var out *Slot
	err := r.inTx(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)
		s, err := r.scanSlot(q.QueryRow(ctx,
			`SELECT `+slotCols+` FROM availability_slot WHERE id = $1 FOR UPDATE`, slotID))
		if errors.Is(err, ErrNotFound) {
			return ErrSlotUnavailable
		}
		if err != nil {
			return err
		}
		if !s.Bookable() {
			return ErrSlotUnavailable
		}
		if _, err := q.Exec(ctx, `
			UPDATE availability_slot
			SET booked = TRUE, booked_by = $2, booking_ref = $3, updated_at = NOW()
			WHERE id = $1`, slotID, patientID, bookingRef); err != nil {
			return err
		}
		s.Booked = true
		s.BookedBy = &patientID
		s.BookingRef = &bookingRef
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel releases the booking and recomputes the slot's availability
// from the doctor's current leaves and overrides. A slot booked before
// a leave was approved must not resurface on the leave-covered date.
func (r *slotRepoPG) Cancel(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	var out *Slot
	err := r.inTx(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)
		s, err := r.scanSlot(q.QueryRow(ctx,
			`SELECT `+slotCols+` FROM availability_slot WHERE id = $1 FOR UPDATE`, slotID))
		if err != nil {
			return err
		}
		if !s.Booked {
			return ErrNotBooked
		}
		if err := q.QueryRow(ctx, `
			UPDATE availability_slot s
			SET booked = FALSE, booked_by = NULL, booking_ref = NULL,
			    available = NOT EXISTS (
				SELECT 1 FROM doctor_leave l
				WHERE l.doctor_id = s.doctor_id
				  AND l.status = 'APPROVED'
				  AND l.start_date <= s.slot_date
				  AND l.end_date >= s.slot_date
			    ) AND NOT EXISTS (
				SELECT 1 FROM schedule_override o
				WHERE o.doctor_id = s.doctor_id
				  AND o.override_date = s.slot_date
				  AND NOT o.available
			    ),
			    updated_at = NOW()
			WHERE s.id = $1
			RETURNING s.available`, slotID).Scan(&s.Available); err != nil {
			return err
		}
		s.Booked = false
		s.BookedBy = nil
		s.BookingRef = nil
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *slotRepoPG) SuppressRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot
		SET available = FALSE, updated_at = NOW()
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		  AND available AND NOT booked`, doctorID, from, to)
	return tag.RowsAffected(), err
}

func (r *slotRepoPG) SuppressDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error) {
	return r.SuppressRange(ctx, doctorID, date, date)
}

// RestoreRange re-opens suppressed slots, skipping any date still
// covered by an approved leave or a negative override.
func (r *slotRepoPG) RestoreRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot s
		SET available = TRUE, updated_at = NOW()
		WHERE s.doctor_id = $1 AND s.slot_date BETWEEN $2 AND $3
		  AND NOT s.available AND NOT s.booked
		  AND NOT EXISTS (
			SELECT 1 FROM doctor_leave l
			WHERE l.doctor_id = s.doctor_id
			  AND l.status = 'APPROVED'
			  AND l.start_date <= s.slot_date
			  AND l.end_date >= s.slot_date
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM schedule_override o
			WHERE o.doctor_id = s.doctor_id
			  AND o.override_date = s.slot_date
			  AND NOT o.available
		  )`, doctorID, from, to)
	return tag.RowsAffected(), err
}

func (r *slotRepoPG) RestoreDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error) {
	return r.RestoreRange(ctx, doctorID, date, date)
}

func (r *slotRepoPG) DeleteFutureUnbookedByShift(ctx context.Context, shiftID uuid.UUID, from time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM availability_slot
		WHERE shift_id = $1 AND slot_date >= $2 AND NOT booked`, shiftID, from)
	return tag.RowsAffected(), err
}

func (r *slotRepoPG) DeleteFutureUnbookedByDuty(ctx context.Context, dutyID uuid.UUID, from time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM availability_slot s
		USING shift sh
		WHERE s.shift_id = sh.id AND sh.duty_id = $1
		  AND s.slot_date >= $2 AND NOT s.booked`, dutyID, from)
	return tag.RowsAffected(), err
}

func (r *slotRepoPG) DeleteUnbookedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM availability_slot
		WHERE slot_date < $1 AND NOT booked`, cutoff)
	return tag.RowsAffected(), err
}

func (r *slotRepoPG) Counts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (SlotCounts, error) {
	var c SlotCounts
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE booked),
		       COUNT(*) FILTER (WHERE available AND NOT booked),
		       COUNT(DISTINCT slot_date)
		FROM availability_slot
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3`,
		doctorID, from, to).Scan(&c.Total, &c.Booked, &c.Available, &c.Days)
	return c, err
}

func (r *slotRepoPG) CountsByDate(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (map[string]SlotCounts, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT slot_date,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE booked),
		       COUNT(*) FILTER (WHERE available AND NOT booked)
		FROM availability_slot
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		GROUP BY slot_date`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]SlotCounts)
	for rows.Next() {
		var d time.Time
		var c SlotCounts
		if err := rows.Scan(&d, &c.Total, &c.Booked, &c.Available); err != nil {
			return nil, err
		}
		c.Days = 1
		out[calendar.FormatDate(d)] = c
	}
	return out, rows.Err()
}

func (r *slotRepoPG) collect(rows pgx.Rows) ([]*Slot, error) {
	var items []*Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
