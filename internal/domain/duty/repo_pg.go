package duty

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

func clock(min int) calendar.ClockTime { return calendar.ClockTime(min) }

func clockPtr(min *int) *calendar.ClockTime {
	if min == nil {
		return nil
	}
	c := calendar.ClockTime(*min)
	return &c
}

func intPtr(c *calendar.ClockTime) *int {
	if c == nil {
		return nil
	}
	v := int(*c)
	return &v
}

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Duty Repository ===========

type dutyRepoPG struct{ pool *pgxpool.Pool }

func NewDutyRepoPG(pool *pgxpool.Pool) DutyRepository { return &dutyRepoPG{pool: pool} }

func (r *dutyRepoPG) conn(ctx context.Context) queryable {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const dutyCols = `id, doctor_id, hospital_id, department_id, duty_kind, start_date, end_date, active, notes, created_at, updated_at`

func (r *dutyRepoPG) scanDuty(row pgx.Row) (*Duty, error) {
	var d Duty
	var kind string
	err := row.Scan(&d.ID, &d.DoctorID, &d.HospitalID, &d.DepartmentID, &kind,
		&d.StartDate, &d.EndDate, &d.Active, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	d.Kind = DutyKind(kind)
	return &d, err
}

func (r *dutyRepoPG) Create(ctx context.Context, d *Duty) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO duty (id, doctor_id, hospital_id, department_id, duty_kind, start_date, end_date, active, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.DoctorID, d.HospitalID, d.DepartmentID, string(d.Kind),
		d.StartDate, d.EndDate, d.Active, d.Notes)
	return err
}

func (r *dutyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Duty, error) {
	return r.scanDuty(r.conn(ctx).QueryRow(ctx, `SELECT `+dutyCols+` FROM duty WHERE id = $1`, id))
}

func (r *dutyRepoPG) Update(ctx context.Context, d *Duty) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE duty SET department_id=$2, duty_kind=$3, start_date=$4, end_date=$5,
			active=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.DepartmentID, string(d.Kind), d.StartDate, d.EndDate, d.Active, d.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dutyRepoPG) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Duty, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM duty WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+dutyCols+` FROM duty WHERE `+where+` ORDER BY start_date DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Duty
	for rows.Next() {
		d, err := r.scanDuty(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *dutyRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Duty, int, error) {
	return r.list(ctx, `doctor_id = $1`, doctorID, limit, offset)
}

func (r *dutyRepoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Duty, int, error) {
	return r.list(ctx, `hospital_id = $1`, hospitalID, limit, offset)
}

func (r *dutyRepoPG) ListActive(ctx context.Context) ([]*Duty, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+dutyCols+` FROM duty
		WHERE active AND start_date <= CURRENT_DATE
		  AND (end_date IS NULL OR end_date >= CURRENT_DATE)
		ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Duty
	for rows.Next() {
		d, err := r.scanDuty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// =========== Shift Repository ===========

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository { return &shiftRepoPG{pool: pool} }

func (r *shiftRepoPG) conn(ctx context.Context) queryable {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const shiftCols = `id, duty_id, weekday, start_min, end_min, break_start_min, break_end_min,
	default_duration_min, max_concurrent_bookings, active, created_at, updated_at`

func (r *shiftRepoPG) scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	var weekday int
	var startMin, endMin int
	var breakStart, breakEnd *int
	err := row.Scan(&s.ID, &s.DutyID, &weekday, &startMin, &endMin, &breakStart, &breakEnd,
		&s.DefaultDurationMin, &s.MaxConcurrentBookings, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Weekday = time.Weekday(weekday)
	s.StartTime = clock(startMin)
	s.EndTime = clock(endMin)
	s.BreakStart = clockPtr(breakStart)
	s.BreakEnd = clockPtr(breakEnd)
	return &s, nil
}

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shift (id, duty_id, weekday, start_min, end_min, break_start_min, break_end_min,
			default_duration_min, max_concurrent_bookings, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.DutyID, int(s.Weekday), int(s.StartTime), int(s.EndTime),
		intPtr(s.BreakStart), intPtr(s.BreakEnd), s.DefaultDurationMin,
		s.MaxConcurrentBookings, s.Active)
	return err
}

// CreateBatch inserts all shifts in one transaction so a bulk create is
// all-or-nothing.
func (r *shiftRepoPG) CreateBatch(ctx context.Context, shifts []*Shift) error {
	run := func(ctx context.Context) error {
		for _, s := range shifts {
			if err := r.Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
	if db.TxFromContext(ctx) != nil {
		return run(ctx)
	}
	return db.WithTx(ctx, r.pool, run)
}

func (r *shiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	return r.scanShift(r.conn(ctx).QueryRow(ctx, `SELECT `+shiftCols+` FROM shift WHERE id = $1`, id))
}

func (r *shiftRepoPG) Update(ctx context.Context, s *Shift) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE shift SET weekday=$2, start_min=$3, end_min=$4, break_start_min=$5,
			break_end_min=$6, default_duration_min=$7, max_concurrent_bookings=$8,
			active=$9, updated_at=NOW()
		WHERE id = $1`,
		s.ID, int(s.Weekday), int(s.StartTime), int(s.EndTime),
		intPtr(s.BreakStart), intPtr(s.BreakEnd), s.DefaultDurationMin,
		s.MaxConcurrentBookings, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM shift WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shiftRepoPG) ListByDuty(ctx context.Context, dutyID uuid.UUID) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+shiftCols+` FROM shift WHERE duty_id = $1 ORDER BY weekday, start_min`, dutyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *shiftRepoPG) ListForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.duty_id, s.weekday, s.start_min, s.end_min, s.break_start_min,
			s.break_end_min, s.default_duration_min, s.max_concurrent_bookings,
			s.active, s.created_at, s.updated_at
		FROM shift s
		JOIN duty d ON d.id = s.duty_id
		WHERE d.doctor_id = $1
		  AND d.active
		  AND s.active
		  AND d.start_date <= $2
		  AND (d.end_date IS NULL OR d.end_date >= $2)
		  AND s.weekday = $3
		ORDER BY s.start_min`,
		doctorID, date, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *shiftRepoPG) collect(rows pgx.Rows) ([]*Shift, error) {
	var items []*Shift
	for rows.Next() {
		s, err := r.scanShift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
