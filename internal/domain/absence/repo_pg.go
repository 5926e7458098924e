package absence

import (
	"context"
	"errors"
	"strconv"
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

const uniqueViolation = "23505"

// =========== Leave Repository ===========

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

func (r *leaveRepoPG) conn(ctx context.Context) queryable {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const leaveCols = `id, doctor_id, leave_kind, start_date, end_date, reason, status,
	approved_by, approval_notes, decided_at, created_at, updated_at`

func (r *leaveRepoPG) scanLeave(row pgx.Row) (*Leave, error) {
	var l Leave
	var status string
	err := row.Scan(&l.ID, &l.DoctorID, &l.Kind, &l.StartDate, &l.EndDate, &l.Reason,
		&status, &l.ApprovedBy, &l.ApprovalNotes, &l.DecidedAt, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = LeaveStatus(status)
	return &l, nil
}

func (r *leaveRepoPG) Create(ctx context.Context, l *Leave) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_leave (id, doctor_id, leave_kind, start_date, end_date, reason, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ID, l.DoctorID, l.Kind, l.StartDate, l.EndDate, l.Reason, string(l.Status))
	return err
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Leave, error) {
	return r.scanLeave(r.conn(ctx).QueryRow(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave WHERE id = $1`, id))
}

func (r *leaveRepoPG) Update(ctx context.Context, l *Leave) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_leave SET start_date=$2, end_date=$3, reason=$4, status=$5,
			approved_by=$6, approval_notes=$7, decided_at=$8, updated_at=NOW()
		WHERE id = $1`,
		l.ID, l.StartDate, l.EndDate, l.Reason, string(l.Status),
		l.ApprovedBy, l.ApprovalNotes, l.DecidedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *leaveRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status LeaveStatus, limit, offset int) ([]*Leave, int, error) {
	where := `doctor_id = $1`
	args := []interface{}{doctorID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, string(status))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_leave WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave WHERE `+where+
			` ORDER BY start_date DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *leaveRepoPG) ListPending(ctx context.Context, limit, offset int) ([]*Leave, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_leave WHERE status = 'PENDING'`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave WHERE status = 'PENDING'
		 ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *leaveRepoPG) HasBlockingOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_leave
			WHERE doctor_id = $1
			  AND status IN ('PENDING','APPROVED')
			  AND start_date <= $3
			  AND end_date >= $2
			  AND id <> $4
		)`, doctorID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (r *leaveRepoPG) ListApprovedOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Leave, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+leaveCols+` FROM doctor_leave
		WHERE doctor_id = $1
		  AND status = 'APPROVED'
		  AND start_date <= $3
		  AND end_date >= $2
		ORDER BY start_date`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *leaveRepoPG) collect(rows pgx.Rows) ([]*Leave, error) {
	var items []*Leave
	for rows.Next() {
		l, err := r.scanLeave(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// =========== Override Repository ===========

type overrideRepoPG struct{ pool *pgxpool.Pool }

func NewOverrideRepoPG(pool *pgxpool.Pool) OverrideRepository { return &overrideRepoPG{pool: pool} }

func (r *overrideRepoPG) conn(ctx context.Context) queryable {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const overrideCols = `id, doctor_id, override_date, available, start_min, end_min, reason, created_by, created_at, updated_at`

func (r *overrideRepoPG) scanOverride(row pgx.Row) (*Override, error) {
	var o Override
	var startMin, endMin *int
	err := row.Scan(&o.ID, &o.DoctorID, &o.Date, &o.Available, &startMin, &endMin,
		&o.Reason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.StartTime = clockPtr(startMin)
	o.EndTime = clockPtr(endMin)
	return &o, nil
}

func (r *overrideRepoPG) Create(ctx context.Context, o *Override) error {
	o.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO schedule_override (id, doctor_id, override_date, available, start_min, end_min, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.DoctorID, o.Date, o.Available, intPtr(o.StartTime), intPtr(o.EndTime), o.Reason, o.CreatedBy)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateOverride
	}
	return err
}

func (r *overrideRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Override, error) {
	return r.scanOverride(r.conn(ctx).QueryRow(ctx,
		`SELECT `+overrideCols+` FROM schedule_override WHERE id = $1`, id))
}

func (r *overrideRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_override WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *overrideRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Override, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM schedule_override WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+overrideCols+` FROM schedule_override WHERE doctor_id = $1
		 ORDER BY override_date DESC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *overrideRepoPG) ListInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Override, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+overrideCols+` FROM schedule_override
		 WHERE doctor_id = $1 AND override_date BETWEEN $2 AND $3
		 ORDER BY override_date`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *overrideRepoPG) collect(rows pgx.Rows) ([]*Override, error) {
	var items []*Override
	for rows.Next() {
		o, err := r.scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

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
