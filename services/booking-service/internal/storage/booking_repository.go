package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
	"github.com/turnohq/turnoline/services/booking-service/internal/model"
)

const appointmentColumns = `id, barber_id, customer_name, customer_phone, service_name,
	start_at, end_at, status, cancelled_at, COALESCE(cancel_reason, ''), created_at`

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.BarberID,
		&a.CustomerName,
		&a.CustomerPhone,
		&a.ServiceName,
		&a.StartAt,
		&a.EndAt,
		&a.Status,
		&a.CancelledAt,
		&a.CancelReason,
		&a.CreatedAt,
	)
	return a, err
}

// Create inserts an appointment inside tx. An exclusion constraint on
// (barber_id, buffered time range) rejects racing inserts for the same
// slot; a partial unique index caps customers at one active appointment
// per business day.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(barber_id, customer_name, customer_phone, service_name, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.BarberID, a.CustomerName, a.CustomerPhone, a.ServiceName, a.StartAt, a.EndAt, a.Status).Scan(&id)
	if err != nil {
		return "", classifyWriteError(err)
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	a, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrAppointmentNotFound
	}
	if err != nil {
		return model.Appointment{}, classifyWriteError(err)
	}
	return a, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrAppointmentNotFound
	}
	if err != nil {
		return time.Time{}, classifyWriteError(err)
	}
	return cancelledAt, nil
}

// BookedIntervals returns the occupied time ranges for a barber within
// [start, end). Cancelled appointments do not block slots.
func (r *BookingRepository) BookedIntervals(ctx context.Context, barberID string, start, end time.Time) ([]conflict.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at, end_at
		FROM appointments
		WHERE barber_id = $1
			AND status IN ('scheduled', 'in_service')
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, barberID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []conflict.Interval
	for rows.Next() {
		var iv conflict.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// HasActiveForDay reports whether the customer already holds a
// non-cancelled appointment starting within [dayStart, dayEnd).
func (r *BookingRepository) HasActiveForDay(ctx context.Context, customerPhone string, dayStart, dayEnd time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE customer_phone = $1
				AND status IN ('scheduled', 'in_service')
				AND start_at >= $2
				AND start_at < $3
		)
	`, customerPhone, dayStart, dayEnd).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) ListForDay(ctx context.Context, dayStart, dayEnd time.Time, barberID string) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE start_at >= $1 AND start_at < $2
	`
	args := []any{dayStart, dayEnd}
	if barberID != "" {
		query += ` AND barber_id = $3`
		args = append(args, barberID)
	}
	query += ` ORDER BY start_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
