package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSlotUnavailable reports a booking race: another appointment won the
	// slot between the availability read and the insert.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrDailyBookingExists reports that the customer already holds an
	// active appointment on that business day.
	ErrDailyBookingExists = errors.New("customer already has an appointment that day")

	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAuthExpired marks database failures caused by an expired session.
	// Callers must refresh credentials rather than retry blindly.
	ErrAuthExpired = errors.New("authorization expired")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		return ErrSlotUnavailable
	case "28000", "28P01":
		return errors.Join(ErrAuthExpired, err)
	}
	if pgErr.Code == "23505" && pgErr.ConstraintName == "appointments_one_active_per_customer_day" {
		return ErrDailyBookingExists
	}
	return err
}
