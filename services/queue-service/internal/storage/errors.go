package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrTurnNotFound      = errors.New("turn not found")
	ErrInvalidState      = errors.New("invalid turn state")
	ErrDailyLimitReached = errors.New("daily turn limit reached")
	ErrActiveTurnExists  = errors.New("customer already has an active turn today")
	// ErrAuthExpired marks a write rejected because the database session
	// credentials lapsed. Callers force a session refresh instead of
	// retrying the write.
	ErrAuthExpired = errors.New("auth session expired")
)

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrTurnNotFound)
}

const (
	turnCodeConstraint   = "turns_business_day_code_key"
	activeTurnConstraint = "turns_one_active_per_customer_day"
)

// IsCodeConflict reports a unique violation on the per-day turn code
// index, the only unique violation worth retrying with the next code.
// Other 23505s, like a second active turn racing past the pre-check,
// would collide again on every retry and go to classifyWriteError.
func IsCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == turnCodeConstraint
}

func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 28000 invalid_authorization_specification, 28P01 invalid_password.
		if pgErr.Code == "28000" || pgErr.Code == "28P01" {
			return errors.Join(ErrAuthExpired, err)
		}
		if pgErr.Code == "23505" && pgErr.ConstraintName == activeTurnConstraint {
			return errors.Join(ErrActiveTurnExists, err)
		}
	}
	return err
}
