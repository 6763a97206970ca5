package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/services/queue-service/internal/model"
	"github.com/turnohq/turnoline/services/queue-service/internal/turncode"
)

type TurnRepository struct {
	pool *db.Pool
}

func NewTurnRepository(pool *db.Pool) *TurnRepository {
	return &TurnRepository{pool: pool}
}

func (r *TurnRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const turnColumns = `
	id::text, code, business_day::text, customer_name, customer_phone,
	service_name, status, position, barber_id::text, created_at, started_at`

func scanTurn(row pgx.Row) (model.Turn, error) {
	var t model.Turn
	var barberID *string
	var startedAt *time.Time
	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.BusinessDay,
		&t.CustomerName,
		&t.CustomerPhone,
		&t.ServiceName,
		&t.Status,
		&t.Position,
		&barberID,
		&t.CreatedAt,
		&startedAt,
	)
	if err != nil {
		return model.Turn{}, err
	}
	t.BarberID = barberID
	t.StartedAt = startedAt
	return t, nil
}

func (r *TurnRepository) listByStatus(ctx context.Context, businessDay string, statuses []string, orderBy string) ([]model.Turn, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+turnColumns+`
		FROM turns
		WHERE business_day = $1 AND status = ANY($2)
		ORDER BY `+orderBy, businessDay, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return turns, nil
}

// Snapshot reads the whole queue state for one day: waiting turns in queue
// order and in-service turns by start time.
func (r *TurnRepository) Snapshot(ctx context.Context, businessDay string) (model.Snapshot, error) {
	waiting, err := r.listByStatus(ctx, businessDay, []string{model.StatusWaiting}, "position ASC, created_at ASC")
	if err != nil {
		return model.Snapshot{}, err
	}
	inService, err := r.listByStatus(ctx, businessDay, []string{model.StatusInService}, "started_at ASC NULLS LAST, created_at ASC")
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{BusinessDay: businessDay, Waiting: waiting, InService: inService}, nil
}

// LoadWaiting implements the queueorder store boundary.
func (r *TurnRepository) LoadWaiting(ctx context.Context, businessDay string) ([]model.Turn, error) {
	return r.listByStatus(ctx, businessDay, []string{model.StatusWaiting}, "position ASC, created_at ASC")
}

func (r *TurnRepository) CodesForDay(ctx context.Context, tx pgx.Tx, businessDay string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT code FROM turns WHERE business_day = $1
	`, businessDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *TurnRepository) CountForDay(ctx context.Context, tx pgx.Tx, businessDay string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM turns
		WHERE business_day = $1 AND status <> $2
	`, businessDay, model.StatusCancelled).Scan(&n)
	return n, err
}

func (r *TurnRepository) HasActiveTurn(ctx context.Context, tx pgx.Tx, businessDay, customerPhone string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM turns
			WHERE business_day = $1 AND customer_phone = $2 AND status = ANY($3)
		)
	`, businessDay, customerPhone, []string{model.StatusWaiting, model.StatusInService}).Scan(&exists)
	return exists, err
}

// InsertWithCode inserts a new waiting turn, assigning the next day-scoped
// code. Concurrent inserts race on the (business_day, code) unique index;
// each collision retries with the next sequence number up to
// turncode.MaxAttempts before the letter is declared exhausted. The
// assigned position is MAX(position)+1 inside the same transaction.
func (r *TurnRepository) InsertWithCode(ctx context.Context, tx pgx.Tx, t *model.Turn, day time.Time) (model.Turn, error) {
	codes, err := r.CodesForDay(ctx, tx, t.BusinessDay)
	if err != nil {
		return model.Turn{}, err
	}

	letter := turncode.DayLetter(day)
	seq := turncode.Sequence(turncode.Next(day, codes))
	for attempt := 0; attempt < turncode.MaxAttempts; attempt++ {
		code := turncode.Format(letter, seq)
		inserted, err := r.insertOnce(ctx, tx, t, code)
		if err == nil {
			return inserted, nil
		}
		if IsCodeConflict(err) {
			// Someone claimed this code between our read and write.
			seq++
			continue
		}
		return model.Turn{}, classifyWriteError(err)
	}
	return model.Turn{}, turncode.CodeExhaustedError{Letter: letter, Attempts: turncode.MaxAttempts}
}

func (r *TurnRepository) insertOnce(ctx context.Context, tx pgx.Tx, t *model.Turn, code string) (model.Turn, error) {
	// A savepoint keeps a duplicate-code failure from poisoning the
	// enclosing transaction.
	nested, err := tx.Begin(ctx)
	if err != nil {
		return model.Turn{}, err
	}
	row := nested.QueryRow(ctx, `
		INSERT INTO turns
			(code, business_day, customer_name, customer_phone, service_name, status, position, barber_id)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM turns WHERE business_day = $2 AND status = $6),
			$7)
		RETURNING `+turnColumns,
		code, t.BusinessDay, t.CustomerName, t.CustomerPhone, t.ServiceName, model.StatusWaiting, t.BarberID)
	inserted, err := scanTurn(row)
	if err != nil {
		_ = nested.Rollback(ctx)
		return model.Turn{}, err
	}
	if err := nested.Commit(ctx); err != nil {
		return model.Turn{}, err
	}
	return inserted, nil
}

// ApplyOrder persists a full set of waiting positions in one transaction.
// A row that is no longer waiting fails the whole batch.
func (r *TurnRepository) ApplyOrder(ctx context.Context, businessDay string, positions map[string]int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return classifyWriteError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for id, pos := range positions {
		tag, err := tx.Exec(ctx, `
			UPDATE turns
			SET position = $3
			WHERE id = $1 AND business_day = $2 AND status = $4
		`, id, businessDay, pos, model.StatusWaiting)
		if err != nil {
			return classifyWriteError(err)
		}
		if tag.RowsAffected() != 1 {
			return ErrInvalidState
		}
	}
	return tx.Commit(ctx)
}

func (r *TurnRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Turn, error) {
	t, err := scanTurn(tx.QueryRow(ctx, `
		SELECT `+turnColumns+`
		FROM turns
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Turn{}, ErrTurnNotFound
	}
	return t, err
}

// StartService moves a waiting turn to in-service and stamps started_at.
func (r *TurnRepository) StartService(ctx context.Context, tx pgx.Tx, id string, barberID *string) (model.Turn, error) {
	current, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Turn{}, err
	}
	if !model.ValidTransition("call_next", current.Status) {
		return model.Turn{}, ErrInvalidState
	}
	t, err := scanTurn(tx.QueryRow(ctx, `
		UPDATE turns
		SET status = $2, started_at = now(), barber_id = COALESCE($3, barber_id)
		WHERE id = $1
		RETURNING `+turnColumns, id, model.StatusInService, barberID))
	return t, classifyWriteError(err)
}

// Transition applies a named state change (finish, cancel, no_show, return).
func (r *TurnRepository) Transition(ctx context.Context, tx pgx.Tx, id, action, toStatus string) (model.Turn, error) {
	current, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		return model.Turn{}, err
	}
	if !model.ValidTransition(action, current.Status) {
		return model.Turn{}, ErrInvalidState
	}
	t, err := scanTurn(tx.QueryRow(ctx, `
		UPDATE turns
		SET status = $2
		WHERE id = $1
		RETURNING `+turnColumns, id, toStatus))
	return t, classifyWriteError(err)
}
