package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
)

var (
	ErrBarberNotFound = errors.New("barber not found")
	ErrBreakNotFound  = errors.New("break not found")
	ErrDuplicateName  = errors.New("barber name already exists")
)

type Barber struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Break struct {
	ID        string `json:"id"`
	BarberID  string `json:"barber_id"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveConfig replaces the single business_config row. The table holds at
// most one row; a fixed key keeps the upsert honest.
func (r *Repository) SaveConfig(ctx context.Context, cfg bizconfig.Config) error {
	durations, err := json.Marshal(cfg.ServiceDurations)
	if err != nil {
		return fmt.Errorf("encode service durations: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO business_config (
			id, open_time, close_time, operating_weekdays, service_durations,
			buffer_minutes, lead_minutes, daily_turn_limit, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			operating_weekdays = EXCLUDED.operating_weekdays,
			service_durations = EXCLUDED.service_durations,
			buffer_minutes = EXCLUDED.buffer_minutes,
			lead_minutes = EXCLUDED.lead_minutes,
			daily_turn_limit = EXCLUDED.daily_turn_limit,
			updated_at = now()
	`, cfg.OpenTime, cfg.CloseTime, cfg.OperatingWeekdays, durations,
		cfg.BufferMinutes, cfg.LeadMinutes, cfg.DailyTurnLimit)
	if err != nil {
		return fmt.Errorf("save business config: %w", err)
	}
	return nil
}

func (r *Repository) CreateBarber(ctx context.Context, name string) (Barber, error) {
	b := Barber{ID: uuid.NewString(), Name: name, Active: true}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO barbers (id, name, active)
		VALUES ($1, $2, true)
		RETURNING created_at
	`, b.ID, b.Name).Scan(&b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Barber{}, ErrDuplicateName
		}
		return Barber{}, fmt.Errorf("create barber: %w", err)
	}
	return b, nil
}

func (r *Repository) ListBarbers(ctx context.Context, activeOnly bool) ([]Barber, error) {
	query := `SELECT id, name, active, created_at FROM barbers ORDER BY name`
	if activeOnly {
		query = `SELECT id, name, active, created_at FROM barbers WHERE active ORDER BY name`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list barbers: %w", err)
	}
	defer rows.Close()

	var out []Barber
	for rows.Next() {
		var b Barber
		if err := rows.Scan(&b.ID, &b.Name, &b.Active, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) SetBarberActive(ctx context.Context, id string, active bool) (Barber, error) {
	var b Barber
	err := r.pool.QueryRow(ctx, `
		UPDATE barbers SET active = $2 WHERE id = $1
		RETURNING id, name, active, created_at
	`, id, active).Scan(&b.ID, &b.Name, &b.Active, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Barber{}, ErrBarberNotFound
	}
	if err != nil {
		return Barber{}, fmt.Errorf("update barber: %w", err)
	}
	return b, nil
}

func (r *Repository) CreateBreak(ctx context.Context, barberID string, weekday int, startTime, endTime string) (Break, error) {
	br := Break{ID: uuid.NewString(), BarberID: barberID, Weekday: weekday, StartTime: startTime, EndTime: endTime}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO barber_breaks (id, barber_id, weekday, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
	`, br.ID, br.BarberID, br.Weekday, br.StartTime, br.EndTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Break{}, ErrBarberNotFound
		}
		return Break{}, fmt.Errorf("create break: %w", err)
	}
	return br, nil
}

func (r *Repository) ListBreaks(ctx context.Context, barberID string) ([]Break, error) {
	query := `
		SELECT id, barber_id, weekday, start_time, end_time
		FROM barber_breaks
		ORDER BY barber_id, weekday, start_time`
	args := []any{}
	if barberID != "" {
		query = `
			SELECT id, barber_id, weekday, start_time, end_time
			FROM barber_breaks
			WHERE barber_id = $1
			ORDER BY weekday, start_time`
		args = append(args, barberID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var out []Break
	for rows.Next() {
		var br Break
		if err := rows.Scan(&br.ID, &br.BarberID, &br.Weekday, &br.StartTime, &br.EndTime); err != nil {
			return nil, err
		}
		out = append(out, br)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteBreak(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM barber_breaks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBreakNotFound
	}
	return nil
}
