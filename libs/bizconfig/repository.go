package bizconfig

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/turnohq/turnoline/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the business config row. Missing or unreadable config returns
// the defaults wrapped with ErrUnavailable so callers can log and proceed.
func (r *Repository) Load(ctx context.Context) (Config, error) {
	cfg := Default()
	var weekdays []int
	var durationsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT open_time, close_time, operating_weekdays, service_durations,
			buffer_minutes, lead_minutes, daily_turn_limit
		FROM business_config
		LIMIT 1
	`).Scan(
		&cfg.OpenTime,
		&cfg.CloseTime,
		&weekdays,
		&durationsJSON,
		&cfg.BufferMinutes,
		&cfg.LeadMinutes,
		&cfg.DailyTurnLimit,
	)
	if err != nil {
		return Default(), errors.Join(ErrUnavailable, err)
	}
	cfg.OperatingWeekdays = weekdays
	if len(durationsJSON) > 0 {
		durations := map[string]int{}
		if err := json.Unmarshal(durationsJSON, &durations); err == nil && len(durations) > 0 {
			cfg.ServiceDurations = durations
		}
	}
	return cfg, nil
}

// LoadOrDefault never fails: a config read problem is logged and the
// documented defaults apply for this one decision.
func (r *Repository) LoadOrDefault(ctx context.Context, logger *slog.Logger) Config {
	cfg, err := r.Load(ctx)
	if err != nil && logger != nil {
		logger.Warn("business config unavailable, using defaults", "err", err)
	}
	return cfg
}
