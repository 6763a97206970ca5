package blockage

import (
	"context"
	"time"

	"github.com/turnohq/turnoline/libs/bizconfig"
	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/services/booking-service/internal/conflict"
)

// Provider supplies the time ranges during which a barber cannot take an
// appointment for reasons outside the appointments table: walk-in turns
// currently in service and recurring break windows.
type Provider interface {
	Blockages(ctx context.Context, barberID string, dayStart, dayEnd time.Time) ([]conflict.Interval, error)
}

type sqlProvider struct {
	pool *db.Pool
	cfg  func(ctx context.Context) bizconfig.Config
}

// NewSQLProvider reads walk-in activity and break windows straight from
// the shared database.
func NewSQLProvider(pool *db.Pool, cfg func(ctx context.Context) bizconfig.Config) Provider {
	return &sqlProvider{pool: pool, cfg: cfg}
}

func (p *sqlProvider) Blockages(ctx context.Context, barberID string, dayStart, dayEnd time.Time) ([]conflict.Interval, error) {
	cfg := p.cfg(ctx)

	intervals, err := p.inServiceTurns(ctx, barberID, cfg)
	if err != nil {
		return nil, err
	}

	breaks, err := p.breakWindows(ctx, barberID, dayStart)
	if err != nil {
		return nil, err
	}
	intervals = append(intervals, breaks...)
	return intervals, nil
}

// inServiceTurns projects each of the barber's in-service walk-ins onto a
// blocking interval: from started_at for the service duration plus buffer.
func (p *sqlProvider) inServiceTurns(ctx context.Context, barberID string, cfg bizconfig.Config) ([]conflict.Interval, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT started_at, service_name
		FROM turns
		WHERE barber_id = $1
			AND status = 'in_service'
			AND started_at IS NOT NULL
	`, barberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []conflict.Interval
	for rows.Next() {
		var startedAt time.Time
		var service string
		if err := rows.Scan(&startedAt, &service); err != nil {
			return nil, err
		}
		length := time.Duration(cfg.ServiceMinutes(service)+cfg.BufferMinutes) * time.Minute
		intervals = append(intervals, conflict.Interval{Start: startedAt, End: startedAt.Add(length)})
	}
	return intervals, rows.Err()
}

func (p *sqlProvider) breakWindows(ctx context.Context, barberID string, dayStart time.Time) ([]conflict.Interval, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM barber_breaks
		WHERE barber_id = $1 AND weekday = $2
	`, barberID, int(dayStart.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []conflict.Interval
	for rows.Next() {
		var startClock, endClock string
		if err := rows.Scan(&startClock, &endClock); err != nil {
			return nil, err
		}
		iv, ok := clockInterval(dayStart, startClock, endClock)
		if ok {
			intervals = append(intervals, iv)
		}
	}
	return intervals, rows.Err()
}

// clockInterval anchors a pair of HH:MM clocks onto the given day. Malformed
// or inverted clocks are skipped rather than blocking the whole day.
func clockInterval(day time.Time, startClock, endClock string) (conflict.Interval, bool) {
	sh, sm, err := bizconfig.ParseClock(startClock)
	if err != nil {
		return conflict.Interval{}, false
	}
	eh, em, err := bizconfig.ParseClock(endClock)
	if err != nil {
		return conflict.Interval{}, false
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, day.Location())
	if !end.After(start) {
		return conflict.Interval{}, false
	}
	return conflict.Interval{Start: start, End: end}, true
}
