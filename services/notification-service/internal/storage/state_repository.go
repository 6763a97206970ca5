package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turnohq/turnoline/libs/db"
	"github.com/turnohq/turnoline/services/notification-service/internal/trigger"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

var turnFlagColumns = map[string]string{
	trigger.KindTurnClose:   "notified_close",
	trigger.KindTurnNext:    "notified_next",
	trigger.KindTurnServing: "notified_serving",
}

var appointmentFlagColumns = map[string]string{
	trigger.KindReminder1h:     "reminded_1h",
	trigger.KindReminder15m:    "reminded_15m",
	trigger.KindReminderBarber: "reminded_barber_10m",
	trigger.KindCreatedAdmin:   "notified_admin",
	trigger.KindCreatedBarber:  "notified_barber",
}

// TurnStates reads the day's active turns with their live queue position.
// Positions are recomputed per read so customers who advanced since the
// last pass carry their new position.
func (r *Repository) TurnStates(ctx context.Context, businessDay string) ([]trigger.TurnState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, customer_name, customer_phone, COALESCE(barber_id, ''), status,
			CASE WHEN status = 'waiting' THEN ROW_NUMBER() OVER (
				PARTITION BY status ORDER BY position, created_at
			) ELSE 0 END,
			notified_close, notified_next, notified_serving
		FROM turns
		WHERE business_day = $1 AND status IN ('waiting', 'in_service')
		ORDER BY position, created_at
	`, businessDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []trigger.TurnState
	for rows.Next() {
		var s trigger.TurnState
		var position int64
		if err := rows.Scan(
			&s.ID, &s.Code, &s.CustomerName, &s.Recipient, &s.BarberID, &s.Status,
			&position,
			&s.NotifiedClose, &s.NotifiedNext, &s.NotifiedServing,
		); err != nil {
			return nil, err
		}
		s.Position = int(position)
		states = append(states, s)
	}
	return states, rows.Err()
}

// AppointmentStates reads scheduled appointments starting in [from, to).
func (r *Repository) AppointmentStates(ctx context.Context, from, to time.Time) ([]trigger.AppointmentState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, barber_id, customer_name, customer_phone, service_name, start_at, status,
			reminded_1h, reminded_15m, reminded_barber_10m, notified_admin, notified_barber
		FROM appointments
		WHERE status = 'scheduled' AND start_at >= $1 AND start_at < $2
		ORDER BY start_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []trigger.AppointmentState
	for rows.Next() {
		var s trigger.AppointmentState
		if err := rows.Scan(
			&s.ID, &s.BarberID, &s.CustomerName, &s.Recipient, &s.ServiceName, &s.StartAt, &s.Status,
			&s.Reminded1h, &s.Reminded15m, &s.RemindedBarber10m, &s.NotifiedAdmin, &s.NotifiedBarber,
		); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// MarkDelivered sets the idempotency flag for one confirmed delivery.
// Called only after the sender accepted the notification; a crash before
// this point means the next pass retries.
func (r *Repository) MarkDelivered(ctx context.Context, entityID, kind string) error {
	if col, ok := turnFlagColumns[kind]; ok {
		_, err := r.pool.Exec(ctx, `UPDATE turns SET `+col+` = true WHERE id = $1`, entityID)
		return err
	}
	if col, ok := appointmentFlagColumns[kind]; ok {
		_, err := r.pool.Exec(ctx, `UPDATE appointments SET `+col+` = true WHERE id = $1`, entityID)
		return err
	}
	return fmt.Errorf("unknown notification kind %q", kind)
}

// RecordDelivery appends one row to the delivery log for auditing.
func (r *Repository) RecordDelivery(ctx context.Context, entityID, kind, recipient string, payload map[string]any, status string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notification_log (entity_id, kind, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5)
	`, entityID, kind, recipient, raw, status)
	return err
}
