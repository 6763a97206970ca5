package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/turnohq/turnoline/services/notification-service/internal/email"
	"github.com/turnohq/turnoline/services/notification-service/internal/push"
	"github.com/turnohq/turnoline/services/notification-service/internal/trigger"
)

// Store persists delivery outcomes. MarkDelivered flips the idempotency
// flag; it runs only after the sender confirmed delivery so a failed send
// is retried by the next recompute pass.
type Store interface {
	MarkDelivered(ctx context.Context, entityID, kind string) error
	RecordDelivery(ctx context.Context, entityID, kind, recipient string, payload map[string]any, status string) error
}

type Dispatcher struct {
	push       push.Sender
	email      email.Sender
	adminEmail string
	store      Store
	logger     *slog.Logger
}

func New(pushSender push.Sender, emailSender email.Sender, adminEmail string, store Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		push:       pushSender,
		email:      emailSender,
		adminEmail: adminEmail,
		store:      store,
		logger:     logger,
	}
}

// Dispatch delivers each event and flags it on success. Failures are
// logged and left unflagged.
func (d *Dispatcher) Dispatch(ctx context.Context, events []trigger.Event) {
	for _, e := range events {
		entityID, _, ok := strings.Cut(e.IdempotencyKey, ":")
		if !ok {
			d.logger.Error("malformed idempotency key", "key", e.IdempotencyKey)
			continue
		}

		if err := d.send(ctx, e); err != nil {
			d.logger.Warn("notification send failed, will retry next pass",
				"kind", e.Kind, "entity_id", entityID, "err", err)
			if err := d.store.RecordDelivery(ctx, entityID, e.Kind, e.Recipient, e.Payload, "failed"); err != nil {
				d.logger.Error("delivery log write failed", "err", err)
			}
			continue
		}

		if err := d.store.MarkDelivered(ctx, entityID, e.Kind); err != nil {
			// The flag write failed after a confirmed delivery; the next
			// pass may deliver again. At-least-once is the contract.
			d.logger.Error("flag write failed after delivery", "kind", e.Kind, "entity_id", entityID, "err", err)
			continue
		}
		if err := d.store.RecordDelivery(ctx, entityID, e.Kind, e.Recipient, e.Payload, "sent"); err != nil {
			d.logger.Error("delivery log write failed", "err", err)
		}
		d.logger.Info("notification delivered", "kind", e.Kind, "entity_id", entityID, "recipient", e.Recipient)
	}
}

func (d *Dispatcher) send(ctx context.Context, e trigger.Event) error {
	title, body := message(e)
	if e.Kind == trigger.KindCreatedAdmin {
		return d.email.Send(d.adminEmail, title, body)
	}
	return d.push.Send(ctx, e.Recipient, title, body, e.Payload)
}

func message(e trigger.Event) (string, string) {
	name, _ := e.Payload["name"].(string)
	code, _ := e.Payload["code"].(string)
	startAt, _ := e.Payload["start_at"].(string)
	service, _ := e.Payload["service"].(string)

	switch e.Kind {
	case trigger.KindTurnClose:
		return "Almost your turn", fmt.Sprintf("%s, your turn %s is coming up. Please head to the shop.", name, code)
	case trigger.KindTurnNext:
		return "You are next", fmt.Sprintf("%s, turn %s is next in line.", name, code)
	case trigger.KindTurnServing:
		return "It's your turn", fmt.Sprintf("%s, turn %s is being served now.", name, code)
	case trigger.KindReminder1h:
		return "Appointment in 1 hour", fmt.Sprintf("%s, your %s appointment starts at %s.", name, service, startAt)
	case trigger.KindReminder15m:
		return "Appointment in 15 minutes", fmt.Sprintf("%s, your %s appointment starts at %s.", name, service, startAt)
	case trigger.KindReminderBarber:
		return "Next appointment in 10 minutes", fmt.Sprintf("Upcoming %s appointment at %s for %s.", service, startAt, name)
	case trigger.KindCreatedAdmin, trigger.KindCreatedBarber:
		return "New appointment", fmt.Sprintf("%s booked %s at %s.", name, service, startAt)
	default:
		return "Notification", e.Kind
	}
}
