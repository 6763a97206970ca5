package trigger

import (
	"time"
)

// Milestone kinds. The idempotency key for every event is the entity id
// joined with the kind, so a milestone fires at most once per entity.
const (
	KindTurnClose       = "turn.close"
	KindTurnNext        = "turn.next"
	KindTurnServing     = "turn.serving"
	KindReminder1h      = "appt.reminder.1h"
	KindReminder15m     = "appt.reminder.15m"
	KindReminderBarber  = "appt.reminder.barber.10m"
	KindCreatedAdmin    = "appt.created.admin"
	KindCreatedBarber   = "appt.created.barber"
)

type TurnState struct {
	ID           string
	Code         string
	CustomerName string
	Recipient    string
	BarberID     string
	Status       string
	Position     int

	NotifiedClose   bool
	NotifiedNext    bool
	NotifiedServing bool
}

type AppointmentState struct {
	ID           string
	BarberID     string
	CustomerName string
	Recipient    string
	ServiceName  string
	StartAt      time.Time
	Status       string

	Reminded1h        bool
	Reminded15m       bool
	RemindedBarber10m bool
	NotifiedAdmin     bool
	NotifiedBarber    bool
}

// Event is one pending delivery. The flag that suppresses a repeat is
// persisted by the dispatcher only after the sender confirmed delivery;
// an undelivered event simply reappears on the next pass.
type Event struct {
	Recipient      string
	Kind           string
	IdempotencyKey string
	Payload        map[string]any
}

func key(entityID, kind string) string {
	return entityID + ":" + kind
}

// Evaluate recomputes every due milestone from the current state. It is
// pure: callers feed it fresh positions each pass, so customers who
// advanced implicitly get their milestones on the pass that observes them.
func Evaluate(now time.Time, turns []TurnState, appts []AppointmentState) []Event {
	var events []Event
	for _, t := range turns {
		events = append(events, evaluateTurn(t)...)
	}
	for _, a := range appts {
		events = append(events, evaluateAppointment(now, a)...)
	}
	return events
}

func evaluateTurn(t TurnState) []Event {
	var events []Event
	switch t.Status {
	case "waiting":
		if t.Position <= 2 && t.Position >= 1 && !t.NotifiedClose {
			events = append(events, Event{
				Recipient:      t.Recipient,
				Kind:           KindTurnClose,
				IdempotencyKey: key(t.ID, KindTurnClose),
				Payload: map[string]any{
					"turn_id":  t.ID,
					"code":     t.Code,
					"position": t.Position,
					"name":     t.CustomerName,
				},
			})
		}
		if t.Position == 1 && !t.NotifiedNext {
			events = append(events, Event{
				Recipient:      t.Recipient,
				Kind:           KindTurnNext,
				IdempotencyKey: key(t.ID, KindTurnNext),
				Payload: map[string]any{
					"turn_id": t.ID,
					"code":    t.Code,
					"name":    t.CustomerName,
				},
			})
		}
	case "in_service":
		if !t.NotifiedServing {
			events = append(events, Event{
				Recipient:      t.Recipient,
				Kind:           KindTurnServing,
				IdempotencyKey: key(t.ID, KindTurnServing),
				Payload: map[string]any{
					"turn_id": t.ID,
					"code":    t.Code,
					"name":    t.CustomerName,
				},
			})
		}
	}
	return events
}

func evaluateAppointment(now time.Time, a AppointmentState) []Event {
	if a.Status != "scheduled" {
		return nil
	}

	var events []Event
	base := map[string]any{
		"appointment_id": a.ID,
		"barber_id":      a.BarberID,
		"service":        a.ServiceName,
		"start_at":       a.StartAt.UTC().Format(time.RFC3339),
		"name":           a.CustomerName,
	}

	if !a.NotifiedAdmin {
		events = append(events, Event{
			Recipient:      "admin",
			Kind:           KindCreatedAdmin,
			IdempotencyKey: key(a.ID, KindCreatedAdmin),
			Payload:        base,
		})
	}
	if !a.NotifiedBarber {
		events = append(events, Event{
			Recipient:      a.BarberID,
			Kind:           KindCreatedBarber,
			IdempotencyKey: key(a.ID, KindCreatedBarber),
			Payload:        base,
		})
	}

	lead := a.StartAt.Sub(now)
	if lead <= time.Hour && lead > 15*time.Minute && !a.Reminded1h {
		events = append(events, Event{
			Recipient:      a.Recipient,
			Kind:           KindReminder1h,
			IdempotencyKey: key(a.ID, KindReminder1h),
			Payload:        base,
		})
	}
	if lead <= 15*time.Minute && lead > 0 && !a.Reminded15m {
		events = append(events, Event{
			Recipient:      a.Recipient,
			Kind:           KindReminder15m,
			IdempotencyKey: key(a.ID, KindReminder15m),
			Payload:        base,
		})
	}
	if lead <= 10*time.Minute && lead > 0 && !a.RemindedBarber10m {
		events = append(events, Event{
			Recipient:      a.BarberID,
			Kind:           KindReminderBarber,
			IdempotencyKey: key(a.ID, KindReminderBarber),
			Payload:        base,
		})
	}
	return events
}
