package trigger

import (
	"testing"
	"time"
)

func kinds(events []Event) map[string]int {
	m := map[string]int{}
	for _, e := range events {
		m[e.Kind]++
	}
	return m
}

func findKind(events []Event, kind string) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

func TestEvaluate_TurnMilestones(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	turns := []TurnState{
		{ID: "t1", Code: "A01", Recipient: "p1", Status: "waiting", Position: 1},
		{ID: "t2", Code: "A02", Recipient: "p2", Status: "waiting", Position: 2},
		{ID: "t3", Code: "A03", Recipient: "p3", Status: "waiting", Position: 3},
	}

	events := Evaluate(now, turns, nil)
	got := kinds(events)
	if got[KindTurnClose] != 2 {
		t.Fatalf("close events = %d, want 2 (positions 1 and 2)", got[KindTurnClose])
	}
	if got[KindTurnNext] != 1 {
		t.Fatalf("next events = %d, want 1", got[KindTurnNext])
	}

	next, _ := findKind(events, KindTurnNext)
	if next.Recipient != "p1" {
		t.Fatalf("next recipient = %q, want head of queue", next.Recipient)
	}
	if next.IdempotencyKey != "t1:turn.next" {
		t.Fatalf("idempotency key = %q", next.IdempotencyKey)
	}
}

func TestEvaluate_ServingMilestone(t *testing.T) {
	now := time.Now()
	turns := []TurnState{
		{ID: "t1", Code: "B01", Recipient: "p1", Status: "in_service"},
	}
	events := Evaluate(now, turns, nil)
	if len(events) != 1 || events[0].Kind != KindTurnServing {
		t.Fatalf("events = %+v, want single serving event", events)
	}
}

func TestEvaluate_FlagsSuppressRepeats(t *testing.T) {
	now := time.Now()
	turns := []TurnState{
		{ID: "t1", Status: "waiting", Position: 1, NotifiedClose: true, NotifiedNext: true},
		{ID: "t2", Status: "in_service", NotifiedServing: true},
	}
	appts := []AppointmentState{
		{
			ID: "a1", Status: "scheduled", StartAt: now.Add(5 * time.Minute),
			Reminded1h: true, Reminded15m: true, RemindedBarber10m: true,
			NotifiedAdmin: true, NotifiedBarber: true,
		},
	}
	if events := Evaluate(now, turns, appts); len(events) != 0 {
		t.Fatalf("all flags set but got %d events", len(events))
	}
}

func TestEvaluate_NeverTwiceAcrossPasses(t *testing.T) {
	// Simulate the dispatcher: after each pass, set the flag for every
	// emitted event, then re-evaluate. No idempotency key may repeat.
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	turn := TurnState{ID: "t1", Code: "A01", Recipient: "p1", Status: "waiting", Position: 2}
	appt := AppointmentState{
		ID: "a1", BarberID: "b1", Recipient: "p2",
		Status: "scheduled", StartAt: now.Add(50 * time.Minute),
	}

	seen := map[string]bool{}
	for pass := 0; pass < 4; pass++ {
		events := Evaluate(now, []TurnState{turn}, []AppointmentState{appt})
		for _, e := range events {
			if seen[e.IdempotencyKey] {
				t.Fatalf("pass %d repeated %q", pass, e.IdempotencyKey)
			}
			seen[e.IdempotencyKey] = true
			switch e.Kind {
			case KindTurnClose:
				turn.NotifiedClose = true
			case KindTurnNext:
				turn.NotifiedNext = true
			case KindTurnServing:
				turn.NotifiedServing = true
			case KindReminder1h:
				appt.Reminded1h = true
			case KindReminder15m:
				appt.Reminded15m = true
			case KindReminderBarber:
				appt.RemindedBarber10m = true
			case KindCreatedAdmin:
				appt.NotifiedAdmin = true
			case KindCreatedBarber:
				appt.NotifiedBarber = true
			}
		}
		// The customer advances between passes.
		if pass == 1 {
			turn.Position = 1
		}
		if pass == 2 {
			turn.Status = "in_service"
		}
	}
	if !seen["t1:turn.next"] || !seen["t1:turn.serving"] {
		t.Fatal("advancement milestones never fired")
	}
}

func TestEvaluate_ReminderWindows(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	appt := AppointmentState{
		ID: "a1", BarberID: "b1", Recipient: "p1",
		Status: "scheduled", StartAt: start,
		NotifiedAdmin: true, NotifiedBarber: true,
	}

	cases := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"two hours out", start.Add(-2 * time.Hour), nil},
		{"50 minutes out", start.Add(-50 * time.Minute), []string{KindReminder1h}},
		{"12 minutes out", start.Add(-12 * time.Minute), []string{KindReminder15m}},
		{"8 minutes out", start.Add(-8 * time.Minute), []string{KindReminder15m, KindReminderBarber}},
		{"already started", start.Add(1 * time.Minute), nil},
	}
	for _, tc := range cases {
		events := Evaluate(tc.now, nil, []AppointmentState{appt})
		got := kinds(events)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
			continue
		}
		for _, k := range tc.want {
			if got[k] != 1 {
				t.Errorf("%s: missing %s in %v", tc.name, k, got)
			}
		}
	}
}

func TestEvaluate_CreationNotices(t *testing.T) {
	now := time.Now()
	appt := AppointmentState{
		ID: "a1", BarberID: "b1", Recipient: "p1",
		Status: "scheduled", StartAt: now.Add(48 * time.Hour),
	}
	events := Evaluate(now, nil, []AppointmentState{appt})
	admin, ok := findKind(events, KindCreatedAdmin)
	if !ok || admin.Recipient != "admin" {
		t.Fatalf("admin notice missing or misaddressed: %+v", events)
	}
	barber, ok := findKind(events, KindCreatedBarber)
	if !ok || barber.Recipient != "b1" {
		t.Fatalf("barber notice missing or misaddressed: %+v", events)
	}

	// The two creation flags are independent.
	appt.NotifiedAdmin = true
	events = Evaluate(now, nil, []AppointmentState{appt})
	if _, ok := findKind(events, KindCreatedAdmin); ok {
		t.Fatal("admin notice repeated")
	}
	if _, ok := findKind(events, KindCreatedBarber); !ok {
		t.Fatal("barber notice suppressed by admin flag")
	}
}

func TestEvaluate_CancelledAppointmentSilent(t *testing.T) {
	now := time.Now()
	appt := AppointmentState{
		ID: "a1", Status: "cancelled", StartAt: now.Add(30 * time.Minute),
	}
	if events := Evaluate(now, nil, []AppointmentState{appt}); len(events) != 0 {
		t.Fatalf("cancelled appointment produced %d events", len(events))
	}
}
