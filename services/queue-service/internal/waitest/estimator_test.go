package waitest

import (
	"testing"
	"time"

	"github.com/turnohq/turnoline/services/queue-service/internal/model"
)

var testDurations = Durations{
	"Barbería":         30,
	"Corte de cabello": 20,
	"Afeitado":         15,
	"Largo":            45,
}

func waitingTurn(code, service string) model.Turn {
	return model.Turn{Code: code, ServiceName: service, Status: model.StatusWaiting}
}

func TestForCode_InServicePlusQueueAhead(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	started := now.Add(-20 * time.Minute) // 30min service, 10 remaining
	snap := model.Snapshot{
		InService: []model.Turn{{Code: "A00", ServiceName: "Barbería", Status: model.StatusInService, StartedAt: &started}},
		Waiting: []model.Turn{
			waitingTurn("A01", "Barbería"), // 30
			waitingTurn("A02", "Largo"),    // excluded: target
		},
	}
	if got := ForCode(snap, testDurations, "A02", now); got != 40 {
		t.Fatalf("got %d, want 40", got)
	}
}

func TestForCode_FirstWaitingNoService(t *testing.T) {
	now := time.Now()
	snap := model.Snapshot{
		Waiting: []model.Turn{waitingTurn("A01", "Barbería"), waitingTurn("A02", "Afeitado")},
	}
	if got := ForCode(snap, testDurations, "A01", now); got != 0 {
		t.Fatalf("got %d, want 0 for first waiting turn with nobody in service", got)
	}
}

func TestForCode_OverdueServiceClampsToZero(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Minute)
	snap := model.Snapshot{
		InService: []model.Turn{{Code: "A00", ServiceName: "Afeitado", Status: model.StatusInService, StartedAt: &started}},
		Waiting:   []model.Turn{waitingTurn("A01", "Afeitado")},
	}
	if got := ForCode(snap, testDurations, "A01", now); got != 0 {
		t.Fatalf("got %d, want 0 when the active service ran over", got)
	}
}

func TestForCode_MissingStartedAtCountsFullDuration(t *testing.T) {
	now := time.Now()
	snap := model.Snapshot{
		InService: []model.Turn{{Code: "A00", ServiceName: "Barbería", Status: model.StatusInService}},
	}
	if got := ForCode(snap, testDurations, "A01", now); got != 30 {
		t.Fatalf("got %d, want 30", got)
	}
}

func TestForCode_UnknownDurationFallsBack(t *testing.T) {
	now := time.Now()
	snap := model.Snapshot{
		Waiting: []model.Turn{waitingTurn("A01", "Peinado exótico"), waitingTurn("A02", "Afeitado")},
	}
	if got := ForCode(snap, testDurations, "A02", now); got != FallbackServiceMinutes {
		t.Fatalf("got %d, want fallback %d", got, FallbackServiceMinutes)
	}
}

func TestForCode_UnknownCodeSumsWholeQueue(t *testing.T) {
	now := time.Now()
	snap := model.Snapshot{
		Waiting: []model.Turn{waitingTurn("A01", "Barbería"), waitingTurn("A02", "Afeitado")},
	}
	if got := ForCode(snap, testDurations, "Z99", now); got != 45 {
		t.Fatalf("got %d, want 45", got)
	}
}

func TestFacilityWide_DividesByBarbers(t *testing.T) {
	now := time.Now()
	snap := model.Snapshot{
		Waiting: []model.Turn{
			waitingTurn("A01", "Barbería"), // 30
			waitingTurn("A02", "Barbería"), // 30
		},
	}
	if got := FacilityWide(snap, testDurations, 2, now); got != 30 {
		t.Fatalf("got %d, want 30", got)
	}
	// Zero barbers never divides by zero.
	if got := FacilityWide(snap, testDurations, 0, now); got != 60 {
		t.Fatalf("got %d, want 60", got)
	}
}

func TestFacilityWide_EmptyQueue(t *testing.T) {
	if got := FacilityWide(model.Snapshot{}, testDurations, 3, time.Now()); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
