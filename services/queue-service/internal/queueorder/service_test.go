package queueorder

import (
	"context"
	"errors"
	"testing"

	"github.com/turnohq/turnoline/services/queue-service/internal/model"
)

type fakeStore struct {
	waiting   []model.Turn
	applyErr  error
	applied   map[string]int
	loadCalls int
}

func (f *fakeStore) LoadWaiting(_ context.Context, _ string) ([]model.Turn, error) {
	f.loadCalls++
	out := make([]model.Turn, len(f.waiting))
	copy(out, f.waiting)
	return out, nil
}

func (f *fakeStore) ApplyOrder(_ context.Context, _ string, positions map[string]int) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = positions
	return nil
}

func turns(ids ...string) []model.Turn {
	out := make([]model.Turn, len(ids))
	for i, id := range ids {
		out[i] = model.Turn{ID: id, Code: "A0" + id, Status: model.StatusWaiting, Position: i + 1}
	}
	return out
}

func codesOf(ts []model.Turn) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestReorder_Applies(t *testing.T) {
	store := &fakeStore{waiting: turns("1", "2", "3")}
	svc := New(store, nil)
	if _, err := svc.Resync(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("resync: %v", err)
	}

	applied, err := svc.Reorder(context.Background(), "2026-03-02", []string{"3", "1", "2"})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got := codesOf(applied)
	want := []string{"3", "1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("applied order %v, want %v", got, want)
		}
	}
	if store.applied["3"] != 1 || store.applied["1"] != 2 || store.applied["2"] != 3 {
		t.Fatalf("persisted positions %v", store.applied)
	}
}

func TestReorder_RollbackRestoresExactOrder(t *testing.T) {
	store := &fakeStore{waiting: turns("1", "2", "3")}
	svc := New(store, nil)
	if _, err := svc.Resync(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("resync: %v", err)
	}

	store.applyErr = errors.New("write failed")
	_, err := svc.Reorder(context.Background(), "2026-03-02", []string{"2", "3", "1"})
	if !errors.Is(err, ErrReorderConflict) {
		t.Fatalf("expected ErrReorderConflict, got %v", err)
	}

	got := codesOf(svc.Snapshot())
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot after rollback %v, want %v (order equality, not set)", got, want)
		}
	}
	if store.loadCalls < 2 {
		t.Fatalf("expected a forced resync read after rollback, loads=%d", store.loadCalls)
	}
}

func TestReorder_RejectsUnknownID(t *testing.T) {
	store := &fakeStore{waiting: turns("1", "2")}
	svc := New(store, nil)
	if _, err := svc.Resync(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("resync: %v", err)
	}

	_, err := svc.Reorder(context.Background(), "2026-03-02", []string{"1", "9"})
	if !errors.Is(err, ErrReorderConflict) {
		t.Fatalf("expected ErrReorderConflict for unknown id, got %v", err)
	}
	if store.applied != nil {
		t.Fatal("store write must not happen for an invalid order")
	}
}

func TestReorder_RejectsDuplicateAndShortLists(t *testing.T) {
	store := &fakeStore{waiting: turns("1", "2", "3")}
	svc := New(store, nil)
	if _, err := svc.Resync(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("resync: %v", err)
	}

	if _, err := svc.Reorder(context.Background(), "2026-03-02", []string{"1", "1", "2"}); !errors.Is(err, ErrReorderConflict) {
		t.Fatalf("duplicate ids: got %v", err)
	}
	if _, err := svc.Reorder(context.Background(), "2026-03-02", []string{"1", "2"}); !errors.Is(err, ErrReorderConflict) {
		t.Fatalf("short list: got %v", err)
	}
}

func TestReorder_ResyncsWhenDayChanges(t *testing.T) {
	store := &fakeStore{waiting: turns("1", "2")}
	svc := New(store, nil)

	// No prior Resync for this day; the service must load before applying.
	applied, err := svc.Reorder(context.Background(), "2026-03-03", []string{"2", "1"})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if applied[0].ID != "2" {
		t.Fatalf("applied head %s, want 2", applied[0].ID)
	}
}
