// Package queueorder owns the ordering of the waiting queue. Reorders are
// applied optimistically to a local snapshot and persisted as one atomic
// write; any failure rolls the snapshot back and forces a resync read.
package queueorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/turnohq/turnoline/services/queue-service/internal/model"
)

// ErrReorderConflict marks a reorder that could not be applied: the request
// no longer matches the live queue, or the atomic write failed. The caller
// shows a transient notice and re-renders from the resynced snapshot.
var ErrReorderConflict = errors.New("queue reorder conflict")

// Store is the persistence boundary for queue ordering.
type Store interface {
	// LoadWaiting returns the day's waiting turns ordered by position.
	LoadWaiting(ctx context.Context, businessDay string) ([]model.Turn, error)
	// ApplyOrder persists all positions in a single transaction; either
	// every row updates or none do.
	ApplyOrder(ctx context.Context, businessDay string, positions map[string]int) error
}

type state int

const (
	stateIdle state = iota
	stateReordering
)

type Service struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	state    state
	day      string
	snapshot []model.Turn
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Resync replaces the local snapshot with the stored order.
func (s *Service) Resync(ctx context.Context, businessDay string) ([]model.Turn, error) {
	turns, err := s.store.LoadWaiting(ctx, businessDay)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.day = businessDay
	s.snapshot = turns
	s.state = stateIdle
	s.mu.Unlock()
	return turns, nil
}

// Snapshot returns the current local order.
func (s *Service) Snapshot() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Turn, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// Reorder applies ids as the new waiting order. The local snapshot is
// updated before the write so the caller can render immediately; on any
// write failure the exact previous order is restored and a resync read is
// issued.
func (s *Service) Reorder(ctx context.Context, businessDay string, ids []string) ([]model.Turn, error) {
	s.mu.Lock()
	if s.state != stateIdle || s.day != businessDay {
		s.mu.Unlock()
		if _, err := s.Resync(ctx, businessDay); err != nil {
			return nil, err
		}
		s.mu.Lock()
	}

	reordered, err := permute(s.snapshot, ids)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrReorderConflict, err)
	}

	previous := s.snapshot
	positions := make(map[string]int, len(reordered))
	for i := range reordered {
		reordered[i].Position = i + 1
		positions[reordered[i].ID] = i + 1
	}
	s.snapshot = reordered
	s.state = stateReordering
	s.mu.Unlock()

	if err := s.store.ApplyOrder(ctx, businessDay, positions); err != nil {
		s.mu.Lock()
		s.snapshot = previous
		s.state = stateIdle
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("queue reorder rolled back", "business_day", businessDay, "err", err)
		}
		if _, syncErr := s.Resync(ctx, businessDay); syncErr != nil && s.logger != nil {
			s.logger.Error("queue resync after rollback failed", "err", syncErr)
		}
		return nil, errors.Join(ErrReorderConflict, err)
	}

	s.mu.Lock()
	s.state = stateIdle
	applied := make([]model.Turn, len(s.snapshot))
	copy(applied, s.snapshot)
	s.mu.Unlock()
	return applied, nil
}

// permute rearranges turns to match ids. The ids must be exactly the set of
// snapshot ids; anything else means the request raced a queue change.
func permute(turns []model.Turn, ids []string) ([]model.Turn, error) {
	if len(ids) != len(turns) {
		return nil, fmt.Errorf("order has %d ids, queue has %d turns", len(ids), len(turns))
	}
	byID := make(map[string]model.Turn, len(turns))
	for _, t := range turns {
		byID[t.ID] = t
	}
	out := make([]model.Turn, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("duplicate id %s", id)
		}
		seen[id] = true
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown id %s", id)
		}
		out = append(out, t)
	}
	return out, nil
}
