package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func TestIsCodeConflict(t *testing.T) {
	if !IsCodeConflict(uniqueViolation(turnCodeConstraint)) {
		t.Fatal("code index collision should be retryable")
	}
	if IsCodeConflict(uniqueViolation(activeTurnConstraint)) {
		t.Fatal("a second active turn is not a code collision and must not be retried")
	}
	if IsCodeConflict(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a code collision")
	}
	if IsCodeConflict(errors.New("connection reset")) {
		t.Fatal("plain errors are not code collisions")
	}
	if !IsCodeConflict(fmt.Errorf("insert turn: %w", uniqueViolation(turnCodeConstraint))) {
		t.Fatal("wrapped code collisions should still match")
	}
}

func TestClassifyWriteError(t *testing.T) {
	if err := classifyWriteError(uniqueViolation(activeTurnConstraint)); !errors.Is(err, ErrActiveTurnExists) {
		t.Fatalf("active-turn violation classified as %v, want ErrActiveTurnExists", err)
	}
	if err := classifyWriteError(&pgconn.PgError{Code: "28P01"}); !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("28P01 classified as %v, want ErrAuthExpired", err)
	}
	other := uniqueViolation("some_other_index")
	if err := classifyWriteError(other); errors.Is(err, ErrActiveTurnExists) {
		t.Fatal("unrelated unique violation must pass through unclassified")
	}
	if classifyWriteError(nil) != nil {
		t.Fatal("nil stays nil")
	}
}
