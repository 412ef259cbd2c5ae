package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
)

func TestSQLiteStorage_IterationStateUpsert(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	state, err := model.NewIterationState(1, 3)
	if err != nil {
		t.Fatalf("NewIterationState failed: %v", err)
	}
	if err := store.SaveIterationState(ctx, "run-001", state); err != nil {
		t.Fatalf("SaveIterationState failed: %v", err)
	}

	// Advance the state machine and rewrite.
	if err := state.TransitionTo(model.StatusEvaluating); err != nil {
		t.Fatalf("TransitionTo failed: %v", err)
	}
	state.IterationCount = 1
	if err := store.SaveIterationState(ctx, "run-001", state); err != nil {
		t.Fatalf("Second SaveIterationState failed: %v", err)
	}

	got, err := store.GetIterationState(ctx, "run-001", 1)
	if err != nil {
		t.Fatalf("GetIterationState failed: %v", err)
	}
	if got.Status != model.StatusEvaluating {
		t.Errorf("Status = %s, want evaluating", got.Status)
	}
	if got.IterationCount != 1 {
		t.Errorf("IterationCount = %d, want 1", got.IterationCount)
	}
	if got.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", got.MaxIterations)
	}
}

func TestSQLiteStorage_GetIterationState_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetIterationState(context.Background(), "run-001", 1)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_ListIterationStates(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, brandID := range []int64{3, 1, 2} {
		state, err := model.NewIterationState(brandID, 2)
		if err != nil {
			t.Fatalf("NewIterationState failed: %v", err)
		}
		if err := store.SaveIterationState(ctx, "run-001", state); err != nil {
			t.Fatalf("SaveIterationState failed: %v", err)
		}
	}

	// States for other runs must stay invisible.
	other, err := model.NewIterationState(9, 2)
	if err != nil {
		t.Fatalf("NewIterationState failed: %v", err)
	}
	if err := store.SaveIterationState(ctx, "run-002", other); err != nil {
		t.Fatalf("SaveIterationState failed: %v", err)
	}

	states, err := store.ListIterationStates(ctx, "run-001")
	if err != nil {
		t.Fatalf("ListIterationStates failed: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("Expected 3 states, got %d", len(states))
	}
	for i, want := range []int64{1, 2, 3} {
		if states[i].BrandID != want {
			t.Errorf("State %d brand = %d, want %d", i, states[i].BrandID, want)
		}
	}
}
