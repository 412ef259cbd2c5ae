package model

import (
	"fmt"
	"time"
)

// IterationStatus is the state of one brand's refinement loop.
type IterationStatus string

const (
	// StatusPending indicates the brand has not been picked up by a run yet.
	StatusPending IterationStatus = "pending"
	// StatusEvaluating indicates the confidence scorer is assessing the
	// brand's prior rule.
	StatusEvaluating IterationStatus = "evaluating"
	// StatusAwaitingRule indicates a rule has been requested from the
	// external producer.
	StatusAwaitingRule IterationStatus = "awaiting_rule"
	// StatusMatching indicates the matching engine is running.
	StatusMatching IterationStatus = "matching"
	// StatusConfirming indicates the confirmation filter is running.
	StatusConfirming IterationStatus = "confirming"
	// StatusResolvingTies indicates the brand is waiting on the global tie
	// resolution barrier.
	StatusResolvingTies IterationStatus = "resolving_ties"
	// StatusAwaitingFeedback indicates the result is persisted and offered
	// for feedback.
	StatusAwaitingFeedback IterationStatus = "awaiting_feedback"
	// StatusEscalated is terminal: the iteration bound was exhausted without
	// approval, or rule acquisition failed permanently.
	StatusEscalated IterationStatus = "escalated"
	// StatusCompleted is terminal: the result was approved or no feedback
	// contested it.
	StatusCompleted IterationStatus = "completed"
)

// Terminal reports whether no further transitions are permitted.
func (s IterationStatus) Terminal() bool {
	return s == StatusEscalated || s == StatusCompleted
}

// CanTransition reports whether the state machine permits moving from s to
// next. The transition table is exhaustive; statuses outside it are invalid.
func (s IterationStatus) CanTransition(next IterationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusEvaluating
	case StatusEvaluating:
		return next == StatusAwaitingRule
	case StatusAwaitingRule:
		// Invalid rules re-request in place; producer exhaustion or the
		// iteration bound escalates.
		return next == StatusMatching || next == StatusAwaitingRule || next == StatusEscalated
	case StatusMatching:
		return next == StatusConfirming
	case StatusConfirming:
		return next == StatusResolvingTies
	case StatusResolvingTies:
		return next == StatusAwaitingFeedback
	case StatusAwaitingFeedback:
		return next == StatusCompleted || next == StatusAwaitingRule || next == StatusEscalated
	case StatusEscalated, StatusCompleted:
		return false
	default:
		return false
	}
}

// IterationState tracks one brand's position in the bounded refinement loop.
type IterationState struct {
	UpdatedAt      time.Time       `json:"updated_at"`
	Status         IterationStatus `json:"status"`
	BrandID        int64           `json:"brand_id"`
	IterationCount int             `json:"iteration_count"`
	MaxIterations  int             `json:"max_iterations"`
}

// NewIterationState initializes the state for a brand at the start of a run.
// MaxIterations must be positive; enforcing that is the caller's fatal
// configuration check.
func NewIterationState(brandID int64, maxIterations int) (*IterationState, error) {
	if maxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", maxIterations)
	}
	return &IterationState{
		BrandID:       brandID,
		Status:        StatusPending,
		MaxIterations: maxIterations,
		UpdatedAt:     time.Now(),
	}, nil
}

// TransitionTo moves the state machine, rejecting transitions outside the
// table. Terminal states never move again.
func (s *IterationState) TransitionTo(next IterationStatus) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("brand %d: illegal transition %s -> %s", s.BrandID, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = time.Now()
	return nil
}

// ConsumeIteration counts one regeneration attempt against the bound. When
// the bound is already spent the state escalates irreversibly and false is
// returned; the caller must not request another rule.
func (s *IterationState) ConsumeIteration() bool {
	if s.IterationCount >= s.MaxIterations {
		s.Status = StatusEscalated
		s.UpdatedAt = time.Now()
		return false
	}
	s.IterationCount++
	s.UpdatedAt = time.Now()
	return true
}

// Escalate forces the terminal escalated state, used when rule acquisition
// fails permanently.
func (s *IterationState) Escalate() {
	s.Status = StatusEscalated
	s.UpdatedAt = time.Now()
}

// Remaining returns how many regeneration attempts are left.
func (s *IterationState) Remaining() int {
	if s.IterationCount >= s.MaxIterations {
		return 0
	}
	return s.MaxIterations - s.IterationCount
}
