// Package storage provides the persistence layer for runs, rules, match
// records, classification results, directives, iteration states, and
// feedback submissions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/brandmatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidBrandID = errors.New("brand id must be positive")
	ErrInvalidVersion = errors.New("version must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateBrandID ensures a brand id is usable as a storage key.
func validateBrandID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBrandID, id)
	}
	return nil
}

// validateRule validates a rule before persistence. Full semantic validation
// against the category reference set happens in the engine; storage only
// checks the key fields it depends on.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := validateBrandID(rule.BrandID); err != nil {
		return err
	}
	if rule.Version <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, rule.Version)
	}
	if rule.Pattern == "" {
		return fmt.Errorf("%w: rule pattern", ErrEmptyString)
	}
	return nil
}
