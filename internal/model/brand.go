// Package model defines the core domain models used throughout the application.
package model

// Brand represents a merchant brand whose transactions the engine classifies.
// Brands are immutable reference data owned by the catalog store.
type Brand struct {
	Name   string
	Sector string
	ID     int64
}
