// Package bom manages the per-project material requirement lines that cap
// every inward and outward movement.
package bom

import "errors"

// Line allocates a quantity of one material to one project. The quantity is
// the ceiling both receipts and issues are validated against.
type Line struct {
	ID         int64   `json:"id"`
	ProjectID  int64   `json:"projectId"`
	MaterialID int64   `json:"materialId"`
	Quantity   float64 `json:"quantity"`
}

var (
	// ErrNotFound indicates a missing allocation line.
	ErrNotFound = errors.New("bom: line not found")
	// ErrValidation indicates an invalid allocation request.
	ErrValidation = errors.New("bom: validation failed")
	// ErrQuantityInUse indicates the new ceiling would fall below quantities
	// the ledger has already booked.
	ErrQuantityInUse = errors.New("bom: quantity below booked movements")
)
