// Package procurement handles requests to raise a project's material
// allocation beyond its current ceiling.
package procurement

import (
	"errors"
	"time"
)

// RequestStatus is the lifecycle of a procurement request.
type RequestStatus string

const (
	// StatusPending awaits a decision.
	StatusPending RequestStatus = "PENDING"
	// StatusApproved raised the allocation ceiling.
	StatusApproved RequestStatus = "APPROVED"
	// StatusRejected left the ceiling unchanged.
	StatusRejected RequestStatus = "REJECTED"
)

// Request asks for additional allocation of one material on one project.
type Request struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	ProjectID   int64         `json:"projectId"`
	MaterialID  int64         `json:"materialId"`
	Quantity    float64       `json:"quantity"`
	Reason      string        `json:"reason,omitempty"`
	Status      RequestStatus `json:"status"`
	RequestedBy int64         `json:"requestedBy,omitempty"`
	DecidedBy   int64         `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time    `json:"decidedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

var (
	// ErrNotFound indicates a missing request.
	ErrNotFound = errors.New("procurement: request not found")
	// ErrValidation indicates an invalid request payload.
	ErrValidation = errors.New("procurement: validation failed")
	// ErrAlreadyDecided indicates a second decision on the same request.
	ErrAlreadyDecided = errors.New("procurement: request already decided")
)
