package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/vebops/store/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached application data after an approval changes
// the allocation table.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service orchestrates the request workflow.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CacheInvalidator
}

// NewService constructs Service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// CreateInput describes a new procurement request.
type CreateInput struct {
	Number      string
	ProjectID   int64
	MaterialID  int64
	Quantity    float64
	Reason      string
	RequestedBy int64
}

// Create stores a pending request.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if input.ProjectID <= 0 || input.MaterialID <= 0 {
		return Request{}, fmt.Errorf("%w: project and material are required", ErrValidation)
	}
	if input.Quantity <= 0 {
		return Request{}, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	req := Request{
		Number:      input.Number,
		ProjectID:   input.ProjectID,
		MaterialID:  input.MaterialID,
		Quantity:    input.Quantity,
		Reason:      input.Reason,
		Status:      StatusPending,
		RequestedBy: input.RequestedBy,
	}
	if req.Number == "" {
		req.Number = generateNumber("PRQ")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, input.RequestedBy, "procurement:create", req)
	return req, nil
}

// List returns requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, status RequestStatus) ([]Request, error) {
	if status != "" && status != StatusPending && status != StatusApproved && status != StatusRejected {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListRequests(ctx, status)
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.GetRequest(ctx, id)
}

// Approve raises the project's allocation ceiling by the requested quantity
// and marks the request decided, both inside one transaction.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Request, error) {
	req, err := s.decide(ctx, id, actorID, StatusApproved)
	if err != nil {
		return Request{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
	s.recordAudit(ctx, actorID, "procurement:approve", req)
	return req, nil
}

// Reject marks the request decided without touching the allocation.
func (s *Service) Reject(ctx context.Context, id, actorID int64) (Request, error) {
	req, err := s.decide(ctx, id, actorID, StatusRejected)
	if err != nil {
		return Request{}, err
	}
	s.recordAudit(ctx, actorID, "procurement:reject", req)
	return req, nil
}

func (s *Service) decide(ctx context.Context, id, actorID int64, status RequestStatus) (Request, error) {
	var req Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, req.Number, req.Status)
		}
		if status == StatusApproved {
			if err := tx.RaiseAllocation(ctx, req.ProjectID, req.MaterialID, req.Quantity); err != nil {
				return err
			}
		}
		now := time.Now()
		req.Status = status
		req.DecidedBy = actorID
		req.DecidedAt = &now
		return tx.MarkDecided(ctx, req)
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, req Request) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "procurement_request",
		EntityID: req.Number,
		Meta: map[string]any{
			"project_id":  req.ProjectID,
			"material_id": req.MaterialID,
			"quantity":    req.Quantity,
		},
	})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
