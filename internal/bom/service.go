package bom

import (
	"context"
	"fmt"
	"math"
)

// CacheInvalidator drops cached application data after a mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service exposes allocation management.
type Service struct {
	repo  RepositoryPort
	cache CacheInvalidator
}

// NewService constructs Service. cache may be nil.
func NewService(repo RepositoryPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListLines returns the allocation lines of a project.
func (s *Service) ListLines(ctx context.Context, projectID int64) ([]Line, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: invalid project id", ErrValidation)
	}
	return s.repo.ListLines(ctx, projectID)
}

// AssignQuantity creates or replaces the ceiling for a (project, material)
// pair. The new ceiling may not fall below what the ledger already booked.
func (s *Service) AssignQuantity(ctx context.Context, line Line) (Line, error) {
	if line.ProjectID <= 0 || line.MaterialID <= 0 {
		return Line{}, fmt.Errorf("%w: project and material are required", ErrValidation)
	}
	if line.Quantity <= 0 {
		return Line{}, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	ordered, received, err := s.repo.BookedQuantities(ctx, line.ProjectID, line.MaterialID)
	if err != nil {
		return Line{}, err
	}
	if booked := math.Max(ordered, received); line.Quantity < booked {
		return Line{}, fmt.Errorf("%w: %g already booked, cannot lower ceiling to %g",
			ErrQuantityInUse, booked, line.Quantity)
	}
	saved, err := s.repo.UpsertLine(ctx, line)
	if err != nil {
		return Line{}, err
	}
	s.invalidate(ctx)
	return saved, nil
}

// RemoveLine deletes the allocation for a (project, material) pair. Lines
// with booked movements stay in place.
func (s *Service) RemoveLine(ctx context.Context, projectID, materialID int64) error {
	if projectID <= 0 || materialID <= 0 {
		return fmt.Errorf("%w: project and material are required", ErrValidation)
	}
	ordered, received, err := s.repo.BookedQuantities(ctx, projectID, materialID)
	if err != nil {
		return err
	}
	if ordered > 0 || received > 0 {
		return fmt.Errorf("%w: movements already booked against this allocation", ErrQuantityInUse)
	}
	if err := s.repo.DeleteLine(ctx, projectID, materialID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
}
