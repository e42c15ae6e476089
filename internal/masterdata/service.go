package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/vebops/store/internal/platform/httpx"
)

// CacheInvalidator drops cached application data after a mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RepositoryPort abstracts master data persistence for the service.
type RepositoryPort interface {
	ListProjects(ctx context.Context, filters ListFilters) ([]Project, int, error)
	GetProject(ctx context.Context, id int64) (Project, error)
	CreateProject(ctx context.Context, p Project) (Project, error)
	UpdateProject(ctx context.Context, id int64, p Project) error
	DeleteProject(ctx context.Context, id int64) error

	ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error)
	GetMaterial(ctx context.Context, id int64) (Material, error)
	CreateMaterial(ctx context.Context, m Material) (Material, error)
	UpdateMaterial(ctx context.Context, id int64, m Material) error
	DeleteMaterial(ctx context.Context, id int64) error
}

// Service exposes project and material master data operations.
type Service struct {
	repo  RepositoryPort
	cache CacheInvalidator
}

// NewService constructs Service. cache may be nil.
func NewService(repo RepositoryPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) ListProjects(ctx context.Context, filters ListFilters) ([]Project, int, error) {
	return s.repo.ListProjects(ctx, filters)
}

func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	if id <= 0 {
		return Project{}, fmt.Errorf("%w: invalid project id", httpx.ErrValidation)
	}
	return s.repo.GetProject(ctx, id)
}

func (s *Service) CreateProject(ctx context.Context, p Project) (Project, error) {
	if err := validateProject(p); err != nil {
		return Project{}, err
	}
	created, err := s.repo.CreateProject(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) UpdateProject(ctx context.Context, id int64, p Project) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid project id", httpx.ErrValidation)
	}
	if err := validateProject(p); err != nil {
		return err
	}
	if err := s.repo.UpdateProject(ctx, id, p); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid project id", httpx.ErrValidation)
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error) {
	return s.repo.ListMaterials(ctx, filters)
}

func (s *Service) GetMaterial(ctx context.Context, id int64) (Material, error) {
	if id <= 0 {
		return Material{}, fmt.Errorf("%w: invalid material id", httpx.ErrValidation)
	}
	return s.repo.GetMaterial(ctx, id)
}

func (s *Service) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	if err := validateMaterial(m); err != nil {
		return Material{}, err
	}
	created, err := s.repo.CreateMaterial(ctx, m)
	if err != nil {
		return Material{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid material id", httpx.ErrValidation)
	}
	if err := validateMaterial(m); err != nil {
		return err
	}
	if err := s.repo.UpdateMaterial(ctx, id, m); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid material id", httpx.ErrValidation)
	}
	if err := s.repo.DeleteMaterial(ctx, id); err != nil {
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

func validateProject(p Project) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: project code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", httpx.ErrValidation)
	}
	return nil
}

func validateMaterial(m Material) error {
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: material code is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: material name is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(m.Unit) == "" {
		return fmt.Errorf("%w: material unit is required", httpx.ErrValidation)
	}
	return nil
}
