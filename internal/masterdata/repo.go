package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vebops/store/internal/platform/httpx"
)

// Repository persists projects and materials.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListProjects(ctx context.Context, filters ListFilters) ([]Project, int, error) {
	query := `SELECT id, code, name, COALESCE(location, ''), created_at FROM projects WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM projects WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`
	query, args = paginate(query, args, filters, &argCount)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Location, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

func (r *Repository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, COALESCE(location, ''), created_at FROM projects WHERE id=$1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Location, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("%w: project %d", httpx.ErrNotFound, id)
		}
		return Project{}, err
	}
	return p, nil
}

func (r *Repository) CreateProject(ctx context.Context, p Project) (Project, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO projects (code, name, location, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id, created_at`, p.Code, p.Name, p.Location).
		Scan(&p.ID, &p.CreatedAt)
	return p, mapUniqueError(err)
}

func (r *Repository) UpdateProject(ctx context.Context, id int64, p Project) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET code=$2, name=$3, location=$4, updated_at=NOW() WHERE id=$1`,
		id, p.Code, p.Name, p.Location)
	if err != nil {
		return mapUniqueError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) ListMaterials(ctx context.Context, filters ListFilters) ([]Material, int, error) {
	query := `SELECT id, code, name, unit, COALESCE(category, ''), ordered_qty, received_qty, utilized_qty, balance_qty
FROM materials WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM materials WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`
	query, args = paginate(query, args, filters, &argCount)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var materials []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.Category,
			&m.OrderedQty, &m.ReceivedQty, &m.UtilizedQty, &m.BalanceQty); err != nil {
			return nil, 0, err
		}
		materials = append(materials, m)
	}
	return materials, total, rows.Err()
}

func (r *Repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	var m Material
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, unit, COALESCE(category, ''), ordered_qty, received_qty, utilized_qty, balance_qty
FROM materials WHERE id=$1`, id).
		Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.Category,
			&m.OrderedQty, &m.ReceivedQty, &m.UtilizedQty, &m.BalanceQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, fmt.Errorf("%w: material %d", httpx.ErrNotFound, id)
		}
		return Material{}, err
	}
	return m, nil
}

func (r *Repository) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO materials (code, name, unit, category, ordered_qty, received_qty, utilized_qty, balance_qty, created_at)
VALUES ($1,$2,$3,$4,0,0,0,0,NOW()) RETURNING id`, m.Code, m.Name, m.Unit, m.Category).Scan(&m.ID)
	return m, mapUniqueError(err)
}

// UpdateMaterial changes descriptive fields only. Counters belong to the
// movement journals and are never edited directly.
func (r *Repository) UpdateMaterial(ctx context.Context, id int64, m Material) error {
	tag, err := r.pool.Exec(ctx, `UPDATE materials SET code=$2, name=$3, unit=$4, category=$5, updated_at=NOW() WHERE id=$1`,
		id, m.Code, m.Name, m.Unit, m.Category)
	if err != nil {
		return mapUniqueError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: material %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) DeleteMaterial(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: material %d", httpx.ErrNotFound, id)
	}
	return nil
}

func paginate(query string, args []any, filters ListFilters, argCount *int) (string, []any) {
	if filters.Limit <= 0 {
		return query, args
	}
	*argCount++
	query += ` LIMIT $` + strconv.Itoa(*argCount)
	args = append(args, filters.Limit)
	*argCount++
	query += ` OFFSET $` + strconv.Itoa(*argCount)
	offset := (filters.Page - 1) * filters.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, offset)
	return query, args
}

func mapUniqueError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", httpx.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
