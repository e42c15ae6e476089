package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort abstracts allocation persistence for the service.
type RepositoryPort interface {
	ListLines(ctx context.Context, projectID int64) ([]Line, error)
	UpsertLine(ctx context.Context, line Line) (Line, error)
	DeleteLine(ctx context.Context, projectID, materialID int64) error
	BookedQuantities(ctx context.Context, projectID, materialID int64) (ordered, received float64, err error)
}

// Repository persists allocation lines in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListLines(ctx context.Context, projectID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, material_id, quantity
FROM bom_lines WHERE project_id=$1 ORDER BY material_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.ProjectID, &line.MaterialID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *Repository) UpsertLine(ctx context.Context, line Line) (Line, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO bom_lines (project_id, material_id, quantity, created_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (project_id, material_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()
RETURNING id`, line.ProjectID, line.MaterialID, line.Quantity).Scan(&line.ID)
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

func (r *Repository) DeleteLine(ctx context.Context, projectID, materialID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bom_lines WHERE project_id=$1 AND material_id=$2`, projectID, materialID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d material %d", ErrNotFound, projectID, materialID)
	}
	return nil
}

// BookedQuantities returns how much the journals have already ordered and
// received for the pair, so a lowered ceiling can be rejected.
func (r *Repository) BookedQuantities(ctx context.Context, projectID, materialID int64) (float64, float64, error) {
	var ordered, received float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.ordered_qty), 0), COALESCE(SUM(l.received_qty), 0)
FROM inward_lines l JOIN inward_records rec ON rec.id = l.record_id
WHERE rec.project_id=$1 AND l.material_id=$2`, projectID, materialID).Scan(&ordered, &received)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, err
	}
	return ordered, received, nil
}
