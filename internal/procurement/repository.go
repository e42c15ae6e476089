package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vebops/store/internal/platform/db"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListRequests(ctx context.Context, status RequestStatus) ([]Request, error)
	GetRequest(ctx context.Context, id int64) (Request, error)
}

// TxRepository exposes the transactional operations of a decision.
type TxRepository interface {
	CreateRequest(ctx context.Context, req Request) (int64, error)
	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	MarkDecided(ctx context.Context, req Request) error
	RaiseAllocation(ctx context.Context, projectID, materialID int64, quantity float64) error
}

// Repository persists procurement requests in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const requestColumns = `id, number, project_id, material_id, quantity, COALESCE(reason, ''), status,
COALESCE(requested_by, 0), COALESCE(decided_by, 0), decided_at, created_at`

func (r *Repository) ListRequests(ctx context.Context, status RequestStatus) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM procurement_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *Repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM procurement_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return Request{}, err
	}
	return req, nil
}

func (r *txRepository) CreateRequest(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO procurement_requests
(number, project_id, material_id, quantity, reason, status, requested_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		req.Number, req.ProjectID, req.MaterialID, req.Quantity, req.Reason,
		string(req.Status), nullID(req.RequestedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM procurement_requests WHERE id=$1 FOR UPDATE`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return Request{}, err
	}
	return req, nil
}

func (r *txRepository) MarkDecided(ctx context.Context, req Request) error {
	_, err := r.tx.Exec(ctx, `UPDATE procurement_requests SET status=$2, decided_by=$3, decided_at=$4, updated_at=NOW()
WHERE id=$1`, req.ID, string(req.Status), nullID(req.DecidedBy), req.DecidedAt)
	return err
}

// RaiseAllocation adds the approved quantity onto the BOM ceiling, creating
// the line when the material was not allocated yet.
func (r *txRepository) RaiseAllocation(ctx context.Context, projectID, materialID int64, quantity float64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO bom_lines (project_id, material_id, quantity, created_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (project_id, material_id) DO UPDATE SET quantity = bom_lines.quantity + EXCLUDED.quantity, updated_at=NOW()`,
		projectID, materialID, quantity)
	return err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	err := row.Scan(&req.ID, &req.Number, &req.ProjectID, &req.MaterialID, &req.Quantity,
		&req.Reason, &status, &req.RequestedBy, &req.DecidedBy, &req.DecidedAt, &req.CreatedAt)
	if err != nil {
		return Request{}, err
	}
	req.Status = RequestStatus(status)
	return req, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
