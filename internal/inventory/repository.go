package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vebops/store/internal/platform/db"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional operations used by the service. All
// reads that feed a validation and all writes of one public operation run on
// the same instance, inside one database transaction.
type TxRepository interface {
	GetProject(ctx context.Context, id int64) (Project, error)
	GetMaterialForUpdate(ctx context.Context, id int64) (Material, error)
	UpdateMaterialCounters(ctx context.Context, m Material) error
	GetAllocationForUpdate(ctx context.Context, projectID, materialID int64) (float64, error)

	SumInwardOrdered(ctx context.Context, projectID, materialID int64) (float64, error)
	SumInwardReceived(ctx context.Context, projectID, materialID int64) (float64, error)
	SumOutwardIssued(ctx context.Context, projectID, materialID int64) (float64, error)
	SumOutwardIssuedExcluding(ctx context.Context, projectID, materialID, registerID int64) (float64, error)

	CountInwardOn(ctx context.Context, date time.Time) (int64, error)
	CountOutwardOn(ctx context.Context, date time.Time) (int64, error)
	CountTransferOn(ctx context.Context, date time.Time) (int64, error)

	InsertInwardRecord(ctx context.Context, rec InwardRecord) (int64, error)
	InsertInwardLine(ctx context.Context, line InwardLine) (int64, error)

	FindRegisterForUpdate(ctx context.Context, projectID int64, date time.Time) (OutwardRegister, error)
	GetRegisterForUpdate(ctx context.Context, id int64) (OutwardRegister, error)
	ListRegisterLines(ctx context.Context, registerID int64) ([]OutwardLine, error)
	InsertRegister(ctx context.Context, reg OutwardRegister) (int64, error)
	UpdateRegisterMeta(ctx context.Context, reg OutwardRegister) error
	InsertOutwardLine(ctx context.Context, line OutwardLine) (int64, error)
	UpdateOutwardLineQty(ctx context.Context, lineID int64, qty float64) error
	DeleteRegisterLines(ctx context.Context, registerID int64) error

	InsertTransferRecord(ctx context.Context, rec TransferRecord) (int64, error)
	InsertTransferLine(ctx context.Context, line TransferLine) (int64, error)
}

// Repository persists ledger data in PostgreSQL.
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
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.tx.QueryRow(ctx, `SELECT id, code, name FROM projects WHERE id=$1`, id).
		Scan(&p.ID, &p.Code, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("%w: project %d", ErrNotFound, id)
		}
		return Project{}, err
	}
	return p, nil
}

func (r *txRepository) GetMaterialForUpdate(ctx context.Context, id int64) (Material, error) {
	var m Material
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, unit, category, ordered_qty, received_qty, utilized_qty, balance_qty
FROM materials WHERE id=$1 FOR UPDATE`, id).
		Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.Category, &m.OrderedQty, &m.ReceivedQty, &m.UtilizedQty, &m.BalanceQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, fmt.Errorf("%w: material %d", ErrNotFound, id)
		}
		return Material{}, err
	}
	return m, nil
}

func (r *txRepository) UpdateMaterialCounters(ctx context.Context, m Material) error {
	_, err := r.tx.Exec(ctx, `UPDATE materials SET ordered_qty=$2, received_qty=$3, utilized_qty=$4, balance_qty=$5, updated_at=NOW()
WHERE id=$1`, m.ID, m.OrderedQty, m.ReceivedQty, m.UtilizedQty, m.BalanceQty)
	return err
}

// GetAllocationForUpdate resolves the BOM ceiling and locks its row, which
// serializes concurrent validations for the same (project, material) pair.
func (r *txRepository) GetAllocationForUpdate(ctx context.Context, projectID, materialID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT quantity FROM bom_lines WHERE project_id=$1 AND material_id=$2 FOR UPDATE`,
		projectID, materialID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotAllocated
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) SumInwardOrdered(ctx context.Context, projectID, materialID int64) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(l.ordered_qty), 0)
FROM inward_lines l JOIN inward_records rec ON rec.id = l.record_id
WHERE rec.project_id=$1 AND l.material_id=$2`, projectID, materialID)
}

func (r *txRepository) SumInwardReceived(ctx context.Context, projectID, materialID int64) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(l.received_qty), 0)
FROM inward_lines l JOIN inward_records rec ON rec.id = l.record_id
WHERE rec.project_id=$1 AND l.material_id=$2`, projectID, materialID)
}

func (r *txRepository) SumOutwardIssued(ctx context.Context, projectID, materialID int64) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(l.issue_qty), 0)
FROM outward_lines l JOIN outward_registers reg ON reg.id = l.register_id
WHERE reg.project_id=$1 AND l.material_id=$2`, projectID, materialID)
}

func (r *txRepository) SumOutwardIssuedExcluding(ctx context.Context, projectID, materialID, registerID int64) (float64, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(l.issue_qty), 0)
FROM outward_lines l JOIN outward_registers reg ON reg.id = l.register_id
WHERE reg.project_id=$1 AND l.material_id=$2 AND reg.id<>$3`, projectID, materialID, registerID)
}

func (r *txRepository) sum(ctx context.Context, query string, args ...any) (float64, error) {
	var total float64
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *txRepository) CountInwardOn(ctx context.Context, date time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM inward_records WHERE entry_date=$1`, date)
}

func (r *txRepository) CountOutwardOn(ctx context.Context, date time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM outward_registers WHERE register_date=$1`, date)
}

func (r *txRepository) CountTransferOn(ctx context.Context, date time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM transfer_records WHERE transfer_date=$1`, date)
}

func (r *txRepository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.tx.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *txRepository) InsertInwardRecord(ctx context.Context, rec InwardRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inward_records
(code, project_id, inward_type, supplier_name, invoice_no, invoice_date, delivery_date, vehicle_no, remarks, entry_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW()) RETURNING id`,
		rec.Code, rec.ProjectID, string(rec.Type), rec.SupplierName, rec.InvoiceNo,
		rec.InvoiceDate, rec.DeliveryDate, rec.VehicleNo, rec.Remarks, rec.EntryDate).Scan(&id)
	return id, mapConstraintError(err)
}

func (r *txRepository) InsertInwardLine(ctx context.Context, line InwardLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inward_lines (record_id, material_id, ordered_qty, received_qty)
VALUES ($1,$2,$3,$4) RETURNING id`, line.RecordID, line.MaterialID, line.OrderedQty, line.ReceivedQty).Scan(&id)
	return id, err
}

func (r *txRepository) FindRegisterForUpdate(ctx context.Context, projectID int64, date time.Time) (OutwardRegister, error) {
	return r.scanRegister(ctx, `SELECT id, code, project_id, register_date, issue_to, status, close_date
FROM outward_registers WHERE project_id=$1 AND register_date=$2 FOR UPDATE`, projectID, date)
}

func (r *txRepository) GetRegisterForUpdate(ctx context.Context, id int64) (OutwardRegister, error) {
	return r.scanRegister(ctx, `SELECT id, code, project_id, register_date, issue_to, status, close_date
FROM outward_registers WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) scanRegister(ctx context.Context, query string, args ...any) (OutwardRegister, error) {
	var reg OutwardRegister
	var status string
	err := r.tx.QueryRow(ctx, query, args...).
		Scan(&reg.ID, &reg.Code, &reg.ProjectID, &reg.Date, &reg.IssueTo, &status, &reg.CloseDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OutwardRegister{}, fmt.Errorf("%w: outward register", ErrNotFound)
		}
		return OutwardRegister{}, err
	}
	reg.Status = OutwardStatus(status)
	return reg, nil
}

func (r *txRepository) ListRegisterLines(ctx context.Context, registerID int64) ([]OutwardLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, register_id, material_id, issue_qty
FROM outward_lines WHERE register_id=$1 ORDER BY id`, registerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OutwardLine
	for rows.Next() {
		var line OutwardLine
		if err := rows.Scan(&line.ID, &line.RegisterID, &line.MaterialID, &line.IssueQty); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) InsertRegister(ctx context.Context, reg OutwardRegister) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO outward_registers
(code, project_id, register_date, issue_to, status, close_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		reg.Code, reg.ProjectID, reg.Date, reg.IssueTo, string(reg.Status), reg.CloseDate).Scan(&id)
	return id, mapConstraintError(err)
}

func (r *txRepository) UpdateRegisterMeta(ctx context.Context, reg OutwardRegister) error {
	_, err := r.tx.Exec(ctx, `UPDATE outward_registers SET issue_to=$2, status=$3, close_date=$4, updated_at=NOW()
WHERE id=$1`, reg.ID, reg.IssueTo, string(reg.Status), reg.CloseDate)
	return err
}

func (r *txRepository) InsertOutwardLine(ctx context.Context, line OutwardLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO outward_lines (register_id, material_id, issue_qty)
VALUES ($1,$2,$3) RETURNING id`, line.RegisterID, line.MaterialID, line.IssueQty).Scan(&id)
	return id, mapConstraintError(err)
}

func (r *txRepository) UpdateOutwardLineQty(ctx context.Context, lineID int64, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE outward_lines SET issue_qty=$2 WHERE id=$1`, lineID, qty)
	return err
}

func (r *txRepository) DeleteRegisterLines(ctx context.Context, registerID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM outward_lines WHERE register_id=$1`, registerID)
	return err
}

func (r *txRepository) InsertTransferRecord(ctx context.Context, rec TransferRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfer_records
(code, from_project_id, to_project_id, from_site, to_site, remarks, transfer_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		rec.Code, rec.FromProjectID, rec.ToProjectID, nullString(rec.FromSite), nullString(rec.ToSite),
		rec.Remarks, rec.TransferDate).Scan(&id)
	return id, mapConstraintError(err)
}

func (r *txRepository) InsertTransferLine(ctx context.Context, line TransferLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfer_lines (record_id, material_id, transfer_qty)
VALUES ($1,$2,$3) RETURNING id`, line.RecordID, line.MaterialID, line.Qty).Scan(&id)
	return id, err
}

// mapConstraintError converts unique-violation failures into ErrConflict so
// callers can retry with a fresh code. Document codes are advisory and carry
// a unique index rather than an atomic counter.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
