package appdata

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is the bootstrap payload clients fetch once per session.
type Snapshot struct {
	Projects  []ProjectSummary  `json:"projects"`
	Materials []MaterialSummary `json:"materials"`
	BomLines  []AllocationLine  `json:"bomLines"`
}

// ProjectSummary is the reference data slice of a project.
type ProjectSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// MaterialSummary is the reference data slice of a material including its
// live counters.
type MaterialSummary struct {
	ID          int64   `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	OrderedQty  float64 `json:"orderedQty"`
	ReceivedQty float64 `json:"receivedQty"`
	UtilizedQty float64 `json:"utilizedQty"`
	BalanceQty  float64 `json:"balanceQty"`
}

// AllocationLine mirrors one BOM ceiling.
type AllocationLine struct {
	ProjectID  int64   `json:"projectId"`
	MaterialID int64   `json:"materialId"`
	Quantity   float64 `json:"quantity"`
}

// Service assembles and caches the snapshot.
type Service struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewService constructs Service. cache may be nil, in which case every load
// hits the database.
func NewService(pool *pgxpool.Pool, cache *Cache) *Service {
	return &Service{pool: pool, cache: cache}
}

// Load returns the snapshot, from cache when warm.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	key, err := s.cache.BuildKey(ctx, "appdata", "snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	err = s.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
		return s.build(ctx)
	})
	return snap, err
}

// Invalidate bumps the cache version so the next Load rebuilds. It satisfies
// the invalidator ports of the mutating modules.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Projects:  []ProjectSummary{},
		Materials: []MaterialSummary{},
		BomLines:  []AllocationLine{},
	}

	rows, err := s.pool.Query(ctx, `SELECT id, code, name FROM projects ORDER BY code`)
	if err != nil {
		return Snapshot{}, err
	}
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Code, &p.Name); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.Projects = append(snap.Projects, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	rows, err = s.pool.Query(ctx, `SELECT id, code, name, unit, ordered_qty, received_qty, utilized_qty, balance_qty
FROM materials ORDER BY code`)
	if err != nil {
		return Snapshot{}, err
	}
	for rows.Next() {
		var m MaterialSummary
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.Unit,
			&m.OrderedQty, &m.ReceivedQty, &m.UtilizedQty, &m.BalanceQty); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.Materials = append(snap.Materials, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	rows, err = s.pool.Query(ctx, `SELECT project_id, material_id, quantity FROM bom_lines ORDER BY project_id, material_id`)
	if err != nil {
		return Snapshot{}, err
	}
	for rows.Next() {
		var line AllocationLine
		if err := rows.Scan(&line.ProjectID, &line.MaterialID, &line.Quantity); err != nil {
			rows.Close()
			return Snapshot{}, err
		}
		snap.BomLines = append(snap.BomLines, line)
	}
	rows.Close()
	return snap, rows.Err()
}
