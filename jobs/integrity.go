package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// driftTolerance absorbs float accumulation noise when comparing counters
// against journal sums.
const driftTolerance = 1e-6

// IntegrityChecker compares each material's aggregate counters with the
// journal totals and reports drift. It only observes, it never repairs.
type IntegrityChecker struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrityChecker constructs IntegrityChecker.
func NewIntegrityChecker(pool *pgxpool.Pool, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{pool: pool, logger: logger}
}

// HandleTask adapts Run to an Asynq handler.
func (c *IntegrityChecker) HandleTask(ctx context.Context, _ *asynq.Task) error {
	return c.Run(ctx)
}

// Run scans all materials and logs every counter that disagrees with the
// journals. Counters clamped at zero are expected to sit above the raw
// journal difference, those are not drift.
func (c *IntegrityChecker) Run(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `SELECT m.id, m.code, m.received_qty, m.utilized_qty, m.balance_qty,
COALESCE((SELECT SUM(l.received_qty) FROM inward_lines l WHERE l.material_id = m.id), 0),
COALESCE((SELECT SUM(l.issue_qty) FROM outward_lines l WHERE l.material_id = m.id), 0)
FROM materials m ORDER BY m.id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var checked, drifted int
	for rows.Next() {
		var (
			id                             int64
			code                           string
			received, utilized, balance    float64
			journalReceived, journalIssued float64
		)
		if err := rows.Scan(&id, &code, &received, &utilized, &balance, &journalReceived, &journalIssued); err != nil {
			return err
		}
		checked++

		expectedBalance := math.Max(0, received-utilized)
		drift := false
		if math.Abs(received-journalReceived) > driftTolerance {
			drift = true
			c.logger.Warn("received counter disagrees with inward journal",
				slog.String("material", code),
				slog.Float64("counter", received),
				slog.Float64("journal", journalReceived))
		}
		if math.Abs(utilized-journalIssued) > driftTolerance {
			drift = true
			c.logger.Warn("utilized counter disagrees with outward journal",
				slog.String("material", code),
				slog.Float64("counter", utilized),
				slog.Float64("journal", journalIssued))
		}
		if math.Abs(balance-expectedBalance) > driftTolerance {
			drift = true
			c.logger.Warn("balance counter out of sync",
				slog.String("material", code),
				slog.Float64("counter", balance),
				slog.Float64("expected", expectedBalance))
		}
		if drift {
			drifted++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.logger.Info("ledger integrity scan finished",
		slog.Int("materials", checked),
		slog.Int("drifted", drifted))
	return nil
}
