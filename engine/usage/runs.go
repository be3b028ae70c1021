package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// RunStore persists per-run usage totals in a local sqlite file so spend
// can be audited across runs. Persistence failures are reported but must
// never abort a pipeline run; callers log and continue.
type RunStore struct {
	db *sql.DB
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	op            TEXT NOT NULL,
	model         TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	calls         INTEGER NOT NULL,
	failed_calls  INTEGER NOT NULL,
	native_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	codes_added   INTEGER NOT NULL
);`

// OpenRunStore opens (creating if needed) the runs database at path.
func OpenRunStore(ctx context.Context, path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if _, err := db.ExecContext(ctx, runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run store schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error { return s.db.Close() }

// Run is one persisted pipeline run.
type Run struct {
	ID           string
	Op           string
	Model        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Calls        int
	FailedCalls  int
	NativeTokens int
	CostUSD      float64
	CodesAdded   int
}

// SaveRun writes the ledger's totals as a new run row and returns the run id.
func (s *RunStore) SaveRun(ctx context.Context, op, model string, startedAt time.Time, ledger *Ledger, codesAdded int) (string, error) {
	calls, native, cost := ledger.Totals()
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, op, model, started_at, finished_at, calls, failed_calls, native_tokens, cost_usd, codes_added)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, op, model,
		startedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		calls, ledger.FailedCalls(), native, cost, codesAdded,
	)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, model, started_at, finished_at, calls, failed_calls, native_tokens, cost_usd, codes_added
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Op, &r.Model, &started, &finished, &r.Calls, &r.FailedCalls, &r.NativeTokens, &r.CostUSD, &r.CodesAdded); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalSpend sums cost across all persisted runs.
func (s *RunStore) TotalSpend(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(cost_usd) FROM runs`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum spend: %w", err)
	}
	return total.Float64, nil
}
