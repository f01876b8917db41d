package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/climatekit/ascraster/pkg/domain"
	exporterrors "github.com/climatekit/ascraster/pkg/errors"

	"github.com/lib/pq" // PostgreSQL driver and array support
)

// Schema creates the job ledger table. It is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS job_records (
		run_id VARCHAR(64) NOT NULL,
		job_key TEXT NOT NULL,
		family VARCHAR(8) NOT NULL,
		dataset VARCHAR(100) NOT NULL,
		grid VARCHAR(100) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		outputs TEXT[] NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NULL,
		finished_at TIMESTAMP NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, job_key),
		CONSTRAINT check_status CHECK (status IN ('pending', 'done', 'skipped', 'failed')),
		CONSTRAINT check_attempts_non_negative CHECK (attempts >= 0)
	);
	CREATE INDEX IF NOT EXISTS idx_job_records_run_status ON job_records(run_id, status);
`

// columnsPerRow is the number of bound parameters per record in a batch upsert.
const columnsPerRow = 11

// maxBatchRows keeps one statement under PostgreSQL's limit of 65,535 bound parameters.
const maxBatchRows = 65535 / columnsPerRow

// PostgresJobRepository implements JobRepository using PostgreSQL.
type PostgresJobRepository struct {
	db *sql.DB
}

// NewPostgresJobRepository creates a new PostgreSQL-backed job ledger.
func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{
		db: db,
	}
}

// EnsureSchema creates the ledger table and its index if they are missing.
func (r *PostgresJobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return exporterrors.ErrDatabaseError("ensure schema", err)
	}
	return nil
}

// GetRecord retrieves the ledger entry of one job in one run.
func (r *PostgresJobRepository) GetRecord(ctx context.Context, runID, jobKey string) (*domain.JobRecord, error) {
	query := `
		SELECT run_id, job_key, family, dataset, grid, status, attempts,
		       outputs, error, started_at, finished_at, updated_at
		FROM job_records
		WHERE run_id = $1 AND job_key = $2
	`

	var record domain.JobRecord
	err := r.db.QueryRowContext(ctx, query, runID, jobKey).Scan(
		&record.RunID,
		&record.JobKey,
		&record.Family,
		&record.Dataset,
		&record.Grid,
		&record.Status,
		&record.Attempts,
		pq.Array(&record.Outputs),
		&record.Error,
		&record.StartedAt,
		&record.FinishedAt,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, exporterrors.ErrDatabaseError("get record", err)
	}

	return &record, nil
}

// UpsertRecord creates or updates a single ledger entry.
func (r *PostgresJobRepository) UpsertRecord(ctx context.Context, record *domain.JobRecord) error {
	return r.BatchUpsertRecords(ctx, []*domain.JobRecord{record})
}

// BatchUpsertRecords upserts many ledger entries. Batches larger than one
// statement can bind are split into chunks applied in a single transaction.
func (r *PostgresJobRepository) BatchUpsertRecords(ctx context.Context, records []*domain.JobRecord) error {
	if len(records) == 0 {
		return nil
	}

	chunks := chunkRecords(records, maxBatchRows)
	if len(chunks) == 1 {
		return upsertRecords(ctx, r.db, records)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return exporterrors.ErrDatabaseError("begin batch upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, chunk := range chunks {
		if err := upsertRecords(ctx, tx, chunk); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return exporterrors.ErrDatabaseError("commit batch upsert", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// chunkRecords splits records into slices of at most size entries.
func chunkRecords(records []*domain.JobRecord, size int) [][]*domain.JobRecord {
	chunks := make([][]*domain.JobRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// upsertRecords upserts records in one multi-row statement.
func upsertRecords(ctx context.Context, db execer, records []*domain.JobRecord) error {
	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*columnsPerRow)

	for i, rec := range records {
		placeholders := make([]string, columnsPerRow)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", i*columnsPerRow+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+", NOW())")

		outputs := rec.Outputs
		if outputs == nil {
			outputs = []string{}
		}
		valueArgs = append(valueArgs,
			rec.RunID,
			rec.JobKey,
			string(rec.Family),
			rec.Dataset,
			rec.Grid,
			string(rec.Status),
			rec.Attempts,
			pq.Array(outputs),
			rec.Error,
			rec.StartedAt,
			rec.FinishedAt,
		)
	}

	// Safe: fmt.Sprintf only builds the VALUES structure with placeholders ($1, $2, etc.)
	// All actual values are passed via parameterized query (valueArgs), not string interpolation
	// #nosec G201
	query := fmt.Sprintf(`
		INSERT INTO job_records (
			run_id, job_key, family, dataset, grid, status, attempts,
			outputs, error, started_at, finished_at, updated_at
		) VALUES %s
		ON CONFLICT (run_id, job_key) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			outputs = EXCLUDED.outputs,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			updated_at = NOW()
		WHERE job_records.status = 'pending' OR EXCLUDED.status != 'pending'
	`, strings.Join(valueStrings, ","))

	_, err := db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return exporterrors.ErrDatabaseError("batch upsert records", err)
	}

	return nil
}

// ListRun returns every record of a run ordered by job key.
func (r *PostgresJobRepository) ListRun(ctx context.Context, runID string) ([]*domain.JobRecord, error) {
	query := `
		SELECT run_id, job_key, family, dataset, grid, status, attempts,
		       outputs, error, started_at, finished_at, updated_at
		FROM job_records
		WHERE run_id = $1
		ORDER BY job_key ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, exporterrors.ErrDatabaseError("list run", err)
	}
	defer func() { _ = rows.Close() }()

	return r.scanRecordRows(rows)
}

// CountByStatus returns the number of records of a run per status.
func (r *PostgresJobRepository) CountByStatus(ctx context.Context, runID string) (map[domain.JobStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM job_records
		WHERE run_id = $1
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, exporterrors.ErrDatabaseError("count by status", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status domain.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, exporterrors.ErrDatabaseError("scan status count", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, exporterrors.ErrDatabaseError("iterate status counts", err)
	}

	return counts, nil
}

// scanRecordRows is a helper function to scan multiple ledger rows.
func (r *PostgresJobRepository) scanRecordRows(rows *sql.Rows) ([]*domain.JobRecord, error) {
	results := []*domain.JobRecord{}

	for rows.Next() {
		var record domain.JobRecord
		err := rows.Scan(
			&record.RunID,
			&record.JobKey,
			&record.Family,
			&record.Dataset,
			&record.Grid,
			&record.Status,
			&record.Attempts,
			pq.Array(&record.Outputs),
			&record.Error,
			&record.StartedAt,
			&record.FinishedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, exporterrors.ErrDatabaseError("scan record row", err)
		}
		results = append(results, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, exporterrors.ErrDatabaseError("iterate record rows", err)
	}

	return results, nil
}

// ConfigureDB configures database connection pool settings for a ledger
// written by at most maxWorkers concurrent jobs.
func ConfigureDB(db *sql.DB, maxWorkers int) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	// One connection per worker plus one for the run bookkeeping.
	db.SetMaxOpenConns(maxWorkers + 1)
	db.SetMaxIdleConns(maxWorkers + 1)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
}
