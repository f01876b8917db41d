package repository

import (
	"context"

	"github.com/climatekit/ascraster/pkg/domain"
)

// JobRepository defines the interface for the job ledger: one record per job per run.
// This interface abstracts database operations to allow for testing and different implementations.
type JobRepository interface {
	// GetRecord retrieves the ledger entry of one job in one run.
	// Returns nil if the job has no record in that run.
	GetRecord(ctx context.Context, runID, jobKey string) (*domain.JobRecord, error)

	// UpsertRecord creates or updates a single ledger entry.
	// Uses INSERT ... ON CONFLICT (run_id, job_key) DO UPDATE.
	// A terminal record is never moved back to pending.
	UpsertRecord(ctx context.Context, record *domain.JobRecord) error

	// BatchUpsertRecords upserts many ledger entries in a single query.
	// Used to register every planned job of a run before workers start.
	BatchUpsertRecords(ctx context.Context, records []*domain.JobRecord) error

	// ListRun returns every record of a run ordered by job key.
	// Returns empty slice if the run is unknown.
	ListRun(ctx context.Context, runID string) ([]*domain.JobRecord, error)

	// CountByStatus returns the number of records of a run per status.
	CountByStatus(ctx context.Context, runID string) (map[domain.JobStatus]int, error)
}

// keepTerminal reports whether an incoming record must not replace the stored one.
func keepTerminal(stored, incoming *domain.JobRecord) bool {
	return stored != nil && stored.Status.IsTerminal() && incoming.Status == domain.JobStatusPending
}
