package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/climatekit/ascraster/pkg/domain"
)

var _ JobRepository = (*InMemoryJobRepository)(nil)

// InMemoryJobRepository implements JobRepository in process memory.
// Used when no ledger database is configured and in tests.
type InMemoryJobRepository struct {
	mu   sync.RWMutex
	runs map[string]map[string]*domain.JobRecord // run ID -> job key -> record
	now  func() time.Time
}

// NewInMemoryJobRepository creates an empty in-memory ledger.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		runs: make(map[string]map[string]*domain.JobRecord),
		now:  time.Now,
	}
}

// GetRecord returns a copy of the stored record, or nil if there is none.
func (r *InMemoryJobRepository) GetRecord(ctx context.Context, runID, jobKey string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.runs[runID][jobKey]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// UpsertRecord stores a copy of the record.
func (r *InMemoryJobRepository) UpsertRecord(ctx context.Context, record *domain.JobRecord) error {
	return r.BatchUpsertRecords(ctx, []*domain.JobRecord{record})
}

// BatchUpsertRecords stores copies of all records.
func (r *InMemoryJobRepository) BatchUpsertRecords(ctx context.Context, records []*domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, rec := range records {
		run, ok := r.runs[rec.RunID]
		if !ok {
			run = make(map[string]*domain.JobRecord)
			r.runs[rec.RunID] = run
		}
		if keepTerminal(run[rec.JobKey], rec) {
			continue
		}
		stored := copyRecord(rec)
		if stored.Outputs == nil {
			stored.Outputs = []string{}
		}
		stored.UpdatedAt = now
		run[rec.JobKey] = stored
	}
	return nil
}

// ListRun returns copies of every record of a run ordered by job key.
func (r *InMemoryJobRepository) ListRun(ctx context.Context, runID string) ([]*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run := r.runs[runID]
	results := make([]*domain.JobRecord, 0, len(run))
	for _, rec := range run {
		results = append(results, copyRecord(rec))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].JobKey < results[j].JobKey })
	return results, nil
}

// CountByStatus returns the number of records of a run per status.
func (r *InMemoryJobRepository) CountByStatus(ctx context.Context, runID string) (map[domain.JobStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.JobStatus]int)
	for _, rec := range r.runs[runID] {
		counts[rec.Status]++
	}
	return counts, nil
}

func copyRecord(rec *domain.JobRecord) *domain.JobRecord {
	c := *rec
	c.Outputs = append([]string(nil), rec.Outputs...)
	if rec.StartedAt != nil {
		t := *rec.StartedAt
		c.StartedAt = &t
	}
	if rec.FinishedAt != nil {
		t := *rec.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
