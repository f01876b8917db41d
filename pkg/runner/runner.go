// Package runner executes planned export jobs on a bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/climatekit/ascraster/pkg/cache"
	"github.com/climatekit/ascraster/pkg/catalog"
	"github.com/climatekit/ascraster/pkg/client"
	"github.com/climatekit/ascraster/pkg/common"
	"github.com/climatekit/ascraster/pkg/config"
	"github.com/climatekit/ascraster/pkg/domain"
	exporterrors "github.com/climatekit/ascraster/pkg/errors"
	"github.com/climatekit/ascraster/pkg/format"
	"github.com/climatekit/ascraster/pkg/metrics"
	"github.com/climatekit/ascraster/pkg/raster"
	"github.com/climatekit/ascraster/pkg/repository"
)

const (
	// DefaultMaxAttempts is the number of Convert calls made for a job
	// before a retryable error fails it.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the wait before the first retry; it doubles after each attempt.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMinOutputBytes is the size below which an existing output is
	// treated as truncated. A header-only ASCII grid is about 100 bytes.
	DefaultMinOutputBytes = 128
)

// Options control a run.
type Options struct {
	Workers        int
	Overwrite      bool
	Debug          bool
	Pickle         bool // reuse cached conversions
	OutputDir      string
	MinOutputBytes int64
	MaxAttempts    int
	RetryDelay     time.Duration
}

// OptionsFromSettings derives run options from effective settings.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		Workers:        s.NP,
		Overwrite:      s.Overwrite,
		Debug:          s.Debug,
		Pickle:         s.Pickle,
		OutputDir:      s.OutputDir,
		MinOutputBytes: DefaultMinOutputBytes,
		MaxAttempts:    DefaultMaxAttempts,
		RetryDelay:     DefaultRetryDelay,
	}
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID    string
	Total    int
	Done     int
	Skipped  int
	Failed   int
	Pending  int // not started because the run was cancelled
	Rasters  int
	Duration time.Duration
}

// Runner converts jobs and writes their rasters in every configured format.
type Runner struct {
	converter client.Converter
	catalog   catalog.Catalog
	writers   []format.Writer
	ledger    repository.JobRepository
	cache     cache.FieldCache
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithLedger records job outcomes in repo instead of an in-memory ledger.
func WithLedger(repo repository.JobRepository) Option {
	return func(r *Runner) { r.ledger = repo }
}

// WithCache enables reuse of converted rasters when Options.Pickle is set.
func WithCache(c cache.FieldCache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner. Zero option values fall back to the defaults.
func NewRunner(conv client.Converter, cat catalog.Catalog, writers []format.Writer, logger *slog.Logger, opts Options, options ...Option) *Runner {
	if opts.Workers < 1 {
		opts.Workers = config.DefaultNP
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}

	r := &Runner{
		converter: conv,
		catalog:   cat,
		writers:   writers,
		ledger:    repository.NewInMemoryJobRepository(),
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run processes jobs with at most Options.Workers in parallel. A failed job
// does not stop the others; the returned error joins every job failure.
// Cancelling ctx stops scheduling new jobs and leaves them pending.
func (r *Runner) Run(ctx context.Context, jobs []*domain.Job) (*Summary, error) {
	start := r.now()
	runID := uuid.NewString()
	summary := &Summary{RunID: runID, Total: len(jobs)}

	records := make([]*domain.JobRecord, len(jobs))
	for i, job := range jobs {
		records[i] = domain.NewJobRecord(runID, job)
	}
	if err := r.ledger.BatchUpsertRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	r.logger.Info("Run started",
		"run_id", runID,
		"jobs", len(jobs),
		"workers", r.opts.Workers,
		"overwrite", r.opts.Overwrite,
		"debug", r.opts.Debug,
	)

	var (
		mu   sync.Mutex
		errs []error
	)

	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		job := job
		rec := records[i]
		g.Go(func() error {
			// g.Go blocks for a free worker, so the run may have been cancelled meanwhile.
			if ctx.Err() != nil {
				return nil
			}
			written, err := r.runJob(ctx, job, rec)

			mu.Lock()
			defer mu.Unlock()
			summary.Rasters += written
			switch rec.Status {
			case domain.JobStatusDone:
				summary.Done++
			case domain.JobStatusSkipped:
				summary.Skipped++
			case domain.JobStatusFailed:
				summary.Failed++
			}
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Pending = summary.Total - summary.Done - summary.Skipped - summary.Failed
	summary.Duration = r.now().Sub(start)
	if err := ctx.Err(); err != nil && summary.Pending > 0 {
		errs = append(errs, fmt.Errorf("run cancelled with %d jobs pending: %w", summary.Pending, err))
	}
	r.metrics.MarkRunFinished(r.now())

	r.logger.Info("Run finished",
		"run_id", runID,
		"done", summary.Done,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"pending", summary.Pending,
		"rasters", summary.Rasters,
		"duration", summary.Duration,
	)

	return summary, errors.Join(errs...)
}

// runJob processes one job and records its outcome in rec.
func (r *Runner) runJob(ctx context.Context, job *domain.Job, rec *domain.JobRecord) (int, error) {
	started := r.now()
	rec.StartedAt = &started
	logger := r.logger.With("run_id", rec.RunID, "job", job.Key())

	grid := r.catalog.Grid(job.Grid, job.GridResolution)
	if grid == nil {
		return 0, r.fail(ctx, logger, job, rec, exporterrors.ErrGridNotFound(job.Grid, job.GridResolution))
	}

	sources, err := r.converter.Sources(ctx, job)
	if err != nil {
		return 0, r.fail(ctx, logger, job, rec, exporterrors.ErrConversionFailed(job.Key(), err))
	}
	newest, err := common.NewestModTime(sources)
	if err != nil {
		return 0, r.fail(ctx, logger, job, rec, exporterrors.ErrConversionFailed(job.Key(), err))
	}

	if !r.opts.Overwrite {
		outputs, manifests, ok, err := r.existingOutputs(job)
		if err != nil {
			logger.Warn("Failed to inspect existing outputs", "error", err)
		}
		if ok {
			fresh, err := common.IsFresh(outputs, r.opts.MinOutputBytes, newest)
			if err == nil && fresh {
				fresh, err = common.IsFresh(manifests, 0, newest)
			}
			if err != nil {
				logger.Warn("Failed to check output age", "error", err)
			}
			if fresh {
				rec.Outputs = outputs
				r.finish(ctx, logger, job, rec, domain.JobStatusSkipped)
				logger.Info("Job skipped, outputs up to date", "outputs", len(outputs))
				return 0, nil
			}
		}
	}

	rasters, err := r.load(ctx, logger, job, grid, newest, rec)
	if err != nil {
		return 0, r.fail(ctx, logger, job, rec, exporterrors.ErrConversionFailed(job.Key(), err))
	}

	if err := r.removeManifests(job); err != nil {
		return 0, r.fail(ctx, logger, job, rec, err)
	}
	outputs, err := r.write(job, rasters)
	rec.Outputs = outputs
	if err != nil {
		return len(outputs), r.fail(ctx, logger, job, rec, err)
	}
	if err := r.writeManifests(job, outputs); err != nil {
		return len(outputs), r.fail(ctx, logger, job, rec, err)
	}

	r.finish(ctx, logger, job, rec, domain.JobStatusDone)
	logger.Info("Job done", "rasters", len(outputs), "attempts", rec.Attempts, "duration", rec.Duration())
	return len(outputs), nil
}

// load returns the job's rasters from the cache when they are newer than
// every source, and converts them otherwise.
func (r *Runner) load(ctx context.Context, logger *slog.Logger, job *domain.Job, grid *domain.GridDefinition, newest time.Time, rec *domain.JobRecord) ([]*raster.Raster, error) {
	useCache := r.opts.Pickle && r.cache != nil
	key := cacheKey(job)

	if useCache {
		entry, err := r.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("Cache lookup failed", "error", err)
		}
		hit := entry != nil && entry.StoredAt.After(newest) && len(entry.Rasters) > 0
		r.metrics.RecordCacheLookup(hit)
		if hit {
			logger.Debug("Using cached rasters", "stored_at", entry.StoredAt)
			return entry.Rasters, nil
		}
	}

	rasters, err := r.convert(ctx, logger, job, grid, rec)
	if err != nil {
		return nil, err
	}
	if len(rasters) == 0 {
		return nil, fmt.Errorf("converter returned no rasters")
	}

	if useCache {
		if err := r.cache.Put(ctx, key, rasters); err != nil {
			logger.Warn("Failed to cache rasters", "error", err)
		}
	}
	return rasters, nil
}

// convert calls the converter, retrying retryable errors with exponential backoff.
func (r *Runner) convert(ctx context.Context, logger *slog.Logger, job *domain.Job, grid *domain.GridDefinition, rec *domain.JobRecord) ([]*raster.Raster, error) {
	delay := r.opts.RetryDelay
	for {
		rec.Attempts++
		rasters, err := r.converter.Convert(ctx, job, grid)
		if err == nil {
			return rasters, nil
		}
		if rec.Attempts >= r.opts.MaxAttempts || !client.IsRetryableError(err) {
			return nil, err
		}

		logger.Warn("Conversion failed, retrying",
			"attempt", rec.Attempts,
			"max_attempts", r.opts.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		r.metrics.RecordRetry()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// write stores every raster in every format and returns the written paths.
func (r *Runner) write(job *domain.Job, rasters []*raster.Raster) ([]string, error) {
	var outputs []string
	for _, w := range r.writers {
		dir := OutputDir(r.opts.OutputDir, w, job)
		prefix := ""
		if r.opts.Debug {
			prefix = DebugPrefix
		}

		n := 0
		for _, rs := range rasters {
			path := filepath.Join(dir, prefix+w.FileName(rs))
			if err := w.Write(path, rs); err != nil {
				r.metrics.RecordRasters(w.Name(), n)
				return outputs, err
			}
			outputs = append(outputs, path)
			n++
		}
		r.metrics.RecordRasters(w.Name(), n)
	}
	sort.Strings(outputs)
	return outputs, nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, job *domain.Job, rec *domain.JobRecord, err error) error {
	rec.Error = err.Error()
	r.finish(ctx, logger, job, rec, domain.JobStatusFailed)
	logger.Error("Job failed", "attempts", rec.Attempts, "error", err)
	return err
}

// finish stores the terminal state of rec in the ledger and the metrics.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, job *domain.Job, rec *domain.JobRecord, status domain.JobStatus) {
	finished := r.now()
	rec.FinishedAt = &finished
	rec.Status = status

	// The ledger write must not be lost to a cancelled run.
	if err := r.ledger.UpsertRecord(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("Failed to record job outcome", "status", status, "error", err)
	}
	r.metrics.RecordJob(job.Family, status, rec.Duration())
}

// cacheKey identifies a conversion: the job plus its variable selection.
func cacheKey(job *domain.Job) string {
	if job.Variables == nil {
		return job.Key()
	}
	return job.Key() + "?vars=" + strings.Join(job.Variables, ",")
}
