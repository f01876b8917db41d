package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/climatekit/ascraster/pkg/cache"
	"github.com/climatekit/ascraster/pkg/catalog"
	"github.com/climatekit/ascraster/pkg/client"
	"github.com/climatekit/ascraster/pkg/config"
	"github.com/climatekit/ascraster/pkg/db"
	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/format"
	"github.com/climatekit/ascraster/pkg/plan"
	"github.com/climatekit/ascraster/pkg/repository"
)

// app holds what every command derives from the flags and the environment.
type app struct {
	opts     *rootOptions
	logger   *slog.Logger
	registry *format.Registry
}

// newApp builds the logger from the flags; logs go to the command's stderr.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return nil, err
	}
	return &app{opts: opts, logger: logger, registry: format.NewRegistry()}, nil
}

// loadConfig reads and validates the configuration document.
func (a *app) loadConfig() (*config.Config, error) {
	loader := config.NewConfigLoader(a.opts.configPath, a.logger,
		config.WithStrict(a.opts.strict),
		config.WithValidator(config.NewValidator(a.registry.Names()...)),
	)
	return loader.LoadConfig()
}

// settings resolves effective settings. Flags take precedence over ASCRASTER_* variables.
func (a *app) settings(cfg *config.Config) (*config.Settings, error) {
	env, err := config.LoadEnvironment()
	if err != nil {
		return nil, err
	}
	if a.opts.outputDir != "" {
		env.OutputDir = a.opts.outputDir
	}
	if a.opts.cacheDir != "" {
		env.CacheDir = a.opts.cacheDir
	}
	if a.opts.catalogPath != "" {
		env.CatalogPath = a.opts.catalogPath
	}
	return config.Resolve(cfg, env), nil
}

// catalog loads the catalog named by the settings, or the built-in one.
func (a *app) catalog(s *config.Settings) (*catalog.InMemoryCatalog, error) {
	f, err := catalog.Load(s.CatalogPath)
	if err != nil {
		return nil, err
	}
	return catalog.NewInMemoryCatalog(f, s.CatalogPath, a.logger), nil
}

// plan loads everything needed to expand the document into jobs.
func (a *app) plan() (*config.Config, *config.Settings, *catalog.InMemoryCatalog, []*domain.Job, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	s, err := a.settings(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cat, err := a.catalog(s)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	jobs, err := plan.NewPlanner(cat, a.logger).Plan(s)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, s, cat, jobs, nil
}

// converter returns the file converter over --source-root, or the dev converter.
func (a *app) converter() client.Converter {
	if a.opts.sourceRoot == "" {
		a.logger.Warn("No source root given, using the NODATA dev converter")
		return client.NewDevConverter(a.logger)
	}
	return client.NewFileConverter(a.opts.sourceRoot, a.logger)
}

// ledger opens the job ledger. The returned close function is never nil.
func (a *app) ledger(ctx context.Context, workers int) (repository.JobRepository, func(), error) {
	noop := func() {}
	if a.opts.ledgerDSN == "" {
		return repository.NewInMemoryJobRepository(), noop, nil
	}

	var (
		conn *sql.DB
		err  error
	)
	if a.opts.ledgerDSN == "env" {
		var cfg *db.Config
		cfg, err = db.NewConfigFromEnv()
		if err != nil {
			return nil, noop, err
		}
		conn, err = db.Connect(ctx, cfg)
	} else {
		conn, err = db.Open(a.opts.ledgerDSN)
		if err == nil {
			repository.ConfigureDB(conn, workers)
			if err = db.Health(ctx, conn); err != nil {
				_ = conn.Close()
				err = fmt.Errorf("failed to ping database: %w", err)
			}
		}
	}
	if err != nil {
		return nil, noop, err
	}

	repo := repository.NewPostgresJobRepository(conn)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, noop, err
	}
	a.logger.Info("Job ledger connected")
	return repo, func() { _ = conn.Close() }, nil
}

// fieldCache opens the badger cache when lpickle is enabled; nil otherwise.
func (a *app) fieldCache(s *config.Settings) (cache.FieldCache, error) {
	if !s.Pickle {
		return nil, nil
	}
	c, err := cache.OpenBadgerFieldCache(s.CacheDir, a.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
