package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/climatekit/ascraster/pkg/config"
	"github.com/climatekit/ascraster/pkg/metrics"
	"github.com/climatekit/ascraster/pkg/runner"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			for _, key := range cfg.UnknownKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: unknown key %q ignored\n", key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d grids, %d formats)\n",
				opts.configPath, cfg.Grids.Len(), cfg.Formats.Len())
			return nil
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var effective bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the normalized configuration document",
		Long:  "Prints the document as loaded, keeping null, empty and absent keys apart. With --effective, prints the settings after defaults and environment overrides instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			var out []byte
			if effective {
				s, err := a.settings(cfg)
				if err != nil {
					return err
				}
				out, err = yaml.Marshal(s)
				if err != nil {
					return fmt.Errorf("failed to serialize settings: %w", err)
				}
			} else {
				out, err = config.Marshal(cfg)
				if err != nil {
					return err
				}
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&effective, "effective", false, "print effective settings instead of the document")
	return cmd
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the export jobs the document expands to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			_, _, _, jobs, err := a.plan()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}
			for _, job := range jobs {
				fmt.Fprintln(out, job.Key())
			}
			fmt.Fprintf(out, "%d jobs\n", len(jobs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print jobs as JSON")
	return cmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Convert and write every planned job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			_, s, cat, jobs, err := a.plan()
			if err != nil {
				return err
			}

			writers, err := runner.BuildWriters(a.registry, s.Formats)
			if err != nil {
				return err
			}

			ledger, closeLedger, err := a.ledger(ctx, s.NP)
			if err != nil {
				return err
			}
			defer closeLedger()

			fieldCache, err := a.fieldCache(s)
			if err != nil {
				return err
			}
			if fieldCache != nil {
				defer func() { _ = fieldCache.Close() }()
			}

			m := metrics.New()
			runOpts := []runner.Option{runner.WithLedger(ledger), runner.WithMetrics(m)}
			if fieldCache != nil {
				runOpts = append(runOpts, runner.WithCache(fieldCache))
			}

			r := runner.NewRunner(a.converter(), cat, writers, a.logger, runner.OptionsFromSettings(s), runOpts...)
			summary, runErr := r.Run(ctx, jobs)
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d done, %d skipped, %d failed, %d pending, %d rasters in %s\n",
					summary.RunID, summary.Done, summary.Skipped, summary.Failed, summary.Pending,
					summary.Rasters, summary.Duration.Round(time.Millisecond))
			}

			if opts.metricsFile != "" {
				if err := m.WriteTextfile(opts.metricsFile); err != nil {
					a.logger.Error("Failed to write metrics", "path", opts.metricsFile, "error", err)
				}
			}
			return runErr
		},
	}
}
