// Command ascraster exports climate datasets as ASCII rasters as described
// by an export configuration document.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	catalogPath string
	outputDir   string
	cacheDir    string
	ledgerDSN   string
	metricsFile string
	sourceRoot  string
	logLevel    string
	logFormat   string
	strict      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ascraster",
		Short:         "Export climate datasets as ASCII rasters",
		Long:          "Plans and runs the export of observational and model climatologies onto target grids, as ArcInfo ASCII rasters.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "ascii_raster.yaml", "export configuration document")
	flags.StringVar(&opts.catalogPath, "catalog", "", "dataset catalog file (default: ASCRASTER_CATALOG or the built-in catalog)")
	flags.StringVar(&opts.outputDir, "output-dir", "", "output root (default: ASCRASTER_OUTPUT_DIR or ./ascii_raster)")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "intermediate cache directory (default: ASCRASTER_CACHE_DIR or ./.ascraster-cache)")
	flags.StringVar(&opts.ledgerDSN, "ledger-dsn", "", "PostgreSQL DSN of the job ledger; \"env\" reads DB_* variables; empty keeps the ledger in memory")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write run metrics to this node exporter textfile")
	flags.StringVar(&opts.sourceRoot, "source-root", "", "root of pre-converted source grids; empty uses the NODATA dev converter")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&opts.strict, "strict", false, "reject unknown configuration keys")

	root.AddCommand(
		newValidateCmd(opts),
		newShowCmd(opts),
		newPlanCmd(opts),
		newRunCmd(opts),
	)
	return root
}

// newLogger builds the process logger from the log flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
