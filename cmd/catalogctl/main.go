package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/logger"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/registry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/scheduler"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

var (
	// Global flags
	manifestPath string
	jsonOutput   bool
	verbose      bool

	// Logger, replaced once flags are parsed
	log = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Query and manage the player catalog",
	Long: `catalogctl queries the player catalog locally, against a running
player-catalog service, or over MCP for assistants.

Local commands load the bundled data sets (or those named by --manifest)
on first use.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		log, err = logger.New(level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", os.Getenv("CATALOG_MANIFEST"), "data set manifest (default: bundled data sets)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// localCatalog is a catalog backed by an idle scheduler that must be closed
type localCatalog struct {
	*catalog.Catalog
	sched *scheduler.IdleScheduler
}

func (lc *localCatalog) Close() {
	lc.sched.Close()
}

// openCatalog builds a catalog over the manifest or the bundled data sets
func openCatalog(ctx context.Context) (*localCatalog, error) {
	l := log
	reg := registry.Default()
	if manifestPath != "" {
		m, err := dataset.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		if reg, err = registry.FromManifest(m, nil); err != nil {
			return nil, err
		}
	}

	sched := scheduler.New(l.Named("scheduler"))
	sched.Start(ctx)

	return &localCatalog{
		Catalog: catalog.New(reg, sched, catalog.WithLogger(l.Named("catalog"))),
		sched:   sched,
	}, nil
}

// ensureLoaded loads sport and waits for it
func ensureLoaded(ctx context.Context, c *localCatalog, sport models.Sport) error {
	return c.Initialize(sport).Wait(ctx)
}

// parseSportFlag normalizes a --sport value; empty is allowed when optional
func parseSportFlag(raw string, optional bool) (models.Sport, error) {
	if raw == "" && optional {
		return "", nil
	}
	sport, ok := models.ParseSport(raw)
	if !ok {
		return "", fmt.Errorf("unknown sport %q (want one of NBA, NFL, MLB)", raw)
	}
	return sport, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
