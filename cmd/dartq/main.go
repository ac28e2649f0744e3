package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/dartq/internal/collect"
	"github.com/TobiSchelling/dartq/internal/config"
	"github.com/TobiSchelling/dartq/internal/dart"
	"github.com/TobiSchelling/dartq/internal/database"
	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/pipeline"
	"github.com/TobiSchelling/dartq/internal/report"
	"github.com/TobiSchelling/dartq/internal/resolve"
	"github.com/TobiSchelling/dartq/internal/server"
	"github.com/TobiSchelling/dartq/internal/storage"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dartq",
	Short:   "Quarterly financials from Open DART",
	Long:    "dartq collects revenue and operating income filings from Open DART, caches them, and derives a discrete quarterly series.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("info")

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil && configPath != "" {
			return err
		}
		if err != nil {
			log.Debug().Err(err).Msg("no config file; using defaults")
			cfg = config.Default()
		} else if cfg, err = config.Load(path); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		setupLogging(cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
}

func setupLogging(level string) {
	lvl := log.ParseLevel(level)
	if verbose {
		lvl = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:  lvl,
		Writer: &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: log.IsTerminal(os.Stderr.Fd())},
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dartq", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/dartq/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Put your Open DART API key in DART_API_KEY (or a .env file).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and directory status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Cache backend: %s\n\n", cfg.Storage.Type)
		fmt.Println("SQLite cache:")
		fmt.Printf("  Cached line items: %d\n", stats.CachedRows)
		fmt.Printf("  Cached entities: %d\n", stats.CachedEntities)
		fmt.Println("\nDirectory:")
		fmt.Printf("  Entities: %d\n", stats.DirectorySize)
		fmt.Println("\nBatch:")
		fmt.Printf("  Processed: %d (%d empty)\n", stats.ProcessedCorps, stats.EmptyCorps)
		if stats.LastProcessedAt != "" {
			fmt.Printf("  Last processed: %s\n", stats.LastProcessedAt)
		}
		if statusEntity != "" {
			store, err := storage.Open(cmd.Context(), cfg, db)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer store.Close()
			n, err := store.Count(cmd.Context(), statusEntity)
			if err != nil {
				return fmt.Errorf("counting cached items: %w", err)
			}
			fmt.Printf("\nEntity %s: %d cached line items (%s)\n", statusEntity, n, cfg.Storage.Type)
		}
		if cfg.APIKey() == "" {
			fmt.Printf("\nWarning: %s is not set; remote fetches will fail.\n", cfg.DART.APIKeyEnv)
		}
		return nil
	},
}

var statusEntity string

func init() {
	statusCmd.Flags().StringVarP(&statusEntity, "entity", "e", "", "Also count cached line items for this corp code in the configured backend")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the Open DART entity directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := newResolver(db).Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d entities.\n", n)
		return nil
	},
}

// --- metrics command ---

var (
	metricsPeriod   string
	metricsFormat   string
	metricsProgress bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <company name>",
	Short: "Show the quarterly revenue and operating income of a company",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var progress collect.ProgressFunc
		if metricsProgress {
			progress = printProgress
		}
		svc, closeFn, err := newService(cmd.Context(), progress)
		if err != nil {
			return err
		}
		defer closeFn()

		name := strings.Join(args, " ")
		period := metricsPeriod
		if period == "" {
			period = cfg.Batch.Period
		}

		m, err := svc.MetricsByName(cmd.Context(), name, period)
		if err != nil && !errors.Is(err, filing.ErrNoData) {
			return err
		}

		switch metricsFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		case "markdown", "":
			title := fmt.Sprintf("%s (%s) through %s", name, m.EntityID, m.Target)
			fmt.Print(report.Markdown(title, report.Rows(m.Quarters)))
			return nil
		}
		return fmt.Errorf("unknown format %q (markdown or json)", metricsFormat)
	},
}

func init() {
	metricsCmd.Flags().StringVarP(&metricsPeriod, "period", "p", "", "Target period as YYYYMM (default batch.period)")
	metricsCmd.Flags().StringVarP(&metricsFormat, "format", "f", "markdown", "Output format: markdown or json")
	metricsCmd.Flags().BoolVar(&metricsProgress, "progress", false, "Print collection progress to stderr")
}

func printProgress(e collect.Event) {
	switch e.Kind {
	case collect.EventCacheScanned:
		fmt.Fprintf(os.Stderr, "cache: %d hit, %d missing\n", e.Succeeded, e.Tasks)
	case collect.EventProbeStarted:
		fmt.Fprintf(os.Stderr, "probing statement basis over %d periods...\n", e.Tasks)
	case collect.EventProbeResolved:
		basis := "unresolved"
		if e.Variant != 0 {
			basis = e.Variant.String()
		}
		fmt.Fprintf(os.Stderr, "basis: %s (%d probes)\n", basis, e.Tasks)
	case collect.EventFetchStarted:
		fmt.Fprintf(os.Stderr, "fetching %d statements...\n", e.Tasks)
	case collect.EventFetchCompleted:
		fmt.Fprintf(os.Stderr, "fetched %d, %d without data\n", e.Succeeded, e.Failed)
	}
}

// --- batch command ---

var (
	batchSize   int
	batchPeriod string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Collect metrics for the next unprocessed directory entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := newService(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closeFn()

		size, period := batchSize, batchPeriod
		if size <= 0 {
			size = cfg.Batch.Size
		}
		if period == "" {
			period = cfg.Batch.Period
		}

		res, err := svc.Batch(cmd.Context(), size, period)
		if res != nil {
			if len(res.Entries) == 0 && err == nil {
				fmt.Println("No unprocessed entities. Run 'dartq sync' to refresh the directory.")
			}
			for _, e := range res.Entries {
				fmt.Printf("  %s %-20s %-6s %d quarters\n", e.Corp.Code, e.Corp.Name, e.Status, e.Quarters)
			}
		}
		return err
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchSize, "size", "n", 0, "Entities to process (default batch.size)")
	batchCmd.Flags().StringVarP(&batchPeriod, "period", "p", "", "Target period as YYYYMM (default batch.period)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := newService(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closeFn()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv, err := server.New(svc, cfg.Batch.Period)
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cmd.Context(), srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default server.port)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "dartq.db")
	return database.Open(dbPath)
}

func newClient() *dart.Client {
	if cfg.APIKey() == "" {
		log.Warn().Str("env", cfg.DART.APIKeyEnv).Msg("Open DART API key is not set")
	}
	return dart.NewClient(cfg.APIKey(),
		dart.WithBaseURL(cfg.DART.BaseURL),
		dart.WithTimeout(cfg.DART.Timeout),
		dart.WithRateLimit(cfg.DART.RateLimit),
	)
}

func newResolver(db *database.DB) *resolve.Resolver {
	return resolve.New(db, newClient(), cfg.DART.DirectoryRefresh)
}

// newService wires the configured cache backend, the DART client and the
// directory resolver. The returned func releases them.
func newService(ctx context.Context, progress collect.ProgressFunc) (*pipeline.Service, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	client := newClient()
	resolver := resolve.New(db, client, cfg.DART.DirectoryRefresh)
	svc := pipeline.New(cfg, db, store, client, resolver, progress)
	return svc, func() {
		store.Close()
		db.Close()
	}, nil
}
