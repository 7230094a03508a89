// Command analytics computes reconciled POS analytics from a JSON snapshot
// file or the configured database and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/application/ingest"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/infrastructure/cache"
	"github.com/pos/analytics/internal/infrastructure/config"
	"github.com/pos/analytics/internal/infrastructure/export"
	"github.com/pos/analytics/internal/infrastructure/logger"
	"github.com/pos/analytics/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type cliOptions struct {
	configPath string
	input      string
	useDB      bool
	migrate    bool
	groupings  []report.Grouping
	from, to   string
	top        int
	xlsx       string
	scope      string
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var (
		opts  cliOptions
		group string
	)
	fs := flag.NewFlagSet("analytics", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "config file (default: config.toml in ., ./config or /etc/pos-analytics)")
	fs.StringVar(&opts.input, "input", "", "JSON snapshot file, - for stdin")
	fs.BoolVar(&opts.useDB, "db", false, "load the snapshot from the configured database")
	fs.BoolVar(&opts.migrate, "migrate", false, "create the read model tables before loading")
	fs.StringVar(&group, "group", "shop", "comma separated groupings: cashier, shop, product, day, none")
	fs.StringVar(&opts.from, "from", "", "window start date (YYYY-MM-DD)")
	fs.StringVar(&opts.to, "to", "", "window end date (YYYY-MM-DD), inclusive")
	fs.IntVar(&opts.top, "top", 0, "rank the top N groups")
	fs.StringVar(&opts.xlsx, "xlsx", "", "also write the result to this workbook")
	fs.StringVar(&opts.scope, "scope", "default", "cache scope of the data source")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if (opts.input == "") == !opts.useDB {
		return cliOptions{}, errors.New("exactly one of -input or -db is required")
	}

	seen := make(map[report.Grouping]bool)
	for _, part := range strings.Split(group, ",") {
		g, err := report.ParseGrouping(part)
		if err != nil {
			return cliOptions{}, err
		}
		if !seen[g] {
			seen[g] = true
			opts.groupings = append(opts.groupings, g)
		}
	}
	return opts, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// readSnapshot decodes a snapshot keeping numbers as json.Number so that
// amounts are never rounded through float64.
func readSnapshot(r io.Reader) (ingest.Snapshot, error) {
	var snapshot ingest.Snapshot
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&snapshot); err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	stdin  io.Reader
	stdout io.Writer
}

func (a *app) source(opts cliOptions) (analytics.SnapshotSource, func(), error) {
	if opts.input != "" {
		var r io.Reader = a.stdin
		if opts.input != "-" {
			f, err := os.Open(opts.input)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open input: %w", err)
			}
			defer f.Close()
			r = f
		}
		snapshot, err := readSnapshot(r)
		if err != nil {
			return nil, nil, err
		}
		return analytics.StaticSnapshot(snapshot), func() {}, nil
	}

	db, err := persistence.NewDatabase(&a.cfg.Database,
		persistence.WithDatabaseLogger(logger.Named(a.log, "gorm")),
		persistence.WithLogLevel(logger.MapGormLogLevel(a.cfg.Log.Level)),
	)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			a.log.Error("Error closing database", zap.Error(err))
		}
	}
	if opts.migrate {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	a.log.Info("Database connected", zap.String("driver", a.cfg.Database.Driver))
	return persistence.NewGormSnapshotRepository(db.DB, persistence.WithRepositoryLogger(logger.Named(a.log, "snapshot"))), closeDB, nil
}

func (a *app) compute(ctx context.Context, opts cliOptions, source analytics.SnapshotSource) (map[report.Grouping]*analytics.Result, error) {
	svc := analytics.NewService(
		analytics.WithLogger(a.log),
		analytics.WithDefaults(a.cfg.Analytics.Options()),
		analytics.WithIssueLimit(a.cfg.Analytics.MaxIssues),
	)
	loc := svc.Defaults().Location()

	start, err := parseDate(opts.from, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(opts.to, loc)
	if err != nil {
		return nil, err
	}
	q := analytics.Query{StartDate: start, EndDate: end, RankTopN: opts.top, Now: time.Now()}

	if !a.cfg.Cache.Enabled {
		return svc.RunMany(ctx, source, q, opts.groupings...)
	}

	factory := cache.NewReportCacheFactory(a.cfg.Redis, a.cfg.Cache, cache.WithLogger(logger.Named(a.log, "redis")))
	reportCache, err := factory.CreateCache()
	if err != nil {
		return nil, err
	}
	defer reportCache.Close()

	cached := analytics.NewCachedService(svc, reportCache,
		analytics.WithTTL(a.cfg.Cache.TTL),
		analytics.WithKeyPrefix(a.cfg.Cache.KeyPrefix),
		analytics.WithCacheLogger(logger.Named(a.log, "cache")),
	)
	results := make(map[report.Grouping]*analytics.Result, len(opts.groupings))
	for _, g := range opts.groupings {
		gq := q
		gq.Grouping = g
		res, err := cached.Run(ctx, opts.scope, source, gq)
		if err != nil {
			return nil, err
		}
		results[g] = res
	}
	return results, nil
}

func (a *app) run(ctx context.Context, opts cliOptions) error {
	source, closeSource, err := a.source(opts)
	if err != nil {
		return err
	}
	defer closeSource()

	results, err := a.compute(ctx, opts, source)
	if err != nil {
		return err
	}

	if opts.xlsx != "" {
		loc := a.cfg.Analytics.Options().Location()
		if err := export.WriteFile(opts.xlsx, loc, results); err != nil {
			return err
		}
		a.log.Info("Workbook written", zap.String("path", opts.xlsx))
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if len(opts.groupings) == 1 {
		return enc.Encode(results[opts.groupings[0]])
	}
	return enc.Encode(results)
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration: "+err.Error())
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger: "+err.Error())
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: logger.With(log, zap.String("app", cfg.App.Name)), stdin: os.Stdin, stdout: os.Stdout}
	if err := a.run(ctx, opts); err != nil {
		log.Error("Analytics run failed", zap.Error(err))
		stop()
		_ = logger.Sync(log)
		os.Exit(1)
	}
}
