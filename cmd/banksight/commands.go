package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/banksight/internal/config"
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/core/tables"
	"github.com/JonMunkholm/banksight/internal/ledger"
	"github.com/JonMunkholm/banksight/internal/logging"
	"github.com/JonMunkholm/banksight/internal/metrics"
	"github.com/JonMunkholm/banksight/internal/pipeline"
	"github.com/JonMunkholm/banksight/internal/report"
	"github.com/JonMunkholm/banksight/internal/store"
	"github.com/JonMunkholm/banksight/internal/web"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: banksight <command> [flags]

commands:
  clean          normalize raw files into cleaned CSVs
  load           recreate the schema and load cleaned CSVs
  run            clean, then load
  report [id]    list reports, or run one and print it
  serve          start the HTTP API
`

// app carries what every command shares.
type app struct {
	cfg      *config.Config
	out      io.Writer
	reg      *core.Registry
	prom     *prometheus.Registry
	metrics  *metrics.Metrics
	openPool func(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "banksight: %v\n", err)
		return exitFailure
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		out:      stdout,
		reg:      tables.NewRegistry(),
		prom:     prom,
		metrics:  metrics.New(prom),
		openPool: openPool,
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "clean":
		err = a.clean(ctx)
	case "load":
		err = a.load(ctx)
	case "run":
		err = a.runAll(ctx)
	case "report":
		err = a.report(ctx, rest)
	case "serve":
		err = a.serve(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "banksight: unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	var uerr usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr):
		fmt.Fprintf(stderr, "banksight %s: %v\n", cmd, err)
		return exitUsage
	default:
		msg := core.MapError(err)
		slog.Error("command failed", "command", cmd, "error", err, "code", msg.Code)
		fmt.Fprintf(stderr, "banksight %s: %s (%s)\n  %v\n", cmd, msg.Message, msg.Code, err)
		return exitFailure
	}
}

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// errAllEntitiesFailed is returned when no entity could be cleaned.
var errAllEntitiesFailed = errors.New("every entity failed to clean")

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// connect opens the pool for store-backed commands.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, *store.Store, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := a.openPool(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to database", "max_conns", a.cfg.Database.MaxConns)
	return pool, store.New(pool, a.reg), nil
}

// reports builds the report service, with the Redis cache when configured
// and reachable.
func (a *app) reports(ctx context.Context, q report.Querier) (*report.Service, func()) {
	opts := []report.Option{
		report.WithMetrics(a.metrics),
		report.WithLimiter(report.NewLimiter(a.cfg.Report.MaxConcurrent, a.cfg.Report.MaxWait)),
	}
	closeCache := func() {}

	if a.cfg.Cache.Enabled() {
		cache, err := report.NewRedisCache(a.cfg.Cache.RedisURL, a.cfg.Cache.TTL, slog.Default())
		if err == nil {
			err = cache.Ping(ctx)
		}
		if err != nil {
			slog.Warn("report cache disabled", "error", err)
		} else {
			opts = append(opts, report.WithCache(cache))
			closeCache = func() { _ = cache.Close() }
		}
	}
	return report.NewService(q, opts...), closeCache
}

func (a *app) pipeline(opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append([]pipeline.Option{pipeline.WithMetrics(a.metrics)}, opts...)
	return pipeline.New(a.reg, a.cfg.Pipeline, opts...)
}

func (a *app) clean(ctx context.Context) error {
	results, err := a.pipeline().Clean(ctx)
	printEntities(a.out, results)
	if err != nil {
		return err
	}
	if (&pipeline.Summary{Entities: results}).AllFailed() {
		return errAllEntitiesFailed
	}
	return nil
}

func (a *app) load(ctx context.Context) error {
	pool, st, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, closeCache := a.reports(ctx, st)
	defer closeCache()

	results, err := a.pipeline(pipeline.WithStore(st), pipeline.WithInvalidator(svc)).Load(ctx)
	printTables(a.out, results)
	return err
}

func (a *app) runAll(ctx context.Context) error {
	pool, st, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, closeCache := a.reports(ctx, st)
	defer closeCache()

	summary, err := a.pipeline(pipeline.WithStore(st), pipeline.WithInvalidator(svc)).Run(ctx)
	printEntities(a.out, summary.Entities)
	if len(summary.Tables) > 0 {
		fmt.Fprintln(a.out)
		printTables(a.out, summary.Tables)
	}
	if err != nil {
		return err
	}
	if summary.AllFailed() {
		return errAllEntitiesFailed
	}
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}

	if fs.NArg() == 0 {
		printCatalog(a.out, report.List())
		return nil
	}
	if fs.NArg() > 1 {
		return usageError{msg: "expected at most one report id"}
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return usageError{msg: fmt.Sprintf("report id %q is not a number", fs.Arg(0))}
	}
	meta, ok := report.Get(id)
	if !ok {
		return &core.NotFoundError{Kind: "report", Key: fs.Arg(0)}
	}

	pool, st, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, closeCache := a.reports(ctx, st)
	defer closeCache()

	result, err := svc.Run(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d. %s\n\n", meta.ID, meta.Title)
	printResult(a.out, result)
	return nil
}

func (a *app) serve(ctx context.Context) error {
	pool, st, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, closeCache := a.reports(ctx, st)
	defer closeCache()

	server := web.NewServer(a.cfg.Server, web.Deps{
		Tables:   st,
		Reports:  svc,
		Ledger:   ledger.New(pool, ledger.WithMetrics(a.metrics)),
		Metrics:  a.metrics,
		Gatherer: a.prom,
		Ping:     pool.Ping,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printEntities(w io.Writer, results []pipeline.EntityResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tFORMAT\tINPUT\tDUPLICATES\tDROPPED\tNULLS\tWRITTEN\tSTATUS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Entity, orDash(r.Format),
			r.Stats.InputRows, r.Stats.DuplicatesDropped, r.Stats.ValidationDropped,
			r.Stats.CoercionNulls, r.Stats.RowsWritten, status(r.Err))
	}
	tw.Flush()
}

func printTables(w io.Writer, results []pipeline.TableResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tLOADED\tSKIPPED\tSTATUS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Table, r.Loaded, r.Skipped, status(r.Err))
	}
	tw.Flush()
}

func printCatalog(w io.Writer, reports []report.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Category, r.Title)
	}
	tw.Flush()
}

func printResult(w io.Writer, result *core.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, col := range result.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range result.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, formatValue(v))
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n(%d rows)\n", result.Len())
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	default:
		return fmt.Sprint(t)
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrSourceMissing):
		return "skipped: no source file"
	default:
		return "failed: " + core.MapError(err).Code
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
