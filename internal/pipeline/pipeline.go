// Package pipeline runs the batch flow: raw files are located, decoded,
// normalized per entity and written as cleaned CSVs, then bulk loaded into
// the store in parent-first order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/banksight/internal/config"
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/loader"
	"github.com/JonMunkholm/banksight/internal/logging"
	"github.com/JonMunkholm/banksight/internal/metrics"
	"github.com/JonMunkholm/banksight/internal/store"
)

const tracerName = "github.com/JonMunkholm/banksight/internal/pipeline"

// ErrNoStore is returned by Load when the pipeline was built without a store.
var ErrNoStore = errors.New("pipeline has no store configured")

// Store is the slice of the schema store the load stage needs.
type Store interface {
	RecreateSchema(ctx context.Context) error
	LoadFile(ctx context.Context, table, path string) (store.LoadResult, error)
}

// Invalidator drops cached report results once new data is loaded.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Pipeline cleans and loads every registered entity.
type Pipeline struct {
	reg         *core.Registry
	rawDir      string
	cleanedDir  string
	workers     int
	loadTimeout time.Duration

	store   Store
	cache   Invalidator
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore enables the load stage.
func WithStore(s Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithInvalidator registers a cache to bump after a load.
func WithInvalidator(inv Invalidator) Option {
	return func(p *Pipeline) { p.cache = inv }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New builds a pipeline over reg using the directories and limits in cfg.
func New(reg *core.Registry, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		reg:         reg,
		rawDir:      cfg.RawDir,
		cleanedDir:  cfg.CleanedDir,
		workers:     cfg.Workers,
		loadTimeout: cfg.LoadTimeout,
		tracer:      otel.Tracer(tracerName),
	}
	if p.workers <= 0 {
		p.workers = 1
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EntityResult is the outcome of cleaning one entity.
type EntityResult struct {
	Entity   string        `json:"entity"`
	Source   string        `json:"source,omitempty"`
	Format   string        `json:"format,omitempty"`
	Output   string        `json:"output,omitempty"`
	Stats    core.Stats    `json:"stats"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Missing reports whether the entity was skipped for lack of a raw file.
func (r EntityResult) Missing() bool {
	return errors.Is(r.Err, core.ErrSourceMissing)
}

// TableResult is the outcome of loading one table.
type TableResult struct {
	Table   string `json:"table"`
	Loaded  int64  `json:"loaded"`
	Skipped int    `json:"skipped"`
	Err     error  `json:"-"`
}

// Summary collects a full run.
type Summary struct {
	Entities []EntityResult `json:"entities"`
	Tables   []TableResult  `json:"tables"`
}

// AllFailed reports whether no entity was cleaned.
func (s *Summary) AllFailed() bool {
	if len(s.Entities) == 0 {
		return false
	}
	for _, e := range s.Entities {
		if e.Err == nil {
			return false
		}
	}
	return true
}

// Failed returns how many entities and tables ended in error.
func (s *Summary) Failed() (entities, tables int) {
	for _, e := range s.Entities {
		if e.Err != nil {
			entities++
		}
	}
	for _, t := range s.Tables {
		if t.Err != nil {
			tables++
		}
	}
	return entities, tables
}

// Run cleans every entity and then loads the results.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	entities, err := p.Clean(ctx)
	if err != nil {
		return &Summary{Entities: entities}, err
	}
	tables, err := p.Load(ctx)
	return &Summary{Entities: entities, Tables: tables}, err
}

// Clean normalizes every registered entity on a bounded worker pool.
// Entity failures are recorded in their results; the returned error is
// non-nil only when ctx ends. Results follow registry order.
func (p *Pipeline) Clean(ctx context.Context) ([]EntityResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.clean")
	defer span.End()

	defs := p.reg.All()
	results := make([]EntityResult, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = EntityResult{Entity: def.Info.Key, Err: err}
				return err
			}
			results[i] = p.CleanEntity(gctx, def)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return results, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("pipeline.failed_entities", failed))
	logging.FromContext(ctx).Info("clean stage complete",
		"entities", len(results),
		"failed", failed,
	)
	return results, nil
}

// CleanEntity runs locate, load, normalize and write for one entity.
// On failure any cleaned file left by an earlier run is removed, so the
// load stage reports the entity as missing instead of loading old rows.
func (p *Pipeline) CleanEntity(ctx context.Context, def core.EntityDefinition) EntityResult {
	entity := def.Info.Key
	start := time.Now()
	log := logging.WithFields(ctx, "entity", entity, "stage", "clean")

	_, span := p.tracer.Start(ctx, "pipeline.clean_entity",
		trace.WithAttributes(attribute.String("entity", entity)))
	defer span.End()

	res := EntityResult{Entity: entity}
	fail := func(err error) EntityResult {
		res.Err = err
		// A cleaned file from an earlier run must not be loaded as this run's output.
		if rmErr := os.Remove(CleanedPath(p.cleanedDir, entity)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warn("stale cleaned file not removed", "error", rmErr)
		}
		res.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObserveFailure(entity, "clean")
		if res.Missing() {
			log.Warn("raw file not found, entity skipped", "error", err)
		} else {
			log.Error("entity failed", "error", err)
		}
		return res
	}

	path, err := loader.Locate(p.rawDir, def)
	if err != nil {
		return fail(err)
	}
	res.Source = path

	ds, err := loader.Load(path)
	if err != nil {
		return fail(err)
	}
	res.Format = ds.Format
	log.Debug("raw file decoded",
		"path", path,
		"format", ds.Format,
		"records", len(ds.Records),
		"bytes", ds.Bytes,
	)

	cleaned := core.Normalize(def, ds)
	res.Stats = cleaned.Stats

	out, err := WriteCleaned(p.cleanedDir, cleaned)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", entity, err))
	}
	res.Output = out
	res.Duration = time.Since(start)

	p.metrics.ObserveClean(entity, cleaned.Stats)
	span.SetAttributes(
		attribute.Int("rows.input", cleaned.Stats.InputRows),
		attribute.Int("rows.written", cleaned.Stats.RowsWritten),
	)
	log.Info("entity cleaned",
		"format", ds.Format,
		"input_rows", cleaned.Stats.InputRows,
		"duplicates", cleaned.Stats.DuplicatesDropped,
		"dropped", cleaned.Stats.ValidationDropped,
		"coercion_nulls", cleaned.Stats.CoercionNulls,
		"sentinel_filled", cleaned.Stats.SentinelFilled,
		"rows_written", cleaned.Stats.RowsWritten,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// Load recreates the schema and bulk loads every cleaned file, parents
// first, as a single sequential writer. A table that fails is recorded and
// counts zero; its children may then fail their foreign keys in turn.
// The returned error is non-nil only when the schema cannot be recreated.
func (p *Pipeline) Load(ctx context.Context) ([]TableResult, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	if p.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.loadTimeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.load")
	defer span.End()
	log := logging.WithFields(ctx, "stage", "load")

	if err := p.store.RecreateSchema(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("recreate schema: %w", err)
	}
	log.Info("schema recreated")

	defs := p.reg.All()
	results := make([]TableResult, 0, len(defs))
	for _, def := range defs {
		results = append(results, p.loadTable(ctx, def))
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			log.Warn("report cache invalidation failed", "error", err)
		}
	}

	var loaded int64
	for _, r := range results {
		loaded += r.Loaded
	}
	span.SetAttributes(attribute.Int64("rows.loaded", loaded))
	log.Info("load stage complete", "tables", len(results), "rows", loaded)
	return results, nil
}

func (p *Pipeline) loadTable(ctx context.Context, def core.EntityDefinition) TableResult {
	table := def.Info.Key
	log := logging.WithFields(ctx, "table", table, "stage", "load")

	ctx, span := p.tracer.Start(ctx, "pipeline.load_table",
		trace.WithAttributes(attribute.String("table", table)))
	defer span.End()

	res := TableResult{Table: table}
	path := CleanedPath(p.cleanedDir, table)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		res.Err = fmt.Errorf("%s: cleaned file %s: %w", table, path, core.ErrSourceMissing)
		p.metrics.ObserveFailure(table, "load")
		log.Warn("cleaned file not found, table left empty", "path", path)
		return res
	}

	lr, err := p.store.LoadFile(ctx, table, path)
	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObserveFailure(table, "load")
		log.Error("table load failed", "error", err)
		return res
	}

	res.Loaded = lr.Loaded
	res.Skipped = lr.Skipped
	p.metrics.ObserveLoad(table, lr.Loaded)
	log.Info("table loaded", "rows", lr.Loaded, "skipped", lr.Skipped)
	return res
}
