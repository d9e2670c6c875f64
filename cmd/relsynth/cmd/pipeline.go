package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dbsmedya/relsynth/internal/config"
	"github.com/dbsmedya/relsynth/internal/database"
	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
	"github.com/dbsmedya/relsynth/internal/jobs"
	"github.com/dbsmedya/relsynth/internal/lock"
	"github.com/dbsmedya/relsynth/internal/logger"
	"github.com/dbsmedya/relsynth/internal/report"
	"github.com/dbsmedya/relsynth/internal/schema"
	"github.com/dbsmedya/relsynth/internal/sink"
	"github.com/dbsmedya/relsynth/internal/sqlutil"
	"github.com/dbsmedya/relsynth/internal/verifier"
)

// source is the reflected and loaded source database.
type source struct {
	dialect  sqlutil.Dialect
	schema   *schema.Schema
	graph    *graph.RelationshipGraph
	original *dataset.Dataset
}

// setup loads config, builds the logger and a signal-aware context.
func setup(o config.Overrides) (*config.Config, *logger.Logger, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnf("Received %s, stopping after the current step...", sig)
	})
	return cfg, log, ctx, stop, nil
}

// loadSource reflects the source schema, builds the relationship graph and
// reads every table. When snapshotDir is set the tables are also saved there.
func loadSource(ctx context.Context, m *database.Manager, log *logger.Logger, snapshotDir string) (*source, error) {
	d, err := m.SourceDialect()
	if err != nil {
		return nil, err
	}
	if err := m.ConnectSource(ctx); err != nil {
		return nil, err
	}

	s, err := schema.Reflect(ctx, m.Source, d)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromSchema(s)
	if err != nil {
		return nil, fmt.Errorf("failed to build relationship graph: %w", err)
	}
	for _, t := range g.CompositeKeyTables() {
		log.WithTable(t).Warn("Composite primary key is not rebuilt")
	}
	log.Infow("Schema reflected", "dialect", d, "tables", len(s.Tables), "groups", len(g.Groups()))
	log.Debug(g.String())

	ds, err := schema.Snapshot(ctx, m.Source, d, s, s.TableNames())
	if err != nil {
		return nil, err
	}

	if snapshotDir != "" {
		files, err := dataset.WriteDir(snapshotDir, ds)
		if err != nil {
			return nil, fmt.Errorf("failed to save source snapshot: %w", err)
		}
		log.Infow("Source tables saved", "dir", snapshotDir, "files", len(files))
	}

	return &source{dialect: d, schema: s, graph: g, original: ds}, nil
}

// newJobService builds the configured job backend.
func newJobService(cfg *config.JobServiceConfig) (jobs.Service, error) {
	switch cfg.Backend {
	case "local":
		return jobs.NewLocal(cfg.Seed), nil
	case "http", "":
		return jobs.NewHTTPClient(cfg.Endpoint, cfg.APIKey, cfg.RequestTimeoutDuration())
	default:
		return nil, fmt.Errorf("unknown job service backend %q", cfg.Backend)
	}
}

// loadPayloads decodes the payload file of each table that names one.
// The same file is decoded only once.
func loadPayloads(tables []string, pathFor func(string) string) (map[string]map[string]any, error) {
	cache := jobs.NewPayloadCache()
	out := make(map[string]map[string]any)
	for _, t := range tables {
		path := pathFor(t)
		if path == "" {
			continue
		}
		payload, err := cache.Load(path)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t, err)
		}
		out[t] = payload
	}
	return out, nil
}

// writeOutputs saves the final tables as CSV and, when configured, into the
// destination database, then checks what was written.
func writeOutputs(ctx context.Context, cfg *config.Config, m *database.Manager, g *graph.RelationshipGraph, ds *dataset.Dataset, log *logger.Logger, p *report.Printer) error {
	var files map[string]string
	if cfg.Output.Dir != "" {
		var err error
		files, err = dataset.WriteDir(cfg.Output.Dir, ds)
		if err != nil {
			return fmt.Errorf("failed to write CSV output: %w", err)
		}
		log.Infow("CSV output written", "dir", cfg.Output.Dir, "tables", len(files))
	}

	if !cfg.Output.WriteDatabase {
		p.Outputs(files, nil)
		return nil
	}

	if cfg.Output.CloneSource {
		if err := sink.CloneSource(ctx, m, cfg, log); err != nil {
			return err
		}
	}
	if err := m.ConnectDestination(ctx); err != nil {
		return err
	}
	d, err := m.DestinationDialect()
	if err != nil {
		return err
	}

	w, err := sink.NewWriter(m.Destination, d, g, cfg.Output.InsertBatch, log)
	if err != nil {
		return err
	}
	var stats *sink.WriteStats
	lockName := lock.Name(destinationName(&cfg.Destination))
	err = lock.WithLock(ctx, m.Destination, d, lockName, lock.TimeoutShort, func() error {
		var werr error
		stats, werr = w.Write(ctx, ds)
		return werr
	})
	if errors.Is(err, lock.ErrLockHeld) {
		return fmt.Errorf("another run is writing to the destination: %w", err)
	}
	if err != nil {
		return err
	}
	p.Outputs(files, stats)

	method, err := verifier.ParseMethod(cfg.Output.Verify)
	if err != nil {
		return err
	}
	v, err := verifier.New(g, log)
	if err != nil {
		return err
	}
	written, err := v.VerifyWritten(ctx, m.Destination, d, ds, method)
	if err != nil {
		return err
	}
	if method != verifier.MethodSkip {
		p.Verification("Written Tables ("+string(method)+")", written)
	}
	return written.Err()
}

// destinationName identifies the destination for its write lock.
func destinationName(db *config.DatabaseConfig) string {
	if db.Path != "" {
		return db.Path
	}
	return db.Database
}

// keyedTablesExcept lists tables with a primary key, minus skip.
func keyedTablesExcept(g *graph.RelationshipGraph, skip []string) []string {
	drop := make(map[string]bool, len(skip))
	for _, t := range skip {
		drop[t] = true
	}
	var out []string
	for _, t := range g.KeyedTables() {
		if !drop[t] {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func newPrinter() *report.Printer {
	p := report.New(outputWriter)
	if noColor {
		p.NoColor()
	}
	return p
}

// newQuietLogger logs warnings and errors only, unless --log-level asks for more.
func newQuietLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := cfg.Logging
	if logLevel == "" {
		lc.Level = "warn"
	}
	return logger.New(&lc)
}

// withDefault adds the default payload under "(default)" when one is set.
func withDefault(paths map[string]string, def string) map[string]string {
	out := make(map[string]string, len(paths)+1)
	for k, v := range paths {
		out[k] = v
	}
	if def != "" {
		out["(default)"] = def
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
