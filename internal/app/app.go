// Package app provides application-level wiring: it turns a loaded Config
// into a ready Engine with its registry, connectors, cache store, audit
// sinks, and refresh scheduler.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"dataquery/internal/audit"
	"dataquery/internal/cache"
	"dataquery/internal/config"
	"dataquery/internal/connector"
	"dataquery/internal/db"
	"dataquery/internal/domain"
	"dataquery/internal/engine"
	"dataquery/internal/refresh"
	"dataquery/internal/registry"
)

// App holds the fully-wired engine and the handles a caller needs to use and
// shut it down.
type App struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *registry.Registry
	Engine   *engine.Engine

	// AuditReader serves audit listings from the read pool.
	AuditReader *audit.SQLiteRepo
	// Scheduler is non-nil when at least one spec declares a refresh
	// expression. It is created stopped; callers decide whether to Start it.
	Scheduler *refresh.Scheduler

	writeDB *sql.DB
	readDB  *sql.DB
}

// New loads the spec registry and wires connectors, cache, audit, and the
// engine from cfg. The SQLite state store is opened and migrated in all
// configurations: the audit trail lives there even when the cache is
// in-memory.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	reg, err := registry.Load(cfg.SpecDir)
	if err != nil {
		return nil, fmt.Errorf("load specs from %s: %w", cfg.SpecDir, err)
	}
	logger.Info("specs loaded", "dir", cfg.SpecDir, "count", reg.Len(), "checksum", reg.Checksum()[:12])

	writeDB, readDB, err := db.OpenSQLitePair(cfg.MetaDBPath, 0)
	if err != nil {
		return nil, fmt.Errorf("open state store %s: %w", cfg.MetaDBPath, err)
	}
	if err := db.RunMigrations(writeDB); err != nil {
		closePair(writeDB, readDB)
		return nil, fmt.Errorf("migrate state store: %w", err)
	}

	var store domain.CacheStore
	switch cfg.CacheBackend {
	case config.CacheBackendSQLite:
		store = cache.NewSQLite(writeDB)
	default:
		store = cache.NewMemory()
	}

	var sink domain.AuditSink = audit.NewSQLiteRepo(writeDB)
	if cfg.AuditLogPath != "" {
		sink = audit.NewMultiSink(sink, audit.NewJSONLWriter(cfg.AuditLogPath))
	}

	licenses, err := engine.LoadLicenseCatalog(cfg.LicenseCatalogPath)
	if err != nil {
		closePair(writeDB, readDB)
		return nil, err
	}

	connectors := connector.NewRegistry(
		connector.NewTabular(cfg.DataDir),
		connector.NewRemoteStats(cfg.StatsAPIBaseURL,
			connector.WithHTTPClient(&http.Client{Timeout: cfg.StatsAPITimeout}),
			connector.WithRateLimit(cfg.StatsAPIRPS),
		),
	)

	opts := []engine.Option{
		engine.WithDefaultTTL(cfg.CacheDefaultTTL),
		engine.WithAuditSink(sink),
		engine.WithLicenseCatalog(licenses),
		engine.WithLogger(logger.With("component", "engine")),
	}
	if cfg.CacheNamespace != "" {
		opts = append(opts, engine.WithNamespace(cfg.CacheNamespace))
	}
	eng := engine.New(reg, connectors, store, opts...)

	scheduler, err := refresh.NewScheduler(reg, eng, logger.With("component", "refresh"))
	if err != nil {
		closePair(writeDB, readDB)
		return nil, err
	}
	if scheduler.Jobs() == 0 {
		scheduler = nil
	}

	return &App{
		Cfg:         cfg,
		Logger:      logger,
		Registry:    reg,
		Engine:      eng,
		AuditReader: audit.NewSQLiteRepo(readDB),
		Scheduler:   scheduler,
		writeDB:     writeDB,
		readDB:      readDB,
	}, nil
}

// Close stops the scheduler and releases the state store handles.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	closePair(a.writeDB, a.readDB)
	return nil
}

func closePair(writeDB, readDB *sql.DB) {
	if readDB != nil {
		_ = readDB.Close()
	}
	if writeDB != nil {
		_ = writeDB.Close()
	}
}
