package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-wiz/internal/audit"
	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
	"github.com/nerrad567/gray-logic-wiz/internal/device"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-wiz/migrations"
)

// app holds the engine and its optional stores for one process.
type app struct {
	log        *logging.Logger
	controller *wiz.Controller
	registry   *device.Registry // nil when the database is disabled
	db         *database.DB
	influx     *influxdb.Client

	closers []func()
}

// newApp wires the session engine, the optional bulb log and the optional
// telemetry sink.
//
// Parameters:
//   - ctx: Context for connection setup
//   - cfg: Loaded configuration
//   - log: Configured logger
//   - source: Label for recorded state reads (cli, api, mqtt)
//
// Returns:
//   - *app: Ready to dispatch verbs; call Close when done
//   - error: If an enabled store cannot be opened
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger, source string) (*app, error) {
	a := &app{log: log}
	if err := a.wire(ctx, cfg, source); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire opens the enabled stores and builds the controller over them. Stores
// opened before a failure stay registered in closers.
func (a *app) wire(ctx context.Context, cfg *config.Config, source string) error {
	log := a.log

	var (
		recorders  []wiz.StateRecorder
		observer   wiz.DiscoveryObserver
		bulbLog    wiz.BulbLog
		commandLog wiz.CommandLog
	)

	if cfg.Database.Enabled {
		if err := a.openBulbLog(ctx, cfg); err != nil {
			return err
		}
		adapter := &bulbLogAdapter{registry: a.registry, log: log}
		recorders = append(recorders, adapter)
		observer = adapter
		bulbLog = adapter
		commandLog = &commandAuditAdapter{
			repo:     audit.NewSQLiteRepository(a.db.DB),
			registry: a.registry,
			log:      log,
		}
	}

	if cfg.InfluxDB.Enabled {
		if err := a.connectInflux(ctx, cfg); err != nil {
			return err
		}
		recorders = append(recorders, &influxRecorder{client: a.influx})
	}

	session, err := wiz.NewSession(wiz.SessionOptions{
		Cache: wiz.NewFileCache(wiz.FileCacheOptions{
			Path:   cfg.ResolvedCachePath(),
			TTL:    cfg.WiZ.CacheTTL,
			Logger: log,
		}),
		Transport: wiz.NewUDPTransport(cfg.WiZ.CommandTimeout, log),
		Prober:    wiz.NewStatusProber(cfg.WiZ.ProbeTimeout, log),
		Discoverer: wiz.NewBroadcaster(wiz.BroadcasterOptions{
			Port:     cfg.WiZ.Port,
			Window:   cfg.WiZ.DiscoveryWindow,
			PhoneMAC: cfg.WiZ.PhoneMAC,
			PhoneIP:  cfg.WiZ.PhoneIP,
			Logger:   log,
		}),
		Candidates: cfg.WiZ.BroadcastAddresses,
		Observer:   observer,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	a.controller, err = wiz.NewController(wiz.ControllerOptions{
		Session:    session,
		Recorders:  recorders,
		BulbLog:    bulbLog,
		CommandLog: commandLog,
		Source:     source,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	return nil
}

// openBulbLog opens the database, applies migrations and loads the registry.
func (a *app) openBulbLog(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() {
		a.log.Debug("closing database")
		if closeErr := db.Close(); closeErr != nil {
			a.log.Error("error closing database", "error", closeErr)
		}
	})

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	a.registry = device.NewRegistry(
		device.NewSQLiteBulbRepository(db.DB),
		device.NewSQLiteStateHistoryRepository(db.DB),
	)
	a.registry.SetLogger(a.log)
	if err := a.registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading bulb log: %w", err)
	}
	a.log.Debug("bulb log ready", "path", db.Path(), "bulbs", a.registry.Count())
	return nil
}

// connectInflux connects the telemetry sink.
func (a *app) connectInflux(ctx context.Context, cfg *config.Config) error {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		a.log.Error("InfluxDB write error", "error", err)
	})
	a.influx = client
	a.closers = append(a.closers, func() {
		a.log.Debug("closing InfluxDB connection")
		if closeErr := client.Close(); closeErr != nil {
			a.log.Error("error closing InfluxDB", "error", closeErr)
		}
	})
	a.log.Debug("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return nil
}

// healthCheck verifies every open store is reachable.
func (a *app) healthCheck(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
