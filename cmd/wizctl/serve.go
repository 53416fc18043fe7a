package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-wiz/internal/api"
	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
	"github.com/nerrad567/gray-logic-wiz/internal/device"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/mqtt"
)

// pruneInterval is how often serve mode trims state history.
const pruneInterval = time.Hour

// errNothingToServe is returned when serve is run with MQTT and the API both disabled.
var errNothingToServe = errors.New("serve requires mqtt.enabled or api.enabled")

// serve runs the MQTT bridge and/or HTTP API until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded configuration
//   - log: Configured logger
//
// Returns:
//   - error: nil on clean shutdown, or error describing a startup failure
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	if !cfg.MQTT.Enabled && !cfg.API.Enabled {
		return errNothingToServe
	}

	log.Info("starting wizctl",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	source := device.StateSourceAPI
	if cfg.MQTT.Enabled {
		source = device.StateSourceMQTT
	}
	a, err := newApp(ctx, cfg, log, source)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if cfg.MQTT.Enabled {
		stop, err := startBridge(ctx, cfg, a, log)
		if err != nil {
			return err
		}
		defer stop()
	} else {
		log.Info("MQTT bridge disabled")
	}

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log.With("component", "api"),
			Controller: a.controller,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	if a.registry != nil && cfg.Database.HistoryRetention > 0 {
		stopPruner := startPruner(ctx, a.registry, cfg.Database.HistoryRetention, log)
		defer stopPruner()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. History pruner
	// 2. API server
	// 3. Bridge, then MQTT
	// 4. InfluxDB, then database
	return nil
}

// startBridge connects to the broker with the bridge's LWT and starts the bridge.
// The returned func stops the bridge and then disconnects.
func startBridge(ctx context.Context, cfg *config.Config, a *app, log *logging.Logger) (func(), error) {
	// The LWT is registered at connect time, before the bridge exists.
	payload, err := json.Marshal(wiz.NewLWTMessage(cfg.MQTT.Broker.ClientID))
	if err != nil {
		return nil, fmt.Errorf("building LWT: %w", err)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Will{Topic: wiz.HealthTopic(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	closeMQTT := func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}

	bridge, err := wiz.NewBridge(wiz.BridgeOptions{
		BridgeID:          cfg.MQTT.Broker.ClientID,
		Version:           version,
		Controller:        a.controller,
		MQTTClient:        &mqttBridgeAdapter{client: mqttClient},
		StatePollInterval: cfg.WiZ.StatePollInterval,
		Logger:            log.With("component", "wiz-bridge"),
	})
	if err != nil {
		closeMQTT()
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		closeMQTT()
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("WiZ bridge started", "health_topic", bridge.Health().LWTTopic())

	return func() {
		log.Info("stopping WiZ bridge")
		bridge.Stop()
		closeMQTT()
	}, nil
}

// startPruner runs pruneLoop in the background. The returned func stops it
// and waits for an in-flight prune, so the database can be closed after.
func startPruner(ctx context.Context, registry *device.Registry, retention time.Duration, log *logging.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pruneLoop(ctx, registry, retention, log)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// pruneLoop trims state history once at start and then every pruneInterval.
// A prune that has started runs to completion after ctx ends.
func pruneLoop(ctx context.Context, registry *device.Registry, retention time.Duration, log *logging.Logger) {
	pruneCtx := context.WithoutCancel(ctx)
	prune := func() {
		if _, err := registry.Prune(pruneCtx, retention); err != nil {
			log.Warn("state history prune failed", "error", err)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
