package main

import (
	"context"

	"github.com/nerrad567/gray-logic-wiz/internal/audit"
	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
	"github.com/nerrad567/gray-logic-wiz/internal/device"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/mqtt"
)

// bulbLogAdapter adapts the device registry to the wiz engine's
// DiscoveryObserver, StateRecorder and BulbLog interfaces.
// Recording failures are logged, never returned: the bulb log must not
// turn a working command into a failed one.
type bulbLogAdapter struct {
	registry *device.Registry
	log      *logging.Logger
}

// ObserveDiscovery implements wiz.DiscoveryObserver.
func (a *bulbLogAdapter) ObserveDiscovery(ctx context.Context, devices []wiz.DiscoveredDevice) {
	sightings := make([]device.Sighting, 0, len(devices))
	for _, d := range devices {
		sightings = append(sightings, device.Sighting{MAC: d.MAC, IP: d.Address, Port: d.Port})
	}
	if _, err := a.registry.RecordDiscovery(ctx, sightings); err != nil {
		a.log.Warn("failed to record discovery", "error", err, "bulbs", len(devices))
	}
}

// RecordState implements wiz.StateRecorder.
func (a *bulbLogAdapter) RecordState(ctx context.Context, snap wiz.StateSnapshot) {
	err := a.registry.RecordState(ctx, device.StateHistoryEntry{
		MAC:        snap.MAC,
		IP:         snap.IP,
		State:      device.State(snap.State),
		Source:     snap.Source,
		RecordedAt: snap.RecordedAt,
	})
	if err != nil {
		a.log.Warn("failed to record bulb state", "error", err, "ip", snap.IP)
	}
}

// KnownBulbs implements wiz.BulbLog.
func (a *bulbLogAdapter) KnownBulbs(ctx context.Context) ([]wiz.KnownBulb, error) {
	bulbs, err := a.registry.Bulbs(ctx)
	if err != nil {
		return nil, err
	}
	known := make([]wiz.KnownBulb, 0, len(bulbs))
	for _, b := range bulbs {
		known = append(known, wiz.KnownBulb{
			MAC:         b.MAC,
			IP:          b.IP,
			Port:        b.Port,
			FirstSeen:   b.FirstSeen,
			LastSeen:    b.LastSeen,
			Discoveries: b.Discoveries,
		})
	}
	return known, nil
}

// StateHistory implements wiz.BulbLog.
func (a *bulbLogAdapter) StateHistory(ctx context.Context, mac string, limit int) ([]wiz.StateSnapshot, error) {
	entries, err := a.registry.History(ctx, mac, limit)
	if err != nil {
		return nil, err
	}
	snaps := make([]wiz.StateSnapshot, 0, len(entries))
	for _, e := range entries {
		snaps = append(snaps, wiz.StateSnapshot{
			MAC:        e.MAC,
			IP:         e.IP,
			State:      e.State,
			Source:     e.Source,
			RecordedAt: e.RecordedAt,
		})
	}
	return snaps, nil
}

// commandAuditAdapter adapts the audit repository to wiz.CommandLog,
// attributing each command to a MAC through the registry's IP index.
type commandAuditAdapter struct {
	repo     audit.Repository
	registry *device.Registry
	log      *logging.Logger
}

// RecordCommand implements wiz.CommandLog.
func (a *commandAuditAdapter) RecordCommand(ctx context.Context, rec wiz.CommandRecord) {
	mac := rec.MAC
	if mac == "" && rec.Address != "" {
		mac, _ = a.registry.MACForIP(rec.Address)
	}
	err := a.repo.Create(ctx, &audit.Record{
		Action:    rec.Action,
		MAC:       mac,
		Address:   rec.Address,
		Source:    rec.Source,
		Params:    rec.Params,
		Success:   rec.Success,
		Message:   rec.Message,
		CreatedAt: rec.SentAt,
	})
	if err != nil {
		a.log.Warn("failed to record command", "error", err, "action", rec.Action)
	}
}

// RecentCommands implements wiz.CommandLog.
func (a *commandAuditAdapter) RecentCommands(ctx context.Context, limit int) ([]wiz.CommandRecord, error) {
	result, err := a.repo.List(ctx, audit.Filter{Limit: limit})
	if err != nil {
		return nil, err
	}
	records := make([]wiz.CommandRecord, 0, len(result.Records))
	for _, r := range result.Records {
		records = append(records, wiz.CommandRecord{
			Action:  r.Action,
			MAC:     r.MAC,
			Address: r.Address,
			Params:  r.Params,
			Source:  r.Source,
			Success: r.Success,
			Message: r.Message,
			SentAt:  r.CreatedAt,
		})
	}
	return records, nil
}

// influxRecorder adapts the InfluxDB client to wiz.StateRecorder.
type influxRecorder struct {
	client *influxdb.Client
}

// RecordState implements wiz.StateRecorder. Writes are batched by the client.
func (r *influxRecorder) RecordState(_ context.Context, snap wiz.StateSnapshot) {
	mac := snap.MAC
	if normalised, err := device.NormalizeMAC(mac); err == nil {
		mac = normalised
	}
	r.client.WriteBulbState(mac, snap.IP, snap.State, snap.RecordedAt)
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the WiZ
// bridge's MQTTClient interface. The primary difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - WiZ bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements wiz.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements wiz.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers report via acks)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements wiz.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements wiz.MQTTClient.
// The MQTT client is owned by serve's defer chain, so this is a no-op.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
