package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
)

func TestBulbStateFields(t *testing.T) {
	state := map[string]any{
		"mac":     "a8bb50000001",
		"state":   true,
		"dimming": float64(60),
		"r":       float64(255),
		"g":       0,
		"temp":    int64(2700),
		"sceneId": float64(6),
		"rssi":    float64(-61),
		"speed":   float64(100),
	}

	fields := bulbStateFields(state)
	want := map[string]any{
		"on":       true,
		"dimming":  int64(60),
		"r":        int64(255),
		"g":        int64(0),
		"temp":     int64(2700),
		"scene_id": int64(6),
		"rssi":     int64(-61),
	}
	if len(fields) != len(want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v (%T), want %v", k, fields[k], fields[k], v)
		}
	}
}

func TestBulbStateFields_IgnoresWrongTypes(t *testing.T) {
	fields := bulbStateFields(map[string]any{"state": "on", "dimming": "60"})
	if len(fields) != 0 {
		t.Errorf("fields = %v, want none", fields)
	}
}

func TestBulbStatePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	point := bulbStatePoint("a8bb50000001", "192.168.1.40", map[string]any{"state": false}, at)
	if point == nil {
		t.Fatal("bulbStatePoint() = nil")
	}
	if point.Name() != MeasurementBulbState {
		t.Errorf("Name() = %q", point.Name())
	}
	if !point.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", point.Time(), at)
	}

	tags := make(map[string]string)
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["mac"] != "a8bb50000001" || tags["ip"] != "192.168.1.40" {
		t.Errorf("tags = %v", tags)
	}
}

func TestBulbStatePoint_NoFields(t *testing.T) {
	if point := bulbStatePoint("a8bb50000001", "", map[string]any{"mac": "x"}, time.Now()); point != nil {
		t.Errorf("bulbStatePoint() = %v, want nil", point)
	}
}

func TestClientOptions_Defaults(t *testing.T) {
	opts := clientOptions(config.InfluxDBConfig{BatchSize: -5, FlushInterval: 0})
	if opts.BatchSize() != defaultBatchSize {
		t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), defaultBatchSize)
	}
	if opts.FlushInterval() != defaultFlushInterval*1000 {
		t.Errorf("FlushInterval() = %d", opts.FlushInterval())
	}
}

func TestWriteBulbState_Disconnected(t *testing.T) {
	c := &Client{}
	// Must be a no-op without a write API.
	c.WriteBulbState("a8bb50000001", "", map[string]any{"state": true}, time.Now())
}

func TestClient_ZeroValue(t *testing.T) {
	c := &Client{}
	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	c.Flush()
}
