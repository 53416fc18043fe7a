package wiz

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// fakeSessionStater reports a fixed session state.
type fakeSessionStater struct {
	state  State
	target DeviceRecord
}

func (f *fakeSessionStater) SessionState() State { return f.state }

func (f *fakeSessionStater) Target() (DeviceRecord, bool) {
	return f.target, f.state == StateResolved
}

func lastHealth(t *testing.T, mqtt *MockMQTTClient) HealthMessage {
	t.Helper()
	msgs := mqtt.PublishedTo(HealthTopic())
	if len(msgs) == 0 {
		t.Fatal("no health message published")
	}
	last := msgs[len(msgs)-1]
	if !last.Retained || last.QoS != 1 {
		t.Errorf("health published with qos=%d retained=%v, want 1/true", last.QoS, last.Retained)
	}
	var msg HealthMessage
	if err := json.Unmarshal(last.Payload, &msg); err != nil {
		t.Fatalf("health payload is not JSON: %v", err)
	}
	return msg
}

func TestNewHealthReporter_Defaults(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if h.interval != DefaultHealthInterval {
		t.Errorf("interval = %v, want %v", h.interval, DefaultHealthInterval)
	}
	if h.bridgeID != "wiz" {
		t.Errorf("bridgeID = %q, want wiz", h.bridgeID)
	}
}

func TestHealthReporter_Status(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		state     State
		want      HealthStatus
		reason    string
	}{
		{name: "healthy", connected: true, state: StateResolved, want: HealthHealthy},
		{name: "mqtt down", connected: false, state: StateResolved, want: HealthDegraded, reason: "MQTT disconnected"},
		{name: "no bulb", connected: true, state: StateUnresolved, want: HealthDegraded, reason: "no bulb resolved"},
		{name: "rediscovering", connected: true, state: StateDegraded, want: HealthDegraded, reason: "bulb not answering, rediscovering"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mqtt := NewMockMQTTClient()
			mqtt.setConnected(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				Version:   "1.2.3",
				Publisher: mqtt,
				Session: &fakeSessionStater{
					state:  tt.state,
					target: DeviceRecord{Address: "10.0.0.5", Port: DefaultPort},
				},
			})

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}
			msg := lastHealth(t, mqtt)
			if msg.Status != tt.want || msg.Reason != tt.reason {
				t.Errorf("status = %q (%q), want %q (%q)", msg.Status, msg.Reason, tt.want, tt.reason)
			}
			if msg.Version != "1.2.3" || msg.Bridge != "wiz" {
				t.Errorf("message = %+v", msg)
			}
			if msg.Bulb == nil || msg.Bulb.Session != tt.state.String() {
				t.Errorf("bulb = %+v", msg.Bulb)
			}
		})
	}
}

func TestHealthReporter_ResolvedTargetReported(t *testing.T) {
	mqtt := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		Publisher: mqtt,
		Session:   &fakeSessionStater{state: StateResolved, target: DeviceRecord{Address: "10.0.0.5", Port: 38899}},
		Stats:     func() BridgeStatistics { return BridgeStatistics{CommandsReceived: 7} },
	})

	if err := h.PublishNow(); err != nil {
		t.Fatal(err)
	}
	msg := lastHealth(t, mqtt)
	if msg.Bulb.Address != "10.0.0.5" || msg.Bulb.Port != 38899 {
		t.Errorf("bulb = %+v", msg.Bulb)
	}
	if msg.Statistics == nil || msg.Statistics.CommandsReceived != 7 {
		t.Errorf("statistics = %+v", msg.Statistics)
	}
}

func TestHealthReporter_LWT(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{BridgeID: "wiz-lounge"})

	if h.LWTTopic() != "graylogic/health/wiz" {
		t.Errorf("LWTTopic() = %q", h.LWTTopic())
	}
	payload, err := h.LWTPayload()
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != HealthOffline || msg.Bridge != "wiz-lounge" {
		t.Errorf("LWT = %+v", msg)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	mqtt := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		Publisher: mqtt,
		Interval:  20 * time.Millisecond,
		Session:   &fakeSessionStater{state: StateResolved},
	})

	h.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	h.Stop()
	h.Stop()

	msgs := mqtt.PublishedTo(HealthTopic())
	if len(msgs) < 3 {
		t.Errorf("health messages = %d, want initial, ticks and stopping", len(msgs))
	}
	if msg := lastHealth(t, mqtt); msg.Status != HealthStopping {
		t.Errorf("final status = %q, want stopping", msg.Status)
	}
}

func TestHealthReporter_NoPublisher(t *testing.T) {
	h := NewHealthReporter(HealthReporterConfig{})
	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() without publisher = %v, want nil", err)
	}
	if err := h.PublishStarting(); err != nil {
		t.Errorf("PublishStarting() without publisher = %v, want nil", err)
	}
}
