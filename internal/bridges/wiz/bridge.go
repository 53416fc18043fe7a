package wiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a command topic.
	minTopicParts = 4

	// bridgeCommandTimeout bounds one MQTT command end to end. It covers a
	// probe, a discovery window and a send, twice.
	bridgeCommandTimeout = 30 * time.Second

	// DefaultStatePollInterval is how often the bulb state is polled.
	DefaultStatePollInterval = 30 * time.Second
)

// ErrUnknownCommand is returned for MQTT commands the bridge does not know.
var ErrUnknownCommand = errors.New("wiz: unknown command")

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies the bridge in health messages. Default: "wiz".
	BridgeID string

	// Version is reported in health messages.
	Version string

	// Controller executes bulb verbs. Required.
	Controller *Controller

	// MQTTClient is the MQTT client implementation. Required.
	MQTTClient MQTTClient

	// StatePollInterval is how often state is read and published.
	// Zero uses DefaultStatePollInterval; negative disables polling.
	StatePollInterval time.Duration

	// HealthInterval is how often health is published.
	HealthInterval time.Duration

	// Logger is optional.
	Logger Logger
}

// Bridge connects the bulb controller to MQTT. It handles:
//   - Commands from Core, acknowledged on the ack topic
//   - Periodic state polling, published on change
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	logSink

	controller   *Controller
	mqtt         MQTTClient
	health       *HealthReporter
	pollInterval time.Duration

	// Last published state per topic address, for change detection.
	stateCache   map[string]map[string]any
	stateCacheMu sync.Mutex

	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		controller:   opts.Controller,
		mqtt:         opts.MQTTClient,
		pollInterval: opts.StatePollInterval,
		stateCache:   make(map[string]map[string]any),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
	}
	if b.pollInterval == 0 {
		b.pollInterval = DefaultStatePollInterval
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.BridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Session:   opts.Controller,
		Stats:     b.Statistics,
	})
	b.SetLogger(opts.Logger)

	return b, nil
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.logSink.SetLogger(logger)
	b.health.SetLogger(logger)
}

// Health returns the bridge's health reporter.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// Start subscribes to commands and starts health reporting and polling.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	if b.pollInterval > 0 {
		b.wg.Add(1)
		go b.pollLoop(ctx)
	}

	b.logInfo("bridge started", "poll_interval", b.pollInterval)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// Statistics returns the bridge counters.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}

// pollLoop reads the bulb state on an interval and publishes changes.
func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.PollOnce()
		}
	}
}

// PollOnce reads the bulb state and publishes it if it changed.
func (b *Bridge) PollOnce() {
	ctx, cancel := context.WithTimeout(b.ctx, bridgeCommandTimeout)
	defer cancel()

	env := b.controller.GetState(ctx)
	if !env.Success() {
		b.logDebug("state poll failed", "message", env.Message())
		return
	}
	if state, ok := env["state"].(map[string]any); ok {
		b.publishState("", state, false)
	}
}

// handleMQTTMessage routes incoming MQTT messages.
// Topic format: graylogic/command/wiz/{address}
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts || parts[1] != "command" {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}
	b.handleCommand(parts[len(parts)-1], payload)
}

// handleCommand parses, executes and acknowledges one command.
func (b *Bridge) handleCommand(address string, payload []byte) {
	b.commandsReceived.Add(1)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.commandsFailed.Add(1)
		b.logError("failed to parse command", err)
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	ctx, cancel := context.WithTimeout(b.ctx, bridgeCommandTimeout)
	defer cancel()

	env, err := b.executeCommand(ctx, cmd)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		b.publishAckError(cmd, address, ErrCodeInvalidCommand, err.Error(), ReasonNone)
	case err != nil:
		b.publishAckError(cmd, address, ErrCodeInvalidParameters, err.Error(), ReasonNone)
	case !env.Success():
		b.publishAckError(cmd, address, errorCodeFor(env.Reason()), env.Message(), env.Reason())
	default:
		b.publishAck(cmd, address)
		b.afterCommand(ctx, cmd, address, env)
	}
}

// executeCommand maps a command message to a controller verb.
func (b *Bridge) executeCommand(ctx context.Context, cmd CommandMessage) (Envelope, error) {
	c := b.controller
	p := cmd.Parameters

	switch cmd.Command {
	case "on":
		return c.SetPower(ctx, true), nil
	case "off":
		return c.SetPower(ctx, false), nil
	case "brightness":
		level, err := intParam(p, "level")
		if err != nil {
			return nil, err
		}
		return c.SetBrightness(ctx, level), nil
	case "rgb":
		rgb, err := intParams(p, "r", "g", "b")
		if err != nil {
			return nil, err
		}
		return c.SetRGB(ctx, rgb[0], rgb[1], rgb[2]), nil
	case "color_temp":
		kelvin, err := intParam(p, "kelvin")
		if err != nil {
			return nil, err
		}
		return c.SetColorTemp(ctx, kelvin), nil
	case "warm_white":
		v, err := intParams(p, "level", "kelvin")
		if err != nil {
			return nil, err
		}
		return c.SetWarmWhite(ctx, v[0], v[1]), nil
	case "scene":
		sceneID, err := intParam(p, "scene_id")
		if err != nil {
			return nil, err
		}
		if _, hasSpeed := p["speed"]; !hasSpeed {
			return c.SetScene(ctx, sceneID), nil
		}
		speed, err := intParam(p, "speed")
		if err != nil {
			return nil, err
		}
		return c.SetSceneWithSpeed(ctx, sceneID, speed), nil
	case "get_state":
		return c.GetState(ctx), nil
	case "discover":
		return c.Discover(ctx), nil
	case "clear_cache":
		return c.ClearCache(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

// afterCommand publishes follow-up messages for a successful command.
func (b *Bridge) afterCommand(ctx context.Context, cmd CommandMessage, address string, env Envelope) {
	switch cmd.Command {
	case "get_state":
		if state, ok := env["state"].(map[string]any); ok {
			b.publishState(cmd.DeviceID, state, true)
		}
	case "discover":
		devices, _ := env["bulbs"].([]DiscoveredDevice)
		b.publishDiscovery(devices)
	case "clear_cache":
		b.stateCacheMu.Lock()
		clear(b.stateCache)
		b.stateCacheMu.Unlock()
	default:
		// Read back so the state topic reflects the change.
		state := b.controller.GetState(ctx)
		if s, ok := state["state"].(map[string]any); ok {
			b.publishState(cmd.DeviceID, s, false)
		} else {
			b.logDebug("state read-back failed", "address", address, "message", state.Message())
		}
	}
}

// publishState publishes a retained state message. Unless force is set,
// unchanged state is not republished.
func (b *Bridge) publishState(deviceID string, result map[string]any, force bool) {
	mac, _ := result["mac"].(string)
	address := TopicAddress(mac)
	msg := NewStateMessage(deviceID, address, result)

	b.stateCacheMu.Lock()
	prev, seen := b.stateCache[address]
	if seen && !force && reflect.DeepEqual(prev, msg.State) {
		b.stateCacheMu.Unlock()
		return
	}
	b.stateCache[address] = msg.State
	b.stateCacheMu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(address), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.statesPublished.Add(1)
}

// publishDiscovery announces discovered bulbs.
func (b *Bridge) publishDiscovery(devices []DiscoveredDevice) {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    protocolName,
		Devices:   devices,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(DiscoveryTopic(), payload, 1, false); err != nil {
		b.logError("failed to publish discovery", err)
	}
}

// publishAck publishes a successful command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, address string) {
	payload, err := json.Marshal(NewAckMessage(cmd, address))
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(address), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, address, code, message string, reason Reason) {
	b.commandsFailed.Add(1)

	payload, err := json.Marshal(NewAckError(cmd, address, code, message, reason))
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(address), payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logWarn("command failed", "command_id", cmd.ID, "code", code, "message", message)
}

// intParam reads an integer parameter from a command. JSON numbers and
// numeric strings are accepted, parsed like CLI arguments.
func intParam(params map[string]any, name string) (int, error) {
	raw, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing '%s' parameter", ErrInvalidArgument, name)
	}
	if n, isNum := numericValue(raw); isNum && !math.IsNaN(n) {
		return truncateInt(n), nil
	}
	if s, isString := raw.(string); isString {
		if n, err := parseIntArg(name, s); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: '%s' must be a number", ErrInvalidArgument, name)
}

func intParams(params map[string]any, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		v, err := intParam(params, name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
