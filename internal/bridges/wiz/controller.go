package wiz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Control value ranges. Out-of-range inputs are clamped, never rejected.
const (
	MinBrightness   = 10
	MaxBrightness   = 100
	MinColorChannel = 0
	MaxColorChannel = 255
	MinColorTemp    = 2200
	MaxColorTemp    = 6500
	MinSceneID      = 1
	MaxSceneID      = 32
	MinSpeed        = 1
	MaxSpeed        = 20
)

// DefaultHistoryLimit is the number of history rows returned when the
// caller does not ask for a specific count.
const DefaultHistoryLimit = 20

// KnownBulb is a bulb remembered by the bulb log.
type KnownBulb struct {
	MAC         string    `json:"mac"`
	IP          string    `json:"ip"`
	Port        int       `json:"port"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Discoveries int       `json:"discoveries"`
}

// StateSnapshot is one getPilot result attributed to a bulb.
type StateSnapshot struct {
	MAC        string         `json:"mac"`
	IP         string         `json:"ip,omitempty"`
	State      map[string]any `json:"state"`
	Source     string         `json:"source,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// StateRecorder receives every successful state read. Implementations
// must not block for long and handle their own errors.
type StateRecorder interface {
	RecordState(ctx context.Context, snap StateSnapshot)
}

// BulbLog answers queries about previously seen bulbs.
type BulbLog interface {
	KnownBulbs(ctx context.Context) ([]KnownBulb, error)
	StateHistory(ctx context.Context, mac string, limit int) ([]StateSnapshot, error)
}

// CommandRecord is one setPilot attempt, successful or not. MAC is left
// for the CommandLog to attribute from Address.
type CommandRecord struct {
	Action  string         `json:"action"`
	MAC     string         `json:"mac,omitempty"`
	Address string         `json:"address,omitempty"`
	Params  map[string]any `json:"params"`
	Source  string         `json:"source"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

// CommandLog keeps an audit trail of commands sent to the bulb.
// RecordCommand must handle its own errors.
type CommandLog interface {
	RecordCommand(ctx context.Context, rec CommandRecord)
	RecentCommands(ctx context.Context, limit int) ([]CommandRecord, error)
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Session is required.
	Session *Session

	// Recorders receive successful state reads. Optional.
	Recorders []StateRecorder

	// BulbLog backs the bulbs and history verbs. Optional.
	BulbLog BulbLog

	// CommandLog records every setPilot and backs the commands verb. Optional.
	CommandLog CommandLog

	// Source labels recorded state snapshots (e.g. "cli", "mqtt").
	Source string

	// Logger is optional.
	Logger Logger
}

// Controller exposes the user-facing verbs over a Session.
//
// Every verb returns an Envelope; no verb returns an error. Calls are
// serialised so that concurrent callers (HTTP handlers, MQTT callbacks,
// the state poller) never interleave session steps.
type Controller struct {
	logSink

	mu        sync.Mutex
	session   *Session
	recorders []StateRecorder
	bulbLog   BulbLog
	commands  CommandLog
	source    string
}

// NewController creates a Controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Session == nil {
		return nil, errors.New("wiz: controller requires a session")
	}
	c := &Controller{
		session:   opts.Session,
		recorders: opts.Recorders,
		bulbLog:   opts.BulbLog,
		commands:  opts.CommandLog,
		source:    opts.Source,
	}
	if c.source == "" {
		c.source = "cli"
	}
	c.SetLogger(opts.Logger)
	return c, nil
}

// SessionState returns the underlying session state without waiting for
// an in-flight verb.
func (c *Controller) SessionState() State {
	return c.session.State()
}

// Target returns the current bulb address, if resolved.
func (c *Controller) Target() (DeviceRecord, bool) {
	return c.session.Target()
}

// Discover broadcasts for bulbs and adopts the first one found.
func (c *Controller) Discover(ctx context.Context) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discover(ctx)
}

func (c *Controller) discover(ctx context.Context) Envelope {
	devices := c.session.Discover(ctx)
	if len(devices) == 0 {
		return fail(MsgNoBulbsFound)
	}
	return ok("bulbs", devices)
}

// DiscoverAndGetState discovers then reads state. A failed discovery is
// returned as is.
func (c *Controller) DiscoverAndGetState(ctx context.Context) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	discovery := c.discover(ctx)
	if !discovery.Success() {
		return discovery
	}
	return ok("discovery", discovery, "state", c.getState(ctx))
}

// GetState reads the bulb's current state.
func (c *Controller) GetState(ctx context.Context) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getState(ctx)
}

func (c *Controller) getState(ctx context.Context) Envelope {
	res := c.session.Execute(ctx, GetPilotCommand())
	if !res.OK() {
		return resultEnvelope(res)
	}
	state, isObj := res.Response["result"].(map[string]any)
	if !isObj {
		return resultEnvelope(res)
	}
	c.record(ctx, state)
	return ok("state", state)
}

// record hands a state read to every recorder.
func (c *Controller) record(ctx context.Context, state map[string]any) {
	if len(c.recorders) == 0 {
		return
	}
	snap := StateSnapshot{State: state, Source: c.source, RecordedAt: time.Now().UTC()}
	if target, resolved := c.session.Target(); resolved {
		snap.IP = target.Address
	}
	if mac, isString := state["mac"].(string); isString {
		snap.MAC = mac
	}
	for _, r := range c.recorders {
		r.RecordState(ctx, snap)
	}
}

// SetBrightness sets dimming, clamped to 10–100.
func (c *Controller) SetBrightness(ctx context.Context, brightness int) Envelope {
	return c.setPilot(ctx, "setBrightness", map[string]any{
		"dimming": clamp(brightness, MinBrightness, MaxBrightness),
	})
}

// SetRGB sets a colour, each channel clamped to 0–255.
func (c *Controller) SetRGB(ctx context.Context, r, g, b int) Envelope {
	return c.setPilot(ctx, "setRGB", map[string]any{
		"r": clamp(r, MinColorChannel, MaxColorChannel),
		"g": clamp(g, MinColorChannel, MaxColorChannel),
		"b": clamp(b, MinColorChannel, MaxColorChannel),
	})
}

// SetWarmWhite sets brightness and colour temperature together.
func (c *Controller) SetWarmWhite(ctx context.Context, brightness, temp int) Envelope {
	return c.setPilot(ctx, "setWarmWhite", map[string]any{
		"dimming": clamp(brightness, MinBrightness, MaxBrightness),
		"temp":    clamp(temp, MinColorTemp, MaxColorTemp),
	})
}

// SetColorTemp sets colour temperature in Kelvin, clamped to 2200–6500.
func (c *Controller) SetColorTemp(ctx context.Context, temp int) Envelope {
	return c.setPilot(ctx, "setColorTemp", map[string]any{
		"temp": clamp(temp, MinColorTemp, MaxColorTemp),
	})
}

// SetScene selects a built-in scene, clamped to 1–32.
func (c *Controller) SetScene(ctx context.Context, sceneID int) Envelope {
	return c.setPilot(ctx, "setScene", map[string]any{
		"sceneId": clamp(sceneID, MinSceneID, MaxSceneID),
	})
}

// SetSceneWithSpeed selects a scene with an animation speed (1–20).
func (c *Controller) SetSceneWithSpeed(ctx context.Context, sceneID, speed int) Envelope {
	return c.setPilot(ctx, "setSceneWithSpeed", map[string]any{
		"sceneId": clamp(sceneID, MinSceneID, MaxSceneID),
		"speed":   clamp(speed, MinSpeed, MaxSpeed),
	})
}

// SetPower switches the bulb on or off.
func (c *Controller) SetPower(ctx context.Context, on bool) Envelope {
	return c.setPilot(ctx, "setPower", map[string]any{"state": on})
}

func (c *Controller) setPilot(ctx context.Context, action string, params map[string]any) Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	env := resultEnvelope(c.session.Execute(ctx, SetPilotCommand(params)))
	c.audit(ctx, action, params, env)
	return env
}

// audit hands a setPilot attempt to the command log.
func (c *Controller) audit(ctx context.Context, action string, params map[string]any, env Envelope) {
	if c.commands == nil {
		return
	}
	rec := CommandRecord{
		Action:  action,
		Params:  params,
		Source:  c.source,
		Success: env.Success(),
		SentAt:  time.Now().UTC(),
	}
	if target, resolved := c.session.Target(); resolved {
		rec.Address = target.Address
	}
	if msg, isString := env["message"].(string); isString && !rec.Success {
		rec.Message = msg
	}
	c.commands.RecordCommand(ctx, rec)
}

// GetScenes lists the built-in scenes. No device traffic.
func (c *Controller) GetScenes() Envelope {
	return ok("scenes", Scenes())
}

// ClearCache forgets the bulb. Always succeeds.
func (c *Controller) ClearCache() Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Forget()
	return Envelope{"success": true, "message": MsgCacheCleared}
}

// KnownBulbs lists bulbs from the bulb log.
func (c *Controller) KnownBulbs(ctx context.Context) Envelope {
	if c.bulbLog == nil {
		return fail(MsgBulbLogDisabled)
	}
	bulbs, err := c.bulbLog.KnownBulbs(ctx)
	if err != nil {
		c.logError("listing known bulbs failed", err)
		return fail(err.Error())
	}
	return ok("bulbs", bulbs)
}

// History returns recent state snapshots for a bulb, newest first.
func (c *Controller) History(ctx context.Context, mac string, limit int) Envelope {
	if c.bulbLog == nil {
		return fail(MsgBulbLogDisabled)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	history, err := c.bulbLog.StateHistory(ctx, mac, limit)
	if err != nil {
		c.logError("reading state history failed", err, "mac", mac)
		return fail(err.Error())
	}
	return ok("history", history)
}

// Commands returns recent command audit records, newest first.
func (c *Controller) Commands(ctx context.Context, limit int) Envelope {
	if c.commands == nil {
		return fail(MsgBulbLogDisabled)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	records, err := c.commands.RecentCommands(ctx, limit)
	if err != nil {
		c.logError("reading command audit failed", err)
		return fail(err.Error())
	}
	return ok("commands", records)
}

// Dispatch runs a verb by name with string arguments, as given on a
// command line. Missing or unparseable arguments and unknown verbs yield
// failure envelopes; a panic inside a verb is recovered into one.
func (c *Controller) Dispatch(ctx context.Context, verb string, args []string) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("verb panicked", fmt.Errorf("panic: %v", r), "verb", verb)
			env = fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if canonical, isAlias := verbAliases[verb]; isAlias {
		verb = canonical
	}

	switch verb {
	case "":
		return fail(MsgCommandRequired)
	case "discover":
		return c.Discover(ctx)
	case "discoverAndGetState":
		return c.DiscoverAndGetState(ctx)
	case "getState":
		return c.GetState(ctx)
	case "getScenes":
		return c.GetScenes()
	case "clearCache":
		return c.ClearCache()
	case "bulbs":
		return c.KnownBulbs(ctx)
	case "setPower":
		if len(args) < 1 {
			return fail("Power state required")
		}
		return c.SetPower(ctx, ParsePower(args[0]))
	case "history":
		if len(args) < 1 {
			return fail("MAC address required")
		}
		limit := 0
		if len(args) > 1 {
			n, err := parseIntArg("limit", args[1])
			if err != nil {
				return fail(err.Error())
			}
			limit = n
		}
		return c.History(ctx, args[0], limit)
	case "commands":
		limit := 0
		if len(args) > 0 {
			n, err := parseIntArg("limit", args[0])
			if err != nil {
				return fail(err.Error())
			}
			limit = n
		}
		return c.Commands(ctx, limit)
	}

	def, known := numericVerbs[verb]
	if !known {
		return fail("Unknown command: " + verb)
	}
	if len(args) < len(def.params) {
		return fail(def.missing)
	}
	values := make([]int, len(def.params))
	for i, name := range def.params {
		n, err := parseIntArg(name, args[i])
		if err != nil {
			return fail(err.Error())
		}
		values[i] = n
	}
	return def.run(c, ctx, values)
}

// verbAliases maps older verb names onto the verbs they became.
var verbAliases = map[string]string{
	"setTemp": "setColorTemp",
}

// numericVerb describes a verb whose arguments are all integers.
type numericVerb struct {
	params  []string
	missing string
	run     func(c *Controller, ctx context.Context, v []int) Envelope
}

var numericVerbs = map[string]numericVerb{
	"setBrightness": {
		params:  []string{"brightness"},
		missing: "Brightness value required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetBrightness(ctx, v[0])
		},
	},
	"setRGB": {
		params:  []string{"r", "g", "b"},
		missing: "Red, green, blue values required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetRGB(ctx, v[0], v[1], v[2])
		},
	},
	"setWarmWhite": {
		params:  []string{"brightness", "temp"},
		missing: "Brightness and temperature values required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetWarmWhite(ctx, v[0], v[1])
		},
	},
	"setColorTemp": {
		params:  []string{"temp"},
		missing: "Temperature value required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetColorTemp(ctx, v[0])
		},
	},
	"setScene": {
		params:  []string{"scene_id"},
		missing: "Scene ID required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetScene(ctx, v[0])
		},
	},
	"setSceneWithSpeed": {
		params:  []string{"scene_id", "speed"},
		missing: "Scene ID and speed required",
		run: func(c *Controller, ctx context.Context, v []int) Envelope {
			return c.SetSceneWithSpeed(ctx, v[0], v[1])
		},
	},
}

// VerbParams returns the ordered argument names of a verb, for callers
// that receive named arguments (HTTP bodies) and must call Dispatch.
func VerbParams(verb string) []string {
	if canonical, isAlias := verbAliases[verb]; isAlias {
		verb = canonical
	}
	switch verb {
	case "setPower":
		return []string{"state"}
	case "history":
		return []string{"mac", "limit"}
	case "commands":
		return []string{"limit"}
	}
	if def, known := numericVerbs[verb]; known {
		return def.params
	}
	return nil
}

// ParsePower interprets a power argument. true, 1, on and yes (any case)
// mean on; anything else means off.
func ParsePower(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}

// parseIntArg parses an integer argument. Decimal input is truncated and
// values beyond the int range saturate, so clamping still picks the right end.
func parseIntArg(name, value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %s", name, value)
	}
	return truncateInt(f), nil
}

// truncateInt converts f toward zero, saturating at the int range.
func truncateInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
