// wizctl - WiZ bulb controller for Gray Logic
//
// This is the main entry point for wizctl. It finds a WiZ smart bulb on the
// local network, remembers where it is, and sends it commands.
//
// Usage:
//
//	wizctl [--config path] <verb> [args...]   run one verb, print a JSON envelope
//	wizctl [--config path] serve              run the MQTT bridge and HTTP API
//	wizctl [--config path] migrate [up|down|status]
//	wizctl version
//
// Verbs: discover, discoverAndGetState, getState, setBrightness, setRGB,
// setWarmWhite, setColorTemp, setScene, setSceneWithSpeed, setPower,
// getScenes, clearCache, bulbs, history, commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
	"github.com/nerrad567/gray-logic-wiz/internal/device"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// errUsage marks command-line mistakes that are reported before any verb runs.
var errUsage = errors.New("usage")

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// A verb that fails still returns nil: its failure is in the printed
// envelope. So does a verb whose startup fails (configuration, storage):
// the error is printed as {"success": false, "message": ...}. serve and
// migrate return startup errors instead. A bad flag prints the envelope and
// also returns errUsage.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout: Receives the JSON envelope
//   - stderr: Receives usage text
//
// Returns:
//   - error: nil when an envelope was printed or serve shut down cleanly
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("wizctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", getConfigPath(), "path to the YAML configuration file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: wizctl [--config path] <verb> [args...] | serve | migrate [up|down|status] | version")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		//nolint:errcheck // the usage error below is what main reports
		printJSON(stdout, wiz.FailureEnvelope(err))
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	verb, verbArgs := fs.Arg(0), fs.Args()
	if len(verbArgs) > 0 {
		verbArgs = verbArgs[1:]
	}

	if verb == "version" {
		fmt.Fprintf(stdout, "wizctl %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	startupFailed := func(err error) error {
		if verb == "serve" || verb == "migrate" {
			return err
		}
		return printJSON(stdout, wiz.FailureEnvelope(err))
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return startupFailed(fmt.Errorf("loading config: %w", err))
	}
	log := logging.New(cfg.Logging, version)

	switch verb {
	case "serve":
		return serve(ctx, cfg, log)
	case "migrate":
		return migrate(ctx, cfg, log, verbArgs, stdout)
	}

	a, err := newApp(ctx, cfg, log, device.StateSourceCLI)
	if err != nil {
		log.Error("startup failed", "verb", verb, "error", err)
		return startupFailed(err)
	}
	defer a.Close()

	env := a.controller.Dispatch(ctx, verb, verbArgs)
	return printJSON(stdout, env)
}

// getConfigPath returns the configuration file path.
// Uses WIZ_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WIZ_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// printJSON writes v as one line of JSON.
func printJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
