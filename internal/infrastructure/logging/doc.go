// Package logging is the slog setup shared by wizctl's commands.
//
// New builds a Logger from the logging section of config.yaml:
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json or text
//	  output: stderr   # stderr, stdout or none
//
// Every record carries service and version. Output defaults to stderr
// because a CLI verb prints its one JSON envelope on stdout.
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("bulb discovered", "ip", "10.0.0.5")
//	bridgeLog := log.With("component", "wiz-bridge")
package logging
