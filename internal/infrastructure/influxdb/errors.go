package influxdb

import "errors"

// Errors returned by Connect and HealthCheck. Bulb state writes never
// return an error; failures arrive through the SetOnError callback.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// wizctl only connects when it is set, so seeing this is a wiring bug.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed or unhealthy ping at startup.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
