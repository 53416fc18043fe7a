// Package api implements the HTTP REST API for wizctl.
//
// This package provides:
//   - REST endpoints for every bulb verb (state, colour, scenes, power)
//   - Discovery, cache and bulb log endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server is a thin HTTP skin over the same Controller the CLI and
// MQTT bridge use. Every response body is the verb's result envelope:
//
//	{"success": true, "response": {...}}
//	{"success": false, "message": "No bulb found", "reason": "no_device_found"}
//
// The HTTP status follows the failure reason: 404 when no bulb can be
// found, 504 on timeout, 502 for transport or device errors and 400 for
// bad arguments.
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/bulb/state
//	POST   /api/v1/bulb/{verb}          JSON object body of named arguments
//	GET    /api/v1/scenes
//	POST   /api/v1/discover[?state=true]
//	DELETE /api/v1/cache
//	GET    /api/v1/bulbs
//	GET    /api/v1/bulbs/{mac}/history[?limit=N]
//	GET    /api/v1/commands[?limit=N]
package api
