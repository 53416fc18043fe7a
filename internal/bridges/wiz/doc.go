// Package wiz implements the WiZ smart bulb bridge for Gray Logic.
//
// WiZ bulbs speak a small JSON protocol over UDP port 38899. This package
// finds a bulb on the local network, remembers where it was, and sends it
// control commands, recovering once when the bulb has moved.
//
// # Architecture
//
//	┌────────────┐      ┌────────────┐      ┌─────────────┐
//	│ Controller │─────►│  Session   │─────►│ UDPTransport│──► bulb
//	│  (verbs)   │      │ (resolve)  │      └─────────────┘
//	└────────────┘      │            │─────►┌─────────────┐
//	      ▲             │            │      │ Broadcaster │──► broadcast
//	      │             │            │      └─────────────┘
//	 CLI / MQTT /       │            │─────►┌─────────────┐
//	 HTTP API           └────────────┘      │ CacheStore  │──► temp file
//	                                        └─────────────┘
//
// # Key Responsibilities
//
//   - Discover bulbs with a registration broadcast, deduplicated by MAC
//   - Cache the last bulb address for one hour between runs
//   - Probe a cached address before trusting it
//   - Classify every exchange as a tagged Result
//   - On timeout only: clear the cache, rediscover once, resend once
//   - Bridge commands and state to MQTT, and publish bridge health
//   - Hand state reads to StateRecorders and setPilot attempts to a CommandLog
//
// # Session States
//
//	Unresolved ──resolve ok──► Resolved ──timeout──► Degraded
//	     ▲                        ▲                     │
//	     └────no bulb found───────┴────rediscovered─────┘
//
// # Example
//
//	session, err := wiz.NewSession(wiz.SessionOptions{
//	    Cache:      wiz.NewFileCache(wiz.FileCacheOptions{Path: path}),
//	    Transport:  wiz.NewUDPTransport(wiz.DefaultCommandTimeout, logger),
//	    Prober:     wiz.NewStatusProber(wiz.DefaultProbeTimeout, logger),
//	    Discoverer: wiz.NewBroadcaster(wiz.BroadcasterOptions{}),
//	})
//	ctrl, err := wiz.NewController(wiz.ControllerOptions{Session: session})
//	env := ctrl.SetBrightness(ctx, 50)
//
// # Thread Safety
//
// Controller, Bridge and HealthReporter are safe for concurrent use.
// Session is driven by one caller at a time; the Controller serialises it.
package wiz
