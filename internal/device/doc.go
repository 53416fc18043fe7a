// Package device provides the bulb log for wizctl.
//
// The bulb log remembers every WiZ bulb that discovery has found, keyed by
// MAC, and keeps a history of state reads taken from them. It is optional:
// wizctl works without it, and it is only opened when the database is
// enabled in configuration.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────┐
//	│                         Bulb Log                          │
//	│                                                           │
//	│  ┌──────────────────┐    ┌───────────────────────────┐    │
//	│  │     Registry     │    │       Repositories        │    │
//	│  │   (registry.go)  │───▶│ repository.go             │    │
//	│  │                  │    │ state_history_sqlite.go   │    │
//	│  │ • Discovery log  │    │                           │    │
//	│  │ • MAC-by-IP cache│    │ • SQLite upserts          │    │
//	│  │ • Thread safety  │    │ • JSON state snapshots    │    │
//	│  └──────────────────┘    └───────────────────────────┘    │
//	└───────────────────────────────────────────────────────────┘
//	                                 │
//	                                 ▼
//	                  ┌──────────────────────────────┐
//	                  │        SQLite Database       │
//	                  │ wiz_bulbs, wiz_state_history │
//	                  └──────────────────────────────┘
//
// # Usage
//
//	registry := device.NewRegistry(
//	    device.NewSQLiteBulbRepository(db.DB),
//	    device.NewSQLiteStateHistoryRepository(db.DB),
//	)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// After a discovery run
//	registry.RecordDiscovery(ctx, []device.Sighting{{MAC: "a8bb50112233", IP: "192.168.1.20"}})
//
//	// After a state read
//	registry.RecordState(ctx, device.StateHistoryEntry{IP: "192.168.1.20", State: state})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. The cache is protected by a
// read-write mutex; the SQLite repositories rely on database/sql pooling.
package device
