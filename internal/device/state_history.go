package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateSourceCLI  = "cli"
	StateSourceAPI  = "api"
	StateSourceMQTT = "mqtt"
)

// StateHistoryRepository stores and retrieves bulb state reads.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records one state read.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: The read; MAC must be set, ID is ignored
	//
	// Returns:
	//   - error: nil on success, otherwise the validation or persistence error
	RecordStateChange(ctx context.Context, entry StateHistoryEntry) error

	// GetHistory returns recent reads for a bulb, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - mac: Bulb MAC in any accepted form
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	GetHistory(ctx context.Context, mac string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes reads older than olderThan and reports how many
	// rows were removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
