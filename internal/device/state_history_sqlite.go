package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var errNonPositiveRetention = errors.New("retention must be positive")

const (
	insertStateSQL = `INSERT INTO wiz_state_history (mac, ip, state, source, recorded_at)
		VALUES (?, ?, ?, ?, ?)`

	selectHistorySQL = `SELECT id, mac, ip, state, source, recorded_at
		FROM wiz_state_history
		WHERE mac = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	pruneHistorySQL = `DELETE FROM wiz_state_history WHERE recorded_at < ?`
)

// SQLiteStateHistoryRepository keeps state reads in wiz_state_history,
// the state itself stored as its JSON text.
type SQLiteStateHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStateHistoryRepository wraps db, which must already be migrated.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db, now: time.Now}
}

// RecordStateChange stores one state read. RecordedAt defaults to now and
// Source to StateSourceCLI.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, entry StateHistoryEntry) error {
	mac, err := NormalizeMAC(entry.MAC)
	if err != nil {
		return err
	}
	if err := ValidateState(entry.State); err != nil {
		return err
	}
	state, err := json.Marshal(entry.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	source := entry.Source
	if source == "" {
		source = StateSourceCLI
	}
	at := entry.RecordedAt
	if at.IsZero() {
		at = r.now()
	}

	if _, err := r.db.ExecContext(ctx, insertStateSQL, mac, entry.IP, string(state), source, formatTimestamp(at)); err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns a bulb's state reads, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - mac: Bulb MAC in any accepted form
//   - limit: At most this many; non-positive means 50, capped at 200
//
// Returns:
//   - []StateHistoryEntry: Possibly empty, never nil
//   - error: ErrInvalidMAC, or the query error
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, mac string, limit int) ([]StateHistoryEntry, error) {
	mac, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	limit = historyLimit(limit)

	rows, err := r.db.QueryContext(ctx, selectHistorySQL, mac, limit)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return min(limit, maxHistoryLimit)
}

func scanHistoryEntry(row rowScanner) (StateHistoryEntry, error) {
	var (
		entry      StateHistoryEntry
		state      string
		recordedAt string
	)
	if err := row.Scan(&entry.ID, &entry.MAC, &entry.IP, &state, &entry.Source, &recordedAt); err != nil {
		return entry, fmt.Errorf("scanning state history: %w", err)
	}
	if err := json.Unmarshal([]byte(state), &entry.State); err != nil {
		return entry, fmt.Errorf("unmarshalling state: %w", err)
	}
	at, err := parseTimestamp(recordedAt)
	if err != nil {
		return entry, err
	}
	entry.RecordedAt = at
	return entry, nil
}

// PruneHistory deletes state reads older than retention and reports how
// many went.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errNonPositiveRetention
	}

	res, err := r.db.ExecContext(ctx, pruneHistorySQL, formatTimestamp(r.now().Add(-retention)))
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}
