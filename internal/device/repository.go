package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BulbRepository persists discovered bulbs.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type BulbRepository interface {
	// RecordDiscovery inserts the bulb or, if its MAC is known, updates its
	// address, bumps last_seen and increments discoveries.
	RecordDiscovery(ctx context.Context, s Sighting, seenAt time.Time) error

	// GetByMAC retrieves a bulb by normalised MAC.
	// Returns ErrBulbNotFound if the bulb has never been seen.
	GetByMAC(ctx context.Context, mac string) (*Bulb, error)

	// List retrieves all bulbs, most recently seen first.
	List(ctx context.Context) ([]Bulb, error)
}

// SQLiteBulbRepository implements BulbRepository using the wiz_bulbs table.
type SQLiteBulbRepository struct {
	db *sql.DB
}

// NewSQLiteBulbRepository creates a new SQLite-backed bulb repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteBulbRepository(db *sql.DB) *SQLiteBulbRepository {
	return &SQLiteBulbRepository{db: db}
}

// RecordDiscovery upserts a sighting.
func (r *SQLiteBulbRepository) RecordDiscovery(ctx context.Context, s Sighting, seenAt time.Time) error {
	if err := ValidateSighting(&s); err != nil {
		return err
	}

	ts := formatTimestamp(seenAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wiz_bulbs (mac, ip, port, first_seen, last_seen, discoveries)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(mac) DO UPDATE SET
			ip = excluded.ip,
			port = excluded.port,
			last_seen = excluded.last_seen,
			discoveries = wiz_bulbs.discoveries + 1`,
		s.MAC, s.IP, s.Port, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("recording bulb %s: %w", s.MAC, err)
	}
	return nil
}

// GetByMAC retrieves a bulb by MAC. The MAC may be in any accepted form.
func (r *SQLiteBulbRepository) GetByMAC(ctx context.Context, mac string) (*Bulb, error) {
	normalised, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT mac, ip, port, first_seen, last_seen, discoveries
		FROM wiz_bulbs
		WHERE mac = ?`, normalised)

	bulb, err := scanBulb(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBulbNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying bulb %s: %w", normalised, err)
	}
	return bulb, nil
}

// List retrieves all bulbs, most recently seen first.
func (r *SQLiteBulbRepository) List(ctx context.Context) ([]Bulb, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac, ip, port, first_seen, last_seen, discoveries
		FROM wiz_bulbs
		ORDER BY last_seen DESC, mac`)
	if err != nil {
		return nil, fmt.Errorf("querying bulbs: %w", err)
	}
	defer rows.Close()

	bulbs := make([]Bulb, 0)
	for rows.Next() {
		bulb, err := scanBulb(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bulb: %w", err)
		}
		bulbs = append(bulbs, *bulb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bulbs: %w", err)
	}
	return bulbs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBulb(row rowScanner) (*Bulb, error) {
	var b Bulb
	var firstSeen, lastSeen string
	if err := row.Scan(&b.MAC, &b.IP, &b.Port, &firstSeen, &lastSeen, &b.Discoveries); err != nil {
		return nil, err
	}

	var err error
	if b.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
		return nil, err
	}
	if b.LastSeen, err = parseTimestamp(lastSeen); err != nil {
		return nil, err
	}
	return &b, nil
}

// parseTimestamp parses a stored timestamp, accepting plain RFC 3339 as well.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
