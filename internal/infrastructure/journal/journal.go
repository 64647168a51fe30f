package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/wallbox-bridge/internal/infrastructure/config"
)

// Journal storage constants.
const (
	// dirPermissions is the permission mode for the journal directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the journal file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying connectivity.
	connectionTimeout = 5 * time.Second

	// writeTimeout bounds a single journal insert. Relay handlers run on
	// the MQTT dispatch goroutine, so a stuck disk must not stall relaying.
	writeTimeout = 2 * time.Second
)

// schema creates the journal table on first open.
const schema = `
CREATE TABLE IF NOT EXISTS relay_journal (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    relayed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    bridge     TEXT     NOT NULL,
    direction  TEXT     NOT NULL,
    topic      TEXT     NOT NULL,
    payload    BLOB     NOT NULL,
    qos        INTEGER  NOT NULL,
    retained   INTEGER  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_relay_journal_relayed_at ON relay_journal(relayed_at);
CREATE INDEX IF NOT EXISTS idx_relay_journal_topic ON relay_journal(topic);
`

// Entry is one journaled relay record.
type Entry struct {
	ID        int64
	RelayedAt time.Time
	Bridge    string
	Direction string
	Topic     string
	Payload   []byte
	QoS       byte
	Retained  bool
}

// Journal is a SQLite-backed audit log of relayed messages.
//
// Thread Safety: safe for concurrent use; the connection pool is capped
// at a single connection, serializing writes.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal database.
//
// It performs the following setup:
//  1. Creates the journal directory if it doesn't exist
//  2. Opens the database file with busy timeout (and WAL if configured)
//  3. Creates the relay_journal table and indexes
//  4. Verifies the connection with a ping
//
// Parameters:
//   - cfg: Journal configuration
//
// Returns:
//   - *Journal: Ready for Record calls
//   - error: If connection or schema setup fails
func Open(cfg config.JournalConfig) (*Journal, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	// Ignore error - file might not exist yet on first run, will be set after first write
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Intentional: first run creates file later

	return &Journal{db: db, path: cfg.Path}, nil
}

// Record appends one relayed message to the journal.
//
// The insert runs under its own short timeout; the caller's dispatch
// goroutine is never blocked on a slow disk for longer than that.
//
// Parameters:
//   - bridge: Connection name from the declaration
//   - direction: "in" or "out"
//   - topic: Concrete topic the message was relayed on
//   - payload: Message body as relayed (stored verbatim)
//   - qos: QoS the relay published with
//   - retained: Retained flag as relayed
//
// Returns:
//   - error: If the insert fails or times out
func (j *Journal) Record(bridge, direction, topic string, payload []byte, qos byte, retained bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO relay_journal (bridge, direction, topic, payload, qos, retained)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bridge, direction, topic, payload, qos, boolToInt(retained),
	)
	if err != nil {
		return fmt.Errorf("recording relay: %w", err)
	}
	return nil
}

// Recent returns the newest journal entries, newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - limit: Maximum number of entries to return
//
// Returns:
//   - []Entry: Up to limit entries
//   - error: If the query fails
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, relayed_at, bridge, direction, topic, payload, qos, retained
		 FROM relay_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var entries []Entry
	for rows.Next() {
		var e Entry
		var retained int
		if err := rows.Scan(&e.ID, &e.RelayedAt, &e.Bridge, &e.Direction,
			&e.Topic, &e.Payload, &e.QoS, &retained); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Retained = retained != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal entries: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the retention window.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - retention: Entries older than now minus retention are removed
//
// Returns:
//   - int64: Number of entries removed
//   - error: If the delete fails
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	// CURRENT_TIMESTAMP stores UTC text without a zone suffix; format the
	// cutoff the same way so the comparison is exact.
	cutoff := time.Now().Add(-retention).UTC().Format("2006-01-02 15:04:05")
	result, err := j.db.ExecContext(ctx,
		`DELETE FROM relay_journal WHERE relayed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}
	return removed, nil
}

// Count returns the total number of journal entries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relay_journal`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting journal entries: %w", err)
	}
	return count, nil
}

// HealthCheck verifies the journal database is accessible.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (j *Journal) HealthCheck(ctx context.Context) error {
	var result int
	if err := j.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("journal health check failed: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the journal file.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
