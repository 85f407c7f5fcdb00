package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	storeDBName = "webmon.db"

	configKey    = "focus"
	apiKeySecret = "gemini_api_key"
)

// EncryptedStore implements domain.ConfigStore and domain.DaemonRegistry
// on top of a SQLCipher encrypted SQLite database.
//
// The configuration document is stored as JSON, the Gemini API key is kept
// apart from it in the secrets table so that config dumps never carry it.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted store in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// A single connection serialises writers; SQLite would otherwise return SQLITE_BUSY
	// under concurrent handler writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daemon_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		addr TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		app_version TEXT DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- domain.ConfigStore implementation ---

// Load returns the stored configuration, or a zero configuration when nothing
// has been saved yet. Callers detect first run through Stored.
func (s *EncryptedStore) Load(ctx context.Context) (*domain.FocusConfiguration, error) {
	cfg := &domain.FocusConfiguration{}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, configKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode configuration: %w", err)
		}
	}

	apiKey, err := s.getSecret(ctx, apiKeySecret)
	if err != nil {
		return nil, err
	}
	cfg.GeminiAPIKey = apiKey
	return cfg, nil
}

// Stored reports whether a configuration document has been saved.
func (s *EncryptedStore) Stored(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config WHERE key = ?`, configKey).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to read configuration: %w", err)
	}
	return n > 0, nil
}

// Save replaces the stored configuration in one transaction.
func (s *EncryptedStore) Save(ctx context.Context, cfg *domain.FocusConfiguration) error {
	doc := *cfg
	doc.GeminiAPIKey = ""
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO config (key, value, updated_at) VALUES (?, ?, ?)`,
		configKey, string(data), now); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		_, err = tx.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, apiKeySecret)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
			apiKeySecret, cfg.GeminiAPIKey, now)
	}
	if err != nil {
		return fmt.Errorf("failed to write api key: %w", err)
	}
	return tx.Commit()
}

// GetMeta returns a metadata value, "" when absent.
func (s *EncryptedStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a metadata value.
func (s *EncryptedStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %q: %w", key, err)
	}
	return nil
}

func (s *EncryptedStore) getSecret(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret %q: %w", key, err)
	}
	return value, nil
}

// --- domain.DaemonRegistry implementation ---

// Register records the running daemon, replacing any previous registration.
func (s *EncryptedStore) Register(ctx context.Context, d domain.Daemon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daemon_state (id, pid, addr, started_at, app_version)
		VALUES (1, ?, ?, ?, ?)`,
		d.PID, d.Addr, d.StartedAt.Unix(), d.AppVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to register daemon: %w", err)
	}
	return nil
}

// Get returns the registered daemon, nil if none.
func (s *EncryptedStore) Get(ctx context.Context) (*domain.Daemon, error) {
	var (
		d       domain.Daemon
		started int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT pid, addr, started_at, app_version FROM daemon_state WHERE id = 1`).
		Scan(&d.PID, &d.Addr, &started, &d.AppVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon state: %w", err)
	}
	d.StartedAt = time.Unix(started, 0)
	return &d, nil
}

// Clear removes the daemon registration.
func (s *EncryptedStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM daemon_state`); err != nil {
		return fmt.Errorf("failed to clear daemon state: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ domain.ConfigStore = (*EncryptedStore)(nil)
var _ domain.DaemonRegistry = (*EncryptedStore)(nil)
