// Package sqlite implements storage.Store on top of modernc.org/sqlite, a
// pure-Go (no cgo) SQLite driver. It backs dmserver's embedded store
// (selected with -sqlite), using the same column layout as the postgres
// backend so the same SQL-shaped logic applies to both.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// Pure Go SQLite driver (no CGO, easier cross-compilation)
	_ "modernc.org/sqlite"

	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

// Store implements storage.Store backed by a single SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// New opens (creating if necessary) a SQLite database at path and
// initializes its schema. Path must not contain ".." or point into a
// forbidden system directory.
func New(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid path contains '..': %s", path)
	}
	for _, prefix := range []string{"/etc", "/sys", "/proc", "/dev"} {
		if strings.HasPrefix(path, prefix) {
			return nil, fmt.Errorf("forbidden path prefix %s: %s", prefix, path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	s := &Store{db: db, logger: logger, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS clients (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    api_key         TEXT NOT NULL UNIQUE,
    current_version TEXT,
    target_version  TEXT,
    last_seen       INTEGER,
    status          TEXT NOT NULL DEFAULT 'offline',
    config          TEXT NOT NULL DEFAULT '{}',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
    id            TEXT PRIMARY KEY,
    version       TEXT NOT NULL UNIQUE,
    artifact_path TEXT NOT NULL,
    artifact_size INTEGER NOT NULL,
    checksum      TEXT NOT NULL,
    release_notes TEXT NOT NULL DEFAULT '',
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS update_logs (
    id            TEXT PRIMARY KEY,
    client_id     TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
    from_version  TEXT,
    to_version    TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT,
    started_at    INTEGER NOT NULL,
    completed_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_clients_api_key ON clients(api_key);
CREATE INDEX IF NOT EXISTS idx_update_logs_client_id ON update_logs(client_id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// execer is the ExecContext/QueryContext/QueryRowContext subset shared by
// *sql.DB and *sql.Tx, so store methods can run against either the pool or
// an in-flight transaction transparently.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// conn returns the transaction stashed in ctx by WithTx, falling back to
// the database handle when the caller isn't inside one.
func (s *Store) conn(ctx context.Context) execer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn against a single transaction; fn's ctx carries the
// transaction so store methods called with it join the same unit of work.
// Returning an error from fn rolls back, otherwise WithTx commits.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return storage.ErrConflict
	}
	return err
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Store) RegisterClient(ctx context.Context, name, apiKey string, cfg models.ClientConfig) (*models.Client, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	now := time.Now()
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO clients (id, name, api_key, status, config, created_at, updated_at)
		VALUES (?, ?, ?, 'offline', ?, ?, ?)
	`, id, name, apiKey, string(cfgJSON), toMillis(now), toMillis(now))
	if err != nil {
		return nil, mapErr(err)
	}
	return s.GetClientByID(ctx, id)
}

func (s *Store) UpdateClientConfig(ctx context.Context, id string, cfg models.ClientConfig) (*models.Client, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE clients SET config = ?, updated_at = ? WHERE id = ?`, string(cfgJSON), toMillis(time.Now()), id)
	if err != nil {
		return nil, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetClientByID(ctx, id)
}

func (s *Store) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error) {
	row := s.conn(ctx).QueryRowContext(ctx, clientSelect+" WHERE api_key = ?", apiKey)
	return scanClient(row)
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	row := s.conn(ctx).QueryRowContext(ctx, clientSelect+" WHERE id = ?", id)
	return scanClient(row)
}

func (s *Store) GetAllClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, clientSelect+" ORDER BY created_at")
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClientCheckin(ctx context.Context, id string, currentVersion *string, status models.ClientStatus) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE clients
		SET current_version = COALESCE(?, current_version), status = ?, last_seen = ?, updated_at = ?
		WHERE id = ?
	`, currentVersion, status, toMillis(time.Now()), toMillis(time.Now()), id)
	return mapErr(err)
}

func (s *Store) SetClientTargetVersion(ctx context.Context, id string, targetVersion *string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE clients SET target_version = ?, updated_at = ? WHERE id = ?`, targetVersion, toMillis(time.Now()), id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkSuccess(ctx context.Context, id string, version string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE clients SET current_version = ?, target_version = NULL, status = 'online', updated_at = ?
		WHERE id = ?
	`, version, toMillis(time.Now()), id)
	return mapErr(err)
}

func (s *Store) MarkFailure(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `UPDATE clients SET status = 'error', updated_at = ? WHERE id = ?`, toMillis(time.Now()), id)
	return mapErr(err)
}

const clientSelect = `SELECT id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at FROM clients`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row scanner) (*models.Client, error) {
	c := &models.Client{}
	var lastSeen, createdAt, updatedAt int64
	var lastSeenNull sql.NullInt64
	var cfgJSON string
	if err := row.Scan(&c.ID, &c.Name, &c.APIKey, &c.CurrentVersion, &c.TargetVersion, &lastSeenNull, &c.Status, &cfgJSON, &createdAt, &updatedAt); err != nil {
		return nil, mapErr(err)
	}
	if lastSeenNull.Valid {
		lastSeen = lastSeenNull.Int64
		t := fromMillis(lastSeen)
		c.LastSeen = &t
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	if cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), &c.Config); err != nil {
			return nil, err
		}
	}
	return c, nil
}

const versionSelect = `SELECT id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at FROM versions`

func (s *Store) CreateVersion(ctx context.Context, v *models.Version) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now()
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO versions (id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	`, v.ID, v.Version, v.ArtifactPath, v.ArtifactSize, v.Checksum, v.ReleaseNotes, toMillis(v.CreatedAt))
	return mapErr(err)
}

func (s *Store) GetVersion(ctx context.Context, version string) (*models.Version, error) {
	row := s.conn(ctx).QueryRowContext(ctx, versionSelect+" WHERE version = ?", version)
	return scanVersion(row)
}

func (s *Store) GetVersionByID(ctx context.Context, id string) (*models.Version, error) {
	row := s.conn(ctx).QueryRowContext(ctx, versionSelect+" WHERE id = ?", id)
	return scanVersion(row)
}

func (s *Store) GetAllVersions(ctx context.Context) ([]*models.Version, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, versionSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVersion(row scanner) (*models.Version, error) {
	v := &models.Version{}
	var isActive int
	var createdAt int64
	if err := row.Scan(&v.ID, &v.Version, &v.ArtifactPath, &v.ArtifactSize, &v.Checksum, &v.ReleaseNotes, &isActive, &createdAt); err != nil {
		return nil, mapErr(err)
	}
	v.IsActive = isActive != 0
	v.CreatedAt = fromMillis(createdAt)
	return v, nil
}

func (s *Store) CreateUpdateLog(ctx context.Context, log *models.UpdateLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO update_logs (id, client_id, from_version, to_version, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.ID, log.ClientID, log.FromVersion, log.ToVersion, log.Status, toMillis(log.StartedAt))
	return mapErr(err)
}

func (s *Store) UpdateLogStatus(ctx context.Context, id string, status models.UpdateLogStatus, errMsg *string) error {
	var completedAt int64
	if status.IsTerminal() {
		completedAt = toMillis(time.Now())
	}
	var completedAtArg interface{}
	if completedAt != 0 {
		completedAtArg = completedAt
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE update_logs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, status, errMsg, completedAtArg, id)
	return mapErr(err)
}

func (s *Store) ListUpdateLogsForClient(ctx context.Context, clientID string, limit int) ([]*models.UpdateLog, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, client_id, from_version, to_version, status, error_message, started_at, completed_at
		FROM update_logs WHERE client_id = ? ORDER BY started_at DESC LIMIT ?
	`, clientID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.UpdateLog
	for rows.Next() {
		l := &models.UpdateLog{}
		var startedAt int64
		var completedAt sql.NullInt64
		if err := rows.Scan(&l.ID, &l.ClientID, &l.FromVersion, &l.ToVersion, &l.Status, &l.ErrorMessage, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		l.StartedAt = fromMillis(startedAt)
		if completedAt.Valid {
			t := fromMillis(completedAt.Int64)
			l.CompletedAt = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
