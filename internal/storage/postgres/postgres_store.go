// Package postgres implements storage.Store against a Postgres database
// via the shared connection pool in internal/database/postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	dbpostgres "github.com/sam-dm/deployment-manager/internal/database/postgres"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

// Store implements storage.Store on top of a pgx connection pool.
type Store struct {
	conn dbpostgres.DatabaseConnection
}

// New wraps an already-connected pool.
func New(conn dbpostgres.DatabaseConnection) *Store {
	return &Store{conn: conn}
}

func (s *Store) Close() error {
	return s.conn.Disconnect(context.Background())
}

// querier is the Exec/Query/QueryRow subset shared by
// dbpostgres.DatabaseConnection and pgx.Tx, so store methods can run
// against either the pool or an in-flight transaction transparently.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type txKey struct{}

// db returns the transaction stashed in ctx by WithTx, falling back to the
// pool when the caller isn't inside one.
func (s *Store) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.conn
}

// WithTx runs fn against a single transaction; fn's ctx carries the
// transaction so store methods called with it join the same unit of work.
// Returning an error from fn rolls back, otherwise WithTx commits.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrConflict
	}
	return err
}

func (s *Store) RegisterClient(ctx context.Context, name, apiKey string, cfg models.ClientConfig) (*models.Client, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	row := s.db(ctx).QueryRow(ctx, `
		INSERT INTO clients (id, name, api_key, status, config, created_at, updated_at)
		VALUES ($1, $2, $3, 'offline', $4, NOW(), NOW())
		RETURNING id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at
	`, id, name, apiKey, cfgJSON)
	return scanClient(row)
}

func (s *Store) UpdateClientConfig(ctx context.Context, id string, cfg models.ClientConfig) (*models.Client, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	row := s.db(ctx).QueryRow(ctx, `
		UPDATE clients SET config = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at
	`, id, cfgJSON)
	return scanClient(row)
}

func (s *Store) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at
		FROM clients WHERE api_key = $1
	`, apiKey)
	return scanClient(row)
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at
		FROM clients WHERE id = $1
	`, id)
	return scanClient(row)
}

func (s *Store) GetAllClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, name, api_key, current_version, target_version, last_seen, status, config, created_at, updated_at
		FROM clients ORDER BY created_at
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		c, err := scanClientRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClientCheckin(ctx context.Context, id string, currentVersion *string, status models.ClientStatus) error {
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE clients
		SET current_version = COALESCE($2, current_version),
		    status = $3,
		    last_seen = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`, id, currentVersion, status)
	return mapErr(err)
}

func (s *Store) SetClientTargetVersion(ctx context.Context, id string, targetVersion *string) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE clients SET target_version = $2, updated_at = NOW() WHERE id = $1
	`, id, targetVersion)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkSuccess(ctx context.Context, id string, version string) error {
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE clients
		SET current_version = $2, target_version = NULL, status = 'online', updated_at = NOW()
		WHERE id = $1
	`, id, version)
	return mapErr(err)
}

func (s *Store) MarkFailure(ctx context.Context, id string) error {
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE clients SET status = 'error', updated_at = NOW() WHERE id = $1
	`, id)
	return mapErr(err)
}

func (s *Store) CreateVersion(ctx context.Context, v *models.Version) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	row := s.db(ctx).QueryRow(ctx, `
		INSERT INTO versions (id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		RETURNING created_at
	`, v.ID, v.Version, v.ArtifactPath, v.ArtifactSize, v.Checksum, v.ReleaseNotes)
	return mapErr(row.Scan(&v.CreatedAt))
}

func (s *Store) GetVersion(ctx context.Context, version string) (*models.Version, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at
		FROM versions WHERE version = $1
	`, version)
	return scanVersion(row)
}

func (s *Store) GetVersionByID(ctx context.Context, id string) (*models.Version, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at
		FROM versions WHERE id = $1
	`, id)
	return scanVersion(row)
}

func (s *Store) GetAllVersions(ctx context.Context) ([]*models.Version, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, version, artifact_path, artifact_size, checksum, release_notes, is_active, created_at
		FROM versions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v := &models.Version{}
		if err := rows.Scan(&v.ID, &v.Version, &v.ArtifactPath, &v.ArtifactSize, &v.Checksum, &v.ReleaseNotes, &v.IsActive, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) CreateUpdateLog(ctx context.Context, log *models.UpdateLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO update_logs (id, client_id, from_version, to_version, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, log.ID, log.ClientID, log.FromVersion, log.ToVersion, log.Status, log.StartedAt)
	return mapErr(err)
}

func (s *Store) UpdateLogStatus(ctx context.Context, id string, status models.UpdateLogStatus, errMsg *string) error {
	var completedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE update_logs SET status = $2, error_message = $3, completed_at = $4 WHERE id = $1
	`, id, status, errMsg, completedAt)
	return mapErr(err)
}

func (s *Store) ListUpdateLogsForClient(ctx context.Context, clientID string, limit int) ([]*models.UpdateLog, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, client_id, from_version, to_version, status, error_message, started_at, completed_at
		FROM update_logs WHERE client_id = $1 ORDER BY started_at DESC LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*models.UpdateLog
	for rows.Next() {
		l := &models.UpdateLog{}
		if err := rows.Scan(&l.ID, &l.ClientID, &l.FromVersion, &l.ToVersion, &l.Status, &l.ErrorMessage, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	return scanClientRows(row)
}

func scanClientRows(row rowScanner) (*models.Client, error) {
	c := &models.Client{}
	var cfgJSON []byte
	if err := row.Scan(&c.ID, &c.Name, &c.APIKey, &c.CurrentVersion, &c.TargetVersion, &c.LastSeen, &c.Status, &cfgJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	if len(cfgJSON) > 0 {
		if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func scanVersion(row rowScanner) (*models.Version, error) {
	v := &models.Version{}
	if err := row.Scan(&v.ID, &v.Version, &v.ArtifactPath, &v.ArtifactSize, &v.Checksum, &v.ReleaseNotes, &v.IsActive, &v.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return v, nil
}
