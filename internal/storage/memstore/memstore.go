// Package memstore is an in-memory storage.Store used by unit tests that
// exercise the service layer without a real database.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

// Store is a goroutine-safe, map-backed implementation of storage.Store.
type Store struct {
	mu         sync.RWMutex
	txMu       sync.Mutex
	clients    map[string]*models.Client
	byAPIKey   map[string]string // api key -> client id
	versions   map[string]*models.Version
	updateLogs map[string]*models.UpdateLog
}

// New returns an empty store.
func New() *Store {
	return &Store{
		clients:    make(map[string]*models.Client),
		byAPIKey:   make(map[string]string),
		versions:   make(map[string]*models.Version),
		updateLogs: make(map[string]*models.UpdateLog),
	}
}

func (s *Store) Close() error { return nil }

// WithTx serializes fn against other WithTx callers; each store method fn
// calls still takes its own lock, so this only guarantees no other
// transaction's writes interleave with fn's, matching what the tests that
// exercise Deployments.Result need from a real transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

func clone(c *models.Client) *models.Client {
	cp := *c
	return &cp
}

func (s *Store) RegisterClient(ctx context.Context, name, apiKey string, cfg models.ClientConfig) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.clients {
		if c.Name == name {
			return nil, storage.ErrConflict
		}
	}

	now := time.Now()
	c := &models.Client{
		ID:        uuid.New().String(),
		Name:      name,
		APIKey:    apiKey,
		Status:    models.StatusOffline,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.clients[c.ID] = c
	s.byAPIKey[apiKey] = c.ID
	return clone(c), nil
}

func (s *Store) UpdateClientConfig(ctx context.Context, id string, cfg models.ClientConfig) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Config = cfg
	c.UpdatedAt = time.Now()
	return clone(c), nil
}

func (s *Store) GetClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAPIKey[apiKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(s.clients[id]), nil
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) GetAllClients(ctx context.Context) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, clone(c))
	}
	return out, nil
}

func (s *Store) UpdateClientCheckin(ctx context.Context, id string, currentVersion *string, status models.ClientStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return storage.ErrNotFound
	}
	if currentVersion != nil {
		c.CurrentVersion = currentVersion
	}
	c.Status = status
	now := time.Now()
	c.LastSeen = &now
	c.UpdatedAt = now
	return nil
}

func (s *Store) SetClientTargetVersion(ctx context.Context, id string, targetVersion *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.TargetVersion = targetVersion
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkSuccess(ctx context.Context, id string, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return storage.ErrNotFound
	}
	v := version
	c.CurrentVersion = &v
	c.TargetVersion = nil
	c.Status = models.StatusOnline
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkFailure(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return storage.ErrNotFound
	}
	c.Status = models.StatusError
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Store) CreateVersion(ctx context.Context, v *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.versions {
		if existing.Version == v.Version {
			return storage.ErrConflict
		}
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now()
	v.IsActive = true
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *Store) GetVersion(ctx context.Context, version string) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions {
		if v.Version == version {
			cp := *v
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) GetVersionByID(ctx context.Context, id string) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) GetAllVersions(ctx context.Context) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Version, 0, len(s.versions))
	for _, v := range s.versions {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) CreateUpdateLog(ctx context.Context, log *models.UpdateLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	cp := *log
	s.updateLogs[log.ID] = &cp
	return nil
}

func (s *Store) UpdateLogStatus(ctx context.Context, id string, status models.UpdateLogStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.updateLogs[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Status = status
	l.ErrorMessage = errMsg
	if status.IsTerminal() {
		now := time.Now()
		l.CompletedAt = &now
	}
	return nil
}

func (s *Store) ListUpdateLogsForClient(ctx context.Context, clientID string, limit int) ([]*models.UpdateLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.UpdateLog
	for _, l := range s.updateLogs {
		if l.ClientID == clientID {
			cp := *l
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
