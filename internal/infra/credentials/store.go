package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

const (
	KeyAPIKey  = "gateway.api_key"
	KeyBaseURL = "gateway.base_url"
)

// Credentials is the value every gateway request reads: the bearer key and the
// base URL of the aggregation service.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// HasKey reports whether an API key is configured.
func (c Credentials) HasKey() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Backend persists settings across restarts.
type Backend interface {
	LoadSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key, value string) error
}

// Store holds the current credentials. Updates are visible to the next request
// and never to one already in flight, since callers copy a Snapshot.
type Store struct {
	mu          sync.RWMutex
	current     Credentials
	backend     Backend
	lockBaseURL bool
}

// NewStore seeds the store with defaults. backend may be nil.
func NewStore(defaults Credentials, backend Backend, lockBaseURL bool) *Store {
	defaults.APIKey = strings.TrimSpace(defaults.APIKey)
	defaults.BaseURL = normalizeBaseURL(defaults.BaseURL)
	return &Store{current: defaults, backend: backend, lockBaseURL: lockBaseURL}
}

// Load overlays persisted settings on top of the defaults. The environment
// key wins over a persisted one.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	key, err := s.backend.LoadSetting(ctx, KeyAPIKey)
	if err != nil {
		return fmt.Errorf("credentials: load api key: %w", err)
	}
	base, err := s.backend.LoadSetting(ctx, KeyBaseURL)
	if err != nil {
		return fmt.Errorf("credentials: load base url: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.APIKey == "" {
		s.current.APIKey = strings.TrimSpace(key)
	}
	if !s.lockBaseURL && strings.TrimSpace(base) != "" {
		s.current.BaseURL = normalizeBaseURL(base)
	}
	return nil
}

// Snapshot returns a copy of the current credentials.
func (s *Store) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the api key and, unless locked, the base URL. Empty values
// leave the current setting untouched.
func (s *Store) Update(ctx context.Context, apiKey, baseURL string) (Credentials, error) {
	apiKey = strings.TrimSpace(apiKey)
	baseURL = normalizeBaseURL(baseURL)
	if apiKey == "" && baseURL == "" {
		return Credentials{}, errors.New("api key or base url is required")
	}
	if baseURL != "" && s.lockBaseURL {
		return Credentials{}, errors.New("base url is fixed by configuration")
	}

	s.mu.Lock()
	if apiKey != "" {
		s.current.APIKey = apiKey
	}
	if baseURL != "" {
		s.current.BaseURL = baseURL
	}
	next := s.current
	s.mu.Unlock()

	if s.backend == nil {
		return next, nil
	}
	if apiKey != "" {
		if err := s.backend.SaveSetting(ctx, KeyAPIKey, apiKey); err != nil {
			return next, fmt.Errorf("credentials: save api key: %w", err)
		}
	}
	if baseURL != "" {
		if err := s.backend.SaveSetting(ctx, KeyBaseURL, baseURL); err != nil {
			return next, fmt.Errorf("credentials: save base url: %w", err)
		}
	}
	return next, nil
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// SQLBackend keeps settings in the Postgres studio_settings table.
type SQLBackend struct {
	sql infra.SQLExecutor
}

func NewSQLBackend(sql infra.SQLExecutor) *SQLBackend {
	return &SQLBackend{sql: sql}
}

func (b *SQLBackend) LoadSetting(ctx context.Context, key string) (string, error) {
	row := b.sql.QueryRow(ctx, sqlinline.QSelectSetting, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (b *SQLBackend) SaveSetting(ctx context.Context, key, value string) error {
	_, err := b.sql.Exec(ctx, sqlinline.QUpsertSetting, key, value)
	return err
}
