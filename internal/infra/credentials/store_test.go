package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genstudio/internal/sqlinline"
)

type stubExecutor struct {
	values map[string]string
	err    error
	exec   struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.err != nil {
		return stubRow{err: s.err}
	}
	key, _ := args[0].(string)
	value, ok := s.values[key]
	if !ok {
		return stubRow{err: pgx.ErrNoRows}
	}
	return stubRow{value: value}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	value string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.value
	return nil
}

func TestLoadPrefersEnvironmentKey(t *testing.T) {
	exec := &stubExecutor{values: map[string]string{KeyAPIKey: " stored ", KeyBaseURL: "https://other.example/"}}
	store := NewStore(Credentials{APIKey: "env-key", BaseURL: "https://gw.example/"}, NewSQLBackend(exec), true)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	got := store.Snapshot()
	if got.APIKey != "env-key" {
		t.Fatalf("expected env-key, got %q", got.APIKey)
	}
	if got.BaseURL != "https://gw.example" {
		t.Fatalf("locked base url should not change, got %q", got.BaseURL)
	}
}

func TestLoadFallsBackToStoredKey(t *testing.T) {
	exec := &stubExecutor{values: map[string]string{KeyAPIKey: " stored ", KeyBaseURL: "https://other.example/"}}
	store := NewStore(Credentials{BaseURL: "https://gw.example"}, NewSQLBackend(exec), false)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	got := store.Snapshot()
	if got.APIKey != "stored" {
		t.Fatalf("expected stored, got %q", got.APIKey)
	}
	if got.BaseURL != "https://other.example" {
		t.Fatalf("expected stored base url, got %q", got.BaseURL)
	}
}

func TestLoadNoRows(t *testing.T) {
	store := NewStore(Credentials{BaseURL: "https://gw.example"}, NewSQLBackend(&stubExecutor{}), true)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if store.Snapshot().HasKey() {
		t.Fatal("expected no key")
	}
}

func TestUpdatePersistsKey(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(Credentials{BaseURL: "https://gw.example"}, NewSQLBackend(exec), true)
	got, err := store.Update(context.Background(), " secret ", "")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.APIKey != "secret" {
		t.Fatalf("expected secret, got %q", got.APIKey)
	}
	if exec.exec.query != sqlinline.QUpsertSetting {
		t.Fatalf("unexpected query %q", exec.exec.query)
	}
	if len(exec.exec.args) != 2 || exec.exec.args[1] != "secret" {
		t.Fatalf("unexpected args %#v", exec.exec.args)
	}
}

func TestUpdateRejectsLockedBaseURL(t *testing.T) {
	store := NewStore(Credentials{BaseURL: "https://gw.example"}, nil, true)
	if _, err := store.Update(context.Background(), "", "https://elsewhere"); err == nil {
		t.Fatal("expected error for locked base url")
	}
}

func TestUpdateEmpty(t *testing.T) {
	store := NewStore(Credentials{}, nil, false)
	if _, err := store.Update(context.Background(), " ", ""); err == nil {
		t.Fatal("expected error for empty update")
	}
}

func TestSnapshotIsolatedFromLaterUpdates(t *testing.T) {
	store := NewStore(Credentials{APIKey: "first", BaseURL: "https://gw.example"}, nil, false)
	before := store.Snapshot()
	if _, err := store.Update(context.Background(), "second", "https://new.example/"); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if before.APIKey != "first" {
		t.Fatalf("snapshot mutated: %q", before.APIKey)
	}
	after := store.Snapshot()
	if after.APIKey != "second" || after.BaseURL != "https://new.example" {
		t.Fatalf("unexpected snapshot %#v", after)
	}
}
