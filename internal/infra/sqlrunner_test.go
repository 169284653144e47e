package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecutor struct {
	queries []string
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.queries = append(r.queries, query)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.queries = append(r.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (r *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	r.queries = append(r.queries, query)
	return nil, errors.New("not implemented")
}

const markedQuery = `--sql 0b7e5c93-1a2d-4f86-8e4b-9c3d5f7a1e26
select payload
from generated_assets;
`

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker(markedQuery)
	if err != nil {
		t.Fatalf("ExtractMarker error: %v", err)
	}
	if marker != "0b7e5c93-1a2d-4f86-8e4b-9c3d5f7a1e26" {
		t.Fatalf("unexpected marker %q", marker)
	}
	if body != "select payload\nfrom generated_assets;" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestExtractMarkerRejectsUnmarked(t *testing.T) {
	if _, _, err := ExtractMarker("select 1"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("expected ErrMissingMarker, got %v", err)
	}
	if _, _, err := ExtractMarker("   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)

	if _, err := runner.Exec(context.Background(), markedQuery); err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	var payload string
	if err := runner.QueryRow(context.Background(), markedQuery).Scan(&payload); !IsNoRows(err) {
		t.Fatalf("expected no rows, got %v", err)
	}
	if len(exec.queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(exec.queries))
	}
	for _, q := range exec.queries {
		if q != "select payload\nfrom generated_assets;" {
			t.Fatalf("marker leaked into query: %q", q)
		}
	}
}

func TestSQLRunnerRefusesUnmarkedQuery(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, nil)
	if _, err := runner.Exec(context.Background(), "delete from generated_assets"); err == nil {
		t.Fatal("expected error for unmarked query")
	}
	if len(exec.queries) != 0 {
		t.Fatalf("unmarked query reached the database: %v", exec.queries)
	}
}
