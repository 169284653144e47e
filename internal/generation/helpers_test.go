package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/library"
	"genstudio/internal/providers/gateway"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu      sync.Mutex
	records map[string]domain.GeneratedAsset
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.GeneratedAsset)}
}

func (m *memStore) Put(ctx context.Context, a domain.GeneratedAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[a.ID] = a.Clone()
	return nil
}

func (m *memStore) GetAll(ctx context.Context) ([]domain.GeneratedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.GeneratedAsset, 0, len(m.records))
	for _, a := range m.records {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id string) (domain.GeneratedAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	if !ok {
		return domain.GeneratedAsset{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) stored(id string) (domain.GeneratedAsset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.records[id]
	return a, ok
}

// statusStub answers status requests per path. The last queued reply for a
// path repeats forever.
type statusStub struct {
	mu       sync.Mutex
	replies  map[string][]statusReply
	calls    []string
	hasCreds bool
}

type statusReply struct {
	body string
	err  error
}

func newStatusStub() *statusStub {
	return &statusStub{replies: make(map[string][]statusReply), hasCreds: true}
}

func (s *statusStub) on(path string, replies ...statusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = append(s.replies[path], replies...)
}

func (s *statusStub) GetJSON(ctx context.Context, path string) (gateway.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, path)
	queue := s.replies[path]
	if len(queue) == 0 {
		return gateway.Document{}, fmt.Errorf("no reply for %s: %w", path, domain.ErrPollingTransport)
	}
	next := queue[0]
	if len(queue) > 1 {
		s.replies[path] = queue[1:]
	}
	if next.err != nil {
		return gateway.Document{}, next.err
	}
	return gateway.ParseDocument(200, []byte(next.body))
}

func (s *statusStub) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCreds
}

func (s *statusStub) callCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == path {
			n++
		}
	}
	return n
}

type staticCreds bool

func (c staticCreds) HasCredentials() bool { return bool(c) }

// providerFunc adapts a function to Provider.
type providerFunc func(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error)

func (f providerFunc) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	return f(ctx, cfg)
}

type remixFunc func(ctx context.Context, sourceTaskID, modelID, prompt string) (domain.Submission, error)

func (f remixFunc) Remix(ctx context.Context, sourceTaskID, modelID, prompt string) (domain.Submission, error) {
	return f(ctx, sourceTaskID, modelID, prompt)
}

type lyricsFunc func(ctx context.Context, prompt string) (string, error)

func (f lyricsFunc) SubmitLyrics(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type harness struct {
	ctx       context.Context
	store     *memStore
	library   *library.Library
	status    *statusStub
	poller    *Poller
	submitter *Submitter
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemStore()
	lib := library.New(store, nil)
	status := newStatusStub()
	poller := NewPoller(ctx, status, lib,
		WithInterval(5*time.Millisecond),
		WithPollerClock(func() time.Time { return testEpoch.Add(7400 * time.Millisecond) }),
	)
	deps := Deps{
		Library:     lib,
		Poller:      poller,
		Credentials: staticCreds(true),
		Now:         func() time.Time { return testEpoch },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h := &harness{
		ctx:       ctx,
		store:     store,
		library:   lib,
		status:    status,
		poller:    poller,
		submitter: NewSubmitter(ctx, deps),
	}
	t.Cleanup(func() {
		cancel()
		h.submitter.Wait()
		h.poller.Wait()
	})
	return h
}

func withImage(p Provider) harnessOption {
	return func(d *Deps) { d.Image = p }
}

func withVideo(p Provider) harnessOption {
	return func(d *Deps) { d.Video = p }
}

func (h *harness) waitStatus(t *testing.T, id string, want domain.AssetStatus) domain.GeneratedAsset {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a, ok := h.library.Get(id); ok && a.Status == want {
			return a
		}
		time.Sleep(2 * time.Millisecond)
	}
	a, _ := h.library.Get(id)
	t.Fatalf("asset %s: want status %s, got %s (%q)", id, want, a.Status, a.GenTimeLabel)
	return domain.GeneratedAsset{}
}

var errBoom = errors.New("boom")
