package httpapi

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/library"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]domain.GeneratedAsset
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

// pendingStatus reports every task as still running.
type pendingStatus struct{}

func (pendingStatus) GetJSON(ctx context.Context, path string) (gateway.Document, error) {
	return gateway.ParseDocument(http.StatusOK, []byte(`{"status":"in_progress","data":{"task_status":"processing"}}`))
}

type switchCreds struct{ on atomic.Bool }

func (c *switchCreds) HasCredentials() bool { return c.on.Load() }

type imageProvider struct {
	mu      sync.Mutex
	prompts []string
}

func (p *imageProvider) Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, cfg.Prompt)
	p.mu.Unlock()
	return domain.Submission{Locator: storage.EncodeDataURI("image/png", []byte("png-bytes"))}, nil
}

type fixture struct {
	server  *httptest.Server
	library *library.Library
	poller  *generation.Poller
	creds   *switchCreds
	image   *imageProvider
}

func newFixture(t *testing.T, configure ...func(*http.Server)) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	lib := library.New(&memStore{records: map[string]domain.GeneratedAsset{}}, nil)
	creds := &switchCreds{}
	creds.on.Store(true)
	poller := generation.NewPoller(ctx, pendingStatus{}, lib, generation.WithInterval(5*time.Millisecond))
	image := &imageProvider{}
	submitter := generation.NewSubmitter(ctx, generation.Deps{
		Library:     lib,
		Poller:      poller,
		Credentials: creds,
		Image:       image,
	})
	app := &handlers.App{
		Catalog:     catalog.Default(),
		Library:     lib,
		Submitter:   submitter,
		Poller:      poller,
		Credentials: credentials.NewStore(credentials.Credentials{BaseURL: infra.DefaultGatewayBaseURL}, nil, true),
		Exporter:    storage.NewExporter(nil, nil, nil),
	}
	cfg := &infra.Config{DefaultLocale: "en", CORSAllowedOrigins: []string{"*"}}
	srv := httptest.NewUnstartedServer(NewRouter(app, cfg))
	for _, c := range configure {
		c(srv.Config)
	}
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		cancel()
		submitter.Wait()
		poller.Wait()
	})
	return &fixture{server: srv, library: lib, poller: poller, creds: creds, image: image}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type assetList struct {
	Assets []domain.GeneratedAsset `json:"assets"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func TestHealthReportsCredentialState(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, false, body["credentials"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestModelsServesCatalog(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]json.RawMessage](t, resp)
	require.Contains(t, body, "image")
	require.Contains(t, body, "video")
	require.Contains(t, body, "music")
}

func TestGenerateReturnsPlaceholdersThenCompletes(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/generations", `{"type":"image","prompt":"a red kite","count":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	list := decodeBody[assetList](t, resp)
	require.Len(t, list.Assets, 2)
	for _, a := range list.Assets {
		require.Equal(t, domain.StatusLoading, a.Status)
		require.Equal(t, "a red kite", a.Prompt)
	}

	require.Eventually(t, func() bool {
		done := f.library.List(library.Filter{Status: domain.StatusCompleted})
		return len(done) == 2
	}, time.Second, 5*time.Millisecond)

	got := f.do(t, http.MethodGet, "/v1/assets/"+list.Assets[0].ID, "")
	require.Equal(t, http.StatusOK, got.StatusCode)
	asset := decodeBody[domain.GeneratedAsset](t, got)
	require.True(t, storage.IsDataURI(asset.URL))
}

func TestGenerateValidationErrorNamesField(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/generations", `{"type":"image","modelId":"does-not-exist","prompt":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[errorBody](t, resp)
	require.Equal(t, "validation", body.Error)
	require.Equal(t, "modelId", body.Field)
}

func TestGenerateWithoutKeyIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.creds.on.Store(false)
	resp := f.do(t, http.MethodPost, "/v1/generations", `{"type":"image","prompt":"x"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, f.library.List(library.Filter{}))
	require.Empty(t, f.image.prompts)
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/generations", `{"type":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "bad_request", decodeBody[errorBody](t, resp).Error)
}

func TestListAssetsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.library.Insert(ctx,
		domain.GeneratedAsset{ID: "img", Type: domain.AssetTypeImage, Status: domain.StatusCompleted, Timestamp: 1},
		domain.GeneratedAsset{ID: "vid", Type: domain.AssetTypeVideo, Status: domain.StatusFailed, Timestamp: 2},
	)

	list := decodeBody[assetList](t, f.do(t, http.MethodGet, "/v1/assets?type=video", ""))
	require.Len(t, list.Assets, 1)
	require.Equal(t, "vid", list.Assets[0].ID)

	list = decodeBody[assetList](t, f.do(t, http.MethodGet, "/v1/assets?status=completed", ""))
	require.Len(t, list.Assets, 1)
	require.Equal(t, "img", list.Assets[0].ID)

	list = decodeBody[assetList](t, f.do(t, http.MethodGet, "/v1/assets?ids=img,vid", ""))
	require.Len(t, list.Assets, 2)

	resp := f.do(t, http.MethodGet, "/v1/assets?status=bogus", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "status", decodeBody[errorBody](t, resp).Field)
}

func TestGetUnknownAssetIsNotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/assets/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteStopsPolling(t *testing.T) {
	f := newFixture(t)
	asset := domain.GeneratedAsset{
		ID:         "v1",
		Type:       domain.AssetTypeVideo,
		ModelID:    "sora-2-all",
		Status:     domain.StatusQueued,
		TaskID:     "vid-1",
		PollFamily: domain.FamilyVideoOpenAI,
		Timestamp:  time.Now().UnixMilli(),
	}
	f.library.Insert(context.Background(), asset)
	require.True(t, f.poller.Track(asset))
	require.True(t, f.poller.Tracking("vid-1"))

	resp := f.do(t, http.MethodDelete, "/v1/assets/v1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Eventually(t, func() bool { return !f.poller.Tracking("vid-1") }, time.Second, 2*time.Millisecond)
	_, ok := f.library.Get("v1")
	require.False(t, ok)

	again := f.do(t, http.MethodDelete, "/v1/assets/v1", "")
	require.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestExportStreamsZip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.library.Insert(ctx,
		domain.GeneratedAsset{ID: "a", Type: domain.AssetTypeImage, Status: domain.StatusCompleted, URL: storage.EncodeDataURI("image/png", []byte("png")), Timestamp: 1},
		domain.GeneratedAsset{ID: "b", Type: domain.AssetTypeImage, Status: domain.StatusQueued, TaskID: "t", Timestamp: 2},
	)

	resp := f.do(t, http.MethodGet, "/v1/assets/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "genstudio-export-")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	require.Equal(t, "asset-a.png", zr.File[0].Name)
}

func TestExportWithNothingCompleted(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/assets/export?ids=nope", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// openEvents connects to the event stream and consumes the greeting.
func (f *fixture) openEvents(t *testing.T, timeout time.Duration) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/v1/assets/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	return reader
}

func readEvent(t *testing.T, reader *bufio.Reader) (string, domain.GeneratedAsset) {
	t.Helper()
	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	var asset domain.GeneratedAsset
	require.NoError(t, json.Unmarshal([]byte(data), &asset))
	return event, asset
}

func TestAssetEventsStream(t *testing.T) {
	f := newFixture(t)
	reader := f.openEvents(t, 2*time.Second)

	f.library.Insert(context.Background(), domain.GeneratedAsset{ID: "e1", Type: domain.AssetTypeImage, Status: domain.StatusLoading})

	event, asset := readEvent(t, reader)
	require.Equal(t, string(library.EventCreated), event)
	require.Equal(t, "e1", asset.ID)
}

func TestAssetEventsOutliveWriteTimeout(t *testing.T) {
	f := newFixture(t, func(s *http.Server) { s.WriteTimeout = 150 * time.Millisecond })
	reader := f.openEvents(t, 3*time.Second)

	time.Sleep(400 * time.Millisecond)
	f.library.Insert(context.Background(), domain.GeneratedAsset{ID: "late", Type: domain.AssetTypeVideo, Status: domain.StatusQueued, TaskID: "t"})

	event, asset := readEvent(t, reader)
	require.Equal(t, string(library.EventCreated), event)
	require.Equal(t, "late", asset.ID)
}

func TestCredentialsUpdate(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/v1/credentials", `{"apiKey":"sk-new"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, true, body["configured"])
	require.NotContains(t, body, "apiKey")

	locked := f.do(t, http.MethodPut, "/v1/credentials", `{"baseUrl":"https://elsewhere.example.com"}`)
	require.Equal(t, http.StatusBadRequest, locked.StatusCode)

	health := decodeBody[map[string]any](t, f.do(t, http.MethodGet, "/v1/healthz", ""))
	require.Equal(t, true, health["credentials"])
}

func TestRegenerateUnknownAsset(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/v1/assets/ghost/regenerate", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenAPIDocument(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/openapi.json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeBody[map[string]any](t, resp)
	require.Equal(t, "3.0.3", doc["openapi"])

	props := doc["components"].(map[string]any)["schemas"].(map[string]any)["GenerateRequest"].(map[string]any)["properties"].(map[string]any)
	models := props["modelId"].(map[string]any)["enum"].([]any)
	require.Contains(t, models, "gemini-2.5-flash-image")
	require.Equal(t, []any{"en", "zh"}, props["locale"].(map[string]any)["enum"])

	page := f.do(t, http.MethodGet, "/v1/docs", "")
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, page.Header.Get("Content-Type"), "text/html")
}

func TestPreflightAllowed(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodOptions, "/v1/generations", "", "Origin", "http://localhost:3000", "Access-Control-Request-Method", "POST")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
