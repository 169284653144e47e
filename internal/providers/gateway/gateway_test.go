package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/infra/credentials"
)

type staticCreds credentials.Credentials

func (s staticCreds) Snapshot() credentials.Credentials { return credentials.Credentials(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(staticCreds{APIKey: "sk-test", BaseURL: srv.URL + "/"}, Options{})
}

func TestPostJSONSendsBearerAndBody(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":12345}}`))
	})

	doc, err := client.PostJSON(context.Background(), "/kling/v1/images/omni-image", map[string]any{"prompt": "fox"})
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "/kling/v1/images/omni-image", gotPath)
	require.Equal(t, "fox", gotBody["prompt"])
	require.Equal(t, "12345", doc.FirstString("data.task_id"))
}

func TestPostJSONProviderErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "http error", status: http.StatusBadRequest, body: `{"error":{"message":"bad prompt"}}`, message: "bad prompt"},
		{name: "non-zero code", status: http.StatusOK, body: `{"code":1001,"message":"quota"}`, message: "quota"},
		{name: "non json", status: http.StatusBadGateway, body: `<html>oops</html>`, message: "server returned 502 with a non-JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.PostJSON(context.Background(), "/v1/video/create", map[string]any{})
			require.ErrorIs(t, err, domain.ErrSubmission)
			require.Equal(t, tc.message, domain.ProviderMessage(err))
		})
	}
}

func TestMissingKeyFailsBeforeIO(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	client := NewClient(staticCreds{BaseURL: srv.URL}, Options{})

	_, err := client.PostJSON(context.Background(), "/v1/chat/completions", map[string]any{})
	require.ErrorIs(t, err, domain.ErrAuthMissing)
	_, err = client.GetJSON(context.Background(), "/v1/videos/x")
	require.ErrorIs(t, err, domain.ErrAuthMissing)
	require.False(t, called)
	require.False(t, client.HasCredentials())
}

func TestPostMultipartSendsFiles(t *testing.T) {
	var fields map[string]string
	var fileNames []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		reader := multipart.NewReader(r.Body, params["boundary"])
		fields = map[string]string{}
		for {
			part, err := reader.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			if part.FileName() != "" {
				fileNames = append(fileNames, part.FormName()+"="+part.FileName())
				continue
			}
			fields[part.FormName()] = string(data)
		}
		_, _ = w.Write([]byte(`{"id":"video_1"}`))
	})

	doc, err := client.PostMultipart(context.Background(), "/v1/videos",
		map[string]string{"model": "sora-2-all", "size": "16x9"},
		[]File{{Field: "input_reference", Name: "reference_0.png", ContentType: "image/png", Data: []byte("png")}})
	require.NoError(t, err)
	require.Equal(t, "video_1", doc.FirstString("id"))
	require.Equal(t, "sora-2-all", fields["model"])
	require.Equal(t, "16x9", fields["size"])
	require.Equal(t, []string{"input_reference=reference_0.png"}, fileNames)
}

func TestGetJSONToleratesErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "id=task-9", r.URL.RawQuery)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"FAILED"}`))
	})
	doc, err := client.GetJSON(context.Background(), "/v1/video/query?id=task-9")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, doc.Status)
	require.Equal(t, "FAILED", doc.FirstString("status"))
}

func TestGetJSONNonJSONIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream timeout"))
	})
	_, err := client.GetJSON(context.Background(), "/suno/fetch/1")
	require.ErrorIs(t, err, domain.ErrPollingTransport)
}

func TestNonJSONBodyIsCutOnRuneBoundary(t *testing.T) {
	body := "x" + strings.Repeat("网关超时", 60)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	_, err := client.GetJSON(context.Background(), "/suno/fetch/2")
	require.ErrorIs(t, err, domain.ErrPollingTransport)
	require.NotContains(t, err.Error(), `\x`)

	cut := snippet([]byte(body))
	require.True(t, utf8.ValidString(cut))
	require.Equal(t, 120, utf8.RuneCountInString(cut))
	require.True(t, strings.HasPrefix(body, cut))
}

func TestDocumentPaths(t *testing.T) {
	doc, err := ParseDocument(200, []byte(`{"data":{"task_result":{"images":[{"url":"https://x/y.png"}]},"empty":""},"id":7}`))
	require.NoError(t, err)
	require.Equal(t, "https://x/y.png", doc.FirstString("data.task_result.images.0.url"))
	require.Equal(t, "7", doc.FirstString("data.empty", "missing", "id"))
	require.Equal(t, "", doc.FirstString("data.task_result.images.5.url", "data"))
	_, ok := doc.Lookup("id.nested")
	require.False(t, ok)
}

func TestFindMediaLocator(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "markdown", body: `{"choices":[{"message":{"content":"Here: ![img](https://cdn.x/a.png) done"}}]}`, want: "https://cdn.x/a.png"},
		{name: "priority key", body: `{"zzz":"https://late/b.png","url":"https://first/a.png"}`, want: "https://first/a.png"},
		{name: "data uri", body: `{"data":[{"b64_json":"data:image/png;base64,AAAA"}]}`, want: "data:image/png;base64,AAAA"},
		{name: "embedded url", body: `{"text":"see https://cdn.x/c.jpg for result"}`, want: "https://cdn.x/c.jpg"},
		{name: "none", body: `{"text":"no media here","n":3}`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseDocument(200, []byte(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.want, FindMediaLocator(doc.Raw()))
		})
	}
}

func TestTextValue(t *testing.T) {
	require.Equal(t, "verse", TextValue(map[string]any{"text": "verse"}))
	require.Equal(t, "plain", TextValue("plain"))
	require.True(t, strings.HasPrefix(TextValue(map[string]any{"other": "x"}), "{"))
}
