// Package gateway is the HTTP transport to the aggregation service that fronts
// every generation provider.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
)

const defaultTimeout = 300 * time.Second

// CredentialSource supplies the key and base URL. It is read once per call.
type CredentialSource interface {
	Snapshot() credentials.Credentials
}

// Options configures the gateway client.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Logger     *infra.Logger
}

// Client issues authenticated requests against the gateway.
type Client struct {
	http   *resty.Client
	creds  CredentialSource
	logger *infra.Logger
}

// File is one multipart file part.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// NewClient builds a client. A nil HTTPClient uses resty's default transport.
func NewClient(creds CredentialSource, opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "genstudio/1.0"
	}
	rc.SetTimeout(timeout).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, creds: creds, logger: infra.OrDiscard(opts.Logger)}
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.creds.Snapshot().HasKey()
}

// PostJSON submits body as JSON. HTTP errors and non-zero "code" fields are
// returned as *domain.SubmissionError.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (Document, error) {
	req, url, err := c.request(ctx, path)
	if err != nil {
		return Document{}, err
	}
	resp, err := req.SetHeader("Content-Type", "application/json").SetBody(body).Post(url)
	return c.submission(http.MethodPost, path, resp, err)
}

// PostMultipart submits a multipart form with optional file parts.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, files []File) (Document, error) {
	req, url, err := c.request(ctx, path)
	if err != nil {
		return Document{}, err
	}
	req.SetMultipartFormData(fields)
	for _, f := range files {
		req.SetMultipartField(f.Field, f.Name, f.ContentType, bytes.NewReader(f.Data))
	}
	resp, err := req.Post(url)
	return c.submission(http.MethodPost, path, resp, err)
}

// GetJSON fetches a status document. Only transport failures and non-JSON
// bodies are errors; the caller interprets the HTTP status, since providers
// report task failures with error codes and a usable body.
func (c *Client) GetJSON(ctx context.Context, path string) (Document, error) {
	req, url, err := c.request(ctx, path)
	if err != nil {
		return Document{}, err
	}
	resp, err := req.Get(url)
	if err != nil {
		return Document{}, fmt.Errorf("gateway: GET %s: %w: %v", path, domain.ErrPollingTransport, err)
	}
	doc, err := ParseDocument(resp.StatusCode(), resp.Body())
	if err != nil {
		return Document{Status: resp.StatusCode()}, fmt.Errorf("gateway: GET %s: %w: status %d, non-JSON body %q",
			path, domain.ErrPollingTransport, resp.StatusCode(), snippet(resp.Body()))
	}
	return doc, nil
}

// Download fetches a remote media file without gateway credentials.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).SetHeader("Accept", "*/*").Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("gateway: download %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (c *Client) request(ctx context.Context, path string) (*resty.Request, string, error) {
	creds := c.creds.Snapshot()
	if !creds.HasKey() {
		return nil, "", domain.ErrAuthMissing
	}
	base := strings.TrimRight(creds.BaseURL, "/")
	if base == "" {
		return nil, "", fmt.Errorf("gateway: base url is not configured")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.http.R().SetContext(ctx).SetAuthToken(creds.APIKey), base + path, nil
}

func (c *Client) submission(method, path string, resp *resty.Response, err error) (Document, error) {
	if err != nil {
		return Document{}, &domain.SubmissionError{Message: "request failed", Err: fmt.Errorf("gateway: %s %s: %w", method, path, err)}
	}
	status := resp.StatusCode()
	doc, perr := ParseDocument(status, resp.Body())
	if perr != nil {
		c.logger.Warn().Str("path", path).Int("status", status).Str("body", snippet(resp.Body())).Msg("gateway returned non-JSON body")
		return Document{Status: status}, &domain.SubmissionError{
			Status:  status,
			Message: fmt.Sprintf("server returned %d with a non-JSON body", status),
			Err:     perr,
		}
	}
	if status >= http.StatusMultipleChoices {
		msg := doc.Message()
		if msg == "" {
			msg = http.StatusText(status)
		}
		return doc, &domain.SubmissionError{Status: status, Message: msg}
	}
	if code, ok := doc.Int("code"); ok && code != 0 {
		msg := doc.Message()
		if msg == "" {
			msg = fmt.Sprintf("provider code %d", code)
		}
		return doc, &domain.SubmissionError{Status: status, Message: msg}
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", status).Msg("gateway request ok")
	return doc, nil
}

// snippet keeps the first runes of a body for logs and errors.
func snippet(body []byte) string {
	const max = 120
	r := []rune(strings.TrimSpace(string(body)))
	if len(r) > max {
		return string(r[:max])
	}
	return string(r)
}
