// Package wechat implements the Platform port against the official-account HTTP API.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
	"github.com/iniwap/AIWriteX/internal/metrics"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.weixin.qq.com/cgi-bin"

const maxResponseBytes = 4 << 20

// Compile-time interface satisfaction check.
var _ driven.Platform = (*Client)(nil)

// Client implements driven.Platform for one credential. It owns that
// credential's token cache.
type Client struct {
	http    *http.Client
	baseURL string
	cred    model.Credential
	tokens  *TokenCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder for uploads and token refreshes.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithClock overrides the clock used for token expiry. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.tokens.now = now
	}
}

// NewClientWithHTTPClient creates a Client for cred that sends requests through
// httpClient to baseURL (normally DefaultBaseURL).
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, cred model.Credential, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		cred:    cred,
		logger:  slog.Default(),
		metrics: metrics.NoopRecorder{},
	}
	c.tokens = NewTokenCache(c.exchangeToken)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns a valid access token for the client's credential.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

// apiError is the envelope every endpoint may return.
type apiError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// flexString accepts both JSON strings and numbers. Publish IDs have been
// returned in both forms.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// tokenInvalid reports errcodes meaning the token itself was rejected.
func tokenInvalid(code int) bool {
	switch code {
	case 40001, 40014, 42001:
		return true
	}
	return false
}

// call runs an authenticated request built by build. If the platform rejects
// the token, the cache is invalidated and the request is retried once.
func (c *Client) call(ctx context.Context, op string, build func(token string) (*http.Request, error), out any) error {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		req, err := build(token)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", op, err)
		}

		err = c.roundTrip(req, op, out)
		var pe *model.PlatformError
		if attempt == 0 && errors.As(err, &pe) && tokenInvalid(pe.Code) {
			c.logger.Warn("access token rejected, refreshing",
				"op", op, "errcode", pe.Code, "app_id", c.cred.MaskedAppID())
			c.tokens.Invalidate()
			continue
		}
		return err
	}
}

// postJSON sends body as JSON to path with the access token attached.
func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := encodeJSON(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}

	return c.call(ctx, op, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, url.Values{"access_token": {token}}), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return req, nil
	}, out)
}

// getJSON issues an authenticated GET against path.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	return c.call(ctx, op, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, url.Values{"access_token": {token}}), nil)
	}, out)
}

// roundTrip executes req and decodes the response into out. A non-zero
// errcode becomes a *model.PlatformError; nothing is decoded into out then.
func (c *Client) roundTrip(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, model.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: %w: read body: %w", op, model.ErrTransport, err)
	}

	c.logger.Debug("wechat api call",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"app_id", c.cred.MaskedAppID(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w: unexpected status %d", op, model.ErrTransport, resp.StatusCode)
	}

	var env apiError
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: %w: %w", op, model.ErrMalformed, err)
	}
	if env.ErrCode != 0 {
		return &model.PlatformError{Op: op, Code: env.ErrCode, Message: env.ErrMsg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: %w: %w", op, model.ErrMalformed, err)
		}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// encodeJSON marshals v without HTML escaping so markup and CJK text reach the
// platform verbatim.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func missing(op, field string) error {
	return fmt.Errorf("%s: %w: %s", op, model.ErrMissingField, field)
}
