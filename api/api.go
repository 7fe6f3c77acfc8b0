// Package api performs authenticated HTTP calls against the remote
// marketplace service.
//
// Two independent channels exist: a JSON channel for regular calls and an
// upload channel for multipart bodies. Both attach the stored bearer token to
// every request. The JSON channel recovers from a 401 by refreshing the token
// once and replaying the original request. The upload channel never replays:
// multipart state cannot be safely re-attached after a credential swap, so a
// 401 there fires the configured reload hook instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/metrics"
)

// Envelope is the common response wrapper used by the remote API. The
// success flag is treated as false unless explicitly true.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type channelKind int

const (
	kindJSON channelKind = iota
	kindUpload
)

// Channel performs calls on one of the two API pipelines.
type Channel struct {
	baseURL string
	kind    channelKind
	name    string

	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics

	refresher     estate.TokenRefresher
	onAuthExpired func()
	onReload      func()
}

// Option configures a Channel.
type Option func(*Channel)

// WithHTTPClient sets a custom HTTP client. Its transport is wrapped with the
// credential-injection interceptor.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Channel) { ch.httpClient = c }
}

// WithLogger sets a structured logger for the channel.
func WithLogger(l *slog.Logger) Option {
	return func(ch *Channel) { ch.logger = l }
}

// WithMetrics sets the Prometheus instrumentation for the channel.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ch *Channel) { ch.metrics = m }
}

// WithRetry enables one-shot 401 recovery on a JSON channel: refresh through
// r, replay the original request once, and call onAuthExpired when the
// refresh itself fails (the login-redirect hook).
func WithRetry(r estate.TokenRefresher, onAuthExpired func()) Option {
	return func(ch *Channel) {
		ch.refresher = r
		ch.onAuthExpired = onAuthExpired
	}
}

// WithReloadHook sets the hook an upload channel fires on 401.
func WithReloadHook(fn func()) Option {
	return func(ch *Channel) { ch.onReload = fn }
}

// NewJSON creates the JSON channel. Without WithRetry it performs no 401
// recovery, which is what the session manager's own auth calls need: a
// refresh request must never trigger another refresh.
func NewJSON(baseURL string, store estate.CredentialStore, opts ...Option) *Channel {
	return newChannel(baseURL, store, kindJSON, "json", opts)
}

// NewUpload creates the multipart upload channel.
func NewUpload(baseURL string, store estate.CredentialStore, opts ...Option) *Channel {
	return newChannel(baseURL, store, kindUpload, "upload", opts)
}

func newChannel(baseURL string, store estate.CredentialStore, kind channelKind, name string, opts []Option) *Channel {
	ch := &Channel{
		baseURL: strings.TrimRight(baseURL, "/"),
		kind:    kind,
		name:    name,
	}
	for _, o := range opts {
		o(ch)
	}
	if ch.httpClient == nil {
		ch.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	// Wrap whatever transport the caller supplied so that credential
	// attachment can never be bypassed.
	base := ch.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *ch.httpClient
	wrapped.Transport = &bearerTransport{store: store, next: base}
	ch.httpClient = &wrapped

	if ch.logger == nil {
		ch.logger = slog.Default()
	}
	if ch.metrics == nil {
		ch.metrics = metrics.New(false)
	}
	return ch
}

// Get performs a GET and decodes the response body into out.
func (c *Channel) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// Post performs a POST with a JSON body and decodes the response into out.
func (c *Channel) Post(ctx context.Context, path string, body, out any) error {
	data, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", data, out)
}

// Put performs a PUT with a JSON body and decodes the response into out.
func (c *Channel) Put(ctx context.Context, path string, body, out any) error {
	data, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, "application/json", data, out)
}

// Delete performs a DELETE and decodes the response into out.
func (c *Channel) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, out)
}

// PostMultipart performs a POST with a caller-built multipart body on the
// upload channel. contentType carries the multipart boundary.
func (c *Channel) PostMultipart(ctx context.Context, path, contentType string, body []byte, out any) error {
	return c.do(ctx, http.MethodPost, path, contentType, body, out)
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("api: encode request body: %w", err)
	}
	return data, nil
}

// do runs one logical call through the channel. The retried flag is local to
// this attempt, so concurrent calls each get at most one replay and a replay
// is never replayed again.
func (c *Channel) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	requestID := uuid.NewString()
	start := time.Now()
	retried := false
	pinnedAuth := "" // set for the replay so it carries the refreshed token

	for {
		req, err := c.newRequest(ctx, method, path, contentType, body)
		if err != nil {
			return err
		}
		req.Header.Set("X-Request-ID", requestID)
		if pinnedAuth != "" {
			req.Header.Set("Authorization", pinnedAuth)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.RecordAPIRequest(c.name, method, "no_response", time.Since(start).Seconds())
			c.logger.Warn("api request failed without response",
				"channel", c.name, "method", method, "path", path, "request_id", requestID, "error", err)
			return fmt.Errorf("api: %s %s: %v: %w", method, path, err, estate.ErrNoResponse)
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			c.metrics.RecordAPIRequest(c.name, method, "no_response", time.Since(start).Seconds())
			return fmt.Errorf("api: %s %s: read body: %v: %w", method, path, readErr, estate.ErrNoResponse)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if c.kind == kindUpload {
				c.metrics.RecordAPIRequest(c.name, method, "api_error", time.Since(start).Seconds())
				c.logger.Warn("upload rejected with 401, requesting reload",
					"path", path, "request_id", requestID)
				if c.onReload != nil {
					c.onReload()
				}
				return fmt.Errorf("api: %s %s: %w", method, path, estate.ErrAuthExpired)
			}

			if c.refresher != nil && !retried {
				retried = true
				token, rerr := c.refresher.RefreshNow(ctx)
				if rerr != nil || token == "" {
					c.metrics.RecordAuthRetry("failure")
					c.logger.Warn("token refresh after 401 failed",
						"path", path, "request_id", requestID, "error", rerr)
					if c.onAuthExpired != nil {
						c.onAuthExpired()
					}
					return fmt.Errorf("api: %s %s: %w", method, path, estate.ErrAuthExpired)
				}
				c.metrics.RecordAuthRetry("success")
				c.logger.Debug("replaying request with refreshed token",
					"path", path, "request_id", requestID)
				pinnedAuth = "Bearer " + token
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.metrics.RecordAPIRequest(c.name, method, "api_error", time.Since(start).Seconds())
			return c.apiError(resp.StatusCode, data)
		}

		c.metrics.RecordAPIRequest(c.name, method, "success", time.Since(start).Seconds())
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &estate.APIError{StatusCode: resp.StatusCode, Message: estate.GenericErrorMessage}
		}
		return nil
	}
}

func (c *Channel) newRequest(ctx context.Context, method, path, contentType string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// apiError turns a non-2xx response into an *estate.APIError, preferring the
// server's own error payload over the generic sentinel.
func (c *Channel) apiError(status int, body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return &estate.APIError{StatusCode: status, Message: env.Message}
	}
	return &estate.APIError{StatusCode: status, Message: estate.GenericErrorMessage}
}
