// Package api is the HTTP client adapter: it wraps outgoing requests to the
// classhub backend, attaches bearer-token authorization, and centralizes
// 401/404 handling. State managers above it never touch net/http directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/pkg/config"
	appErrors "github.com/classhub/classhub-go/pkg/errors"
	"github.com/classhub/classhub-go/pkg/metrics"
)

// TokenSource yields the current access token, or "" when anonymous.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to a TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client performs authenticated requests against the backend.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	tokens    TokenSource
	logger    *zap.Logger
	metrics   *metrics.Collector

	// onUnauthorized is invoked once per 401 response. The session store
	// registers itself here so an expired token tears the session down
	// globally instead of each manager handling 401 on its own.
	onUnauthorized func()
}

// Option customises the client.
type Option func(*Client)

// WithTokenSource wires the bearer-token provider.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) { c.tokens = src }
}

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMetrics attaches a request metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New constructs the adapter.
func New(cfg config.APIConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHandler registers the global 401 hook. Only one handler is
// kept; the session store owns it.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// SetTokenSource wires the bearer-token provider after construction. The
// session store and the client reference each other, so one side has to be
// attached late.
func (c *Client) SetTokenSource(src TokenSource) {
	c.tokens = src
}

// JSON issues a request with an optional JSON body and decodes the response
// body into out when out is non-nil.
func (c *Client) JSON(ctx context.Context, method, path string, body interface{}, query url.Values, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode request body")
		}
		reader = bytes.NewReader(buf)
	}
	return c.do(ctx, method, path, query, reader, "application/json", out)
}

// FilePart is one file to upload in a multipart request.
type FilePart struct {
	FieldName string
	FilePath  string
}

// Multipart issues a POST with a JSON payload field plus attached files.
// Used by the assignment/material creation endpoints.
func (c *Client) Multipart(ctx context.Context, path string, payload interface{}, files []FilePart, out interface{}) error {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	raw, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode multipart payload")
	}
	if err := w.WriteField("payload", string(raw)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write multipart payload")
	}

	for _, f := range files {
		src, err := os.Open(f.FilePath)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("attachment not readable: %s", f.FilePath))
		}
		part, err := w.CreateFormFile(f.FieldName, filepath.Base(f.FilePath))
		if err == nil {
			_, err = io.Copy(part, src)
		}
		_ = src.Close()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "write attachment part")
		}
	}

	if err := w.Close(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "finalize multipart body")
	}

	return c.do(ctx, http.MethodPost, path, nil, buf, w.FormDataContentType(), out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build request")
	}

	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)

	if err != nil {
		c.metrics.ObserveRequest(method, path, 0, latency)
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", reqID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, 0, appErrors.ErrNetwork.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.metrics.ObserveRequest(method, path, resp.StatusCode, latency)
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency),
		zap.String("request_id", reqID))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, 0, "read response body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(method, path, resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode response body")
	}
	return nil
}

func (c *Client) statusError(method, path string, status int, body []byte) error {
	message := serverMessage(body)

	switch {
	case status == http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return appErrors.Clone(appErrors.ErrUnauthorized, message)
	case status == http.StatusNotFound:
		c.logger.Warn("endpoint not found", zap.String("method", method), zap.String("path", path))
		return appErrors.Clone(appErrors.ErrNotFound, message)
	case status == http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, message)
	case status == http.StatusConflict:
		return appErrors.Clone(appErrors.ErrConflict, message)
	case status < http.StatusInternalServerError:
		e := appErrors.Clone(appErrors.ErrValidation, message)
		e.Status = status
		return e
	default:
		e := appErrors.Clone(appErrors.ErrInternal, message)
		e.Status = status
		return e
	}
}

// serverMessage extracts a human-readable message from a failure payload.
// The backend answers either with the common envelope or a bare
// {"message": ...}; anything unparseable falls back to the generic text.
func serverMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	return ""
}
