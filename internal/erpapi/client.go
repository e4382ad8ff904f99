// Package erpapi is the JSON/HTTP client for the ERP backend: master data, document persistence,
// transaction mapping configuration, permissions and notifications.
package erpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
)

// Observer receives one call per finished upstream request. Status is 0 when
// no response arrived.
type Observer interface {
	ObserveUpstream(method, endpoint string, status int, elapsed time.Duration)
}

// Client wraps interactions with the ERP REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// NewClient constructs a new client. Requests are bounded by timeout and by the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetObserver installs o for every subsequent request.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Endpoint replaces numeric path segments and drops the query so paths can be
// used as metric labels.
func Endpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part != "" && strings.Trim(part, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(method, Endpoint(path), status, time.Since(start))
}

// NetworkError reports a failed request or a non-2xx response.
// Message carries the server-provided error text when there is one.
type NetworkError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("erpapi: %s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("erpapi: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// UserMessage is the text shown to the end user.
func (e *NetworkError) UserMessage() string {
	return e.Message
}

// Unwrap maps the response class onto the shared domain sentinels.
func (e *NetworkError) Unwrap() []error {
	var class error
	switch e.Status {
	case http.StatusNotFound:
		class = httpx.ErrNotFound
	case http.StatusUnauthorized:
		class = httpx.ErrUnauthorized
	case http.StatusForbidden:
		class = httpx.ErrForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		class = httpx.ErrValidation
	case http.StatusConflict:
		class = httpx.ErrConflict
	default:
		class = httpx.ErrUpstream
	}
	if e.Err != nil {
		return []error{class, e.Err}
	}
	return []error{class}
}

const genericFailure = "request failed"

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 8 << 20

// ErrResponseTooLarge is wrapped when an upstream body exceeds maxResponseBytes.
var ErrResponseTooLarge = errors.New("erpapi: response body too large")

func (c *Client) do(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("erpapi: encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, start)
		c.logger.Warn("erp request failed", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return &NetworkError{Method: method, Path: path, Message: genericFailure, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	c.observe(method, path, resp.StatusCode, start)
	if err != nil {
		return &NetworkError{Method: method, Path: path, Status: resp.StatusCode, Message: genericFailure, Err: err}
	}
	if len(payload) > maxResponseBytes {
		c.logger.Warn("erp response too large", slog.String("method", method), slog.String("path", path), slog.Int("limit", maxResponseBytes))
		return &NetworkError{Method: method, Path: path, Status: resp.StatusCode, Message: genericFailure, Err: ErrResponseTooLarge}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("erp request rejected", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode))
		return &NetworkError{Method: method, Path: path, Status: resp.StatusCode, Message: serverMessage(payload)}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("erpapi: decode %s: %w", path, err)
	}
	return nil
}

// serverMessage extracts {"error": "..."} or {"message": "..."}; otherwise the generic fallback.
func serverMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return genericFailure
}

// MessageOf returns the user-facing text of a NetworkError, or the error text otherwise.
func MessageOf(err error) string {
	var nErr *NetworkError
	if errors.As(err, &nErr) {
		return nErr.Message
	}
	return err.Error()
}
