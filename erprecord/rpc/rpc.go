// Package rpc is a JSON-RPC session for ERP servers exposing the
// "common" and "object" services at /jsonrpc. A Client satisfies
// erprecord.Session.
package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/arthur-debert/erprecord/types"
)

// ErrAuthentication is returned by Dial when the server rejects the
// credentials
var ErrAuthentication = errors.New("authentication failed")

// RemoteError is a fault reported by the server
type RemoteError struct {
	Code    int
	Message string
	// Name is the server-side exception class, e.g.
	// "odoo.exceptions.AccessError"
	Name  string
	Debug string
	// Detail is the exception message shown to users
	Detail string
}

func (e *RemoteError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if e.Name != "" {
		return fmt.Sprintf("remote error %d: %s: %s", e.Code, e.Name, msg)
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, msg)
}

// Config holds the connection parameters of a session
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	// Timeout bounds each HTTP request. Zero means no timeout beyond
	// the caller's context.
	Timeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for session events
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client is an authenticated session. It is safe for concurrent use;
// the server decides whether concurrent calls on one login are.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	log      *zap.Logger

	mu      sync.RWMutex
	uid     int64
	version string
}

// New returns an unauthenticated client. Most callers want Dial.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.URL, "/") + "/jsonrpc",
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial detects the server version and logs in
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("server URL is required")
	}
	c := New(cfg, opts...)
	if err := c.DetectVersion(ctx); err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// DetectVersion asks the server for its version and stores it as
// "major.minor"
func (c *Client) DetectVersion(ctx context.Context) error {
	raw, err := c.call(ctx, "common", "version")
	if err != nil {
		return errors.Wrap(err, "failed to detect server version")
	}
	version, err := parseVersion(raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
	c.log.Info("detected server version", zap.String("url", c.cfg.URL), zap.String("version", version))
	return nil
}

// Authenticate logs in and stores the user id
func (c *Client) Authenticate(ctx context.Context) error {
	raw, err := c.call(ctx, "common", "authenticate", c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]any{})
	if err != nil {
		return errors.Wrap(err, "failed to authenticate")
	}
	uid, ok := types.ToInt64(raw)
	if !ok || uid == 0 {
		c.log.Info("login rejected", zap.String("db", c.cfg.Database), zap.String("user", c.cfg.Username))
		return errors.Wrapf(ErrAuthentication, "user %q on database %q", c.cfg.Username, c.cfg.Database)
	}
	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	c.log.Info("authenticated", zap.String("db", c.cfg.Database), zap.String("user", c.cfg.Username), zap.Int64("uid", uid))
	return nil
}

// Version returns the detected server version, or "" before detection
func (c *Client) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// UID returns the authenticated user id, or 0 before login
func (c *Client) UID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

// Execute calls method on model through object.execute_kw with
// positional arguments only
func (c *Client) Execute(ctx context.Context, model, method string, args ...any) (any, error) {
	uid := c.UID()
	if uid == 0 {
		return nil, errors.Errorf("%s.%s: session is not authenticated", model, method)
	}
	if args == nil {
		args = []any{}
	}
	start := time.Now()
	result, err := c.call(ctx, "object", "execute_kw",
		c.cfg.Database, uid, c.cfg.Password, model, method, args, map[string]any{})
	c.log.Debug("execute_kw",
		zap.String("model", model),
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))
	return result, err
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
	ID      string `json:"id"`
}

type params struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *fault          `json:"error"`
}

type fault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Debug   string `json:"debug"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) call(ctx context.Context, service, method string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	req := request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params{Service: service, Method: method, Args: args},
		ID:      uuid.NewString(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s.%s", service, method)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s.%s: unexpected HTTP status %s", service, method, resp.Status)
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	if out.ID != req.ID {
		return nil, errors.Errorf("%s.%s: response id %q does not match request %q", service, method, out.ID, req.ID)
	}
	if out.Error != nil {
		return nil, &RemoteError{
			Code:    out.Error.Code,
			Message: out.Error.Message,
			Name:    out.Error.Data.Name,
			Debug:   out.Error.Data.Debug,
			Detail:  out.Error.Data.Message,
		}
	}
	return decodeResult(out.Result)
}

// decodeResult keeps numbers as json.Number so ids and amounts survive
// without float rounding
func decodeResult(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "failed to decode result")
	}
	return v, nil
}

func parseVersion(raw any) (string, error) {
	info, ok := raw.(map[string]any)
	if !ok {
		return "", errors.Errorf("unexpected version payload %T", raw)
	}
	if parts, ok := info["server_version_info"].([]any); ok && len(parts) >= 2 {
		major, okMajor := types.ToInt64(parts[0])
		minor, okMinor := types.ToInt64(parts[1])
		if okMajor && okMinor {
			return fmt.Sprintf("%d.%d", major, minor), nil
		}
		// saas builds report the major as "saas~17"
		if s, ok := parts[0].(string); ok && okMinor {
			return fmt.Sprintf("%s.%d", strings.TrimPrefix(s, "saas~"), minor), nil
		}
	}
	if s, ok := info["server_version"].(string); ok && s != "" {
		fields := strings.FieldsFunc(s, func(r rune) bool { return r != '.' && (r < '0' || r > '9') })
		if len(fields) > 0 {
			parts := strings.Split(fields[0], ".")
			if len(parts) >= 2 {
				return parts[0] + "." + parts[1], nil
			}
		}
	}
	return "", errors.New("server did not report a version")
}
