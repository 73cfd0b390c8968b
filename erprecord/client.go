package erprecord

import (
	"context"

	"go.uber.org/zap"
)

// Session is the remote service the records layer talks to. It owns
// login, transport and protocol; every call is scoped to its
// authenticated database connection.
//
// Errors returned by Execute are passed through every manager operation
// unchanged. A Session is not required to be safe for concurrent use,
// and a Client adds no locking of its own.
type Session interface {
	// Execute runs method on model with positional args
	Execute(ctx context.Context, model, method string, args ...any) (any, error)
	// Version returns the server version, e.g. "16.0", or "" if unknown
	Version() string
}

// Client binds a linked Registry to a Session and owns one Manager per
// record type.
type Client struct {
	session  Session
	registry *Registry
	log      *zap.Logger
	managers []*Manager
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the logger used for remote call tracing
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient links the registry (if needed) and builds the managers
func NewClient(session Session, registry *Registry, opts ...ClientOption) (*Client, error) {
	if err := registry.Link(); err != nil {
		return nil, err
	}
	c := &Client{session: session, registry: registry, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	models := registry.Models()
	c.managers = make([]*Manager, len(models))
	for _, model := range models {
		s, _ := registry.Schema(model)
		c.managers[s.id] = &Manager{
			client: c,
			schema: s,
			log:    c.log.With(zap.String("model", model)),
		}
	}
	return c, nil
}

// Model returns the manager of a record type
func (c *Client) Model(model string) (*Manager, error) {
	s, ok := c.registry.Schema(model)
	if !ok {
		return nil, &ConfigError{Model: model, Reason: "model is not defined"}
	}
	return c.managers[s.id], nil
}

// MustModel is Model that panics on unknown models
func (c *Client) MustModel(model string) *Manager {
	m, err := c.Model(model)
	if err != nil {
		panic(err)
	}
	return m
}

// Registry returns the record type catalog
func (c *Client) Registry() *Registry { return c.registry }

// Session returns the remote session
func (c *Client) Session() Session { return c.session }

// Logger returns the client's logger
func (c *Client) Logger() *zap.Logger { return c.log }

func (c *Client) managerFor(f *Field) (*Manager, error) {
	if f.target < 0 || int(f.target) >= len(c.managers) {
		return nil, &ConfigError{Model: f.Target, Field: f.Name, Reason: "reference is not linked"}
	}
	return c.managers[f.target], nil
}
