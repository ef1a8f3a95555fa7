package eventsocket

import (
	"log/slog"
	"slices"
)

// --- Conn Options ---

// Option configures a Conn.
type Option func(*connConfig)

type connConfig struct {
	logger      *slog.Logger
	onSend      func(payload any)
	onEvent     func(Event)
	onTerminate func(err error)
}

// WithLogger sets a structured logger for the connection.
func WithLogger(logger *slog.Logger) Option {
	return func(c *connConfig) {
		c.logger = logger
	}
}

// WithOnSend sets a callback invoked before each payload is handed to the
// transport.
func WithOnSend(fn func(payload any)) Option {
	return func(c *connConfig) {
		c.onSend = fn
	}
}

// WithOnEvent sets a callback invoked for every event the connection
// publishes, whether or not anyone is subscribed. It runs on the goroutine
// that produced the event and must not block. Queued events are reported
// while the connection holds its operation lock, so fn must not call Connect,
// Send, SendBytes or Disconnect.
func WithOnEvent(fn func(Event)) Option {
	return func(c *connConfig) {
		c.onEvent = fn
	}
}

// WithOnTerminate sets a callback invoked once when the connection
// terminates. err is nil after a caller-initiated disconnect.
func WithOnTerminate(fn func(err error)) Option {
	return func(c *connConfig) {
		c.onTerminate = fn
	}
}

// --- Builder ---

// Builder assembles the configuration of a Conn. The lists it collects are
// copied on Build, so later additions never affect a built Conn.
type Builder struct {
	factories    []ConverterFactory
	interceptors []Interceptor
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddConverterFactory appends a converter factory. Factories are consulted in
// the order they were added.
func (b *Builder) AddConverterFactory(f ConverterFactory) *Builder {
	b.factories = append(b.factories, f)
	return b
}

// AddReceiveInterceptor appends an interceptor to the receive chain.
func (b *Builder) AddReceiveInterceptor(i Interceptor) *Builder {
	b.interceptors = append(b.interceptors, i)
	return b
}

// Build creates a Conn targeting address. A nil transport selects a Dialer
// with default options.
func (b *Builder) Build(transport Transport, address string, opts ...Option) (*Conn, error) {
	return b.BuildRequest(transport, Request{URL: address}, opts...)
}

// BuildRequest creates a Conn targeting req.
func (b *Builder) BuildRequest(transport Transport, req Request, opts ...Option) (*Conn, error) {
	if req.URL == "" {
		return nil, ErrEmptyAddress
	}
	if transport == nil {
		transport = NewDialer(nil)
	}
	if req.Header != nil {
		req.Header = req.Header.Clone()
	}

	cfg := connConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return newConn(
		transport,
		req,
		factories(slices.Clone(b.factories)),
		Chain(slices.Clone(b.interceptors)),
		cfg,
	), nil
}
