package eventsocket

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Conn.
type State int

const (
	// StateIdle means no socket has been requested yet.
	StateIdle State = iota
	// StateConnecting means an open was requested and the transport has not
	// reported back.
	StateConnecting
	// StateOpen means the socket is live.
	StateOpen
	// StateTerminated means the socket closed or failed. It is final.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Conn wraps one WebSocket in a typed event stream.
// It is safe for concurrent use by multiple goroutines.
type Conn struct {
	id           string
	transport    Transport
	request      Request
	factories    factories
	interceptors Chain
	cfg          connConfig
	bus          *bus

	// opMu serializes open, send and close against the socket. Transport
	// callbacks never take it.
	opMu sync.Mutex

	mu           sync.Mutex
	socket       Socket
	dialing      bool
	userClose    bool
	terminated   bool
	termErr      error
	openWaiters  []*pending[*Opened]
	closeWaiters []*pending[*Closed]
}

func newConn(transport Transport, req Request, fs factories, chain Chain, cfg connConfig) *Conn {
	return &Conn{
		id:           uuid.New().String(),
		transport:    transport,
		request:      req,
		factories:    fs,
		interceptors: chain,
		cfg:          cfg,
		bus:          newBus(),
	}
}

// ID returns a unique identifier for the connection.
func (c *Conn) ID() string {
	return c.id
}

// URL returns the target address.
func (c *Conn) URL() string {
	return c.request.URL
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.terminated:
		return StateTerminated
	case c.socket != nil:
		return StateOpen
	case c.dialing:
		return StateConnecting
	default:
		return StateIdle
	}
}

// Connect opens the socket and waits for it to be open.
// On an already open socket it re-announces an Opened event without opening
// a second socket. Concurrent calls while connecting share a single open.
// Cancelling ctx abandons the wait but not the open itself.
func (c *Conn) Connect(ctx context.Context) (*Opened, error) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return nil, ErrTerminated
	}
	if c.socket != nil {
		c.mu.Unlock()
		ev := &Opened{}
		c.emit(ev)
		return ev, nil
	}

	p := newPending[*Opened]()
	c.openWaiters = append(c.openWaiters, p)
	dial := !c.dialing
	c.dialing = true
	c.mu.Unlock()

	if dial {
		c.debug("opening socket", slog.String("url", c.request.URL))

		c.opMu.Lock()
		c.transport.Open(c.request, &connListener{c: c})
		c.opMu.Unlock()
	}

	ev, err := p.wait(ctx)
	if err != nil && ctx.Err() != nil {
		c.mu.Lock()
		c.openWaiters = removeWaiter(c.openWaiters, p)
		c.mu.Unlock()
	}
	return ev, err
}

// Listen returns the ongoing sequence of received messages, starting now.
func (c *Conn) Listen() *Stream[*Message] {
	return newStream[*Message](c.bus)
}

// Events returns the ongoing sequence of every event, starting now.
func (c *Conn) Events() *Stream[Event] {
	return newStream[Event](c.bus)
}

// Send converts payload with the first matching request converter and sends
// it as a text frame. A string with no matching converter is sent as is, and
// a []byte is sent as a binary frame. Any other payload with no converter
// fails with ErrNoConverter.
func (c *Conn) Send(ctx context.Context, payload any) (*Queued, error) {
	if data, ok := payload.([]byte); ok {
		return c.SendBytes(ctx, data)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	sock, err := c.requireSocket()
	if err != nil {
		return nil, err
	}

	t := reflect.TypeOf(payload)
	if conv, ok := c.factories.requestConverter(t); ok {
		text, err := conv.Convert(payload)
		if err != nil {
			return nil, &ConversionError{Type: t, Err: err}
		}
		return c.transmit(payload, "text", func() error {
			return sock.SendText(ctx, text)
		})
	}

	if text, ok := payload.(string); ok {
		return c.transmit(payload, "text", func() error {
			return sock.SendText(ctx, text)
		})
	}

	return nil, noConverter(t)
}

// SendBytes sends data as a binary frame.
func (c *Conn) SendBytes(ctx context.Context, data []byte) (*Queued, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	sock, err := c.requireSocket()
	if err != nil {
		return nil, err
	}

	return c.transmit(data, "binary", func() error {
		return sock.SendBinary(ctx, data)
	})
}

func (c *Conn) transmit(payload any, op string, send func() error) (*Queued, error) {
	if c.cfg.onSend != nil {
		c.cfg.onSend(payload)
	}

	c.debug("sending message", slog.String("frame", op))

	if err := send(); err != nil {
		return nil, &SendError{Op: op, Err: err}
	}

	ev := &Queued{Payload: payload}
	c.emit(ev)
	return ev, nil
}

// Disconnect closes the socket with the given status code and reason, and
// waits for the transport to confirm the closure. Every stream then
// completes without error.
func (c *Conn) Disconnect(ctx context.Context, code int, reason string) (*Closed, error) {
	c.opMu.Lock()

	c.mu.Lock()
	sock := c.socket
	if sock == nil {
		c.mu.Unlock()
		c.opMu.Unlock()
		return nil, ErrNotOpen
	}
	c.userClose = true
	p := newPending[*Closed]()
	c.closeWaiters = append(c.closeWaiters, p)
	c.mu.Unlock()

	c.debug("closing socket", slog.Int("code", code), slog.String("reason", reason))

	err := sock.Close(code, reason)
	c.opMu.Unlock()

	if err != nil {
		c.mu.Lock()
		c.userClose = false
		c.closeWaiters = removeWaiter(c.closeWaiters, p)
		c.mu.Unlock()
		return nil, err
	}

	ev, err := p.wait(ctx)
	if err != nil && ctx.Err() != nil {
		c.mu.Lock()
		c.closeWaiters = removeWaiter(c.closeWaiters, p)
		c.mu.Unlock()
	}
	return ev, err
}

// Err returns the terminal error once the connection terminated abnormally.
// It is nil while the connection is live and after a caller-initiated
// disconnect.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.termErr
}

func (c *Conn) requireSocket() (Socket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return nil, ErrNotOpen
	}
	return c.socket, nil
}

// emit publishes ev to the bus. Events published with no subscriber are
// dropped.
func (c *Conn) emit(ev Event) {
	// only the final Closed may follow termination
	if _, final := ev.(*Closed); !final {
		c.mu.Lock()
		terminated := c.terminated
		c.mu.Unlock()
		if terminated {
			c.debug("dropped event after termination", slog.String("event", ev.Kind()))
			return
		}
	}

	if c.cfg.onEvent != nil {
		c.cfg.onEvent(ev)
	}
	if !c.bus.publish(ev) {
		c.debug("dropped event without subscribers", slog.String("event", ev.Kind()))
	}
}

func (c *Conn) terminate(err error) {
	if c.cfg.onTerminate != nil {
		c.cfg.onTerminate(err)
	}
}

func (c *Conn) debug(msg string, attrs ...any) {
	if c.cfg.logger == nil {
		return
	}
	c.cfg.logger.Debug(msg, append(attrs, slog.String("conn_id", c.id))...)
}

// --- transport callbacks ---

func (c *Conn) handleOpen(sock Socket, resp *http.Response) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.socket = sock
	c.userClose = false
	c.dialing = false
	waiters := c.openWaiters
	c.openWaiters = nil
	c.mu.Unlock()

	c.debug("socket opened", slog.String("url", c.request.URL))

	ev := &Opened{Response: resp}
	c.emit(ev)
	for _, w := range waiters {
		w.resolve(ev, nil)
	}
}

func (c *Conn) handleMessage(msg *Message) {
	c.mu.Lock()
	terminated := c.terminated
	c.mu.Unlock()
	if terminated {
		return
	}

	c.debug("received message", slog.Bool("binary", msg.IsBinary()))
	c.emit(msg)
}

func (c *Conn) handleClosed(code int, reason string) {
	ev := &Closed{Code: code, Reason: reason}

	c.mu.Lock()
	userClose := c.userClose
	c.socket = nil
	c.userClose = false
	c.dialing = false
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	if !userClose {
		c.termErr = ev
	}
	openWaiters, closeWaiters := c.openWaiters, c.closeWaiters
	c.openWaiters, c.closeWaiters = nil, nil
	c.mu.Unlock()

	c.debug("socket closed",
		slog.Int("code", code),
		slog.String("reason", reason),
		slog.Bool("requested", userClose),
	)

	if userClose {
		c.emit(ev)
		c.bus.complete()
		c.terminate(nil)
		for _, w := range closeWaiters {
			w.resolve(ev, nil)
		}
		for _, w := range openWaiters {
			w.resolve(nil, ErrTerminated)
		}
		return
	}

	c.bus.fail(ev)
	c.terminate(ev)
	for _, w := range closeWaiters {
		w.resolve(nil, ev)
	}
	for _, w := range openWaiters {
		w.resolve(nil, ev)
	}
}

func (c *Conn) handleFailure(err error) {
	c.mu.Lock()
	c.socket = nil
	c.userClose = false
	c.dialing = false
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.termErr = err
	openWaiters, closeWaiters := c.openWaiters, c.closeWaiters
	c.openWaiters, c.closeWaiters = nil, nil
	c.mu.Unlock()

	if c.cfg.logger != nil {
		c.cfg.logger.Warn("socket failed",
			slog.String("conn_id", c.id),
			slog.String("error", err.Error()),
		)
	}

	c.bus.fail(err)
	c.terminate(err)
	for _, w := range closeWaiters {
		w.resolve(nil, err)
	}
	for _, w := range openWaiters {
		w.resolve(nil, err)
	}
}

// connListener adapts the transport callbacks onto a Conn.
type connListener struct {
	c *Conn
}

func (l *connListener) OnOpen(s Socket, resp *http.Response) {
	l.c.handleOpen(s, resp)
}

func (l *connListener) OnText(_ Socket, text string) {
	l.c.handleMessage(newTextMessage(text, l.c.interceptors, l.c.factories.responseConverter))
}

func (l *connListener) OnBinary(_ Socket, data []byte) {
	l.c.handleMessage(newBinaryMessage(data, l.c.interceptors, l.c.factories.responseConverter))
}

func (l *connListener) OnClosed(_ Socket, code int, reason string) {
	l.c.handleClosed(code, reason)
}

func (l *connListener) OnFailure(_ Socket, err error, _ *http.Response) {
	if err == nil {
		err = ErrClosed
	}
	l.c.handleFailure(err)
}

// pending is a one-shot result resolved by a transport callback.
type pending[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newPending[T any]() *pending[T] {
	return &pending[T]{done: make(chan struct{})}
}

func (p *pending[T]) resolve(value T, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}

func (p *pending[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-p.done:
		return p.value, p.err
	}
}

func removeWaiter[T any](waiters []*pending[T], p *pending[T]) []*pending[T] {
	for i, w := range waiters {
		if w == p {
			return append(waiters[:i], waiters[i+1:]...)
		}
	}
	return waiters
}
