package eventsocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Request describes the socket to open.
type Request struct {
	URL    string
	Header http.Header
}

// Transport opens sockets. Open must not block: the outcome is reported to
// the listener, on a goroutine owned by the transport.
type Transport interface {
	Open(req Request, l Listener)
}

// Socket is a live socket handed out by a Transport.
// Implementations must be safe for concurrent use.
type Socket interface {
	SendText(ctx context.Context, text string) error
	SendBinary(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Listener receives the transport callbacks for one socket. After OnClosed or
// OnFailure no further callbacks are made.
type Listener interface {
	OnOpen(s Socket, resp *http.Response)
	OnText(s Socket, text string)
	OnBinary(s Socket, data []byte)
	OnClosed(s Socket, code int, reason string)
	OnFailure(s Socket, err error, resp *http.Response)
}

// DialOptions configures the WebSocket handshake and connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during handshake.
	// Headers on the Request take precedence.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Subprotocols lists the WebSocket subprotocols to negotiate.
	Subprotocols []string

	// HandshakeTimeout bounds the opening handshake. Zero means 30 seconds.
	HandshakeTimeout time.Duration

	// ReadLimit is the maximum size of a received message. Zero keeps the
	// 32MB default.
	ReadLimit int64
}

const (
	defaultHandshakeTimeout = 30 * time.Second
	defaultReadLimit        = 32 * 1024 * 1024
)

// Dialer is the default Transport, built on github.com/coder/websocket.
type Dialer struct {
	opts DialOptions
}

// NewDialer creates a Dialer. opts may be nil.
func NewDialer(opts *DialOptions) *Dialer {
	d := &Dialer{}
	if opts != nil {
		d.opts = *opts
	}
	return d
}

// Open implements Transport.
func (d *Dialer) Open(req Request, l Listener) {
	go d.run(req, l)
}

func (d *Dialer) run(req Request, l Listener) {
	timeout := d.opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	headers := http.Header{}
	if d.opts.HTTPHeader != nil {
		headers = d.opts.HTTPHeader.Clone()
	}
	for k, v := range req.Header {
		headers[k] = v
	}

	dialOpts := &websocket.DialOptions{
		HTTPHeader:   headers,
		HTTPClient:   d.opts.HTTPClient,
		Subprotocols: d.opts.Subprotocols,
	}

	conn, resp, err := websocket.Dial(ctx, req.URL, dialOpts)
	if err != nil {
		l.OnFailure(nil, &ConnectionError{Op: "dial", URL: req.URL, Err: err}, resp)
		return
	}

	limit := d.opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	sock := &wsSocket{conn: conn}
	l.OnOpen(sock, resp)
	sock.readLoop(l)
}

// wsSocket implements Socket over a coder/websocket connection.
type wsSocket struct {
	conn *websocket.Conn

	mu      sync.Mutex
	closing bool
	code    int
	reason  string
}

// SendText implements Socket.
func (s *wsSocket) SendText(ctx context.Context, text string) error {
	return s.write(ctx, websocket.MessageText, []byte(text))
}

// SendBinary implements Socket.
func (s *wsSocket) SendBinary(ctx context.Context, data []byte) error {
	return s.write(ctx, websocket.MessageBinary, data)
}

func (s *wsSocket) write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return ErrClosed
	}

	if err := s.conn.Write(ctx, typ, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Close implements Socket. It performs the closing handshake.
func (s *wsSocket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.code = code
	s.reason = reason
	s.mu.Unlock()

	if err := s.conn.Close(websocket.StatusCode(code), reason); err != nil {
		return &ConnectionError{Op: "close", Err: err}
	}
	return nil
}

// readLoop delivers frames until the connection ends, then reports exactly one
// of OnClosed or OnFailure.
func (s *wsSocket) readLoop(l Listener) {
	for {
		typ, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.finish(l, err)
			return
		}

		switch typ {
		case websocket.MessageText:
			l.OnText(s, string(data))
		case websocket.MessageBinary:
			l.OnBinary(s, data)
		}
	}
}

func (s *wsSocket) finish(l Listener, err error) {
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		l.OnClosed(s, int(closeErr.Code), closeErr.Reason)
		return
	}

	s.mu.Lock()
	closing, code, reason := s.closing, s.code, s.reason
	s.mu.Unlock()

	if closing {
		l.OnClosed(s, code, reason)
		return
	}
	l.OnFailure(s, &ConnectionError{Op: "read", Err: err}, nil)
}
