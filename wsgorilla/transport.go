// Package wsgorilla implements an eventsocket.Transport on top of
// github.com/gorilla/websocket.
package wsgorilla

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/tomb.v2"

	"github.com/chrisboulton/eventsocket-go"
)

const closeGracePeriod = time.Second

// Transport dials sockets with a gorilla Dialer.
type Transport struct {
	dialer *websocket.Dialer
	header http.Header
}

// New creates a Transport. A nil dialer selects websocket.DefaultDialer.
func New(dialer *websocket.Dialer, header http.Header) *Transport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Transport{dialer: dialer, header: header}
}

// Open implements eventsocket.Transport.
func (t *Transport) Open(req eventsocket.Request, l eventsocket.Listener) {
	go t.dial(req, l)
}

func (t *Transport) dial(req eventsocket.Request, l eventsocket.Listener) {
	headers := http.Header{}
	if t.header != nil {
		headers = t.header.Clone()
	}
	for k, v := range req.Header {
		headers[k] = v
	}

	conn, resp, err := t.dialer.DialContext(context.Background(), req.URL, headers)
	if err != nil {
		l.OnFailure(nil, &eventsocket.ConnectionError{Op: "dial", URL: req.URL, Err: err}, resp)
		return
	}

	s := &socket{conn: conn}
	l.OnOpen(s, resp)
	s.tmb.Go(func() error {
		return s.receive(l)
	})
}

// socket implements eventsocket.Socket.
type socket struct {
	tmb  tomb.Tomb
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	closing bool
	code    int
	reason  string
}

func (s *socket) SendText(ctx context.Context, text string) error {
	return s.write(ctx, websocket.TextMessage, []byte(text))
}

func (s *socket) SendBinary(ctx context.Context, data []byte) error {
	return s.write(ctx, websocket.BinaryMessage, data)
}

func (s *socket) write(ctx context.Context, typ int, data []byte) error {
	if !s.tmb.Alive() {
		return eventsocket.ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("error setting websocket write deadline: %w", err)
		}
		defer s.conn.SetWriteDeadline(time.Time{})
	}
	if err := s.conn.WriteMessage(typ, data); err != nil {
		return fmt.Errorf("error writing to websocket: %w", err)
	}
	return nil
}

// Close sends a close frame and waits for the receive loop to observe the
// peer's reply.
func (s *socket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.code = code
	s.reason = reason
	s.mu.Unlock()

	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	s.writeMu.Unlock()

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.conn.Close()
		return fmt.Errorf("error closing websocket: %w", err)
	}

	select {
	case <-s.tmb.Dead():
	case <-time.After(closeGracePeriod):
		// peer never answered; tear down so receive reports the closure
		s.conn.Close()
	}
	return nil
}

func (s *socket) receive(l eventsocket.Listener) error {
	defer s.conn.Close()

	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(l, err)
			return nil
		}

		switch typ {
		case websocket.TextMessage:
			l.OnText(s, string(data))
		case websocket.BinaryMessage:
			l.OnBinary(s, data)
		}
	}
}

func (s *socket) finish(l eventsocket.Listener, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		l.OnClosed(s, closeErr.Code, closeErr.Text)
		return
	}

	s.mu.Lock()
	closing, code, reason := s.closing, s.code, s.reason
	s.mu.Unlock()

	if closing {
		l.OnClosed(s, code, reason)
		return
	}
	l.OnFailure(s, &eventsocket.ConnectionError{Op: "read", Err: err}, nil)
}
