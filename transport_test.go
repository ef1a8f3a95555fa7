package eventsocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// echoServer echoes every frame back. The frame "close-me" makes the server
// close the socket with status 4000.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			http.Error(w, "missing header", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if string(data) == "close-me" {
				c.Close(4000, "server says bye")
				return
			}
			if err := c.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTestConn(t *testing.T, srv *httptest.Server) *Conn {
	t.Helper()

	header := http.Header{}
	header.Set("X-Test", "yes")

	conn, err := NewBuilder().
		AddReceiveInterceptor(InterceptorFunc(strings.ToUpper)).
		BuildRequest(NewDialer(&DialOptions{HandshakeTimeout: 5 * time.Second}), Request{
			URL:    wsURL(srv),
			Header: header,
		})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return conn
}

func TestDialer_EchoAndDisconnect(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestConn(t, srv)

	opened, err := conn.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	if opened.Response == nil || opened.Response.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("Response = %v, want 101", opened.Response)
	}

	messages := conn.Listen()
	defer messages.Close()

	if _, err := conn.Send(ctx, "hello"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	msg, err := messages.Next(ctx)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if text, _ := msg.Text(); text != "HELLO" {
		t.Errorf("Text() = %q, want HELLO", text)
	}

	if _, err := conn.SendBytes(ctx, []byte{0xde, 0xad}); err != nil {
		t.Fatalf("SendBytes error: %v", err)
	}
	msg, err = messages.Next(ctx)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !msg.IsBinary() || len(msg.Bytes()) != 2 {
		t.Errorf("msg = %v, want 2 binary bytes", msg)
	}

	closed, err := conn.Disconnect(ctx, 1000, "done")
	if err != nil {
		t.Fatalf("Disconnect error: %v", err)
	}
	if closed.Code != 1000 {
		t.Errorf("Code = %d, want 1000", closed.Code)
	}

	msg, err = messages.Next(ctx)
	if msg != nil || err != nil {
		t.Errorf("Next = %v, %v, want completion", msg, err)
	}
}

func TestDialer_ServerClose(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestConn(t, srv)
	if _, err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect error: %v", err)
	}

	messages := conn.Listen()
	defer messages.Close()

	if _, err := conn.Send(ctx, "close-me"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	_, err := messages.Next(ctx)
	var closed *Closed
	if !errors.As(err, &closed) {
		t.Fatalf("err = %v, want *Closed", err)
	}
	if closed.Code != 4000 || closed.Reason != "server says bye" {
		t.Errorf("Closed = %d %q, want 4000 server says bye", closed.Code, closed.Reason)
	}
	if conn.State() != StateTerminated {
		t.Errorf("State = %s, want terminated", conn.State())
	}
}

func TestDialer_HandshakeFailure(t *testing.T) {
	srv := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewBuilder().Build(NewDialer(nil), wsURL(srv))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	_, err = conn.Connect(ctx)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *ConnectionError", err)
	}
	if connErr.Op != "dial" {
		t.Errorf("Op = %s, want dial", connErr.Op)
	}
	if conn.State() != StateTerminated {
		t.Errorf("State = %s, want terminated", conn.State())
	}
}
