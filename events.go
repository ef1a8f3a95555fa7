package eventsocket

import (
	"fmt"
	"net/http"
	"reflect"
)

// Event is anything a Conn emits. The set of variants is closed: *Opened,
// *Message, *Queued and *Closed.
type Event interface {
	// Kind returns a short name for the event variant.
	Kind() string
	event()
}

// Opened is emitted once the transport reports the socket open, and again
// when Connect is called on an already open socket.
type Opened struct {
	// Response is the handshake response. It is nil when the event
	// re-announces an existing socket.
	Response *http.Response
}

// Kind implements Event.
func (*Opened) Kind() string { return "opened" }
func (*Opened) event()       {}

// resolver looks up a response converter for a type.
type resolver func(reflect.Type) (ResponseConverter, bool)

// Message is a received text or binary frame. Interception and conversion are
// deferred until the message is read.
type Message struct {
	text   *string
	bytes  []byte
	binary bool

	intercept Interceptor
	resolve   resolver
}

func newTextMessage(text string, intercept Interceptor, resolve resolver) *Message {
	return &Message{text: &text, intercept: intercept, resolve: resolve}
}

func newBinaryMessage(data []byte, intercept Interceptor, resolve resolver) *Message {
	return &Message{bytes: data, binary: true, intercept: intercept, resolve: resolve}
}

// Kind implements Event.
func (*Message) Kind() string { return "message" }
func (*Message) event()       {}

// IsBinary reports whether the message arrived as a binary frame.
func (m *Message) IsBinary() bool {
	return m.binary
}

// Text returns the received text after the interceptor chain ran. ok is false
// when the frame was binary or an interceptor collapsed the text.
func (m *Message) Text() (text string, ok bool) {
	if m.binary {
		return "", false
	}
	out := m.intercepted()
	if out == nil {
		return "", false
	}
	return *out, true
}

// Bytes returns the payload of a binary frame, or nil for a text frame.
func (m *Message) Bytes() []byte {
	return m.bytes
}

func (m *Message) intercepted() *string {
	if m.intercept == nil {
		return m.text
	}
	return m.intercept.Intercept(m.text)
}

// decodable returns the text handed to a response converter: the intercepted
// text for a text frame, the UTF-8 content of a binary frame, or "" when
// neither is present.
func (m *Message) decodable() string {
	if m.binary {
		return string(m.bytes)
	}
	if out := m.intercepted(); out != nil {
		return *out
	}
	return ""
}

func (m *Message) String() string {
	if m.binary {
		return fmt.Sprintf("message(%d bytes)", len(m.bytes))
	}
	text, _ := m.Text()
	return fmt.Sprintf("message(%q)", text)
}

// Data decodes a received message into a T using the first converter factory
// able to produce T. It returns an error wrapping ErrNoConverter when no
// factory can, and a *ConversionError when the converter fails.
func Data[T any](m *Message) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()

	if m.resolve == nil {
		return zero, noConverter(t)
	}
	conv, ok := m.resolve(t)
	if !ok {
		return zero, noConverter(t)
	}

	value, err := conv.Convert(m.decodable())
	if err != nil {
		return zero, &ConversionError{Type: t, Err: err}
	}
	out, ok := value.(T)
	if !ok {
		return zero, &ConversionError{
			Type: t,
			Err:  fmt.Errorf("converter produced %T", value),
		}
	}
	return out, nil
}

// Queued acknowledges that a payload was handed to the transport.
type Queued struct {
	// Payload is the value passed to Send or SendBytes, before conversion.
	Payload any
}

// Kind implements Event.
func (*Queued) Kind() string { return "queued" }
func (*Queued) event()       {}

// Closed reports the socket closing. It is also returned as the terminal
// error when the closure was not requested by the caller.
type Closed struct {
	Code   int
	Reason string
}

// Kind implements Event.
func (*Closed) Kind() string { return "closed" }
func (*Closed) event()       {}

func (c *Closed) Error() string {
	if c.Reason != "" {
		return fmt.Sprintf("eventsocket: closed with code %d: %s", c.Code, c.Reason)
	}
	return fmt.Sprintf("eventsocket: closed with code %d", c.Code)
}
