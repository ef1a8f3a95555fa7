package jsonconv_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisboulton/eventsocket-go"
	"github.com/chrisboulton/eventsocket-go/jsonconv"
)

type sample struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestFactory_RoundTrip(t *testing.T) {
	f := jsonconv.New()

	req, ok := f.RequestConverter(reflect.TypeFor[sample]())
	require.True(t, ok)
	text, err := req.Convert(sample{ID: 7, Name: "seven"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"name":"seven"}`, text)

	resp, ok := f.ResponseConverter(reflect.TypeFor[sample]())
	require.True(t, ok)
	value, err := resp.Convert(text)
	require.NoError(t, err)
	assert.Equal(t, sample{ID: 7, Name: "seven"}, value)
}

func TestFactory_Pointer(t *testing.T) {
	f := jsonconv.New()

	resp, ok := f.ResponseConverter(reflect.TypeFor[*sample]())
	require.True(t, ok)
	value, err := resp.Convert(`{"id":1}`)
	require.NoError(t, err)

	s, ok := value.(*sample)
	require.True(t, ok)
	assert.Equal(t, 1, s.ID)
}

func TestFactory_Malformed(t *testing.T) {
	f := jsonconv.New()

	resp, ok := f.ResponseConverter(reflect.TypeFor[sample]())
	require.True(t, ok)
	_, err := resp.Convert(`{"id":`)
	assert.Error(t, err)
}

func TestFactory_Strings(t *testing.T) {
	req, ok := jsonconv.New().RequestConverter(reflect.TypeFor[string]())
	require.True(t, ok)
	text, err := req.Convert("hi")
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, text)

	_, ok = jsonconv.New(jsonconv.WithRawStrings()).RequestConverter(reflect.TypeFor[string]())
	assert.False(t, ok, "raw strings should fall through")

	_, ok = jsonconv.New().RequestConverter(nil)
	assert.False(t, ok)
}

func TestFactory_WithAPI(t *testing.T) {
	f := jsonconv.New(jsonconv.WithAPI(jsoniter.Config{SortMapKeys: true}.Froze()))

	req, ok := f.RequestConverter(reflect.TypeFor[map[string]int]())
	require.True(t, ok)
	text, err := req.Convert(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, text)
}

// echoTransport opens immediately and echoes every text frame back.
type echoTransport struct{}

func (echoTransport) Open(_ eventsocket.Request, l eventsocket.Listener) {
	l.OnOpen(&echoSocket{l: l}, nil)
}

type echoSocket struct {
	l eventsocket.Listener
}

func (s *echoSocket) SendText(_ context.Context, text string) error {
	s.l.OnText(s, text)
	return nil
}

func (s *echoSocket) SendBinary(_ context.Context, data []byte) error {
	s.l.OnBinary(s, data)
	return nil
}

func (s *echoSocket) Close(code int, reason string) error {
	s.l.OnClosed(s, code, reason)
	return nil
}

func TestFactory_ThroughConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reg := eventsocket.NewTypeRegistry()
	eventsocket.RegisterResponse(reg, func(text string) (string, error) {
		return "registry:" + text, nil
	})

	// the registry claims string first, JSON handles everything else
	conn, err := eventsocket.NewBuilder().
		AddConverterFactory(reg).
		AddConverterFactory(jsonconv.New()).
		Build(echoTransport{}, "ws://localhost/echo")
	require.NoError(t, err)

	_, err = conn.Connect(ctx)
	require.NoError(t, err)

	messages := conn.Listen()
	defer messages.Close()

	queued, err := conn.Send(ctx, sample{ID: 3, Name: "three"})
	require.NoError(t, err)
	assert.Equal(t, sample{ID: 3, Name: "three"}, queued.Payload)

	msg, err := messages.Next(ctx)
	require.NoError(t, err)

	decoded, err := eventsocket.Data[sample](msg)
	require.NoError(t, err)
	assert.Equal(t, sample{ID: 3, Name: "three"}, decoded)

	text, err := eventsocket.Data[string](msg)
	require.NoError(t, err)
	assert.Equal(t, `registry:{"id":3,"name":"three"}`, text)

	closed, err := conn.Disconnect(ctx, 1000, "bye")
	require.NoError(t, err)
	assert.Equal(t, 1000, closed.Code)
}
