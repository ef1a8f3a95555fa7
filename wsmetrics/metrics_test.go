package wsmetrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisboulton/eventsocket-go"
	"github.com/chrisboulton/eventsocket-go/wsmetrics"
)

// loopTransport opens immediately and echoes every frame back.
type loopTransport struct{}

func (loopTransport) Open(_ eventsocket.Request, l eventsocket.Listener) {
	l.OnOpen(&loopSocket{l: l}, nil)
}

type loopSocket struct {
	l eventsocket.Listener
}

func (s *loopSocket) SendText(_ context.Context, text string) error {
	s.l.OnText(s, text)
	return nil
}

func (s *loopSocket) SendBinary(_ context.Context, data []byte) error {
	s.l.OnBinary(s, data)
	return nil
}

func (s *loopSocket) Close(code int, reason string) error {
	s.l.OnClosed(s, code, reason)
	return nil
}

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := wsmetrics.New(reg)
	require.NoError(t, err)

	_, err = wsmetrics.New(reg)
	assert.Error(t, err, "registering twice should fail")

	_, err = wsmetrics.New(nil)
	assert.NoError(t, err)
}

func TestCollector_ObservesConn(t *testing.T) {
	ctx := context.Background()

	c, err := wsmetrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	conn, err := eventsocket.NewBuilder().Build(loopTransport{}, "ws://localhost", c.Options()...)
	require.NoError(t, err)

	_, err = conn.Connect(ctx)
	require.NoError(t, err)
	_, err = conn.Send(ctx, "hello")
	require.NoError(t, err)
	_, err = conn.SendBytes(ctx, make([]byte, 100))
	require.NoError(t, err)
	_, err = conn.Disconnect(ctx, 1000, "bye")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Events.WithLabelValues("opened")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Events.WithLabelValues("queued")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Events.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Events.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Sent.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Sent.WithLabelValues("binary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Terminations.WithLabelValues("requested")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ReceivedSize))
}

func TestCollector_AbnormalTermination(t *testing.T) {
	c, err := wsmetrics.New(nil)
	require.NoError(t, err)

	c.OnTerminate(&eventsocket.Closed{Code: 1006})
	c.OnTerminate(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Terminations.WithLabelValues("abnormal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Terminations.WithLabelValues("requested")))
}
