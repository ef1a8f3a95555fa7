// Package wsmetrics exposes eventsocket connection activity as Prometheus
// metrics.
package wsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrisboulton/eventsocket-go"
)

// Collector holds the metrics fed by a connection's observability hooks.
type Collector struct {
	Events       *prometheus.CounterVec
	Sent         *prometheus.CounterVec
	Terminations *prometheus.CounterVec
	ReceivedSize prometheus.Histogram
}

// New creates a Collector and registers it with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventsocket",
				Subsystem: "conn",
				Name:      "events_total",
				Help:      "Total number of events published, by kind",
			},
			[]string{"kind"},
		),
		Sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventsocket",
				Subsystem: "conn",
				Name:      "sent_total",
				Help:      "Total number of payloads handed to the transport, by frame type",
			},
			[]string{"frame"},
		),
		Terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventsocket",
				Subsystem: "conn",
				Name:      "terminations_total",
				Help:      "Total number of terminated connections (outcome=requested|abnormal)",
			},
			[]string{"outcome"},
		),
		ReceivedSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "eventsocket",
				Subsystem: "conn",
				Name:      "received_bytes",
				Help:      "Size of received binary frames in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
	}

	if reg != nil {
		for _, m := range []prometheus.Collector{c.Events, c.Sent, c.Terminations, c.ReceivedSize} {
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// Options returns the eventsocket options wiring the collector into a Conn.
func (c *Collector) Options() []eventsocket.Option {
	return []eventsocket.Option{
		eventsocket.WithOnEvent(c.OnEvent),
		eventsocket.WithOnSend(c.OnSend),
		eventsocket.WithOnTerminate(c.OnTerminate),
	}
}

// OnEvent records a published event.
func (c *Collector) OnEvent(ev eventsocket.Event) {
	c.Events.WithLabelValues(ev.Kind()).Inc()

	if msg, ok := ev.(*eventsocket.Message); ok && msg.IsBinary() {
		c.ReceivedSize.Observe(float64(len(msg.Bytes())))
	}
}

// OnTerminate records a terminated connection.
func (c *Collector) OnTerminate(err error) {
	if err == nil {
		c.Terminations.WithLabelValues("requested").Inc()
		return
	}
	c.Terminations.WithLabelValues("abnormal").Inc()
}

// OnSend records a payload about to be sent.
func (c *Collector) OnSend(payload any) {
	if _, ok := payload.([]byte); ok {
		c.Sent.WithLabelValues("binary").Inc()
		return
	}
	c.Sent.WithLabelValues("text").Inc()
}
