// Package metrics exposes publish metrics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miladsoleymani/eventgate/core"
)

const (
	resultOK = "ok"

	// topicRejected labels calls whose topic never reached a producer, so
	// arbitrary client input cannot mint new series.
	topicRejected = "_rejected"
)

// Collector implements middleware.MetricsCollector.
type Collector struct {
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	ledgerDropped   prometheus.Counter
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventgate_publish_total",
				Help: "Number of publish calls by topic and result.",
			},
			[]string{"topic", "result"},
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventgate_publish_duration_seconds",
				Help:    "Time from request to publish outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		ledgerDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eventgate_ledger_dropped_total",
				Help: "Number of outcome records dropped because the ledger queue was full.",
			},
		),
	}
	reg.MustRegister(c.publishTotal, c.publishDuration, c.ledgerDropped)
	return c
}

// PublishObserved records one publish call.
func (c *Collector) PublishObserved(topic string, d time.Duration, err error) {
	result := resultOK
	if err != nil {
		result = core.KindOf(err).String()
	}
	c.publishTotal.WithLabelValues(topicLabel(topic, err), result).Inc()
	c.publishDuration.WithLabelValues(result).Observe(d.Seconds())
}

func topicLabel(topic string, err error) string {
	var ge *core.Error
	if !errors.As(err, &ge) || ge.EventID != "" {
		return topic
	}
	switch ge.Kind {
	case core.KindInvalidArgument, core.KindTopicNotFound:
		return topicRejected
	}
	return topic
}

// LedgerDropped counts one outcome record the ledger could not queue.
func (c *Collector) LedgerDropped() {
	c.ledgerDropped.Inc()
}
