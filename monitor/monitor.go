// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineSessions     prometheus.Gauge
	ActiveGroups       prometheus.Gauge
	MessagesReceived   *prometheus.CounterVec
	MatchesCreated     prometheus.Counter
	Forfeits           *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	MessageLatency     prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlineSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_sessions",
			Help:      "Number of connected match sessions",
		}),
		ActiveGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_match_groups",
			Help:      "Number of matches with at least one connected session",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of client messages received",
		}, []string{"type"}),
		MatchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Total number of matches created",
		}),
		Forfeits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeout_forfeits_total",
			Help:      "Total number of matches finished by turn timeout",
		}, []string{"source"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected game actions by code",
		}, []string{"code"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	reg.MustRegister(
		m.OnlineSessions,
		m.ActiveGroups,
		m.MessagesReceived,
		m.MatchesCreated,
		m.Forfeits,
		m.ValidationFailures,
		m.MessageLatency,
	)

	return m
}

// Monitor is safe to use as a nil pointer; every method is then a no-op.
type Monitor struct {
	registry     *prometheus.Registry
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		registry:  reg,
		metrics:   NewMetrics(namespace, reg),
		startTime: time.Now(),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var publishOnce sync.Once

// PublishExpvar exposes uptime and request count under /debug/vars.
func (m *Monitor) PublishExpvar() {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			m.mutex.Lock()
			defer m.mutex.Unlock()
			return m.requestCount
		}))
	})
}

func (m *Monitor) IncOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Inc()
}

func (m *Monitor) DecOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Dec()
}

func (m *Monitor) SetActiveGroups(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveGroups.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived(msgType string) {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.WithLabelValues(msgType).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) IncMatchesCreated() {
	if m == nil {
		return
	}
	m.metrics.MatchesCreated.Inc()
}

// IncForfeits counts a timeout forfeit; source is "session" or "sweeper".
func (m *Monitor) IncForfeits(source string) {
	if m == nil {
		return
	}
	m.metrics.Forfeits.WithLabelValues(source).Inc()
}

func (m *Monitor) IncValidationFailures(code string) {
	if m == nil {
		return
	}
	m.metrics.ValidationFailures.WithLabelValues(code).Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}
