package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "vdcd"

// Metrics collects vDC host counters on a private registry. It satisfies
// the Metrics interface of the vdc package.
type Metrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Notifications   *prometheus.CounterVec
	NotifyFailures  *prometheus.CounterVec
	Announcements   *prometheus.CounterVec
	Pushes          prometheus.Counter
	SessionActive   prometheus.Gauge
	Sessions        prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry: reg,
		}),

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "vdSM requests handled, by message type and result code.",
		}, []string{"type", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time to answer a vdSM request.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"type"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notification_targets_total",
			Help:      "Notification targets addressed, by message type.",
		}, []string{"type"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notification_failures_total",
			Help:      "Notification targets that failed, by message type.",
		}, []string{"type"}),
		Announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "announcements_total",
			Help:      "Announcements sent to the vdSM, by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "property_pushes_total",
			Help:      "Property pushes sent to the vdSM.",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_active",
			Help:      "1 while a vdSM session is active.",
		}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "vdSM sessions that became active since startup.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Status API requests, by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Notifications,
		m.NotifyFailures,
		m.Announcements,
		m.Pushes,
		m.SessionActive,
		m.Sessions,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// AddGauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) AddGauge(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// ObserveRequest counts a handled request.
func (m *Metrics) ObserveRequest(msgType, result string, d time.Duration) {
	m.Requests.WithLabelValues(msgType, result).Inc()
	m.RequestDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

// ObserveNotification counts the targets of one notification.
func (m *Metrics) ObserveNotification(msgType string, targets, failed int) {
	m.Notifications.WithLabelValues(msgType).Add(float64(targets))
	if failed > 0 {
		m.NotifyFailures.WithLabelValues(msgType).Add(float64(failed))
	}
}

// ObserveAnnounce counts an announcement of a vDC or vdSD.
func (m *Metrics) ObserveAnnounce(kind string, ok bool) {
	outcome := "accepted"
	if !ok {
		outcome = "failed"
	}
	m.Announcements.WithLabelValues(kind, outcome).Inc()
}

// ObservePush counts a property push.
func (m *Metrics) ObservePush() {
	m.Pushes.Inc()
}

// SetSessionActive tracks the session state.
func (m *Metrics) SetSessionActive(active bool) {
	if active {
		m.SessionActive.Set(1)
		m.Sessions.Inc()
		return
	}
	m.SessionActive.Set(0)
}

// ObserveHTTP counts one status API request.
func (m *Metrics) ObserveHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
