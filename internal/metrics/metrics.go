// Package metrics exposes Prometheus instrumentation for the satpass daemon:
// session outcome counters, catalog freshness gauges, and per-directive
// command counts. Collectors register against a caller-supplied registerer so
// tests can use isolated registries while the daemon uses the default one.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles every satpass Prometheus metric and provides nil-safe
// recording helpers so callers never need to guard instrumentation calls.
type Collector struct {
	gatherer prometheus.Gatherer

	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionDuration   prometheus.Histogram

	CommandsTotal *prometheus.CounterVec

	RecordingActive prometheus.Gauge
	CatalogPasses   prometheus.Gauge
	LastRefresh     prometheus.Gauge
	ClientsGauge    prometheus.Gauge
}

// NewCollector registers satpass metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Re-registering
// against the same registry returns the existing collectors instead of
// failing, so multiple components can share one Collector safely.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	started, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satpass_sessions_started_total",
		Help: "Total number of recording sessions committed to a pass window.",
	}), "satpass_sessions_started_total")
	if err != nil {
		return nil, err
	}
	completed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satpass_sessions_completed_total",
		Help: "Total number of recording sessions that reached Completed.",
	}), "satpass_sessions_completed_total")
	if err != nil {
		return nil, err
	}
	failed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satpass_sessions_failed_total",
		Help: "Total number of recording sessions that ended in Failed.",
	}), "satpass_sessions_failed_total")
	if err != nil {
		return nil, err
	}
	cancelled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satpass_sessions_cancelled_total",
		Help: "Total number of recording sessions cancelled by an operator or shutdown.",
	}), "satpass_sessions_cancelled_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satpass_session_duration_seconds",
		Help:    "Wall-clock duration of finished recording sessions in seconds.",
		Buckets: []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 3600},
	})
	duration, err = registerHistogram(reg, duration, "satpass_session_duration_seconds")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satpass_commands_total",
		Help: "Total number of scheduler commands handled, labeled by command name.",
	}, []string{"command"})
	commands, err = registerCounterVec(reg, commands, "satpass_commands_total")
	if err != nil {
		return nil, err
	}

	recording, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satpass_recording_active",
		Help: "Whether a capture is currently writing audio (1) or not (0).",
	}), "satpass_recording_active")
	if err != nil {
		return nil, err
	}
	passes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satpass_catalog_passes",
		Help: "Number of upcoming passes currently cached in the catalog.",
	}), "satpass_catalog_passes")
	if err != nil {
		return nil, err
	}
	refresh, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satpass_catalog_last_refresh_timestamp_seconds",
		Help: "Unix timestamp of the last successful catalog refresh, 0 before the first.",
	}), "satpass_catalog_last_refresh_timestamp_seconds")
	if err != nil {
		return nil, err
	}
	clients, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satpass_websocket_clients",
		Help: "Number of WebSocket clients currently subscribed to telemetry.",
	}), "satpass_websocket_clients")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		SessionsStarted:   started,
		SessionsCompleted: completed,
		SessionsFailed:    failed,
		SessionsCancelled: cancelled,
		SessionDuration:   duration,
		CommandsTotal:     commands,
		RecordingActive:   recording,
		CatalogPasses:     passes,
		LastRefresh:       refresh,
		ClientsGauge:      clients,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncSessionStarted counts a session committing to a pass window.
func (c *Collector) IncSessionStarted() {
	if c == nil || c.SessionsStarted == nil {
		return
	}
	c.SessionsStarted.Inc()
}

// IncSessionCompleted counts a session reaching Completed.
func (c *Collector) IncSessionCompleted() {
	if c == nil || c.SessionsCompleted == nil {
		return
	}
	c.SessionsCompleted.Inc()
}

// IncSessionFailed counts a session ending in Failed.
func (c *Collector) IncSessionFailed() {
	if c == nil || c.SessionsFailed == nil {
		return
	}
	c.SessionsFailed.Inc()
}

// IncSessionCancelled counts a session discarded by cancel or shutdown.
func (c *Collector) IncSessionCancelled() {
	if c == nil || c.SessionsCancelled == nil {
		return
	}
	c.SessionsCancelled.Inc()
}

// ObserveSessionDuration records how long a finished session ran.
func (c *Collector) ObserveSessionDuration(d time.Duration) {
	if c == nil || c.SessionDuration == nil {
		return
	}
	c.SessionDuration.Observe(d.Seconds())
}

// IncCommand counts one handled scheduler command by name.
func (c *Collector) IncCommand(name string) {
	if c == nil || c.CommandsTotal == nil {
		return
	}
	c.CommandsTotal.WithLabelValues(name).Inc()
}

// SetRecordingActive flips the capture-in-progress gauge.
func (c *Collector) SetRecordingActive(active bool) {
	if c == nil || c.RecordingActive == nil {
		return
	}
	if active {
		c.RecordingActive.Set(1)
	} else {
		c.RecordingActive.Set(0)
	}
}

// SetCatalogSize updates the cached-pass count gauge.
func (c *Collector) SetCatalogSize(n int) {
	if c == nil || c.CatalogPasses == nil {
		return
	}
	c.CatalogPasses.Set(float64(n))
}

// SetLastRefresh records when the catalog last refreshed successfully.
// A zero time resets the gauge to 0.
func (c *Collector) SetLastRefresh(t time.Time) {
	if c == nil || c.LastRefresh == nil {
		return
	}
	if t.IsZero() {
		c.LastRefresh.Set(0)
		return
	}
	c.LastRefresh.Set(float64(t.Unix()))
}

// SetClientCount updates the connected WebSocket client gauge.
func (c *Collector) SetClientCount(n int) {
	if c == nil || c.ClientsGauge == nil {
		return
	}
	c.ClientsGauge.Set(float64(n))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
