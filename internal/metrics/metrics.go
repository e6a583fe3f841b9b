package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/marketfeed/internal/api"
	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/observer"
	"github.com/rickgao/marketfeed/internal/poller"
	"github.com/rickgao/marketfeed/internal/router"
)

const namespace = "marketfeed"

// Error kinds used as the "kind" label.
const (
	KindFetch     = "fetch"
	KindParse     = "parse"
	KindMalformed = "malformed"
	KindTransport = "transport"
	KindSubscribe = "subscribe"
	KindCycle     = "cycle"
	KindObserver  = "observer"
	KindOther     = "other"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles        prometheus.Counter
	pollDuration      prometheus.Histogram
	snapshotsFetched  prometheus.Counter
	fetchFailures     prometheus.Counter
	lastCaptureTime   prometheus.Gauge
	streamState       prometheus.Gauge
	streamConnects    prometheus.Counter
	streamDisconnects prometheus.Counter
	tradesEmitted     *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed snapshot poll cycles.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of each poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		snapshotsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "snapshots_fetched_total",
			Help:      "Snapshot records included in a batch.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "fetch_failures_total",
			Help:      "Symbols omitted from a batch because their fetch failed.",
		}),
		lastCaptureTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_capture_timestamp_seconds",
			Help:      "Capture instant of the most recent poll cycle.",
		}),
		streamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Stream state: 0 disconnected, 1 connecting, 2 subscribed, 3 receiving, 4 stopped.",
		}),
		streamConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribes_total",
			Help:      "Successful connect-and-subscribe sequences.",
		}),
		streamDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "disconnects_total",
			Help:      "Transport failures that led to a reconnect.",
		}),
		tradesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_total",
			Help:      "Trade records emitted, by symbol and side.",
		}, []string{"symbol", "side"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Recoverable errors reported to the observer, by component and kind.",
		}, []string{"component", "kind"}),
	}

	reg.MustRegister(
		m.pollCycles,
		m.pollDuration,
		m.snapshotsFetched,
		m.fetchFailures,
		m.lastCaptureTime,
		m.streamState,
		m.streamConnects,
		m.streamDisconnects,
		m.tradesEmitted,
		m.errorsTotal,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCycle implements poller.CycleRecorder.
func (m *Metrics) RecordCycle(stats poller.CycleStats) {
	m.pollCycles.Inc()
	m.pollDuration.Observe(stats.Duration.Seconds())
	m.snapshotsFetched.Add(float64(stats.Fetched))
	m.fetchFailures.Add(float64(stats.Failed))
	m.lastCaptureTime.Set(float64(stats.CapturedAt.UnixNano()) / 1e9)
}

// ObserveState is a connection.WithStateHook callback.
func (m *Metrics) ObserveState(s connection.State) {
	m.streamState.Set(float64(s))
	switch s {
	case connection.StateSubscribed:
		m.streamConnects.Inc()
	case connection.StateDisconnected:
		m.streamDisconnects.Inc()
	}
}

// ObserveTrade counts one emitted trade.
func (m *Metrics) ObserveTrade(t model.TradeRecord) {
	m.tradesEmitted.WithLabelValues(t.Symbol.String(), string(t.Side)).Inc()
}

// Notify implements observer.Observer.
func (m *Metrics) Notify(component string, err error) {
	m.errorsTotal.WithLabelValues(component, Kind(err)).Inc()
}

// Kind classifies err into one of the Kind constants.
func Kind(err error) string {
	var (
		fetchErr     *api.FetchError
		parseErr     *router.ParseError
		transportErr *connection.TransportError
		subscribeErr *connection.SubscribeError
		cycleErr     *poller.CycleError
		observerErr  *observer.ObserverError
	)

	switch {
	case errors.As(err, &observerErr):
		return KindObserver
	case errors.As(err, &cycleErr):
		return KindCycle
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &parseErr):
		if parseErr.Malformed {
			return KindMalformed
		}
		return KindParse
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &subscribeErr):
		return KindSubscribe
	default:
		return KindOther
	}
}
