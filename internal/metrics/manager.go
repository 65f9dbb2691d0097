package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes used as the "result" label
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
	CacheStore = "store"
)

// Manager owns the prometheus collectors of the dashboard
type Manager struct {
	// counters
	CounterRequests *prometheus.CounterVec
	CounterCache    *prometheus.CounterVec
	CounterFetches  *prometheus.CounterVec

	// histograms
	HistReportDuration *prometheus.HistogramVec
	HistFetchDuration  prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("strava", "dashboard_test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("strava", "dashboard_test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"route", "method", "status"})
	counterCache := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_operations",
		Help:      "Result cache operations by kind and outcome",
	}, []string{"kind", "result"})
	counterFetches := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "activity_fetches",
		Help:      "Activity fetches from Strava by outcome",
	}, []string{"result"})

	histReportDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "report_duration_seconds",
		Help:      "Time spent computing a report on a cache miss",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"report"})
	histFetchDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "activity_fetch_duration_seconds",
		Help:      "Time spent fetching the full activity history",
		Buckets:   prometheus.DefBuckets,
	})

	return &Manager{
		CounterRequests:    counterRequests,
		CounterCache:       counterCache,
		CounterFetches:     counterFetches,
		HistReportDuration: histReportDuration,
		HistFetchDuration:  histFetchDuration,
	}
}

// ObserveCache counts one cache operation; a nil manager is a no-op
func (m *Manager) ObserveCache(kind, result string) {
	if m == nil {
		return
	}
	m.CounterCache.WithLabelValues(kind, result).Inc()
}

// ObserveReport records how long a report took to compute
func (m *Manager) ObserveReport(report string, seconds float64) {
	if m == nil {
		return
	}
	m.HistReportDuration.WithLabelValues(report).Observe(seconds)
}

// ObserveFetch records one upstream activity fetch
func (m *Manager) ObserveFetch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.CounterFetches.WithLabelValues(result).Inc()
	m.HistFetchDuration.Observe(seconds)
}

// ObserveRequest counts one served HTTP request
func (m *Manager) ObserveRequest(route, method, status string) {
	if m == nil {
		return
	}
	m.CounterRequests.WithLabelValues(route, method, status).Inc()
}
