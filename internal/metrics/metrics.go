package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	LoadsTotal       *prometheus.CounterVec
	LoadDuration     *prometheus.HistogramVec
	Records          *prometheus.GaugeVec
	SearchesTotal    *prometheus.CounterVec
	SearchCacheTotal *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	WebSocketClients prometheus.Gauge
}

// New creates and registers all metrics with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_loads_total",
			Help: "Total number of completed data set loads by sport and result",
		}, []string{"sport", "result"}),
		LoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_load_duration_seconds",
			Help:    "Time spent parsing and indexing a sport's data set",
			Buckets: prometheus.DefBuckets,
		}, []string{"sport"}),
		Records: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_records",
			Help: "Number of player records loaded per sport",
		}, []string{"sport"}),
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Total number of player searches by sport and source",
		}, []string{"sport", "source"}),
		SearchCacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_search_cache_total",
			Help: "Search cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_rate_limited_total",
			Help: "Total number of search requests rejected by the rate limiter",
		}),
		WebSocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_ws_clients",
			Help: "Current number of connected load-state feed clients",
		}),
	}
}

// ObserveLoad records a finished load
func (m *Metrics) ObserveLoad(sport models.Sport, records int, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.LoadsTotal.WithLabelValues(string(sport), result).Inc()
	m.LoadDuration.WithLabelValues(string(sport)).Observe(d.Seconds())
	if err == nil {
		m.Records.WithLabelValues(string(sport)).Set(float64(records))
	}
}

// IncrementSearches counts a search; source is "catalog" or "cache"
func (m *Metrics) IncrementSearches(sport models.Sport, source string) {
	m.SearchesTotal.WithLabelValues(string(sport), source).Inc()
}

// IncrementSearchCache counts a cache lookup outcome
func (m *Metrics) IncrementSearchCache(result string) {
	m.SearchCacheTotal.WithLabelValues(result).Inc()
}

// IncrementRateLimited counts a rejected request
func (m *Metrics) IncrementRateLimited() {
	m.RateLimitedTotal.Inc()
}

// SetWebSocketClients records the current feed client count
func (m *Metrics) SetWebSocketClients(n int) {
	m.WebSocketClients.Set(float64(n))
}
