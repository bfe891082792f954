package filecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dmsiq/internal/domain/models/filecache"
)

// cache_file outcomes
const (
	resultDownloaded    = "downloaded"
	resultAlreadyCached = "already_cached"
	resultFailed        = "failed"
)

// Metrics holds the cache engine's Prometheus collectors
type Metrics struct {
	cacheResults  *prometheus.CounterVec
	reads         *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	bytesCached   prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dmsiq_cache_file_total",
			Help: "cache_file calls by result.",
		}, []string{"result"}),

		reads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dmsiq_get_file_total",
			Help: "get_file reads by the source that served them.",
		}, []string{"source"}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmsiq_remote_fetch_duration_seconds",
			Help:    "Duration of remote downloads, successful or not.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		bytesCached: factory.NewCounter(prometheus.CounterOpts{
			Name: "dmsiq_cached_bytes_total",
			Help: "Bytes written into the local cache.",
		}),
	}
}

func (m *Metrics) read(source filecache.Source) {
	m.reads.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) result(result string) {
	m.cacheResults.WithLabelValues(result).Inc()
}
