package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts scrape runs and their outcomes. Register against the
// process registry once; handlers expose it on /metrics.
type Metrics struct {
	Runs             *prometheus.CounterVec
	IntervalsWritten prometheus.Counter
	ParseFailures    prometheus.Counter
	CacheHits        prometheus.Counter
	RunDuration      prometheus.Histogram
}

// NewMetrics builds and registers the scrape metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stationwatch",
			Subsystem: "scrape",
			Name:      "runs_total",
			Help:      "Scrape runs by outcome.",
		}, []string{"result"}),
		IntervalsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stationwatch",
			Subsystem: "scrape",
			Name:      "intervals_written_total",
			Help:      "Coalesced availability intervals written to the store.",
		}),
		ParseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stationwatch",
			Subsystem: "scrape",
			Name:      "parse_failures_total",
			Help:      "Grid documents that could not be parsed.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stationwatch",
			Subsystem: "scrape",
			Name:      "cache_hits_total",
			Help:      "Days served from cache without a portal fetch.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stationwatch",
			Subsystem: "scrape",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full scrape run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Runs, m.IntervalsWritten, m.ParseFailures, m.CacheHits, m.RunDuration)
	return m
}
