// Package metrics holds the prometheus collectors exported by the daemon.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmax-ai/fractald/pkg/graph"
)

var (
	// HTTPRequestsTotal counts served requests by route pattern and status code
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractal_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "status"},
	)

	// ContributionsTotal counts contributions accepted since start
	ContributionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fractal_contributions_total",
			Help: "Total number of contributions accepted by this process",
		},
	)

	// ExpansionsTotal counts expansion lookups served
	ExpansionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fractal_expansions_total",
			Help: "Total number of fractal expansions served",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(ContributionsTotal)
	prometheus.MustRegister(ExpansionsTotal)
}

// StatsSource is satisfied by *graph.Store.
type StatsSource interface {
	Stats() graph.StorageStats
}

// StatsCollector reports store aggregates at scrape time.
type StatsCollector struct {
	source StatsSource

	nodes         *prometheus.Desc
	contributions *prometheus.Desc
	users         *prometheus.Desc
	bytes         *prometheus.Desc
}

// NewStatsCollector creates a collector reading from source.
func NewStatsCollector(source StatsSource) *StatsCollector {
	return &StatsCollector{
		source:        source,
		nodes:         prometheus.NewDesc("fractal_nodes", "Number of stored nodes per fractal level", []string{"level"}, nil),
		contributions: prometheus.NewDesc("fractal_contributions", "Number of contributions in the ledger", nil, nil),
		users:         prometheus.NewDesc("fractal_users", "Number of distinct contributing users", nil, nil),
		bytes:         prometheus.NewDesc("fractal_storage_bytes", "Approximate serialized size of stored nodes and contributions", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodes
	ch <- c.contributions
	ch <- c.users
	ch <- c.bytes
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	for level, count := range stats.LevelBreakdown {
		ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(count), strconv.Itoa(level))
	}
	ch <- prometheus.MustNewConstMetric(c.contributions, prometheus.GaugeValue, float64(stats.TotalContributions))
	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(stats.TotalUsers))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(stats.TotalSize))
}

// ObserveRequest records one served request.
func ObserveRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
