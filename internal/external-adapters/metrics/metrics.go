// Package metrics records pipeline outcomes in Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
)

const namespace = "incrementals"

var _ interfaces.Metrics = (*Prom)(nil)

// Prom implements interfaces.Metrics backed by Prometheus collectors
type Prom struct {
	results        *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec
	archiveEntries prometheus.Histogram
}

// NewProm creates the pipeline collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewProm(reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prom{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Pipeline invocations by outcome class and status code",
		}, []string{"outcome", "status"}),
		stageDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		archiveEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_entries",
			Help:      "Entries found in downloaded build archives",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}

	for _, c := range []prometheus.Collector{p.results, p.stageDurations, p.archiveEntries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveResult counts a finished invocation
func (p *Prom) ObserveResult(outcome string, status int) {
	p.results.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
}

// ObserveStage records a stage duration
func (p *Prom) ObserveStage(stage string, d time.Duration) {
	p.stageDurations.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveArchiveEntries records the size of an archive listing
func (p *Prom) ObserveArchiveEntries(n int) {
	p.archiveEntries.Observe(float64(n))
}

// Handler exposes the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
