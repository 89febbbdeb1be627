// Package metrics exposes Prometheus instrumentation for the ballot engine.
package metrics

import (
	"net/http"
	"strconv"

	"agora/contexts/assembly-governance/ballot-engine/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	votesCast  *prometheus.CounterVec
	extensions *prometheus.CounterVec
	tallies    *prometheus.CounterVec
	registry   *prometheus.Registry
}

func NewRecorder(serviceName string) *Recorder {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": serviceName}

	recorder := &Recorder{
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ballot_votes_cast_total",
			Help:        "Votes accepted by the ballot engine, split by first cast vs revision.",
			ConstLabels: labels,
		}, []string{"revote"}),
		extensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ballot_extension_resolutions_total",
			Help:        "Extension decisions committed at the end of regular voting windows.",
			ConstLabels: labels,
		}, []string{"extended"}),
		tallies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ballot_tallies_total",
			Help:        "Completed tallies, split by whether the frozen quorum was met.",
			ConstLabels: labels,
		}, []string{"quorum_met"}),
		registry: registry,
	}
	registry.MustRegister(recorder.votesCast, recorder.extensions, recorder.tallies)
	return recorder
}

func (r *Recorder) VoteCast(revote bool) {
	r.votesCast.WithLabelValues(strconv.FormatBool(revote)).Inc()
}

func (r *Recorder) ExtensionResolved(extended bool) {
	r.extensions.WithLabelValues(strconv.FormatBool(extended)).Inc()
}

func (r *Recorder) TallyCompleted(quorumMet bool) {
	r.tallies.WithLabelValues(strconv.FormatBool(quorumMet)).Inc()
}

// Handler serves the scrape endpoint for this process registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ ports.MetricsRecorder = (*Recorder)(nil)
