// Package metrics exposes Prometheus counters for mapping mutations and
// batch view assembly.
package metrics

import (
	"net/http"

	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names used as label values.
const (
	OpReplaceGroups   = "replace_groups"
	OpDeleteGroup     = "delete_group"
	OpBindClass       = "bind_class"
	OpUnbindClass     = "unbind_class"
	OpMapModule       = "map_module"
	OpAssignExpertise = "assign_expertise"
	OpUnassign        = "unassign_expertise"
	OpActivateTerm    = "activate_term"
)

var (
	registry = prometheus.NewRegistry()

	mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curriculum",
		Name:      "mutations_total",
		Help:      "Mapping mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	degradedSections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curriculum",
		Name:      "batchview_degraded_sections_total",
		Help:      "Batch view sections replaced by an empty result after a read failure.",
	}, []string{"section"})

	counterDrift = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "curriculum",
		Name:      "load_counter_update_failures_total",
		Help:      "Instructor load counter updates that failed after the assignment write succeeded.",
	})
)

func init() {
	registry.MustRegister(mutations, degradedSections, counterDrift)
}

// Mutation records the outcome of a write operation. A nil err is "ok";
// otherwise the outcome is the apperr kind.
func Mutation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	mutations.WithLabelValues(op, outcome).Inc()
}

// Degraded records a batch view section that fell back to empty.
func Degraded(section string) {
	degradedSections.WithLabelValues(section).Inc()
}

// CounterDrift records a failed best-effort load counter update.
func CounterDrift() {
	counterDrift.Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
