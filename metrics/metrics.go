// Package metrics counts scenario and step outcomes in Prometheus format.
package metrics

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"
)

const namespace = "quizsmoke"

// Results recorded in the result label.
const (
	ResultPassed = "passed"
	ResultFailed = "failed"
)

// Registry holds the smoke test collectors. A nil *Registry records
// nothing.
type Registry struct {
	reg *prometheus.Registry

	scenarios    *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Number of smoke scenarios run, by outcome.",
		}, []string{"scenario", "backend", "result"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Number of scenario steps run, by kind and outcome.",
		}, []string{"kind", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in scenario steps.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
	}
	r.reg.MustRegister(r.scenarios, r.steps, r.stepDuration)
	return r
}

// ObserveScenario counts one finished scenario.
func (r *Registry) ObserveScenario(scenario, backend string, passed bool) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(scenario, backend, result(passed)).Inc()
}

// ObserveStep counts one finished step and records its duration.
func (r *Registry) ObserveStep(kind string, passed bool, d time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(kind, result(passed)).Inc()
	r.stepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Registerer lets other components register their collectors next to
// the smoke test ones.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to filename on fs in the text format
// read by the node exporter textfile collector. The file is written to a
// temporary file first and renamed, so the collector never reads a partial
// file.
func (r *Registry) WriteTextfile(fs afero.Fs, filename string) error {
	mfs, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	tmp, err := afero.TempFile(fs, filepath.Dir(filename), filepath.Base(filename))
	if err != nil {
		return err
	}
	defer fs.Remove(tmp.Name()) //nolint:errcheck

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fs.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return fs.Rename(tmp.Name(), filename)
}

func result(passed bool) string {
	if passed {
		return ResultPassed
	}
	return ResultFailed
}
