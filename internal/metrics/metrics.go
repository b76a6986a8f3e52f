// Package metrics records what a dispatchgen run did, for node_exporter's
// textfile collector.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sghaida/odispatch/internal/gen"
)

// Run holds the gauges of a single generator run on a private registry.
type Run struct {
	reg *prometheus.Registry

	sites     prometheus.Gauge
	resolved  prometheus.Gauge
	conflicts prometheus.Gauge
	duration  prometheus.Gauge
	dropped   *prometheus.GaugeVec
	artifacts *prometheus.GaugeVec
	files     *prometheus.GaugeVec
}

// New returns a Run with every series registered and zeroed.
func New() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		sites: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchgen_annotation_sites",
			Help: "annotation sites found by the last run.",
		}),
		resolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchgen_bindings",
			Help: "annotation sites resolved to bindings.",
		}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchgen_conflicts",
			Help: "duplicated artifact keys.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchgen_run_duration_seconds",
			Help: "wall time of the last run.",
		}),
		dropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchgen_dropped_sites",
			Help: "annotation sites dropped, by reason.",
		}, []string{"reason"}),
		artifacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchgen_artifacts",
			Help: "artifacts emitted, by kind.",
		}, []string{"kind"}),
		files: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchgen_files",
			Help: "output files, by outcome.",
		}, []string{"outcome"}),
	}
	r.reg.MustRegister(r.sites, r.resolved, r.conflicts, r.duration, r.dropped, r.artifacts, r.files)

	for _, reason := range gen.DropReasons() {
		r.dropped.WithLabelValues(reason.String())
	}
	r.artifacts.WithLabelValues(gen.ArtifactDispatch.String())
	r.artifacts.WithLabelValues(gen.ArtifactRegistration.String())
	for _, o := range []string{OutcomeWritten, OutcomeUnchanged, OutcomePruned} {
		r.files.WithLabelValues(o)
	}
	return r
}

// File outcomes.
const (
	OutcomeWritten   = "written"
	OutcomeUnchanged = "unchanged"
	OutcomePruned    = "pruned"
)

// Observe records the stats of a finished run.
func (r *Run) Observe(s gen.Stats, took time.Duration) {
	r.sites.Set(float64(s.Sites))
	r.resolved.Set(float64(s.Resolved))
	r.conflicts.Set(float64(s.Conflicts))
	r.duration.Set(took.Seconds())
	for reason, n := range s.Dropped {
		r.dropped.WithLabelValues(reason.String()).Set(float64(n))
	}
	r.artifacts.WithLabelValues(gen.ArtifactDispatch.String()).Set(float64(s.DispatchArtifacts))
	r.artifacts.WithLabelValues(gen.ArtifactRegistration.String()).Set(float64(s.RegistrationArtifacts))
}

// ObserveFiles records how many output files ended with outcome.
func (r *Run) ObserveFiles(outcome string, n int) {
	r.files.WithLabelValues(outcome).Set(float64(n))
}

// Registry exposes the run registry.
func (r *Run) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile writes the registry to path, creating its directory.
func (r *Run) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
