package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds all buildstate Prometheus metrics.
type Counters struct {
	AuthAttempts   prometheus.Counter
	AuthFailures   prometheus.Counter
	ManifestChecks prometheus.Counter
	ManifestHits   prometheus.Counter
	ManifestMisses prometheus.Counter
	ProbeErrors    prometheus.Counter
}

// NewCounters creates and registers Prometheus counters with the given registry.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		AuthAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_auth_attempts_total",
			Help: "Total number of registry authentication exchanges.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_auth_failures_total",
			Help: "Total number of failed registry authentication exchanges.",
		}),
		ManifestChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_manifest_checks_total",
			Help: "Total number of manifest existence checks issued.",
		}),
		ManifestHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_manifest_hits_total",
			Help: "Total number of manifest checks that found an existing image.",
		}),
		ManifestMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_manifest_misses_total",
			Help: "Total number of manifest checks that found no image.",
		}),
		ProbeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buildstate_probe_errors_total",
			Help: "Total number of manifest checks that failed with a transport error.",
		}),
	}

	reg.MustRegister(
		c.AuthAttempts,
		c.AuthFailures,
		c.ManifestChecks,
		c.ManifestHits,
		c.ManifestMisses,
		c.ProbeErrors,
	)

	return c
}

// RecordAuth increments the auth counters; failed marks a rejected exchange.
func (c *Counters) RecordAuth(failed bool) {
	if c == nil {
		return
	}
	c.AuthAttempts.Inc()
	if failed {
		c.AuthFailures.Inc()
	}
}

// RecordHit counts a check that found the manifest.
func (c *Counters) RecordHit() {
	if c == nil {
		return
	}
	c.ManifestChecks.Inc()
	c.ManifestHits.Inc()
}

// RecordMiss counts a check that found no manifest.
func (c *Counters) RecordMiss() {
	if c == nil {
		return
	}
	c.ManifestChecks.Inc()
	c.ManifestMisses.Inc()
}

// RecordProbeError counts a check that failed.
func (c *Counters) RecordProbeError() {
	if c == nil {
		return
	}
	c.ManifestChecks.Inc()
	c.ProbeErrors.Inc()
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
