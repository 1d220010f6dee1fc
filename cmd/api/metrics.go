package main

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// newPromRegistry creates the registry served on /metrics with runtime
// collectors and a build info gauge.
func newPromRegistry(version string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buildInfo := promauto.With(reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fraud",
			Subsystem: "api",
			Name:      "build_info",
			Help:      "Build information about the fraud risk engine",
		},
		[]string{"version", "go_version"},
	)
	buildInfo.WithLabelValues(version, runtime.Version()).Set(1)

	return reg
}
