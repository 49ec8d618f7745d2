// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics. updated by the root rank only
var (
	checkpointDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topo_checkpoint_duration_seconds",
		Help:    "Time to write a checkpoint pair",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"status"})

	restartOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topo_restart_outcomes_total",
		Help: "Outcomes of restart attempts at startup",
	}, []string{"outcome"})

	iterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topo_iterations_total",
		Help: "Completed optimization iterations",
	})

	iterationDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "topo_iteration_duration_seconds",
		Help:    "Time spent in one optimization iteration",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	objectiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topo_objective",
		Help: "Scaled objective of the last iteration",
	})

	changeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topo_design_change",
		Help: "Max change of the design variables in the last iteration",
	})

	volumeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topo_volume_fraction",
		Help: "Mean physical density after the last iteration",
	})

	betaGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topo_projection_beta",
		Help: "Current projection sharpness",
	})
)

// observeCheckpoint records the duration of a checkpoint
func observeCheckpoint(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	checkpointDurationHistogram.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// ServeMetrics serves the metrics at addr/metrics in the background. Returns
// nil if addr is empty
func ServeMetrics(addr string, log *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return srv
}
