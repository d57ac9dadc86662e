package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// solveTotal counts online solves by model and result
	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbeval_solve_total",
		Help: "Total online solves by model and result",
	}, []string{"model", "result"})

	// solveDuration tracks online solve latency
	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbeval_solve_duration_seconds",
		Help:    "Online solve duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"model"})

	// solveBound tracks the returned a-posteriori error bounds
	solveBound = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbeval_solve_error_bound",
		Help:    "A-posteriori error bound of online solves",
		Buckets: prometheus.ExponentialBuckets(1e-12, 10, 14),
	}, []string{"model"})

	// sweepPoints counts evaluated sweep points
	sweepPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbeval_sweep_points_total",
		Help: "Total evaluated sweep points by model",
	}, []string{"model"})

	// activeSweeps is the number of sweeps currently running
	activeSweeps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rbeval_active_sweeps",
		Help: "Number of parameter sweeps currently running",
	})
)
