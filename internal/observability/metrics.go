// Package observability bundles Prometheus metrics for the staged solver.
package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// SolverMetrics counts staged-solve activity. All metrics are optional at
// the solver level: a nil *SolverMetrics disables instrumentation.
type SolverMetrics struct {
	StagesSolved     prometheus.Counter
	StageFailures    prometheus.Counter
	StageDuration    prometheus.Histogram
	TrajectoryPoints prometheus.Counter
	MappingLossTotal prometheus.Counter
}

// NewSolverMetrics registers the solver metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Re-registering against the same registry returns the existing
// collectors instead of failing.
func NewSolverMetrics(reg prometheus.Registerer) (*SolverMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	stages, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kiln_stages_solved_total",
		Help: "Total number of stages solved to completion.",
	}))
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kiln_stage_failures_total",
		Help: "Total number of stage solves that returned an error.",
	}))
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiln_stage_solve_duration_seconds",
		Help:    "Wall-clock duration of individual stage solves.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}))
	if err != nil {
		return nil, err
	}
	points, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kiln_trajectory_points_total",
		Help: "Total number of reactor visits appended to trajectories.",
	}))
	if err != nil {
		return nil, err
	}
	losses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kiln_mapping_loss_mole_fraction_total",
		Help: "Accumulated mole fraction dropped across mechanism switches.",
	}))
	if err != nil {
		return nil, err
	}

	return &SolverMetrics{
		StagesSolved:     stages,
		StageFailures:    failures,
		StageDuration:    duration,
		TrajectoryPoints: points,
		MappingLossTotal: losses,
	}, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter), nil
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Histogram), nil
		}
		return nil, err
	}
	return h, nil
}
