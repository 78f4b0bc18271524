// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus instruments for the assessment
// pipeline and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microfinance_decisions_total",
		Help: "Total number of loan decisions by status",
	}, []string{"status"})

	riskLevelTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microfinance_risk_level_total",
		Help: "Total number of scored applications by risk level",
	}, []string{"risk_level"})

	finalScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "microfinance_final_score",
		Help:    "Distribution of final assessment scores",
		Buckets: []float64{-0.2, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microfinance_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	stageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microfinance_stage_errors_total",
		Help: "Total number of pipeline stage failures",
	}, []string{"stage"})
)

// RecordDecision counts one finished assessment. Scores and risk levels are
// only observed for decisions that reached the scoring stage.
func RecordDecision(d types.Decision) {
	decisionsTotal.WithLabelValues(normalizeStatus(d.Status)).Inc()
	if d.RiskLevel == "" {
		return
	}
	riskLevelTotal.WithLabelValues(normalizeRiskLevel(d.RiskLevel)).Inc()
	finalScore.Observe(d.FinalScore)
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordStageError counts a stage that returned an error.
func RecordStageError(stage string) {
	stageErrors.WithLabelValues(stage).Inc()
}

func normalizeStatus(s types.DecisionStatus) string {
	switch s {
	case types.StatusPending, types.StatusApproved, types.StatusRejected, types.StatusError:
		return string(s)
	default:
		return "unknown"
	}
}

func normalizeRiskLevel(r types.RiskLevel) string {
	switch r {
	case types.RiskLow, types.RiskMedium, types.RiskHigh, types.RiskVeryHigh:
		return string(r)
	default:
		return "unknown"
	}
}
