// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/microfinance-engine/internal/decision"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

func scoreSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, finalScore.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestRecordDecision(t *testing.T) {
	approved := testutil.ToFloat64(decisionsTotal.WithLabelValues("approved"))
	medium := testutil.ToFloat64(riskLevelTotal.WithLabelValues("medium"))

	samples := scoreSamples(t)

	RecordDecision(types.Decision{Status: types.StatusApproved, RiskLevel: types.RiskMedium, FinalScore: 0.55})

	assert.Equal(t, approved+1, testutil.ToFloat64(decisionsTotal.WithLabelValues("approved")))
	assert.Equal(t, medium+1, testutil.ToFloat64(riskLevelTotal.WithLabelValues("medium")))
	assert.Equal(t, samples+1, scoreSamples(t))
}

func TestRecordDecisionSkipsScoreForKYCRejection(t *testing.T) {
	rejected := testutil.ToFloat64(decisionsTotal.WithLabelValues("rejected"))
	samples := scoreSamples(t)

	RecordDecision(decision.KYCRejection(types.KYCResult{Errors: []string{"Missing id_proof"}}))

	assert.Equal(t, rejected+1, testutil.ToFloat64(decisionsTotal.WithLabelValues("rejected")))
	assert.Equal(t, samples, scoreSamples(t))
}

func TestRecordDecisionWithoutRiskLevel(t *testing.T) {
	rejected := testutil.ToFloat64(decisionsTotal.WithLabelValues("rejected"))
	risks := testutil.CollectAndCount(riskLevelTotal)

	RecordDecision(types.Decision{Status: types.StatusRejected, Reason: "KYC verification failed"})

	assert.Equal(t, rejected+1, testutil.ToFloat64(decisionsTotal.WithLabelValues("rejected")))
	assert.Equal(t, risks, testutil.CollectAndCount(riskLevelTotal))
}

func TestNormalizeLabels(t *testing.T) {
	assert.Equal(t, "unknown", normalizeStatus("bogus"))
	assert.Equal(t, "error", normalizeStatus(types.StatusError))
	assert.Equal(t, "unknown", normalizeRiskLevel("extreme"))
	assert.Equal(t, "very_high", normalizeRiskLevel(types.RiskVeryHigh))
}

func TestStageInstruments(t *testing.T) {
	ObserveStage("credit", 5*time.Millisecond)
	before := testutil.ToFloat64(stageErrors.WithLabelValues("social"))
	RecordStageError("social")
	assert.Equal(t, before+1, testutil.ToFloat64(stageErrors.WithLabelValues("social")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(stageDuration), 1)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/assessments/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/assessments/app-1", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, testutil.CollectAndCount(httpRequestDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(httpRequestsInFlight))
}
