// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/microfinance-engine/internal/decision"
	"github.com/pdiddy/microfinance-engine/internal/httputil"
	"github.com/pdiddy/microfinance-engine/internal/social"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeDocs creates the three KYC documents in a temp dir.
func writeDocs(t *testing.T) map[types.DocumentKind]types.Document {
	t.Helper()
	dir := t.TempDir()
	docs := make(map[types.DocumentKind]types.Document)
	for _, kind := range types.RequiredDocuments {
		p := filepath.Join(dir, string(kind)+".jpg")
		require.NoError(t, os.WriteFile(p, []byte("scanned "+string(kind)), 0o644))
		docs[kind] = types.Document{Path: p}
	}
	return docs
}

// strongApp scores 1.0 on credit and ESG.
func strongApp(t *testing.T, id string) *types.Application {
	return &types.Application{
		ID:           id,
		KYCDocuments: writeDocs(t),
		PersonalData: types.PersonalData{Name: "Jane Doe", Age: 35, Income: 50000, Expenses: 30000},
		BusinessData: types.BusinessData{
			Type: "retail", Age: 5, Revenue: 250000, Employees: 5,
			EnvironmentalPractices: []string{"waste_recycling", "energy_efficient", "renewable_energy"},
			SocialInitiatives:      []string{"local_employment", "fair_wages", "training_programs"},
			GovernancePractices:    []string{"registered_business", "financial_records", "tax_compliance"},
		},
		BankStatements: types.BankStatements{AverageBalance: 60000, MonthlyTransactions: 45},
		SocialData:     types.SocialData{Posts: []string{"Great customer service, business is growing"}},
	}
}

// weakApp scores 0.16 on credit and nothing elsewhere.
func weakApp(t *testing.T, id string) *types.Application {
	return &types.Application{
		ID:             id,
		KYCDocuments:   writeDocs(t),
		PersonalData:   types.PersonalData{Name: "Ali Hassan", Age: 35, Income: 1000, Expenses: 1000},
		BusinessData:   types.BusinessData{Type: "tailoring"},
		BankStatements: types.BankStatements{BouncedChecks: 4},
	}
}

type recordingStore struct {
	mu    sync.Mutex
	saved map[string]types.Assessment
	err   error
}

func (s *recordingStore) Save(_ context.Context, app *types.Application, a types.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]types.Assessment)
	}
	s.saved[app.ID] = a
	return nil
}

type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }
func (failingBackend) Polarity(context.Context, string) (float64, error) {
	return 0, errors.New("backend unavailable")
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func TestProcessApproves(t *testing.T) {
	store := &recordingStore{}
	e := newEngine(t, Options{Store: store})

	a, err := e.Process(context.Background(), strongApp(t, "app-1"))
	require.NoError(t, err)

	d := a.Decision
	assert.Equal(t, types.StatusApproved, d.Status)
	assert.Equal(t, 500000.0, d.LoanAmount)
	assert.Equal(t, 0.12, d.InterestRate)
	assert.Equal(t, 24, d.TermMonths)
	assert.Equal(t, types.RiskLow, d.RiskLevel)
	assert.Empty(t, d.Recommendations)

	require.NotNil(t, a.KYC)
	assert.True(t, a.KYC.Verified)
	require.NotNil(t, a.Credit)
	assert.InDelta(t, 1.0, a.Credit.Score, 1e-9)
	require.NotNil(t, a.ESG)
	assert.InDelta(t, 1.0, a.ESG.Total, 1e-9)
	require.NotNil(t, a.Social)
	assert.Greater(t, a.Social.SentimentScore, 0.0)
	require.NotNil(t, a.Behavior)
	assert.Empty(t, a.Behavior.Flags)

	want := decision.FinalScore(a.Credit.Score, a.ESG.Total, a.Social.SentimentScore, decision.DefaultWeights)
	assert.InDelta(t, want, d.FinalScore, 1e-9)

	assert.Equal(t, "Jane Doe", a.ApplicantName)
	assert.Equal(t, "retail", a.BusinessType)
	assert.False(t, a.AssessedAt.IsZero())
	assert.Contains(t, store.saved, "app-1")
}

func TestProcessRejectsLowScore(t *testing.T) {
	e := newEngine(t, Options{})

	a, err := e.Process(context.Background(), weakApp(t, "app-2"))
	require.NoError(t, err)

	d := a.Decision
	assert.Equal(t, types.StatusRejected, d.Status)
	assert.Equal(t, decision.ReasonLowScore, d.Reason)
	assert.InDelta(t, 0.08, d.FinalScore, 1e-9)
	assert.Equal(t, types.RiskVeryHigh, d.RiskLevel)
	assert.Contains(t, d.RiskFactors, "Payment irregularities (4 bounced checks)")
	assert.Contains(t, d.RiskFactors, "Low account activity")
	assert.Len(t, d.Recommendations, 3)
	assert.Zero(t, a.Social.PostCount)
}

func TestProcessKYCFailureSkipsScoring(t *testing.T) {
	e := newEngine(t, Options{})
	app := strongApp(t, "app-3")
	delete(app.KYCDocuments, types.DocIncomeProof)

	a, err := e.Process(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, types.StatusRejected, a.Decision.Status)
	assert.Equal(t, decision.ReasonKYCFailed, a.Decision.Reason)
	assert.Equal(t, []string{"Missing income_proof"}, a.Decision.Details)
	assert.Empty(t, a.Decision.RiskLevel)
	require.NotNil(t, a.KYC)
	assert.False(t, a.KYC.Verified)
	assert.Nil(t, a.Credit)
	assert.Nil(t, a.ESG)
	assert.Nil(t, a.Social)
	assert.Nil(t, a.Behavior)
}

func TestProcessBackendFailureIsError(t *testing.T) {
	e := newEngine(t, Options{Analyzer: social.NewAnalyzer(failingBackend{}, nil)})

	a, err := e.Process(context.Background(), strongApp(t, "app-4"))
	require.NoError(t, err)

	assert.Equal(t, types.StatusError, a.Decision.Status)
	assert.Contains(t, a.Decision.Error, "Error processing application: ")
	assert.Contains(t, a.Decision.Error, "backend unavailable")
	require.NotNil(t, a.Social)
	assert.NotEmpty(t, a.Social.Error)
	assert.NotNil(t, a.Credit)
	assert.Nil(t, a.Behavior)
}

func TestProcessCancelledContext(t *testing.T) {
	e := newEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := e.Process(ctx, strongApp(t, "app-5"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, a.Decision.Status)
	assert.Nil(t, a.KYC)
}

func TestProcessReportsSaveError(t *testing.T) {
	e := newEngine(t, Options{Store: &recordingStore{err: errors.New("disk full")}})

	a, err := e.Process(context.Background(), strongApp(t, "app-6"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving assessment app-6")
	assert.Equal(t, types.StatusApproved, a.Decision.Status)
}

func feedServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"posts":[{"text":"Excellent service, loyal customers"},{"text":"New product launch"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessFetchesFeedForHandle(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantPosts int
		wantError bool
	}{
		{"feed ok", http.StatusOK, 2, false},
		{"feed down", http.StatusNotFound, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := feedServer(t, tt.status)
			feeds := &social.FeedFetcher{
				Guard:     httputil.NewGuard(srv.Client(), httputil.GuardConfig{}),
				Providers: []types.FeedProvider{{Name: "test", URL: srv.URL + "/feed/{handle}"}},
			}
			e := newEngine(t, Options{Feeds: feeds})

			app := strongApp(t, "app-7")
			app.SocialData = types.SocialData{Handle: "@janes_shop"}

			a, err := e.Process(context.Background(), app)
			require.NoError(t, err)
			require.NotNil(t, a.Social)
			assert.Equal(t, tt.wantPosts, a.Social.PostCount)
			assert.Equal(t, tt.wantError, a.Social.Error != "")
			assert.Equal(t, types.StatusApproved, a.Decision.Status)
		})
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New(Options{Policy: types.PolicyConfig{
		Tiers: []types.Tier{{MinScore: 1.5, LoanAmount: 1, InterestRate: 0.1, TermMonths: 1}},
	}})
	assert.ErrorIs(t, err, decision.ErrInvalidPolicy)
}

func TestNewDefaultsPolicy(t *testing.T) {
	e := newEngine(t, Options{Policy: types.PolicyConfig{RevenueTarget: 100000}})
	p := e.Policy()
	assert.Len(t, p.Tiers, 3)
	assert.Equal(t, 100000.0, p.RevenueTarget)
}

func TestProcessBatchKeepsInputOrder(t *testing.T) {
	store := &recordingStore{}
	e := newEngine(t, Options{Store: store})

	var apps []*types.Application
	for i := range 6 {
		id := fmt.Sprintf("app-%d", i)
		if i%2 == 0 {
			apps = append(apps, strongApp(t, id))
		} else {
			apps = append(apps, weakApp(t, id))
		}
	}

	var out bytes.Buffer
	res := e.ProcessBatch(context.Background(), apps, 2, &out)

	require.Len(t, res.Assessments, 6)
	for i, a := range res.Assessments {
		assert.Equal(t, apps[i].ID, a.ApplicationID)
	}
	assert.Equal(t, 3, res.Approved)
	assert.Equal(t, 3, res.Rejected)
	assert.Equal(t, 6, res.Total())
	assert.False(t, res.HasFailures())
	assert.Len(t, store.saved, 6)

	s := out.String()
	assert.Contains(t, s, "approved: app-0 (score")
	assert.Contains(t, s, "rejected: app-1 (Low credit score)")
	assert.Contains(t, s, "Batch summary: 3 approved, 3 rejected, 0 failed (total: 6)")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("app-0")), bytes.Index(out.Bytes(), []byte("app-1")))
}

func TestProcessBatchCountsFailures(t *testing.T) {
	e := newEngine(t, Options{
		Analyzer: social.NewAnalyzer(failingBackend{}, nil),
		Store:    &recordingStore{err: errors.New("read-only")},
	})

	var out bytes.Buffer
	res := e.ProcessBatch(context.Background(), []*types.Application{strongApp(t, "app-1")}, 0, &out)

	assert.Equal(t, 1, res.Errored)
	assert.Equal(t, 1, res.SaveFailures)
	assert.True(t, res.HasFailures())
	assert.Contains(t, out.String(), "failed:   app-1 (Error processing application")
}
