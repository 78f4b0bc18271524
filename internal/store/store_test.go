// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), types.StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, name, business string, status types.DecisionStatus, score float64, at time.Time) (*types.Application, types.Assessment) {
	app := &types.Application{
		ID:           id,
		SubmittedAt:  at.Add(-time.Hour),
		PersonalData: types.PersonalData{Name: name, Age: 35, Income: 50000, Expenses: 30000},
		BusinessData: types.BusinessData{Type: business, Revenue: 100000},
	}
	d := types.Decision{
		Status:          status,
		FinalScore:      score,
		Requirements:    []string{},
		Recommendations: []string{"Strengthen governance structures"},
	}
	switch status {
	case types.StatusApproved:
		d.LoanAmount = 300000
		d.RiskLevel = types.RiskMedium
	case types.StatusRejected:
		d.Reason = "KYC verification failed"
		d.Details = []string{"Missing id_proof"}
	}
	a := types.Assessment{
		ApplicationID: id,
		ApplicantName: name,
		BusinessType:  business,
		AssessedAt:    at,
		DurationMS:    12,
		Credit:        &types.CreditScore{Score: 0.7, Components: types.CreditComponents{BankScore: 0.68}},
		ESG:           &types.ESGScore{Total: 0.5, Recommendations: []string{"Strengthen governance structures"}},
		Decision:      d,
	}
	if status == types.StatusApproved {
		a.KYC = &types.KYCResult{Verified: true, Errors: []string{}}
		a.Behavior = &types.BehaviorAnalysis{Flags: []string{}, Stability: 1}
	}
	return app, a
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	records := []struct {
		id, name, business string
		status             types.DecisionStatus
		score              float64
		at                 time.Time
	}{
		{"app-1", "Jane Doe", "retail", types.StatusApproved, 0.62, t0},
		{"app-2", "Ali Hassan", "tailoring", types.StatusRejected, 0, t0.Add(time.Minute)},
		{"app-3", "Mary Wanjiru", "bakery", types.StatusApproved, 0.74, t0.Add(2 * time.Minute)},
	}
	for _, r := range records {
		app, a := testRecord(r.id, r.name, r.business, r.status, r.score, r.at)
		require.NoError(t, s.Save(ctx, app, a))
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), types.StoreConfig{DataDir: dir})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, IndexDir, "microfinance.db"))
	assert.NoError(t, err)
	assert.Equal(t, DriverSQLite, s.Driver())

	// Reopening runs the idempotent schema again.
	s2, err := Open(context.Background(), types.StoreConfig{DataDir: dir})
	require.NoError(t, err)
	s2.Close()
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), types.StoreConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported store driver")

	_, err = Open(context.Background(), types.StoreConfig{Driver: DriverPostgres})
	assert.ErrorContains(t, err, "needs a DSN")
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	app, a := testRecord("app-1", "Jane Doe", "retail", types.StatusApproved, 0.62, t0)
	require.NoError(t, s.Save(ctx, app, a))

	got, err := s.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, a.ApplicantName, got.ApplicantName)
	assert.True(t, a.AssessedAt.Equal(got.AssessedAt))
	assert.Equal(t, a.Decision, got.Decision)
	require.NotNil(t, got.Credit)
	assert.Equal(t, 0.68, got.Credit.Components.BankScore)
	assert.Nil(t, got.Social, "stages that did not run stay nil")
	require.NotNil(t, got.KYC)
	assert.True(t, got.KYC.Verified)

	storedApp, err := s.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", storedApp.PersonalData.Name)
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	app, a := testRecord("app-1", "Jane Doe", "retail", types.StatusRejected, 0, t0)
	require.NoError(t, s.Save(ctx, app, a))

	app, a = testRecord("app-1", "Jane Doe", "retail", types.StatusApproved, 0.62, t0.Add(time.Hour))
	require.NoError(t, s.Save(ctx, app, a))

	got, err := s.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Decision.Status)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)

	// The text index follows the update.
	res, err := s.List(ctx, QueryOptions{Query: "KYC"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetApplication(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"newest first", QueryOptions{}, []string{"app-3", "app-2", "app-1"}},
		{"limit", QueryOptions{MaxResults: 1}, []string{"app-3"}},
		{"by status", QueryOptions{Status: types.StatusApproved}, []string{"app-3", "app-1"}},
		{"by risk", QueryOptions{RiskLevel: types.RiskMedium}, []string{"app-3", "app-1"}},
		{"min score", QueryOptions{MinScore: 0.7}, []string{"app-3"}},
		{"text name", QueryOptions{Query: "wanjiru"}, []string{"app-3"}},
		{"text business", QueryOptions{Query: "tailoring"}, []string{"app-2"}},
		{"text reason", QueryOptions{Query: "KYC"}, []string{"app-2"}},
		{"text with filter", QueryOptions{Query: "governance", Status: types.StatusRejected}, []string{"app-2"}},
		{"text no match", QueryOptions{Query: "fishing"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			var ids []string
			for _, r := range res {
				ids = append(ids, r.ApplicationID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListSummaryFields(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	res, err := s.List(context.Background(), QueryOptions{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Mary Wanjiru", res[0].ApplicantName)
	assert.Equal(t, "bakery", res[0].BusinessType)
	assert.Equal(t, "approved", res[0].Status)
	assert.Equal(t, 300000.0, res[0].LoanAmount)
	assert.True(t, res[0].AssessedTime().Equal(t0.Add(2*time.Minute)))
}

func TestFTSQueryQuotesInput(t *testing.T) {
	assert.Equal(t, `"jane" "doe"`, ftsQuery("jane doe"))
	assert.Equal(t, `"a""b"`, ftsQuery(`a"b`))
	assert.Equal(t, `"NOT" "x*"`, ftsQuery("NOT x*"))

	s := openTestStore(t)
	seed(t, s)
	_, err := s.List(context.Background(), QueryOptions{Query: `jane" OR (doe`})
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)

	seed(t, s)
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, map[string]int{"approved": 2, "rejected": 1}, st.ByStatus)
	assert.Equal(t, map[string]int{"medium": 2}, st.ByRiskLevel)
	// The KYC rejection has no score and does not pull the mean down.
	assert.InDelta(t, (0.62+0.74)/2, st.MeanFinalScore, 1e-9)
	assert.Equal(t, 600000.0, st.TotalLent)
}

func TestExport(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	path, err := s.ExportJSON(ctx, QueryOptions{Status: types.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, "export.json", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fromJSON []types.Assessment
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	require.Len(t, fromJSON, 2)
	assert.Equal(t, "app-3", fromJSON[0].ApplicationID)

	path, err = s.ExportYAML(ctx, QueryOptions{})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var fromYAML []types.Assessment
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Len(t, fromYAML, 3)
}
