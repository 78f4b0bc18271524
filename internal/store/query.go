// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// QueryOptions filters List results.
type QueryOptions struct {
	// Query is full-text search over applicant name, business type, reason
	// and recommendations.
	Query string

	Status    types.DecisionStatus
	RiskLevel types.RiskLevel

	// MinScore keeps assessments with final_score >= MinScore; zero disables it.
	MinScore float64

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Summary is one row of a List result.
type Summary struct {
	ApplicationID string  `db:"application_id" json:"application_id" yaml:"application_id"`
	ApplicantName string  `db:"applicant_name" json:"applicant_name" yaml:"applicant_name"`
	BusinessType  string  `db:"business_type" json:"business_type" yaml:"business_type"`
	Status        string  `db:"status" json:"status" yaml:"status"`
	RiskLevel     string  `db:"risk_level" json:"risk_level" yaml:"risk_level"`
	FinalScore    float64 `db:"final_score" json:"final_score" yaml:"final_score"`
	LoanAmount    float64 `db:"loan_amount" json:"loan_amount" yaml:"loan_amount"`
	AssessedAt    string  `db:"assessed_at" json:"assessed_at" yaml:"assessed_at"`
}

// Stats aggregates stored assessments.
type Stats struct {
	Total int `db:"total" json:"total" yaml:"total"`

	// MeanFinalScore averages only scored assessments. KYC rejections and
	// failures have no risk level and are left out.
	MeanFinalScore float64        `db:"mean_final_score" json:"mean_final_score" yaml:"mean_final_score"`
	TotalLent      float64        `db:"total_lent" json:"total_lent" yaml:"total_lent"`
	ByStatus       map[string]int `json:"by_status" yaml:"by_status"`
	ByRiskLevel    map[string]int `json:"by_risk_level" yaml:"by_risk_level"`
}

const summaryColumns = `a.application_id, COALESCE(a.applicant_name, '') AS applicant_name,
	COALESCE(a.business_type, '') AS business_type, a.status, COALESCE(a.risk_level, '') AS risk_level,
	COALESCE(a.final_score, 0) AS final_score, COALESCE(a.loan_amount, 0) AS loan_amount, a.assessed_at`

// List returns assessment summaries. Text queries are ranked by FTS5
// relevance on SQLite and matched with ILIKE on PostgreSQL; otherwise
// results are newest first.
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]Summary, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != "" && s.fts
	)

	if useFTS {
		qb.WriteString(`SELECT ` + summaryColumns + `
			FROM assessments_fts
			JOIN assessments a ON a.rowid = assessments_fts.rowid
			WHERE assessments_fts MATCH ?`)
		args = append(args, ftsQuery(opts.Query))
	} else {
		qb.WriteString(`SELECT ` + summaryColumns + ` FROM assessments a WHERE 1=1`)
		if opts.Query != "" {
			op := "LIKE"
			if s.driver == DriverPostgres {
				op = "ILIKE"
			}
			qb.WriteString(` AND (a.applicant_name ` + op + ` ? OR a.business_type ` + op +
				` ? OR a.reason ` + op + ` ? OR a.recommendations ` + op + ` ?)`)
			pattern := "%" + opts.Query + "%"
			args = append(args, pattern, pattern, pattern, pattern)
		}
	}

	if opts.Status != "" {
		qb.WriteString(` AND a.status = ?`)
		args = append(args, string(opts.Status))
	}
	if opts.RiskLevel != "" {
		qb.WriteString(` AND a.risk_level = ?`)
		args = append(args, string(opts.RiskLevel))
	}
	if opts.MinScore != 0 {
		qb.WriteString(` AND a.final_score >= ?`)
		args = append(args, opts.MinScore)
	}

	if useFTS {
		qb.WriteString(` ORDER BY assessments_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY a.assessed_at DESC, a.application_id`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, limit)

	var out []Summary
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(qb.String()), args...); err != nil {
		return nil, fmt.Errorf("querying assessments: %w", err)
	}
	return out, nil
}

// ftsQuery quotes each word so user input cannot form FTS5 syntax.
func ftsQuery(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

// Stats returns counts per status and risk level plus the mean final score.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByStatus: map[string]int{}, ByRiskLevel: map[string]int{}}

	if err := s.db.GetContext(ctx, &st, `SELECT COUNT(*) AS total,
		COALESCE(AVG(CASE WHEN risk_level <> '' THEN final_score END), 0) AS mean_final_score,
		COALESCE(SUM(CASE WHEN status = 'approved' THEN loan_amount ELSE 0 END), 0) AS total_lent
		FROM assessments`); err != nil {
		return st, fmt.Errorf("reading totals: %w", err)
	}

	type bucket struct {
		Key   string `db:"k"`
		Count int    `db:"n"`
	}
	groups := []struct {
		column string
		into   map[string]int
	}{
		{"status", st.ByStatus},
		{"risk_level", st.ByRiskLevel},
	}
	for _, g := range groups {
		var rows []bucket
		q := `SELECT COALESCE(` + g.column + `, '') AS k, COUNT(*) AS n FROM assessments GROUP BY ` + g.column
		if err := s.db.SelectContext(ctx, &rows, q); err != nil {
			return st, fmt.Errorf("counting by %s: %w", g.column, err)
		}
		for _, r := range rows {
			if r.Key != "" {
				g.into[r.Key] = r.Count
			}
		}
	}
	return st, nil
}

// exportLimit bounds the number of records an export writes.
const exportLimit = 100000

// ExportYAML writes matching assessments to <index>/export.yaml and returns the path.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	return s.export(ctx, opts, "export.yaml", func(v any) ([]byte, error) { return yaml.Marshal(v) })
}

// ExportJSON writes matching assessments to <index>/export.json and returns the path.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	return s.export(ctx, opts, "export.json", func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	})
}

func (s *Store) export(ctx context.Context, opts QueryOptions, name string, marshal func(any) ([]byte, error)) (string, error) {
	opts.MaxResults = exportLimit
	summaries, err := s.List(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}

	records := make([]types.Assessment, 0, len(summaries))
	for _, sum := range summaries {
		a, err := s.Get(ctx, sum.ApplicationID)
		if err != nil {
			return "", err
		}
		records = append(records, a)
	}

	data, err := marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling export: %w", err)
	}
	path := filepath.Join(s.indexDir, name)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// AssessedTime parses a Summary timestamp.
func (sm Summary) AssessedTime() time.Time {
	return parseTime(sm.AssessedAt)
}
