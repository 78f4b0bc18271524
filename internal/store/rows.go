// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// rowColumns is the select list matching assessmentRow.
const rowColumns = `application_id, applicant_name, business_type, assessed_at, duration_ms,
	kyc, credit, esg, social, behavior, decision`

// assessmentRow maps the assessments table. Stage results are JSON text;
// NULL means the stage did not run.
type assessmentRow struct {
	ApplicationID   string         `db:"application_id"`
	ApplicantName   sql.NullString `db:"applicant_name"`
	BusinessType    sql.NullString `db:"business_type"`
	Status          string         `db:"status"`
	RiskLevel       string         `db:"risk_level"`
	FinalScore      float64        `db:"final_score"`
	LoanAmount      float64        `db:"loan_amount"`
	Reason          string         `db:"reason"`
	Recommendations string         `db:"recommendations"`
	AssessedAt      string         `db:"assessed_at"`
	DurationMS      int64          `db:"duration_ms"`
	KYC             sql.NullString `db:"kyc"`
	Credit          sql.NullString `db:"credit"`
	ESG             sql.NullString `db:"esg"`
	Social          sql.NullString `db:"social"`
	Behavior        sql.NullString `db:"behavior"`
	Decision        string         `db:"decision"`
}

// assessmentColumns flattens a into row form for inserts.
func assessmentColumns(a types.Assessment) (assessmentRow, error) {
	row := assessmentRow{
		ApplicationID:   a.ApplicationID,
		ApplicantName:   sql.NullString{String: a.ApplicantName, Valid: true},
		BusinessType:    sql.NullString{String: a.BusinessType, Valid: true},
		Status:          string(a.Decision.Status),
		RiskLevel:       string(a.Decision.RiskLevel),
		FinalScore:      a.Decision.FinalScore,
		LoanAmount:      a.Decision.LoanAmount,
		Reason:          decisionReason(a.Decision),
		Recommendations: strings.Join(a.Decision.Recommendations, "; "),
		AssessedAt:      formatTime(a.AssessedAt),
		DurationMS:      a.DurationMS,
	}

	var err error
	if row.KYC, err = nullJSON(a.KYC); err != nil {
		return row, err
	}
	if row.Credit, err = nullJSON(a.Credit); err != nil {
		return row, err
	}
	if row.ESG, err = nullJSON(a.ESG); err != nil {
		return row, err
	}
	if row.Social, err = nullJSON(a.Social); err != nil {
		return row, err
	}
	if row.Behavior, err = nullJSON(a.Behavior); err != nil {
		return row, err
	}
	d, err := json.Marshal(a.Decision)
	if err != nil {
		return row, fmt.Errorf("marshaling decision: %w", err)
	}
	row.Decision = string(d)
	return row, nil
}

// decisionReason is the searchable text explaining the outcome.
func decisionReason(d types.Decision) string {
	parts := []string{d.Reason}
	parts = append(parts, d.Details...)
	if d.Error != "" {
		parts = append(parts, d.Error)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// nullJSON marshals a stage result, mapping nil to NULL.
func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling %T: %w", v, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeJSON[T any](ns sql.NullString) (*T, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return &v, nil
}

// assessment rebuilds the record from its stored columns.
func (r assessmentRow) assessment() (types.Assessment, error) {
	a := types.Assessment{
		ApplicationID: r.ApplicationID,
		ApplicantName: r.ApplicantName.String,
		BusinessType:  r.BusinessType.String,
		AssessedAt:    parseTime(r.AssessedAt),
		DurationMS:    r.DurationMS,
	}
	var err error
	if a.KYC, err = decodeJSON[types.KYCResult](r.KYC); err != nil {
		return a, err
	}
	if a.Credit, err = decodeJSON[types.CreditScore](r.Credit); err != nil {
		return a, err
	}
	if a.ESG, err = decodeJSON[types.ESGScore](r.ESG); err != nil {
		return a, err
	}
	if a.Social, err = decodeJSON[types.SocialAnalysis](r.Social); err != nil {
		return a, err
	}
	if a.Behavior, err = decodeJSON[types.BehaviorAnalysis](r.Behavior); err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(r.Decision), &a.Decision); err != nil {
		return a, fmt.Errorf("decoding decision: %w", err)
	}
	return a, nil
}
