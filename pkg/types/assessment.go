// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DocumentCheck records the outcome of verifying one KYC document.
type DocumentCheck struct {
	Kind      DocumentKind `json:"kind" yaml:"kind"`
	Source    string       `json:"source" yaml:"source"`
	Format    string       `json:"format" yaml:"format"`
	SizeBytes int64        `json:"size_bytes" yaml:"size_bytes"`

	// TextChars is the number of characters OCR extracted from the document.
	TextChars int `json:"text_chars" yaml:"text_chars"`

	// OCR is "done", "skipped" (no extractor configured), or "failed".
	OCR string `json:"ocr" yaml:"ocr"`

	Passed bool   `json:"passed" yaml:"passed"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// KYCResult is the outcome of KYC verification. Verified is true only when
// Errors is empty.
type KYCResult struct {
	Verified bool                           `json:"verified" yaml:"verified"`
	Errors   []string                       `json:"errors" yaml:"errors"`
	Details  map[DocumentKind]DocumentCheck `json:"details" yaml:"details"`
}

// CreditComponents breaks the credit score into its weighted inputs.
type CreditComponents struct {
	TraditionalScore float64 `json:"traditional_score" yaml:"traditional_score"`
	BankScore        float64 `json:"bank_score" yaml:"bank_score"`
	BusinessScore    float64 `json:"business_score" yaml:"business_score"`
}

// CreditScore is a value in [0,1] combining traditional, bank, and business factors.
type CreditScore struct {
	Score      float64          `json:"score" yaml:"score"`
	Components CreditComponents `json:"components" yaml:"components"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// ESGScore holds the three pillar scores in [0,1], their mean, and
// recommendations for pillars below the recommendation threshold.
type ESGScore struct {
	Environmental   float64  `json:"environmental" yaml:"environmental"`
	Social          float64  `json:"social" yaml:"social"`
	Governance      float64  `json:"governance" yaml:"governance"`
	Total           float64  `json:"total" yaml:"total"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	Error           string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// SocialAnalysis summarizes social media posts. SentimentScore is in [-1,1];
// BusinessActivity is the share of posts mentioning business keywords.
type SocialAnalysis struct {
	SentimentScore   float64  `json:"sentiment_score" yaml:"sentiment_score"`
	BusinessActivity float64  `json:"business_activity" yaml:"business_activity"`
	PostCount        int      `json:"post_count" yaml:"post_count"`
	RiskFactors      []string `json:"risk_factors" yaml:"risk_factors"`
	Opportunities    []string `json:"opportunities" yaml:"opportunities"`
	Backend          string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	Error            string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// BehaviorAnalysis flags irregular banking behavior.
type BehaviorAnalysis struct {
	Flags     []string `json:"flags" yaml:"flags"`
	Stability float64  `json:"stability" yaml:"stability"`
}

// DecisionStatus is the lifecycle state of a loan decision.
type DecisionStatus string

const (
	StatusPending  DecisionStatus = "pending"
	StatusApproved DecisionStatus = "approved"
	StatusRejected DecisionStatus = "rejected"
	StatusError    DecisionStatus = "error"
)

// RiskLevel buckets the final score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// Decision is the recommended loan outcome and terms.
type Decision struct {
	Status          DecisionStatus `json:"status" yaml:"status"`
	LoanAmount      float64        `json:"loan_amount" yaml:"loan_amount"`
	InterestRate    float64        `json:"interest_rate" yaml:"interest_rate"`
	TermMonths      int            `json:"term_months" yaml:"term_months"`
	Requirements    []string       `json:"requirements" yaml:"requirements"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`

	// Reason explains a rejection.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Details carries supporting messages, e.g. KYC errors on a KYC rejection.
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`

	FinalScore    float64   `json:"final_score" yaml:"final_score"`
	RiskLevel     RiskLevel `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
	RiskFactors   []string  `json:"risk_factors,omitempty" yaml:"risk_factors,omitempty"`
	Opportunities []string  `json:"opportunities,omitempty" yaml:"opportunities,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Assessment is the full, persisted record of one application run through
// the pipeline. Stage results are nil when the stage did not run.
type Assessment struct {
	ApplicationID string    `json:"application_id" yaml:"application_id"`
	ApplicantName string    `json:"applicant_name" yaml:"applicant_name"`
	BusinessType  string    `json:"business_type" yaml:"business_type"`
	AssessedAt    time.Time `json:"assessed_at" yaml:"assessed_at"`
	DurationMS    int64     `json:"duration_ms" yaml:"duration_ms"`

	KYC      *KYCResult        `json:"kyc,omitempty" yaml:"kyc,omitempty"`
	Credit   *CreditScore      `json:"credit,omitempty" yaml:"credit,omitempty"`
	ESG      *ESGScore         `json:"esg,omitempty" yaml:"esg,omitempty"`
	Social   *SocialAnalysis   `json:"social,omitempty" yaml:"social,omitempty"`
	Behavior *BehaviorAnalysis `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Decision Decision          `json:"decision" yaml:"decision"`
}
