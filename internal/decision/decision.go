// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decision combines stage scores into a final score and picks loan
// terms from a tiered lending policy.
package decision

import (
	"errors"
	"fmt"

	"github.com/pdiddy/microfinance-engine/internal/credit"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// Rejection reasons.
const (
	ReasonLowScore  = "Low credit score"
	ReasonKYCFailed = "KYC verification failed"
	errorPrefix     = "Error processing application: "
)

// ErrInvalidPolicy wraps every policy validation failure.
var ErrInvalidPolicy = errors.New("invalid policy")

// DefaultWeights weigh credit, ESG and sentiment into the final score.
var DefaultWeights = types.Weights{Credit: 0.5, ESG: 0.3, Sentiment: 0.2}

// DefaultPolicy returns the standard three-tier lending policy.
func DefaultPolicy() types.PolicyConfig {
	return types.PolicyConfig{
		Weights: DefaultWeights,
		Tiers: []types.Tier{
			{MinScore: 0.7, LoanAmount: 500000, InterestRate: 0.12, TermMonths: 24},
			{MinScore: 0.5, LoanAmount: 300000, InterestRate: 0.15, TermMonths: 18,
				Requirements: []string{"Monthly business review"}},
			{MinScore: 0.3, LoanAmount: 100000, InterestRate: 0.18, TermMonths: 12,
				Requirements: []string{"Collateral", "Monthly business review"}},
		},
		RevenueTarget: credit.DefaultRevenueTarget,
	}
}

// Validate reports policy errors: tier thresholds must be strictly
// descending within (0,1], and amounts, rates and terms must be positive.
func Validate(p types.PolicyConfig) error {
	if len(p.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	w := p.Weights
	if w.Credit < 0 || w.ESG < 0 || w.Sentiment < 0 {
		return fmt.Errorf("%w: weights must be >= 0", ErrInvalidPolicy)
	}
	if p.RevenueTarget < 0 {
		return fmt.Errorf("%w: revenue_target must be >= 0", ErrInvalidPolicy)
	}
	prev := 1.0 + 1e-12
	for i, t := range p.Tiers {
		switch {
		case t.MinScore <= 0 || t.MinScore > 1:
			return fmt.Errorf("%w: tier %d min_score %v outside (0,1]", ErrInvalidPolicy, i, t.MinScore)
		case t.MinScore >= prev:
			return fmt.Errorf("%w: tier %d min_score %v not below previous tier", ErrInvalidPolicy, i, t.MinScore)
		case t.LoanAmount <= 0:
			return fmt.Errorf("%w: tier %d loan_amount must be > 0", ErrInvalidPolicy, i)
		case t.InterestRate <= 0:
			return fmt.Errorf("%w: tier %d interest_rate must be > 0", ErrInvalidPolicy, i)
		case t.TermMonths <= 0:
			return fmt.Errorf("%w: tier %d term_months must be > 0", ErrInvalidPolicy, i)
		}
		prev = t.MinScore
	}
	return nil
}

// FinalScore weighs the stage scores. Zero weights select DefaultWeights.
// Negative sentiment lowers the result, which may fall below zero.
func FinalScore(creditScore, esgTotal, sentiment float64, w types.Weights) float64 {
	if w == (types.Weights{}) {
		w = DefaultWeights
	}
	return creditScore*w.Credit + esgTotal*w.ESG + sentiment*w.Sentiment
}

// RiskLevelFor buckets a final score.
func RiskLevelFor(score float64) types.RiskLevel {
	switch {
	case score >= 0.7:
		return types.RiskLow
	case score >= 0.5:
		return types.RiskMedium
	case score >= 0.3:
		return types.RiskHigh
	default:
		return types.RiskVeryHigh
	}
}

// Make decides the loan outcome. The first tier whose MinScore the final
// score reaches sets the terms; below every tier the application is rejected.
func Make(cs types.CreditScore, es types.ESGScore, sa types.SocialAnalysis, ba types.BehaviorAnalysis, p types.PolicyConfig) types.Decision {
	final := FinalScore(cs.Score, es.Total, sa.SentimentScore, p.Weights)

	d := types.Decision{
		Status:          types.StatusRejected,
		Requirements:    []string{},
		Recommendations: append([]string{}, es.Recommendations...),
		FinalScore:      final,
		RiskLevel:       RiskLevelFor(final),
		RiskFactors:     append(append([]string{}, sa.RiskFactors...), ba.Flags...),
		Opportunities:   append([]string{}, sa.Opportunities...),
		Reason:          ReasonLowScore,
	}

	for _, t := range p.Tiers {
		if final >= t.MinScore {
			d.Status = types.StatusApproved
			d.Reason = ""
			d.LoanAmount = t.LoanAmount
			d.InterestRate = t.InterestRate
			d.TermMonths = t.TermMonths
			d.Requirements = append(d.Requirements, t.Requirements...)
			break
		}
	}
	return d
}

// KYCRejection is the decision for an application whose documents failed
// verification. It carries no score or risk level.
func KYCRejection(kyc types.KYCResult) types.Decision {
	return types.Decision{
		Status:          types.StatusRejected,
		Reason:          ReasonKYCFailed,
		Details:         append([]string{}, kyc.Errors...),
		Requirements:    []string{},
		Recommendations: []string{},
	}
}

// Failure is the decision for an application the pipeline could not finish.
func Failure(err error) types.Decision {
	return types.Decision{
		Status:          types.StatusError,
		Error:           errorPrefix + err.Error(),
		Requirements:    []string{},
		Recommendations: []string{},
	}
}
