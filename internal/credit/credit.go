// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credit scores an applicant's creditworthiness from personal
// finances, bank-statement aggregates and business fundamentals.
package credit

import (
	"math"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// Component weights of the overall credit score.
const (
	weightTraditional = 0.4
	weightBank        = 0.3
	weightBusiness    = 0.3
)

// DefaultRevenueTarget is the annual revenue that earns a full revenue score.
const DefaultRevenueTarget = 250000

const (
	// targetSavingsRate is the share of income saved that scores 1.0.
	targetSavingsRate = 0.4
	// targetTransactions per month that score full account activity.
	targetTransactions = 30
	// bouncedCheckPenalty is subtracted per bounced check.
	bouncedCheckPenalty = 0.25
	// matureBusinessYears scores full business age.
	matureBusinessYears = 5
	// targetEmployees scores full team size.
	targetEmployees = 5
)

// Calculate returns the credit score and its components, each in [0,1].
// revenueTarget <= 0 selects DefaultRevenueTarget.
func Calculate(app *types.Application, revenueTarget float64) types.CreditScore {
	if revenueTarget <= 0 {
		revenueTarget = DefaultRevenueTarget
	}
	c := types.CreditComponents{
		TraditionalScore: Traditional(app.PersonalData),
		BankScore:        Bank(app.BankStatements, app.PersonalData.Income),
		BusinessScore:    Business(app.BusinessData, revenueTarget),
	}
	score := weightTraditional*c.TraditionalScore +
		weightBank*c.BankScore +
		weightBusiness*c.BusinessScore

	return types.CreditScore{Score: clamp01(score), Components: c}
}

// Traditional scores savings capacity and age.
func Traditional(p types.PersonalData) float64 {
	var savings float64
	if p.Income > 0 {
		savings = clamp01(((p.Income - p.Expenses) / p.Income) / targetSavingsRate)
	}
	return clamp01(0.6*savings + 0.4*ageScore(p.Age))
}

func ageScore(age int) float64 {
	switch {
	case age < 18:
		return 0
	case age <= 24:
		return 0.7
	case age <= 55:
		return 1.0
	case age <= 65:
		return 0.7
	default:
		return 0.4
	}
}

// Bank scores reserves relative to income, account activity and bounced checks.
func Bank(b types.BankStatements, income float64) float64 {
	var balance float64
	if income > 0 {
		balance = clamp01(b.AverageBalance / income)
	}
	activity := clamp01(float64(b.MonthlyTransactions) / targetTransactions)
	reliability := math.Max(1-bouncedCheckPenalty*float64(b.BouncedChecks), 0)
	return clamp01(0.4*balance + 0.3*activity + 0.3*reliability)
}

// Business scores business age, revenue against revenueTarget, and headcount.
func Business(b types.BusinessData, revenueTarget float64) float64 {
	age := clamp01(b.Age / matureBusinessYears)
	revenue := clamp01(b.Revenue / revenueTarget)
	staff := clamp01(float64(b.Employees) / targetEmployees)
	return clamp01(0.4*age + 0.4*revenue + 0.2*staff)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
