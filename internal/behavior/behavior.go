// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package behavior flags irregular banking behavior from statement aggregates.
package behavior

import (
	"fmt"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// minMonthlyTransactions below which an account counts as inactive.
const minMonthlyTransactions = 10

const flagPenalty = 0.25

// Analyze returns behavioral flags and a stability score in [0,1] that
// drops by a quarter per flag.
func Analyze(b types.BankStatements) types.BehaviorAnalysis {
	flags := []string{}
	if b.BouncedChecks > 0 {
		flags = append(flags, fmt.Sprintf("Payment irregularities (%d bounced checks)", b.BouncedChecks))
	}
	if b.MonthlyTransactions < minMonthlyTransactions {
		flags = append(flags, "Low account activity")
	}
	if b.AverageBalance <= 0 {
		flags = append(flags, "No reserve balance")
	}

	stability := 1 - flagPenalty*float64(len(flags))
	if stability < 0 {
		stability = 0
	}
	return types.BehaviorAnalysis{Flags: flags, Stability: stability}
}
