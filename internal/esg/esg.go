// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package esg scores a business on environmental, social and governance
// practices declared in its application.
package esg

import (
	"strings"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// RecommendationThreshold is the pillar score below which a recommendation is made.
const RecommendationThreshold = 0.6

// practicesForFullScore recognized practices earn a pillar score of 1.0.
const practicesForFullScore = 3

// Pillar catalogs of recognized practices.
var (
	Environmental = catalog("waste_recycling", "energy_efficient", "renewable_energy",
		"water_conservation", "sustainable_sourcing", "low_emission_transport")
	Social = catalog("local_employment", "community_support", "fair_wages",
		"women_empowerment", "training_programs", "health_benefits")
	Governance = catalog("registered_business", "financial_records", "tax_compliance",
		"independent_audit", "written_policies", "board_oversight")
)

const (
	recEnvironmental = "Improve environmental practices"
	recSocial        = "Enhance social responsibility"
	recGovernance    = "Strengthen governance structures"
)

func catalog(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Calculate scores each pillar and returns the mean with recommendations for
// weak pillars, in environmental, social, governance order.
func Calculate(b types.BusinessData) types.ESGScore {
	s := types.ESGScore{
		Environmental:   PillarScore(b.EnvironmentalPractices, Environmental),
		Social:          PillarScore(b.SocialInitiatives, Social),
		Governance:      PillarScore(b.GovernancePractices, Governance),
		Recommendations: []string{},
	}
	s.Total = (s.Environmental + s.Social + s.Governance) / 3

	if s.Environmental < RecommendationThreshold {
		s.Recommendations = append(s.Recommendations, recEnvironmental)
	}
	if s.Social < RecommendationThreshold {
		s.Recommendations = append(s.Recommendations, recSocial)
	}
	if s.Governance < RecommendationThreshold {
		s.Recommendations = append(s.Recommendations, recGovernance)
	}
	return s
}

// PillarScore counts distinct declared practices found in known and scales
// the count to [0,1].
func PillarScore(declared []string, known map[string]bool) float64 {
	seen := make(map[string]bool)
	for _, d := range declared {
		key := Normalize(d)
		if known[key] {
			seen[key] = true
		}
	}
	score := float64(len(seen)) / practicesForFullScore
	if score > 1 {
		return 1
	}
	return score
}

// Normalize lowercases a practice name and joins its words with underscores,
// so "Waste Recycling" and "waste-recycling" match "waste_recycling".
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}
