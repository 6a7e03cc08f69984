// Package scoring computes lead quality scores from submitted attributes.
package scoring

import (
	"strings"
	"unicode/utf8"

	"leadfunnel_backend/internal/leads/domain"
)

// Version tracks the scoring model for debugging and analysis.
// Bump this when changing scoring logic.
const Version = "2025-additive-v1"

// Breakdown keys.
const (
	FactorBudget          = "budget"
	FactorServiceInterest = "service_interest"
	FactorPhone           = "phone"
	FactorCompany         = "company"
	FactorMessage         = "message"
	FactorSourceAIChat    = "source_ai_chat"
)

const (
	serviceInterestPoints = 15
	phonePoints           = 10
	companyPoints         = 10
	longMessagePoints     = 15
	shortMessagePoints    = 5
	aiChatPoints          = 5

	longMessageChars  = 50
	shortMessageChars = 20
)

// budgetPoints maps budget tiers to points. Unknown tiers score nothing.
var budgetPoints = map[string]int{
	"mas-50000":   40,
	"25000-50000": 40,
	"10000-25000": 40,
	"3000-10000":  25,
	"menos-3000":  10,
	"no-seguro":   5,
}

// BudgetTiers lists the accepted budget values.
var BudgetTiers = []string{"mas-50000", "25000-50000", "10000-25000", "3000-10000", "menos-3000", "no-seguro"}

// Input holds the lead attributes that feed the model.
type Input struct {
	Budget          string
	ServiceInterest string
	Phone           string
	Company         string
	Message         string
	Source          string
}

// Result is the scored outcome. Breakdown only contains factors that scored.
type Result struct {
	Score          int
	Classification domain.Classification
	Breakdown      map[string]int
}

// IsBudgetTier reports whether value is a known budget tier.
func IsBudgetTier(value string) bool {
	_, ok := budgetPoints[value]
	return ok
}

// Score is a pure additive model over the lead attributes.
func Score(in Input) Result {
	breakdown := make(map[string]int)
	total := 0

	add := func(factor string, points int) {
		breakdown[factor] = points
		total += points
	}

	if points, ok := budgetPoints[in.Budget]; ok && points > 0 {
		add(FactorBudget, points)
	}
	if in.ServiceInterest != "" {
		add(FactorServiceInterest, serviceInterestPoints)
	}
	if strings.TrimSpace(in.Phone) != "" {
		add(FactorPhone, phonePoints)
	}
	if strings.TrimSpace(in.Company) != "" {
		add(FactorCompany, companyPoints)
	}

	switch length := utf8.RuneCountInString(strings.TrimSpace(in.Message)); {
	case length > longMessageChars:
		add(FactorMessage, longMessagePoints)
	case length > shortMessageChars:
		add(FactorMessage, shortMessagePoints)
	}

	if in.Source == domain.SourceAIChat {
		add(FactorSourceAIChat, aiChatPoints)
	}

	return Result{
		Score:          total,
		Classification: domain.Classify(total),
		Breakdown:      breakdown,
	}
}
