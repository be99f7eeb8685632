package memory

import (
	"strings"
	"time"
)

// Relevance scoring constants. Fixed for behavioral reproducibility.
const (
	phraseMatchScore  = 1.0
	tokenOverlapScore = 0.8

	preferenceMultiplier = 1.2
	factMultiplier       = 1.1
	contextMultiplier    = 0.9

	recencyWindow     = 24 * time.Hour
	recencyMultiplier = 1.1

	usageBonusPerUse = 0.05
	usageBonusCap    = 0.2

	maxScore = 2.0

	// RetrieveFloor excludes weak matches from soft context retrieval.
	RetrieveFloor = 0.1

	// SearchFloor is the stricter floor for exact lookups.
	SearchFloor = 0.2

	// scoreEpsilon treats near-equal scores as ties broken by recency.
	scoreEpsilon = 0.01
)

// relevance scores one item against a query. queryLower must be the
// lower-cased query and queryTokens its whitespace split.
func relevance(item *Item, queryTokens []string, queryLower string, now time.Time) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	score := 0.0
	contentLower := strings.ToLower(item.Content)

	// Exact phrase match dominates.
	if strings.Contains(contentLower, queryLower) {
		score += phraseMatchScore
	}

	// Token overlap: fraction of query tokens that overlap any item token
	// in either containment direction.
	itemTokens := strings.Fields(contentLower)
	common := 0
	for _, qt := range queryTokens {
		for _, it := range itemTokens {
			if strings.Contains(it, qt) || strings.Contains(qt, it) {
				common++
				break
			}
		}
	}
	score += float64(common) / float64(len(queryTokens)) * tokenOverlapScore

	switch item.Type {
	case TypePreference:
		score *= preferenceMultiplier
	case TypeFact:
		score *= factMultiplier
	case TypeContext:
		score *= contextMultiplier
	}

	if now.Sub(item.CreatedAt) < recencyWindow {
		score *= recencyMultiplier
	}

	usageBonus := float64(item.UsageCount) * usageBonusPerUse
	if usageBonus > usageBonusCap {
		usageBonus = usageBonusCap
	}
	score += usageBonus

	if score > maxScore {
		score = maxScore
	}
	return score
}
