package patterns

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// networkPatterns are the detectors whose co-occurrence indicates organized
// network fraud. The severity ladder promotes corroborated signals from this
// set ahead of the plain weighted mean.
var networkPatterns = map[string]bool{
	domain.PatternVelocity:       true,
	domain.PatternDeclineAnomaly: true,
	domain.PatternCrossMerchant:  true,
	domain.PatternCardTesting:    true,
}

// ladderStats are the aggregates the severity rungs are written against.
type ladderStats struct {
	WeightedMean  float64
	MaxScore      float64
	StrongOverall int // patterns with score >= 0.7
	MediumOverall int // patterns with score >= 0.5
	NetworkStrong int // network patterns with score >= 0.7
	NetworkMedium int // network patterns with score >= 0.5
}

// severityRung is one (predicate, outcome) row of the ladder.
type severityRung struct {
	Name    string
	Applies func(s ladderStats) bool
	Result  domain.Severity
}

// severityLadder is the ordered decision table. Rungs are evaluated top to
// bottom and the first match wins; the ordering is load-bearing policy and
// must not be rearranged.
var severityLadder = []severityRung{
	{
		Name:    "critical_weighted_mean",
		Applies: func(s ladderStats) bool { return s.WeightedMean >= 0.7 },
		Result:  domain.SeverityCritical,
	},
	{
		Name:    "high_network_strong_pair",
		Applies: func(s ladderStats) bool { return s.NetworkStrong >= 2 },
		Result:  domain.SeverityHigh,
	},
	{
		Name:    "high_peak_with_network_support",
		Applies: func(s ladderStats) bool { return s.MaxScore >= 0.9 && s.NetworkMedium >= 1 },
		Result:  domain.SeverityHigh,
	},
	{
		Name:    "high_weighted_mean",
		Applies: func(s ladderStats) bool { return s.WeightedMean >= 0.5 },
		Result:  domain.SeverityHigh,
	},
	{
		Name:    "medium_weighted_mean",
		Applies: func(s ladderStats) bool { return s.WeightedMean >= 0.3 },
		Result:  domain.SeverityMedium,
	},
	{
		Name:    "medium_broad_spread",
		Applies: func(s ladderStats) bool { return s.MediumOverall >= 3 },
		Result:  domain.SeverityMedium,
	},
	{
		Name:    "medium_network_pair",
		Applies: func(s ladderStats) bool { return s.NetworkMedium >= 2 },
		Result:  domain.SeverityMedium,
	},
	{
		Name:    "medium_network_peak_with_support",
		Applies: func(s ladderStats) bool { return s.NetworkStrong >= 1 && s.MediumOverall >= 2 },
		Result:  domain.SeverityMedium,
	},
}

// WeightedMean computes the weighted mean score over all patterns.
// Returns 0 for an empty or zero-weight list.
func WeightedMean(scores []domain.PatternScore) float64 {
	var sum, weight float64
	for _, p := range scores {
		sum += p.Score * p.Weight
		weight += p.Weight
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// Classify derives the severity from the pattern scores. It is a pure,
// total function: the same score list always yields the same severity,
// independent of list order.
func Classify(scores []domain.PatternScore) domain.Severity {
	severity, _ := ClassifyWithRung(scores)
	return severity
}

// ClassifyWithRung also reports which ladder rung fired, for audit output.
func ClassifyWithRung(scores []domain.PatternScore) (domain.Severity, string) {
	stats := computeStats(scores)
	for _, rung := range severityLadder {
		if rung.Applies(stats) {
			return rung.Result, rung.Name
		}
	}
	return domain.SeverityLow, "low_default"
}

func computeStats(scores []domain.PatternScore) ladderStats {
	s := ladderStats{WeightedMean: WeightedMean(scores)}
	for _, p := range scores {
		if p.Score > s.MaxScore {
			s.MaxScore = p.Score
		}
		if p.Score >= 0.7 {
			s.StrongOverall++
		}
		if p.Score >= 0.5 {
			s.MediumOverall++
		}
		if networkPatterns[p.Pattern] {
			if p.Score >= 0.7 {
				s.NetworkStrong++
			}
			if p.Score >= 0.5 {
				s.NetworkMedium++
			}
		}
	}
	return s
}
