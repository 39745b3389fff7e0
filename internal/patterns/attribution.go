package patterns

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Attribute computes each pattern's weighted contribution and its share of
// the total. Percentages are computed only over positive contributions, and
// every maximal positive contributor is flagged top. The output is reporting
// material only; classification never reads it.
func Attribute(scores []domain.PatternScore) []domain.FeatureAttribution {
	if len(scores) == 0 {
		return nil
	}

	attrs := make([]domain.FeatureAttribution, 0, len(scores))
	var total, max float64
	for _, p := range scores {
		c := p.Score * p.Weight
		attrs = append(attrs, domain.FeatureAttribution{
			Pattern:      p.Pattern,
			Contribution: c,
		})
		if c > 0 {
			total += c
		}
		if c > max {
			max = c
		}
	}

	for i := range attrs {
		c := attrs[i].Contribution
		if c > 0 && total > 0 {
			attrs[i].Percent = c / total * 100
		}
		if c > 0 && c == max {
			attrs[i].Top = true
		}
	}

	return attrs
}
