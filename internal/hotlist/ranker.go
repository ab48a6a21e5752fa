// Package hotlist turns scored customers into a stable, deterministic
// inspection queue ordered by expected recoverable value.
package hotlist

import (
	"sort"

	"ntl-platform/internal/models"
)

// Entry is one scored customer eligible for ranking.
type Entry struct {
	CustomerID        string           `json:"customer_id"`
	TransformerID     string           `json:"transformer_id"`
	FeederID          string           `json:"feeder_id"`
	RiskScore         float64          `json:"risk_score"`
	RiskLevel         models.RiskLevel `json:"risk_level"`
	Confidence        float64          `json:"confidence_score"`
	EstimatedLossKwh  float64          `json:"estimated_monthly_loss_kwh"`
	EstimatedLossAmt  float64          `json:"estimated_monthly_loss_amount"`
	TheftIndicators   []string         `json:"theft_indicators,omitempty"`
	RecommendedAction string           `json:"recommended_action"`
}

// Priority is the ranking key: detection confidence times financial stakes.
// This rewards cases that are both likely and costly over cases that are
// merely one or the other.
func (e Entry) Priority() float64 {
	return e.Confidence * e.EstimatedLossAmt
}

// Options controls filtering and pagination of a ranking request.
type Options struct {
	// MinRiskLevel excludes entries below the given level. Zero value
	// defaults to high, the dispatch-worthy floor.
	MinRiskLevel models.RiskLevel
	// Limit caps the page size; <= 0 means no cap.
	Limit int
	// Offset skips entries from the top of the filtered ordering.
	Offset int
}

// Result carries one page of the queue plus the true total so
// inspection-scheduling can plan capacity. Truncation is never silent.
type Result struct {
	Items      []Entry `json:"items"`
	TotalCount int     `json:"total_count"`
}

// Ranker produces prioritized inspection queues.
type Ranker struct{}

// NewRanker creates a ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank filters entries by minimum risk level, orders them by descending
// priority with customer-id tiebreak, and applies pagination. The sort is
// stable, so identical requests return identical pages and raising the
// limit never reorders an already-returned prefix.
func (r *Ranker) Rank(entries []Entry, opts Options) Result {
	minLevel := opts.MinRiskLevel
	if !minLevel.Valid() {
		minLevel = models.RiskHigh
	}

	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.RiskLevel.Rank() >= minLevel.Rank() {
			filtered = append(filtered, e)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		pi, pj := filtered[i].Priority(), filtered[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return filtered[i].CustomerID < filtered[j].CustomerID
	})

	total := len(filtered)

	if opts.Offset > 0 {
		if opts.Offset >= total {
			filtered = filtered[:0]
		} else {
			filtered = filtered[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	return Result{Items: filtered, TotalCount: total}
}

// ActionFor returns the dispatch guidance attached to hotlist entries for a
// given confidence score.
func ActionFor(confidence float64) string {
	switch {
	case confidence >= 75:
		return "Immediate field inspection with legal team standby"
	case confidence >= 50:
		return "Schedule inspection within 3 days"
	default:
		return "Monitor for 30 days, flag if pattern continues"
	}
}
