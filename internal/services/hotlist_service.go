package services

import (
	"context"

	"ntl-platform/internal/hotlist"
	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// HotlistService assembles the prioritized inspection queue from persisted
// customer scores.
type HotlistService struct {
	repo    repository.GridRepository
	ranker  *hotlist.Ranker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewHotlistService creates a new hotlist service
func NewHotlistService(repo repository.GridRepository, ranker *hotlist.Ranker, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HotlistService {
	return &HotlistService{
		repo:    repo,
		ranker:  ranker,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetHotlist returns one page of the inspection queue plus the true total
// count of customers at or above the minimum risk level.
func (s *HotlistService) GetHotlist(ctx context.Context, minLevel models.RiskLevel, limit, offset int) (*hotlist.Result, error) {
	timer := s.metrics.NewTimer(s.metrics.HotlistRequestDuration)
	defer timer.ObserveDuration()

	if !minLevel.Valid() {
		minLevel = models.RiskHigh
	}

	// The repository pre-filters by level only to bound the candidate set;
	// Rank applies the same floor authoritatively below.
	candidates, err := s.repo.ListScoredCustomers(ctx, minLevel)
	if err != nil {
		return nil, err
	}

	entries := make([]hotlist.Entry, 0, len(candidates))
	for _, c := range candidates {
		confidence := 0.0
		if c.NTLConfidence != nil {
			confidence = *c.NTLConfidence
		}
		entries = append(entries, hotlist.Entry{
			CustomerID:        c.CustomerID,
			TransformerID:     c.TransformerID,
			FeederID:          c.FeederID,
			RiskScore:         c.RiskScore,
			RiskLevel:         c.RiskLevel,
			Confidence:        confidence,
			EstimatedLossKwh:  c.EstimatedLossKwh,
			EstimatedLossAmt:  c.EstimatedLossAmount,
			RecommendedAction: hotlist.ActionFor(confidence),
		})
	}

	result := s.ranker.Rank(entries, hotlist.Options{
		MinRiskLevel: minLevel,
		Limit:        limit,
		Offset:       offset,
	})

	s.metrics.HotlistSize.Set(float64(result.TotalCount))

	s.logger.Debug(ctx, "[HOTLIST] Hotlist assembled", logging.Fields{
		"min_risk_level": string(minLevel),
		"total_count":    result.TotalCount,
		"page_size":      len(result.Items),
	})

	return &result, nil
}
