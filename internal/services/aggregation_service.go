package services

import (
	"context"
	"sync"
	"time"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/internal/scoring"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// AggregationService recomputes balance reports and risk scores for the
// whole grid. Each transformer's computation is independent, so the pass
// fans work out over a bounded worker pool after loading one consistent
// snapshot.
type AggregationService struct {
	repo          repository.GridRepository
	validator     *balance.Validator
	scorer        *scoring.Scorer
	historyMonths int
	workerCount   int
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// PassResult summarizes one scoring pass.
type PassResult struct {
	Period                   string        `json:"period"`
	TransformersScored       int           `json:"transformers_scored"`
	TransformersExcluded     int           `json:"transformers_excluded"`
	TransformersInsufficient int           `json:"transformers_insufficient"`
	CustomersScored          int           `json:"customers_scored"`
	CustomersInsufficient    int           `json:"customers_insufficient"`
	FeederWarnings           int           `json:"feeder_warnings"`
	Duration                 time.Duration `json:"duration"`
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(
	repo repository.GridRepository,
	validator *balance.Validator,
	scorer *scoring.Scorer,
	historyMonths int,
	workerCount int,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AggregationService {
	if workerCount < 1 {
		workerCount = 1
	}
	return &AggregationService{
		repo:          repo,
		validator:     validator,
		scorer:        scorer,
		historyMonths: historyMonths,
		workerCount:   workerCount,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// transformerJob is one unit of pass work: a transformer with its snapshot
// context.
type transformerJob struct {
	transformer *models.Transformer
	customers   []*models.Customer
	snapshot    *repository.Snapshot
}

// RunScoringPass recomputes and persists risk fields for every active
// transformer and customer for the given billing period.
func (s *AggregationService) RunScoringPass(ctx context.Context, period models.Period) (*PassResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[PASS_START] Starting scoring pass", logging.Fields{
		"period":  period.String(),
		"workers": s.workerCount,
		"stage":   "INITIALIZATION",
	})

	snapshot, err := s.repo.LoadSnapshot(ctx, period, s.historyMonths)
	if err != nil {
		return nil, err
	}

	result := &PassResult{Period: period.String()}
	var mu sync.Mutex

	jobs := make(chan transformerJob)
	var wg sync.WaitGroup

	wg.Add(s.workerCount)
	for i := 0; i < s.workerCount; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				outcome := s.processTransformer(ctx, period, job)
				mu.Lock()
				result.TransformersScored += outcome.transformersScored
				result.TransformersExcluded += outcome.transformersExcluded
				result.TransformersInsufficient += outcome.transformersInsufficient
				result.CustomersScored += outcome.customersScored
				result.CustomersInsufficient += outcome.customersInsufficient
				mu.Unlock()
			}
		}()
	}

	for _, feeder := range snapshot.Feeders {
		for _, transformer := range snapshot.TransformersByFeeder[feeder.FeederID] {
			jobs <- transformerJob{
				transformer: transformer,
				customers:   snapshot.CustomersByTransformer[transformer.TransformerID],
				snapshot:    snapshot,
			}
		}
	}
	close(jobs)
	wg.Wait()

	// Feeder-level integrity checks run after the fan-out; they read only
	// snapshot data.
	for _, feeder := range snapshot.Feeders {
		report := s.validateFeeder(ctx, period, feeder, snapshot)
		if report.Status == balance.FeederDataIntegrityWarning {
			result.FeederWarnings++
		}
	}

	result.Duration = time.Since(startTime)
	s.metrics.ScoringPassDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[PASS_COMPLETE] Scoring pass completed", logging.Fields{
		"period":                    period.String(),
		"transformers_scored":       result.TransformersScored,
		"transformers_excluded":     result.TransformersExcluded,
		"transformers_insufficient": result.TransformersInsufficient,
		"customers_scored":          result.CustomersScored,
		"customers_insufficient":    result.CustomersInsufficient,
		"feeder_warnings":           result.FeederWarnings,
		"duration_seconds":          result.Duration.Seconds(),
		"stage":                     "COMPLETE",
	})

	return result, nil
}

type jobOutcome struct {
	transformersScored       int
	transformersExcluded     int
	transformersInsufficient int
	customersScored          int
	customersInsufficient    int
}

// processTransformer computes and persists the balance report, transformer
// score, and customer scores for one transformer.
func (s *AggregationService) processTransformer(ctx context.Context, period models.Period, job transformerJob) jobOutcome {
	var outcome jobOutcome
	transformer := job.transformer

	var customerKwh float64
	var metered int
	anomalies := 0
	for _, customer := range job.customers {
		for _, reading := range job.snapshot.ReadingsByCustomer[customer.CustomerID] {
			if models.PeriodOf(reading.ReadingPeriod) == period {
				customerKwh += reading.KwhConsumed
				metered++
				if reading.IsAnomaly {
					anomalies++
				}
				break
			}
		}
	}

	report := s.validator.ValidateTransformer(balance.TransformerReading{
		TransformerID:    transformer.TransformerID,
		Period:           period,
		InputKwh:         transformer.MonthlyInputKwh,
		CustomerKwh:      customerKwh,
		TechnicalLossKwh: transformer.TechnicalLossKwh,
		MeteredCustomers: metered,
		CapacityKva:      transformer.CapacityKva,
	})
	s.metrics.RecordBalanceStatus(string(report.Status))

	score := s.scorer.ScoreTransformer(transformer.TransformerID, report)
	switch score.Status {
	case scoring.StatusExcluded:
		// ERROR balance: surface and leave the previous risk fields in
		// place until the data is corrected.
		outcome.transformersExcluded++
		s.logger.Warn(ctx, "[PASS_TRANSFORMER_EXCLUDED] Transformer excluded from scoring", logging.Fields{
			"transformer_id":  transformer.TransformerID,
			"period":          period.String(),
			"input_kwh":       report.InputKwh,
			"output_kwh":      report.OutputKwh,
			"unexplained_kwh": report.UnexplainedKwh,
			"detail":          report.Detail,
		})
		return outcome
	case scoring.StatusInsufficientData:
		outcome.transformersInsufficient++
		s.metrics.RecordInsufficientData("transformer")
		return outcome
	}

	err := s.repo.UpdateTransformerRisk(ctx, repository.TransformerRiskUpdate{
		TransformerID:  transformer.TransformerID,
		RiskScore:      score.RiskScore,
		RiskLevel:      score.RiskLevel,
		LossPercentage: score.LossPercentage,
		NonTechLossKwh: report.UnexplainedKwh,
		AnomalyCount:   anomalies,
	})
	if err != nil {
		s.logger.Error(ctx, "[PASS_SAVE_ERROR] Failed to save transformer risk", logging.Fields{
			"transformer_id": transformer.TransformerID,
		}, err)
		return outcome
	}
	outcome.transformersScored++
	s.metrics.TransformersScoredTotal.Inc()

	for _, customer := range job.customers {
		customerScore := s.scorer.ScoreCustomer(buildCustomerSignals(
			customer,
			job.snapshot.ReadingsByCustomer[customer.CustomerID],
			score.RiskLevel,
		))

		if customerScore.Status == scoring.StatusInsufficientData {
			outcome.customersInsufficient++
			s.metrics.RecordInsufficientData("customer")
			continue
		}

		confidence := customerScore.NTLConfidence
		err := s.repo.UpdateCustomerRisk(ctx, repository.CustomerRiskUpdate{
			CustomerID:            customer.CustomerID,
			RiskScore:             customerScore.RiskScore,
			RiskLevel:             customerScore.RiskLevel,
			NTLConfidence:         &confidence,
			EstimatedLossKwh:      customerScore.EstimatedLossKwh,
			EstimatedLossAmount:   customerScore.EstimatedLossAmt,
			HasConsumptionAnomaly: customer.HasConsumptionAnomaly || customerScore.AnomalyCandidate,
		})
		if err != nil {
			s.logger.Error(ctx, "[PASS_SAVE_ERROR] Failed to save customer risk", logging.Fields{
				"customer_id": customer.CustomerID,
			}, err)
			continue
		}
		outcome.customersScored++
		s.metrics.CustomersScoredTotal.Inc()
	}

	return outcome
}

// validateFeeder runs the feeder-level integrity check against snapshot
// data and logs any discrepancy.
func (s *AggregationService) validateFeeder(ctx context.Context, period models.Period, feeder *models.Feeder, snapshot *repository.Snapshot) balance.FeederReport {
	var transformerInput float64
	metered := 0
	for _, transformer := range snapshot.TransformersByFeeder[feeder.FeederID] {
		transformerInput += transformer.MonthlyInputKwh
		if transformer.MonthlyInputKwh > 0 {
			metered++
		}
	}

	report := s.validator.ValidateFeeder(balance.FeederReading{
		FeederID:            feeder.FeederID,
		Period:              period,
		PurchasedKwh:        feeder.MonthlyPurchasedKwh,
		TransformerInputKwh: transformerInput,
		MeteredTransformers: metered,
	})

	if report.Status == balance.FeederDataIntegrityWarning {
		s.logger.Warn(ctx, "[PASS_FEEDER_DISCREPANCY] Feeder balance discrepancy", logging.Fields{
			"feeder_id":       feeder.FeederID,
			"period":          period.String(),
			"purchased_kwh":   report.PurchasedKwh,
			"input_kwh":       report.TransformerInputKwh,
			"discrepancy_kwh": report.DiscrepancyKwh,
		})
	}

	return report
}
