package services

import (
	"context"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/internal/scoring"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// AnalysisService serves on-demand balance and scoring computations for
// single entities. All computations are pure over the store's current data;
// nothing is persisted here.
type AnalysisService struct {
	repo          repository.GridRepository
	validator     *balance.Validator
	scorer        *scoring.Scorer
	historyMonths int
	logger        *logging.StructuredLogger
	metrics       *metrics.Collector
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	repo repository.GridRepository,
	validator *balance.Validator,
	scorer *scoring.Scorer,
	historyMonths int,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AnalysisService {
	return &AnalysisService{
		repo:          repo,
		validator:     validator,
		scorer:        scorer,
		historyMonths: historyMonths,
		logger:        logger,
		metrics:       metricsCollector,
	}
}

// ComputeTransformerBalance validates the energy balance of one transformer
// for the given billing period.
func (s *AnalysisService) ComputeTransformerBalance(ctx context.Context, transformerID string, period models.Period) (*balance.Report, error) {
	transformer, err := s.repo.GetTransformer(ctx, transformerID)
	if err != nil {
		return nil, err
	}

	customerKwh, metered, err := s.repo.SumCustomerConsumption(ctx, transformerID, period)
	if err != nil {
		return nil, err
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

	if report.Status == balance.StatusError {
		s.logger.Warn(ctx, "[BALANCE_VIOLATION] Transformer balance violation", logging.Fields{
			"transformer_id":  transformerID,
			"period":          period.String(),
			"input_kwh":       report.InputKwh,
			"output_kwh":      report.OutputKwh,
			"unexplained_kwh": report.UnexplainedKwh,
			"detail":          report.Detail,
		})
	}

	return &report, nil
}

// ComputeFeederBalance compares a feeder's purchased energy against its
// transformers' metered inputs for the given period.
func (s *AnalysisService) ComputeFeederBalance(ctx context.Context, feederID string, period models.Period) (*balance.FeederReport, error) {
	feeder, err := s.repo.GetFeeder(ctx, feederID)
	if err != nil {
		return nil, err
	}

	transformerInput, metered, err := s.repo.SumTransformerInput(ctx, feederID)
	if err != nil {
		return nil, err
	}

	report := s.validator.ValidateFeeder(balance.FeederReading{
		FeederID:            feeder.FeederID,
		Period:              period,
		PurchasedKwh:        feeder.MonthlyPurchasedKwh,
		TransformerInputKwh: transformerInput,
		MeteredTransformers: metered,
	})

	if report.Status == balance.FeederDataIntegrityWarning {
		s.logger.Warn(ctx, "[FEEDER_DISCREPANCY] Feeder balance discrepancy", logging.Fields{
			"feeder_id":       feederID,
			"period":          period.String(),
			"purchased_kwh":   report.PurchasedKwh,
			"input_kwh":       report.TransformerInputKwh,
			"discrepancy_kwh": report.DiscrepancyKwh,
		})
	}

	return &report, nil
}

// ScoreTransformer computes the current risk score of one transformer from
// its balance report.
func (s *AnalysisService) ScoreTransformer(ctx context.Context, transformerID string, period models.Period) (*scoring.TransformerScore, error) {
	report, err := s.ComputeTransformerBalance(ctx, transformerID, period)
	if err != nil {
		return nil, err
	}

	score := s.scorer.ScoreTransformer(transformerID, *report)
	if score.Status != scoring.StatusScored {
		s.metrics.RecordInsufficientData("transformer")
	}
	return &score, nil
}

// ScoreCustomer computes the current risk score of one customer from its
// reading history, anomaly flags, and hosting transformer's risk level.
func (s *AnalysisService) ScoreCustomer(ctx context.Context, customerID string, period models.Period) (*scoring.CustomerScore, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	transformerScore, err := s.ScoreTransformer(ctx, customer.TransformerID, period)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.GetCustomerHistory(ctx, customerID, period, s.historyMonths)
	if err != nil {
		return nil, err
	}

	score := s.scorer.ScoreCustomer(buildCustomerSignals(customer, history, transformerScore.RiskLevel))
	if score.Status == scoring.StatusInsufficientData {
		s.metrics.RecordInsufficientData("customer")
	}
	return &score, nil
}

// buildCustomerSignals converts a reading history into scorer inputs.
// Months without a baseline carry a zero expectation, which the scorer
// skips rather than treating as zero deviation.
func buildCustomerSignals(customer *models.Customer, history []*models.ConsumptionReading, transformerLevel models.RiskLevel) scoring.CustomerSignals {
	consumption := make([]float64, len(history))
	expected := make([]float64, len(history))
	for i, reading := range history {
		consumption[i] = reading.KwhConsumed
		if reading.ExpectedKwh != nil {
			expected[i] = *reading.ExpectedKwh
		}
	}

	return scoring.CustomerSignals{
		CustomerID:            customer.CustomerID,
		ConsumptionKwh:        consumption,
		ExpectedKwh:           expected,
		HasMeterTamper:        customer.HasMeterTamper,
		HasBillingAnomaly:     customer.HasBillingAnomaly,
		HasConsumptionAnomaly: customer.HasConsumptionAnomaly,
		IsActive:              customer.IsActive,
		TransformerLevel:      transformerLevel,
	}
}
