package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/hotlist"
	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/internal/scoring"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// Collectors register globally, so the package shares one across tests.
var testMetrics = metrics.NewCollector("ntl_services_test")

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger("test", "test", logging.FatalLevel)
}

// stubGridRepo serves a fixed snapshot and records risk updates. Workers
// write concurrently, so the maps are mutex-guarded.
type stubGridRepo struct {
	repository.GridRepository

	mu                 sync.Mutex
	snapshot           *repository.Snapshot
	candidates         []*repository.HotlistCandidate
	transformerUpdates map[string]repository.TransformerRiskUpdate
	customerUpdates    map[string]repository.CustomerRiskUpdate
}

func newStubGridRepo(snapshot *repository.Snapshot) *stubGridRepo {
	return &stubGridRepo{
		snapshot:           snapshot,
		transformerUpdates: make(map[string]repository.TransformerRiskUpdate),
		customerUpdates:    make(map[string]repository.CustomerRiskUpdate),
	}
}

func (s *stubGridRepo) LoadSnapshot(ctx context.Context, period models.Period, historyMonths int) (*repository.Snapshot, error) {
	return s.snapshot, nil
}

func (s *stubGridRepo) UpdateTransformerRisk(ctx context.Context, update repository.TransformerRiskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformerUpdates[update.TransformerID] = update
	return nil
}

func (s *stubGridRepo) UpdateCustomerRisk(ctx context.Context, update repository.CustomerRiskUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerUpdates[update.CustomerID] = update
	return nil
}

func (s *stubGridRepo) ListScoredCustomers(ctx context.Context, minLevel models.RiskLevel) ([]*repository.HotlistCandidate, error) {
	return s.candidates, nil
}

func monthlyReadings(customerID string, end models.Period, kwh ...float64) []*models.ConsumptionReading {
	readings := make([]*models.ConsumptionReading, len(kwh))
	for i, k := range kwh {
		period := end.AddMonths(i - len(kwh) + 1)
		readings[i] = &models.ConsumptionReading{
			ID:            int64(i + 1),
			CustomerID:    customerID,
			ReadingPeriod: period.Start(),
			KwhConsumed:   k,
		}
	}
	return readings
}

func passSnapshot(period models.Period) *repository.Snapshot {
	feeder := &models.Feeder{
		FeederID:            "FD001",
		Name:                "North Feeder",
		MonthlyPurchasedKwh: 100000,
		IsActive:            true,
	}

	// TX001 balances to a 22% unexplained loss: input 50000, customers
	// 38000, technical 1000.
	tx1 := &models.Transformer{
		TransformerID:    "TX001",
		FeederID:         "FD001",
		CapacityKva:      500,
		MonthlyInputKwh:  50000,
		TechnicalLossKwh: 1000,
		IsActive:         true,
	}
	// TX002 has no customer readings for the period.
	tx2 := &models.Transformer{
		TransformerID:   "TX002",
		FeederID:        "FD001",
		CapacityKva:     100,
		MonthlyInputKwh: 10000,
		IsActive:        true,
	}
	// TX003's customer reading exceeds the 10 kVA ceiling of 5840 kWh.
	tx3 := &models.Transformer{
		TransformerID:   "TX003",
		FeederID:        "FD001",
		CapacityKva:     10,
		MonthlyInputKwh: 7000,
		IsActive:        true,
	}

	cu1 := &models.Customer{CustomerID: "CU001", TransformerID: "TX001", Type: models.CustomerCommercial, IsActive: true}
	cu2 := &models.Customer{CustomerID: "CU002", TransformerID: "TX001", Type: models.CustomerIndustrial, IsActive: true}
	cu3 := &models.Customer{CustomerID: "CU003", TransformerID: "TX002", Type: models.CustomerResidential, IsActive: true}
	cu4 := &models.Customer{CustomerID: "CU004", TransformerID: "TX003", Type: models.CustomerResidential, IsActive: true}

	return &repository.Snapshot{
		Period:  period,
		Feeders: []*models.Feeder{feeder},
		TransformersByFeeder: map[string][]*models.Transformer{
			"FD001": {tx1, tx2, tx3},
		},
		CustomersByTransformer: map[string][]*models.Customer{
			"TX001": {cu1, cu2},
			"TX002": {cu3},
			"TX003": {cu4},
		},
		ReadingsByCustomer: map[string][]*models.ConsumptionReading{
			"CU001": monthlyReadings("CU001", period, 18000, 18500, 17500, 18200, 17800, 19000),
			"CU002": monthlyReadings("CU002", period, 19500, 19200, 18800, 19100, 18900, 19000),
			// CU003's last reading predates the period under analysis.
			"CU003": monthlyReadings("CU003", period.AddMonths(-1), 250, 260, 240),
			"CU004": monthlyReadings("CU004", period, 6000, 6100, 6000),
		},
	}
}

func newTestAggregationService(repo repository.GridRepository) *AggregationService {
	return NewAggregationService(
		repo,
		balance.NewValidator(balance.DefaultConfig()),
		scoring.NewScorer(scoring.DefaultConfig()),
		12, 4,
		testLogger(),
		testMetrics,
	)
}

func TestRunScoringPass(t *testing.T) {
	period := models.Period{Year: 2026, Month: 7}
	repo := newStubGridRepo(passSnapshot(period))
	service := newTestAggregationService(repo)

	result, err := service.RunScoringPass(context.Background(), period)
	require.NoError(t, err)

	assert.Equal(t, "2026-07", result.Period)
	assert.Equal(t, 1, result.TransformersScored)
	assert.Equal(t, 1, result.TransformersExcluded)
	assert.Equal(t, 1, result.TransformersInsufficient)
	assert.Equal(t, 2, result.CustomersScored)
	assert.Equal(t, 0, result.CustomersInsufficient)

	// Purchased 100000 vs transformer inputs 67000 breaches the tolerance.
	assert.Equal(t, 1, result.FeederWarnings)

	// Only the cleanly balanced transformer persists risk fields.
	require.Len(t, repo.transformerUpdates, 1)
	update := repo.transformerUpdates["TX001"]
	assert.Equal(t, models.RiskCritical, update.RiskLevel)
	assert.Equal(t, 11000.0, update.NonTechLossKwh)
	assert.InDelta(t, 22.0, update.LossPercentage, 1e-9)

	// Both of its customers were scored and persisted.
	require.Len(t, repo.customerUpdates, 2)
	for _, id := range []string{"CU001", "CU002"} {
		cu, ok := repo.customerUpdates[id]
		require.True(t, ok, "customer %s should be persisted", id)
		assert.True(t, cu.RiskLevel.Valid())
		require.NotNil(t, cu.NTLConfidence)
	}
}

func TestRunScoringPass_Deterministic(t *testing.T) {
	period := models.Period{Year: 2026, Month: 7}

	first := newStubGridRepo(passSnapshot(period))
	second := newStubGridRepo(passSnapshot(period))

	_, err := newTestAggregationService(first).RunScoringPass(context.Background(), period)
	require.NoError(t, err)
	_, err = newTestAggregationService(second).RunScoringPass(context.Background(), period)
	require.NoError(t, err)

	assert.Equal(t, first.transformerUpdates, second.transformerUpdates)
	assert.Equal(t, first.customerUpdates, second.customerUpdates)
}

func TestGetHotlist(t *testing.T) {
	confidence1, confidence2 := 85.0, 40.0
	repo := newStubGridRepo(nil)
	repo.candidates = []*repository.HotlistCandidate{
		{
			CustomerID:          "CU001",
			TransformerID:       "TX001",
			FeederID:            "FD001",
			RiskScore:           78,
			RiskLevel:           models.RiskHigh,
			NTLConfidence:       &confidence1,
			EstimatedLossKwh:    150,
			EstimatedLossAmount: 1500,
		},
		{
			CustomerID:          "CU002",
			TransformerID:       "TX002",
			FeederID:            "FD001",
			RiskScore:           91,
			RiskLevel:           models.RiskCritical,
			NTLConfidence:       &confidence2,
			EstimatedLossKwh:    80,
			EstimatedLossAmount: 800,
		},
		{
			CustomerID:          "CU003",
			TransformerID:       "TX002",
			FeederID:            "FD001",
			RiskScore:           65,
			RiskLevel:           models.RiskHigh,
			NTLConfidence:       nil, // never scored for confidence
			EstimatedLossKwh:    500,
			EstimatedLossAmount: 5000,
		},
	}

	service := NewHotlistService(repo, hotlist.NewRanker(), testLogger(), testMetrics)

	result, err := service.GetHotlist(context.Background(), models.RiskHigh, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Items, 3)

	// Priorities: CU001 85*1500=127500, CU002 40*800=32000, CU003 0.
	assert.Equal(t, "CU001", result.Items[0].CustomerID)
	assert.Equal(t, "CU002", result.Items[1].CustomerID)
	assert.Equal(t, "CU003", result.Items[2].CustomerID)

	assert.Equal(t, "Immediate field inspection with legal team standby", result.Items[0].RecommendedAction)
	assert.Equal(t, "Monitor for 30 days, flag if pattern continues", result.Items[2].RecommendedAction)
}

func TestGetHotlist_InvalidMinLevelDefaultsToHigh(t *testing.T) {
	repo := newStubGridRepo(nil)
	service := NewHotlistService(repo, hotlist.NewRanker(), testLogger(), testMetrics)

	result, err := service.GetHotlist(context.Background(), "bogus", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalCount)
	assert.Empty(t, result.Items)
}
