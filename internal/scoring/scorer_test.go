package scoring

import (
	"math"
	"testing"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/models"
)

func TestScoreTransformer(t *testing.T) {
	s := NewScorer(DefaultConfig())

	tests := []struct {
		name      string
		report    balance.Report
		wantLevel models.RiskLevel
		wantScore float64
	}{
		{
			name:      "low band",
			report:    balance.Report{Status: balance.StatusOK, UnexplainedRatio: 0.05},
			wantLevel: models.RiskLow,
			wantScore: 5.0 / 7.0 * 40,
		},
		{
			name:      "band edge lands in the upper band",
			report:    balance.Report{Status: balance.StatusOK, UnexplainedRatio: 0.07},
			wantLevel: models.RiskMedium,
			wantScore: 40,
		},
		{
			name:      "high band",
			report:    balance.Report{Status: balance.StatusWarning, UnexplainedRatio: 0.12},
			wantLevel: models.RiskHigh,
			wantScore: 68,
		},
		{
			name:      "critical band",
			report:    balance.Report{Status: balance.StatusCritical, UnexplainedRatio: 0.22},
			wantLevel: models.RiskCritical,
			wantScore: 80 + 7.0/15.0*20,
		},
		{
			name:      "loss beyond cap saturates at 100",
			report:    balance.Report{Status: balance.StatusCritical, UnexplainedRatio: 0.50},
			wantLevel: models.RiskCritical,
			wantScore: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := s.ScoreTransformer("TX001", tt.report)

			if score.Status != StatusScored {
				t.Fatalf("Status = %v, want %v", score.Status, StatusScored)
			}
			if score.RiskLevel != tt.wantLevel {
				t.Errorf("RiskLevel = %v, want %v", score.RiskLevel, tt.wantLevel)
			}
			if math.Abs(score.RiskScore-tt.wantScore) > 1e-9 {
				t.Errorf("RiskScore = %v, want %v", score.RiskScore, tt.wantScore)
			}
		})
	}
}

func TestScoreTransformer_RefusesUnscoreableReports(t *testing.T) {
	s := NewScorer(DefaultConfig())

	excluded := s.ScoreTransformer("TX001", balance.Report{Status: balance.StatusError})
	if excluded.Status != StatusExcluded {
		t.Errorf("error report: Status = %v, want %v", excluded.Status, StatusExcluded)
	}

	insufficient := s.ScoreTransformer("TX002", balance.Report{Status: balance.StatusInsufficientData})
	if insufficient.Status != StatusInsufficientData {
		t.Errorf("missing data: Status = %v, want %v", insufficient.Status, StatusInsufficientData)
	}
}

func TestScoreTransformer_Monotonic(t *testing.T) {
	s := NewScorer(DefaultConfig())

	prev := -1.0
	for pct := 0.0; pct <= 40; pct += 0.25 {
		score := s.ScoreTransformer("TX001", balance.Report{
			Status:           balance.StatusOK,
			UnexplainedRatio: pct / 100,
		})
		if score.RiskScore < prev {
			t.Fatalf("score decreased at loss %.2f%%: %v < %v", pct, score.RiskScore, prev)
		}
		prev = score.RiskScore
	}
}

func TestScoreTransformer_LevelAlwaysMatchesScoreBand(t *testing.T) {
	s := NewScorer(DefaultConfig())

	losses := []float64{0, 3.5, 6.99, 7, 7.01, 9.99, 10, 12, 14.99, 15, 22, 40}
	for _, pct := range losses {
		score := s.ScoreTransformer("TX001", balance.Report{
			Status:           balance.StatusOK,
			UnexplainedRatio: pct / 100,
		})
		if want := s.levelForScore(score.RiskScore); score.RiskLevel != want {
			t.Errorf("loss %.2f%%: level %v disagrees with score %v (band %v)",
				pct, score.RiskLevel, score.RiskScore, want)
		}
	}
}

func TestScoreTransformer_SameScoreSameLevelAsCustomer(t *testing.T) {
	s := NewScorer(DefaultConfig())

	// A 7% loss interpolates to exactly 40, the medium band floor.
	transformer := s.ScoreTransformer("TX001", balance.Report{
		Status:           balance.StatusOK,
		UnexplainedRatio: 0.07,
	})
	if transformer.RiskScore != 40 {
		t.Fatalf("transformer RiskScore = %v, want 40", transformer.RiskScore)
	}

	// Tamper plus billing flags on a flat baseline also score exactly 40.
	consumption, expected := flatHistory(6, 300)
	customer := s.ScoreCustomer(CustomerSignals{
		CustomerID:        "CU001",
		ConsumptionKwh:    consumption,
		ExpectedKwh:       expected,
		HasMeterTamper:    true,
		HasBillingAnomaly: true,
		IsActive:          true,
		TransformerLevel:  models.RiskLow,
	})
	if customer.RiskScore != 40 {
		t.Fatalf("customer RiskScore = %v, want 40", customer.RiskScore)
	}

	if transformer.RiskLevel != customer.RiskLevel {
		t.Errorf("identical score 40 classified %v for transformer but %v for customer",
			transformer.RiskLevel, customer.RiskLevel)
	}
	if transformer.RiskLevel != models.RiskMedium {
		t.Errorf("score 40 should sit on the medium band floor, got %v", transformer.RiskLevel)
	}
}

func flatHistory(months int, kwh float64) ([]float64, []float64) {
	consumption := make([]float64, months)
	expected := make([]float64, months)
	for i := range consumption {
		consumption[i] = kwh
		expected[i] = kwh
	}
	return consumption, expected
}

func TestScoreCustomer_InsufficientHistory(t *testing.T) {
	s := NewScorer(DefaultConfig())

	consumption, expected := flatHistory(2, 300)
	score := s.ScoreCustomer(CustomerSignals{
		CustomerID:     "CU001",
		ConsumptionKwh: consumption,
		ExpectedKwh:    expected,
		IsActive:       true,
	})

	if score.Status != StatusInsufficientData {
		t.Errorf("Status = %v, want %v", score.Status, StatusInsufficientData)
	}
	if score.MonthsOfHistory != 2 {
		t.Errorf("MonthsOfHistory = %v, want 2", score.MonthsOfHistory)
	}
}

func TestScoreCustomer_ZeroStreakOnActiveMeter(t *testing.T) {
	s := NewScorer(DefaultConfig())

	score := s.ScoreCustomer(CustomerSignals{
		CustomerID:       "CU001",
		ConsumptionKwh:   []float64{300, 310, 290, 0, 0, 0},
		ExpectedKwh:      []float64{300, 300, 300, 300, 300, 300},
		IsActive:         true,
		TransformerLevel: models.RiskLow,
	})

	if score.Status != StatusScored {
		t.Fatalf("Status = %v, want %v", score.Status, StatusScored)
	}
	if !score.AnomalyCandidate {
		t.Error("three trailing zero months on an active meter should flag an anomaly candidate")
	}
	if len(score.TheftIndicators) == 0 {
		t.Error("anomaly candidate should carry a theft indicator")
	}

	// The zero streak both raises the score and feeds the loss estimate.
	if score.EstimatedLossKwh <= 0 {
		t.Errorf("EstimatedLossKwh = %v, want > 0 after consumption collapse", score.EstimatedLossKwh)
	}
	if score.EstimatedLossAmt != score.EstimatedLossKwh*s.cfg.TariffPerKwh {
		t.Errorf("EstimatedLossAmt = %v, want kwh * tariff", score.EstimatedLossAmt)
	}
}

func TestScoreCustomer_InactiveMeterZeroStreakIsNotAnomalous(t *testing.T) {
	s := NewScorer(DefaultConfig())

	score := s.ScoreCustomer(CustomerSignals{
		CustomerID:     "CU001",
		ConsumptionKwh: []float64{0, 0, 0, 0},
		ExpectedKwh:    []float64{0, 0, 0, 0},
		IsActive:       false,
	})

	if score.Status != StatusScored {
		t.Fatalf("Status = %v, want %v", score.Status, StatusScored)
	}
	if score.AnomalyCandidate {
		t.Error("disconnected meters legitimately read zero")
	}
}

func TestScoreCustomer_FlagWeights(t *testing.T) {
	s := NewScorer(DefaultConfig())
	consumption, expected := flatHistory(6, 300)

	base := s.ScoreCustomer(CustomerSignals{
		CustomerID:       "CU001",
		ConsumptionKwh:   consumption,
		ExpectedKwh:      expected,
		IsActive:         true,
		TransformerLevel: models.RiskLow,
	})
	if base.RiskScore != 0 {
		t.Fatalf("flat history without flags should score 0, got %v", base.RiskScore)
	}

	tamper := s.ScoreCustomer(CustomerSignals{
		CustomerID:       "CU001",
		ConsumptionKwh:   consumption,
		ExpectedKwh:      expected,
		HasMeterTamper:   true,
		IsActive:         true,
		TransformerLevel: models.RiskLow,
	})
	if tamper.RiskScore != 25 {
		t.Errorf("tamper flag: RiskScore = %v, want 25", tamper.RiskScore)
	}
	if tamper.NTLConfidence != 30 {
		t.Errorf("tamper flag: NTLConfidence = %v, want 30", tamper.NTLConfidence)
	}

	all := s.ScoreCustomer(CustomerSignals{
		CustomerID:            "CU001",
		ConsumptionKwh:        consumption,
		ExpectedKwh:           expected,
		HasMeterTamper:        true,
		HasBillingAnomaly:     true,
		HasConsumptionAnomaly: true,
		IsActive:              true,
		TransformerLevel:      models.RiskLow,
	})
	if all.RiskScore != 55 {
		t.Errorf("all flags: RiskScore = %v, want 55", all.RiskScore)
	}
	if all.NTLConfidence != 60 {
		t.Errorf("all flags: NTLConfidence = %v, want 60", all.NTLConfidence)
	}
	if len(all.TheftIndicators) != 3 {
		t.Errorf("all flags: %d indicators, want 3", len(all.TheftIndicators))
	}
}

func TestScoreCustomer_TransformerContextAmplifies(t *testing.T) {
	s := NewScorer(DefaultConfig())
	consumption, expected := flatHistory(6, 300)

	signals := CustomerSignals{
		CustomerID:     "CU001",
		ConsumptionKwh: consumption,
		ExpectedKwh:    expected,
		HasMeterTamper: true,
		IsActive:       true,
	}

	var prev float64 = -1
	for _, level := range []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical} {
		signals.TransformerLevel = level
		score := s.ScoreCustomer(signals)
		if score.RiskScore < prev {
			t.Errorf("level %v scored %v, below lower-context score %v", level, score.RiskScore, prev)
		}
		prev = score.RiskScore
	}

	signals.TransformerLevel = models.RiskCritical
	critical := s.ScoreCustomer(signals)
	signals.TransformerLevel = models.RiskLow
	low := s.ScoreCustomer(signals)
	if critical.RiskScore-low.RiskScore != 15 {
		t.Errorf("critical context bonus = %v, want 15", critical.RiskScore-low.RiskScore)
	}
	if critical.NTLConfidence != low.NTLConfidence {
		t.Error("transformer context must not alter evidence-based confidence")
	}
}

func TestScoreCustomer_EstimatedLoss(t *testing.T) {
	s := NewScorer(DefaultConfig())

	// Historical average 300, recent three-month average 100, tamper flag
	// gives confidence 30 with a flat baseline.
	score := s.ScoreCustomer(CustomerSignals{
		CustomerID:       "CU001",
		ConsumptionKwh:   []float64{300, 300, 300, 100, 100, 100},
		ExpectedKwh:      []float64{300, 300, 300, 300, 300, 300},
		HasMeterTamper:   true,
		IsActive:         true,
		TransformerLevel: models.RiskLow,
	})

	if score.Status != StatusScored {
		t.Fatalf("Status = %v, want %v", score.Status, StatusScored)
	}

	// Deviation: three months at 0% and three at 66.67% average to 33.33%.
	wantDev := 200.0 / 300.0 * 100 / 2
	if math.Abs(score.MeanDeviationPct-wantDev) > 1e-9 {
		t.Errorf("MeanDeviationPct = %v, want %v", score.MeanDeviationPct, wantDev)
	}

	wantConfidence := wantDev*0.4 + 30
	if math.Abs(score.NTLConfidence-wantConfidence) > 1e-9 {
		t.Errorf("NTLConfidence = %v, want %v", score.NTLConfidence, wantConfidence)
	}

	wantKwh := 200 * wantConfidence / 100
	if math.Abs(score.EstimatedLossKwh-wantKwh) > 1e-9 {
		t.Errorf("EstimatedLossKwh = %v, want %v", score.EstimatedLossKwh, wantKwh)
	}
	if math.Abs(score.EstimatedLossAmt-wantKwh*10) > 1e-9 {
		t.Errorf("EstimatedLossAmt = %v, want %v", score.EstimatedLossAmt, wantKwh*10)
	}
}

func TestMeanAbsDeviationPct_SkipsMonthsWithoutBaseline(t *testing.T) {
	got := meanAbsDeviationPct(
		[]float64{100, 100, 150},
		[]float64{0, 100, 100},
	)

	// The first month has no baseline: only 0% and 50% contribute.
	if math.Abs(got-25) > 1e-9 {
		t.Errorf("meanAbsDeviationPct = %v, want 25", got)
	}

	if got := meanAbsDeviationPct([]float64{100, 200}, []float64{0, 0}); got != 0 {
		t.Errorf("no baseline months should yield 0, got %v", got)
	}
}
