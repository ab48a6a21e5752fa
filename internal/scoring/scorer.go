// Package scoring derives bounded risk scores and categorical levels from
// loss figures and anomaly signals. Scoring is deterministic: the same
// inputs always produce the same score, and higher loss never produces a
// lower score.
package scoring

import (
	"math"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/models"
)

// Status distinguishes a computed score from a refusal to score.
type Status string

const (
	StatusScored Status = "scored"
	// StatusInsufficientData means the consumption history required for
	// scoring is absent. Defaulting to "low risk" here would be a
	// correctness bug, not a degenerate case.
	StatusInsufficientData Status = "insufficient_data"
	// StatusExcluded means the entity's balance report carries an ERROR
	// status and must be corrected before it can be scored.
	StatusExcluded Status = "excluded"
)

// Config holds the scoring thresholds and weights. All values are explicit
// so tests can substitute synthetic thresholds.
type Config struct {
	// Loss-percentage band edges for transformer classification.
	MediumLossPct   float64 // above: medium
	HighLossPct     float64 // above: high
	CriticalLossPct float64 // above: critical
	// MaxLossPct caps interpolation in the critical band so the score stays
	// within [80,100] and monotone.
	MaxLossPct float64

	// Additive weights for customer anomaly flags.
	MeterTamperWeight        float64
	BillingAnomalyWeight     float64
	ConsumptionAnomalyWeight float64

	// Context bonus added per hosting-transformer risk level. Context
	// amplifies, never suppresses.
	ContextBonus map[models.RiskLevel]float64

	// MinHistoryMonths is the minimum reading history required to score a
	// customer.
	MinHistoryMonths int
	// ZeroStreakMonths is the trailing zero-consumption run that flags an
	// active customer as an anomaly candidate.
	ZeroStreakMonths int
	// TariffPerKwh converts estimated stolen energy to currency.
	TariffPerKwh float64
}

// DefaultConfig returns the production thresholds and weights.
func DefaultConfig() Config {
	return Config{
		MediumLossPct:            7,
		HighLossPct:              10,
		CriticalLossPct:          15,
		MaxLossPct:               30,
		MeterTamperWeight:        25,
		BillingAnomalyWeight:     15,
		ConsumptionAnomalyWeight: 15,
		ContextBonus: map[models.RiskLevel]float64{
			models.RiskLow:      0,
			models.RiskMedium:   5,
			models.RiskHigh:     10,
			models.RiskCritical: 15,
		},
		MinHistoryMonths: 3,
		ZeroStreakMonths: 3,
		TariffPerKwh:     10,
	}
}

// TransformerScore is the scoring result for one transformer.
type TransformerScore struct {
	TransformerID  string           `json:"transformer_id"`
	Status         Status           `json:"status"`
	LossPercentage float64          `json:"loss_percentage"`
	RiskScore      float64          `json:"risk_score"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
}

// CustomerSignals is the snapshot of inputs for scoring one customer.
type CustomerSignals struct {
	CustomerID string
	// ConsumptionKwh is the monthly history, oldest first.
	ConsumptionKwh []float64
	// ExpectedKwh is the baseline expectation per month, aligned with
	// ConsumptionKwh; zero entries mean no baseline for that month.
	ExpectedKwh           []float64
	HasMeterTamper        bool
	HasBillingAnomaly     bool
	HasConsumptionAnomaly bool
	IsActive              bool
	// TransformerLevel is the hosting transformer's risk level, used as
	// contextual weight.
	TransformerLevel models.RiskLevel
}

// CustomerScore is the scoring result for one customer. Confidence is the
// evidence-based probability of theft; the risk score is the priority
// severity combining baseline deviation, flags, and transformer context.
type CustomerScore struct {
	CustomerID        string           `json:"customer_id"`
	Status            Status           `json:"status"`
	RiskScore         float64          `json:"risk_score"`
	RiskLevel         models.RiskLevel `json:"risk_level"`
	NTLConfidence     float64          `json:"ntl_confidence"`
	EstimatedLossKwh  float64          `json:"estimated_monthly_loss_kwh"`
	EstimatedLossAmt  float64          `json:"estimated_monthly_loss_amount"`
	AnomalyCandidate  bool             `json:"anomaly_candidate"`
	TheftIndicators   []string         `json:"theft_indicators,omitempty"`
	MonthsOfHistory   int              `json:"months_of_history"`
	MeanDeviationPct  float64          `json:"mean_deviation_percentage"`
}

// Scorer maps loss and anomaly signals to risk scores.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer. Panics on non-monotone band edges, which are
// programmer errors.
func NewScorer(cfg Config) *Scorer {
	if !(0 < cfg.MediumLossPct && cfg.MediumLossPct < cfg.HighLossPct &&
		cfg.HighLossPct < cfg.CriticalLossPct && cfg.CriticalLossPct < cfg.MaxLossPct) {
		panic("scoring: loss band edges must be strictly increasing")
	}
	if cfg.MinHistoryMonths < 1 {
		panic("scoring: MinHistoryMonths must be at least 1")
	}
	return &Scorer{cfg: cfg}
}

// ScoreTransformer maps a transformer's loss percentage to a score in
// [0,100] and a categorical level. The mapping is piecewise linear within
// each band, so it is continuous, reproducible, and monotonic. Loss bands
// are half-open with the edge in the upper band, mirroring the half-open
// score bands, so a loss of exactly 7% scores 40 and classifies medium.
//
//	loss <  7%   -> low      [0,40)
//	loss < 10%   -> medium   [40,60)
//	loss < 15%   -> high     [60,80)
//	loss >= 15%  -> critical [80,100]
func (s *Scorer) ScoreTransformer(transformerID string, report balance.Report) TransformerScore {
	result := TransformerScore{TransformerID: transformerID}

	switch report.Status {
	case balance.StatusError:
		result.Status = StatusExcluded
		return result
	case balance.StatusInsufficientData:
		result.Status = StatusInsufficientData
		return result
	}

	lossPct := report.UnexplainedRatio * 100
	if lossPct < 0 {
		lossPct = 0
	}

	result.Status = StatusScored
	result.LossPercentage = lossPct
	result.RiskScore = s.lossToScore(lossPct)
	// Classify from the score, not the raw loss, so an identical score can
	// never carry different levels on a transformer and a customer.
	result.RiskLevel = s.levelForScore(result.RiskScore)
	return result
}

// lossToScore interpolates a loss percentage into the banded score range.
// Each loss band is half-open at the top, so its image stays strictly below
// the next band's floor and score-based classification agrees on edges.
func (s *Scorer) lossToScore(lossPct float64) float64 {
	cfg := s.cfg
	switch {
	case lossPct < cfg.MediumLossPct:
		return clamp(lossPct/cfg.MediumLossPct*40, 0, 100)
	case lossPct < cfg.HighLossPct:
		frac := (lossPct - cfg.MediumLossPct) / (cfg.HighLossPct - cfg.MediumLossPct)
		return 40 + frac*20
	case lossPct < cfg.CriticalLossPct:
		frac := (lossPct - cfg.HighLossPct) / (cfg.CriticalLossPct - cfg.HighLossPct)
		return 60 + frac*20
	default:
		frac := (lossPct - cfg.CriticalLossPct) / (cfg.MaxLossPct - cfg.CriticalLossPct)
		return clamp(80+frac*20, 80, 100)
	}
}

// levelForScore maps a score to its band. The same edges apply to
// transformers and customers.
func (s *Scorer) levelForScore(score float64) models.RiskLevel {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// ScoreCustomer combines baseline deviation, anomaly flags, and the hosting
// transformer's risk level into a customer score. An identical customer on
// a higher-risk transformer never scores lower.
func (s *Scorer) ScoreCustomer(in CustomerSignals) CustomerScore {
	result := CustomerScore{
		CustomerID:      in.CustomerID,
		MonthsOfHistory: len(in.ConsumptionKwh),
	}

	if len(in.ConsumptionKwh) < s.cfg.MinHistoryMonths {
		result.Status = StatusInsufficientData
		return result
	}

	flags := in
	indicators := make([]string, 0, 4)

	// A trailing run of zero months on an active meter is an anomaly
	// candidate regardless of variance.
	if in.IsActive && s.trailingZeroMonths(in.ConsumptionKwh) >= s.cfg.ZeroStreakMonths {
		flags.HasConsumptionAnomaly = true
		result.AnomalyCandidate = true
		indicators = append(indicators, "zero consumption on active meter for consecutive months")
	}

	meanDev := meanAbsDeviationPct(in.ConsumptionKwh, in.ExpectedKwh)
	result.MeanDeviationPct = meanDev

	// Baseline severity: deviation magnitude saturates at 100% into the low
	// band ceiling.
	base := clamp(meanDev, 0, 100) / 100 * 40

	score := base
	confidence := clamp(meanDev, 0, 100) * 0.4
	if flags.HasMeterTamper {
		score += s.cfg.MeterTamperWeight
		confidence += 30
		indicators = append(indicators, "meter tamper alerts detected")
	}
	if flags.HasBillingAnomaly {
		score += s.cfg.BillingAnomalyWeight
		confidence += 15
		indicators = append(indicators, "billing anomaly detected")
	}
	if flags.HasConsumptionAnomaly {
		score += s.cfg.ConsumptionAnomalyWeight
		confidence += 15
		if !result.AnomalyCandidate {
			indicators = append(indicators, "consumption pattern anomaly detected")
		}
		result.AnomalyCandidate = true
	}

	// Transformer context amplifies, never suppresses.
	score += s.cfg.ContextBonus[in.TransformerLevel]

	result.Status = StatusScored
	result.RiskScore = clamp(score, 0, 100)
	result.RiskLevel = s.levelForScore(result.RiskScore)
	result.NTLConfidence = clamp(confidence, 0, 100)
	result.TheftIndicators = indicators

	result.EstimatedLossKwh = s.estimateStolenKwh(in.ConsumptionKwh, result.NTLConfidence)
	result.EstimatedLossAmt = result.EstimatedLossKwh * s.cfg.TariffPerKwh
	return result
}

// estimateStolenKwh estimates monthly unbilled energy as the drop between
// the historical average and the recent three-month average, discounted by
// detection confidence.
func (s *Scorer) estimateStolenKwh(history []float64, confidence float64) float64 {
	if len(history) == 0 {
		return 0
	}
	recentN := 3
	if len(history) < recentN {
		recentN = len(history)
	}
	recent := mean(history[len(history)-recentN:])
	historical := recent
	if len(history) > recentN {
		historical = mean(history[:len(history)-recentN])
	}
	stolen := historical - recent
	if stolen < 0 {
		stolen = 0
	}
	return stolen * confidence / 100
}

func (s *Scorer) trailingZeroMonths(history []float64) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] != 0 {
			break
		}
		n++
	}
	return n
}

// meanAbsDeviationPct averages |actual-expected|/expected over months with a
// positive baseline. Months without a baseline are skipped, not treated as
// zero deviation.
func meanAbsDeviationPct(actual, expected []float64) float64 {
	var sum float64
	var n int
	for i, a := range actual {
		if i >= len(expected) || expected[i] <= 0 {
			continue
		}
		sum += math.Abs(a-expected[i]) / expected[i] * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
