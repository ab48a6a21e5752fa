// Package balance enforces conservation-of-energy constraints across the
// feeder → transformer → customer hierarchy. All checks are pure functions
// over a consistent snapshot of readings: re-running with the same inputs
// yields the same classification.
package balance

import (
	"fmt"

	"ntl-platform/internal/models"
)

// Status classifies the outcome of a balance check.
type Status string

const (
	// StatusOK means unexplained loss is within the expected envelope.
	StatusOK Status = "ok"
	// StatusWarning means unexplained loss exceeds the warning ratio.
	StatusWarning Status = "warning"
	// StatusCritical means unexplained loss exceeds the critical ratio,
	// consistent with an organized theft cluster.
	StatusCritical Status = "critical"
	// StatusError means the readings are physically impossible (more energy
	// leaves than enters). The transformer is excluded from scoring until
	// the data is corrected.
	StatusError Status = "error"
	// StatusInsufficientData means the trailing billing period has no
	// customer readings, so no classification is possible. This is distinct
	// from zero consumption: treating missing data as zero would fabricate
	// a 100% unexplained loss.
	StatusInsufficientData Status = "insufficient_data"
)

// Config holds the thresholds applied by the validator. Defaults follow the
// operating assumptions of the distribution network; tests substitute
// synthetic values.
type Config struct {
	// WarningLossRatio is the unexplained-loss fraction of input above which
	// a transformer is flagged for review.
	WarningLossRatio float64
	// CriticalLossRatio is the fraction above which a transformer is
	// classified as a likely theft cluster.
	CriticalLossRatio float64
	// FeederDiscrepancyKwh is the absolute tolerance between a feeder's
	// purchased energy and the sum of its transformers' inputs.
	FeederDiscrepancyKwh float64
	// CapacityLoadFactor bounds sustained throughput as a fraction of rated
	// capacity.
	CapacityLoadFactor float64
	// HoursPerMonth converts kVA capacity to a monthly kWh ceiling.
	HoursPerMonth float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		WarningLossRatio:     0.10,
		CriticalLossRatio:    0.15,
		FeederDiscrepancyKwh: 10000,
		CapacityLoadFactor:   0.8,
		HoursPerMonth:        730,
	}
}

// TransformerReading is the snapshot of inputs for one transformer balance
// check.
type TransformerReading struct {
	TransformerID string
	Period        models.Period
	// InputKwh is the energy metered into the transformer for the period.
	InputKwh float64
	// CustomerKwh is the sum of the connected customers' billed consumption
	// for the trailing billing period.
	CustomerKwh float64
	// TechnicalLossKwh is the expected physical line loss.
	TechnicalLossKwh float64
	// MeteredCustomers is how many customers contributed a reading. Zero
	// means the period has no data, not zero consumption.
	MeteredCustomers int
	CapacityKva      float64
}

// Report is the result of a transformer balance check. It carries every
// numeric input that produced the classification so an auditor can verify
// the conclusion without re-querying the store.
type Report struct {
	TransformerID    string        `json:"transformer_id"`
	Period           string        `json:"period"`
	Status           Status        `json:"status"`
	InputKwh         float64       `json:"input_kwh"`
	OutputKwh        float64       `json:"output_kwh"`
	TechnicalLossKwh float64       `json:"technical_loss_kwh"`
	UnexplainedKwh   float64       `json:"unexplained_kwh"`
	UnexplainedRatio float64       `json:"unexplained_ratio"`
	MeteredCustomers int           `json:"metered_customers"`
	Capacity         *CapacityInfo `json:"capacity_violation,omitempty"`
	Detail           string        `json:"detail,omitempty"`
}

// CapacityInfo describes a throughput reading beyond the transformer's
// rated ceiling. It is always critical: the reading is physically
// impossible, not a loss classification.
type CapacityInfo struct {
	OutputKwh   float64 `json:"output_kwh"`
	CeilingKwh  float64 `json:"ceiling_kwh"`
	CapacityKva float64 `json:"capacity_kva"`
}

// FeederStatus classifies a feeder-level balance check.
type FeederStatus string

const (
	FeederOK FeederStatus = "ok"
	// FeederDataIntegrityWarning means purchased energy and transformer
	// inputs disagree beyond tolerance. This indicates meter sync or
	// missing-record issues, not theft.
	FeederDataIntegrityWarning FeederStatus = "data_integrity_warning"
	FeederInsufficientData     FeederStatus = "insufficient_data"
)

// FeederReading is the snapshot of inputs for one feeder balance check.
type FeederReading struct {
	FeederID string
	Period   models.Period
	// PurchasedKwh is the feeder's metered monthly energy purchase.
	PurchasedKwh float64
	// TransformerInputKwh is the sum of child transformers' monthly inputs.
	TransformerInputKwh float64
	// MeteredTransformers is how many child transformers reported input.
	MeteredTransformers int
}

// FeederReport is the result of a feeder balance check.
type FeederReport struct {
	FeederID            string       `json:"feeder_id"`
	Period              string       `json:"period"`
	Status              FeederStatus `json:"status"`
	PurchasedKwh        float64      `json:"purchased_kwh"`
	TransformerInputKwh float64      `json:"transformer_input_kwh"`
	DiscrepancyKwh      float64      `json:"discrepancy_kwh"`
	MeteredTransformers int          `json:"metered_transformers"`
	Detail              string       `json:"detail,omitempty"`
}

// Validator applies energy-balance checks with configured thresholds.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator. Panics on nonsensical thresholds, which
// are programmer errors rather than data conditions.
func NewValidator(cfg Config) *Validator {
	if cfg.WarningLossRatio <= 0 || cfg.CriticalLossRatio <= cfg.WarningLossRatio {
		panic("balance: critical ratio must exceed warning ratio and both must be positive")
	}
	if cfg.CapacityLoadFactor <= 0 || cfg.HoursPerMonth <= 0 {
		panic("balance: capacity load factor and hours per month must be positive")
	}
	return &Validator{cfg: cfg}
}

// ValidateTransformer classifies the unexplained loss of a single
// transformer for one billing period.
//
//	unexplained = input - sum(customer consumption) - technical loss
func (v *Validator) ValidateTransformer(in TransformerReading) Report {
	report := Report{
		TransformerID:    in.TransformerID,
		Period:           in.Period.String(),
		InputKwh:         in.InputKwh,
		OutputKwh:        in.CustomerKwh,
		TechnicalLossKwh: in.TechnicalLossKwh,
		MeteredCustomers: in.MeteredCustomers,
	}

	// The capacity check runs alongside balance classification; an overload
	// is an impossible physical reading and forces ERROR regardless of the
	// loss arithmetic.
	if violation := v.CheckCapacity(in.CustomerKwh, in.CapacityKva); violation != nil {
		report.Status = StatusError
		report.Capacity = violation
		report.Detail = fmt.Sprintf(
			"output %.1f kWh exceeds rated ceiling %.1f kWh (%.0f kVA)",
			violation.OutputKwh, violation.CeilingKwh, violation.CapacityKva,
		)
		return report
	}

	if in.MeteredCustomers == 0 {
		report.Status = StatusInsufficientData
		report.Detail = "no customer readings for period"
		return report
	}

	unexplained := in.InputKwh - in.CustomerKwh - in.TechnicalLossKwh
	report.UnexplainedKwh = unexplained
	if in.InputKwh > 0 {
		report.UnexplainedRatio = unexplained / in.InputKwh
	}

	switch {
	case unexplained < 0:
		report.Status = StatusError
		report.Detail = fmt.Sprintf(
			"output %.1f kWh plus technical loss %.1f kWh exceeds input %.1f kWh",
			in.CustomerKwh, in.TechnicalLossKwh, in.InputKwh,
		)
	case in.InputKwh > 0 && unexplained > v.cfg.CriticalLossRatio*in.InputKwh:
		report.Status = StatusCritical
		report.Detail = fmt.Sprintf(
			"unexplained loss %.1f kWh is %.1f%% of input, above critical threshold %.0f%%",
			unexplained, report.UnexplainedRatio*100, v.cfg.CriticalLossRatio*100,
		)
	case in.InputKwh > 0 && unexplained > v.cfg.WarningLossRatio*in.InputKwh:
		report.Status = StatusWarning
		report.Detail = fmt.Sprintf(
			"unexplained loss %.1f kWh is %.1f%% of input, above warning threshold %.0f%%",
			unexplained, report.UnexplainedRatio*100, v.cfg.WarningLossRatio*100,
		)
	default:
		report.Status = StatusOK
	}

	return report
}

// CheckCapacity returns a violation when sustained output exceeds the rated
// throughput ceiling, or nil. A zero capacity means the rating is unknown
// and the check is skipped.
func (v *Validator) CheckCapacity(outputKwh, capacityKva float64) *CapacityInfo {
	if capacityKva <= 0 {
		return nil
	}
	ceiling := capacityKva * v.cfg.CapacityLoadFactor * v.cfg.HoursPerMonth
	if outputKwh <= ceiling {
		return nil
	}
	return &CapacityInfo{
		OutputKwh:   outputKwh,
		CeilingKwh:  ceiling,
		CapacityKva: capacityKva,
	}
}

// ValidateFeeder compares a feeder's purchased energy against the sum of
// its child transformers' inputs. Discrepancies beyond the configured
// absolute tolerance are reported as data-integrity warnings, never as
// theft signals.
func (v *Validator) ValidateFeeder(in FeederReading) FeederReport {
	report := FeederReport{
		FeederID:            in.FeederID,
		Period:              in.Period.String(),
		PurchasedKwh:        in.PurchasedKwh,
		TransformerInputKwh: in.TransformerInputKwh,
		MeteredTransformers: in.MeteredTransformers,
	}

	if in.MeteredTransformers == 0 {
		report.Status = FeederInsufficientData
		report.Detail = "no transformer input readings for period"
		return report
	}

	discrepancy := in.PurchasedKwh - in.TransformerInputKwh
	report.DiscrepancyKwh = discrepancy

	abs := discrepancy
	if abs < 0 {
		abs = -abs
	}
	if abs > v.cfg.FeederDiscrepancyKwh {
		report.Status = FeederDataIntegrityWarning
		report.Detail = fmt.Sprintf(
			"purchased %.1f kWh vs transformer inputs %.1f kWh differs by %.1f kWh, above %.0f kWh tolerance",
			in.PurchasedKwh, in.TransformerInputKwh, discrepancy, v.cfg.FeederDiscrepancyKwh,
		)
		return report
	}

	report.Status = FeederOK
	return report
}
