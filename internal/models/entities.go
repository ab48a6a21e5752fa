package models

import (
	"time"
)

// RiskLevel is the categorical risk classification shared by transformers
// and customers.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns the ordering of a risk level for filtering and comparison.
// Unknown levels rank below low so they never pass a minimum-level filter.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether the level is one of the four known categories.
func (l RiskLevel) Valid() bool {
	return l.Rank() > 0
}

// CustomerType classifies the tariff class of a customer connection.
type CustomerType string

const (
	CustomerResidential CustomerType = "residential"
	CustomerCommercial  CustomerType = "commercial"
	CustomerIndustrial  CustomerType = "industrial"
)

// InspectionResult is the outcome recorded by a field inspection.
type InspectionResult string

const (
	InspectionClean          InspectionResult = "clean"
	InspectionViolation      InspectionResult = "violation"
	InspectionTheftConfirmed InspectionResult = "theft_confirmed"
	InspectionMeterDefective InspectionResult = "meter_defective"
)

// Feeder represents a distribution feeder, the top of the supply hierarchy.
// Feeders are created at provisioning time and never deleted; corrections
// are appended as new monthly figures.
type Feeder struct {
	FeederID             string    `json:"feeder_id" db:"feeder_id"`
	Name                 string    `json:"name" db:"name"`
	VoltageClass         string    `json:"voltage_class" db:"voltage_class"`
	InstalledCapacityKva float64   `json:"installed_capacity_kva" db:"installed_capacity_kva"`
	PeakLoadKw           float64   `json:"peak_load_kw" db:"peak_load_kw"`
	SystemLossPct        float64   `json:"system_loss_percentage" db:"system_loss_percentage"`
	TechnicalLossPct     float64   `json:"technical_loss_percentage" db:"technical_loss_percentage"`
	NonTechnicalLossPct  float64   `json:"non_technical_loss_percentage" db:"non_technical_loss_percentage"`
	Saidi                float64   `json:"saidi" db:"saidi"`
	Saifi                float64   `json:"saifi" db:"saifi"`
	MonthlyPurchasedKwh  float64   `json:"monthly_energy_purchased_kwh" db:"monthly_energy_purchased_kwh"`
	MonthlyBilledKwh     float64   `json:"monthly_energy_billed_kwh" db:"monthly_energy_billed_kwh"`
	RevenueLossAmount    float64   `json:"revenue_loss_amount" db:"revenue_loss_amount"`
	IsActive             bool      `json:"is_active" db:"is_active"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks required fields and the conservation invariants: energy
// billed can never exceed energy purchased, and the system loss percentage
// stays inside its regulatory range.
func (f *Feeder) Validate() error {
	if f.FeederID == "" {
		return &ValidationError{Field: "feeder_id", Message: "feeder_id is required"}
	}
	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if f.InstalledCapacityKva <= 0 {
		return &ValidationError{
			Field:   "installed_capacity_kva",
			Message: "installed_capacity_kva must be positive",
		}
	}
	if f.SystemLossPct < 0 || f.SystemLossPct > 20 {
		return &ValidationError{
			Field:   "system_loss_percentage",
			Message: "system_loss_percentage must be within [0,20]",
		}
	}
	if f.MonthlyPurchasedKwh < 0 {
		return &ValidationError{
			Field:   "monthly_energy_purchased_kwh",
			Message: "monthly_energy_purchased_kwh must be non-negative",
		}
	}
	if f.MonthlyBilledKwh < 0 {
		return &ValidationError{
			Field:   "monthly_energy_billed_kwh",
			Message: "monthly_energy_billed_kwh must be non-negative",
		}
	}
	if f.MonthlyBilledKwh > f.MonthlyPurchasedKwh {
		return &ValidationError{
			Field:   "monthly_energy_billed_kwh",
			Message: "monthly_energy_billed_kwh cannot exceed monthly_energy_purchased_kwh",
		}
	}
	return nil
}

// Transformer represents a distribution transformer owned by exactly one
// feeder. Risk fields are recomputed by every scoring pass.
type Transformer struct {
	TransformerID    string     `json:"transformer_id" db:"transformer_id"`
	FeederID         string     `json:"feeder_id" db:"feeder_id"`
	CapacityKva      float64    `json:"capacity_kva" db:"capacity_kva"`
	Latitude         float64    `json:"latitude" db:"latitude"`
	Longitude        float64    `json:"longitude" db:"longitude"`
	CustomerCount    int        `json:"connected_customer_count" db:"connected_customer_count"`
	MonthlyInputKwh  float64    `json:"monthly_input_kwh" db:"monthly_input_kwh"`
	MonthlyOutputKwh float64    `json:"monthly_output_kwh" db:"monthly_output_kwh"`
	TechnicalLossKwh float64    `json:"technical_loss_kwh" db:"technical_loss_kwh"`
	NonTechLossKwh   float64    `json:"non_technical_loss_kwh" db:"non_technical_loss_kwh"`
	LossPercentage   float64    `json:"loss_percentage" db:"loss_percentage"`
	RiskScore        *float64   `json:"risk_score,omitempty" db:"risk_score"`
	RiskLevel        *RiskLevel `json:"risk_level,omitempty" db:"risk_level"`
	AnomalyCount     int        `json:"anomaly_count" db:"anomaly_count"`
	LastInspectedAt  *time.Time `json:"last_inspected_at,omitempty" db:"last_inspected_at"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks required fields and that the transformer cannot claim to
// deliver more energy than it received.
func (t *Transformer) Validate() error {
	if t.TransformerID == "" {
		return &ValidationError{Field: "transformer_id", Message: "transformer_id is required"}
	}
	if t.FeederID == "" {
		return &ValidationError{Field: "feeder_id", Message: "feeder_id is required"}
	}
	if t.CapacityKva <= 0 {
		return &ValidationError{Field: "capacity_kva", Message: "capacity_kva must be positive"}
	}
	if t.MonthlyInputKwh < 0 {
		return &ValidationError{
			Field:   "monthly_input_kwh",
			Message: "monthly_input_kwh must be non-negative",
		}
	}
	if t.MonthlyOutputKwh < 0 {
		return &ValidationError{
			Field:   "monthly_output_kwh",
			Message: "monthly_output_kwh must be non-negative",
		}
	}
	if t.MonthlyOutputKwh > t.MonthlyInputKwh {
		return &ValidationError{
			Field:   "monthly_output_kwh",
			Message: "monthly_output_kwh cannot exceed monthly_input_kwh",
		}
	}
	return nil
}

// Customer represents a metered connection on a transformer.
// NULL risk fields mean the customer has never been scored.
type Customer struct {
	CustomerID            string            `json:"customer_id" db:"customer_id"`
	TransformerID         string            `json:"transformer_id" db:"transformer_id"`
	Type                  CustomerType      `json:"customer_type" db:"customer_type"`
	MeterType             string            `json:"meter_type" db:"meter_type"`
	RiskScore             *float64          `json:"risk_score,omitempty" db:"risk_score"`
	RiskLevel             *RiskLevel        `json:"risk_level,omitempty" db:"risk_level"`
	NTLConfidence         *float64          `json:"ntl_confidence,omitempty" db:"ntl_confidence"`
	HasMeterTamper        bool              `json:"has_meter_tamper" db:"has_meter_tamper"`
	HasBillingAnomaly     bool              `json:"has_billing_anomaly" db:"has_billing_anomaly"`
	HasConsumptionAnomaly bool              `json:"has_consumption_anomaly" db:"has_consumption_anomaly"`
	LastInspectedAt       *time.Time        `json:"last_inspected_at,omitempty" db:"last_inspected_at"`
	LastInspectionResult  *InspectionResult `json:"last_inspection_result,omitempty" db:"last_inspection_result"`
	IsActive              bool              `json:"is_active" db:"is_active"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// Validate checks required fields and the customer type enumeration.
func (c *Customer) Validate() error {
	if c.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "customer_id is required"}
	}
	if c.TransformerID == "" {
		return &ValidationError{Field: "transformer_id", Message: "transformer_id is required"}
	}
	switch c.Type {
	case CustomerResidential, CustomerCommercial, CustomerIndustrial:
	default:
		return &ValidationError{
			Field:   "customer_type",
			Value:   string(c.Type),
			Message: "customer_type must be one of residential, commercial, industrial",
		}
	}
	return nil
}

// ConsumptionReading is one billed month of consumption for a customer.
// Readings are immutable once written except for anomaly re-scoring; the
// (customer, period) pair is unique.
type ConsumptionReading struct {
	ID             int64     `json:"id" db:"id"`
	CustomerID     string    `json:"customer_id" db:"customer_id"`
	ReadingPeriod  time.Time `json:"reading_period" db:"reading_period"`
	KwhConsumed    float64   `json:"kwh_consumed" db:"kwh_consumed"`
	BillingAmount  float64   `json:"billing_amount" db:"billing_amount"`
	ExpectedKwh    *float64  `json:"expected_kwh,omitempty" db:"expected_kwh"`
	DeviationPct   *float64  `json:"deviation_percentage,omitempty" db:"deviation_percentage"`
	IsAnomaly      bool      `json:"is_anomaly" db:"is_anomaly"`
	AnomalyType    *string   `json:"anomaly_type,omitempty" db:"anomaly_type"`
	NTLProbability *float64  `json:"ntl_probability,omitempty" db:"ntl_probability"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the physical invariants of a reading before persistence.
func (r *ConsumptionReading) Validate() error {
	if r.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "customer_id is required"}
	}
	if r.ReadingPeriod.IsZero() {
		return &ValidationError{Field: "reading_period", Message: "reading_period is required"}
	}
	if r.KwhConsumed < 0 {
		return &ValidationError{
			Field:   "kwh_consumed",
			Message: "kwh_consumed must be non-negative",
		}
	}
	if r.NTLProbability != nil && (*r.NTLProbability < 0 || *r.NTLProbability > 100) {
		return &ValidationError{
			Field:   "ntl_probability",
			Message: "ntl_probability must be within [0,100]",
		}
	}
	return nil
}

// Inspection is one row of the append-only field-inspection audit trail.
// Rows are never mutated; corrections are recorded as new rows.
type Inspection struct {
	ID                 int64            `json:"id" db:"id"`
	CustomerID         string           `json:"customer_id" db:"customer_id"`
	InspectedAt        time.Time        `json:"inspected_at" db:"inspected_at"`
	Inspector          string           `json:"inspector" db:"inspector"`
	Result             InspectionResult `json:"result" db:"result"`
	ViolationType      *string          `json:"violation_type,omitempty" db:"violation_type"`
	EstimatedLossKwh   *float64         `json:"estimated_loss_kwh,omitempty" db:"estimated_loss_kwh"`
	EstimatedLossValue *float64         `json:"estimated_loss_amount,omitempty" db:"estimated_loss_amount"`
	RequiresFollowUp   bool             `json:"requires_follow_up" db:"requires_follow_up"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

// Validate checks required fields and the result enumeration.
func (i *Inspection) Validate() error {
	if i.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "customer_id is required"}
	}
	if i.Inspector == "" {
		return &ValidationError{Field: "inspector", Message: "inspector is required"}
	}
	switch i.Result {
	case InspectionClean, InspectionViolation, InspectionTheftConfirmed, InspectionMeterDefective:
	default:
		return &ValidationError{
			Field:   "result",
			Value:   string(i.Result),
			Message: "result must be one of clean, violation, theft_confirmed, meter_defective",
		}
	}
	return nil
}
