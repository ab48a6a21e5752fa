package balance

import (
	"math"
	"testing"

	"ntl-platform/internal/models"
)

func testPeriod() models.Period {
	return models.Period{Year: 2026, Month: 7}
}

func TestValidateTransformer(t *testing.T) {
	v := NewValidator(DefaultConfig())

	tests := []struct {
		name          string
		reading       TransformerReading
		wantStatus    Status
		wantUnexpl    float64
		wantRatio     float64
		checkCapacity bool
	}{
		{
			name: "critical theft cluster",
			reading: TransformerReading{
				TransformerID:    "TX001",
				Period:           testPeriod(),
				InputKwh:         50000,
				CustomerKwh:      38000,
				TechnicalLossKwh: 1000,
				MeteredCustomers: 40,
				CapacityKva:      500,
			},
			wantStatus: StatusCritical,
			wantUnexpl: 11000,
			wantRatio:  0.22,
		},
		{
			name: "warning band",
			reading: TransformerReading{
				TransformerID:    "TX002",
				Period:           testPeriod(),
				InputKwh:         10000,
				CustomerKwh:      8500,
				TechnicalLossKwh: 300,
				MeteredCustomers: 12,
				CapacityKva:      100,
			},
			wantStatus: StatusWarning,
			wantUnexpl: 1200,
			wantRatio:  0.12,
		},
		{
			name: "within expected envelope",
			reading: TransformerReading{
				TransformerID:    "TX003",
				Period:           testPeriod(),
				InputKwh:         10000,
				CustomerKwh:      9400,
				TechnicalLossKwh: 200,
				MeteredCustomers: 12,
				CapacityKva:      100,
			},
			wantStatus: StatusOK,
			wantUnexpl: 400,
			wantRatio:  0.04,
		},
		{
			name: "output exceeds input",
			reading: TransformerReading{
				TransformerID:    "TX004",
				Period:           testPeriod(),
				InputKwh:         10000,
				CustomerKwh:      10500,
				TechnicalLossKwh: 200,
				MeteredCustomers: 12,
				CapacityKva:      100,
			},
			wantStatus: StatusError,
			wantUnexpl: -700,
			wantRatio:  -0.07,
		},
		{
			name: "exactly at warning threshold stays ok",
			reading: TransformerReading{
				TransformerID:    "TX005",
				Period:           testPeriod(),
				InputKwh:         10000,
				CustomerKwh:      8800,
				TechnicalLossKwh: 200,
				MeteredCustomers: 5,
				CapacityKva:      100,
			},
			wantStatus: StatusOK,
			wantUnexpl: 1000,
			wantRatio:  0.10,
		},
		{
			name: "no customer readings",
			reading: TransformerReading{
				TransformerID:    "TX006",
				Period:           testPeriod(),
				InputKwh:         10000,
				CustomerKwh:      0,
				TechnicalLossKwh: 200,
				MeteredCustomers: 0,
				CapacityKva:      100,
			},
			wantStatus: StatusInsufficientData,
		},
		{
			name: "output beyond rated ceiling",
			reading: TransformerReading{
				TransformerID:    "TX007",
				Period:           testPeriod(),
				InputKwh:         70000,
				CustomerKwh:      60000,
				TechnicalLossKwh: 500,
				MeteredCustomers: 30,
				CapacityKva:      100, // ceiling = 100 * 0.8 * 730 = 58400
			},
			wantStatus:    StatusError,
			checkCapacity: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.ValidateTransformer(tt.reading)

			if report.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", report.Status, tt.wantStatus)
			}

			if tt.checkCapacity {
				if report.Capacity == nil {
					t.Fatal("Capacity should not be nil for an overload")
				}
				if report.Capacity.CeilingKwh != 58400 {
					t.Errorf("CeilingKwh = %v, want %v", report.Capacity.CeilingKwh, 58400.0)
				}
				return
			}

			if tt.wantStatus == StatusInsufficientData {
				if report.UnexplainedKwh != 0 {
					t.Errorf("UnexplainedKwh = %v, want 0 without readings", report.UnexplainedKwh)
				}
				return
			}

			if report.UnexplainedKwh != tt.wantUnexpl {
				t.Errorf("UnexplainedKwh = %v, want %v", report.UnexplainedKwh, tt.wantUnexpl)
			}
			if math.Abs(report.UnexplainedRatio-tt.wantRatio) > 1e-9 {
				t.Errorf("UnexplainedRatio = %v, want %v", report.UnexplainedRatio, tt.wantRatio)
			}
		})
	}
}

func TestValidateTransformer_Deterministic(t *testing.T) {
	v := NewValidator(DefaultConfig())
	reading := TransformerReading{
		TransformerID:    "TX001",
		Period:           testPeriod(),
		InputKwh:         50000,
		CustomerKwh:      38000,
		TechnicalLossKwh: 1000,
		MeteredCustomers: 40,
		CapacityKva:      500,
	}

	first := v.ValidateTransformer(reading)
	second := v.ValidateTransformer(reading)

	if first.Status != second.Status || first.UnexplainedKwh != second.UnexplainedKwh {
		t.Errorf("re-validation diverged: %+v vs %+v", first, second)
	}
}

func TestCheckCapacity(t *testing.T) {
	v := NewValidator(DefaultConfig())

	if got := v.CheckCapacity(58400, 100); got != nil {
		t.Errorf("output at the ceiling should pass, got %+v", got)
	}
	if got := v.CheckCapacity(58401, 100); got == nil {
		t.Error("output above the ceiling should be a violation")
	}
	if got := v.CheckCapacity(1e9, 0); got != nil {
		t.Error("unknown rating should skip the check")
	}
}

func TestValidateFeeder(t *testing.T) {
	v := NewValidator(DefaultConfig())

	tests := []struct {
		name       string
		reading    FeederReading
		wantStatus FeederStatus
		wantDiscr  float64
	}{
		{
			name: "discrepancy above tolerance",
			reading: FeederReading{
				FeederID:            "FD001",
				Period:              testPeriod(),
				PurchasedKwh:        100000,
				TransformerInputKwh: 85000,
				MeteredTransformers: 8,
			},
			wantStatus: FeederDataIntegrityWarning,
			wantDiscr:  15000,
		},
		{
			name: "negative discrepancy above tolerance",
			reading: FeederReading{
				FeederID:            "FD002",
				Period:              testPeriod(),
				PurchasedKwh:        85000,
				TransformerInputKwh: 100000,
				MeteredTransformers: 8,
			},
			wantStatus: FeederDataIntegrityWarning,
			wantDiscr:  -15000,
		},
		{
			name: "within tolerance",
			reading: FeederReading{
				FeederID:            "FD003",
				Period:              testPeriod(),
				PurchasedKwh:        100000,
				TransformerInputKwh: 95000,
				MeteredTransformers: 8,
			},
			wantStatus: FeederOK,
			wantDiscr:  5000,
		},
		{
			name: "no transformer inputs",
			reading: FeederReading{
				FeederID:            "FD004",
				Period:              testPeriod(),
				PurchasedKwh:        100000,
				TransformerInputKwh: 0,
				MeteredTransformers: 0,
			},
			wantStatus: FeederInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.ValidateFeeder(tt.reading)

			if report.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", report.Status, tt.wantStatus)
			}
			if tt.wantStatus != FeederInsufficientData && report.DiscrepancyKwh != tt.wantDiscr {
				t.Errorf("DiscrepancyKwh = %v, want %v", report.DiscrepancyKwh, tt.wantDiscr)
			}
		})
	}
}

func TestNewValidator_RejectsBadThresholds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for inverted thresholds")
		}
	}()

	NewValidator(Config{
		WarningLossRatio:     0.15,
		CriticalLossRatio:    0.10,
		FeederDiscrepancyKwh: 10000,
		CapacityLoadFactor:   0.8,
		HoursPerMonth:        730,
	})
}
