package models

import (
	"testing"
	"time"
)

func TestFeeder_Validate(t *testing.T) {
	valid := Feeder{
		FeederID:             "FD001",
		Name:                 "North Feeder",
		VoltageClass:         "11kV",
		InstalledCapacityKva: 5000,
		SystemLossPct:        8.5,
		MonthlyPurchasedKwh:  100000,
		MonthlyBilledKwh:     90000,
		IsActive:             true,
	}

	tests := []struct {
		name    string
		mutate  func(*Feeder)
		wantErr bool
	}{
		{"valid feeder", func(f *Feeder) {}, false},
		{"billed equal to purchased", func(f *Feeder) { f.MonthlyBilledKwh = f.MonthlyPurchasedKwh }, false},
		{"missing feeder id", func(f *Feeder) { f.FeederID = "" }, true},
		{"missing name", func(f *Feeder) { f.Name = "" }, true},
		{"zero capacity", func(f *Feeder) { f.InstalledCapacityKva = 0 }, true},
		{"negative system loss", func(f *Feeder) { f.SystemLossPct = -0.1 }, true},
		{"system loss above 20", func(f *Feeder) { f.SystemLossPct = 20.1 }, true},
		{"system loss at the cap", func(f *Feeder) { f.SystemLossPct = 20 }, false},
		{"negative purchased energy", func(f *Feeder) { f.MonthlyPurchasedKwh = -1 }, true},
		{"negative billed energy", func(f *Feeder) { f.MonthlyBilledKwh = -1 }, true},
		{
			"billed exceeds purchased",
			func(f *Feeder) {
				f.MonthlyPurchasedKwh = 100
				f.MonthlyBilledKwh = 200
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeder := valid
			tt.mutate(&feeder)

			err := feeder.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransformer_Validate(t *testing.T) {
	valid := Transformer{
		TransformerID:    "TX001",
		FeederID:         "FD001",
		CapacityKva:      500,
		MonthlyInputKwh:  50000,
		MonthlyOutputKwh: 48000,
		IsActive:         true,
	}

	tests := []struct {
		name    string
		mutate  func(*Transformer)
		wantErr bool
	}{
		{"valid transformer", func(tr *Transformer) {}, false},
		{"output equal to input", func(tr *Transformer) { tr.MonthlyOutputKwh = tr.MonthlyInputKwh }, false},
		{"missing transformer id", func(tr *Transformer) { tr.TransformerID = "" }, true},
		{"missing feeder id", func(tr *Transformer) { tr.FeederID = "" }, true},
		{"zero capacity", func(tr *Transformer) { tr.CapacityKva = 0 }, true},
		{"negative input", func(tr *Transformer) { tr.MonthlyInputKwh = -1 }, true},
		{"negative output", func(tr *Transformer) { tr.MonthlyOutputKwh = -1 }, true},
		{"output exceeds input", func(tr *Transformer) { tr.MonthlyOutputKwh = tr.MonthlyInputKwh + 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transformer := valid
			tt.mutate(&transformer)

			err := transformer.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCustomer_Validate(t *testing.T) {
	valid := Customer{
		CustomerID:    "CU001",
		TransformerID: "TX001",
		Type:          CustomerResidential,
		MeterType:     "digital",
		IsActive:      true,
	}

	tests := []struct {
		name    string
		mutate  func(*Customer)
		wantErr bool
	}{
		{"valid customer", func(c *Customer) {}, false},
		{"industrial type", func(c *Customer) { c.Type = CustomerIndustrial }, false},
		{"missing customer id", func(c *Customer) { c.CustomerID = "" }, true},
		{"missing transformer id", func(c *Customer) { c.TransformerID = "" }, true},
		{"unknown type", func(c *Customer) { c.Type = "agricultural" }, true},
		{"empty type", func(c *Customer) { c.Type = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customer := valid
			tt.mutate(&customer)

			err := customer.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConsumptionReading_Validate(t *testing.T) {
	valid := ConsumptionReading{
		CustomerID:    "CU001",
		ReadingPeriod: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		KwhConsumed:   250,
	}

	tests := []struct {
		name    string
		mutate  func(*ConsumptionReading)
		wantErr bool
	}{
		{"valid reading", func(r *ConsumptionReading) {}, false},
		{"zero consumption is legitimate", func(r *ConsumptionReading) { r.KwhConsumed = 0 }, false},
		{"missing customer", func(r *ConsumptionReading) { r.CustomerID = "" }, true},
		{"missing period", func(r *ConsumptionReading) { r.ReadingPeriod = time.Time{} }, true},
		{"negative consumption", func(r *ConsumptionReading) { r.KwhConsumed = -1 }, true},
		{
			"probability above range",
			func(r *ConsumptionReading) {
				p := 101.0
				r.NTLProbability = &p
			},
			true,
		},
		{
			"probability within range",
			func(r *ConsumptionReading) {
				p := 87.5
				r.NTLProbability = &p
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading := valid
			tt.mutate(&reading)

			err := reading.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInspection_Validate(t *testing.T) {
	valid := Inspection{
		CustomerID:  "CU001",
		InspectedAt: time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC),
		Inspector:   "field-team-7",
		Result:      InspectionTheftConfirmed,
	}

	tests := []struct {
		name    string
		mutate  func(*Inspection)
		wantErr bool
	}{
		{"valid inspection", func(i *Inspection) {}, false},
		{"clean result", func(i *Inspection) { i.Result = InspectionClean }, false},
		{"missing customer", func(i *Inspection) { i.CustomerID = "" }, true},
		{"missing inspector", func(i *Inspection) { i.Inspector = "" }, true},
		{"unknown result", func(i *Inspection) { i.Result = "inconclusive" }, true},
		{"empty result", func(i *Inspection) { i.Result = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspection := valid
			tt.mutate(&inspection)

			err := inspection.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
