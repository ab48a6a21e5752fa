package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ntl-platform/internal/models"
	"ntl-platform/pkg/database"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// GridRepository provides data access for the feeder/transformer/customer
// hierarchy and its readings.
type GridRepository interface {
	// Feeder operations
	CreateFeeder(ctx context.Context, feeder *models.Feeder) error
	GetFeeder(ctx context.Context, feederID string) (*models.Feeder, error)
	ListFeeders(ctx context.Context, limit, offset int) ([]*models.Feeder, int, error)

	// Transformer operations
	CreateTransformer(ctx context.Context, transformer *models.Transformer) error
	GetTransformer(ctx context.Context, transformerID string) (*models.Transformer, error)
	ListTransformersByFeeder(ctx context.Context, feederID string, limit, offset int) ([]*models.Transformer, int, error)
	SumTransformerInput(ctx context.Context, feederID string) (float64, int, error)
	UpdateTransformerRisk(ctx context.Context, update TransformerRiskUpdate) error

	// Customer operations
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	ListCustomersByTransformer(ctx context.Context, transformerID string, limit, offset int) ([]*models.Customer, int, error)
	UpdateCustomerRisk(ctx context.Context, update CustomerRiskUpdate) error
	ListScoredCustomers(ctx context.Context, minLevel models.RiskLevel) ([]*HotlistCandidate, error)

	// Reading operations
	CreateReading(ctx context.Context, reading *models.ConsumptionReading) error
	CreateReadingsBatch(ctx context.Context, readings []*models.ConsumptionReading) error
	GetReadings(ctx context.Context, filter ReadingFilter) ([]*models.ConsumptionReading, int, error)
	GetCustomerHistory(ctx context.Context, customerID string, end models.Period, months int) ([]*models.ConsumptionReading, error)
	SumCustomerConsumption(ctx context.Context, transformerID string, period models.Period) (float64, int, error)

	// Inspection operations
	CreateInspection(ctx context.Context, inspection *models.Inspection) error
	ListInspections(ctx context.Context, customerID string, limit, offset int) ([]*models.Inspection, int, error)

	// Snapshot for the scoring pass
	LoadSnapshot(ctx context.Context, period models.Period, historyMonths int) (*Snapshot, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// TransformerRiskUpdate carries the recomputed risk fields persisted after a
// scoring pass.
type TransformerRiskUpdate struct {
	TransformerID  string
	RiskScore      float64
	RiskLevel      models.RiskLevel
	LossPercentage float64
	NonTechLossKwh float64
	AnomalyCount   int
}

// CustomerRiskUpdate carries the recomputed customer risk fields.
type CustomerRiskUpdate struct {
	CustomerID            string
	RiskScore             float64
	RiskLevel             models.RiskLevel
	NTLConfidence         *float64
	EstimatedLossKwh      float64
	EstimatedLossAmount   float64
	HasConsumptionAnomaly bool
}

// HotlistCandidate is a scored customer joined with its hierarchy, the raw
// material of the hotlist ranker.
type HotlistCandidate struct {
	CustomerID          string           `db:"customer_id"`
	TransformerID       string           `db:"transformer_id"`
	FeederID            string           `db:"feeder_id"`
	RiskScore           float64          `db:"risk_score"`
	RiskLevel           models.RiskLevel `db:"risk_level"`
	NTLConfidence       *float64         `db:"ntl_confidence"`
	EstimatedLossKwh    float64          `db:"estimated_loss_kwh"`
	EstimatedLossAmount float64          `db:"estimated_loss_amount"`
}

// ReadingFilter defines filters for querying consumption readings.
type ReadingFilter struct {
	CustomerID  *string
	StartPeriod *time.Time
	EndPeriod   *time.Time
	Limit       int
	Offset      int
}

// Snapshot is a consistent view of the grid loaded in one repeatable-read
// transaction, so every balance computation of a pass sees the same data.
type Snapshot struct {
	Period                 models.Period
	Feeders                []*models.Feeder
	TransformersByFeeder   map[string][]*models.Transformer
	CustomersByTransformer map[string][]*models.Customer
	ReadingsByCustomer     map[string][]*models.ConsumptionReading
}

// gridRepository implements GridRepository
type gridRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewGridRepository creates a new grid repository
func NewGridRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) GridRepository {
	return &gridRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateFeeder creates a new feeder
func (r *gridRepository) CreateFeeder(ctx context.Context, feeder *models.Feeder) error {
	if err := feeder.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO feeders (
			feeder_id, name, voltage_class, installed_capacity_kva, peak_load_kw,
			system_loss_percentage, technical_loss_percentage, non_technical_loss_percentage,
			saidi, saifi, monthly_energy_purchased_kwh, monthly_energy_billed_kwh,
			revenue_loss_amount, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (feeder_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "insert_feeder", query,
		feeder.FeederID,
		feeder.Name,
		feeder.VoltageClass,
		feeder.InstalledCapacityKva,
		feeder.PeakLoadKw,
		feeder.SystemLossPct,
		feeder.TechnicalLossPct,
		feeder.NonTechnicalLossPct,
		feeder.Saidi,
		feeder.Saifi,
		feeder.MonthlyPurchasedKwh,
		feeder.MonthlyBilledKwh,
		feeder.RevenueLossAmount,
		feeder.IsActive,
		feeder.CreatedAt,
		feeder.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create feeder: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_CREATE_FEEDER] Feeder created", logging.Fields{
		"feeder_id": feeder.FeederID,
	})

	return nil
}

// GetFeeder retrieves a feeder by ID
func (r *gridRepository) GetFeeder(ctx context.Context, feederID string) (*models.Feeder, error) {
	query := `
		SELECT feeder_id, name, voltage_class, installed_capacity_kva, peak_load_kw,
		       system_loss_percentage, technical_loss_percentage, non_technical_loss_percentage,
		       saidi, saifi, monthly_energy_purchased_kwh, monthly_energy_billed_kwh,
		       revenue_loss_amount, is_active, created_at, updated_at
		FROM feeders
		WHERE feeder_id = $1
	`

	var feeder models.Feeder
	err := r.db.GetContext(ctx, "get_feeder", &feeder, query, feederID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "feeder", ID: feederID}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get feeder: %w", err)
	}

	return &feeder, nil
}

// ListFeeders retrieves feeders with pagination
func (r *gridRepository) ListFeeders(ctx context.Context, limit, offset int) ([]*models.Feeder, int, error) {
	var totalCount int
	err := r.db.GetContext(ctx, "count_feeders", &totalCount,
		`SELECT COUNT(*) FROM feeders WHERE is_active = TRUE`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count feeders: %w", err)
	}

	query := `
		SELECT feeder_id, name, voltage_class, installed_capacity_kva, peak_load_kw,
		       system_loss_percentage, technical_loss_percentage, non_technical_loss_percentage,
		       saidi, saifi, monthly_energy_purchased_kwh, monthly_energy_billed_kwh,
		       revenue_loss_amount, is_active, created_at, updated_at
		FROM feeders
		WHERE is_active = TRUE
		ORDER BY feeder_id
		LIMIT $1 OFFSET $2
	`

	var feeders []*models.Feeder
	err = r.db.SelectContext(ctx, "list_feeders", &feeders, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feeders: %w", err)
	}

	return feeders, totalCount, nil
}

// CreateTransformer creates a new transformer
func (r *gridRepository) CreateTransformer(ctx context.Context, transformer *models.Transformer) error {
	if err := transformer.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO transformers (
			transformer_id, feeder_id, capacity_kva, latitude, longitude,
			connected_customer_count, monthly_input_kwh, monthly_output_kwh,
			technical_loss_kwh, non_technical_loss_kwh, loss_percentage,
			anomaly_count, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (transformer_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "insert_transformer", query,
		transformer.TransformerID,
		transformer.FeederID,
		transformer.CapacityKva,
		transformer.Latitude,
		transformer.Longitude,
		transformer.CustomerCount,
		transformer.MonthlyInputKwh,
		transformer.MonthlyOutputKwh,
		transformer.TechnicalLossKwh,
		transformer.NonTechLossKwh,
		transformer.LossPercentage,
		transformer.AnomalyCount,
		transformer.IsActive,
		transformer.CreatedAt,
		transformer.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transformer: %w", err)
	}

	return nil
}

// GetTransformer retrieves a transformer by ID
func (r *gridRepository) GetTransformer(ctx context.Context, transformerID string) (*models.Transformer, error) {
	query := `
		SELECT transformer_id, feeder_id, capacity_kva, latitude, longitude,
		       connected_customer_count, monthly_input_kwh, monthly_output_kwh,
		       technical_loss_kwh, non_technical_loss_kwh, loss_percentage,
		       risk_score, risk_level, anomaly_count, last_inspected_at,
		       is_active, created_at, updated_at
		FROM transformers
		WHERE transformer_id = $1
	`

	var transformer models.Transformer
	err := r.db.GetContext(ctx, "get_transformer", &transformer, query, transformerID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "transformer", ID: transformerID}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get transformer: %w", err)
	}

	return &transformer, nil
}

// ListTransformersByFeeder retrieves a feeder's transformers with pagination
func (r *gridRepository) ListTransformersByFeeder(ctx context.Context, feederID string, limit, offset int) ([]*models.Transformer, int, error) {
	var totalCount int
	err := r.db.GetContext(ctx, "count_transformers", &totalCount,
		`SELECT COUNT(*) FROM transformers WHERE feeder_id = $1 AND is_active = TRUE`, feederID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transformers: %w", err)
	}

	query := `
		SELECT transformer_id, feeder_id, capacity_kva, latitude, longitude,
		       connected_customer_count, monthly_input_kwh, monthly_output_kwh,
		       technical_loss_kwh, non_technical_loss_kwh, loss_percentage,
		       risk_score, risk_level, anomaly_count, last_inspected_at,
		       is_active, created_at, updated_at
		FROM transformers
		WHERE feeder_id = $1 AND is_active = TRUE
		ORDER BY transformer_id
		LIMIT $2 OFFSET $3
	`

	var transformers []*models.Transformer
	err = r.db.SelectContext(ctx, "list_transformers", &transformers, query, feederID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transformers: %w", err)
	}

	return transformers, totalCount, nil
}

// SumTransformerInput sums the monthly input of a feeder's active
// transformers and counts how many reported a positive input.
func (r *gridRepository) SumTransformerInput(ctx context.Context, feederID string) (float64, int, error) {
	query := `
		SELECT COALESCE(SUM(monthly_input_kwh), 0) AS total_input,
		       COUNT(*) FILTER (WHERE monthly_input_kwh > 0) AS metered_count
		FROM transformers
		WHERE feeder_id = $1 AND is_active = TRUE
	`

	var result struct {
		TotalInput   float64 `db:"total_input"`
		MeteredCount int     `db:"metered_count"`
	}

	err := r.db.GetContext(ctx, "sum_transformer_input", &result, query, feederID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum transformer input: %w", err)
	}

	return result.TotalInput, result.MeteredCount, nil
}

// UpdateTransformerRisk persists recomputed risk fields after a scoring pass
func (r *gridRepository) UpdateTransformerRisk(ctx context.Context, update TransformerRiskUpdate) error {
	query := `
		UPDATE transformers
		SET risk_score = $2,
		    risk_level = $3,
		    loss_percentage = $4,
		    non_technical_loss_kwh = $5,
		    anomaly_count = $6,
		    updated_at = NOW()
		WHERE transformer_id = $1
	`

	result, err := r.db.ExecContext(ctx, "update_transformer_risk", query,
		update.TransformerID,
		update.RiskScore,
		update.RiskLevel,
		update.LossPercentage,
		update.NonTechLossKwh,
		update.AnomalyCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update transformer risk: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Resource: "transformer", ID: update.TransformerID}
	}

	return nil
}

// CreateCustomer creates a new customer
func (r *gridRepository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO customers (
			customer_id, transformer_id, customer_type, meter_type,
			has_meter_tamper, has_billing_anomaly, has_consumption_anomaly,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "insert_customer", query,
		customer.CustomerID,
		customer.TransformerID,
		customer.Type,
		customer.MeterType,
		customer.HasMeterTamper,
		customer.HasBillingAnomaly,
		customer.HasConsumptionAnomaly,
		customer.IsActive,
		customer.CreatedAt,
		customer.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

// GetCustomer retrieves a customer by ID
func (r *gridRepository) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	query := `
		SELECT customer_id, transformer_id, customer_type, meter_type,
		       risk_score, risk_level, ntl_confidence,
		       has_meter_tamper, has_billing_anomaly, has_consumption_anomaly,
		       last_inspected_at, last_inspection_result,
		       is_active, created_at, updated_at
		FROM customers
		WHERE customer_id = $1
	`

	var customer models.Customer
	err := r.db.GetContext(ctx, "get_customer", &customer, query, customerID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "customer", ID: customerID}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return &customer, nil
}

// ListCustomersByTransformer retrieves a transformer's customers with pagination
func (r *gridRepository) ListCustomersByTransformer(ctx context.Context, transformerID string, limit, offset int) ([]*models.Customer, int, error) {
	var totalCount int
	err := r.db.GetContext(ctx, "count_customers", &totalCount,
		`SELECT COUNT(*) FROM customers WHERE transformer_id = $1 AND is_active = TRUE`, transformerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	query := `
		SELECT customer_id, transformer_id, customer_type, meter_type,
		       risk_score, risk_level, ntl_confidence,
		       has_meter_tamper, has_billing_anomaly, has_consumption_anomaly,
		       last_inspected_at, last_inspection_result,
		       is_active, created_at, updated_at
		FROM customers
		WHERE transformer_id = $1 AND is_active = TRUE
		ORDER BY customer_id
		LIMIT $2 OFFSET $3
	`

	var customers []*models.Customer
	err = r.db.SelectContext(ctx, "list_customers", &customers, query, transformerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	return customers, totalCount, nil
}

// UpdateCustomerRisk persists recomputed customer risk fields
func (r *gridRepository) UpdateCustomerRisk(ctx context.Context, update CustomerRiskUpdate) error {
	query := `
		UPDATE customers
		SET risk_score = $2,
		    risk_level = $3,
		    ntl_confidence = $4,
		    estimated_loss_kwh = $5,
		    estimated_loss_amount = $6,
		    has_consumption_anomaly = $7,
		    updated_at = NOW()
		WHERE customer_id = $1
	`

	result, err := r.db.ExecContext(ctx, "update_customer_risk", query,
		update.CustomerID,
		update.RiskScore,
		update.RiskLevel,
		update.NTLConfidence,
		update.EstimatedLossKwh,
		update.EstimatedLossAmount,
		update.HasConsumptionAnomaly,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer risk: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Resource: "customer", ID: update.CustomerID}
	}

	return nil
}

// ListScoredCustomers retrieves all scored active customers at or above the
// given risk level, joined with their hierarchy. Ordering here is only a
// stable input order, and the level filter only trims data volume; the
// ranker owns the priority ordering and re-applies the level floor.
func (r *gridRepository) ListScoredCustomers(ctx context.Context, minLevel models.RiskLevel) ([]*HotlistCandidate, error) {
	query := `
		SELECT c.customer_id, c.transformer_id, t.feeder_id,
		       c.risk_score, c.risk_level, c.ntl_confidence,
		       c.estimated_loss_kwh, c.estimated_loss_amount
		FROM customers c
		JOIN transformers t ON t.transformer_id = c.transformer_id
		WHERE c.is_active = TRUE
		  AND c.risk_score IS NOT NULL
		  AND CASE c.risk_level
		        WHEN 'critical' THEN 4
		        WHEN 'high' THEN 3
		        WHEN 'medium' THEN 2
		        WHEN 'low' THEN 1
		        ELSE 0
		      END >= $1
		ORDER BY c.customer_id
	`

	var candidates []*HotlistCandidate
	err := r.db.SelectContext(ctx, "list_scored_customers", &candidates, query, minLevel.Rank())
	if err != nil {
		return nil, fmt.Errorf("failed to list scored customers: %w", err)
	}

	return candidates, nil
}

// CreateReading creates a single consumption reading
func (r *gridRepository) CreateReading(ctx context.Context, reading *models.ConsumptionReading) error {
	if err := reading.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO consumption_readings (
			customer_id, reading_period, kwh_consumed, billing_amount,
			expected_kwh, deviation_percentage, is_anomaly, anomaly_type,
			ntl_probability, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id, reading_period) DO UPDATE SET
			is_anomaly = EXCLUDED.is_anomaly,
			anomaly_type = EXCLUDED.anomaly_type,
			ntl_probability = EXCLUDED.ntl_probability
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		reading.CustomerID,
		reading.ReadingPeriod,
		reading.KwhConsumed,
		reading.BillingAmount,
		reading.ExpectedKwh,
		reading.DeviationPct,
		reading.IsAnomaly,
		reading.AnomalyType,
		reading.NTLProbability,
		reading.CreatedAt,
	).Scan(&reading.ID)

	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	return nil
}

// CreateReadingsBatch creates multiple readings in a single transaction.
// Readings are immutable once written; the conflict clause only permits
// anomaly re-scoring, never consumption rewrites.
func (r *gridRepository) CreateReadingsBatch(ctx context.Context, readings []*models.ConsumptionReading) error {
	if len(readings) == 0 {
		return nil
	}

	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			return err
		}
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(readings),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO consumption_readings (
			customer_id, reading_period, kwh_consumed, billing_amount,
			expected_kwh, deviation_percentage, is_anomaly, anomaly_type,
			ntl_probability, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id, reading_period) DO UPDATE SET
			is_anomaly = EXCLUDED.is_anomaly,
			anomaly_type = EXCLUDED.anomaly_type,
			ntl_probability = EXCLUDED.ntl_probability
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, reading := range readings {
		_, err := stmt.ExecContext(ctx,
			reading.CustomerID,
			reading.ReadingPeriod,
			reading.KwhConsumed,
			reading.BillingAmount,
			reading.ExpectedKwh,
			reading.DeviationPct,
			reading.IsAnomaly,
			reading.AnomalyType,
			reading.NTLProbability,
			reading.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetReadings retrieves consumption readings with filtering and pagination
func (r *gridRepository) GetReadings(ctx context.Context, filter ReadingFilter) ([]*models.ConsumptionReading, int, error) {
	query := `
		SELECT id, customer_id, reading_period, kwh_consumed, billing_amount,
		       expected_kwh, deviation_percentage, is_anomaly, anomaly_type,
		       ntl_probability, created_at
		FROM consumption_readings
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argNum)
		args = append(args, *filter.CustomerID)
		argNum++
	}

	if filter.StartPeriod != nil {
		query += fmt.Sprintf(" AND reading_period >= $%d", argNum)
		args = append(args, *filter.StartPeriod)
		argNum++
	}

	if filter.EndPeriod != nil {
		query += fmt.Sprintf(" AND reading_period <= $%d", argNum)
		args = append(args, *filter.EndPeriod)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_readings", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count readings: %w", err)
	}

	query += " ORDER BY reading_period DESC, customer_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var readings []*models.ConsumptionReading
	err = r.db.SelectContext(ctx, "get_readings", &readings, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get readings: %w", err)
	}

	return readings, totalCount, nil
}

// GetCustomerHistory retrieves up to `months` readings ending at the given
// period, oldest first, the shape the scorer consumes.
func (r *gridRepository) GetCustomerHistory(ctx context.Context, customerID string, end models.Period, months int) ([]*models.ConsumptionReading, error) {
	start := end.AddMonths(-(months - 1))

	query := `
		SELECT id, customer_id, reading_period, kwh_consumed, billing_amount,
		       expected_kwh, deviation_percentage, is_anomaly, anomaly_type,
		       ntl_probability, created_at
		FROM consumption_readings
		WHERE customer_id = $1
		  AND reading_period >= $2
		  AND reading_period <= $3
		ORDER BY reading_period ASC
	`

	var readings []*models.ConsumptionReading
	err := r.db.SelectContext(ctx, "get_customer_history", &readings, query,
		customerID, start.Start(), end.Start())
	if err != nil {
		return nil, fmt.Errorf("failed to get customer history: %w", err)
	}

	return readings, nil
}

// SumCustomerConsumption sums a transformer's customers' consumption for one
// billing period and counts how many customers contributed a reading. The
// count lets the validator distinguish missing data from zero consumption.
func (r *gridRepository) SumCustomerConsumption(ctx context.Context, transformerID string, period models.Period) (float64, int, error) {
	query := `
		SELECT COALESCE(SUM(cr.kwh_consumed), 0) AS total_kwh,
		       COUNT(cr.id) AS metered_count
		FROM customers c
		LEFT JOIN consumption_readings cr
		  ON cr.customer_id = c.customer_id AND cr.reading_period = $2
		WHERE c.transformer_id = $1 AND c.is_active = TRUE
	`

	var result struct {
		TotalKwh     float64 `db:"total_kwh"`
		MeteredCount int     `db:"metered_count"`
	}

	err := r.db.GetContext(ctx, "sum_customer_consumption", &result, query, transformerID, period.Start())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum customer consumption: %w", err)
	}

	return result.TotalKwh, result.MeteredCount, nil
}

// CreateInspection appends an inspection row and updates the customer's
// last-inspection fields in the same transaction. Inspection rows are never
// mutated afterwards.
func (r *gridRepository) CreateInspection(ctx context.Context, inspection *models.Inspection) error {
	if err := inspection.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO inspections (
			customer_id, inspected_at, inspector, result, violation_type,
			estimated_loss_kwh, estimated_loss_amount, requires_follow_up, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		inspection.CustomerID,
		inspection.InspectedAt,
		inspection.Inspector,
		inspection.Result,
		inspection.ViolationType,
		inspection.EstimatedLossKwh,
		inspection.EstimatedLossValue,
		inspection.RequiresFollowUp,
		inspection.CreatedAt,
	).Scan(&inspection.ID)
	if err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET last_inspected_at = $2,
		    last_inspection_result = $3,
		    updated_at = NOW()
		WHERE customer_id = $1
	`, inspection.CustomerID, inspection.InspectedAt, inspection.Result)
	if err != nil {
		return fmt.Errorf("failed to update customer inspection fields: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Resource: "customer", ID: inspection.CustomerID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListInspections retrieves a customer's inspection history, newest first
func (r *gridRepository) ListInspections(ctx context.Context, customerID string, limit, offset int) ([]*models.Inspection, int, error) {
	var totalCount int
	err := r.db.GetContext(ctx, "count_inspections", &totalCount,
		`SELECT COUNT(*) FROM inspections WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count inspections: %w", err)
	}

	query := `
		SELECT id, customer_id, inspected_at, inspector, result, violation_type,
		       estimated_loss_kwh, estimated_loss_amount, requires_follow_up, created_at
		FROM inspections
		WHERE customer_id = $1
		ORDER BY inspected_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var inspections []*models.Inspection
	err = r.db.SelectContext(ctx, "list_inspections", &inspections, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}

	return inspections, totalCount, nil
}

// LoadSnapshot loads the active grid hierarchy and reading history for a
// pass in a single repeatable-read transaction.
func (r *gridRepository) LoadSnapshot(ctx context.Context, period models.Period, historyMonths int) (*Snapshot, error) {
	tx, err := r.db.BeginSnapshotTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snapshot := &Snapshot{
		Period:                 period,
		TransformersByFeeder:   make(map[string][]*models.Transformer),
		CustomersByTransformer: make(map[string][]*models.Customer),
		ReadingsByCustomer:     make(map[string][]*models.ConsumptionReading),
	}

	err = tx.SelectContext(ctx, &snapshot.Feeders, `
		SELECT feeder_id, name, voltage_class, installed_capacity_kva, peak_load_kw,
		       system_loss_percentage, technical_loss_percentage, non_technical_loss_percentage,
		       saidi, saifi, monthly_energy_purchased_kwh, monthly_energy_billed_kwh,
		       revenue_loss_amount, is_active, created_at, updated_at
		FROM feeders
		WHERE is_active = TRUE
		ORDER BY feeder_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load feeders: %w", err)
	}

	var transformers []*models.Transformer
	err = tx.SelectContext(ctx, &transformers, `
		SELECT transformer_id, feeder_id, capacity_kva, latitude, longitude,
		       connected_customer_count, monthly_input_kwh, monthly_output_kwh,
		       technical_loss_kwh, non_technical_loss_kwh, loss_percentage,
		       risk_score, risk_level, anomaly_count, last_inspected_at,
		       is_active, created_at, updated_at
		FROM transformers
		WHERE is_active = TRUE
		ORDER BY transformer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load transformers: %w", err)
	}
	for _, t := range transformers {
		snapshot.TransformersByFeeder[t.FeederID] = append(snapshot.TransformersByFeeder[t.FeederID], t)
	}

	var customers []*models.Customer
	err = tx.SelectContext(ctx, &customers, `
		SELECT customer_id, transformer_id, customer_type, meter_type,
		       risk_score, risk_level, ntl_confidence,
		       has_meter_tamper, has_billing_anomaly, has_consumption_anomaly,
		       last_inspected_at, last_inspection_result,
		       is_active, created_at, updated_at
		FROM customers
		WHERE is_active = TRUE
		ORDER BY customer_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	for _, c := range customers {
		snapshot.CustomersByTransformer[c.TransformerID] = append(snapshot.CustomersByTransformer[c.TransformerID], c)
	}

	start := period.AddMonths(-(historyMonths - 1))
	var readings []*models.ConsumptionReading
	err = tx.SelectContext(ctx, &readings, `
		SELECT id, customer_id, reading_period, kwh_consumed, billing_amount,
		       expected_kwh, deviation_percentage, is_anomaly, anomaly_type,
		       ntl_probability, created_at
		FROM consumption_readings
		WHERE reading_period >= $1 AND reading_period <= $2
		ORDER BY customer_id, reading_period ASC
	`, start.Start(), period.Start())
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}
	for _, reading := range readings {
		snapshot.ReadingsByCustomer[reading.CustomerID] = append(snapshot.ReadingsByCustomer[reading.CustomerID], reading)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_SNAPSHOT] Snapshot loaded", logging.Fields{
		"period":       period.String(),
		"feeders":      len(snapshot.Feeders),
		"transformers": len(transformers),
		"customers":    len(customers),
		"readings":     len(readings),
	})

	return snapshot, nil
}

// HealthCheck performs a repository health check
func (r *gridRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
