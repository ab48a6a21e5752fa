package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// IngestionService loads monthly billing exports into the readings table.
type IngestionService struct {
	repo    repository.GridRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	SkippedFiles      int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.GridRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every billing export in a directory. Each file is
// named <customer_id>.csv and holds one billed month per line:
//
//	YYYY-MM,kwh_consumed,billing_amount
//
// Files for unknown customers are skipped and reported, never partially
// loaded.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting readings ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{
		Errors: make([]string, 0),
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no billing exports found in %s", dataDir)
	}

	result.TotalFiles = len(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found billing exports", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		fileResult, err := s.ingestFile(ctx, filePath, batchSize)
		if err != nil {
			errMsg := fmt.Sprintf("failed to ingest %s: %v", filePath, err)
			result.Errors = append(result.Errors, errMsg)
			result.SkippedFiles++
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested", logging.Fields{
			"file_path":          filePath,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())
	s.metrics.ReadingsIngestedTotal.Add(float64(result.SuccessfulRecords))

	s.logger.Info(ctx, "[INGEST_COMPLETE] Readings ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"skipped_files":      result.SkippedFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
}

// ingestFile ingests a single customer's billing export.
func (s *IngestionService) ingestFile(ctx context.Context, filePath string, batchSize int) (*FileIngestionResult, error) {
	fileName := filepath.Base(filePath)
	customerID := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	// Readings reference the customer by foreign key, so an unknown
	// customer fails the whole file up front instead of mid-batch.
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileIngestionResult{}
	batch := make([]*models.ConsumptionReading, 0, batchSize)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result.TotalRecords++

		reading, err := s.parseLine(customerID, line)
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("parse_error")
			continue
		}

		if err := reading.Validate(); err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("validation_error")
			continue
		}

		batch = append(batch, reading)

		if len(batch) >= batchSize {
			if err := s.repo.CreateReadingsBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch: %w", err)
			}
			result.SuccessfulRecords += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.CreateReadingsBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return result, nil
}

// parseLine parses one line of a billing export.
// Format: YYYY-MM,kwh_consumed,billing_amount
func (s *IngestionService) parseLine(customerID, line string) (*models.ConsumptionReading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid line format: expected 3 fields, got %d", len(parts))
	}

	period, err := models.ParsePeriod(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid billing period: %w", err)
	}

	kwh, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid consumption: %w", err)
	}

	billing, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid billing amount: %w", err)
	}

	return &models.ConsumptionReading{
		CustomerID:    customerID,
		ReadingPeriod: period.Start(),
		KwhConsumed:   kwh,
		BillingAmount: billing,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
