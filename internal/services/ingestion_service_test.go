package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
)

// ingestStubRepo resolves known customers and records every batch it is
// handed, in order.
type ingestStubRepo struct {
	repository.GridRepository

	customers map[string]*models.Customer
	batches   [][]*models.ConsumptionReading
}

func (s *ingestStubRepo) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	customer, ok := s.customers[customerID]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "customer", ID: customerID}
	}
	return customer, nil
}

func (s *ingestStubRepo) CreateReadingsBatch(ctx context.Context, readings []*models.ConsumptionReading) error {
	batch := make([]*models.ConsumptionReading, len(readings))
	copy(batch, readings)
	s.batches = append(s.batches, batch)
	return nil
}

func writeExport(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "CU001.csv",
		"2026-05,240,2400\n"+
			"2026-06,250,2500\n"+
			"not-a-period,10,100\n"+
			"\n"+
			"2026-07,260,2600\n")
	writeExport(t, dir, "CU404.csv", "2026-07,100,1000\n")

	repo := &ingestStubRepo{
		customers: map[string]*models.Customer{
			"CU001": {CustomerID: "CU001", TransformerID: "TX001", Type: models.CustomerResidential, IsActive: true},
		},
	}
	service := NewIngestionService(repo, testLogger(), testMetrics)

	result, err := service.IngestDirectory(context.Background(), dir, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalFiles)
	assert.Equal(t, 1, result.SkippedFiles)
	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "CU404")

	// Batch size 2 splits the three valid readings into 2 + 1.
	require.Len(t, repo.batches, 2)
	assert.Len(t, repo.batches[0], 2)
	assert.Len(t, repo.batches[1], 1)

	first := repo.batches[0][0]
	assert.Equal(t, "CU001", first.CustomerID)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), first.ReadingPeriod)
	assert.Equal(t, 240.0, first.KwhConsumed)
	assert.Equal(t, 2400.0, first.BillingAmount)
}

func TestIngestDirectory_SkipsInvalidLines(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "CU001.csv",
		"2026-06,250\n"+ // missing billing amount
			"2026-07,-10,100\n"+ // negative consumption
			"2026-07,abc,100\n"+ // non-numeric consumption
			"2026-07,250,2500\n")

	repo := &ingestStubRepo{
		customers: map[string]*models.Customer{
			"CU001": {CustomerID: "CU001", TransformerID: "TX001", Type: models.CustomerResidential, IsActive: true},
		},
	}
	service := NewIngestionService(repo, testLogger(), testMetrics)

	result, err := service.IngestDirectory(context.Background(), dir, 100)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, 1, result.SuccessfulRecords)
	assert.Equal(t, 3, result.FailedRecords)
	require.Len(t, repo.batches, 1)
	require.Len(t, repo.batches[0], 1)
	assert.Equal(t, 250.0, repo.batches[0][0].KwhConsumed)
}

func TestIngestDirectory_EmptyDirectory(t *testing.T) {
	repo := &ingestStubRepo{customers: map[string]*models.Customer{}}
	service := NewIngestionService(repo, testLogger(), testMetrics)

	_, err := service.IngestDirectory(context.Background(), t.TempDir(), 100)
	assert.Error(t, err)
}
