package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ntl-platform/internal/balance"
	"ntl-platform/internal/config"
	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/internal/scoring"
	"ntl-platform/internal/services"
	"ntl-platform/pkg/database"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	periodFlag := flag.String("period", "", "Billing period to score (YYYY-MM, default: previous month)")
	workersFlag := flag.Int("workers", 0, "Worker pool size (default: from configuration)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	period := models.PeriodOf(time.Now().UTC().AddDate(0, -1, 0))
	if *periodFlag != "" {
		period, err = models.ParsePeriod(*periodFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid period %q: %v\n", *periodFlag, err)
			os.Exit(1)
		}
	}

	workerCount := cfg.Analysis.WorkerCount
	if *workersFlag > 0 {
		workerCount = *workersFlag
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("ntl-scorer", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[SCORER_START] Starting scoring pass", logging.Fields{
		"version": "1.0.0",
		"period":  period.String(),
		"workers": workerCount,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("ntl_scorer")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SCORER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	gridRepo := repository.NewGridRepository(db, logger, metricsCollector)

	// Initialize analysis components from configured thresholds
	validator := balance.NewValidator(balance.Config{
		WarningLossRatio:     cfg.Analysis.WarningLossRatio,
		CriticalLossRatio:    cfg.Analysis.CriticalLossRatio,
		FeederDiscrepancyKwh: cfg.Analysis.FeederDiscrepancyKwh,
		CapacityLoadFactor:   cfg.Analysis.CapacityLoadFactor,
		HoursPerMonth:        cfg.Analysis.HoursPerMonth,
	})

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.MinHistoryMonths = cfg.Analysis.MinHistoryMonths
	scoringCfg.TariffPerKwh = cfg.Analysis.TariffPerKwh
	scorer := scoring.NewScorer(scoringCfg)

	// Run the pass
	aggregationService := services.NewAggregationService(
		gridRepo, validator, scorer, cfg.Analysis.HistoryMonths, workerCount, logger, metricsCollector)

	result, err := aggregationService.RunScoringPass(ctx, period)
	if err != nil {
		logger.Fatal(ctx, "[SCORER_ERROR] Scoring pass failed", logging.Fields{
			"period": period.String(),
		}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SCORING PASS COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Period:                     %s\n", result.Period)
	fmt.Printf("Transformers Scored:        %d\n", result.TransformersScored)
	fmt.Printf("Transformers Excluded:      %d\n", result.TransformersExcluded)
	fmt.Printf("Transformers Insufficient:  %d\n", result.TransformersInsufficient)
	fmt.Printf("Customers Scored:           %d\n", result.CustomersScored)
	fmt.Printf("Customers Insufficient:     %d\n", result.CustomersInsufficient)
	fmt.Printf("Feeder Warnings:            %d\n", result.FeederWarnings)
	fmt.Printf("Duration:                   %v\n", result.Duration)

	logger.Info(ctx, "[SCORER_COMPLETE] Scoring pass completed successfully", logging.Fields{
		"period":               result.Period,
		"transformers_scored":  result.TransformersScored,
		"customers_scored":     result.CustomersScored,
		"feeder_warnings":      result.FeederWarnings,
		"duration_seconds":     result.Duration.Seconds(),
	})
}
