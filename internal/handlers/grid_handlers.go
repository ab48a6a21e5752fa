package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ntl-platform/internal/models"
	"ntl-platform/internal/repository"
	"ntl-platform/internal/services"
	"ntl-platform/pkg/logging"
	"ntl-platform/pkg/metrics"
)

// GridHandler handles the grid analytics API endpoints
type GridHandler struct {
	analysisService *services.AnalysisService
	hotlistService  *services.HotlistService
	repo            repository.GridRepository
	logger          *logging.StructuredLogger
	metrics         *metrics.Collector
}

// NewGridHandler creates a new grid handler
func NewGridHandler(
	analysisService *services.AnalysisService,
	hotlistService *services.HotlistService,
	repo repository.GridRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *GridHandler {
	return &GridHandler{
		analysisService: analysisService,
		hotlistService:  hotlistService,
		repo:            repo,
		logger:          logger,
		metrics:         metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// parsePagination reads page/limit query parameters with defaults.
func parsePagination(r *http.Request) (page, limit, offset int) {
	page = 1
	limit = 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}

	return page, limit, (page - 1) * limit
}

// parsePeriod reads the period query parameter, defaulting to the previous
// billing month when absent.
func parsePeriod(r *http.Request) (models.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return models.PeriodOf(time.Now().UTC().AddDate(0, -1, 0)), nil
	}
	return models.ParsePeriod(raw)
}

// GetTransformerBalance handles GET /api/transformers/{id}/balance
func (h *GridHandler) GetTransformerBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/transformers/{id}/balance"
	startTime := time.Now()
	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	period, err := parsePeriod(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	transformerID := mux.Vars(r)["id"]
	report, err := h.analysisService.ComputeTransformerBalance(ctx, transformerID, period)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to compute transformer balance", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// GetFeederBalance handles GET /api/feeders/{id}/balance
func (h *GridHandler) GetFeederBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/feeders/{id}/balance"
	startTime := time.Now()
	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	period, err := parsePeriod(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	feederID := mux.Vars(r)["id"]
	report, err := h.analysisService.ComputeFeederBalance(ctx, feederID, period)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to compute feeder balance", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// GetTransformerScore handles GET /api/transformers/{id}/score
func (h *GridHandler) GetTransformerScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/transformers/{id}/score"
	startTime := time.Now()
	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	period, err := parsePeriod(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	transformerID := mux.Vars(r)["id"]
	score, err := h.analysisService.ScoreTransformer(ctx, transformerID, period)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to score transformer", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, score, http.StatusOK)
}

// GetCustomerScore handles GET /api/customers/{id}/score
func (h *GridHandler) GetCustomerScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/customers/{id}/score"
	startTime := time.Now()
	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	period, err := parsePeriod(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	customerID := mux.Vars(r)["id"]
	score, err := h.analysisService.ScoreCustomer(ctx, customerID, period)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to score customer", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, score, http.StatusOK)
}

// GetHotlist handles GET /api/hotlist
func (h *GridHandler) GetHotlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/hotlist"
	startTime := time.Now()
	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	minLevel := models.RiskHigh
	if raw := r.URL.Query().Get("min_risk_level"); raw != "" {
		minLevel = models.RiskLevel(raw)
		if !minLevel.Valid() {
			h.sendError(w, r, "invalid min_risk_level, expected low, medium, high, or critical", http.StatusBadRequest)
			return
		}
	}

	page, limit, offset := parsePagination(r)

	result, err := h.hotlistService.GetHotlist(ctx, minLevel, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to assemble hotlist", err)
		return
	}

	totalPages := (result.TotalCount + limit - 1) / limit

	response := PaginatedResponse{
		Data:       result.Items,
		Total:      result.TotalCount,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// ListFeeders handles GET /api/feeders
func (h *GridHandler) ListFeeders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/feeders"

	page, limit, offset := parsePagination(r)

	feeders, total, err := h.repo.ListFeeders(ctx, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to list feeders", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       feeders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// ListTransformers handles GET /api/feeders/{id}/transformers
func (h *GridHandler) ListTransformers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/feeders/{id}/transformers"

	page, limit, offset := parsePagination(r)
	feederID := mux.Vars(r)["id"]

	transformers, total, err := h.repo.ListTransformersByFeeder(ctx, feederID, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to list transformers", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       transformers,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// ListCustomers handles GET /api/transformers/{id}/customers
func (h *GridHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/transformers/{id}/customers"

	page, limit, offset := parsePagination(r)
	transformerID := mux.Vars(r)["id"]

	customers, total, err := h.repo.ListCustomersByTransformer(ctx, transformerID, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to list customers", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       customers,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// ListReadings handles GET /api/customers/{id}/readings
func (h *GridHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/customers/{id}/readings"

	page, limit, offset := parsePagination(r)
	customerID := mux.Vars(r)["id"]

	filter := repository.ReadingFilter{
		CustomerID: &customerID,
		Limit:      limit,
		Offset:     offset,
	}

	if raw := r.URL.Query().Get("start_period"); raw != "" {
		period, err := models.ParsePeriod(raw)
		if err != nil {
			h.sendError(w, r, "invalid start_period format, expected YYYY-MM", http.StatusBadRequest)
			return
		}
		start := period.Start()
		filter.StartPeriod = &start
	}

	if raw := r.URL.Query().Get("end_period"); raw != "" {
		period, err := models.ParsePeriod(raw)
		if err != nil {
			h.sendError(w, r, "invalid end_period format, expected YYYY-MM", http.StatusBadRequest)
			return
		}
		end := period.Start()
		filter.EndPeriod = &end
	}

	readings, total, err := h.repo.GetReadings(ctx, filter)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to list readings", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       readings,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// CreateFeeder handles POST /api/feeders
func (h *GridHandler) CreateFeeder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/feeders"

	var feeder models.Feeder
	if err := json.NewDecoder(r.Body).Decode(&feeder); err != nil {
		h.sendError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	// Provisioning always creates active entities; deactivation is a
	// separate lifecycle step.
	feeder.IsActive = true
	feeder.CreatedAt = time.Now().UTC()
	feeder.UpdatedAt = feeder.CreatedAt

	if err := feeder.Validate(); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateFeeder(ctx, &feeder); err != nil {
		h.handleServiceError(w, r, endpoint, "failed to create feeder", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, feeder, http.StatusCreated)
}

// CreateTransformer handles POST /api/transformers
func (h *GridHandler) CreateTransformer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/transformers"

	var transformer models.Transformer
	if err := json.NewDecoder(r.Body).Decode(&transformer); err != nil {
		h.sendError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	transformer.IsActive = true
	transformer.CreatedAt = time.Now().UTC()
	transformer.UpdatedAt = transformer.CreatedAt

	if err := transformer.Validate(); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateTransformer(ctx, &transformer); err != nil {
		h.handleServiceError(w, r, endpoint, "failed to create transformer", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, transformer, http.StatusCreated)
}

// CreateCustomer handles POST /api/customers
func (h *GridHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/customers"

	var customer models.Customer
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		h.sendError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	if customer.MeterType == "" {
		customer.MeterType = "digital"
	}
	customer.IsActive = true
	customer.CreatedAt = time.Now().UTC()
	customer.UpdatedAt = customer.CreatedAt

	if err := customer.Validate(); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateCustomer(ctx, &customer); err != nil {
		h.handleServiceError(w, r, endpoint, "failed to create customer", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, customer, http.StatusCreated)
}

// createReadingRequest wraps a reading with the YYYY-MM period form used
// everywhere else in the API.
type createReadingRequest struct {
	Period        string  `json:"period"`
	KwhConsumed   float64 `json:"kwh_consumed"`
	BillingAmount float64 `json:"billing_amount"`
}

// CreateReading handles POST /api/customers/{id}/readings
func (h *GridHandler) CreateReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/customers/{id}/readings"

	var req createReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	period, err := models.ParsePeriod(req.Period)
	if err != nil {
		h.sendError(w, r, "invalid period format, expected YYYY-MM", http.StatusBadRequest)
		return
	}

	reading := models.ConsumptionReading{
		CustomerID:    mux.Vars(r)["id"],
		ReadingPeriod: period.Start(),
		KwhConsumed:   req.KwhConsumed,
		BillingAmount: req.BillingAmount,
		CreatedAt:     time.Now().UTC(),
	}

	if err := reading.Validate(); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateReading(ctx, &reading); err != nil {
		h.handleServiceError(w, r, endpoint, "failed to create reading", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, reading, http.StatusCreated)
}

// CreateInspection handles POST /api/inspections
func (h *GridHandler) CreateInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/inspections"

	var inspection models.Inspection
	if err := json.NewDecoder(r.Body).Decode(&inspection); err != nil {
		h.sendError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	if inspection.InspectedAt.IsZero() {
		inspection.InspectedAt = time.Now().UTC()
	}
	inspection.CreatedAt = time.Now().UTC()

	if err := inspection.Validate(); err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateInspection(ctx, &inspection); err != nil {
		h.handleServiceError(w, r, endpoint, "failed to record inspection", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "POST", "201")
	h.sendJSON(w, inspection, http.StatusCreated)
}

// ListInspections handles GET /api/customers/{id}/inspections
func (h *GridHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	endpoint := "/api/customers/{id}/inspections"

	page, limit, offset := parsePagination(r)
	customerID := mux.Vars(r)["id"]

	inspections, total, err := h.repo.ListInspections(ctx, customerID, limit, offset)
	if err != nil {
		h.handleServiceError(w, r, endpoint, "failed to list inspections", err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       inspections,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *GridHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleServiceError maps service errors to HTTP responses. Validation and
// not-found conditions map to 4xx; everything else is internal.
func (h *GridHandler) handleServiceError(w http.ResponseWriter, r *http.Request, endpoint, message string, err error) {
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
		return
	}

	var validation *models.ValidationError
	if errors.As(err, &validation) {
		h.sendError(w, r, validation.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
		"endpoint": endpoint,
	}, err)
	h.metrics.RecordAPIError("internal_error", endpoint)
	h.sendError(w, r, message, http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *GridHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *GridHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all grid API routes
func (h *GridHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/feeders", h.ListFeeders).Methods("GET")
	router.HandleFunc("/api/feeders", h.CreateFeeder).Methods("POST")
	router.HandleFunc("/api/feeders/{id}/balance", h.GetFeederBalance).Methods("GET")
	router.HandleFunc("/api/feeders/{id}/transformers", h.ListTransformers).Methods("GET")
	router.HandleFunc("/api/transformers", h.CreateTransformer).Methods("POST")
	router.HandleFunc("/api/transformers/{id}/balance", h.GetTransformerBalance).Methods("GET")
	router.HandleFunc("/api/transformers/{id}/score", h.GetTransformerScore).Methods("GET")
	router.HandleFunc("/api/transformers/{id}/customers", h.ListCustomers).Methods("GET")
	router.HandleFunc("/api/customers", h.CreateCustomer).Methods("POST")
	router.HandleFunc("/api/customers/{id}/score", h.GetCustomerScore).Methods("GET")
	router.HandleFunc("/api/customers/{id}/readings", h.ListReadings).Methods("GET")
	router.HandleFunc("/api/customers/{id}/readings", h.CreateReading).Methods("POST")
	router.HandleFunc("/api/customers/{id}/inspections", h.ListInspections).Methods("GET")
	router.HandleFunc("/api/inspections", h.CreateInspection).Methods("POST")
	router.HandleFunc("/api/hotlist", h.GetHotlist).Methods("GET")
	router.HandleFunc("/api/docs", h.GetDocs).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
