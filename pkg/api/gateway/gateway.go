// HTTP REST API gateway for the allocation engine.
// Thin translation layer: handlers decode JSON, call the domain services,
// and map sentinel errors onto HTTP status codes. No allocation decisions
// are made here.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orion-compute/orion-engine/pkg/booking"
	"github.com/orion-compute/orion-engine/pkg/engine/common"
	"github.com/orion-compute/orion-engine/pkg/fairness"
	"github.com/orion-compute/orion-engine/pkg/idempotency"
	"github.com/orion-compute/orion-engine/pkg/job"
	"github.com/orion-compute/orion-engine/pkg/logger"
	"github.com/orion-compute/orion-engine/pkg/orchestrator"
	"github.com/orion-compute/orion-engine/pkg/pricing"
	"github.com/orion-compute/orion-engine/pkg/store"
)

// ============================================================================
// SECTION 1: API REQUEST TYPES
// ============================================================================

// RegisterGPURequest: HTTP request body for listing a GPU in the pool
type RegisterGPURequest struct {
	Model        string  `json:"model"`
	Manufacturer string  `json:"manufacturer"`
	MemoryGB     int     `json:"memory_gb"`
	PricePerHour float64 `json:"price_per_hour"`
	OwnerID      string  `json:"owner_id"`
}

// SubmitJobRequest: HTTP request body for submitting a compute job
type SubmitJobRequest struct {
	RequestID   string `json:"request_id,omitempty"` // Optional dedup key
	RequesterID string `json:"requester_id"`
	Command     string `json:"command"`
}

// SubmitOrderRequest: HTTP request body for placing a marketplace order
type SubmitOrderRequest struct {
	RequestID    string  `json:"request_id,omitempty"` // Optional dedup key
	RequesterID  string  `json:"requester_id"`
	GPUID        string  `json:"gpu_id"`
	Quantity     int     `json:"quantity"`
	PricePerHour float64 `json:"price_per_hour"`
}

// CreateBookingRequest: HTTP request body for reserving a time window
type CreateBookingRequest struct {
	RequesterID string    `json:"requester_id"`
	GPUID       string    `json:"gpu_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// AddReviewRequest: HTTP request body for rating a booking
type AddReviewRequest struct {
	BookingID string  `json:"booking_id"`
	Rating    float64 `json:"rating"`
	Comment   string  `json:"comment,omitempty"`
}

// AddDisputeRequest: HTTP request body for disputing a booking
type AddDisputeRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

// ============================================================================
// SECTION 2: API RESPONSE TYPES
// ============================================================================

// AvailabilityResponse: Result of a point-in-time availability query
type AvailabilityResponse struct {
	GPUID     string    `json:"gpu_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

// HealthCheckResponse: Health check response
type HealthCheckResponse struct {
	Status        string  `json:"status"`
	Engine        string  `json:"engine"`
	Timestamp     string  `json:"timestamp"`
	TotalRequests uint64  `json:"total_requests"`
	TotalErrors   uint64  `json:"total_errors"`
	SuccessRate   float64 `json:"success_rate"`
	PassCount     int64   `json:"pass_count"`
}

// ErrorResponse: Error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ============================================================================
// SECTION 3: GATEWAY SERVICE
// ============================================================================

// GatewayConfig: Configuration for the API gateway
type GatewayConfig struct {
	Port           int
	RequestTimeout time.Duration
	MaxRequestSize int64
	EnableMetrics  bool
}

// DefaultGatewayConfig: Sensible defaults for local runs
var DefaultGatewayConfig = &GatewayConfig{
	Port:           8080,
	RequestTimeout: 30 * time.Second,
	MaxRequestSize: 1 << 20, // 1MB
	EnableMetrics:  true,
}

// APIGateway: HTTP surface over the engine's domain services.
// Thread-safe: metrics use atomic counters, domain services handle their
// own coordination.
type APIGateway struct {
	store      store.Store
	jobManager *job.Manager
	bookingSvc *booking.Service
	pricingEng *pricing.Engine
	scorer     *fairness.Scorer
	runner     *orchestrator.Runner
	idemMgr    *idempotency.Manager // nil when Redis is not configured

	config  *GatewayConfig
	metrics *Metrics
	log     *logger.Logger
	server  *http.Server
}

// NewAPIGateway: Create the gateway over the given services.
// idemMgr may be nil; submission dedup is then skipped.
func NewAPIGateway(st store.Store, runner *orchestrator.Runner,
	idemMgr *idempotency.Manager, config *GatewayConfig) (*APIGateway, error) {

	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultGatewayConfig
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d (must be 1-65535)", config.Port)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = 1 << 20
	}

	return &APIGateway{
		store:      st,
		jobManager: job.NewManager(st),
		bookingSvc: booking.NewService(st),
		pricingEng: pricing.NewEngine(st),
		scorer:     fairness.NewScorer(st),
		runner:     runner,
		idemMgr:    idemMgr,
		config:     config,
		metrics:    &Metrics{},
		log:        logger.Get(),
	}, nil
}

// ============================================================================
// SECTION 4: ROUTING
// ============================================================================

// RegisterRoutes: Register all HTTP routes
func (ag *APIGateway) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Supply side
	mux.HandleFunc("/api/v1/gpus", ag.wrapHandler(ag.handleGPUs))
	mux.HandleFunc("/api/v1/gpus/quote", ag.wrapHandler(ag.handleQuote))
	mux.HandleFunc("/api/v1/gpus/availability", ag.wrapHandler(ag.handleAvailability))

	// Demand side
	mux.HandleFunc("/api/v1/jobs", ag.wrapHandler(ag.handleSubmitJob))
	mux.HandleFunc("/api/v1/jobs/status", ag.wrapHandler(ag.handleJobStatus))
	mux.HandleFunc("/api/v1/jobs/complete", ag.wrapHandler(ag.handleCompleteJob))
	mux.HandleFunc("/api/v1/jobs/reject", ag.wrapHandler(ag.handleRejectJob))
	mux.HandleFunc("/api/v1/orders", ag.wrapHandler(ag.handleSubmitOrder))

	// Reservations & history
	mux.HandleFunc("/api/v1/bookings", ag.wrapHandler(ag.handleCreateBooking))
	mux.HandleFunc("/api/v1/reviews", ag.wrapHandler(ag.handleAddReview))
	mux.HandleFunc("/api/v1/disputes", ag.wrapHandler(ag.handleAddDispute))

	// Engine control & analytics
	mux.HandleFunc("/api/v1/schedule/run", ag.wrapHandler(ag.handleRunPass))
	mux.HandleFunc("/api/v1/fairness", ag.wrapHandler(ag.handleFairness))

	// Health & metrics
	mux.HandleFunc("/health", ag.wrapHandler(ag.handleHealthCheck))
	if ag.config.EnableMetrics {
		mux.HandleFunc("/metrics", ag.handleMetrics)
	}

	return mux
}

// wrapHandler: Middleware wrapper for all handlers
func (ag *APIGateway) wrapHandler(handler func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		startTime := time.Now()
		ag.log.Debug("API Request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		handler(w, r)

		ag.metrics.RecordRequest(time.Since(startTime))
	}
}

// ============================================================================
// SECTION 5: SUPPLY HANDLERS
// ============================================================================

// handleGPUs: POST registers a GPU, GET lists the pool
func (ag *APIGateway) handleGPUs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		ag.handleRegisterGPU(w, r)
	case http.MethodGet:
		ag.handleListGPUs(w, r)
	default:
		ag.respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("expected GET or POST, got %s", r.Method))
	}
}

func (ag *APIGateway) handleRegisterGPU(w http.ResponseWriter, r *http.Request) {
	var req RegisterGPURequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Model) == "" {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "model is required")
		return
	}
	if req.MemoryGB <= 0 {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("memory_gb must be positive, got %d", req.MemoryGB))
		return
	}
	if req.PricePerHour < 0 {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("price_per_hour cannot be negative, got %.2f", req.PricePerHour))
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	gpu := &common.GPU{
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		MemoryGB:     req.MemoryGB,
		PricePerHour: req.PricePerHour,
		OwnerID:      req.OwnerID,
		Available:    true,
		CreatedAt:    time.Now(),
	}
	if err := ag.store.AddGPU(ctx, gpu); err != nil {
		ag.respondStoreError(w, err)
		return
	}

	ag.metrics.RecordGPURegistered()
	ag.respondJSON(w, http.StatusCreated, gpu)
}

func (ag *APIGateway) handleListGPUs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ag.requestContext(r)
	defer cancel()

	var (
		gpus []*common.GPU
		err  error
	)
	if r.URL.Query().Get("available") == "true" {
		gpus, err = ag.store.ListAvailableGPUs(ctx)
	} else {
		gpus, err = ag.store.ListGPUs(ctx)
	}
	if err != nil {
		ag.respondStoreError(w, err)
		return
	}

	ag.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(gpus),
		"gpus":  gpus,
	})
}

// handleQuote: GET /api/v1/gpus/quote?gpu_id=X
func (ag *APIGateway) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodGet) {
		return
	}
	gpuID := r.URL.Query().Get("gpu_id")
	if gpuID == "" {
		ag.respondError(w, http.StatusBadRequest, "MISSING_PARAM", "gpu_id query parameter required")
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	quote, err := ag.pricingEng.Quote(ctx, gpuID)
	if err != nil {
		ag.respondStoreError(w, err)
		return
	}

	ag.metrics.RecordQuote()
	ag.respondJSON(w, http.StatusOK, quote)
}

// handleAvailability: GET /api/v1/gpus/availability?gpu_id=X&start=...&end=...
// Timestamps are RFC3339.
func (ag *APIGateway) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodGet) {
		return
	}
	gpuID := r.URL.Query().Get("gpu_id")
	if gpuID == "" {
		ag.respondError(w, http.StatusBadRequest, "MISSING_PARAM", "gpu_id query parameter required")
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		ag.respondError(w, http.StatusBadRequest, "INVALID_PARAM",
			fmt.Sprintf("start must be RFC3339: %v", err))
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		ag.respondError(w, http.StatusBadRequest, "INVALID_PARAM",
			fmt.Sprintf("end must be RFC3339: %v", err))
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	available, err := ag.bookingSvc.IsAvailable(ctx, gpuID, start, end)
	if err != nil {
		ag.respondStoreError(w, err)
		return
	}

	ag.respondJSON(w, http.StatusOK, &AvailabilityResponse{
		GPUID:     gpuID,
		StartTime: start,
		EndTime:   end,
		Available: available,
	})
}

// ============================================================================
// SECTION 6: DEMAND HANDLERS
// ============================================================================

// handleSubmitJob: POST /api/v1/jobs
// With a request_id and Redis configured, resubmission returns the original
// job id instead of creating a second job.
func (ag *APIGateway) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req SubmitJobRequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	if ag.idemMgr != nil && req.RequestID != "" {
		if err := ag.idemMgr.ValidateRequestID(req.RequestID); err != nil {
			ag.respondError(w, http.StatusBadRequest, "INVALID_REQUEST_ID", err.Error())
			return
		}
		prev, dup, _ := ag.idemMgr.CheckDuplicate(ctx, req.RequestID)
		if dup {
			ag.metrics.RecordDuplicateBlocked()
			ag.respondJSON(w, http.StatusOK, map[string]interface{}{
				"duplicate": true,
				"job_id":    prev.EntityID,
			})
			return
		}
	}

	submitted, err := ag.jobManager.Submit(ctx, req.RequesterID, req.Command)
	if err != nil {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if ag.idemMgr != nil && req.RequestID != "" {
		if err := ag.idemMgr.Record(ctx, req.RequestID, "job", submitted.ID); err != nil {
			ag.log.Warn("Failed to record dedup entry for %s: %v", req.RequestID, err)
		}
	}

	ag.metrics.RecordJobSubmitted()
	ag.respondJSON(w, http.StatusCreated, submitted)
}

// handleJobStatus: GET /api/v1/jobs/status?job_id=X
func (ag *APIGateway) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodGet) {
		return
	}
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		ag.respondError(w, http.StatusBadRequest, "MISSING_PARAM", "job_id query parameter required")
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	j, err := ag.store.GetJob(ctx, jobID)
	if err != nil {
		ag.respondStoreError(w, err)
		return
	}
	ag.respondJSON(w, http.StatusOK, j)
}

// handleCompleteJob: POST /api/v1/jobs/complete?job_id=X
func (ag *APIGateway) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		ag.respondError(w, http.StatusBadRequest, "MISSING_PARAM", "job_id query parameter required")
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	j, err := ag.jobManager.Complete(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrPersistence) {
			ag.respondStoreError(w, err)
		} else {
			ag.respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
		}
		return
	}
	ag.respondJSON(w, http.StatusOK, j)
}

// handleRejectJob: POST /api/v1/jobs/reject?job_id=X
func (ag *APIGateway) handleRejectJob(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		ag.respondError(w, http.StatusBadRequest, "MISSING_PARAM", "job_id query parameter required")
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	j, err := ag.jobManager.Reject(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrPersistence) {
			ag.respondStoreError(w, err)
		} else {
			ag.respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
		}
		return
	}
	ag.respondJSON(w, http.StatusOK, j)
}

// handleSubmitOrder: POST /api/v1/orders
func (ag *APIGateway) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req SubmitOrderRequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.GPUID) == "" {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "gpu_id is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	if ag.idemMgr != nil && req.RequestID != "" {
		if err := ag.idemMgr.ValidateRequestID(req.RequestID); err != nil {
			ag.respondError(w, http.StatusBadRequest, "INVALID_REQUEST_ID", err.Error())
			return
		}
		prev, dup, _ := ag.idemMgr.CheckDuplicate(ctx, req.RequestID)
		if dup {
			ag.metrics.RecordDuplicateBlocked()
			ag.respondJSON(w, http.StatusOK, map[string]interface{}{
				"duplicate": true,
				"order_id":  prev.EntityID,
			})
			return
		}
	}

	order := &common.Order{
		RequesterID:  req.RequesterID,
		GPUID:        req.GPUID,
		Quantity:     req.Quantity,
		PricePerHour: req.PricePerHour,
		Status:       common.OrderOpen,
		CreatedAt:    time.Now(),
	}
	if err := ag.store.AddOrder(ctx, order); err != nil {
		ag.respondStoreError(w, err)
		return
	}

	if ag.idemMgr != nil && req.RequestID != "" {
		if err := ag.idemMgr.Record(ctx, req.RequestID, "order", order.ID); err != nil {
			ag.log.Warn("Failed to record dedup entry for %s: %v", req.RequestID, err)
		}
	}

	ag.metrics.RecordOrderSubmitted()
	ag.respondJSON(w, http.StatusCreated, order)
}

// ============================================================================
// SECTION 7: BOOKING & HISTORY HANDLERS
// ============================================================================

// handleCreateBooking: POST /api/v1/bookings
func (ag *APIGateway) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req CreateBookingRequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	b, err := ag.bookingSvc.Create(ctx, req.RequesterID, req.GPUID, req.StartTime, req.EndTime)
	if err != nil {
		if errors.Is(err, common.ErrConflictingReservation) {
			ag.metrics.RecordBooking(true)
		}
		ag.respondStoreError(w, err)
		return
	}

	ag.metrics.RecordBooking(false)
	ag.respondJSON(w, http.StatusCreated, b)
}

// handleAddReview: POST /api/v1/reviews
func (ag *APIGateway) handleAddReview(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req AddReviewRequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	if req.BookingID == "" {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "booking_id is required")
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("rating must be 0-5, got %.1f", req.Rating))
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	review := &common.Review{
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := ag.store.AddReview(ctx, review); err != nil {
		ag.respondStoreError(w, err)
		return
	}
	ag.respondJSON(w, http.StatusCreated, review)
}

// handleAddDispute: POST /api/v1/disputes
func (ag *APIGateway) handleAddDispute(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req AddDisputeRequest
	if !ag.decodeBody(w, r, &req) {
		return
	}

	if req.BookingID == "" {
		ag.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "booking_id is required")
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	dispute := &common.Dispute{
		BookingID: req.BookingID,
		Reason:    req.Reason,
		CreatedAt: time.Now(),
	}
	if err := ag.store.AddDispute(ctx, dispute); err != nil {
		ag.respondStoreError(w, err)
		return
	}
	ag.respondJSON(w, http.StatusCreated, dispute)
}

// ============================================================================
// SECTION 8: ENGINE CONTROL & ANALYTICS
// ============================================================================

// handleRunPass: POST /api/v1/schedule/run
// Triggers one scheduling+matching pass outside the ticker.
func (ag *APIGateway) handleRunPass(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodPost) {
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	result, err := ag.runner.RunOnce(ctx)
	if err != nil {
		// Committed bindings survive a mid-pass failure; report both
		ag.metrics.RecordError()
		ag.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"partial": result,
		})
		return
	}

	ag.metrics.RecordPass(result.Assignments, result.MatchedOrders)
	ag.respondJSON(w, http.StatusOK, result)
}

// handleFairness: GET /api/v1/fairness
func (ag *APIGateway) handleFairness(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := ag.requestContext(r)
	defer cancel()

	scores, err := ag.scorer.ComputeScores(ctx)
	if err != nil {
		ag.respondStoreError(w, err)
		return
	}
	ag.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(scores),
		"scores": scores,
	})
}

// handleHealthCheck: GET /health
func (ag *APIGateway) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if !ag.requireMethod(w, r, http.MethodGet) {
		return
	}

	response := &HealthCheckResponse{
		Status:        "healthy",
		Engine:        "orion-engine",
		Timestamp:     time.Now().Format(time.RFC3339),
		TotalRequests: ag.metrics.TotalRequests,
		TotalErrors:   ag.metrics.TotalErrors,
		SuccessRate:   ag.metrics.GetSuccessRate(),
		PassCount:     ag.runner.PassCount(),
	}
	ag.respondJSON(w, http.StatusOK, response)
}

// handleMetrics: GET /metrics (Prometheus text format)
func (ag *APIGateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ag.metrics.ExportPrometheus())
}

// ============================================================================
// SECTION 9: HELPERS
// ============================================================================

// requireMethod: Reject requests with the wrong HTTP method
func (ag *APIGateway) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		ag.respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("expected %s, got %s", method, r.Method))
		return false
	}
	return true
}

// decodeBody: Decode and validate a JSON request body
func (ag *APIGateway) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, ag.config.MaxRequestSize)
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			ag.respondError(w, http.StatusBadRequest, "EMPTY_BODY", "request body is empty")
		} else {
			ag.respondError(w, http.StatusBadRequest, "INVALID_JSON",
				fmt.Sprintf("invalid JSON: %v", err))
		}
		return false
	}
	return true
}

// requestContext: Per-request timeout context
func (ag *APIGateway) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), ag.config.RequestTimeout)
}

// respondStoreError: Map sentinel errors onto HTTP status codes
func (ag *APIGateway) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		ag.respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, common.ErrInvalidInterval):
		ag.respondError(w, http.StatusBadRequest, "INVALID_INTERVAL", err.Error())
	case errors.Is(err, common.ErrConflictingReservation):
		ag.respondError(w, http.StatusConflict, "CONFLICTING_RESERVATION", err.Error())
	default:
		ag.respondError(w, http.StatusInternalServerError, "PERSISTENCE_FAILURE", err.Error())
	}
}

// respondJSON: Send a JSON response
func (ag *APIGateway) respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondError: Send an error response
func (ag *APIGateway) respondError(w http.ResponseWriter, statusCode int, errorCode string, message string) {
	ag.metrics.RecordError()
	response := &ErrorResponse{
		Success:   false,
		ErrorCode: errorCode,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
	ag.log.Warn("API Error: %s - %s (status=%d)", errorCode, message, statusCode)
}

// ============================================================================
// SECTION 10: SERVER LIFECYCLE
// ============================================================================

// Start: Start the HTTP server in the background
func (ag *APIGateway) Start() error {
	mux := ag.RegisterRoutes()
	addr := fmt.Sprintf(":%d", ag.config.Port)
	ag.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ag.log.Info("API Gateway starting on %s", addr)

	go func() {
		if err := ag.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ag.log.Error("Server error: %v", err)
		}
	}()

	return nil
}

// Stop: Drain in-flight requests and shut down
func (ag *APIGateway) Stop(timeout time.Duration) error {
	if ag.server == nil {
		return fmt.Errorf("server not running")
	}

	ag.log.Info("Shutting down API Gateway...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := ag.server.Shutdown(ctx); err != nil {
		ag.log.Error("Server shutdown error: %v", err)
		return err
	}

	ag.log.Info("API Gateway stopped")
	return nil
}
