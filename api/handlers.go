/*
handlers.go - HTTP API handlers for the maintenance-contract wizard

PURPOSE:
  Exposes the pricing engine, IBAN check and contract submission via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the contract service.

ENDPOINTS:
  Pricing:
    POST   /api/quotes               Live price preview

  IBAN:
    POST   /api/iban/check           Validate + format + bank name

  Contracts:
    POST   /api/contracts            Submit (rate limited per client IP)
    GET    /api/contracts            List, newest first
    GET    /api/contracts/{id}       Contract details

  Admin:
    GET    /api/admin/sync           Last delivery retry round
    POST   /api/admin/sync           Retry failed email/CRM deliveries now

  Health:
    GET    /api/health

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the contract service (which validates and prices)
  3. Serialize response
  4. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (details lists the fields)
  - 404: Contract not found
  - 429: Too many submissions (see ratelimit.go)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The admin endpoints are expected to be shielded by
  the reverse proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/iban"
	"github.com/aircare/contract-engine/logger"
	"github.com/aircare/contract-engine/ratelimit"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *contract.Service
	Limiter   *ratelimit.Limiter // nil disables submission limiting
	Scheduler *SyncScheduler     // optional; admin sync falls back to the service
	DB        Pinger             // optional; reported by /api/health

	log *logger.Logger
}

// NewHandler creates a new handler around the contract service.
func NewHandler(svc *contract.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		Service: svc,
		log:     log.Named("api"),
	}
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// CreateQuote prices a selection.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	q, err := h.Service.Quote(r.Context(), req.ContractType, req.OutdoorUnits, req.IndoorUnits, req.PaymentFrequency)
	if err != nil {
		h.writeServiceError(w, "Failed to calculate quote", err)
		return
	}

	writeJSON(w, http.StatusOK, toQuoteDTO(q))
}

// =============================================================================
// IBAN HANDLERS
// =============================================================================

// CheckIBAN validates an IBAN as the customer types it. An invalid IBAN is
// a normal answer (valid=false), not an error. The bank name is filled in
// for any Dutch input, valid or not, so it can show while typing.
func (h *Handler) CheckIBAN(w http.ResponseWriter, r *http.Request) {
	var req IBANCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp := IBANCheckDTO{
		Valid:     iban.Validate(req.IBAN),
		Formatted: iban.Format(req.IBAN),
	}
	if name, ok := iban.BankName(req.IBAN); ok {
		resp.BankName = name
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// SubmitContract stores a wizard submission and triggers delivery.
func (h *Handler) SubmitContract(w http.ResponseWriter, r *http.Request) {
	var sub contract.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Service.Submit(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, "Failed to submit contract", err)
		return
	}

	writeJSON(w, http.StatusCreated, toContractDTO(*c))
}

// ListContracts returns all contracts, newest first.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list contracts", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTOs(cs))
}

// GetContract returns one contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*c))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerSync retries failed deliveries immediately.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var (
		delivered int
		err       error
	)
	if h.Scheduler != nil {
		delivered, err = h.Scheduler.RunNow(r.Context())
	} else {
		delivered, err = h.Service.RetryFailedSyncs(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, "Failed to retry deliveries", err)
		return
	}

	writeJSON(w, http.StatusOK, SyncRunDTO{
		Delivered: delivered,
		RanAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSyncStatus reports the last scheduled retry round.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, SyncRunDTO{})
		return
	}

	run := h.Scheduler.LastRun()
	dto := SyncRunDTO{
		Delivered: run.Delivered,
		Error:     run.Error,
		NextRunAt: h.Scheduler.NextRunTime().UTC().Format(time.RFC3339),
	}
	if !run.At.IsZero() {
		dto.RanAt = run.At.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, dto)
}

// Health reports liveness and, when configured, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{Status: "ok"}
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.log.Errorw("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "degraded", Database: "unreachable"})
			return
		}
		resp.Database = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps contract service errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case contract.IsValidation(err):
		resp := ErrorResponse{Error: message, Code: "validation_failed", Details: err.Error()}
		var verr *contract.ValidationError
		if errors.As(err, &verr) {
			resp.Details = verr.Fields
		}
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			resp.Error = hints[0]
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case contract.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Contract not found", Code: "not_found"})
	default:
		h.log.Errorw(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
