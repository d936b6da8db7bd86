/*
handlers.go - HTTP API handlers for the benefit approval engine

PURPOSE:
  Exposes submission, approval queues, decisions, budget reads, document
  download, and the report export via REST. Handlers parse/validate input,
  call the approval service, serialize the response.

ERROR HANDLING:
  Errors map to JSON with the status the caller needs to react correctly:
  - 400: Validation errors, malformed input, illegal transitions
  - 404: Unknown request id
  - 409: Stale state (re-fetch and re-display, do not retry blindly)
  - 422: Budget exceeded (actionable: reduce the amount)
  - 500: Identity lookup and persistence failures ("contact support")

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/benefit-engine/approval"
	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/budget"
	"github.com/warp/benefit-engine/export"
)

const timeFormat = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *approval.Service
	Store   benefit.Store
	Budget  *budget.Ledger
	Logger  *zap.Logger
}

// NewHandler creates a new handler around the approval service.
func NewHandler(svc *approval.Service, ledger *budget.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Store:   svc.Store,
		Budget:  ledger,
		Logger:  logger,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a new request in pending_manager.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	lineItems, err := toLineItems(body.LineItems)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line item amount", err)
		return
	}

	req, err := h.Service.Submit(r.Context(), approval.NewRequestInput{
		RequesterID: body.RequesterID,
		Type:        benefit.Type(body.Type),
		Amount:      amount,
		VATIncluded: body.VATIncluded,
		Details: benefit.Details{
			FuneralSubType: benefit.FuneralSubType(body.Details.FuneralSubType),
			Department:     body.Details.Department,
			EventDate:      body.Details.EventDate,
			BankAccount:    body.Details.BankAccount,
			Note:           body.Details.Note,
			LineItems:      lineItems,
			Extra:          body.Details.Extra,
		},
		Attachments: body.Attachments,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// GetRequest returns one request aggregate.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.LoadByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests returns requests filtered by status, e.g.
// GET /api/requests?status=pending_hr,pending_accounting
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status filter", err)
		return
	}

	requests, err := h.Store.LoadByStatus(r.Context(), statuses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]RequestDTO, 0, len(requests))
	for _, req := range requests {
		dtos = append(dtos, toRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApplyDecision applies one role's decision to one request.
func (h *Handler) ApplyDecision(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Service.Apply(r.Context(), chi.URLParam(r, "id"),
		benefit.Role(body.Role), benefit.Decision(body.Decision),
		approval.Actor{ID: body.ActorID, Name: body.ActorName}, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ApplyBulkDecision applies the same decision to many requests
// independently and returns per-id outcomes.
func (h *Handler) ApplyBulkDecision(w http.ResponseWriter, r *http.Request) {
	var body BulkDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(body.RequestIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No request ids given", nil)
		return
	}

	outcomes := h.Service.ApplyBulk(r.Context(), body.RequestIDs,
		benefit.Role(body.Role), benefit.Decision(body.Decision),
		approval.Actor{ID: body.ActorID, Name: body.ActorName}, body.Reason)

	writeJSON(w, http.StatusOK, toOutcomeDTOs(outcomes))
}

// GetDocument streams the generated summary document for a request.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.LoadByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.DocumentURL == "" {
		writeError(w, http.StatusNotFound, "No document generated for this request", nil)
		return
	}
	if _, err := os.Stat(req.DocumentURL); err != nil {
		writeError(w, http.StatusNotFound, "Document file missing", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, req.DocumentURL)
}

// =============================================================================
// BUDGET AND REPORTS
// =============================================================================

// GetBudget returns the remaining entitlement for an employee and type,
// e.g. GET /api/employees/{id}/budget?type=training
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	t := benefit.Type(r.URL.Query().Get("type"))
	if !t.Valid() || !t.IsBenefit() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown benefit type %q", t), nil)
		return
	}

	remaining, err := h.Budget.Remaining(r.Context(), employeeID, t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read budget", err)
		return
	}

	writeJSON(w, http.StatusOK, BudgetDTO{
		EmployeeID: employeeID,
		Type:       string(t),
		Remaining:  remaining.StringFixed(2),
	})
}

// ExportRequests streams the xlsx report of requests filtered by status.
// Defaults to all statuses when no filter is given.
func (h *Handler) ExportRequests(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status")
	if filter == "" {
		filter = allStatusesFilter
	}
	statuses, err := parseStatuses(filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status filter", err)
		return
	}

	requests, err := h.Store.LoadByStatus(r.Context(), statuses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load requests", err)
		return
	}

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="requests.xlsx"`)
	if err := export.WriteReport(w, requests); err != nil {
		h.Logger.Error("report export failed", zap.Error(err))
	}
}

var allStatusesFilter = strings.Join([]string{
	string(benefit.StatusPendingManager), string(benefit.StatusPendingHR),
	string(benefit.StatusPendingAccounting), string(benefit.StatusPendingRevision),
	string(benefit.StatusCompleted), string(benefit.StatusRejectedManager),
	string(benefit.StatusRejectedHR), string(benefit.StatusRejectedAccounting),
}, ",")

// =============================================================================
// HELPERS
// =============================================================================

func parseStatuses(filter string) ([]benefit.Status, error) {
	var out []benefit.Status
	for _, s := range strings.Split(filter, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		st := benefit.Status(s)
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		out = append(out, st)
	}
	if len(out) == 0 {
		return nil, errors.New("no status given")
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy to HTTP statuses. Every kind
// gets a distinguishable, actionable message.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case benefit.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Request not found", err)
	case benefit.IsStale(err):
		writeError(w, http.StatusConflict,
			"The request changed while you were deciding; refresh and review the current state", err)
	case errors.Is(err, benefit.ErrBudgetExceeded):
		writeError(w, http.StatusUnprocessableEntity,
			"The requested amount exceeds the remaining budget; reduce the amount", err)
	case errors.Is(err, benefit.ErrIdentityLookup):
		writeError(w, http.StatusInternalServerError,
			"Your employee record could not be resolved; contact support", err)
	case benefit.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
