/**
 * @description
 * This file contains the HTTP handlers for the policy-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insuralink/policy-service/internal/app"
	"github.com/insuralink/policy-service/internal/domain"
	"github.com/insuralink/policy-service/internal/store"
)

// InsuranceHandlers holds the application service that handlers will use.
type InsuranceHandlers struct {
	service *app.Service
}

// NewInsuranceHandlers creates a new instance of InsuranceHandlers.
func NewInsuranceHandlers(service *app.Service) *InsuranceHandlers {
	return &InsuranceHandlers{service: service}
}

// createTemplateResponse is returned after a template has been registered and funded.
type createTemplateResponse struct {
	TemplateID int64  `json:"template_id"`
	ValidUntil string `json:"valid_until"`
}

// buyResponse is returned after a policy purchase.
type buyResponse struct {
	PolicyID     int64 `json:"policy_id"`
	TemplateID   int64 `json:"template_id"`
	PremiumsPaid int   `json:"premiums_paid"`
}

// CreateTemplateHandler registers a new insurance offer for the authenticated seller.
func (h *InsuranceHandlers) CreateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	seller, ok := GetPartyID(r.Context())
	if !ok {
		http.Error(w, "Could not get party ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	template, err := h.service.CreateTemplate(r.Context(), seller, req)
	if err != nil {
		h.writeServiceError(w, err, "create template")
		return
	}

	h.writeJSON(w, http.StatusCreated, createTemplateResponse{
		TemplateID: template.ID,
		ValidUntil: template.ValidUntil.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetTemplateHandler returns a template snapshot by id.
func (h *InsuranceHandlers) GetTemplateHandler(w http.ResponseWriter, r *http.Request) {
	templateID, ok := h.parseID(w, r, "templateID")
	if !ok {
		return
	}

	template, err := h.service.GetTemplate(r.Context(), templateID)
	if err != nil {
		h.writeServiceError(w, err, "get template")
		return
	}
	h.writeJSON(w, http.StatusOK, template)
}

// BuyHandler purchases a policy against a template for the authenticated buyer.
func (h *InsuranceHandlers) BuyHandler(w http.ResponseWriter, r *http.Request) {
	buyer, ok := GetPartyID(r.Context())
	if !ok {
		http.Error(w, "Could not get party ID from context", http.StatusInternalServerError)
		return
	}
	templateID, ok := h.parseID(w, r, "templateID")
	if !ok {
		return
	}

	policy, err := h.service.Buy(r.Context(), templateID, buyer)
	if err != nil {
		h.writeServiceError(w, err, "buy")
		return
	}

	h.writeJSON(w, http.StatusCreated, buyResponse{
		PolicyID:     policy.ID,
		TemplateID:   policy.TemplateID,
		PremiumsPaid: policy.PremiumsPaid,
	})
}

// GetPolicyHandler returns a policy snapshot by id.
func (h *InsuranceHandlers) GetPolicyHandler(w http.ResponseWriter, r *http.Request) {
	policyID, ok := h.parseID(w, r, "policyID")
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(r.Context(), policyID)
	if err != nil {
		h.writeServiceError(w, err, "get policy")
		return
	}
	h.writeJSON(w, http.StatusOK, policy)
}

// PayPremiumHandler collects one scheduled premium from the authenticated buyer.
func (h *InsuranceHandlers) PayPremiumHandler(w http.ResponseWriter, r *http.Request) {
	payer, ok := GetPartyID(r.Context())
	if !ok {
		http.Error(w, "Could not get party ID from context", http.StatusInternalServerError)
		return
	}
	policyID, ok := h.parseID(w, r, "policyID")
	if !ok {
		return
	}

	receipt, err := h.service.PayPremium(r.Context(), policyID, payer)
	if err != nil {
		h.writeServiceError(w, err, "pay premium")
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// InvokeTriggerHandler executes an oracle-authorized payout against a policy.
func (h *InsuranceHandlers) InvokeTriggerHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetPartyID(r.Context())
	if !ok {
		http.Error(w, "Could not get party ID from context", http.StatusInternalServerError)
		return
	}
	policyID, ok := h.parseID(w, r, "policyID")
	if !ok {
		return
	}

	receipt, err := h.service.InvokeTrigger(r.Context(), policyID, caller)
	if err != nil {
		h.writeServiceError(w, err, "invoke trigger")
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// parseID extracts a sequential id from the URL, rejecting anything that is
// not a non-negative integer.
func (h *InsuranceHandlers) parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid "+param)
		return 0, false
	}
	return id, true
}

// writeServiceError maps service-layer error kinds onto HTTP statuses.
func (h *InsuranceHandlers) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, store.ErrTemplateNotFound), errors.Is(err, store.ErrPolicyNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidTemplate):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrTemplateExpired):
		h.writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, app.ErrFundingFailed), errors.Is(err, app.ErrPaymentFailed):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrPremiumScheduleExhausted), errors.Is(err, app.ErrAlreadySettled):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrTriggerRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, app.ErrInsufficientEscrow):
		// Funding invariant breach; surfaced loudly, never retried here.
		log.Printf("level=error component=api op=%q msg=\"escrow invariant breach\" err=%v", op, err)
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("level=error component=api op=%q msg=\"unexpected service error\" err=%v", op, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *InsuranceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *InsuranceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
