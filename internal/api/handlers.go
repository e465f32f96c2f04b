/**
 * @description
 * HTTP handlers for the fundraising service.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pawfund/fundraising-service/internal/app"
	"github.com/pawfund/fundraising-service/internal/domain"
	"github.com/pawfund/fundraising-service/internal/store"
	"github.com/shopspring/decimal"
)

// CampaignService is the campaign surface the handlers drive.
type CampaignService interface {
	Create(ctx context.Context, in domain.NewCampaignInput) (domain.CampaignView, error)
	Get(ctx context.Context, id uuid.UUID) (domain.CampaignView, error)
	CheckAcceptingDonations(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, shelterID, id uuid.UUID) (domain.CampaignView, error)
	Cancel(ctx context.Context, shelterID, id uuid.UUID) (domain.CampaignView, error)
}

// AdoptionService is the adoption request surface the handlers drive.
type AdoptionService interface {
	Create(ctx context.Context, in domain.NewAdoptionRequestInput) (domain.AdoptionRequestView, error)
	Get(ctx context.Context, id uuid.UUID) (domain.AdoptionRequestView, error)
	Approve(ctx context.Context, shelterID, id uuid.UUID, proofImageRef *string) (domain.AdoptionRequestView, error)
	Deny(ctx context.Context, shelterID, id uuid.UUID, reason *string) (domain.AdoptionRequestView, error)
	Cancel(ctx context.Context, requesterID, id uuid.UUID) (domain.AdoptionRequestView, error)
}

// PetFundingService is the pet funding surface the handlers drive.
type PetFundingService interface {
	Register(ctx context.Context, petID, shelterID uuid.UUID, goals domain.CareBuckets) (domain.PetFundingView, error)
	UpdateGoals(ctx context.Context, shelterID, petID uuid.UUID, goals domain.CareBuckets) (domain.PetFundingView, error)
	Get(ctx context.Context, petID uuid.UUID) (domain.PetFundingView, error)
}

// Reconciler runs the reconciliation sweep on demand.
type Reconciler interface {
	Reconcile(ctx context.Context) (app.ReconciliationReport, error)
}

// Handler holds the application services that handlers interact with.
type Handler struct {
	campaigns  CampaignService
	adoptions  AdoptionService
	pets       PetFundingService
	reconciler Reconciler
	logger     *slog.Logger
}

// NewHandler creates a new Handler with the given services.
func NewHandler(campaigns CampaignService, adoptions AdoptionService, pets PetFundingService, reconciler Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		campaigns:  campaigns,
		adoptions:  adoptions,
		pets:       pets,
		reconciler: reconciler,
		logger:     logger,
	}
}

type createCampaignRequest struct {
	ShelterID     uuid.UUID       `json:"shelter_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	GoalAmount    decimal.Decimal `json:"goal_amount"`
	Priority      string          `json:"priority"`
	DurationWeeks int             `json:"duration_weeks"`
	ImageRef      *string         `json:"image_ref"`
}

type shelterActionRequest struct {
	ShelterID uuid.UUID `json:"shelter_id"`
}

type createAdoptionRequest struct {
	RequesterID uuid.UUID `json:"requester_id"`
	PetID       uuid.UUID `json:"pet_id"`
	ShelterID   uuid.UUID `json:"shelter_id"`
	PawPoints   int       `json:"paw_points"`
	Message     *string   `json:"message"`
}

type approveAdoptionRequest struct {
	ShelterID     uuid.UUID `json:"shelter_id"`
	ProofImageRef *string   `json:"proof_image_ref"`
}

type denyAdoptionRequest struct {
	ShelterID uuid.UUID `json:"shelter_id"`
	Reason    *string   `json:"reason"`
}

type requesterActionRequest struct {
	RequesterID uuid.UUID `json:"requester_id"`
}

type petFundingRequest struct {
	ShelterID    uuid.UUID          `json:"shelter_id"`
	MonthlyGoals domain.CareBuckets `json:"monthly_goals"`
}

func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	view, err := h.campaigns.Create(r.Context(), domain.NewCampaignInput{
		ShelterID:     req.ShelterID,
		Title:         req.Title,
		Description:   req.Description,
		GoalAmount:    req.GoalAmount,
		Priority:      priority,
		DurationWeeks: req.DurationWeeks,
		ImageRef:      req.ImageRef,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCheckAcceptingDonations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.campaigns.CheckAcceptingDonations(r.Context(), id); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"accepting": true})
}

func (h *Handler) handleCompleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req shelterActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.campaigns.Complete(r.Context(), req.ShelterID, id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req shelterActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.campaigns.Cancel(r.Context(), req.ShelterID, id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCreateAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	var req createAdoptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.adoptions.Create(r.Context(), domain.NewAdoptionRequestInput{
		RequesterID: req.RequesterID,
		PetID:       req.PetID,
		ShelterID:   req.ShelterID,
		PawPoints:   req.PawPoints,
		Message:     req.Message,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.adoptions.Get(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleApproveAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req approveAdoptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.adoptions.Approve(r.Context(), req.ShelterID, id, req.ProofImageRef)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDenyAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req denyAdoptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.adoptions.Deny(r.Context(), req.ShelterID, id, req.Reason)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleCancelAdoptionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req requesterActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.adoptions.Cancel(r.Context(), req.RequesterID, id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRegisterPetFunding(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req petFundingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.pets.Register(r.Context(), petID, req.ShelterID, req.MonthlyGoals)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetPetFunding(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathID(w, r)
	if !ok {
		return
	}

	view, err := h.pets.Get(r.Context(), petID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdatePetFundingGoals(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req petFundingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.pets.UpdateGoals(r.Context(), req.ShelterID, petID, req.MonthlyGoals)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRunReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		if errors.Is(err, app.ErrReconciliationInProgress) {
			respondWithJSON(w, http.StatusConflict, errorResponse{Code: codeReconciliationBusy, Message: err.Error()})
			return
		}
		h.logger.Error("manual reconciliation failed", "error", err)
		respondWithJSON(w, http.StatusInternalServerError, reconciliationFailure{
			errorResponse: errorResponse{Code: codeInternal, Message: err.Error()},
			Report:        report,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// Transport-level codes for failures that carry no domain code.
const (
	codeNotFound           domain.ErrorCode = "NOT_FOUND"
	codeMalformedRequest   domain.ErrorCode = "MALFORMED_REQUEST"
	codeReconciliationBusy domain.ErrorCode = "RECONCILIATION_IN_PROGRESS"
	codeUnauthorized       domain.ErrorCode = "UNAUTHORIZED"
	codeInternal           domain.ErrorCode = "INTERNAL"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    domain.ErrorCode `json:"code"`
	Field   string           `json:"field,omitempty"`
	Message string           `json:"message"`
}

type reconciliationFailure struct {
	errorResponse
	Report app.ReconciliationReport `json:"report"`
}

// respondWithError maps domain codes and repository sentinels to HTTP statuses.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var de domain.DomainError
	if errors.As(err, &de) {
		status := statusForCode(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		respondWithJSON(w, status, errorResponse{Code: de.Code, Field: de.Field, Message: de.Message})
		return
	}

	switch {
	case errors.Is(err, store.ErrCampaignNotFound),
		errors.Is(err, store.ErrAdoptionRequestNotFound),
		errors.Is(err, store.ErrPetFundingNotFound):
		respondWithJSON(w, http.StatusNotFound, errorResponse{Code: codeNotFound, Message: err.Error()})
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithJSON(w, http.StatusInternalServerError, errorResponse{Code: codeInternal, Message: "internal server error"})
	}
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorInvalidInput:
		return http.StatusBadRequest
	case domain.ErrorForbidden:
		return http.StatusForbidden
	case domain.ErrorNotEligible:
		return http.StatusUnprocessableEntity
	case domain.ErrorInvalidStateTransition, domain.ErrorWindowExpired, domain.ErrorConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Code: codeMalformedRequest, Field: "id", Message: "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Code: codeMalformedRequest, Message: "invalid request body"})
		return false
	}
	return true
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
