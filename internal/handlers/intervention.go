package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mentorlink-backend/internal/middleware"
	"mentorlink-backend/internal/models"
)

// InterventionStore is the pull-reconciliation query surface.
type InterventionStore interface {
	FindPending(ctx context.Context, studentID uuid.UUID) ([]*models.Intervention, error)
}

// CheckInStore serves the check-in history listing.
type CheckInStore interface {
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]*models.CheckIn, error)
}

// ReviewApprover is the operator recovery trigger.
type ReviewApprover interface {
	ManualApprove(ctx context.Context, interventionID uuid.UUID, assignedTasks string) (bool, error)
}

type InterventionHandler struct {
	interventions InterventionStore
	checkIns      CheckInStore
	review        ReviewApprover
}

func NewInterventionHandler(interventions InterventionStore, checkIns CheckInStore, review ReviewApprover) *InterventionHandler {
	return &InterventionHandler{
		interventions: interventions,
		checkIns:      checkIns,
		review:        review,
	}
}

// ListPending is how an offline student discovers interventions assigned
// while they were disconnected: push is best-effort, this query is the
// guarantee.
func (h *InterventionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	studentID := middleware.GetStudentID(r.Context())

	interventions, err := h.interventions.FindPending(r.Context(), studentID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load interventions", r))
		return
	}
	if interventions == nil {
		interventions = []*models.Intervention{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interventions": interventions,
	})
}

func (h *InterventionHandler) History(w http.ResponseWriter, r *http.Request) {
	studentID := middleware.GetStudentID(r.Context())

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "limit must be between 1 and 100", r))
			return
		}
		limit = n
	}

	checkIns, err := h.checkIns.ListByStudent(r.Context(), studentID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load check-ins", r))
		return
	}
	if checkIns == nil {
		checkIns = []*models.CheckIn{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"check_ins": checkIns,
	})
}

// ManualApprove records a review decision directly, bypassing both review
// policies. Recovery path for when the delegated service never calls back.
func (h *InterventionHandler) ManualApprove(w http.ResponseWriter, r *http.Request) {
	interventionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid intervention ID", r))
		return
	}

	var req struct {
		AssignedTasks string `json:"assigned_tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.AssignedTasks == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "assigned_tasks is required", r))
		return
	}

	delivered, err := h.review.ManualApprove(r.Context(), interventionID, req.AssignedTasks)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Intervention approved",
		"delivered": delivered,
	})
}
