package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReviewCallback is the re-entry path for decisions made by the external
// service.
type ReviewCallback interface {
	HandleDecision(ctx context.Context, studentID, interventionID uuid.UUID, assignedTasks string) (bool, error)
}

// ReplayGuard answers whether a decision for this intervention is the first
// one seen recently. Release gives the claim back when recording the decision
// failed, so the external service's retry is not mistaken for a replay.
type ReplayGuard interface {
	FirstDecision(ctx context.Context, interventionID uuid.UUID) bool
	Release(ctx context.Context, interventionID uuid.UUID)
}

// RedisReplayGuard keys decisions by intervention id with a 24h TTL. Fails
// open: if redis is unreachable the database's task_assigned condition still
// enforces at-most-once.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) FirstDecision(ctx context.Context, interventionID uuid.UUID) bool {
	fresh, err := g.client.SetNX(ctx, "review_decision:"+interventionID.String(), "1", 24*time.Hour).Result()
	if err != nil {
		return true
	}
	return fresh
}

func (g *RedisReplayGuard) Release(ctx context.Context, interventionID uuid.UUID) {
	g.client.Del(ctx, "review_decision:"+interventionID.String())
}

// WebhookHandler receives the delegated decision service's callback, guarded
// by a shared secret and a replay check.
type WebhookHandler struct {
	review ReviewCallback
	guard  ReplayGuard
	secret string
}

func NewWebhookHandler(review ReviewCallback, guard ReplayGuard, secret string) *WebhookHandler {
	return &WebhookHandler{
		review: review,
		guard:  guard,
		secret: secret,
	}
}

func (h *WebhookHandler) ReviewDecision(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("NOT_CONFIGURED", "Webhook secret is not configured", r))
		return
	}

	got := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Invalid webhook secret", r))
		return
	}

	var req struct {
		StudentID      uuid.UUID `json:"student_id"`
		InterventionID uuid.UUID `json:"intervention_id"`
		AssignedTasks  string    `json:"assigned_tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.StudentID == uuid.Nil || req.InterventionID == uuid.Nil || req.AssignedTasks == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "student_id, intervention_id and assigned_tasks are required", r))
		return
	}

	if !h.guard.FirstDecision(r.Context(), req.InterventionID) {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Decision already received for this intervention", r))
		return
	}

	delivered, err := h.review.HandleDecision(r.Context(), req.StudentID, req.InterventionID, req.AssignedTasks)
	if err != nil {
		// Give the claim back so a retry of a transiently failed decision is
		// not rejected as a replay. Genuine replays still conflict on the
		// database's task_assigned condition.
		h.guard.Release(r.Context(), req.InterventionID)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Decision recorded",
		"delivered": delivered,
	})
}
