package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebSocket message envelope, both directions.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewWSMessage wraps a payload in the envelope. Payloads are plain structs
// from this package; marshaling them cannot fail.
func NewWSMessage(msgType string, payload interface{}) WSMessage {
	data, _ := json.Marshal(payload)
	return WSMessage{Type: msgType, Payload: data}
}

// Inbound payloads

type ConnectPayload struct {
	Token string `json:"token"`
}

type DailyCheckInPayload struct {
	QuizScore    int `json:"quiz_score"`
	FocusMinutes int `json:"focus_minutes"`
}

type RemedialCompletedPayload struct {
	InterventionID uuid.UUID `json:"intervention_id"`
}

// Outbound events

type ConnectedEvent struct {
	StudentID uuid.UUID `json:"student_id"`
	Mode      string    `json:"mode"`
}

type CheckInResultEvent struct {
	Status         string     `json:"status"`
	CheckInID      uuid.UUID  `json:"checkin_id"`
	InterventionID *uuid.UUID `json:"intervention_id,omitempty"`
}

type InterventionAssignedEvent struct {
	InterventionID uuid.UUID `json:"intervention_id"`
	AssignedTasks  string    `json:"assigned_tasks"`
	Mode           string    `json:"mode"`
}

type RemedialCompletedEvent struct {
	InterventionID uuid.UUID `json:"intervention_id"`
	Mode           string    `json:"mode"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// ReviewNotifyJob is the payload queued for the delegated review policy and
// posted verbatim to the external decision service.
type ReviewNotifyJob struct {
	StudentID      uuid.UUID `json:"student_id"`
	InterventionID uuid.UUID `json:"intervention_id"`
	QuizScore      int       `json:"quiz_score"`
	FocusMinutes   int       `json:"focus_minutes"`
	RequestedAt    time.Time `json:"requested_at"`
}

// API Error response

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
