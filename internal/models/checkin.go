package models

import (
	"time"

	"github.com/google/uuid"
)

// Check-in status values stored in the database.
const (
	StatusOnTrack       = "on_track"
	StatusPendingReview = "pending_review"
)

// Thresholds for the on-track test.
const (
	OnTrackQuizScore    = 7
	OnTrackFocusMinutes = 60
)

type CheckIn struct {
	ID           uuid.UUID `json:"id"`
	StudentID    uuid.UUID `json:"student_id"`
	QuizScore    int       `json:"quiz_score"`
	FocusMinutes int       `json:"focus_minutes"`
	Status       string    `json:"status"` // "on_track" | "pending_review"
	CreatedAt    time.Time `json:"created_at"`
}

type Intervention struct {
	ID            uuid.UUID `json:"id"`
	StudentID     uuid.UUID `json:"student_id"`
	TaskAssigned  bool      `json:"task_assigned"`
	AssignedTasks *string   `json:"assigned_tasks"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeriveStatus applies the on-track rule to a check-in report.
func DeriveStatus(quizScore, focusMinutes int) string {
	if quizScore >= OnTrackQuizScore && focusMinutes >= OnTrackFocusMinutes {
		return StatusOnTrack
	}
	return StatusPendingReview
}

// StatusLabel is the human-readable form sent to clients.
func StatusLabel(status string) string {
	if status == StatusOnTrack {
		return "On Track"
	}
	return "Pending Mentor Review"
}
