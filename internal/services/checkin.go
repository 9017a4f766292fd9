package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mentorlink-backend/internal/models"
)

// CheckInStore persists check-ins; the pending-review variant creates the
// check-in and its intervention atomically.
type CheckInStore interface {
	Create(ctx context.Context, c *models.CheckIn) error
	CreateWithIntervention(ctx context.Context, c *models.CheckIn) (*models.Intervention, error)
}

// CompletionStore is the conditional completed-flag update.
type CompletionStore interface {
	Complete(ctx context.Context, id, studentID uuid.UUID) (bool, error)
}

// ReviewStarter kicks off the asynchronous review for a pending intervention.
type ReviewStarter interface {
	Schedule(studentID, interventionID uuid.UUID, quizScore, focusMinutes int)
}

// CheckInService handles the two domain messages an authenticated session
// accepts.
type CheckInService struct {
	checkIns      CheckInStore
	interventions CompletionStore
	review        ReviewStarter
}

func NewCheckInService(checkIns CheckInStore, interventions CompletionStore, review ReviewStarter) *CheckInService {
	return &CheckInService{
		checkIns:      checkIns,
		interventions: interventions,
		review:        review,
	}
}

// RecordCheckIn derives the on-track status and persists accordingly. A
// pending-review check-in creates its intervention in the same transaction
// and only then starts the review process; the result is returned
// immediately, the review decision arrives later on its own.
func (s *CheckInService) RecordCheckIn(ctx context.Context, studentID uuid.UUID, quizScore, focusMinutes int) (*models.CheckInResultEvent, error) {
	fieldErrors := make(map[string]string)
	if quizScore < 0 || quizScore > 10 {
		fieldErrors["quiz_score"] = "quiz_score must be between 0 and 10"
	}
	if focusMinutes < 0 || focusMinutes > 1440 {
		fieldErrors["focus_minutes"] = "focus_minutes must be between 0 and 1440"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	checkIn := &models.CheckIn{
		StudentID:    studentID,
		QuizScore:    quizScore,
		FocusMinutes: focusMinutes,
		Status:       models.DeriveStatus(quizScore, focusMinutes),
	}

	if checkIn.Status == models.StatusOnTrack {
		if err := s.checkIns.Create(ctx, checkIn); err != nil {
			return nil, fmt.Errorf("failed to create check-in: %w", err)
		}
		return &models.CheckInResultEvent{
			Status:    models.StatusLabel(checkIn.Status),
			CheckInID: checkIn.ID,
		}, nil
	}

	intervention, err := s.checkIns.CreateWithIntervention(ctx, checkIn)
	if err != nil {
		return nil, fmt.Errorf("failed to create check-in with intervention: %w", err)
	}

	s.review.Schedule(studentID, intervention.ID, quizScore, focusMinutes)

	interventionID := intervention.ID
	return &models.CheckInResultEvent{
		Status:         models.StatusLabel(checkIn.Status),
		CheckInID:      checkIn.ID,
		InterventionID: &interventionID,
	}, nil
}

// RecordRemedialCompletion marks an assigned intervention completed. Unknown
// ids, interventions owned by someone else, unassigned interventions and
// repeat reports are all rejected the same way, as not found; the caller
// learns nothing about interventions that are not theirs to complete.
func (s *CheckInService) RecordRemedialCompletion(ctx context.Context, studentID, interventionID uuid.UUID) error {
	ok, err := s.interventions.Complete(ctx, interventionID, studentID)
	if err != nil {
		return fmt.Errorf("failed to complete intervention: %w", err)
	}
	if !ok {
		return &NotFoundError{Message: "No assigned, incomplete intervention with that ID"}
	}
	return nil
}
