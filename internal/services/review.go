package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"mentorlink-backend/internal/config"
	"mentorlink-backend/internal/database"
	"mentorlink-backend/internal/models"
)

// Timer is a cancellable scheduled task.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts delayed execution so tests run without wall-clock
// delays.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewRealScheduler returns the wall-clock Scheduler used in production.
func NewRealScheduler() Scheduler { return realScheduler{} }

// InterventionStore is the persistence surface the review process mutates.
type InterventionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Intervention, error)
	MarkAssigned(ctx context.Context, id uuid.UUID, tasks string) (*models.Intervention, error)
}

// Deliverer pushes the decision event to the student if they are online.
type Deliverer interface {
	DeliverInterventionAssigned(studentID, interventionID uuid.UUID, assignedTasks string) bool
}

// ReviewService owns the asynchronous review process that eventually turns a
// pending intervention into an assigned one. Two policies, same downstream
// contract (one decision event per intervention, eventually, at most once):
//
//   - local: a delayed in-process timer derives the remedial plan from the
//     failing scores;
//   - delegated: a one-shot notify job is queued for the external decision
//     service, which later calls back through the webhook handler.
type ReviewService struct {
	mode          string
	delay         time.Duration
	scheduler     Scheduler
	interventions InterventionStore
	dispatcher    Deliverer
	queue         *redis.Client // delegated mode only

	mu      sync.Mutex
	timers  map[uuid.UUID]Timer
	stopped bool
}

func NewReviewService(mode string, delay time.Duration, scheduler Scheduler, interventions InterventionStore, dispatcher Deliverer, queue *redis.Client) *ReviewService {
	return &ReviewService{
		mode:          mode,
		delay:         delay,
		scheduler:     scheduler,
		interventions: interventions,
		dispatcher:    dispatcher,
		queue:         queue,
		timers:        make(map[uuid.UUID]Timer),
	}
}

// Schedule kicks off the review process for a freshly created intervention.
// It returns immediately; the decision arrives later on its own schedule.
func (s *ReviewService) Schedule(studentID, interventionID uuid.UUID, quizScore, focusMinutes int) {
	if s.mode == config.ReviewModeDelegated {
		s.notifyDelegated(studentID, interventionID, quizScore, focusMinutes)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timers[interventionID] = s.scheduler.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, interventionID)
		s.mu.Unlock()

		tasks := RemediationPlan(quizScore, focusMinutes)
		if _, err := s.HandleDecision(context.Background(), studentID, interventionID, tasks); err != nil {
			log.Printf("Local review for intervention %s failed: %v", interventionID, err)
		}
	})
	s.mu.Unlock()
}

// notifyDelegated queues the one-shot notification for the worker pool. A
// queue failure is logged and never retried: the intervention stays pending
// until an operator uses the manual approval endpoint.
func (s *ReviewService) notifyDelegated(studentID, interventionID uuid.UUID, quizScore, focusMinutes int) {
	job := models.ReviewNotifyJob{
		StudentID:      studentID,
		InterventionID: interventionID,
		QuizScore:      quizScore,
		FocusMinutes:   focusMinutes,
		RequestedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("Failed to marshal notify job for intervention %s: %v", interventionID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.RPush(ctx, database.ReviewNotifyQueue, data).Err(); err != nil {
		log.Printf("Failed to queue notify for intervention %s (manual approval required): %v", interventionID, err)
	}
}

// HandleDecision is the single "mark assigned + attempt delivery" path shared
// by the local timer, the webhook callback and manual approval. The record is
// persisted before delivery is attempted, so a missed delivery loses nothing.
func (s *ReviewService) HandleDecision(ctx context.Context, studentID, interventionID uuid.UUID, assignedTasks string) (bool, error) {
	iv, err := s.interventions.GetByID(ctx, interventionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, &NotFoundError{Message: "Intervention not found"}
		}
		return false, err
	}
	if iv.StudentID != studentID {
		return false, &NotFoundError{Message: "Intervention not found"}
	}
	if iv.TaskAssigned {
		return false, &ConflictError{Message: "Decision already recorded for this intervention"}
	}

	if _, err := s.interventions.MarkAssigned(ctx, interventionID, assignedTasks); err != nil {
		// A racing decision that committed first also lands here.
		if errors.Is(err, pgx.ErrNoRows) {
			return false, &ConflictError{Message: "Decision already recorded for this intervention"}
		}
		return false, fmt.Errorf("failed to mark intervention assigned: %w", err)
	}

	delivered := s.dispatcher.DeliverInterventionAssigned(studentID, interventionID, assignedTasks)
	return delivered, nil
}

// ManualApprove is the operator recovery path: it bypasses both policies and
// records the decision directly, typically when the delegated service never
// called back.
func (s *ReviewService) ManualApprove(ctx context.Context, interventionID uuid.UUID, assignedTasks string) (bool, error) {
	iv, err := s.interventions.GetByID(ctx, interventionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, &NotFoundError{Message: "Intervention not found"}
		}
		return false, err
	}
	return s.HandleDecision(ctx, iv.StudentID, interventionID, assignedTasks)
}

// Stop cancels outstanding local timers. Scheduled reviews that have not
// fired are simply dropped; their interventions stay pending and discoverable
// via pull.
func (s *ReviewService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// RemediationPlan derives remedial task text from the failing scores.
func RemediationPlan(quizScore, focusMinutes int) string {
	quizLow := quizScore < models.OnTrackQuizScore
	focusLow := focusMinutes < models.OnTrackFocusMinutes

	switch {
	case quizLow && focusLow:
		return "Redo this week's quiz after reviewing the lesson notes, and complete two 30-minute focus sessions before your next check-in."
	case quizLow:
		return "Review the topics you missed and retake the practice quiz until you score at least 7."
	default:
		return "Schedule at least one uninterrupted 60-minute study block each day this week."
	}
}
