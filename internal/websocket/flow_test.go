package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorlink-backend/internal/config"
	"mentorlink-backend/internal/models"
	"mentorlink-backend/internal/services"
)

// memStore is an in-memory stand-in for the check-in and intervention
// repositories, enough to run the full check-in to decision flow without a
// database.
type memStore struct {
	mu            sync.Mutex
	checkIns      map[uuid.UUID]*models.CheckIn
	interventions map[uuid.UUID]*models.Intervention
}

func newMemStore() *memStore {
	return &memStore{
		checkIns:      make(map[uuid.UUID]*models.CheckIn),
		interventions: make(map[uuid.UUID]*models.Intervention),
	}
}

func (m *memStore) Create(ctx context.Context, c *models.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	m.checkIns[c.ID] = c
	return nil
}

func (m *memStore) CreateWithIntervention(ctx context.Context, c *models.CheckIn) (*models.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	m.checkIns[c.ID] = c

	iv := &models.Intervention{
		ID:        uuid.New(),
		StudentID: c.StudentID,
		CreatedAt: time.Now(),
	}
	m.interventions[iv.ID] = iv
	return iv, nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interventions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *iv
	return &copied, nil
}

func (m *memStore) MarkAssigned(ctx context.Context, id uuid.UUID, tasks string) (*models.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interventions[id]
	if !ok || iv.TaskAssigned {
		return nil, pgx.ErrNoRows
	}
	iv.TaskAssigned = true
	iv.AssignedTasks = &tasks
	iv.UpdatedAt = time.Now()
	copied := *iv
	return &copied, nil
}

func (m *memStore) Complete(ctx context.Context, id, studentID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.interventions[id]
	if !ok || iv.StudentID != studentID || !iv.TaskAssigned || iv.Completed {
		return false, nil
	}
	iv.Completed = true
	iv.UpdatedAt = time.Now()
	return true, nil
}

// capturedScheduler records scheduled functions so tests fire them on demand.
type capturedScheduler struct {
	mu  sync.Mutex
	fns []func()
}

type capturedTimer struct{}

func (capturedTimer) Stop() bool { return true }

func (s *capturedScheduler) AfterFunc(d time.Duration, fn func()) services.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	return capturedTimer{}
}

func (s *capturedScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.fns) == 0 {
		s.mu.Unlock()
		t.Fatal("No scheduled review to fire")
	}
	fn := s.fns[0]
	s.fns = s.fns[1:]
	s.mu.Unlock()
	fn()
}

// TestCheckInToInterventionFlow drives the whole pending-review path through
// a connected session: check-in, scheduled review firing, decision event
// pushed back down the same connection, then remedial completion.
func TestCheckInToInterventionFlow(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry()
	scheduler := &capturedScheduler{}
	studentID := uuid.New()

	dispatcher := services.NewDispatcher(registry, nil, config.ReviewModeLocal)
	review := services.NewReviewService(config.ReviewModeLocal, 10*time.Second, scheduler, store, dispatcher, nil)
	checkins := services.NewCheckInService(store, store, review)

	sock := &fakeSocket{}
	session := newSession(sock, registry, &fakeVerifier{studentID: studentID, valid: "good"}, checkins, nil, config.ReviewModeLocal)

	session.handleMessage(envelope(t, "connect", models.ConnectPayload{Token: "good"}))
	session.handleMessage(envelope(t, "daily_checkin", models.DailyCheckInPayload{QuizScore: 4, FocusMinutes: 30}))

	msg := sock.last(t)
	if msg.Type != "checkin_result" {
		t.Fatalf("Expected checkin_result, got %q", msg.Type)
	}
	var result models.CheckInResultEvent
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		t.Fatalf("Failed to decode checkin_result: %v", err)
	}
	if result.Status != "Pending Mentor Review" {
		t.Errorf("Expected 'Pending Mentor Review', got %q", result.Status)
	}
	if result.InterventionID == nil {
		t.Fatal("Pending check-in must reference its intervention")
	}

	scheduler.fire(t)

	msg = sock.last(t)
	if msg.Type != "intervention_assigned" {
		t.Fatalf("Expected intervention_assigned after review fired, got %q", msg.Type)
	}
	var assigned models.InterventionAssignedEvent
	if err := json.Unmarshal(msg.Payload, &assigned); err != nil {
		t.Fatalf("Failed to decode intervention_assigned: %v", err)
	}
	if assigned.InterventionID != *result.InterventionID {
		t.Error("Assigned event must reference the check-in's intervention")
	}
	if assigned.AssignedTasks != services.RemediationPlan(4, 30) {
		t.Errorf("Unexpected remedial plan: %q", assigned.AssignedTasks)
	}

	session.handleMessage(envelope(t, "remedial_completed", models.RemedialCompletedPayload{InterventionID: assigned.InterventionID}))
	msg = sock.last(t)
	if msg.Type != "remedial_completed" {
		t.Fatalf("Expected remedial_completed confirmation, got %q", msg.Type)
	}

	iv, err := store.GetByID(context.Background(), assigned.InterventionID)
	if err != nil {
		t.Fatalf("Intervention lookup failed: %v", err)
	}
	if !iv.TaskAssigned || !iv.Completed {
		t.Errorf("Expected assigned and completed intervention, got %+v", iv)
	}
}

// TestDecisionWhileOffline verifies the offline half of the contract: the
// decision is persisted even though nobody receives the push, and the
// intervention stays discoverable for pull reconciliation.
func TestDecisionWhileOffline(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry()
	scheduler := &capturedScheduler{}
	studentID := uuid.New()

	dispatcher := services.NewDispatcher(registry, nil, config.ReviewModeLocal)
	review := services.NewReviewService(config.ReviewModeLocal, 10*time.Second, scheduler, store, dispatcher, nil)
	checkins := services.NewCheckInService(store, store, review)

	result, err := checkins.RecordCheckIn(context.Background(), studentID, 2, 10)
	if err != nil {
		t.Fatalf("RecordCheckIn failed: %v", err)
	}

	scheduler.fire(t)

	iv, err := store.GetByID(context.Background(), *result.InterventionID)
	if err != nil {
		t.Fatalf("Intervention lookup failed: %v", err)
	}
	if !iv.TaskAssigned {
		t.Error("Decision must be persisted even with nobody connected")
	}
	if iv.Completed {
		t.Error("Intervention must stay open until the student completes it")
	}

	// A second decision for the same intervention is rejected.
	if _, err := review.HandleDecision(context.Background(), studentID, iv.ID, "anything"); err == nil {
		t.Error("Expected conflict on repeated decision")
	}
}
