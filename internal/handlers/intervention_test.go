package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mentorlink-backend/internal/middleware"
	"mentorlink-backend/internal/models"
	"mentorlink-backend/internal/services"
)

type fakeInterventionStore struct {
	pending []*models.Intervention
	err     error

	gotStudentID uuid.UUID
}

func (f *fakeInterventionStore) FindPending(ctx context.Context, studentID uuid.UUID) ([]*models.Intervention, error) {
	f.gotStudentID = studentID
	return f.pending, f.err
}

type fakeCheckInStore struct {
	checkIns []*models.CheckIn
	err      error

	gotLimit int
}

func (f *fakeCheckInStore) ListByStudent(ctx context.Context, studentID uuid.UUID, limit int) ([]*models.CheckIn, error) {
	f.gotLimit = limit
	return f.checkIns, f.err
}

type fakeReviewApprover struct {
	delivered bool
	err       error

	gotID    uuid.UUID
	gotTasks string
}

func (f *fakeReviewApprover) ManualApprove(ctx context.Context, interventionID uuid.UUID, assignedTasks string) (bool, error) {
	f.gotID = interventionID
	f.gotTasks = assignedTasks
	if f.err != nil {
		return false, f.err
	}
	return f.delivered, nil
}

func authedRequest(method, target string, body *bytes.Buffer, studentID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.StudentIDKey, studentID)
	return req.WithContext(ctx)
}

func TestListPending(t *testing.T) {
	studentID := uuid.New()
	tasks := "Review chapter 4"
	store := &fakeInterventionStore{
		pending: []*models.Intervention{
			{ID: uuid.New(), StudentID: studentID, TaskAssigned: true, AssignedTasks: &tasks},
		},
	}
	handler := NewInterventionHandler(store, &fakeCheckInStore{}, &fakeReviewApprover{})

	w := httptest.NewRecorder()
	handler.ListPending(w, authedRequest(http.MethodGet, "/interventions/pending", nil, studentID))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if store.gotStudentID != studentID {
		t.Error("Query must be scoped to the authenticated student")
	}

	var resp struct {
		Interventions []*models.Intervention `json:"interventions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Interventions) != 1 {
		t.Errorf("Expected 1 intervention, got %d", len(resp.Interventions))
	}
}

func TestListPending_EmptyIsArray(t *testing.T) {
	handler := NewInterventionHandler(&fakeInterventionStore{}, &fakeCheckInStore{}, &fakeReviewApprover{})

	w := httptest.NewRecorder()
	handler.ListPending(w, authedRequest(http.MethodGet, "/interventions/pending", nil, uuid.New()))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(resp["interventions"]) != "[]" {
		t.Errorf("Expected empty array, got %s", resp["interventions"])
	}
}

func TestHistory_LimitHandling(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"default", "", http.StatusOK, 30},
		{"explicit", "?limit=5", http.StatusOK, 5},
		{"too large", "?limit=500", http.StatusBadRequest, 0},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"not a number", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeCheckInStore{}
			handler := NewInterventionHandler(&fakeInterventionStore{}, store, &fakeReviewApprover{})

			w := httptest.NewRecorder()
			handler.History(w, authedRequest(http.MethodGet, "/checkins"+tt.query, nil, uuid.New()))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && store.gotLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, store.gotLimit)
			}
		})
	}
}

func manualApproveRequest(t *testing.T, id string, body string) *http.Request {
	t.Helper()
	req := authedRequest(http.MethodPost, "/interventions/"+id+"/approve", bytes.NewBufferString(body), uuid.New())
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestManualApprove(t *testing.T) {
	interventionID := uuid.New()
	approver := &fakeReviewApprover{delivered: false}
	handler := NewInterventionHandler(&fakeInterventionStore{}, &fakeCheckInStore{}, approver)

	w := httptest.NewRecorder()
	handler.ManualApprove(w, manualApproveRequest(t, interventionID.String(), `{"assigned_tasks":"Retake the quiz"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if approver.gotID != interventionID || approver.gotTasks != "Retake the quiz" {
		t.Errorf("Approval not forwarded: got id=%s tasks=%q", approver.gotID, approver.gotTasks)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["delivered"] != false {
		t.Error("Expected delivered=false when the student is offline")
	}
}

func TestManualApprove_Rejections(t *testing.T) {
	interventionID := uuid.New()

	tests := []struct {
		name       string
		id         string
		body       string
		approver   *fakeReviewApprover
		wantStatus int
	}{
		{"bad id", "not-a-uuid", `{"assigned_tasks":"x"}`, &fakeReviewApprover{}, http.StatusBadRequest},
		{"missing tasks", interventionID.String(), `{}`, &fakeReviewApprover{}, http.StatusBadRequest},
		{"unknown intervention", interventionID.String(), `{"assigned_tasks":"x"}`, &fakeReviewApprover{err: &services.NotFoundError{Message: "Intervention not found"}}, http.StatusNotFound},
		{"already decided", interventionID.String(), `{"assigned_tasks":"x"}`, &fakeReviewApprover{err: &services.ConflictError{Message: "Decision already recorded for this intervention"}}, http.StatusConflict},
		{"store failure", interventionID.String(), `{"assigned_tasks":"x"}`, &fakeReviewApprover{err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterventionHandler(&fakeInterventionStore{}, &fakeCheckInStore{}, tt.approver)

			w := httptest.NewRecorder()
			handler.ManualApprove(w, manualApproveRequest(t, tt.id, tt.body))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}
