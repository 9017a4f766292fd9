package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"mentorlink-backend/internal/database"
	"mentorlink-backend/internal/models"
	"mentorlink-backend/internal/services"
)

const writeTimeout = 5 * time.Second

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateClosed
)

// socket is the transport surface a session drives. *websocket.Conn satisfies
// it; tests use an in-memory fake.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// TokenVerifier validates the credential carried by a "connect" message.
type TokenVerifier interface {
	VerifyConnectionToken(token string) (uuid.UUID, error)
}

// CheckInService is what an authenticated session calls for domain messages.
type CheckInService interface {
	RecordCheckIn(ctx context.Context, studentID uuid.UUID, quizScore, focusMinutes int) (*models.CheckInResultEvent, error)
	RecordRemedialCompletion(ctx context.Context, studentID, interventionID uuid.UUID) error
}

// Session runs the per-connection protocol: Unauthenticated until a valid
// "connect" message arrives, Authenticated while the channel stays open,
// Closed once it doesn't. Binding and unbinding against the registry happen
// on the state transitions, never anywhere else.
type Session struct {
	id       uuid.UUID
	sock     socket
	registry *Registry
	verifier TokenVerifier
	checkins CheckInService
	events   *redis.Client // pub/sub relay, may be nil
	mode     string

	writeMu sync.Mutex

	mu          sync.Mutex
	state       sessionState
	studentID   uuid.UUID
	cancelRelay context.CancelFunc
}

func newSession(sock socket, registry *Registry, verifier TokenVerifier, checkins CheckInService, events *redis.Client, mode string) *Session {
	return &Session{
		id:       uuid.New(),
		sock:     sock,
		registry: registry,
		verifier: verifier,
		checkins: checkins,
		events:   events,
		mode:     mode,
	}
}

// Run reads messages until the channel closes or the protocol demands
// termination, then cleans up. Per-connection order is preserved: messages
// are handled one at a time, in arrival order.
func (s *Session) Run() {
	defer s.close()

	for {
		_, data, err := s.sock.ReadMessage()
		if err != nil {
			return
		}
		if !s.handleMessage(data) {
			return
		}
	}
}

// handleMessage processes one inbound envelope. Returns false when the
// session must terminate (failed authentication).
func (s *Session) handleMessage(data []byte) bool {
	var msg models.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError("invalid message format")
		return true
	}

	switch msg.Type {
	case "connect":
		return s.handleConnect(msg.Payload)
	case "daily_checkin":
		s.handleDailyCheckIn(msg.Payload)
		return true
	case "remedial_completed":
		s.handleRemedialCompleted(msg.Payload)
		return true
	default:
		s.sendError("unknown message type")
		return true
	}
}

func (s *Session) handleConnect(payload json.RawMessage) bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case stateClosed:
		// Closed is terminal. A displaced session may still have a connect
		// in flight; letting it re-authenticate would rebind its dead socket
		// over the live replacement.
		return false
	case stateAuthenticated:
		s.sendError("already connected")
		return true
	}

	var req models.ConnectPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError("invalid message format")
		return true
	}

	studentID, err := s.verifier.VerifyConnectionToken(req.Token)
	if err != nil {
		s.sendError("authentication failed")
		return false
	}

	s.mu.Lock()
	// Close may have raced the token check; re-verify before transitioning.
	if s.state != stateUnauthenticated {
		s.mu.Unlock()
		return false
	}
	s.state = stateAuthenticated
	s.studentID = studentID
	s.mu.Unlock()

	s.registry.Bind(studentID, s, s.id)
	s.startRelay(studentID)

	s.send(models.NewWSMessage("connected", models.ConnectedEvent{
		StudentID: studentID,
		Mode:      s.mode,
	}))

	log.Printf("WebSocket connected: student %s", studentID)
	return true
}

func (s *Session) handleDailyCheckIn(payload json.RawMessage) {
	studentID, ok := s.authenticated()
	if !ok {
		return
	}

	var req models.DailyCheckInPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError("invalid message format")
		return
	}

	result, err := s.checkins.RecordCheckIn(context.Background(), studentID, req.QuizScore, req.FocusMinutes)
	if err != nil {
		s.sendServiceError(err, "failed to record check-in")
		return
	}

	s.send(models.NewWSMessage("checkin_result", result))
}

func (s *Session) handleRemedialCompleted(payload json.RawMessage) {
	studentID, ok := s.authenticated()
	if !ok {
		return
	}

	var req models.RemedialCompletedPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError("invalid message format")
		return
	}
	if req.InterventionID == uuid.Nil {
		s.sendError("intervention_id is required")
		return
	}

	err := s.checkins.RecordRemedialCompletion(context.Background(), studentID, req.InterventionID)
	if err != nil {
		s.sendServiceError(err, "failed to record completion")
		return
	}

	s.send(models.NewWSMessage("remedial_completed", models.RemedialCompletedEvent{
		InterventionID: req.InterventionID,
		Mode:           s.mode,
	}))
}

// authenticated returns the bound student, emitting an error event when the
// session has not completed the connect handshake.
func (s *Session) authenticated() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateAuthenticated {
		s.sendError("authentication required")
		return uuid.Nil, false
	}
	return s.studentID, true
}

// startRelay subscribes to the student's pub/sub channel and forwards
// published payloads to this socket, so events published by other instances
// or operator tooling still reach a locally-held connection.
func (s *Session) startRelay(studentID uuid.UUID) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelRelay = cancel
	s.mu.Unlock()

	go func() {
		pubsub := s.events.Subscribe(ctx, database.StudentEventsChannel(studentID.String()))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.writeRaw([]byte(msg.Payload))
			}
		}
	}()
}

func (s *Session) close() {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	wasAuthenticated := s.state == stateAuthenticated
	studentID := s.studentID
	cancel := s.cancelRelay
	s.state = stateClosed
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasAuthenticated {
		s.registry.Unbind(studentID, s.id)
		log.Printf("WebSocket disconnected: student %s", studentID)
	}
	s.sock.Close()
}

// Alive implements Conn.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateAuthenticated
}

// Close implements Conn. Called by the registry when a newer connection
// replaces this one.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancelRelay
	s.state = stateClosed
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// The read loop wakes up with an error and exits; the registry entry is
	// already owned by the replacement, so its Unbind is a no-op.
	return s.sock.Close()
}

// WriteJSON implements Conn.
func (s *Session) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

func (s *Session) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.sock.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) send(msg models.WSMessage) {
	if err := s.WriteJSON(msg); err != nil {
		log.Printf("WebSocket write failed (session %s): %v", s.id, err)
	}
}

func (s *Session) sendError(message string) {
	s.send(models.NewWSMessage("error", models.ErrorEvent{Message: message}))
}

// sendServiceError maps service errors onto the wire without leaking
// internals. Validation and not-found problems carry their message; anything
// else gets the generic fallback.
func (s *Session) sendServiceError(err error, fallback string) {
	switch e := err.(type) {
	case *services.ValidationError:
		s.sendError(e.Detail())
	case *services.NotFoundError:
		s.sendError(e.Message)
	default:
		s.sendError(fallback)
	}
}
