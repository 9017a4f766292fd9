package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns the shared registry and spawns a Session per upgraded connection.
// Unlike REST routes, the upgrade itself is unauthenticated: the session
// stays in the Unauthenticated state until its first message presents a
// valid credential.
type Hub struct {
	registry *Registry
	verifier TokenVerifier
	checkins CheckInService
	events   *redis.Client
	mode     string
}

func NewHub(registry *Registry, verifier TokenVerifier, checkins CheckInService, events *redis.Client, mode string) *Hub {
	return &Hub{
		registry: registry,
		verifier: verifier,
		checkins: checkins,
		events:   events,
		mode:     mode,
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	session := newSession(conn, h.registry, h.verifier, h.checkins, h.events, h.mode)
	go session.Run()
}
