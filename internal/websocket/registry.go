package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the surface the registry needs from a live connection. Sessions
// satisfy it; tests substitute fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Alive() bool
	Close() error
}

type binding struct {
	conn     Conn
	instance uuid.UUID
}

// Registry maps a student identity to at most one live connection. It is the
// single shared mutable resource of the realtime core: one instance per
// process, injected into everything that delivers events.
type Registry struct {
	mu       sync.RWMutex
	bindings map[uuid.UUID]*binding
}

func NewRegistry() *Registry {
	return &Registry{bindings: make(map[uuid.UUID]*binding)}
}

// Bind registers conn as the student's connection, replacing (and closing)
// any previous one. Last writer wins; there is no error path. The instance
// id tags the entry so a stale connection's later Unbind cannot remove it.
func (r *Registry) Bind(studentID uuid.UUID, conn Conn, instance uuid.UUID) {
	r.mu.Lock()
	old := r.bindings[studentID]
	r.bindings[studentID] = &binding{conn: conn, instance: instance}
	r.mu.Unlock()

	if old != nil && old.instance != instance {
		old.conn.Close()
	}
}

// Unbind removes the student's entry only if it still refers to the given
// connection instance. A close racing with a newer Bind for the same student
// must not erase the newer entry.
func (r *Registry) Unbind(studentID uuid.UUID, instance uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[studentID]
	if !ok || b.instance != instance {
		return false
	}
	delete(r.bindings, studentID)
	return true
}

// Get returns the student's current connection, or nil.
func (r *Registry) Get(studentID uuid.UUID) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[studentID]
	if !ok {
		return nil
	}
	return b.conn
}

// IsLive reports whether a connection exists and its channel was open at the
// instant of the call. A snapshot only: the channel can close immediately
// after.
func (r *Registry) IsLive(studentID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[studentID]
	return ok && b.conn.Alive()
}

// Send looks up the student and attempts a best-effort write. Returns true
// iff a live connection was found and the write was accepted; it says nothing
// about the remote peer actually receiving it.
func (r *Registry) Send(studentID uuid.UUID, msg interface{}) bool {
	r.mu.RLock()
	b, ok := r.bindings[studentID]
	r.mu.RUnlock()

	if !ok || !b.conn.Alive() {
		return false
	}
	return b.conn.WriteJSON(msg) == nil
}

// Count returns the number of bound connections (health/metrics).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
