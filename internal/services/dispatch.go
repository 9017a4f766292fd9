package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mentorlink-backend/internal/database"
	"mentorlink-backend/internal/models"
)

// ConnectionSender is the registry surface the dispatcher pushes through.
type ConnectionSender interface {
	Send(studentID uuid.UUID, msg interface{}) bool
}

// Dispatcher delivers asynchronously-produced events to whatever connection
// the student holds right now. Delivery is at-most-once and best-effort: a
// false return means the student was offline here, and the event is never
// queued or retried. The authoritative record is already persisted, and the
// student discovers it through the pull-reconciliation query on reconnect.
type Dispatcher struct {
	registry ConnectionSender
	events   *redis.Client // optional cross-instance fanout
	mode     string
}

func NewDispatcher(registry ConnectionSender, events *redis.Client, mode string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		events:   events,
		mode:     mode,
	}
}

// DeliverInterventionAssigned pushes an "intervention_assigned" event. When
// no local connection accepts it, the serialized event is published once to
// the student's channel in case a sibling instance holds the connection;
// the local result is still false.
func (d *Dispatcher) DeliverInterventionAssigned(studentID, interventionID uuid.UUID, assignedTasks string) bool {
	msg := models.NewWSMessage("intervention_assigned", models.InterventionAssignedEvent{
		InterventionID: interventionID,
		AssignedTasks:  assignedTasks,
		Mode:           d.mode,
	})

	if d.registry.Send(studentID, msg) {
		return true
	}

	d.publish(studentID, msg)
	log.Printf("Student %s offline for intervention %s; will surface via pull on reconnect", studentID, interventionID)
	return false
}

func (d *Dispatcher) publish(studentID uuid.UUID, msg models.WSMessage) {
	if d.events == nil {
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.events.Publish(ctx, database.StudentEventsChannel(studentID.String()), raw).Err(); err != nil {
		log.Printf("Failed to publish event for student %s: %v", studentID, err)
	}
}
