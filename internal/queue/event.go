// Package queue defines the domain events exchanged over the message broker
// together with their publisher and background consumer.
package queue

import "time"

// EventsQueue is the durable queue every domain event is published to.
const EventsQueue = "housing.events"

// Event types.
const (
	AppointmentBooked    = "appointment.booked"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentRefused   = "appointment.refused"
	AppointmentCanceled  = "appointment.canceled"
	AppointmentCompleted = "appointment.completed"
	UnitSubmitted        = "unit.submitted"
	RequestDecided       = "request.decided"
	UnitStatusChanged    = "unit.status_changed"
)

// Event carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type Event struct {
	Type              string    `json:"type"`
	AppointmentNumber string    `json:"appointment_number,omitempty"`
	UnitID            uint64    `json:"unit_id,omitempty"`
	UserID            uint64    `json:"user_id,omitempty"`
	ActorID           uint64    `json:"actor_id,omitempty"`
	RequestID         uint64    `json:"request_id,omitempty"`
	Status            string    `json:"status,omitempty"`
	Date              string    `json:"date,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}
