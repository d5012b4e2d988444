package model

import "time"

// NewUnitRequestMessage is the first message of every moderation request.
const NewUnitRequestMessage = "Request to add a new unit"

// Request is an admin moderation ticket attached to a unit.  Messages is
// append-only.
type Request struct {
	ID        uint64
	UnitID    uint64
	UserID    uint64
	Status    RequestStatus
	Messages  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
