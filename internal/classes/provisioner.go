package classes

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// ProvisionRequest describes the rooms to create for a class.
type ProvisionRequest struct {
	Kind     models.Kind
	Audience string
	Time     models.TimeRange
	Tags     json.RawMessage
}

// Rooms are freshly created external rooms.
type Rooms struct {
	ConferenceRoomID uuid.UUID
	EventRoomID      uuid.UUID
}

// RoomProvisioner creates rooms in the external conference and event services.
type RoomProvisioner interface {
	Provision(ctx context.Context, req ProvisionRequest) (Rooms, error)
}
