package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of class types. Stored as text so new kinds are an additive change.
type Kind string

const (
	KindWebinar   Kind = "webinar"
	KindP2P       Kind = "p2p"
	KindMinigroup Kind = "minigroup"
	KindChat      Kind = "chat"
)

// ParseKind validates a kind coming from a request or a row.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown class kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindWebinar, KindP2P, KindMinigroup, KindChat:
		return true
	}
	return false
}

// Plural is the collection name used in class-scoped authorization objects.
func (k Kind) Plural() string {
	switch k {
	case KindP2P:
		return "p2p"
	default:
		return string(k) + "s"
	}
}

// RoomRole names which class column a room id occupies.
type RoomRole string

const (
	RoomConference    RoomRole = "conference"
	RoomEvent         RoomRole = "event"
	RoomOriginalEvent RoomRole = "original_event"
	RoomModifiedEvent RoomRole = "modified_event"
)

// RoomRef is one entry of the room_id -> class_id index.
type RoomRef struct {
	RoomID uuid.UUID
	Role   RoomRole
}

// TimeRange is a closed-open interval; nil bounds are unbounded.
type TimeRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Validate rejects ranges whose end is not after their start.
func (t TimeRange) Validate() error {
	if t.Start != nil && t.End != nil && !t.End.After(*t.Start) {
		return fmt.Errorf("time range end %s is not after start %s", t.End.Format(time.RFC3339), t.Start.Format(time.RFC3339))
	}
	return nil
}

// Ended reports whether now is at or past the end of the range.
func (t TimeRange) Ended(now time.Time) bool {
	return t.End != nil && !now.Before(*t.End)
}

// Class binds a conference room and an event room under a tenant scope.
type Class struct {
	ID                  uuid.UUID       `json:"id"`
	Kind                Kind            `json:"kind"`
	Audience            string          `json:"audience"`
	Scope               string          `json:"scope"`
	Time                TimeRange       `json:"time"`
	Tags                json.RawMessage `json:"tags,omitempty"`
	ConferenceRoomID    *uuid.UUID      `json:"conference_room_id,omitempty"`
	EventRoomID         *uuid.UUID      `json:"event_room_id,omitempty"`
	OriginalEventRoomID *uuid.UUID      `json:"original_event_room_id,omitempty"`
	ModifiedEventRoomID *uuid.UUID      `json:"modified_event_room_id,omitempty"`
	Host                *string         `json:"host,omitempty"`
	Established         bool            `json:"established"`
	PreserveHistory     bool            `json:"preserve_history"`
	ContentID           string          `json:"content_id"`
	ClosedAt            *time.Time      `json:"closed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ContentIDFor builds the storage set name for a class's downloadable artifacts.
func ContentIDFor(kind Kind, audience, scope string) string {
	return fmt.Sprintf("content.%s.%s::%s", kind, audience, scope)
}

// Validate checks the row-level invariants every persisted class must satisfy.
func (c *Class) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown class kind %q", c.Kind)
	}
	if c.Audience == "" || c.Scope == "" {
		return fmt.Errorf("audience and scope are required")
	}
	if c.ContentID == "" {
		return fmt.Errorf("content id is required")
	}
	if c.Established && (c.ConferenceRoomID == nil || c.EventRoomID == nil) {
		return fmt.Errorf("established class %s lacks room ids", c.ID)
	}
	hasHost := c.Host != nil && *c.Host != ""
	if c.Kind == KindMinigroup && !hasHost {
		return fmt.Errorf("minigroup requires a host")
	}
	if c.Kind != KindMinigroup && hasHost {
		return fmt.Errorf("host is only allowed for minigroups")
	}
	return c.Time.Validate()
}

// Rooms returns the non-nil room columns as index entries.
func (c *Class) Rooms() []RoomRef {
	var refs []RoomRef
	add := func(id *uuid.UUID, role RoomRole) {
		if id != nil {
			refs = append(refs, RoomRef{RoomID: *id, Role: role})
		}
	}
	add(c.ConferenceRoomID, RoomConference)
	add(c.EventRoomID, RoomEvent)
	add(c.OriginalEventRoomID, RoomOriginalEvent)
	add(c.ModifiedEventRoomID, RoomModifiedEvent)
	return refs
}
