package models

import (
	"time"

	"github.com/google/uuid"
)

// Segment is a closed-open [start, end) offset pair in milliseconds.
type Segment [2]int64

// Start returns the inclusive lower bound.
func (s Segment) Start() int64 { return s[0] }

// End returns the exclusive upper bound.
func (s Segment) End() int64 { return s[1] }

// Len returns end - start. Segments that passed segments.Normalize never overflow here.
func (s Segment) Len() int64 { return s[1] - s[0] }

// Recording is one agent's recorded stream for a class.
type Recording struct {
	ID               uuid.UUID  `json:"id"`
	ClassID          uuid.UUID  `json:"class_id"`
	RtcID            uuid.UUID  `json:"rtc_id"`
	CreatedBy        string     `json:"created_by"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	Segments         []Segment  `json:"segments"`
	ModifiedSegments []Segment  `json:"modified_segments,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	AdjustedAt       *time.Time `json:"adjusted_at,omitempty"`
	TranscodedAt     *time.Time `json:"transcoded_at,omitempty"`
	DeletedAt        *time.Time `json:"-"`
}

// LastModified is the latest milestone timestamp; used as a cache version.
func (r *Recording) LastModified() time.Time {
	t := r.CreatedAt
	for _, m := range []*time.Time{&r.UpdatedAt, r.AdjustedAt, r.TranscodedAt} {
		if m != nil && m.After(t) {
			t = *m
		}
	}
	return t
}
