// Package status derives a class lifecycle state from stored facts at read time.
package status

import (
	"fmt"
	"time"

	"github.com/aura-webinar/dispatcher/internal/models"
)

// State is the derived lifecycle state of a class.
type State string

const (
	RealTime   State = "real-time"
	Finished   State = "finished"
	Adjusted   State = "adjusted"
	Transcoded State = "transcoded"
	Closed     State = "closed"
)

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	switch s {
	case RealTime, Finished, Adjusted, Transcoded, Closed:
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unknown class state %q", string(s))
}

// Milestones are the recording post-processing timestamps the deriver reads.
type Milestones struct {
	AdjustedAt   *time.Time
	TranscodedAt *time.Time
}

// Input gathers everything Derive looks at. Recording is nil when no recording exists.
type Input struct {
	Time      models.TimeRange
	Recording *Milestones
	Now       time.Time
	Closed    bool
}

// Derive returns the state for in. Rules, first match wins:
// closed, transcoded, adjusted, finished (range ended, no milestones), real-time.
func Derive(in Input) State {
	if in.Closed {
		return Closed
	}
	if rec := in.Recording; rec != nil {
		if rec.TranscodedAt != nil {
			return Transcoded
		}
		if rec.AdjustedAt != nil {
			return Adjusted
		}
	}
	if in.Time.Ended(in.Now) {
		return Finished
	}
	return RealTime
}

// ForClass builds the input from a class and its live recordings. The most advanced
// recording wins so one transcoded stream marks the class transcoded.
func ForClass(class *models.Class, recordings []models.Recording, now time.Time) Input {
	in := Input{Time: class.Time, Now: now, Closed: class.ClosedAt != nil}
	for i := range recordings {
		r := &recordings[i]
		if r.DeletedAt != nil {
			continue
		}
		if in.Recording == nil {
			in.Recording = &Milestones{}
		}
		if r.TranscodedAt != nil && in.Recording.TranscodedAt == nil {
			in.Recording.TranscodedAt = r.TranscodedAt
		}
		if r.AdjustedAt != nil && in.Recording.AdjustedAt == nil {
			in.Recording.AdjustedAt = r.AdjustedAt
		}
	}
	return in
}
