package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aura-webinar/dispatcher/internal/models"
)

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func TestDeriveWithoutRecording(t *testing.T) {
	window := models.TimeRange{Start: at(1000), End: at(2000)}

	assert.Equal(t, RealTime, Derive(Input{Time: window, Now: *at(1500)}))
	assert.Equal(t, RealTime, Derive(Input{Time: window, Now: *at(1999)}))
	assert.Equal(t, Finished, Derive(Input{Time: window, Now: *at(2000)}))
	assert.Equal(t, Finished, Derive(Input{Time: window, Now: *at(5000)}))
}

func TestDeriveUnboundedNeverFinishes(t *testing.T) {
	assert.Equal(t, RealTime, Derive(Input{Time: models.TimeRange{Start: at(0)}, Now: *at(1 << 40)}))
}

func TestDeriveMilestones(t *testing.T) {
	window := models.TimeRange{Start: at(1000), End: at(2000)}

	adjusted := Input{Time: window, Now: *at(3000), Recording: &Milestones{AdjustedAt: at(2500)}}
	assert.Equal(t, Adjusted, Derive(adjusted))

	adjusted.Recording.TranscodedAt = at(2600)
	assert.Equal(t, Transcoded, Derive(adjusted))

	transcodedOnly := Input{Time: window, Now: *at(1500), Recording: &Milestones{TranscodedAt: at(1400)}}
	assert.Equal(t, Transcoded, Derive(transcodedOnly))
}

func TestDeriveRecordingWithoutMilestones(t *testing.T) {
	window := models.TimeRange{Start: at(1000), End: at(2000)}
	rec := &Milestones{}

	assert.Equal(t, RealTime, Derive(Input{Time: window, Now: *at(1500), Recording: rec}))
	assert.Equal(t, Finished, Derive(Input{Time: window, Now: *at(2500), Recording: rec}))
}

func TestDeriveClosedWins(t *testing.T) {
	in := Input{
		Time:      models.TimeRange{Start: at(1000), End: at(2000)},
		Now:       *at(1500),
		Recording: &Milestones{AdjustedAt: at(1200), TranscodedAt: at(1300)},
		Closed:    true,
	}
	assert.Equal(t, Closed, Derive(in))
}

func TestForClassPicksMostAdvancedRecording(t *testing.T) {
	class := &models.Class{Time: models.TimeRange{Start: at(0), End: at(10)}}
	recs := []models.Recording{
		{AdjustedAt: at(20)},
		{AdjustedAt: at(21), TranscodedAt: at(30)},
		{TranscodedAt: at(40), DeletedAt: at(41)},
	}

	in := ForClass(class, recs, *at(100))
	assert.Equal(t, Transcoded, Derive(in))
	assert.Equal(t, at(30), in.Recording.TranscodedAt)

	assert.Nil(t, ForClass(class, recs[2:], *at(100)).Recording)

	class.ClosedAt = at(50)
	assert.Equal(t, Closed, Derive(ForClass(class, recs, *at(100))))
}

func TestStateMarshalText(t *testing.T) {
	b, err := Adjusted.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "adjusted", string(b))

	_, err = State("bogus").MarshalText()
	assert.Error(t, err)
}
