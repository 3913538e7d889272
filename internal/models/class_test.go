package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClass() *Class {
	conf, event := uuid.New(), uuid.New()
	return &Class{
		ID:               uuid.New(),
		Kind:             KindWebinar,
		Audience:         "usr.example.org",
		Scope:            "room-1",
		ContentID:        ContentIDFor(KindWebinar, "usr.example.org", "room-1"),
		ConferenceRoomID: &conf,
		EventRoomID:      &event,
		Established:      true,
	}
}

func TestClassValidate(t *testing.T) {
	host := "web.tutor.usr.example.org"
	empty := ""
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	before := start.Add(-time.Minute)

	tests := []struct {
		name    string
		mutate  func(c *Class)
		wantErr bool
	}{
		{"valid", func(*Class) {}, false},
		{"unknown kind", func(c *Class) { c.Kind = "lecture" }, true},
		{"missing scope", func(c *Class) { c.Scope = "" }, true},
		{"missing content id", func(c *Class) { c.ContentID = "" }, true},
		{"established without event room", func(c *Class) { c.EventRoomID = nil }, true},
		{"unestablished without rooms", func(c *Class) {
			c.Established = false
			c.ConferenceRoomID, c.EventRoomID = nil, nil
		}, false},
		{"minigroup without host", func(c *Class) { c.Kind = KindMinigroup }, true},
		{"minigroup with empty host", func(c *Class) { c.Kind = KindMinigroup; c.Host = &empty }, true},
		{"minigroup with host", func(c *Class) { c.Kind = KindMinigroup; c.Host = &host }, false},
		{"webinar with host", func(c *Class) { c.Host = &host }, true},
		{"inverted time", func(c *Class) { c.Time = TimeRange{Start: &start, End: &before} }, true},
		{"open ended time", func(c *Class) { c.Time = TimeRange{Start: &start} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClass()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKind(t *testing.T) {
	k, err := ParseKind("minigroup")
	require.NoError(t, err)
	assert.Equal(t, KindMinigroup, k)

	_, err = ParseKind("lecture")
	assert.Error(t, err)

	assert.Equal(t, "webinars", KindWebinar.Plural())
	assert.Equal(t, "minigroups", KindMinigroup.Plural())
	assert.Equal(t, "chats", KindChat.Plural())
	assert.Equal(t, "p2p", KindP2P.Plural())
}

func TestContentIDFor(t *testing.T) {
	assert.Equal(t, "content.p2p.usr.example.org::room-1", ContentIDFor(KindP2P, "usr.example.org", "room-1"))
}

func TestRoomsSkipsEmptyColumns(t *testing.T) {
	c := validClass()
	refs := c.Rooms()
	require.Len(t, refs, 2)
	assert.Equal(t, RoomConference, refs[0].Role)
	assert.Equal(t, RoomEvent, refs[1].Role)

	orig := uuid.New()
	c.OriginalEventRoomID = &orig
	refs = c.Rooms()
	require.Len(t, refs, 3)
	assert.Equal(t, RoomRef{RoomID: orig, Role: RoomOriginalEvent}, refs[2])
}

func TestTimeRangeEnded(t *testing.T) {
	end := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	r := TimeRange{End: &end}
	assert.False(t, r.Ended(end.Add(-time.Second)))
	assert.True(t, r.Ended(end))
	assert.False(t, TimeRange{}.Ended(end))
}

func TestRecordingLastModified(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	adjusted := created.Add(time.Hour)
	r := Recording{CreatedAt: created, UpdatedAt: created.Add(time.Minute)}
	assert.Equal(t, created.Add(time.Minute), r.LastModified())
	r.AdjustedAt = &adjusted
	assert.Equal(t, adjusted, r.LastModified())
}
