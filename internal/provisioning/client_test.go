package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/models"
)

func roomServer(t *testing.T, id uuid.UUID, status int, seen *roomRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(roomResponse{ID: id})
	}))
}

func TestProvision(t *testing.T) {
	confID, eventID := uuid.New(), uuid.New()
	var confReq, eventReq roomRequest
	conf := roomServer(t, confID, http.StatusCreated, &confReq)
	defer conf.Close()
	event := roomServer(t, eventID, http.StatusOK, &eventReq)
	defer event.Close()

	c := NewClient(Config{ConferenceURL: conf.URL, EventURL: event.URL + "/", Token: "tok"}, nil)
	rooms, err := c.Provision(context.Background(), classes.ProvisionRequest{Kind: models.KindWebinar, Audience: "usr.example.org"})
	require.NoError(t, err)
	assert.Equal(t, classes.Rooms{ConferenceRoomID: confID, EventRoomID: eventID}, rooms)

	assert.Equal(t, "shared", confReq.Policy)
	assert.Equal(t, "", eventReq.Policy)
	assert.Equal(t, "usr.example.org", eventReq.Audience)
}

func TestProvisionOpensRoomsWithoutEnd(t *testing.T) {
	var confReq, eventReq roomRequest
	conf := roomServer(t, uuid.New(), http.StatusCreated, &confReq)
	defer conf.Close()
	event := roomServer(t, uuid.New(), http.StatusCreated, &eventReq)
	defer event.Close()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewClient(Config{ConferenceURL: conf.URL, EventURL: event.URL, Token: "tok"}, nil)
	c.now = func() time.Time { return now }

	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	_, err := c.Provision(context.Background(), classes.ProvisionRequest{
		Kind:     models.KindMinigroup,
		Audience: "usr.example.org",
		Time:     models.TimeRange{Start: &start, End: &end},
	})
	require.NoError(t, err)

	require.NotNil(t, confReq.Time.Start)
	assert.True(t, confReq.Time.Start.Equal(start))
	assert.Nil(t, confReq.Time.End)
	assert.Equal(t, "owned", confReq.Policy)

	require.NotNil(t, eventReq.Time.Start)
	assert.True(t, eventReq.Time.Start.Equal(now))
	assert.Nil(t, eventReq.Time.End)
}

func TestProvisionWithoutStartOpensConferenceNow(t *testing.T) {
	var confReq roomRequest
	conf := roomServer(t, uuid.New(), http.StatusCreated, &confReq)
	defer conf.Close()
	event := roomServer(t, uuid.New(), http.StatusCreated, nil)
	defer event.Close()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := NewClient(Config{ConferenceURL: conf.URL, EventURL: event.URL, Token: "tok"}, nil)
	c.now = func() time.Time { return now }

	_, err := c.Provision(context.Background(), classes.ProvisionRequest{Kind: models.KindP2P, Audience: "usr.example.org"})
	require.NoError(t, err)
	require.NotNil(t, confReq.Time.Start)
	assert.True(t, confReq.Time.Start.Equal(now))
	assert.Nil(t, confReq.Time.End)
	assert.Empty(t, confReq.Policy)
}

func TestProvisionFailsWhenEventServiceFails(t *testing.T) {
	conf := roomServer(t, uuid.New(), http.StatusCreated, nil)
	defer conf.Close()
	event := roomServer(t, uuid.New(), http.StatusInternalServerError, nil)
	defer event.Close()

	c := NewClient(Config{ConferenceURL: conf.URL, EventURL: event.URL, Token: "tok"}, nil)
	_, err := c.Provision(context.Background(), classes.ProvisionRequest{Kind: models.KindChat, Audience: "usr.example.org"})
	assert.ErrorContains(t, err, "event room")
}

func TestSharingPolicy(t *testing.T) {
	assert.Equal(t, "shared", sharingPolicy(models.KindWebinar))
	assert.Equal(t, "owned", sharingPolicy(models.KindMinigroup))
	assert.Empty(t, sharingPolicy(models.KindP2P))
	assert.Empty(t, sharingPolicy(models.KindChat))
}
