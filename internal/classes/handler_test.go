package classes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertRejectsMalformedRoomIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/classes/convert", NewHandler(nil, nil, nil, nil).Convert)

	valid := uuid.NewString()
	bodies := map[string]string{
		"conference": `{"kind":"webinar","audience":"usr.example.org","scope":"s","conference_room_id":"nope","event_room_id":"` + valid + `"}`,
		"event":      `{"kind":"webinar","audience":"usr.example.org","scope":"s","conference_room_id":"` + valid + `","event_room_id":"nope"}`,
		"original":   `{"kind":"webinar","audience":"usr.example.org","scope":"s","conference_room_id":"` + valid + `","event_room_id":"` + valid + `","original_event_room_id":"nope"}`,
		"modified":   `{"kind":"webinar","audience":"usr.example.org","scope":"s","conference_room_id":"` + valid + `","event_room_id":"` + valid + `","modified_event_room_id":""}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/convert", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestConvertRequestRooms(t *testing.T) {
	conf, event, orig := uuid.New(), uuid.New(), uuid.New()
	origStr := orig.String()
	req := ConvertRequest{ConferenceRoomID: conf.String(), EventRoomID: event.String(), OriginalEventRoomID: &origStr}

	cp, err := req.rooms(CreateParams{Scope: "s"})
	require.NoError(t, err)
	assert.Equal(t, conf, cp.ConferenceRoomID)
	assert.Equal(t, event, cp.EventRoomID)
	require.NotNil(t, cp.OriginalEventRoomID)
	assert.Equal(t, orig, *cp.OriginalEventRoomID)
	assert.Nil(t, cp.ModifiedEventRoomID)
	assert.Equal(t, "s", cp.Scope)
}
