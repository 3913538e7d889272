package recordings

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCreateRejectsMalformedRtcID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/classes/:id/recordings", NewHandler(nil, nil, nil).Create)

	w := httptest.NewRecorder()
	body := `{"rtc_id":"nope","created_by":"web.a.usr.example.org"}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/"+uuid.NewString()+"/recordings", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid rtc_id")
}

func TestTranscodingReadyWebhookValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/transcoding-ready", NewWebhookHandler(nil, nil, nil, "s3cret", nil).TranscodingReady)

	tests := []struct {
		name   string
		secret string
		body   string
		status int
	}{
		{"wrong secret", "nope", `{"recording_id":"` + uuid.NewString() + `"}`, http.StatusUnauthorized},
		{"missing id", "s3cret", `{}`, http.StatusBadRequest},
		{"malformed id", "s3cret", `{"recording_id":"nope"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/transcoding-ready", strings.NewReader(tt.body))
			req.Header.Set(SecretHeader, tt.secret)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
