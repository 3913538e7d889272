package bans

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestApplyRejectsMalformedClassID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/accounts/:account/ban", NewHandler(nil, nil).Apply)

	w := httptest.NewRecorder()
	body := `{"class_id":"not-a-uuid","ban":true,"last_op_id":0}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/accounts/web.a.usr.example.org/ban", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid class_id")
}
