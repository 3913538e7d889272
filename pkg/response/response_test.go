package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/apperr"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", apperr.NotFound("class %s", "x"), http.StatusNotFound, "not found: class x"},
		{"stale write", apperr.StaleWrite("account a"), http.StatusConflict, "operation id obsolete"},
		{"conflict", apperr.Conflict("scope taken"), http.StatusConflict, "conflict: scope taken"},
		{"validation", apperr.Validation("bad host"), http.StatusUnprocessableEntity, "validation failed: bad host"},
		{"unsupported", apperr.Unsupported("recreate"), http.StatusUnprocessableEntity, "unsupported: recreate"},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}
