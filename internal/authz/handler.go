package authz

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/middleware"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

// Authorizing is what the handler needs from Proxy.
type Authorizing interface {
	Authorize(ctx context.Context, service, audience string, req Request) ([]string, error)
}

// Handler exposes the proxy over HTTP with the same contract as the external
// authorizer: the body is a Request and the reply a JSON list of allowed actions.
type Handler struct {
	proxy  Authorizing
	logger *zap.Logger
}

// NewHandler creates an authz handler.
func NewHandler(proxy Authorizing, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{proxy: proxy, logger: logger}
}

// Authorize handles POST /authz/:audience. The originating service is the
// label of the calling account.
func (h *Handler) Authorize(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	service := c.GetString(middleware.ContextAccountLabel)
	audience := c.Param("audience")

	allowed, err := h.proxy.Authorize(c.Request.Context(), service, audience, req)
	if errors.Is(err, apperr.ErrValidation) {
		response.Error(c, err)
		return
	}
	if err != nil {
		h.logger.Error("authz proxy failed",
			zap.String("service", service),
			zap.String("audience", audience),
			zap.Strings("object", req.Object.Value),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		response.ServiceUnavailable(c, "authorization service unavailable")
		return
	}
	c.JSON(http.StatusOK, allowed)
}
