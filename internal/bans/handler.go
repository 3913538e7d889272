package bans

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/middleware"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

// ApplyRequest is the body for POST /accounts/:account/ban.
type ApplyRequest struct {
	ClassID  string `json:"class_id" binding:"required"`
	Ban      *bool  `json:"ban" binding:"required"`
	LastOpID int64  `json:"last_op_id" binding:"min=0"`
}

// Handler handles ban HTTP endpoints.
type Handler struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewHandler creates a ban handler.
func NewHandler(ledger *Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// GetLastOp handles GET /accounts/:account/ban.
func (h *Handler) GetLastOp(c *gin.Context) {
	op, err := h.ledger.GetLastOp(c.Request.Context(), c.Param("account"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, op)
}

// Apply handles POST /accounts/:account/ban.
func (h *Handler) Apply(c *gin.Context) {
	account := c.Param("account")
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	classID, err := uuid.Parse(req.ClassID)
	if err != nil {
		response.BadRequest(c, "invalid class_id")
		return
	}

	opID, err := h.ledger.ApplyBan(c.Request.Context(), account, classID, *req.Ban, req.LastOpID)
	if err != nil {
		h.logger.Info("ban rejected",
			zap.String("account", account),
			zap.String("class_id", classID.String()),
			zap.Int64("last_op_id", req.LastOpID),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}
	h.logger.Info("ban applied",
		zap.String("account", account),
		zap.String("class_id", classID.String()),
		zap.Bool("ban", *req.Ban),
		zap.Int64("op_id", opID),
		zap.String("by", c.GetString(middleware.ContextAccount)),
	)
	response.OK(c, gin.H{"account": account, "last_op_id": opID, "ban": *req.Ban})
}

// History handles GET /accounts/:account/ban/history.
func (h *Handler) History(c *gin.Context) {
	list, err := h.ledger.History(c.Request.Context(), c.Param("account"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
