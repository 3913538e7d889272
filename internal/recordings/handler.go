package recordings

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

// CreateRequest is the body for POST /classes/:id/recordings.
type CreateRequest struct {
	RtcID     string     `json:"rtc_id" binding:"required"`
	CreatedBy string     `json:"created_by" binding:"required"`
	StartedAt *time.Time `json:"started_at"`
}

// SegmentsRequest is the body for PUT /recordings/:id/segments.
type SegmentsRequest struct {
	Segments []models.Segment `json:"segments" binding:"required"`
}

// AdjustRequest is the body for PUT /recordings/:id/adjust.
type AdjustRequest struct {
	ModifiedSegments []models.Segment `json:"modified_segments" binding:"required"`
}

// View is a recording with its effective segments resolved.
type View struct {
	models.Recording
	Effective  []models.Segment `json:"effective_segments"`
	DurationMs int64            `json:"duration_ms"`
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	repo   *Repository
	cache  *SegmentCache
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(repo *Repository, cache *SegmentCache, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, cache: cache, logger: logger}
}

// Create handles POST /classes/:id/recordings.
func (h *Handler) Create(c *gin.Context) {
	classID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid class id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rtcID, err := uuid.Parse(req.RtcID)
	if err != nil {
		response.BadRequest(c, "invalid rtc_id")
		return
	}

	rec, err := h.repo.Create(c.Request.Context(), classID, rtcID, req.CreatedBy, req.StartedAt)
	if err != nil {
		h.fail(c, "create recording failed", err, zap.String("class_id", classID.String()))
		return
	}
	response.Created(c, rec)
}

// ListByClass handles GET /classes/:id/recordings.
func (h *Handler) ListByClass(c *gin.Context) {
	classID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid class id")
		return
	}
	list, err := h.repo.ListByClass(c.Request.Context(), classID)
	if err != nil {
		h.fail(c, "list recordings failed", err, zap.String("class_id", classID.String()))
		return
	}
	views := make([]View, 0, len(list))
	for i := range list {
		v, err := h.view(&list[i])
		if err != nil {
			h.fail(c, "merge segments failed", err, zap.String("recording_id", list[i].ID.String()))
			return
		}
		views = append(views, v)
	}
	response.OK(c, views)
}

// SetSegments handles PUT /recordings/:id/segments.
func (h *Handler) SetSegments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req SegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rec, err := h.repo.SetSegments(c.Request.Context(), id, req.Segments)
	if err != nil {
		h.fail(c, "set segments failed", err, zap.String("recording_id", id.String()))
		return
	}
	h.respondView(c, rec)
}

// Adjust handles PUT /recordings/:id/adjust.
func (h *Handler) Adjust(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rec, err := h.repo.Adjust(c.Request.Context(), id, req.ModifiedSegments)
	if err != nil {
		h.fail(c, "adjust recording failed", err, zap.String("recording_id", id.String()))
		return
	}
	h.logger.Info("recording adjusted", zap.String("recording_id", id.String()), zap.Int("segments", len(rec.ModifiedSegments)))
	h.respondView(c, rec)
}

// Delete handles DELETE /recordings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	if err := h.repo.SoftDelete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete recording failed", err, zap.String("recording_id", id.String()))
		return
	}
	response.NoContent(c)
}

func (h *Handler) respondView(c *gin.Context, rec *models.Recording) {
	v, err := h.view(rec)
	if err != nil {
		h.fail(c, "merge segments failed", err, zap.String("recording_id", rec.ID.String()))
		return
	}
	response.OK(c, v)
}

func (h *Handler) view(rec *models.Recording) (View, error) {
	res, err := h.cache.Merged(rec)
	if err != nil {
		return View{}, err
	}
	return View{Recording: *rec, Effective: res.Segments, DurationMs: res.Duration()}, nil
}

func (h *Handler) fail(c *gin.Context, msg string, err error, fields ...zap.Field) {
	h.logger.Warn(msg, append(fields, zap.Error(err))...)
	response.Error(c, err)
}
