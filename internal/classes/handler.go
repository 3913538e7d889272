package classes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/internal/status"
	"github.com/aura-webinar/dispatcher/pkg/response"
	"github.com/aura-webinar/dispatcher/pkg/storage"
)

// RecordingLister lists the live recordings of a class.
type RecordingLister interface {
	ListByClass(ctx context.Context, classID uuid.UUID) ([]models.Recording, error)
}

// ContentSigner presigns downloads from the content bucket.
type ContentSigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// CreateRequest is the body for POST /classes.
type CreateRequest struct {
	Kind            string           `json:"kind" binding:"required"`
	Audience        string           `json:"audience" binding:"required"`
	Scope           string           `json:"scope" binding:"required"`
	Time            models.TimeRange `json:"time"`
	Tags            json.RawMessage  `json:"tags"`
	Host            *string          `json:"host"`
	PreserveHistory *bool            `json:"preserve_history"`
}

// ConvertRequest is the body for POST /classes/convert.
type ConvertRequest struct {
	CreateRequest
	ConferenceRoomID    string  `json:"conference_room_id" binding:"required"`
	EventRoomID         string  `json:"event_room_id" binding:"required"`
	OriginalEventRoomID *string `json:"original_event_room_id"`
	ModifiedEventRoomID *string `json:"modified_event_room_id"`
}

// UpdateRequest is the body for PATCH /classes/:id.
type UpdateRequest struct {
	Time *models.TimeRange `json:"time"`
	Tags json.RawMessage   `json:"tags"`
	Host *string           `json:"host"`
}

// RecreateRequest is the body for POST /classes/:id/recreate.
type RecreateRequest struct {
	Time models.TimeRange `json:"time"`
}

// View is a class with its derived status.
type View struct {
	*models.Class
	Status status.State `json:"status"`
}

// Handler handles class HTTP endpoints.
type Handler struct {
	repo       *Repository
	recordings RecordingLister
	content    ContentSigner
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler creates a class handler. content may be nil when S3 is not configured.
func NewHandler(repo *Repository, recordings RecordingLister, content ContentSigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, recordings: recordings, content: content, now: time.Now, logger: logger}
}

func (r CreateRequest) params() (CreateParams, error) {
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return CreateParams{}, apperr.Validation("%s", err)
	}
	preserve := true
	if r.PreserveHistory != nil {
		preserve = *r.PreserveHistory
	}
	return CreateParams{
		Kind:            kind,
		Audience:        r.Audience,
		Scope:           r.Scope,
		Time:            r.Time,
		Tags:            r.Tags,
		Host:            r.Host,
		PreserveHistory: preserve,
	}, nil
}

// Create handles POST /classes.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := req.params()
	if err != nil {
		response.Error(c, err)
		return
	}
	class, err := h.repo.Create(c.Request.Context(), p)
	if err != nil {
		h.fail(c, "create class failed", err, zap.String("audience", p.Audience), zap.String("scope", p.Scope))
		return
	}
	h.logger.Info("class created", zap.String("class_id", class.ID.String()), zap.String("kind", string(class.Kind)))
	response.Created(c, h.view(class, nil))
}

// Convert handles POST /classes/convert.
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := req.params()
	if err != nil {
		response.Error(c, err)
		return
	}
	cp, err := req.rooms(p)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	class, err := h.repo.Convert(c.Request.Context(), cp)
	if err != nil {
		h.fail(c, "convert class failed", err, zap.String("audience", p.Audience), zap.String("scope", p.Scope))
		return
	}
	response.Created(c, h.view(class, nil))
}

// GetByID handles GET /classes/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	class, err := h.repo.FindByID(c.Request.Context(), id)
	h.respondWithStatus(c, class, err)
}

// GetByScope handles GET /audiences/:audience/classes/:scope.
func (h *Handler) GetByScope(c *gin.Context) {
	class, err := h.repo.FindByScope(c.Request.Context(), c.Param("audience"), c.Param("scope"))
	h.respondWithStatus(c, class, err)
}

// GetByRoom handles GET /rooms/:room_id/class.
func (h *Handler) GetByRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("room_id"))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	class, err := h.repo.FindByRoomID(c.Request.Context(), roomID)
	h.respondWithStatus(c, class, err)
}

// Update handles PATCH /classes/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	class, err := h.repo.Update(c.Request.Context(), id, UpdateParams{Time: req.Time, Tags: req.Tags, Host: req.Host})
	if err != nil {
		h.fail(c, "update class failed", err, zap.String("class_id", id.String()))
		return
	}
	h.respondWithStatus(c, class, nil)
}

// Recreate handles POST /classes/:id/recreate.
func (h *Handler) Recreate(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	var req RecreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	class, err := h.repo.Recreate(c.Request.Context(), id, req.Time)
	if err != nil {
		h.fail(c, "recreate class failed", err, zap.String("class_id", id.String()))
		return
	}
	h.logger.Info("class recreated",
		zap.String("class_id", id.String()),
		zap.Stringp("original_event_room_id", uuidString(class.OriginalEventRoomID)),
		zap.Stringp("event_room_id", uuidString(class.EventRoomID)),
	)
	h.respondWithStatus(c, class, nil)
}

// Close handles POST /classes/:id/close (admin only).
func (h *Handler) Close(c *gin.Context) {
	id, ok := classID(c)
	if !ok {
		return
	}
	class, err := h.repo.Close(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "close class failed", err, zap.String("class_id", id.String()))
		return
	}
	response.OK(c, h.view(class, nil))
}

// RollbackScope handles DELETE /audiences/:audience/classes/:scope (admin only).
func (h *Handler) RollbackScope(c *gin.Context) {
	audience, scope := c.Param("audience"), c.Param("scope")
	if err := h.repo.RollbackScope(c.Request.Context(), audience, scope); err != nil {
		h.fail(c, "rollback scope failed", err, zap.String("audience", audience), zap.String("scope", scope))
		return
	}
	h.logger.Warn("class scope rolled back", zap.String("audience", audience), zap.String("scope", scope))
	response.NoContent(c)
}

// Download handles GET /classes/:id/download. It presigns the artifact of the
// most recently transcoded recording.
func (h *Handler) Download(c *gin.Context) {
	if h.content == nil {
		response.ServiceUnavailable(c, "S3 not configured")
		return
	}
	id, ok := classID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	class, err := h.repo.FindByID(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	recs, err := h.recordings.ListByClass(ctx, id)
	if err != nil {
		h.fail(c, "list recordings failed", err, zap.String("class_id", id.String()))
		return
	}
	var latest *models.Recording
	for i := range recs {
		r := &recs[i]
		if r.TranscodedAt != nil && (latest == nil || r.TranscodedAt.After(*latest.TranscodedAt)) {
			latest = r
		}
	}
	if latest == nil {
		response.Error(c, apperr.NotFound("class %s has no transcoded recording", id))
		return
	}
	url, err := h.content.PresignDownload(ctx, storage.ArtifactKey(class.ContentID, latest.ID.String()))
	if err != nil {
		h.fail(c, "presign download failed", err, zap.String("class_id", id.String()))
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(h.content.PresignExpire().Seconds()), "recording_id": latest.ID})
}

func (h *Handler) respondWithStatus(c *gin.Context, class *models.Class, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	recs, err := h.recordings.ListByClass(c.Request.Context(), class.ID)
	if err != nil {
		h.fail(c, "list recordings failed", err, zap.String("class_id", class.ID.String()))
		return
	}
	response.OK(c, h.view(class, recs))
}

func (h *Handler) view(class *models.Class, recs []models.Recording) View {
	return View{Class: class, Status: status.Derive(status.ForClass(class, recs, h.now()))}
}

func (h *Handler) fail(c *gin.Context, msg string, err error, fields ...zap.Field) {
	h.logger.Warn(msg, append(fields, zap.Error(err))...)
	response.Error(c, err)
}

func classID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid class id")
		return uuid.Nil, false
	}
	return id, true
}

// rooms parses the room ids of a convert request.
func (r ConvertRequest) rooms(p CreateParams) (ConvertParams, error) {
	cp := ConvertParams{CreateParams: p}
	var err error
	if cp.ConferenceRoomID, err = uuid.Parse(r.ConferenceRoomID); err != nil {
		return ConvertParams{}, errors.New("invalid conference_room_id")
	}
	if cp.EventRoomID, err = uuid.Parse(r.EventRoomID); err != nil {
		return ConvertParams{}, errors.New("invalid event_room_id")
	}
	if cp.OriginalEventRoomID, err = parseOptionalUUID(r.OriginalEventRoomID); err != nil {
		return ConvertParams{}, errors.New("invalid original_event_room_id")
	}
	if cp.ModifiedEventRoomID, err = parseOptionalUUID(r.ModifiedEventRoomID); err != nil {
		return ConvertParams{}, errors.New("invalid modified_event_room_id")
	}
	return cp, nil
}

func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
