package recordings

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/response"
)

// SecretHeader carries the shared secret on transcoder callbacks.
const SecretHeader = "X-Webhook-Secret"

// TranscodingReadyPayload is the body the transcoder posts when it finishes.
type TranscodingReadyPayload struct {
	RecordingID string `json:"recording_id" binding:"required"`
	SourceURL   string `json:"source_url"`
}

// ClassFinder looks up the class a recording belongs to.
type ClassFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Class, error)
}

// Enqueuer accepts transcoding-ready jobs.
type Enqueuer interface {
	EnqueueTranscodingReady(ctx context.Context, payload queue.TranscodingReadyPayload) (string, error)
}

// WebhookHandler handles transcoder callbacks.
type WebhookHandler struct {
	repo    *Repository
	classes ClassFinder
	queue   Enqueuer
	secret  string
	logger  *zap.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret rejects every call.
func NewWebhookHandler(repo *Repository, classes ClassFinder, q Enqueuer, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{repo: repo, classes: classes, queue: q, secret: secret, logger: logger}
}

// TranscodingReady handles POST /webhooks/transcoding-ready. The recording is
// stamped by the worker once the artifact is in the content bucket.
func (h *WebhookHandler) TranscodingReady(c *gin.Context) {
	got := c.GetHeader(SecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		response.Unauthorized(c, "invalid webhook secret")
		return
	}
	var body TranscodingReadyPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	recordingID, err := uuid.Parse(body.RecordingID)
	if err != nil {
		response.BadRequest(c, "invalid recording_id")
		return
	}

	ctx := c.Request.Context()
	rec, err := h.repo.GetByID(ctx, recordingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	class, err := h.classes.FindByID(ctx, rec.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}

	jobID, err := h.queue.EnqueueTranscodingReady(ctx, queue.TranscodingReadyPayload{
		RecordingID: rec.ID,
		ClassID:     class.ID,
		ContentID:   class.ContentID,
		SourceURL:   body.SourceURL,
	})
	if err != nil {
		h.logger.Error("enqueue transcoding job failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to enqueue job")
		return
	}

	h.logger.Info("transcoding_ready webhook processed", zap.String("recording_id", rec.ID.String()), zap.String("job_id", jobID))
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"recording_id": rec.ID, "job_id": jobID}})
}
