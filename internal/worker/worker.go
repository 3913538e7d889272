package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/storage"
)

// ContentStore is the subset of the content bucket the processor needs.
type ContentStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	Stat(ctx context.Context, key string) (int64, error)
}

// RecordingMarker stamps recordings as transcoded.
type RecordingMarker interface {
	MarkTranscoded(ctx context.Context, id uuid.UUID) (*models.Recording, error)
}

// JobSource is the queue the processor drains.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// TranscodingProcessor moves transcoded artifacts into the content bucket and
// records the transcoded milestone.
type TranscodingProcessor struct {
	recordings RecordingMarker
	store      ContentStore
	queue      JobSource
	httpClient *http.Client
	backoff    time.Duration
	logger     *zap.Logger
}

// NewTranscodingProcessor creates a transcoding job processor.
func NewTranscodingProcessor(recordings RecordingMarker, store ContentStore, q JobSource, logger *zap.Logger) *TranscodingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscodingProcessor{
		recordings: recordings,
		store:      store,
		queue:      q,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		backoff:    queue.RetryBackoff,
		logger:     logger,
	}
}

// Process executes one transcoding-ready job.
func (p *TranscodingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscodingReady {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscodingReadyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	key := storage.ArtifactKey(payload.ContentID, payload.RecordingID.String())

	if payload.SourceURL != "" {
		if err := p.copyArtifact(ctx, payload.SourceURL, key); err != nil {
			return err
		}
	}
	size, err := p.store.Stat(ctx, key)
	if err != nil {
		return fmt.Errorf("verify artifact %s: %w", key, err)
	}

	rec, err := p.recordings.MarkTranscoded(ctx, payload.RecordingID)
	if errors.Is(err, apperr.ErrNotFound) {
		// Deleted while transcoding (e.g. the class was recreated); nothing to stamp.
		p.logger.Info("recording gone, skipping", zap.String("recording_id", payload.RecordingID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark transcoded: %w", err)
	}

	p.logger.Info("recording transcoded",
		zap.String("recording_id", rec.ID.String()),
		zap.String("class_id", payload.ClassID.String()),
		zap.String("key", key),
		zap.Int64("size", size),
	)
	return nil
}

// copyArtifact streams the transcoder output into the content bucket.
func (p *TranscodingProcessor) copyArtifact(ctx context.Context, sourceURL, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	if err := p.store.Upload(ctx, key, contentType, resp.Body, resp.ContentLength); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TranscodingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcoding worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *TranscodingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
