package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/internal/segments"
	"github.com/aura-webinar/dispatcher/pkg/database"
)

const recordingColumns = `id, class_id, rtc_id, created_by, started_at, segments, modified_segments,
	created_at, updated_at, adjusted_at, transcoded_at, deleted_at`

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a recording when an agent starts streaming. A second live
// recording by the same agent in the same class is a conflict.
func (r *Repository) Create(ctx context.Context, classID, rtcID uuid.UUID, createdBy string, startedAt *time.Time) (*models.Recording, error) {
	if createdBy == "" {
		return nil, apperr.Validation("created_by is required")
	}
	const q = `INSERT INTO recording (class_id, rtc_id, created_by, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + recordingColumns
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, classID, rtcID, createdBy, startedAt))
	switch database.PgCode(err) {
	case "":
	case database.CodeUniqueViolation:
		return nil, apperr.Conflict("agent %s already has a live recording in class %s", createdBy, classID)
	case database.CodeForeignKeyViolation:
		return nil, apperr.NotFound("class %s", classID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return rec, nil
}

// GetByID returns a live recording by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recording WHERE id = $1 AND deleted_at IS NULL`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("recording %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// ListByClass returns the live recordings of a class, oldest first.
func (r *Repository) ListByClass(ctx context.Context, classID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recording
		WHERE class_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, classID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// SetSegments stores the raw segments reported when the stream ends. They are
// normalized before writing. A stored overlay must still fit inside the new raw
// segments, otherwise nothing is written and ErrValidation is returned.
func (r *Repository) SetSegments(ctx context.Context, id uuid.UUID, raw []models.Segment) (*models.Recording, error) {
	norm, err := segments.Normalize(raw)
	if err != nil {
		return nil, err
	}
	var rec *models.Recording
	err = database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := lockLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := segments.Merge(norm, current.ModifiedSegments); err != nil {
			return err
		}
		const q = `UPDATE recording SET segments = $2, updated_at = clock_timestamp() WHERE id = $1 RETURNING ` + recordingColumns
		rec, err = scanRecording(tx.QueryRow(ctx, q, id, segmentsParam(norm)))
		if err != nil {
			return fmt.Errorf("set segments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Adjust stores a user-edited overlay. The overlay must lie inside the raw
// segments; it is stored normalized and stamps adjusted_at.
func (r *Repository) Adjust(ctx context.Context, id uuid.UUID, modified []models.Segment) (*models.Recording, error) {
	if modified == nil {
		modified = []models.Segment{}
	}
	var rec *models.Recording
	err := database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		current, err := lockLive(ctx, tx, id)
		if err != nil {
			return err
		}
		merged, err := segments.Merge(current.Segments, modified)
		if err != nil {
			return err
		}
		const q = `UPDATE recording SET modified_segments = $2, adjusted_at = NOW(), updated_at = clock_timestamp()
			WHERE id = $1 RETURNING ` + recordingColumns
		rec, err = scanRecording(tx.QueryRow(ctx, q, id, segmentsParam(merged.Segments)))
		if err != nil {
			return fmt.Errorf("adjust recording: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func lockLive(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Recording, error) {
	rec, err := scanRecording(tx.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recording WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("recording %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock recording: %w", err)
	}
	return rec, nil
}

// MarkTranscoded stamps transcoded_at. Marking twice keeps the first timestamp.
func (r *Repository) MarkTranscoded(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `UPDATE recording SET transcoded_at = COALESCE(transcoded_at, NOW()), updated_at = clock_timestamp()
		WHERE id = $1 AND deleted_at IS NULL RETURNING ` + recordingColumns
	return r.updateOne(ctx, q, id)
}

// SoftDelete hides a recording. Its class may then get a new live recording from the same agent.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE recording SET deleted_at = NOW(), updated_at = clock_timestamp() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("recording %s", id)
	}
	return nil
}

func (r *Repository) updateOne(ctx context.Context, q string, id uuid.UUID, args ...any) (*models.Recording, error) {
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, append([]any{id}, args...)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("recording %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update recording: %w", err)
	}
	return rec, nil
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	var raw, modified []byte
	err := row.Scan(&rec.ID, &rec.ClassID, &rec.RtcID, &rec.CreatedBy, &rec.StartedAt, &raw, &modified,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.AdjustedAt, &rec.TranscodedAt, &rec.DeletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	if modified != nil {
		rec.ModifiedSegments = []models.Segment{}
		if err := json.Unmarshal(modified, &rec.ModifiedSegments); err != nil {
			return nil, fmt.Errorf("decode modified segments: %w", err)
		}
	}
	return &rec, nil
}

func segmentsParam(segs []models.Segment) string {
	if segs == nil {
		segs = []models.Segment{}
	}
	b, _ := json.Marshal(segs)
	return string(b)
}
