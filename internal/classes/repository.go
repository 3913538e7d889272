package classes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/database"
)

const classColumns = `c.id, c.kind, c.audience, c.scope, c.time_start, c.time_end, c.tags,
	c.conference_room_id, c.event_room_id, c.original_event_room_id, c.modified_event_room_id,
	c.host, c.established, c.preserve_history, c.content_id, c.closed_at, c.created_at`

// Repository handles class persistence and the room_id -> class_id index.
type Repository struct {
	pool        *pgxpool.Pool
	provisioner RoomProvisioner
}

// NewRepository creates a class repository.
func NewRepository(pool *pgxpool.Pool, provisioner RoomProvisioner) *Repository {
	return &Repository{pool: pool, provisioner: provisioner}
}

// CreateParams are the inputs of Create.
type CreateParams struct {
	Kind            models.Kind
	Audience        string
	Scope           string
	Time            models.TimeRange
	Tags            json.RawMessage
	Host            *string
	PreserveHistory bool
}

// ConvertParams are the inputs of Convert. The rooms already exist.
type ConvertParams struct {
	CreateParams
	ConferenceRoomID    uuid.UUID
	EventRoomID         uuid.UUID
	OriginalEventRoomID *uuid.UUID
	ModifiedEventRoomID *uuid.UUID
}

// UpdateParams holds the optional fields of Update; nil leaves a field unchanged.
type UpdateParams struct {
	Time *models.TimeRange
	Tags json.RawMessage
	Host *string
}

// Create inserts a class and provisions its rooms. An established class with the
// same scope is a conflict; an unestablished one is left over from a failed
// attempt and is taken over. When provisioning fails the class stays unestablished.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*models.Class, error) {
	c, err := newClass(p)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO class AS c (kind, audience, scope, time_start, time_end, tags, host, preserve_history, content_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (audience, scope) DO UPDATE
		SET kind = EXCLUDED.kind, time_start = EXCLUDED.time_start, time_end = EXCLUDED.time_end,
			tags = EXCLUDED.tags, host = EXCLUDED.host, preserve_history = EXCLUDED.preserve_history,
			content_id = EXCLUDED.content_id
		WHERE c.established = FALSE
		RETURNING ` + classColumns
	c, err = scanClass(r.pool.QueryRow(ctx, q, string(c.Kind), c.Audience, c.Scope, c.Time.Start, c.Time.End,
		jsonParam(c.Tags), c.Host, c.PreserveHistory, c.ContentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Conflict("scope %q already used in audience %q", p.Scope, p.Audience)
	}
	if err != nil {
		return nil, translate(err, "insert class")
	}

	rooms, err := r.provisioner.Provision(ctx, ProvisionRequest{Kind: c.Kind, Audience: c.Audience, Time: c.Time, Tags: c.Tags})
	if err != nil {
		return nil, fmt.Errorf("provision rooms for class %s: %w", c.ID, err)
	}

	err = database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		const q = `UPDATE class AS c SET conference_room_id = $2, event_room_id = $3, established = TRUE
			WHERE c.id = $1 AND c.established = FALSE
			RETURNING ` + classColumns
		updated, err := scanClass(tx.QueryRow(ctx, q, c.ID, rooms.ConferenceRoomID, rooms.EventRoomID))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict("class %s was established concurrently", c.ID)
		}
		if err != nil {
			return translate(err, "establish class")
		}
		if err := checkInvariants(updated); err != nil {
			return err
		}
		c = updated
		return writeRoomIndex(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Convert inserts an established class over rooms that already exist.
func (r *Repository) Convert(ctx context.Context, p ConvertParams) (*models.Class, error) {
	c, err := newClass(p.CreateParams)
	if err != nil {
		return nil, err
	}
	c.ConferenceRoomID = &p.ConferenceRoomID
	c.EventRoomID = &p.EventRoomID
	c.OriginalEventRoomID = p.OriginalEventRoomID
	c.ModifiedEventRoomID = p.ModifiedEventRoomID
	c.Established = true
	if err := checkInvariants(c); err != nil {
		return nil, err
	}

	err = database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		const q = `INSERT INTO class AS c (kind, audience, scope, time_start, time_end, tags, host, preserve_history, content_id,
				conference_room_id, event_room_id, original_event_room_id, modified_event_room_id, established)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
			RETURNING ` + classColumns
		inserted, err := scanClass(tx.QueryRow(ctx, q, string(c.Kind), c.Audience, c.Scope, c.Time.Start, c.Time.End,
			jsonParam(c.Tags), c.Host, c.PreserveHistory, c.ContentID,
			c.ConferenceRoomID, c.EventRoomID, c.OriginalEventRoomID, c.ModifiedEventRoomID))
		if err != nil {
			return translate(err, "insert converted class")
		}
		c = inserted
		return writeRoomIndex(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID returns a class by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM class c WHERE c.id = $1`
	c, err := scanClass(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "class %s", id)
	}
	return c, nil
}

// FindByScope returns the class registered under scope in audience.
func (r *Repository) FindByScope(ctx context.Context, audience, scope string) (*models.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM class c WHERE c.audience = $1 AND c.scope = $2`
	c, err := scanClass(r.pool.QueryRow(ctx, q, audience, scope))
	if err != nil {
		return nil, notFound(err, "class %s/%s", audience, scope)
	}
	return c, nil
}

// FindByRoomID returns the class owning roomID in any of its four room columns.
func (r *Repository) FindByRoomID(ctx context.Context, roomID uuid.UUID) (*models.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM class_room cr JOIN class c ON c.id = cr.class_id WHERE cr.room_id = $1`
	c, err := scanClass(r.pool.QueryRow(ctx, q, roomID))
	if err != nil {
		return nil, notFound(err, "class for room %s", roomID)
	}
	return c, nil
}

// FindByRtcID returns the class of the recording made on rtcID. Soft-deleted
// recordings still count: their stored artifacts belong to the class.
func (r *Repository) FindByRtcID(ctx context.Context, rtcID uuid.UUID) (*models.Class, error) {
	const q = `SELECT ` + classColumns + ` FROM recording rec JOIN class c ON c.id = rec.class_id
		WHERE rec.rtc_id = $1 ORDER BY rec.created_at DESC LIMIT 1`
	c, err := scanClass(r.pool.QueryRow(ctx, q, rtcID))
	if err != nil {
		return nil, notFound(err, "class for rtc %s", rtcID)
	}
	return c, nil
}

// Recreate replaces the rooms of a class that preserves history. The current event
// room moves to original_event_room_id and fresh rooms are installed; live
// recordings of the old rooms are soft-deleted.
func (r *Repository) Recreate(ctx context.Context, id uuid.UUID, newTime models.TimeRange) (*models.Class, error) {
	if err := newTime.Validate(); err != nil {
		return nil, apperr.Validation("%s", err)
	}
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.PreserveHistory {
		return nil, apperr.Unsupported("class %s does not preserve history", id)
	}
	if !c.Established {
		return nil, apperr.Conflict("class %s is not established", id)
	}

	rooms, err := r.provisioner.Provision(ctx, ProvisionRequest{Kind: c.Kind, Audience: c.Audience, Time: newTime, Tags: c.Tags})
	if err != nil {
		return nil, fmt.Errorf("provision rooms for class %s: %w", id, err)
	}

	err = database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		locked, err := scanClass(tx.QueryRow(ctx, `SELECT `+classColumns+` FROM class c WHERE c.id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "class %s", id)
		}
		if !locked.PreserveHistory {
			return apperr.Unsupported("class %s does not preserve history", id)
		}

		const q = `UPDATE class AS c SET original_event_room_id = c.event_room_id, event_room_id = $2,
				conference_room_id = $3, modified_event_room_id = NULL, time_start = $4, time_end = $5
			WHERE c.id = $1
			RETURNING ` + classColumns
		updated, err := scanClass(tx.QueryRow(ctx, q, id, rooms.EventRoomID, rooms.ConferenceRoomID, newTime.Start, newTime.End))
		if err != nil {
			return translate(err, "recreate class")
		}
		if err := checkInvariants(updated); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE recording SET deleted_at = NOW() WHERE class_id = $1 AND deleted_at IS NULL`, id); err != nil {
			return fmt.Errorf("delete recordings: %w", err)
		}
		c = updated
		return writeRoomIndex(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update changes time, tags or host and re-validates the class.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*models.Class, error) {
	if p.Time != nil {
		if err := p.Time.Validate(); err != nil {
			return nil, apperr.Validation("%s", err)
		}
	}
	var c *models.Class
	err := database.InTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		locked, err := scanClass(tx.QueryRow(ctx, `SELECT `+classColumns+` FROM class c WHERE c.id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "class %s", id)
		}
		if p.Time != nil {
			locked.Time = *p.Time
		}
		if p.Tags != nil {
			locked.Tags = p.Tags
		}
		if p.Host != nil {
			locked.Host = normalizeHost(p.Host)
		}
		if err := checkInvariants(locked); err != nil {
			return err
		}

		const q = `UPDATE class AS c SET time_start = $2, time_end = $3, tags = $4, host = $5
			WHERE c.id = $1
			RETURNING ` + classColumns
		c, err = scanClass(tx.QueryRow(ctx, q, id, locked.Time.Start, locked.Time.End, jsonParam(locked.Tags), locked.Host))
		if err != nil {
			return translate(err, "update class")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Close marks a class administratively closed. Closing twice keeps the first timestamp.
func (r *Repository) Close(ctx context.Context, id uuid.UUID) (*models.Class, error) {
	const q = `UPDATE class AS c SET closed_at = COALESCE(c.closed_at, NOW()) WHERE c.id = $1 RETURNING ` + classColumns
	c, err := scanClass(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "class %s", id)
	}
	return c, nil
}

// RollbackScope hard-deletes a class together with its recordings, ban history and room index.
func (r *Repository) RollbackScope(ctx context.Context, audience, scope string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM class WHERE audience = $1 AND scope = $2`, audience, scope)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("class %s/%s", audience, scope)
	}
	return nil
}

// writeRoomIndex replaces the index rows of c with its current room columns.
func writeRoomIndex(ctx context.Context, tx pgx.Tx, c *models.Class) error {
	if _, err := tx.Exec(ctx, `DELETE FROM class_room WHERE class_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear room index: %w", err)
	}
	for _, ref := range c.Rooms() {
		_, err := tx.Exec(ctx, `INSERT INTO class_room (room_id, class_id, role) VALUES ($1, $2, $3)`, ref.RoomID, c.ID, string(ref.Role))
		if database.PgCode(err) == database.CodeUniqueViolation {
			return apperr.Conflict("room %s already belongs to another class", ref.RoomID)
		}
		if err != nil {
			return fmt.Errorf("index room %s: %w", ref.RoomID, err)
		}
	}
	return nil
}

func newClass(p CreateParams) (*models.Class, error) {
	if !p.Kind.Valid() {
		return nil, apperr.Validation("unknown class kind %q", p.Kind)
	}
	if p.Audience == "" || p.Scope == "" {
		return nil, apperr.Validation("audience and scope are required")
	}
	if err := p.Time.Validate(); err != nil {
		return nil, apperr.Validation("%s", err)
	}
	c := &models.Class{
		Kind:            p.Kind,
		Audience:        p.Audience,
		Scope:           p.Scope,
		Time:            p.Time,
		Tags:            p.Tags,
		Host:            normalizeHost(p.Host),
		PreserveHistory: p.PreserveHistory,
		ContentID:       models.ContentIDFor(p.Kind, p.Audience, p.Scope),
	}
	if err := checkInvariants(c); err != nil {
		return nil, err
	}
	return c, nil
}

// normalizeHost maps an empty host to absent.
func normalizeHost(host *string) *string {
	if host == nil || *host == "" {
		return nil
	}
	return host
}

func checkInvariants(c *models.Class) error {
	if err := c.Validate(); err != nil {
		return apperr.Conflict("%s", err)
	}
	return nil
}

func scanClass(row pgx.Row) (*models.Class, error) {
	var c models.Class
	var kind string
	var tags []byte
	err := row.Scan(&c.ID, &kind, &c.Audience, &c.Scope, &c.Time.Start, &c.Time.End, &tags,
		&c.ConferenceRoomID, &c.EventRoomID, &c.OriginalEventRoomID, &c.ModifiedEventRoomID,
		&c.Host, &c.Established, &c.PreserveHistory, &c.ContentID, &c.ClosedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = models.Kind(kind)
	if len(tags) > 0 {
		c.Tags = json.RawMessage(tags)
	}
	return &c, nil
}

func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func translate(err error, op string) error {
	switch database.PgCode(err) {
	case database.CodeUniqueViolation:
		return apperr.Conflict("%s: %s", op, database.PgConstraint(err))
	case database.CodeCheckViolation:
		return apperr.Conflict("%s: %s", op, database.PgConstraint(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
