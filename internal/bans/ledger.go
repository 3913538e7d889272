// Package bans keeps per-account ban flags behind a compare-and-swap token and
// an append-only history of every transition.
package bans

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/pkg/database"
)

// Ledger applies ban operations. It never retries: a StaleWrite goes back to
// the caller, who re-reads the token and decides whether to try again.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a ban ledger.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// GetLastOp returns the current flags and token of account. Accounts that were
// never banned have no row; their first operation presents token 0.
func (l *Ledger) GetLastOp(ctx context.Context, account string) (*models.BanAccountOp, error) {
	const q = `SELECT user_account, last_op_id, is_video_streaming_banned, is_collaboration_banned, updated_at
		FROM ban_account_op WHERE user_account = $1`
	var op models.BanAccountOp
	err := l.pool.QueryRow(ctx, q, account).Scan(&op.UserAccount, &op.LastOpID, &op.IsVideoStreamingBanned, &op.IsCollaborationBanned, &op.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ban state of %s", account)
	}
	if err != nil {
		return nil, fmt.Errorf("get ban state: %w", err)
	}
	return &op, nil
}

// ApplyBan sets both ban flags of account to ban when lastOpID matches the
// stored token, and returns the new token. The flag update and the history row
// commit together or not at all.
func (l *Ledger) ApplyBan(ctx context.Context, account string, classID uuid.UUID, ban bool, lastOpID int64) (int64, error) {
	if account == "" {
		return 0, apperr.Validation("account is required")
	}
	if lastOpID < 0 {
		return 0, apperr.Validation("last_op_id must not be negative")
	}

	var newOpID int64
	err := database.InTx(ctx, l.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx, `SELECT last_op_id FROM ban_account_op WHERE user_account = $1 FOR UPDATE`, account).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if lastOpID != 0 {
				return apperr.StaleWrite("account %s has no operations, got token %d", account, lastOpID)
			}
			newOpID = 1
			tag, err := tx.Exec(ctx, `INSERT INTO ban_account_op (user_account, last_op_id, is_video_streaming_banned, is_collaboration_banned)
				VALUES ($1, $2, $3, $3) ON CONFLICT (user_account) DO NOTHING`, account, newOpID, ban)
			if err != nil {
				return fmt.Errorf("insert ban state: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return apperr.StaleWrite("account %s was written concurrently", account)
			}
		case err != nil:
			return fmt.Errorf("lock ban state: %w", err)
		default:
			if current != lastOpID {
				return apperr.StaleWrite("account %s is at token %d, got %d", account, current, lastOpID)
			}
			newOpID = current + 1
			_, err := tx.Exec(ctx, `UPDATE ban_account_op
				SET last_op_id = $2, is_video_streaming_banned = $3, is_collaboration_banned = $3, updated_at = NOW()
				WHERE user_account = $1`, account, newOpID, ban)
			if err != nil {
				return fmt.Errorf("update ban state: %w", err)
			}
		}
		return appendHistory(ctx, tx, account, classID, ban, newOpID)
	})
	if err != nil {
		return 0, err
	}
	return newOpID, nil
}

// History lists the transitions of account, newest first.
func (l *Ledger) History(ctx context.Context, account string) ([]models.BanHistory, error) {
	const q = `SELECT target_account, class_id, banned_at, banned_operation_id, unbanned_at, unbanned_operation_id
		FROM ban_history WHERE target_account = $1 ORDER BY banned_operation_id DESC`
	rows, err := l.pool.Query(ctx, q, account)
	if err != nil {
		return nil, fmt.Errorf("list ban history: %w", err)
	}
	defer rows.Close()
	list := []models.BanHistory{}
	for rows.Next() {
		var h models.BanHistory
		if err := rows.Scan(&h.TargetAccount, &h.ClassID, &h.BannedAt, &h.BannedOperationID, &h.UnbannedAt, &h.UnbannedOperationID); err != nil {
			return nil, fmt.Errorf("scan ban history: %w", err)
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// appendHistory writes the row for operation opID. Unban rows carry the
// banned_at of the ban they lift.
func appendHistory(ctx context.Context, tx pgx.Tx, account string, classID uuid.UUID, ban bool, opID int64) error {
	var err error
	if ban {
		_, err = tx.Exec(ctx, `INSERT INTO ban_history (target_account, banned_operation_id, class_id, banned_at)
			VALUES ($1, $2, $3, NOW())`, account, opID, classID)
	} else {
		_, err = tx.Exec(ctx, `INSERT INTO ban_history (target_account, banned_operation_id, class_id, banned_at, unbanned_at, unbanned_operation_id)
			VALUES ($1, $2, $3,
				COALESCE((SELECT banned_at FROM ban_history
					WHERE target_account = $1 AND class_id = $3 AND unbanned_at IS NULL
					ORDER BY banned_operation_id DESC LIMIT 1), NOW()),
				NOW(), $2)`, account, opID, classID)
	}
	if database.PgCode(err) == database.CodeForeignKeyViolation {
		return apperr.NotFound("class %s", classID)
	}
	if err != nil {
		return fmt.Errorf("append ban history: %w", err)
	}
	return nil
}
