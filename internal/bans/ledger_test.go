package bans

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/testdb"
)

func insertClass(t *testing.T, pool *pgxpool.Pool, scope string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO class (kind, audience, scope, content_id) VALUES ('webinar', 'usr.example.org', $1, 'content.webinar.usr.example.org::' || $1) RETURNING id`,
		scope).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestLedger(t *testing.T) {
	pool := testdb.New(t)
	ledger := NewLedger(pool)
	ctx := context.Background()
	classID := insertClass(t, pool, "room-1")
	const account = "web.usr.example.org"

	t.Run("never banned account has no token", func(t *testing.T) {
		_, err := ledger.GetLastOp(ctx, account)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("first operation presents zero", func(t *testing.T) {
		_, err := ledger.ApplyBan(ctx, account, classID, true, 7)
		assert.ErrorIs(t, err, apperr.ErrStaleWrite)

		opID, err := ledger.ApplyBan(ctx, account, classID, true, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), opID)

		op, err := ledger.GetLastOp(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(1), op.LastOpID)
		assert.True(t, op.IsVideoStreamingBanned)
		assert.True(t, op.IsCollaborationBanned)
	})

	t.Run("stale token does not mutate", func(t *testing.T) {
		_, err := ledger.ApplyBan(ctx, account, classID, false, 0)
		assert.ErrorIs(t, err, apperr.ErrStaleWrite)

		op, err := ledger.GetLastOp(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(1), op.LastOpID)
		assert.True(t, op.IsVideoStreamingBanned)

		history, err := ledger.History(ctx, account)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("unban appends a row carrying the ban time", func(t *testing.T) {
		opID, err := ledger.ApplyBan(ctx, account, classID, false, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), opID)

		history, err := ledger.History(ctx, account)
		require.NoError(t, err)
		require.Len(t, history, 2)
		unban, ban := history[0], history[1]
		assert.Equal(t, int64(2), unban.BannedOperationID)
		require.NotNil(t, unban.UnbannedOperationID)
		assert.Equal(t, int64(2), *unban.UnbannedOperationID)
		require.NotNil(t, unban.UnbannedAt)
		assert.True(t, unban.BannedAt.Equal(ban.BannedAt))
		assert.Nil(t, ban.UnbannedAt)

		op, err := ledger.GetLastOp(ctx, account)
		require.NoError(t, err)
		assert.False(t, op.IsVideoStreamingBanned)
		assert.False(t, op.IsCollaborationBanned)
	})

	t.Run("unknown class rolls back", func(t *testing.T) {
		_, err := ledger.ApplyBan(ctx, account, uuid.New(), true, 2)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		op, err := ledger.GetLastOp(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, int64(2), op.LastOpID)
	})

	t.Run("negative token is invalid", func(t *testing.T) {
		_, err := ledger.ApplyBan(ctx, account, classID, true, -1)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestApplyBanConcurrentSameToken(t *testing.T) {
	pool := testdb.New(t)
	ledger := NewLedger(pool)
	ctx := context.Background()
	classID := insertClass(t, pool, "room-2")

	for _, tc := range []struct {
		name    string
		account string
		token   int64
	}{
		{"first operation", "a.usr.example.org", 0},
		{"existing row", "b.usr.example.org", 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.token > 0 {
				_, err := ledger.ApplyBan(ctx, tc.account, classID, false, 0)
				require.NoError(t, err)
			}

			const callers = 8
			var wg sync.WaitGroup
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = ledger.ApplyBan(ctx, tc.account, classID, true, tc.token)
				}(i)
			}
			wg.Wait()

			var ok, stale int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, apperr.ErrStaleWrite):
					stale++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, callers-1, stale)

			op, err := ledger.GetLastOp(ctx, tc.account)
			require.NoError(t, err)
			assert.Equal(t, tc.token+1, op.LastOpID)
		})
	}
}
