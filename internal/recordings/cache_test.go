package recordings

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/apperr"
	"github.com/aura-webinar/dispatcher/internal/models"
)

func TestSegmentCache_ReusesResultUntilRecordingChanges(t *testing.T) {
	cache, err := NewSegmentCache(8)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &models.Recording{
		ID:        uuid.New(),
		CreatedAt: created,
		UpdatedAt: created,
		Segments:  []models.Segment{{0, 1000}, {500, 2000}},
	}

	res, err := cache.Merged(rec)
	require.NoError(t, err)
	assert.Equal(t, []models.Segment{{0, 2000}}, res.Segments)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Merged(rec)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	adjusted := created.Add(time.Minute)
	rec.ModifiedSegments = []models.Segment{{100, 900}}
	rec.AdjustedAt = &adjusted

	res, err = cache.Merged(rec)
	require.NoError(t, err)
	assert.Equal(t, []models.Segment{{100, 900}}, res.Segments)
	assert.Equal(t, int64(800), res.Duration())
	assert.Equal(t, 2, cache.Len())
}

func TestSegmentCache_InvalidOverlayIsNotCached(t *testing.T) {
	cache, err := NewSegmentCache(8)
	require.NoError(t, err)

	rec := &models.Recording{
		ID:               uuid.New(),
		CreatedAt:        time.Now(),
		Segments:         []models.Segment{{0, 1000}},
		ModifiedSegments: []models.Segment{{900, 1500}},
	}

	_, err = cache.Merged(rec)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, cache.Len())
}
