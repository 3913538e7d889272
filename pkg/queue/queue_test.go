package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/dispatcher/internal/testdb"
)

func TestEnqueueDequeue(t *testing.T) {
	client := testdb.Redis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	payload := TranscodingReadyPayload{
		RecordingID: uuid.New(),
		ClassID:     uuid.New(),
		ContentID:   "content.webinar.usr.example.org::room-1",
		SourceURL:   "https://transcoder.example.org/out.mp4",
	}
	id, err := q.EnqueueTranscodingReady(ctx, payload)
	require.NoError(t, err)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobTypeTranscodingReady, job.Type)

	var got TranscodingReadyPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	client := testdb.Redis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	job := &Job{ID: "j1", Type: JobTypeTranscodingReady, Payload: json.RawMessage(`{}`), Attempt: MaxRetries - 2}
	require.NoError(t, q.Retry(ctx, job))
	n, err := client.LLen(ctx, QueueTranscoding).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, q.Retry(ctx, job))
	n, err = client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
