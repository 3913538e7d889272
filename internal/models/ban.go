package models

import (
	"time"

	"github.com/google/uuid"
)

// BanAccountOp holds the current ban flags for an account and the token the next writer must present.
type BanAccountOp struct {
	UserAccount            string    `json:"user_account"`
	LastOpID               int64     `json:"last_op_id"`
	IsVideoStreamingBanned bool      `json:"is_video_streaming_banned"`
	IsCollaborationBanned  bool      `json:"is_collaboration_banned"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// BanHistory is an insert-only audit row for one ban transition.
type BanHistory struct {
	TargetAccount       string     `json:"target_account"`
	ClassID             uuid.UUID  `json:"class_id"`
	BannedAt            time.Time  `json:"banned_at"`
	BannedOperationID   int64      `json:"banned_operation_id"`
	UnbannedAt          *time.Time `json:"unbanned_at,omitempty"`
	UnbannedOperationID *int64     `json:"unbanned_operation_id,omitempty"`
}
