package domain

import (
	"context"
	"time"
)

type ActivityType string

const (
	ActivityCardMoved     ActivityType = "card_moved"
	ActivityCommentAdded  ActivityType = "comment_added"
	ActivityMemberAdded   ActivityType = "member_added"
	ActivityMemberUpdated ActivityType = "member_updated"
	ActivityMemberRemoved ActivityType = "member_removed"
)

// Activity is the durable record of a mutating action on a board.
type Activity struct {
	ID        int64        `json:"id"`
	BoardID   int64        `json:"board_id"`
	UserID    int64        `json:"user_id"`
	Type      ActivityType `json:"activity_type"`
	Details   string       `json:"details"`
	CreatedAt time.Time    `json:"created_at"`
}

// ActivityRecorder persists activity entries independently of live delivery.
type ActivityRecorder interface {
	Record(ctx context.Context, boardID, userID int64, kind ActivityType, details string) error
}

type ActivityRepository interface {
	ActivityRecorder
	ListByBoard(ctx context.Context, boardID int64, limit int) ([]*Activity, error)
}
