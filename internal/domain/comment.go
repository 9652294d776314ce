package domain

import (
	"context"
	"time"
)

type Comment struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"card_id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentRepository interface {
	// Create inserts the comment and the activity entry atomically.
	Create(ctx context.Context, c *Comment, entry *Activity) error
	ListByCard(ctx context.Context, cardID int64) ([]*Comment, error)
}
