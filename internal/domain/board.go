package domain

import (
	"context"
	"time"
)

type Board struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Card struct {
	ID          int64      `json:"id"`
	BoardID     int64      `json:"board_id"`
	ListID      int64      `json:"list_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type BoardRepository interface {
	GetByID(ctx context.Context, id int64) (*Board, error)
	// GetForCard resolves the board a card belongs to through its list.
	GetForCard(ctx context.Context, cardID int64) (*Board, error)
}

type CardRepository interface {
	// Move reassigns the card to another list on the same board and records
	// the activity entry in the same transaction.
	Move(ctx context.Context, cardID, listID int64, entry *Activity) (*Card, error)
}
