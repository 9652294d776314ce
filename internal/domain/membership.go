package domain

import (
	"context"
	"time"
)

// PermissionLevel is the capability a user holds on a board. Levels are
// totally ordered: none < view < edit < admin.
type PermissionLevel string

const (
	PermissionNone  PermissionLevel = ""
	PermissionView  PermissionLevel = "view"
	PermissionEdit  PermissionLevel = "edit"
	PermissionAdmin PermissionLevel = "admin"
)

func (l PermissionLevel) rank() int {
	switch l {
	case PermissionView:
		return 1
	case PermissionEdit:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l can be stored on a membership row.
func (l PermissionLevel) Valid() bool {
	return l.rank() > 0
}

// Allows reports whether l grants at least min.
func (l PermissionLevel) Allows(min PermissionLevel) bool {
	return l.rank() >= min.rank()
}

func (l PermissionLevel) String() string {
	if l == PermissionNone {
		return "none"
	}
	return string(l)
}

// Membership grants a non-owner user access to a board. At most one row
// exists per (board, user) pair.
type Membership struct {
	BoardID   int64           `json:"board_id"`
	UserID    int64           `json:"user_id"`
	Level     PermissionLevel `json:"permission_level"`
	CreatedAt time.Time       `json:"created_at"`
}

type MembershipRepository interface {
	Get(ctx context.Context, boardID, userID int64) (*Membership, error)
	ListByBoard(ctx context.Context, boardID int64) ([]*Membership, error)
	// Create returns ErrConflict when the pair already exists.
	Create(ctx context.Context, m *Membership) error
	UpdateLevel(ctx context.Context, boardID, userID int64, level PermissionLevel) error
	Delete(ctx context.Context, boardID, userID int64) error
}
