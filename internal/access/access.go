// Package access evaluates a user's capability on a board. The same rules
// gate websocket admission and the REST handlers.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosuda/taskboard/internal/domain"
)

// Evaluate returns the level actorID holds on board. The owner is always
// admin; otherwise the membership row decides, and no row means no access.
func Evaluate(actorID int64, board *domain.Board, membership *domain.Membership) domain.PermissionLevel {
	if board == nil {
		return domain.PermissionNone
	}
	if board.OwnerID == actorID {
		return domain.PermissionAdmin
	}
	if membership == nil || membership.BoardID != board.ID || membership.UserID != actorID {
		return domain.PermissionNone
	}
	if !membership.Level.Valid() {
		return domain.PermissionNone
	}
	return membership.Level
}

// MembershipLookup is the slice of the resource store the Checker needs.
type MembershipLookup interface {
	Get(ctx context.Context, boardID, userID int64) (*domain.Membership, error)
}

// Checker resolves memberships through the store and applies Evaluate.
type Checker struct {
	memberships MembershipLookup
}

func NewChecker(memberships MembershipLookup) *Checker {
	return &Checker{memberships: memberships}
}

// Level returns the caller's level on board. Owners skip the lookup.
func (c *Checker) Level(ctx context.Context, actorID int64, board *domain.Board) (domain.PermissionLevel, error) {
	if board == nil {
		return domain.PermissionNone, nil
	}
	if board.OwnerID == actorID {
		return domain.PermissionAdmin, nil
	}

	m, err := c.memberships.Get(ctx, board.ID, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PermissionNone, nil
	}
	if err != nil {
		return domain.PermissionNone, fmt.Errorf("access.Checker.Level: %w", err)
	}

	return Evaluate(actorID, board, m), nil
}

// Require returns domain.ErrForbidden unless actorID holds at least min.
func (c *Checker) Require(ctx context.Context, actorID int64, board *domain.Board, min domain.PermissionLevel) (domain.PermissionLevel, error) {
	level, err := c.Level(ctx, actorID, board)
	if err != nil {
		return domain.PermissionNone, err
	}
	if !level.Allows(min) || level == domain.PermissionNone {
		return level, fmt.Errorf("access.Checker.Require(%s): %w", min, domain.ErrForbidden)
	}
	return level, nil
}
