package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/taskboard/internal/access"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// authorizeBoard loads the board and checks that the caller holds at least
// need on it. The returned error is a huma status error.
func authorizeBoard(ctx context.Context, store DataStore, boardID int64, need domain.PermissionLevel) (*domain.User, *domain.Board, error) {
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return nil, nil, huma.Error401Unauthorized("authentication required")
	}

	board, err := store.Boards().GetByID(ctx, boardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("board not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to get board", err)
	}

	if err := requireLevel(ctx, store, user, board, need); err != nil {
		return nil, nil, err
	}

	return user, board, nil
}

// authorizeCard resolves the card's board and checks that the caller holds
// at least need on it.
func authorizeCard(ctx context.Context, store DataStore, cardID int64, need domain.PermissionLevel) (*domain.User, *domain.Board, error) {
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return nil, nil, huma.Error401Unauthorized("authentication required")
	}

	board, err := store.Boards().GetForCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("card not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to get card", err)
	}

	if err := requireLevel(ctx, store, user, board, need); err != nil {
		return nil, nil, err
	}

	return user, board, nil
}

func requireLevel(ctx context.Context, store DataStore, user *domain.User, board *domain.Board, need domain.PermissionLevel) error {
	_, err := access.NewChecker(store.Memberships()).Require(ctx, user.ID, board, need)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrForbidden) {
		return huma.Error403Forbidden("not enough permissions")
	}
	return huma.Error500InternalServerError("failed to check permissions", err)
}
