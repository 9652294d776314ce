package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/domain"
)

// TokenResolver maps a raw credential to a user. *auth.Verifier satisfies it.
type TokenResolver interface {
	Resolve(ctx context.Context, raw string) (*domain.User, error)
}

// BoardResolver finds the board that owns a card.
type BoardResolver interface {
	GetForCard(ctx context.Context, cardID int64) (*domain.Board, error)
}

// LevelChecker evaluates a user's level on a board. *access.Checker
// satisfies it.
type LevelChecker interface {
	Level(ctx context.Context, actorID int64, board *domain.Board) (domain.PermissionLevel, error)
}

// Rejection is a failed handshake together with the close code to send.
type Rejection struct {
	Code   websocket.StatusCode
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("channel: handshake rejected (%d %s): %v", r.Code, r.Reason, r.Err)
	}
	return fmt.Sprintf("channel: handshake rejected (%d %s)", r.Code, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Gate admits or rejects a handshake for cardID. Level re-evaluates an
// admitted user's access before each relayed event.
type Gate interface {
	Admit(ctx context.Context, cardID int64, token string) (*domain.User, error)
	Level(ctx context.Context, cardID, userID int64) (domain.PermissionLevel, error)
}

// Gatekeeper runs the three handshake checks in order: token present, token
// resolves to a user, user holds at least view on the card's board.
type Gatekeeper struct {
	tokens  TokenResolver
	boards  BoardResolver
	checker LevelChecker
}

// NewGatekeeper creates a handshake gate.
func NewGatekeeper(tokens TokenResolver, boards BoardResolver, checker LevelChecker) *Gatekeeper {
	return &Gatekeeper{tokens: tokens, boards: boards, checker: checker}
}

// Admit returns the resolved user, or a *Rejection carrying the close code.
func (g *Gatekeeper) Admit(ctx context.Context, cardID int64, token string) (*domain.User, error) {
	if token == "" {
		return nil, &Rejection{Code: CloseMissingToken, Reason: "missing token"}
	}

	user, err := g.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, &Rejection{Code: CloseInvalidToken, Reason: "invalid token", Err: err}
		}
		return nil, &Rejection{Code: CloseInternal, Reason: "internal error", Err: err}
	}

	board, err := g.boards.GetForCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &Rejection{Code: CloseUnauthorized, Reason: "card not accessible", Err: err}
		}
		return nil, &Rejection{Code: CloseInternal, Reason: "internal error", Err: err}
	}

	level, err := g.checker.Level(ctx, user.ID, board)
	if err != nil {
		return nil, &Rejection{Code: CloseInternal, Reason: "internal error", Err: err}
	}
	if level == domain.PermissionNone || !level.Allows(domain.PermissionView) {
		return nil, &Rejection{Code: CloseUnauthorized, Reason: "card not accessible"}
	}

	return user, nil
}

// Level returns userID's current level on the board owning cardID. A card
// that no longer exists yields PermissionNone.
func (g *Gatekeeper) Level(ctx context.Context, cardID, userID int64) (domain.PermissionLevel, error) {
	board, err := g.boards.GetForCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PermissionNone, nil
		}
		return domain.PermissionNone, fmt.Errorf("channel.Gatekeeper.Level: %w", err)
	}

	level, err := g.checker.Level(ctx, userID, board)
	if err != nil {
		return domain.PermissionNone, fmt.Errorf("channel.Gatekeeper.Level: %w", err)
	}
	return level, nil
}
