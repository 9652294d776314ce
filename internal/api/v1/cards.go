package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/domain"
)

type ListCommentsInput struct {
	CardID int64 `path:"cardID" doc:"Card ID"`
}

type ListCommentsOutput struct {
	Body []*domain.Comment
}

type CreateCommentInput struct {
	CardID int64 `path:"cardID" doc:"Card ID"`
	Body   struct {
		Content string `json:"content" minLength:"1" maxLength:"5000" doc:"Comment text"`
	}
}

type CreateCommentOutput struct {
	Body *domain.Comment
}

type MoveCardInput struct {
	CardID int64 `path:"cardID" doc:"Card ID"`
	Body   struct {
		ListID int64 `json:"list_id" minimum:"1" doc:"Target list on the same board"`
	}
}

type MoveCardOutput struct {
	Body *domain.Card
}

// RegisterCardRoutes registers comment and card move operations. Committed
// changes are announced on the card's live channel through pub.
func RegisterCardRoutes(api huma.API, store DataStore, pub Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "list-card-comments",
		Method:      http.MethodGet,
		Path:        "/cards/{cardID}/comments",
		Summary:     "List comments on a card",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *ListCommentsInput) (*ListCommentsOutput, error) {
		if _, _, err := authorizeCard(ctx, store, input.CardID, domain.PermissionView); err != nil {
			return nil, err
		}

		comments, err := store.Comments().ListByCard(ctx, input.CardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list comments", err)
		}
		if comments == nil {
			comments = []*domain.Comment{}
		}

		return &ListCommentsOutput{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-card-comment",
		Method:        http.MethodPost,
		Path:          "/cards/{cardID}/comments",
		Summary:       "Comment on a card",
		Tags:          []string{"Cards"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateCommentInput) (*CreateCommentOutput, error) {
		user, board, err := authorizeCard(ctx, store, input.CardID, domain.PermissionEdit)
		if err != nil {
			return nil, err
		}

		c := &domain.Comment{
			CardID:  input.CardID,
			UserID:  user.ID,
			Content: input.Body.Content,
		}
		entry := &domain.Activity{
			BoardID: board.ID,
			UserID:  user.ID,
			Type:    domain.ActivityCommentAdded,
			Details: fmt.Sprintf("commented on card %d", input.CardID),
		}
		if err := store.Comments().Create(ctx, c, entry); err != nil {
			return nil, huma.Error500InternalServerError("failed to create comment", err)
		}

		ev, err := ws.CommentCreated(c)
		if err != nil {
			log.Error().Err(err).Int64("card_id", c.CardID).Msg("api: build comment event")
		} else {
			pub.Publish(c.CardID, ev)
		}

		return &CreateCommentOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-card",
		Method:      http.MethodPut,
		Path:        "/cards/{cardID}/move",
		Summary:     "Move a card to another list",
		Tags:        []string{"Cards"},
	}, func(ctx context.Context, input *MoveCardInput) (*MoveCardOutput, error) {
		user, board, err := authorizeCard(ctx, store, input.CardID, domain.PermissionEdit)
		if err != nil {
			return nil, err
		}

		entry := &domain.Activity{
			BoardID: board.ID,
			UserID:  user.ID,
			Type:    domain.ActivityCardMoved,
			Details: fmt.Sprintf("moved card %d to list %d", input.CardID, input.Body.ListID),
		}
		card, err := store.Cards().Move(ctx, input.CardID, input.Body.ListID, entry)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("list not found on this board")
			}
			return nil, huma.Error500InternalServerError("failed to move card", err)
		}

		ev, err := ws.CardMoved(card, entry)
		if err != nil {
			log.Error().Err(err).Int64("card_id", card.ID).Msg("api: build move event")
		} else {
			pub.Publish(card.ID, ev)
		}

		return &MoveCardOutput{Body: card}, nil
	})
}
