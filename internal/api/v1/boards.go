package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

// activityFeedLimit is the default and maximum size of the board activity
// feed.
const activityFeedLimit = 50

type ListMembersInput struct {
	BoardID int64 `path:"boardID" doc:"Board ID"`
}

type ListMembersOutput struct {
	Body []*domain.Membership
}

type AddMemberInput struct {
	BoardID int64 `path:"boardID" doc:"Board ID"`
	Body    struct {
		UserID int64                  `json:"user_id" minimum:"1" doc:"User to add"`
		Level  domain.PermissionLevel `json:"permission_level" enum:"view,edit,admin" doc:"Granted level"`
	}
}

type AddMemberOutput struct {
	Body *domain.Membership
}

type UpdateMemberInput struct {
	BoardID int64 `path:"boardID" doc:"Board ID"`
	UserID  int64 `path:"userID" doc:"Member user ID"`
	Body    struct {
		Level domain.PermissionLevel `json:"permission_level" enum:"view,edit,admin" doc:"New level"`
	}
}

type UpdateMemberOutput struct {
	Body *domain.Membership
}

type RemoveMemberInput struct {
	BoardID int64 `path:"boardID" doc:"Board ID"`
	UserID  int64 `path:"userID" doc:"Member user ID"`
}

type ListActivityInput struct {
	BoardID int64 `path:"boardID" doc:"Board ID"`
	Limit   int   `query:"limit" default:"50" minimum:"1" maximum:"50" doc:"Maximum number of entries"`
}

type ListActivityOutput struct {
	Body []*domain.Activity
}

func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-board-members",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/members",
		Summary:     "List board members",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListMembersInput) (*ListMembersOutput, error) {
		if _, _, err := authorizeBoard(ctx, store, input.BoardID, domain.PermissionView); err != nil {
			return nil, err
		}

		members, err := store.Memberships().ListByBoard(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list members", err)
		}
		if members == nil {
			members = []*domain.Membership{}
		}

		return &ListMembersOutput{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-board-member",
		Method:        http.MethodPost,
		Path:          "/boards/{boardID}/members",
		Summary:       "Add a member to a board",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AddMemberInput) (*AddMemberOutput, error) {
		actor, board, err := authorizeBoard(ctx, store, input.BoardID, domain.PermissionAdmin)
		if err != nil {
			return nil, err
		}

		if input.Body.UserID == board.OwnerID {
			return nil, huma.Error409Conflict("user is the board owner")
		}

		if _, err := store.Users().GetByID(ctx, input.Body.UserID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		m := &domain.Membership{
			BoardID: board.ID,
			UserID:  input.Body.UserID,
			Level:   input.Body.Level,
		}
		if err := store.Memberships().Create(ctx, m); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("user is already a member of this board")
			}
			return nil, huma.Error500InternalServerError("failed to add member", err)
		}

		recordActivity(ctx, store, board.ID, actor.ID, domain.ActivityMemberAdded,
			fmt.Sprintf("added user %d with %s permission", m.UserID, m.Level))

		return &AddMemberOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board-member",
		Method:      http.MethodPut,
		Path:        "/boards/{boardID}/members/{userID}",
		Summary:     "Change a member's permission level",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *UpdateMemberInput) (*UpdateMemberOutput, error) {
		actor, board, err := authorizeBoard(ctx, store, input.BoardID, domain.PermissionAdmin)
		if err != nil {
			return nil, err
		}

		if err := store.Memberships().UpdateLevel(ctx, board.ID, input.UserID, input.Body.Level); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("member not found")
			}
			return nil, huma.Error500InternalServerError("failed to update member", err)
		}

		m, err := store.Memberships().Get(ctx, board.ID, input.UserID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to reload member", err)
		}

		recordActivity(ctx, store, board.ID, actor.ID, domain.ActivityMemberUpdated,
			fmt.Sprintf("changed user %d to %s permission", m.UserID, m.Level))

		return &UpdateMemberOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-board-member",
		Method:        http.MethodDelete,
		Path:          "/boards/{boardID}/members/{userID}",
		Summary:       "Remove a member from a board",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RemoveMemberInput) (*struct{}, error) {
		actor, board, err := authorizeBoard(ctx, store, input.BoardID, domain.PermissionAdmin)
		if err != nil {
			return nil, err
		}

		if err := store.Memberships().Delete(ctx, board.ID, input.UserID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("member not found")
			}
			return nil, huma.Error500InternalServerError("failed to remove member", err)
		}

		recordActivity(ctx, store, board.ID, actor.ID, domain.ActivityMemberRemoved,
			fmt.Sprintf("removed user %d", input.UserID))

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-board-activity",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/activity",
		Summary:     "List recent board activity, newest first",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListActivityInput) (*ListActivityOutput, error) {
		if _, _, err := authorizeBoard(ctx, store, input.BoardID, domain.PermissionView); err != nil {
			return nil, err
		}

		limit := input.Limit
		if limit <= 0 || limit > activityFeedLimit {
			limit = activityFeedLimit
		}

		entries, err := store.Activities().ListByBoard(ctx, input.BoardID, limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list activity", err)
		}
		if entries == nil {
			entries = []*domain.Activity{}
		}

		return &ListActivityOutput{Body: entries}, nil
	})
}

// recordActivity persists an activity entry for a change that is already
// committed. A failure is logged and does not fail the request.
func recordActivity(ctx context.Context, store DataStore, boardID, userID int64, kind domain.ActivityType, details string) {
	if err := store.Activities().Record(ctx, boardID, userID, kind, details); err != nil {
		log.Warn().Err(err).
			Int64("board_id", boardID).
			Str("activity_type", string(kind)).
			Msg("api: failed to record activity")
	}
}
