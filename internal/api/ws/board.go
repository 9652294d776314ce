package ws

import (
	"fmt"

	"github.com/gosuda/taskboard/internal/domain"
)

// CommentCreated builds the live event for a committed comment.
func CommentCreated(c *domain.Comment) (domain.Event, error) {
	ev, err := domain.NewEvent(domain.EventComment, domain.EventCreated, c, c.UserID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("ws.CommentCreated: %w", err)
	}
	return ev, nil
}

type cardMovedPayload struct {
	Card     *domain.Card     `json:"card"`
	Activity *domain.Activity `json:"activity"`
}

// CardMoved builds the live event announcing that card changed lists.
func CardMoved(card *domain.Card, entry *domain.Activity) (domain.Event, error) {
	ev, err := domain.NewEvent(domain.EventActivity, domain.EventUpdated, cardMovedPayload{Card: card, Activity: entry}, entry.UserID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("ws.CardMoved: %w", err)
	}
	return ev, nil
}
