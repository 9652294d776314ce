package v1

import "github.com/gosuda/taskboard/internal/domain"

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Boards() domain.BoardRepository
	Cards() domain.CardRepository
	Memberships() domain.MembershipRepository
	Comments() domain.CommentRepository
	Activities() domain.ActivityRepository
}

// Publisher delivers a committed change to the card's live channel.
// *ws.Hub satisfies this interface.
type Publisher interface {
	Publish(cardID int64, ev domain.Event) int
}
