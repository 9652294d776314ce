package v1_test

import (
	"context"
	"sync"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(id int64) context.Context {
	return middleware.WithUser(context.Background(), &domain.User{ID: id, Username: "user"})
}

// Fixture ids shared by the handler tests: board 1 is owned by ownerID and
// holds card 7 on list 3.
const (
	ownerID  int64 = 100
	adminID  int64 = 101
	editorID int64 = 102
	viewerID int64 = 103
	strayID  int64 = 104

	boardID int64 = 1
	cardID  int64 = 7
	listID  int64 = 3
)

func fixtureBoard() *domain.Board {
	return &domain.Board{ID: boardID, Title: "Roadmap", OwnerID: ownerID}
}

// fixtureLevels grants the fixture users their named level on board 1.
func fixtureLevels() map[int64]domain.PermissionLevel {
	return map[int64]domain.PermissionLevel{
		adminID:  domain.PermissionAdmin,
		editorID: domain.PermissionEdit,
		viewerID: domain.PermissionView,
	}
}

// newFixtureStore returns a store where board 1 and card 7 exist and the
// fixture users hold their levels. Tests override individual funcs.
func newFixtureStore() *mockDataStore {
	levels := fixtureLevels()
	return &mockDataStore{
		users: &mockUserRepo{},
		boards: &mockBoardRepo{
			getByIDFunc: func(_ context.Context, id int64) (*domain.Board, error) {
				if id == boardID {
					return fixtureBoard(), nil
				}
				return nil, domain.ErrNotFound
			},
			getForCardFunc: func(_ context.Context, id int64) (*domain.Board, error) {
				if id == cardID {
					return fixtureBoard(), nil
				}
				return nil, domain.ErrNotFound
			},
		},
		cards: &mockCardRepo{},
		memberships: &mockMembershipRepo{
			getFunc: func(_ context.Context, bID, uID int64) (*domain.Membership, error) {
				if lvl, ok := levels[uID]; ok && bID == boardID {
					return &domain.Membership{BoardID: bID, UserID: uID, Level: lvl}, nil
				}
				return nil, domain.ErrNotFound
			},
		},
		comments:   &mockCommentRepo{},
		activities: &mockActivityRepo{},
	}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users       *mockUserRepo
	boards      *mockBoardRepo
	cards       *mockCardRepo
	memberships *mockMembershipRepo
	comments    *mockCommentRepo
	activities  *mockActivityRepo
}

func (m *mockDataStore) Users() domain.UserRepository             { return m.users }
func (m *mockDataStore) Boards() domain.BoardRepository           { return m.boards }
func (m *mockDataStore) Cards() domain.CardRepository             { return m.cards }
func (m *mockDataStore) Memberships() domain.MembershipRepository { return m.memberships }
func (m *mockDataStore) Comments() domain.CommentRepository       { return m.comments }
func (m *mockDataStore) Activities() domain.ActivityRepository    { return m.activities }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	getByIDFunc       func(ctx context.Context, id int64) (*domain.User, error)
	getByUsernameFunc func(ctx context.Context, username string) (*domain.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.getByUsernameFunc(ctx, username)
}

// ---------------------------------------------------------------------------
// Mock BoardRepository
// ---------------------------------------------------------------------------

type mockBoardRepo struct {
	getByIDFunc    func(ctx context.Context, id int64) (*domain.Board, error)
	getForCardFunc func(ctx context.Context, cardID int64) (*domain.Board, error)
}

func (m *mockBoardRepo) GetByID(ctx context.Context, id int64) (*domain.Board, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBoardRepo) GetForCard(ctx context.Context, cardID int64) (*domain.Board, error) {
	return m.getForCardFunc(ctx, cardID)
}

// ---------------------------------------------------------------------------
// Mock CardRepository
// ---------------------------------------------------------------------------

type mockCardRepo struct {
	moveFunc func(ctx context.Context, cardID, listID int64, entry *domain.Activity) (*domain.Card, error)
}

func (m *mockCardRepo) Move(ctx context.Context, cardID, listID int64, entry *domain.Activity) (*domain.Card, error) {
	return m.moveFunc(ctx, cardID, listID, entry)
}

// ---------------------------------------------------------------------------
// Mock MembershipRepository
// ---------------------------------------------------------------------------

type mockMembershipRepo struct {
	getFunc         func(ctx context.Context, boardID, userID int64) (*domain.Membership, error)
	listByBoardFunc func(ctx context.Context, boardID int64) ([]*domain.Membership, error)
	createFunc      func(ctx context.Context, m *domain.Membership) error
	updateLevelFunc func(ctx context.Context, boardID, userID int64, level domain.PermissionLevel) error
	deleteFunc      func(ctx context.Context, boardID, userID int64) error
}

func (m *mockMembershipRepo) Get(ctx context.Context, boardID, userID int64) (*domain.Membership, error) {
	return m.getFunc(ctx, boardID, userID)
}

func (m *mockMembershipRepo) ListByBoard(ctx context.Context, boardID int64) ([]*domain.Membership, error) {
	return m.listByBoardFunc(ctx, boardID)
}

func (m *mockMembershipRepo) Create(ctx context.Context, mem *domain.Membership) error {
	return m.createFunc(ctx, mem)
}

func (m *mockMembershipRepo) UpdateLevel(ctx context.Context, boardID, userID int64, level domain.PermissionLevel) error {
	return m.updateLevelFunc(ctx, boardID, userID, level)
}

func (m *mockMembershipRepo) Delete(ctx context.Context, boardID, userID int64) error {
	return m.deleteFunc(ctx, boardID, userID)
}

// ---------------------------------------------------------------------------
// Mock CommentRepository
// ---------------------------------------------------------------------------

type mockCommentRepo struct {
	createFunc     func(ctx context.Context, c *domain.Comment, entry *domain.Activity) error
	listByCardFunc func(ctx context.Context, cardID int64) ([]*domain.Comment, error)
}

func (m *mockCommentRepo) Create(ctx context.Context, c *domain.Comment, entry *domain.Activity) error {
	return m.createFunc(ctx, c, entry)
}

func (m *mockCommentRepo) ListByCard(ctx context.Context, cardID int64) ([]*domain.Comment, error) {
	return m.listByCardFunc(ctx, cardID)
}

// ---------------------------------------------------------------------------
// Mock ActivityRepository
// ---------------------------------------------------------------------------

type recordedActivity struct {
	BoardID int64
	UserID  int64
	Type    domain.ActivityType
	Details string
}

type mockActivityRepo struct {
	recordFunc      func(ctx context.Context, boardID, userID int64, kind domain.ActivityType, details string) error
	listByBoardFunc func(ctx context.Context, boardID int64, limit int) ([]*domain.Activity, error)

	mu       sync.Mutex
	recorded []recordedActivity
}

func (m *mockActivityRepo) Record(ctx context.Context, boardID, userID int64, kind domain.ActivityType, details string) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, recordedActivity{BoardID: boardID, UserID: userID, Type: kind, Details: details})
	m.mu.Unlock()

	if m.recordFunc != nil {
		return m.recordFunc(ctx, boardID, userID, kind, details)
	}
	return nil
}

func (m *mockActivityRepo) ListByBoard(ctx context.Context, boardID int64, limit int) ([]*domain.Activity, error) {
	return m.listByBoardFunc(ctx, boardID, limit)
}

func (m *mockActivityRepo) entries() []recordedActivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedActivity, len(m.recorded))
	copy(out, m.recorded)
	return out
}

// ---------------------------------------------------------------------------
// Mock Publisher
// ---------------------------------------------------------------------------

type published struct {
	CardID int64
	Event  domain.Event
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
}

func (m *mockPublisher) Publish(cardID int64, ev domain.Event) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{CardID: cardID, Event: ev})
	return 1
}

func (m *mockPublisher) published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]published, len(m.events))
	copy(out, m.events)
	return out
}
