package access_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/access"
	"github.com/gosuda/taskboard/internal/domain"
)

type mockMemberships struct {
	getFunc func(ctx context.Context, boardID, userID int64) (*domain.Membership, error)
	calls   atomic.Int32
}

func (m *mockMemberships) Get(ctx context.Context, boardID, userID int64) (*domain.Membership, error) {
	m.calls.Add(1)
	return m.getFunc(ctx, boardID, userID)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	board := &domain.Board{ID: 10, OwnerID: 1}

	tests := []struct {
		name       string
		actor      int64
		board      *domain.Board
		membership *domain.Membership
		want       domain.PermissionLevel
	}{
		{name: "owner without row", actor: 1, board: board, want: domain.PermissionAdmin},
		{name: "owner with view row stays admin", actor: 1, board: board, membership: &domain.Membership{BoardID: 10, UserID: 1, Level: domain.PermissionView}, want: domain.PermissionAdmin},
		{name: "no membership", actor: 2, board: board, want: domain.PermissionNone},
		{name: "view member", actor: 2, board: board, membership: &domain.Membership{BoardID: 10, UserID: 2, Level: domain.PermissionView}, want: domain.PermissionView},
		{name: "edit member", actor: 2, board: board, membership: &domain.Membership{BoardID: 10, UserID: 2, Level: domain.PermissionEdit}, want: domain.PermissionEdit},
		{name: "admin member", actor: 2, board: board, membership: &domain.Membership{BoardID: 10, UserID: 2, Level: domain.PermissionAdmin}, want: domain.PermissionAdmin},
		{name: "row for another board", actor: 2, board: board, membership: &domain.Membership{BoardID: 11, UserID: 2, Level: domain.PermissionAdmin}, want: domain.PermissionNone},
		{name: "row for another user", actor: 2, board: board, membership: &domain.Membership{BoardID: 10, UserID: 3, Level: domain.PermissionEdit}, want: domain.PermissionNone},
		{name: "corrupt level", actor: 2, board: board, membership: &domain.Membership{BoardID: 10, UserID: 2, Level: "superuser"}, want: domain.PermissionNone},
		{name: "nil board", actor: 1, board: nil, want: domain.PermissionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := access.Evaluate(tt.actor, tt.board, tt.membership)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	board := &domain.Board{ID: 4, OwnerID: 9}
	m := &domain.Membership{BoardID: 4, UserID: 5, Level: domain.PermissionEdit}

	first := access.Evaluate(5, board, m)
	for range 10 {
		assert.Equal(t, first, access.Evaluate(5, board, m))
	}
	assert.Equal(t, domain.PermissionEdit, m.Level, "Evaluate must not mutate its inputs")
}

func TestChecker_Level(t *testing.T) {
	t.Parallel()

	board := &domain.Board{ID: 10, OwnerID: 1}

	t.Run("owner skips lookup", func(t *testing.T) {
		t.Parallel()

		store := &mockMemberships{}
		level, err := access.NewChecker(store).Level(context.Background(), 1, board)
		require.NoError(t, err)
		assert.Equal(t, domain.PermissionAdmin, level)
		assert.Zero(t, store.calls.Load())
	})

	t.Run("not found is none", func(t *testing.T) {
		t.Parallel()

		store := &mockMemberships{getFunc: func(_ context.Context, _, _ int64) (*domain.Membership, error) {
			return nil, domain.ErrNotFound
		}}
		level, err := access.NewChecker(store).Level(context.Background(), 2, board)
		require.NoError(t, err)
		assert.Equal(t, domain.PermissionNone, level)
	})

	t.Run("stored level", func(t *testing.T) {
		t.Parallel()

		store := &mockMemberships{getFunc: func(_ context.Context, boardID, userID int64) (*domain.Membership, error) {
			assert.Equal(t, int64(10), boardID)
			assert.Equal(t, int64(2), userID)
			return &domain.Membership{BoardID: boardID, UserID: userID, Level: domain.PermissionEdit}, nil
		}}
		level, err := access.NewChecker(store).Level(context.Background(), 2, board)
		require.NoError(t, err)
		assert.Equal(t, domain.PermissionEdit, level)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection reset")
		store := &mockMemberships{getFunc: func(_ context.Context, _, _ int64) (*domain.Membership, error) {
			return nil, boom
		}}
		_, err := access.NewChecker(store).Level(context.Background(), 2, board)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}

func TestChecker_Require(t *testing.T) {
	t.Parallel()

	board := &domain.Board{ID: 10, OwnerID: 1}
	viewer := &mockMemberships{getFunc: func(_ context.Context, boardID, userID int64) (*domain.Membership, error) {
		return &domain.Membership{BoardID: boardID, UserID: userID, Level: domain.PermissionView}, nil
	}}
	checker := access.NewChecker(viewer)

	tests := []struct {
		name    string
		min     domain.PermissionLevel
		wantErr bool
	}{
		{name: "view allowed", min: domain.PermissionView},
		{name: "edit forbidden", min: domain.PermissionEdit, wantErr: true},
		{name: "admin forbidden", min: domain.PermissionAdmin, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			level, err := checker.Require(context.Background(), 2, board, tt.min)
			assert.Equal(t, domain.PermissionView, level)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrForbidden)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("none never satisfies a none minimum", func(t *testing.T) {
		t.Parallel()

		stranger := access.NewChecker(&mockMemberships{getFunc: func(_ context.Context, _, _ int64) (*domain.Membership, error) {
			return nil, domain.ErrNotFound
		}})
		_, err := stranger.Require(context.Background(), 3, board, domain.PermissionNone)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}
