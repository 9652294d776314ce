package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

type MembershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *MembershipRepo {
	return &MembershipRepo{pool: pool}
}

func (r *MembershipRepo) Get(ctx context.Context, boardID, userID int64) (*domain.Membership, error) {
	var m domain.Membership

	err := r.pool.QueryRow(ctx,
		`SELECT board_id, user_id, permission_level, created_at
		 FROM board_members WHERE board_id = $1 AND user_id = $2`,
		boardID, userID,
	).Scan(&m.BoardID, &m.UserID, &m.Level, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("membershipRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("membershipRepo.Get: %w", err)
	}

	return &m, nil
}

func (r *MembershipRepo) ListByBoard(ctx context.Context, boardID int64) ([]*domain.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT board_id, user_id, permission_level, created_at
		 FROM board_members WHERE board_id = $1
		 ORDER BY created_at, user_id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("membershipRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	var members []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.BoardID, &m.UserID, &m.Level, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("membershipRepo.ListByBoard: scan: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("membershipRepo.ListByBoard: rows: %w", err)
	}

	return members, nil
}

func (r *MembershipRepo) Create(ctx context.Context, m *domain.Membership) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO board_members (board_id, user_id, permission_level)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		m.BoardID, m.UserID, m.Level,
	).Scan(&m.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("membershipRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("membershipRepo.Create: %w", err)
	}

	return nil
}

func (r *MembershipRepo) UpdateLevel(ctx context.Context, boardID, userID int64, level domain.PermissionLevel) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE board_members SET permission_level = $1 WHERE board_id = $2 AND user_id = $3`,
		level, boardID, userID,
	)
	if err != nil {
		return fmt.Errorf("membershipRepo.UpdateLevel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("membershipRepo.UpdateLevel: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MembershipRepo) Delete(ctx context.Context, boardID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM board_members WHERE board_id = $1 AND user_id = $2`,
		boardID, userID,
	)
	if err != nil {
		return fmt.Errorf("membershipRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("membershipRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
