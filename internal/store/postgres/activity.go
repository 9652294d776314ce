package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) Record(ctx context.Context, boardID, userID int64, kind domain.ActivityType, details string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activities (board_id, user_id, activity_type, details)
		 VALUES ($1, $2, $3, $4)`,
		boardID, userID, kind, details,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.Record: %w", err)
	}

	return nil
}

// ListByBoard returns the newest entries first.
func (r *ActivityRepo) ListByBoard(ctx context.Context, boardID int64, limit int) ([]*domain.Activity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, user_id, activity_type, details, created_at
		 FROM activities WHERE board_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		boardID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByBoard: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows, "activityRepo.ListByBoard")
}

func scanActivities(rows pgx.Rows, caller string) ([]*domain.Activity, error) {
	var entries []*domain.Activity
	for rows.Next() {
		var e domain.Activity
		if err := rows.Scan(&e.ID, &e.BoardID, &e.UserID, &e.Type, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return entries, nil
}
