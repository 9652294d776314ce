package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// Create inserts c and entry in one transaction and fills both ids.
func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment, entry *domain.Activity) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO comments (card_id, user_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			c.CardID, c.UserID, c.Content,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		return insertActivity(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("commentRepo.Create: %w", err)
	}

	return nil
}

func (r *CommentRepo) ListByCard(ctx context.Context, cardID int64) ([]*domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, card_id, user_id, content, created_at
		 FROM comments WHERE card_id = $1
		 ORDER BY created_at, id
		 LIMIT 500`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListByCard: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.CardID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("commentRepo.ListByCard: scan: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListByCard: rows: %w", err)
	}

	return comments, nil
}
