package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/taskboard/internal/domain"
)

const selectCard = `SELECT c.id, l.board_id, c.list_id, c.title, c.description, c.due_date, c.created_at, c.updated_at
		 FROM cards c JOIN lists l ON l.id = c.list_id`

type CardRepo struct {
	pool *pgxpool.Pool
}

func NewCardRepo(pool *pgxpool.Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

// Move reassigns the card to listID and inserts entry in the same
// transaction. The target list must belong to the card's board; otherwise
// ErrNotFound is returned and nothing is written.
func (r *CardRepo) Move(ctx context.Context, cardID, listID int64, entry *domain.Activity) (*domain.Card, error) {
	var card *domain.Card

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE cards c SET list_id = $1, updated_at = now()
			 FROM lists src, lists dst
			 WHERE c.id = $2 AND src.id = c.list_id AND dst.id = $1 AND dst.board_id = src.board_id`,
			listID, cardID,
		)
		if err != nil {
			return fmt.Errorf("update card: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		card, err = scanCard(tx.QueryRow(ctx, selectCard+` WHERE c.id = $1`, cardID))
		if err != nil {
			return fmt.Errorf("reload card: %w", err)
		}

		entry.BoardID = card.BoardID
		return insertActivity(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("cardRepo.Move: %w", err)
	}

	return card, nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	if err := row.Scan(
		&c.ID, &c.BoardID, &c.ListID, &c.Title, &c.Description,
		&c.DueDate, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
