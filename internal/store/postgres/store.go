package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type Store struct {
	pool        *pgxpool.Pool
	users       *UserRepo
	boards      *BoardRepo
	cards       *CardRepo
	memberships *MembershipRepo
	comments    *CommentRepo
	activities  *ActivityRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		users:       NewUserRepo(pool),
		boards:      NewBoardRepo(pool),
		cards:       NewCardRepo(pool),
		memberships: NewMembershipRepo(pool),
		comments:    NewCommentRepo(pool),
		activities:  NewActivityRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Users() domain.UserRepository             { return s.users }
func (s *Store) Boards() domain.BoardRepository           { return s.boards }
func (s *Store) Cards() domain.CardRepository             { return s.cards }
func (s *Store) Memberships() domain.MembershipRepository { return s.memberships }
func (s *Store) Comments() domain.CommentRepository       { return s.comments }
func (s *Store) Activities() domain.ActivityRepository    { return s.activities }

// Migrate applies the embedded migrations that have not run yet, each in its
// own transaction, in file name order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id         TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("postgres.Migrate: create schema_migrations: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return fmt.Errorf("postgres.Migrate: %w", err)
	}

	for _, name := range names {
		id := strings.TrimSuffix(name, ".sql")

		var applied bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE id = $1)`, id,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("postgres.Migrate: check %s: %w", id, err)
		}
		if applied {
			continue
		}

		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("postgres.Migrate: read %s: %w", id, err)
		}

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, string(body)); execErr != nil {
				return fmt.Errorf("apply: %w", execErr)
			}
			if _, execErr := tx.Exec(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, id); execErr != nil {
				return fmt.Errorf("record: %w", execErr)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("postgres.Migrate: %s: %w", id, err)
		}

		log.Info().Str("migration", id).Msg("postgres: migration applied")
	}

	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// insertActivity writes entry inside tx and fills its id and timestamp.
func insertActivity(ctx context.Context, tx pgx.Tx, entry *domain.Activity) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO activities (board_id, user_id, activity_type, details)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		entry.BoardID, entry.UserID, entry.Type, entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
