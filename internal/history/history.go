// internal/history/history.go
package history

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-commit-monitor/internal/model"
)

// MaxLimit caps how many rows Recent returns.
const MaxLimit = 100

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrInvalidLimit is returned by Recent for a limit outside 1..MaxLimit.
var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxLimit)

// History records successful user lookups.
type History struct {
	q      Querier
	logger *slog.Logger
	now    func() time.Time
}

// NewHistory creates a History on top of q.
func NewHistory(q Querier, logger *slog.Logger) *History {
	return &History{q: q, logger: logger, now: time.Now}
}

// Record stores a successful lookup of user.
func (h *History) Record(ctx context.Context, user *model.User) error {
	s, err := h.q.InsertSearch(ctx, InsertSearchParams{
		Login:       user.Login,
		Name:        user.Name,
		PublicRepos: int32(user.PublicRepos),
		Followers:   int32(user.Followers),
		SearchedAt:  h.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("recording search for %s: %w", user.Login, err)
	}
	h.logger.Debug("Search recorded", "login", s.Login, "id", s.ID)
	return nil
}

// Recent lists the latest lookups, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Search, error) {
	if limit <= 0 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}
	return h.q.ListRecentSearches(ctx, int32(limit))
}

// Open connects to Postgres, applies pending migrations and returns the pool.
func Open(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := Migrate(dbURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded migrations.
func Migrate(dbURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
