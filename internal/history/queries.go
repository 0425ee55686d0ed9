// internal/history/queries.go
package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Querier is the set of queries on the searches table.
type Querier interface {
	InsertSearch(ctx context.Context, arg InsertSearchParams) (Search, error)
	ListRecentSearches(ctx context.Context, limit int32) ([]Search, error)
}

// Search is one row of the searches table.
type Search struct {
	ID          int64     `json:"id"`
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	PublicRepos int32     `json:"public_repos"`
	Followers   int32     `json:"followers"`
	SearchedAt  time.Time `json:"searched_at"`
}

type InsertSearchParams struct {
	Login       string
	Name        string
	PublicRepos int32
	Followers   int32
	SearchedAt  time.Time
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertSearch = `
INSERT INTO searches (login, name, public_repos, followers, searched_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, login, name, public_repos, followers, searched_at
`

func (q *Queries) InsertSearch(ctx context.Context, arg InsertSearchParams) (Search, error) {
	row := q.db.QueryRow(ctx, insertSearch, arg.Login, arg.Name, arg.PublicRepos, arg.Followers, arg.SearchedAt)
	var s Search
	err := row.Scan(&s.ID, &s.Login, &s.Name, &s.PublicRepos, &s.Followers, &s.SearchedAt)
	return s, err
}

const listRecentSearches = `
SELECT id, login, name, public_repos, followers, searched_at
FROM searches
ORDER BY searched_at DESC, id DESC
LIMIT $1
`

func (q *Queries) ListRecentSearches(ctx context.Context, limit int32) ([]Search, error) {
	rows, err := q.db.Query(ctx, listRecentSearches, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Search{}
	for rows.Next() {
		var s Search
		if err := rows.Scan(&s.ID, &s.Login, &s.Name, &s.PublicRepos, &s.Followers, &s.SearchedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
