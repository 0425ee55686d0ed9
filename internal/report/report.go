// internal/report/report.go
package report

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/elapsed"
	"github-commit-monitor/internal/model"
)

// DefaultConcurrency is the number of repositories queried in parallel.
const DefaultConcurrency = 5

// Client is the subset of the GitHub client the reporter needs.
type Client interface {
	ListRepositories(ctx context.Context, user *model.User) ([]model.Repository, error)
	ListCommits(ctx context.Context, owner, name string) ([]model.Commit, error)
}

// Activity is the last-commit summary of one repository.
type Activity struct {
	Repository model.Repository `json:"repository"`
	LastCommit time.Time        `json:"last_commit"`
	HasCommits bool             `json:"has_commits"`
	Elapsed    string           `json:"elapsed,omitempty"`
	Err        error            `json:"-"`
	Error      string           `json:"error,omitempty"`
}

// Reporter builds commit activity reports.
type Reporter struct {
	client      Client
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewReporter creates a Reporter. A concurrency below 1 uses DefaultConcurrency.
func NewReporter(client Client, logger *slog.Logger, concurrency int) *Reporter {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Reporter{client: client, logger: logger, concurrency: concurrency, now: time.Now}
}

// Latest returns the last commit of every repository of user, most recent
// first. Repositories without commits come last. A failing repository is
// reported in its row; only a failing repository list fails the report.
func (r *Reporter) Latest(ctx context.Context, user *model.User) ([]Activity, error) {
	logger := r.logger.With("login", user.Login)
	repos, err := r.client.ListRepositories(ctx, user)
	if err != nil {
		return nil, custom_errors.NewFetchError("repositories", err)
	}
	logger.Info("Building activity report", "repositories", len(repos), "concurrency", r.concurrency)

	now := r.now()
	rows := make([]Activity, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, repo := range repos {
		g.Go(func() error {
			rows[i] = Activity{Repository: repo}
			if gctx.Err() != nil {
				rows[i].Err = gctx.Err()
				rows[i].Error = gctx.Err().Error()
				return nil
			}
			owner := repo.Owner
			if owner == "" {
				owner = user.Login
			}
			commits, err := r.client.ListCommits(gctx, owner, repo.Name)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("Failed to fetch commits", "repo", repo.Name, "status", custom_errors.StatusCode(err), "error", err)
				}
				ferr := custom_errors.NewFetchError("commits", err)
				rows[i].Err = ferr
				rows[i].Error = ferr.Error()
				return nil
			}
			if last, ok := model.LatestCommit(commits); ok {
				rows[i].LastCommit = last
				rows[i].HasCommits = true
				rows[i].Elapsed = elapsed.Since(last, now)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].HasCommits != rows[b].HasCommits {
			return rows[a].HasCommits
		}
		return rows[a].LastCommit.After(rows[b].LastCommit)
	})
	logger.Info("Activity report finished")
	return rows, nil
}
