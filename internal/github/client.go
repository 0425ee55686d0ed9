// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/model"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com/"

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// WithBaseURL points the client at another API root (GitHub Enterprise, test servers).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient replaces the underlying transport. The token, if any, is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// NewClient creates and configures a new Client instance.
// An empty token leaves requests unauthenticated, subject to the anonymous rate limit.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := options{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		if token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
			hc = oauth2.NewClient(context.Background(), ts)
		} else {
			hc = &http.Client{}
		}
		hc.Timeout = o.timeout
	}

	gh := github.NewClient(hc)
	if o.baseURL != "" && o.baseURL != DefaultBaseURL {
		base, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", o.baseURL, err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		gh.BaseURL = base
	}

	return &Client{gh: gh, logger: logger}, nil
}

// GetUser fetches a user profile by login.
func (c *Client) GetUser(ctx context.Context, login string) (*model.User, error) {
	c.logger.Debug("Fetching user", "login", login)

	u, _, err := c.gh.Users.Get(ctx, url.PathEscape(login))
	if err != nil {
		return nil, translateError(err)
	}

	user := toInternalUser(u)
	if err := user.Validate(); err != nil {
		return nil, &custom_errors.SchemaError{Err: err}
	}
	return user, nil
}

// ListRepositories fetches the first page of the user's repositories from the
// repos_url returned by the profile lookup.
func (c *Client) ListRepositories(ctx context.Context, user *model.User) ([]model.Repository, error) {
	c.logger.Debug("Fetching repositories", "login", user.Login, "url", user.ReposURL)

	req, err := c.gh.NewRequest(http.MethodGet, user.ReposURL, nil)
	if err != nil {
		return nil, err
	}

	var repos []*github.Repository
	if _, err := c.gh.Do(ctx, req, &repos); err != nil {
		return nil, translateError(err)
	}

	result := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		repo := toInternalRepository(r)
		if err := repo.Validate(); err != nil {
			c.logger.Warn("Skipping invalid repository payload", "login", user.Login, "id", repo.ID, "error", err)
			continue
		}
		result = append(result, repo)
	}
	return result, nil
}

// ListCommits fetches the default first page of commits for a repository,
// sorted newest first. An empty repository yields an empty list.
func (c *Client) ListCommits(ctx context.Context, owner, name string) ([]model.Commit, error) {
	c.logger.Debug("Fetching commits", "owner", owner, "repo", name)

	commits, _, err := c.gh.Repositories.ListCommits(ctx, url.PathEscape(owner), url.PathEscape(name), nil)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusConflict {
			c.logger.Debug("Repository is empty", "owner", owner, "repo", name)
			return []model.Commit{}, nil
		}
		return nil, translateError(err)
	}

	result := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, toInternalCommit(commit))
	}
	model.SortNewestFirst(result)
	return result, nil
}

// translateError turns go-github response errors into a StatusError.
// Transport errors are returned unchanged.
func translateError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &custom_errors.StatusError{StatusCode: statusOf(rateErr.Response, http.StatusForbidden), RateLimited: true, Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &custom_errors.StatusError{StatusCode: statusOf(abuseErr.Response, http.StatusForbidden), RateLimited: true, Err: err}
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		code := statusOf(ghErr.Response, 0)
		return &custom_errors.StatusError{StatusCode: code, RateLimited: code == http.StatusTooManyRequests, Err: err}
	}
	return err
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}

// toInternalUser translates a github.User object to our internal model.User.
func toInternalUser(u *github.User) *model.User {
	return &model.User{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		AvatarURL:   u.GetAvatarURL(),
		PublicRepos: u.GetPublicRepos(),
		Followers:   u.GetFollowers(),
		ReposURL:    u.GetReposURL(),
	}
}

// toInternalRepository translates a github.Repository object to our internal model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		ID:          r.GetID(),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		Description: r.Description,
		URL:         r.GetHTMLURL(),
		Language:    r.Language,
		StarsCount:  r.GetStargazersCount(),
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// toInternalCommit translates a github.RepositoryCommit object to our internal model.Commit.
func toInternalCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:         c.GetSHA(),
		AuthorName:  c.GetCommit().GetAuthor().GetName(),
		AuthorEmail: c.GetCommit().GetAuthor().GetEmail(),
		Message:     c.GetCommit().GetMessage(),
		URL:         c.GetHTMLURL(),
		AuthorDate:  c.GetCommit().GetAuthor().GetDate().Time,
	}
}
