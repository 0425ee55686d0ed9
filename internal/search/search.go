// Package search implements the user lookup: one text query in, one user
// profile or one error message out.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/model"
)

// Fetcher looks up a GitHub user by login.
type Fetcher interface {
	GetUser(ctx context.Context, login string) (*model.User, error)
}

// Recorder is told about every successful lookup.
type Recorder interface {
	Record(ctx context.Context, user *model.User) error
}

// State is the search result slot. At most one of Result and Err is set.
type State struct {
	Query   string
	Result  *model.User
	Err     error
	Loading bool
	// Seq identifies the submit that produced this state.
	Seq uint64
}

// Searcher owns the search state. Each call to Search supersedes the
// previous one; responses to superseded searches are dropped.
type Searcher struct {
	fetcher  Fetcher
	recorder Recorder
	logger   *slog.Logger

	mu    sync.Mutex
	seq   uint64
	state State
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithRecorder records successful lookups.
func WithRecorder(r Recorder) Option {
	return func(s *Searcher) { s.recorder = r }
}

// New creates a Searcher.
func New(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Searcher {
	s := &Searcher{fetcher: fetcher, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search clears the previous result and error, then looks up query. Blank
// input fails with a ValidationError without a network call. Any failed
// response becomes a NotFoundError; transport failures become a FetchError.
// If a newer Search starts before this one's response arrives, the response
// is discarded and ErrSuperseded is returned.
func (s *Searcher) Search(ctx context.Context, query string) error {
	login := strings.TrimSpace(query)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state = State{Query: query, Seq: seq}
	if login == "" {
		err := &custom_errors.ValidationError{Field: "login", Message: custom_errors.MsgEmptyQuery}
		s.state.Err = err
		s.mu.Unlock()
		return err
	}
	s.state.Loading = true
	s.mu.Unlock()

	logger := s.logger.With("login", login, "seq", seq)
	logger.Debug("Looking up user")

	user, err := s.fetcher.GetUser(ctx, login)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		logger.Debug("Discarding superseded user lookup")
		return custom_errors.ErrSuperseded
	}
	s.state.Loading = false
	if err != nil {
		err = classify(login, err)
		s.state.Err = err
		s.mu.Unlock()
		logger.Info("User lookup failed", "status", custom_errors.StatusCode(err),
			"rate_limited", custom_errors.IsRateLimited(err), "error", custom_errors.Detail(err))
		return err
	}
	s.state.Result = user
	s.mu.Unlock()

	logger.Info("User found", "public_repos", user.PublicRepos)
	if s.recorder != nil {
		if rerr := s.recorder.Record(ctx, user); rerr != nil {
			logger.Warn("Failed to record search", "error", rerr)
		}
	}
	return nil
}

// State returns a copy of the current state.
func (s *Searcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// classify maps a lookup failure onto the error taxonomy. Anything that got
// a response from GitHub, including an unusable payload, reads as
// "user not found".
func classify(login string, err error) error {
	var se *custom_errors.StatusError
	var sch *custom_errors.SchemaError
	if errors.As(err, &se) || errors.As(err, &sch) {
		return &custom_errors.NotFoundError{Login: login, Err: err}
	}
	return custom_errors.NewFetchError("user", err)
}
