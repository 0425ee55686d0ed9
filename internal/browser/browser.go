// Package browser holds the repository and commit browsing session for one
// user: the repository list, the selected repository's commits, and the
// live "time since last commit" counter.
//
// A Browser owns its state and its ticker. Network calls run without the
// lock held; a response is applied only if no newer request for the same
// slot was issued in the meantime.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/elapsed"
	"github-commit-monitor/internal/model"
)

// ErrClosed is returned by Select after Close.
var ErrClosed = errors.New("browser: session closed")

// Client is the subset of the GitHub client the browser needs.
type Client interface {
	ListRepositories(ctx context.Context, user *model.User) ([]model.Repository, error)
	ListCommits(ctx context.Context, owner, name string) ([]model.Commit, error)
}

// Snapshot is a copy of the browser state.
type Snapshot struct {
	SessionID      string
	User           model.User
	Repositories   []model.Repository
	LoadingRepos   bool
	SelectedRepo   string
	Commits        []model.Commit
	LoadingCommits bool
	// LastCommit is the zero time when no commit timestamp is known.
	LastCommit time.Time
	Elapsed    string
	Err        error
}

// HasLastCommit reports whether a last-commit timestamp is set.
func (s Snapshot) HasLastCommit() bool {
	return !s.LastCommit.IsZero()
}

// Browser is the browsing session for one user.
type Browser struct {
	id       string
	client   Client
	user     model.User
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	loadOnce sync.Once
	updates  chan Snapshot

	mu        sync.Mutex
	state     Snapshot
	selectSeq uint64
	ticker    *elapsed.Ticker
	closed    bool
}

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// WithTickInterval overrides the elapsed-time refresh period.
func WithTickInterval(d time.Duration) Option {
	return func(b *Browser) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithClock replaces time.Now for elapsed-time computation.
func WithClock(now func() time.Time) Option {
	return func(b *Browser) { b.now = now }
}

// New creates a browsing session for user. The repository list starts in
// the loading state; call LoadRepositories to fetch it.
func New(client Client, user *model.User, opts ...Option) *Browser {
	b := &Browser{
		id:       uuid.NewString(),
		client:   client,
		user:     *user,
		logger:   slog.Default(),
		interval: elapsed.DefaultInterval,
		now:      time.Now,
		updates:  make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("session", b.id, "login", user.Login)
	b.state = Snapshot{SessionID: b.id, User: *user, LoadingRepos: true}
	return b
}

// ID returns the session identifier.
func (b *Browser) ID() string {
	return b.id
}

// User returns the user this session browses.
func (b *Browser) User() model.User {
	return b.user
}

// Updates delivers the newest snapshot after each state change. Only the
// latest unread snapshot is kept. The channel is closed by Close.
func (b *Browser) Updates() <-chan Snapshot {
	return b.updates
}

// Snapshot returns a copy of the current state.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// LoadRepositories fetches the user's repository list. Only the first call
// performs the request; later calls return immediately.
func (b *Browser) LoadRepositories(ctx context.Context) error {
	var err error
	b.loadOnce.Do(func() {
		err = b.loadRepositories(ctx)
	})
	return err
}

func (b *Browser) loadRepositories(ctx context.Context) error {
	b.logger.Debug("Loading repositories")
	repos, err := b.client.ListRepositories(ctx, &b.user)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.state.LoadingRepos = false
	if err != nil {
		ferr := custom_errors.NewFetchError("repositories", err)
		b.state.Err = ferr
		b.logger.Warn("Failed to load repositories", "status", custom_errors.StatusCode(err), "error", err)
		b.publishLocked()
		return ferr
	}
	b.state.Repositories = repos
	b.logger.Info("Repositories loaded", "count", len(repos))
	b.publishLocked()
	return nil
}

// Select shows the commits of the named repository. The previous commit
// list, last-commit date, error and ticker are cleared before the request.
// If another Select starts before the response arrives, the response is
// discarded and ErrSuperseded is returned.
func (b *Browser) Select(ctx context.Context, name string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.selectSeq++
	seq := b.selectSeq
	b.state.SelectedRepo = name
	b.state.Commits = nil
	b.state.LastCommit = time.Time{}
	b.state.Elapsed = ""
	b.state.LoadingCommits = true
	b.state.Err = nil
	old := b.detachTickerLocked()
	b.publishLocked()
	b.mu.Unlock()
	stopTicker(old)

	logger := b.logger.With("repo", name, "seq", seq)
	logger.Debug("Loading commits")
	commits, err := b.client.ListCommits(ctx, b.user.Login, name)

	b.mu.Lock()
	if b.closed || seq != b.selectSeq {
		b.mu.Unlock()
		logger.Debug("Discarding superseded commits response")
		return custom_errors.ErrSuperseded
	}
	b.state.LoadingCommits = false
	if err != nil {
		ferr := custom_errors.NewFetchError("commits", err)
		b.state.Err = ferr
		b.publishLocked()
		b.mu.Unlock()
		logger.Warn("Failed to load commits", "status", custom_errors.StatusCode(err), "error", err)
		return ferr
	}

	b.state.Commits = commits
	if last, ok := model.LatestCommit(commits); ok {
		b.state.LastCommit = last
		b.startTickerLocked(last)
	}
	b.publishLocked()
	b.mu.Unlock()

	logger.Info("Commits loaded", "count", len(commits))
	return nil
}

// Ticking reports whether an elapsed-time ticker is running.
func (b *Browser) Ticking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ticker != nil
}

// Close tears the session down: the ticker is stopped, late responses are
// ignored and the Updates channel is closed. Close is idempotent.
func (b *Browser) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	old := b.detachTickerLocked()
	close(b.updates)
	b.mu.Unlock()

	stopTicker(old)
	b.logger.Debug("Browser closed")
}

// startTickerLocked starts a ticker for last. The first value is computed
// synchronously so the snapshot published with the commits already carries it.
func (b *Browser) startTickerLocked(last time.Time) {
	t := elapsed.NewTicker(last, elapsed.WithInterval(b.interval), elapsed.WithClock(b.now))
	b.ticker = t
	b.state.Elapsed = t.Start(func(s string) { b.onTick(t, s) })
}

func (b *Browser) onTick(t *elapsed.Ticker, s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.ticker != t {
		return
	}
	b.state.Elapsed = s
	b.publishLocked()
}

// detachTickerLocked unhooks the current ticker. The caller stops it after
// releasing the lock, since a tick in flight needs the lock to finish.
func (b *Browser) detachTickerLocked() *elapsed.Ticker {
	t := b.ticker
	b.ticker = nil
	return t
}

func stopTicker(t *elapsed.Ticker) {
	if t != nil {
		t.Stop()
	}
}

func (b *Browser) snapshotLocked() Snapshot {
	s := b.state
	s.Repositories = append([]model.Repository(nil), b.state.Repositories...)
	s.Commits = append([]model.Commit(nil), b.state.Commits...)
	return s
}

// publishLocked replaces any unread snapshot with the current one.
func (b *Browser) publishLocked() {
	if b.closed {
		return
	}
	s := b.snapshotLocked()
	select {
	case b.updates <- s:
	default:
		select {
		case <-b.updates:
		default:
		}
		b.updates <- s
	}
}
