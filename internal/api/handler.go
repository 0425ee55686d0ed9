// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/elapsed"
	"github-commit-monitor/internal/history"
	"github-commit-monitor/internal/model"
	"github-commit-monitor/internal/report"
	"github-commit-monitor/internal/search"
)

const defaultHistoryLimit = 20

// GitHub is the subset of the GitHub client the API serves from.
type GitHub interface {
	GetUser(ctx context.Context, login string) (*model.User, error)
	ListRepositories(ctx context.Context, user *model.User) ([]model.Repository, error)
	ListCommits(ctx context.Context, owner, name string) ([]model.Commit, error)
}

// Reporter builds activity reports.
type Reporter interface {
	Latest(ctx context.Context, user *model.User) ([]report.Activity, error)
}

// History lists recorded lookups.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Search, error)
}

// Deps are the dependencies of the router. History and Recorder may be nil.
type Deps struct {
	GitHub       GitHub
	Reporter     Reporter
	History      History
	Recorder     search.Recorder
	Logger       *slog.Logger
	Timeout      time.Duration
	TickInterval time.Duration
	HistoryLimit int
	Clock        func() time.Time
}

// Handler is the container for API dependencies.
type Handler struct {
	github       GitHub
	reporter     Reporter
	history      History
	recorder     search.Recorder
	logger       *slog.Logger
	tickInterval time.Duration
	historyLimit int
	now          func() time.Time
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		github:       d.GitHub,
		reporter:     d.Reporter,
		history:      d.History,
		recorder:     d.Recorder,
		logger:       d.Logger,
		tickInterval: d.TickInterval,
		historyLimit: d.HistoryLimit,
		now:          d.Clock,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.tickInterval <= 0 {
		h.tickInterval = elapsed.DefaultInterval
	}
	if h.historyLimit <= 0 {
		h.historyLimit = defaultHistoryLimit
	}
	if h.now == nil {
		h.now = time.Now
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(h.logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Get("/users/{login}", h.getUser)
			r.Get("/users/{login}/repos", h.getRepositories)
			r.Get("/users/{login}/activity", h.getActivity)
			r.Get("/repos/{owner}/{name}/commits", h.getCommits)
			r.Get("/history", h.getHistory)
		})
		// Streams run until the client goes away.
		r.Get("/repos/{owner}/{name}/elapsed", h.streamElapsed)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userResponse struct {
	*model.User
	DisplayName string `json:"display_name"`
}

// getUser looks a user up.
// GET /v1/users/{login}
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.lookupUser(r)
	if err != nil {
		h.respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, userResponse{User: user, DisplayName: user.DisplayName()})
}

// getRepositories lists a user's repositories in the order GitHub returns them.
// GET /v1/users/{login}/repos
func (h *Handler) getRepositories(w http.ResponseWriter, r *http.Request) {
	user, err := h.lookupUser(r)
	if err != nil {
		h.respondWithUpstreamError(w, r, err)
		return
	}
	repos, err := h.github.ListRepositories(r.Context(), user)
	if err != nil {
		h.respondWithUpstreamError(w, r, custom_errors.NewFetchError("repositories", err))
		return
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// getActivity reports the last commit of each of a user's repositories.
// GET /v1/users/{login}/activity
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	user, err := h.lookupUser(r)
	if err != nil {
		h.respondWithUpstreamError(w, r, err)
		return
	}
	rows, err := h.reporter.Latest(r.Context(), user)
	if err != nil {
		h.respondWithUpstreamError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

type commitsResponse struct {
	Owner      string         `json:"owner"`
	Name       string         `json:"name"`
	Commits    []model.Commit `json:"commits"`
	LastCommit *time.Time     `json:"last_commit"`
	Elapsed    string         `json:"elapsed,omitempty"`
}

// getCommits lists a repository's commits, newest first.
// GET /v1/repos/{owner}/{name}/commits
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	commits, err := h.github.ListCommits(r.Context(), owner, name)
	if err != nil {
		h.respondWithUpstreamError(w, r, custom_errors.NewFetchError("commits", err))
		return
	}

	resp := commitsResponse{Owner: owner, Name: name, Commits: commits}
	if resp.Commits == nil {
		resp.Commits = []model.Commit{}
	}
	if last, ok := model.LatestCommit(commits); ok {
		resp.LastCommit = &last
		resp.Elapsed = elapsed.Since(last, h.now())
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// streamElapsed sends the time since the last commit as server-sent events,
// one per tick, until the client disconnects.
// GET /v1/repos/{owner}/{name}/elapsed
func (h *Handler) streamElapsed(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	logger := h.logger.With("owner", owner, "repo", name, "request_id", middleware.GetReqID(r.Context()))

	commits, err := h.github.ListCommits(r.Context(), owner, name)
	if err != nil {
		h.respondWithUpstreamError(w, r, custom_errors.NewFetchError("commits", err))
		return
	}
	last, ok := model.LatestCommit(commits)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Repository has no commits")
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticks := make(chan string, 1)
	t := elapsed.NewTicker(last, elapsed.WithInterval(h.tickInterval), elapsed.WithClock(h.now))
	first := t.Start(func(s string) {
		select {
		case ticks <- s:
		default:
		}
	})
	defer t.Stop()
	logger.Debug("Elapsed stream opened")

	send := func(s string) error {
		if _, err := fmt.Fprintf(w, "event: elapsed\ndata: %s\n\n", s); err != nil {
			return err
		}
		return rc.Flush()
	}
	if err := send(first); err != nil {
		logger.Debug("Elapsed stream write failed", "error", err)
		return
	}
	for {
		select {
		case <-r.Context().Done():
			logger.Debug("Elapsed stream closed by client")
			return
		case s := <-ticks:
			if err := send(s); err != nil {
				logger.Debug("Elapsed stream write failed", "error", err)
				return
			}
		}
	}
}

// getHistory lists recent lookups.
// GET /v1/history?limit=N
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusNotFound, "Search history is disabled")
		return
	}

	limit := h.historyLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > history.MaxLimit {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
			return
		}
		limit = n
	}

	rows, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list search history", "error", err, "request_id", middleware.GetReqID(r.Context()))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

// lookupUser runs a search for the {login} path parameter.
func (h *Handler) lookupUser(r *http.Request) (*model.User, error) {
	var opts []search.Option
	if h.recorder != nil {
		opts = append(opts, search.WithRecorder(h.recorder))
	}
	s := search.New(h.github, h.logger, opts...)
	if err := s.Search(r.Context(), chi.URLParam(r, "login")); err != nil {
		return nil, err
	}
	return s.State().Result, nil
}

// respondWithUpstreamError maps a lookup failure onto an HTTP status.
func (h *Handler) respondWithUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *custom_errors.ValidationError
	var nf *custom_errors.NotFoundError
	code := custom_errors.StatusCode(err)

	status := http.StatusBadGateway
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case custom_errors.IsRateLimited(err):
		status = http.StatusTooManyRequests
	case code == http.StatusNotFound, errors.As(err, &nf) && code == 0:
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	h.logger.Warn("Upstream request failed",
		"path", r.URL.Path,
		"status", status,
		"upstream_status", code,
		"error", custom_errors.Detail(err),
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondWithError(w, status, err.Error())
}
