package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-commit-monitor/internal/config"
	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/header"
	"github-commit-monitor/internal/model"
	"github-commit-monitor/internal/report"
)

func newFakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"login":"octocat","name":"","public_repos":2,"followers":42,"repos_url":"%s/users/octocat/repos"}`, srv.URL)
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"name":"hello-world","owner":{"login":"octocat"},"language":"Go","description":"My first repo"},{"id":2,"name":"empty","owner":{"login":"octocat"}}]`)
	})
	mux.HandleFunc("/repos/octocat/hello-world/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"sha":"abc","commit":{"author":{"name":"tester","date":"2024-01-02T12:00:00Z"},"message":"fix: a bug\n\nlong body"}}]`)
	})
	mux.HandleFunc("/repos/octocat/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Git Repository is empty."}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()
	var out, errw bytes.Buffer
	c := New(&out, &errw)
	c.loadConfig = func() (*config.Config, error) {
		return &config.Config{
			LogLevel:          "debug",
			LogFormat:         "text",
			GithubAPIURL:      apiURL + "/",
			RequestTimeout:    5 * time.Second,
			TickInterval:      10 * time.Millisecond,
			HistoryLimit:      20,
			ReportConcurrency: 2,
		}, nil
	}
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errw)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserCommand(t *testing.T) {
	srv := newFakeGitHub(t)

	out, err := runCLI(t, srv.URL, "user", "octocat")

	require.NoError(t, err)
	assert.Contains(t, out, model.DefaultDisplayName)
	assert.Contains(t, out, "octocat")
	assert.Contains(t, out, "42")
}

func TestUserCommand_NotFound(t *testing.T) {
	srv := newFakeGitHub(t)

	_, err := runCLI(t, srv.URL, "user", "ghost")

	var nf *custom_errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, custom_errors.MsgUserNotFound, err.Error())
	assert.Equal(t, http.StatusNotFound, custom_errors.StatusCode(err))
}

func TestReposCommand(t *testing.T) {
	srv := newFakeGitHub(t)

	out, err := runCLI(t, srv.URL, "repos", "octocat")

	require.NoError(t, err)
	assert.Contains(t, out, "hello-world")
	assert.Contains(t, out, "My first repo")
	assert.Contains(t, out, "empty")
}

func TestCommitsCommand(t *testing.T) {
	srv := newFakeGitHub(t)

	t.Run("with commits", func(t *testing.T) {
		out, err := runCLI(t, srv.URL, "commits", "octocat/hello-world")

		require.NoError(t, err)
		assert.Contains(t, out, "fix: a bug")
		assert.NotContains(t, out, "long body")
		assert.Contains(t, out, "Author: tester")
		assert.Contains(t, out, "Elapsed")
	})

	t.Run("empty repository", func(t *testing.T) {
		out, err := runCLI(t, srv.URL, "commits", "octocat/empty")

		require.NoError(t, err)
		assert.Contains(t, out, "No commits")
	})

	t.Run("bad reference", func(t *testing.T) {
		_, err := runCLI(t, srv.URL, "commits", "octocat")

		var ref *custom_errors.ErrInvalidRepoFormat
		assert.ErrorAs(t, err, &ref)
	})
}

func TestWatchCommand_Interrupted(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, &out)
	c.cfg = &config.Config{TickInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	last := time.Now().Add(-90061 * time.Second)

	err := c.watch(ctx, last)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, out.String(), "1d 1h 1m")
}

func TestLatestCommand(t *testing.T) {
	srv := newFakeGitHub(t)

	out, err := runCLI(t, srv.URL, "latest", "octocat")

	require.NoError(t, err)
	assert.Contains(t, out, "hello-world")
	assert.Contains(t, out, "no commits")
}

func TestRenderActivity(t *testing.T) {
	rows := []report.Activity{
		{Repository: model.Repository{Name: "fresh"}, HasCommits: true, LastCommit: time.Now(), Elapsed: "0d 0h 0m 5s"},
		{Repository: model.Repository{Name: "broken"}, Err: errors.New("x"), Error: custom_errors.MsgCommitsFailed},
	}

	out := renderActivity(rows)

	assert.Contains(t, out, "Repository")
	assert.Contains(t, out, "0d 0h 0m 5s")
	assert.Contains(t, out, custom_errors.MsgCommitsFailed)
}

func TestHistoryCommand_Disabled(t *testing.T) {
	srv := newFakeGitHub(t)

	_, err := runCLI(t, srv.URL, "history")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
}

func TestParseRepoRef(t *testing.T) {
	owner, name, err := parseRepoRef(" octocat/hello-world ")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", name)

	for _, bad := range []string{"", "octocat", "/repo", "owner/", "a/b/c"} {
		_, _, err := parseRepoRef(bad)
		var ref *custom_errors.ErrInvalidRepoFormat
		assert.ErrorAs(t, err, &ref, bad)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   slog.Level
		logFunc func(*slog.Logger)
		wantLog bool
	}{
		{"info at info level", "text", slog.LevelInfo, func(l *slog.Logger) { l.Info("test") }, true},
		{"debug at info level", "text", slog.LevelInfo, func(l *slog.Logger) { l.Debug("test") }, false},
		{"debug at debug level", "text", slog.LevelDebug, func(l *slog.Logger) { l.Debug("test") }, true},
		{"json", "json", slog.LevelInfo, func(l *slog.Logger) { l.Info("test") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.format, tt.level))
			assert.Equal(t, tt.wantLog, buf.Len() > 0)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "json", slog.LevelInfo).Info("hello", "login", "octocat")

	assert.Contains(t, buf.String(), `"login":"octocat"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
	assert.Equal(t, log.DebugLevel, log.Level(parseLevel("debug")))
}

func TestRootHelpShowsHeader(t *testing.T) {
	out, err := runCLI(t, "http://127.0.0.1:1", "--help")

	require.NoError(t, err)
	assert.Contains(t, out, header.Title)
	assert.Contains(t, out, "user")
	assert.Contains(t, out, "serve")
}
