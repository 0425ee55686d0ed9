// Package cli implements the monitor command-line interface: the interactive
// terminal UI plus headless commands and the HTTP API server.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github-commit-monitor/internal/config"
	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/github"
	"github-commit-monitor/internal/header"
	"github-commit-monitor/internal/history"
)

const appName = "monitor"

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// CLI holds shared state for all commands. It is populated by the root
// command's PersistentPreRunE.
type CLI struct {
	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger

	verbose  bool
	cfg      *config.Config
	gh       *github.Client
	closeLog func() error

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)
}

// New creates a CLI writing command output to out and logs to errw.
func New(out, errw io.Writer) *CLI {
	return &CLI{
		Out:        out,
		Err:        errw,
		Logger:     slog.New(slog.NewTextHandler(errw, nil)),
		closeLog:   func() error { return nil },
		loadConfig: config.LoadConfig,
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
// Run without a subcommand it starts the terminal UI.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Browse GitHub users, their repositories and the time since their last commit",
		Long:          header.Plain() + "\n\nRun without a command to start the interactive terminal UI.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd, !cmd.HasParent())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.closeLog()
		},
		RunE: c.runTUI,
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.userCommand())
	root.AddCommand(c.reposCommand())
	root.AddCommand(c.commitsCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.latestCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.historyCommand())

	return root
}

// setup loads configuration, builds the logger and the GitHub client. The
// terminal UI owns the screen, so its logs go to LOG_FILE instead of stderr.
func (c *CLI) setup(cmd *cobra.Command, interactive bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg

	level := parseLevel(cfg.LogLevel)
	if c.verbose {
		level = slog.LevelDebug
	}
	w := c.Err
	if interactive {
		fw, closeFn, err := openLogFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w, c.closeLog = fw, closeFn
	}
	c.Logger = newLogger(w, cfg.LogFormat, level)
	slog.SetDefault(c.Logger)

	gh, err := github.NewClient(cfg.GithubToken, c.Logger,
		github.WithBaseURL(cfg.GithubAPIURL),
		github.WithTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return err
	}
	c.gh = gh
	c.Logger.Debug("Configuration loaded", "api", cfg.GithubAPIURL, "authenticated", cfg.GithubToken != "", "history", cfg.HistoryEnabled())
	return nil
}

// openHistory connects to the history database when DB_URL is set. The
// returned History is nil when history is disabled; close is always safe to call.
func (c *CLI) openHistory(ctx context.Context) (*history.History, func(), error) {
	if !c.cfg.HistoryEnabled() {
		return nil, func() {}, nil
	}
	pool, err := history.Open(ctx, c.cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	c.Logger.Info("Search history enabled")
	return history.NewHistory(history.New(pool), c.Logger), pool.Close, nil
}

// parseRepoRef splits "owner/name".
func parseRepoRef(s string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: s}
	}
	return parts[0], parts[1], nil
}

func (c *CLI) printer() printer {
	return printer{w: c.Out}
}
