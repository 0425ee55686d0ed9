package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github-commit-monitor/internal/elapsed"
	"github-commit-monitor/internal/model"
	"github-commit-monitor/internal/report"
	"github-commit-monitor/internal/search"
)

const dateLayout = "2006-01-02 15:04:05 MST"

// lookup runs a single search, recording it when history is enabled.
func (c *CLI) lookup(ctx context.Context, login string) (*model.User, error) {
	hist, closeHist, err := c.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	defer closeHist()

	var opts []search.Option
	if hist != nil {
		opts = append(opts, search.WithRecorder(hist))
	}
	s := search.New(c.gh, c.Logger, opts...)
	if err := s.Search(ctx, login); err != nil {
		return nil, err
	}
	return s.State().Result, nil
}

func (c *CLI) userCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "user <login>",
		Short: "Show a GitHub user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.printUser(user)
			return nil
		},
	}
}

func (c *CLI) printUser(u *model.User) {
	p := c.printer()
	p.line(StyleTitle.Render(u.DisplayName()))
	p.keyValue("Login", u.Login)
	p.keyValue("Public repos", strconv.Itoa(u.PublicRepos))
	p.keyValue("Followers", strconv.Itoa(u.Followers))
	if u.AvatarURL != "" {
		p.keyValue("Avatar", StyleLink.Render(u.AvatarURL))
	}
}

func (c *CLI) reposCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repos <login>",
		Short: "List a user's repositories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			repos, err := c.gh.ListRepositories(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("failed to fetch repositories: %w", err)
			}
			p := c.printer()
			if len(repos) == 0 {
				p.warning("%s has no public repositories", user.Login)
				return nil
			}
			p.line(StyleTitle.Render("Repositories"))
			for _, r := range repos {
				line := r.Name
				if r.Language != nil {
					line += " " + StyleDim.Render("("+*r.Language+")")
				}
				p.info("%s", line)
				if r.Description != nil && *r.Description != "" {
					p.detail("%s", *r.Description)
				}
			}
			return nil
		},
	}
}

func (c *CLI) commitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commits <owner/repo>",
		Short: "List a repository's commits and the time since the last one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := parseRepoRef(args[0])
			if err != nil {
				return err
			}
			commits, err := c.gh.ListCommits(cmd.Context(), owner, name)
			if err != nil {
				return fmt.Errorf("failed to fetch commits: %w", err)
			}
			c.printCommits(commits, time.Now())
			return nil
		},
	}
}

func (c *CLI) printCommits(commits []model.Commit, now time.Time) {
	p := c.printer()
	last, ok := model.LatestCommit(commits)
	if !ok {
		p.warning("No commits")
		return
	}
	for _, cm := range commits {
		p.info("%s", firstLine(cm.Message))
		p.detail("Author: %s", cm.AuthorName)
		p.detail("Date: %s", cm.AuthorDate.Local().Format(dateLayout))
	}
	p.line("")
	p.keyValue("Last commit", last.Local().Format(dateLayout))
	p.keyValue("Elapsed", StyleNumber.Render(elapsed.Since(last, now)))
}

func (c *CLI) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <owner/repo>",
		Short: "Show a live counter of the time since a repository's last commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := parseRepoRef(args[0])
			if err != nil {
				return err
			}
			commits, err := c.gh.ListCommits(cmd.Context(), owner, name)
			if err != nil {
				return fmt.Errorf("failed to fetch commits: %w", err)
			}
			last, ok := model.LatestCommit(commits)
			if !ok {
				c.printer().warning("%s/%s has no commits", owner, name)
				return nil
			}
			return c.watch(cmd.Context(), last)
		},
	}
}

// watch redraws the elapsed time in place until ctx is done.
func (c *CLI) watch(ctx context.Context, last time.Time) error {
	lines := make(chan string, 1)
	t := elapsed.NewTicker(last, elapsed.WithInterval(c.cfg.TickInterval))
	first := t.Start(func(s string) {
		select {
		case lines <- s:
		default:
		}
	})
	defer t.Stop()

	draw := func(s string) {
		fmt.Fprintf(c.Out, "\r%s %s", StyleDim.Render("Time since last commit:"), StyleNumber.Render(s))
	}
	draw(first)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.Out)
			return ctx.Err()
		case s := <-lines:
			draw(s)
		}
	}
}

func (c *CLI) latestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <login>",
		Short: "Show the last commit of every repository of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows, err := report.NewReporter(c.gh, c.Logger, c.cfg.ReportConcurrency).Latest(cmd.Context(), user)
			if err != nil {
				return err
			}
			c.printer().line(renderActivity(rows))
			return nil
		},
	}
}

func renderActivity(rows []report.Activity) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		last, since := "—", "—"
		switch {
		case r.Err != nil:
			since = r.Error
		case r.HasCommits:
			last = r.LastCommit.Local().Format(dateLayout)
			since = r.Elapsed
		default:
			since = "no commits"
		}
		data = append(data, []string{r.Repository.Name, last, since})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Repository", "Last commit", "Elapsed").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			if row >= 0 && row < len(rows) && rows[row].Err != nil {
				return lipgloss.NewStyle().Foreground(colorRed)
			}
			if col == 2 {
				return StyleNumber
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func (c *CLI) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent user lookups (requires DB_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, closeHist, err := c.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHist()
			if hist == nil {
				return fmt.Errorf("search history is disabled: set DB_URL")
			}
			if limit == 0 {
				limit = c.cfg.HistoryLimit
			}
			rows, err := hist.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			p := c.printer()
			if len(rows) == 0 {
				p.info("No searches recorded yet")
				return nil
			}
			for _, r := range rows {
				p.info("%s %s", r.Login, StyleDim.Render(r.SearchedAt.Local().Format(dateLayout)))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of entries (default HISTORY_LIMIT)")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
