package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github-commit-monitor/internal/browser"
	"github-commit-monitor/internal/header"
	"github-commit-monitor/internal/search"
)

var (
	sectionStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorWhite).MarginTop(1)
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	inputFocusStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorCyan).Padding(0, 1)
	inputBlurStyle    = inputFocusStyle.BorderForeground(colorDim)
)

func (c *CLI) runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	hist, closeHist, err := c.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHist()

	var opts []search.Option
	if hist != nil {
		opts = append(opts, search.WithRecorder(hist))
	}
	m := newTUIModel(ctx, search.New(c.gh, c.Logger, opts...), c.gh, c.Logger, c.cfg.TickInterval)

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(tuiModel); ok && fm.browser != nil {
		fm.browser.Close()
	}
	return err
}

type focusArea int

const (
	focusSearch focusArea = iota
	focusRepos
)

// searchDoneMsg is sent when a search settles, whatever its outcome.
type searchDoneMsg struct{}

// snapshotMsg carries a browser state change. ok is false once the browser
// has been closed.
type snapshotMsg struct {
	b    *browser.Browser
	snap browser.Snapshot
	ok   bool
}

// tuiModel is the bubbletea model of the interactive UI: the header, the
// search box and, after a successful lookup, the user's card.
type tuiModel struct {
	ctx      context.Context
	searcher *search.Searcher
	client   browser.Client
	logger   *slog.Logger
	interval time.Duration

	input    []rune
	focus    focusArea
	cursor   int
	width    int
	shownSeq uint64
	search   search.State

	// browser is the session of the user on display; nil before the first
	// successful lookup.
	browser *browser.Browser
	snap    browser.Snapshot
}

func newTUIModel(ctx context.Context, s *search.Searcher, client browser.Client, logger *slog.Logger, interval time.Duration) tuiModel {
	return tuiModel{
		ctx:      ctx,
		searcher: s,
		client:   client,
		logger:   logger,
		interval: interval,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchDoneMsg:
		return m.applySearch()

	case snapshotMsg:
		if msg.b != m.browser || !msg.ok {
			return m, nil
		}
		m.snap = msg.snap
		if m.cursor >= len(m.snap.Repositories) {
			m.cursor = 0
		}
		return m, waitForSnapshot(msg.b)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab":
		if m.focus == focusSearch && m.browser != nil {
			m.focus = focusRepos
		} else {
			m.focus = focusSearch
		}
		return m, nil
	}

	if m.focus == focusRepos {
		return m.handleRepoKey(msg)
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input = append(m.input, msg.Runes...)
		if msg.Type == tea.KeySpace && len(msg.Runes) == 0 {
			m.input = append(m.input, ' ')
		}
	}
	return m, nil
}

func (m tuiModel) handleRepoKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	repos := m.snap.Repositories
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(repos)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(repos) {
			return m, selectRepository(m.ctx, m.browser, repos[m.cursor].Name)
		}
	}
	return m, nil
}

// submit tears down the current user's session and starts a new search.
func (m tuiModel) submit() (tea.Model, tea.Cmd) {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
		m.snap = browser.Snapshot{}
		m.cursor = 0
	}
	query := string(m.input)
	m.search = search.State{Query: query, Loading: strings.TrimSpace(query) != ""}
	s, ctx := m.searcher, m.ctx
	return m, func() tea.Msg {
		_ = s.Search(ctx, query)
		return searchDoneMsg{}
	}
}

// applySearch shows the searcher's current state. A settled search that was
// not shown yet replaces the display; a successful one opens a new session.
func (m tuiModel) applySearch() (tea.Model, tea.Cmd) {
	st := m.searcher.State()
	if st.Loading || st.Seq == m.shownSeq {
		return m, nil
	}
	m.shownSeq = st.Seq
	m.search = st
	if st.Result == nil {
		return m, nil
	}

	b := browser.New(m.client, st.Result,
		browser.WithLogger(m.logger),
		browser.WithTickInterval(m.interval),
	)
	m.browser = b
	m.snap = b.Snapshot()
	m.focus = focusRepos
	ctx := m.ctx
	return m, tea.Batch(
		func() tea.Msg {
			_ = b.LoadRepositories(ctx)
			return nil
		},
		waitForSnapshot(b),
	)
}

func selectRepository(ctx context.Context, b *browser.Browser, name string) tea.Cmd {
	return func() tea.Msg {
		_ = b.Select(ctx, name)
		return nil
	}
}

func waitForSnapshot(b *browser.Browser) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-b.Updates()
		return snapshotMsg{b: b, snap: snap, ok: ok}
	}
}

func (m tuiModel) View() string {
	var sb strings.Builder

	sb.WriteString(header.Render(m.width))
	sb.WriteString("\n\n")

	inputStyle := inputBlurStyle
	cursor := ""
	if m.focus == focusSearch {
		inputStyle = inputFocusStyle
		cursor = "█"
	}
	sb.WriteString(inputStyle.Render("Search GitHub user: " + string(m.input) + cursor))
	sb.WriteString("\n")

	switch {
	case m.search.Loading:
		sb.WriteString(StyleDim.Render("Searching..."))
		sb.WriteString("\n")
	case m.search.Err != nil:
		sb.WriteString(StyleError.Render(m.search.Err.Error()))
		sb.WriteString("\n")
	}

	if m.browser != nil {
		sb.WriteString(m.userCardView())
	}

	sb.WriteString("\n")
	sb.WriteString(StyleDim.Render(m.helpLine()))
	return sb.String()
}

func (m tuiModel) userCardView() string {
	var sb strings.Builder
	s := m.snap
	u := s.User

	sb.WriteString(sectionStyle.Render(u.DisplayName()))
	sb.WriteString("\n")
	sb.WriteString(styleKey.Render("Login") + " " + StyleValue.Render(u.Login) + "\n")
	sb.WriteString(styleKey.Render("Public repos") + " " + StyleNumber.Render(strconv.Itoa(u.PublicRepos)) + "\n")
	sb.WriteString(styleKey.Render("Followers") + " " + StyleNumber.Render(strconv.Itoa(u.Followers)) + "\n")

	sb.WriteString(sectionStyle.Render("Repositories:"))
	sb.WriteString("\n")
	if s.LoadingRepos {
		sb.WriteString(StyleDim.Render("Loading repositories...") + "\n")
	}
	if s.Err != nil {
		sb.WriteString(StyleError.Render(s.Err.Error()) + "\n")
	}
	for i, r := range s.Repositories {
		prefix, style := "  ", listNormalStyle
		if m.focus == focusRepos && i == m.cursor {
			prefix, style = iconCursor, listSelectedStyle
		}
		if r.Name == s.SelectedRepo {
			style = style.Underline(true)
		}
		sb.WriteString(prefix + style.Render(r.Name) + "\n")
	}

	if s.SelectedRepo == "" {
		return sb.String()
	}

	sb.WriteString(sectionStyle.Render(fmt.Sprintf("Commits in %s:", s.SelectedRepo)))
	sb.WriteString("\n")
	if s.LoadingCommits {
		sb.WriteString(StyleDim.Render("Loading commits...") + "\n")
	}
	for _, c := range s.Commits {
		sb.WriteString(iconInfo + " " + StyleValue.Render(firstLine(c.Message)) + "\n")
		sb.WriteString("  " + StyleDim.Render("Author: "+c.AuthorName) + "\n")
		sb.WriteString("  " + StyleDim.Render("Date: "+c.AuthorDate.Local().Format(dateLayout)) + "\n")
	}
	if !s.LoadingCommits && s.Err == nil && len(s.Commits) == 0 {
		sb.WriteString(StyleDim.Render("No commits") + "\n")
	}

	if s.HasLastCommit() {
		sb.WriteString(sectionStyle.Render("Last commit:"))
		sb.WriteString("\n")
		sb.WriteString(styleKey.Render("Date") + " " + StyleValue.Render(s.LastCommit.Local().Format(dateLayout)) + "\n")
		sb.WriteString(styleKey.Render("Elapsed") + " " + StyleNumber.Render(s.Elapsed) + "\n")
	}
	return sb.String()
}

func (m tuiModel) helpLine() string {
	if m.focus == focusRepos {
		return "↑/↓ navigate  ⏎ show commits  tab search  q quit"
	}
	return "⏎ search  tab repositories  esc quit"
}

