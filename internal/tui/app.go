package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"taskdeck/internal/action"
	"taskdeck/internal/agent"
	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/forge"
	"taskdeck/internal/gitx"
	"taskdeck/internal/model"
	"taskdeck/internal/reconcile"
	"taskdeck/internal/tracker"
)

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateActionMenu
	stateNewTask
	stateHelp
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// — spinner —————————————————————————————————————————————————————————————————

var spinnerFrames = []string{"|", "/", "-", "\\"}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// — messages ————————————————————————————————————————————————————————————————

// viewsLoadedMsg carries a completed refresh. reqID ties it to the
// refresh that requested it; results from superseded refreshes are
// dropped in Update.
type viewsLoadedMsg struct {
	reqID     int
	views     []model.ReconciledView
	updatedAt time.Time
	stale     bool
	err       error
	fatal     bool
}

type taskCreatedMsg struct {
	task model.TaskRecord
	err  error
}

type actionDoneMsg struct {
	info string
	err  error
}

type agentPromptMsg struct {
	prompt string
	err    error
}

type agentExitedMsg struct {
	err error
}

// — list item ———————————————————————————————————————————————————————————————

type taskItem struct {
	v model.ReconciledView
}

func (i taskItem) Title() string {
	return statusGlyph(i.v.Task.Status) + " " + i.v.Key.String() + "  " + i.v.Task.Title
}

func (i taskItem) Description() string {
	parts := []string{string(i.v.Task.Status)}
	if i.v.Branch != "" {
		parts = append(parts, i.v.Branch)
	}
	if i.v.PR.HasPR() {
		parts = append(parts, reviewLabelPlain(i.v.PR.Review))
	}
	if i.v.TaskStale || i.v.PRStale {
		parts = append(parts, "stale")
	}
	return strings.Join(parts, " · ")
}

func (i taskItem) FilterValue() string { return i.v.Key.String() + " " + i.v.Task.Title }

func statusGlyph(s model.TaskStatus) string {
	switch s {
	case model.StatusInProgress:
		return "◐"
	case model.StatusInReview:
		return "◍"
	case model.StatusOpen:
		return "○"
	case model.StatusDone:
		return "●"
	default:
		return "?"
	}
}

// — deps ————————————————————————————————————————————————————————————————————

// Deps are the wired clients the browser drives.
type Deps struct {
	Cfg     *config.Config
	Git     *gitx.Git
	Forge   forge.Forge
	Tracker tracker.Tracker
	Store   *cache.Store
	Engine  *reconcile.Engine
	Actions *action.Executor
	Agent   *agent.Session
}

// — model ———————————————————————————————————————————————————————————————————

type menuEntry struct {
	label string
	run   func(m *Model, v model.ReconciledView) tea.Cmd
}

type Model struct {
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	list      list.Model
	views     []model.ReconciledView
	width     int
	height    int
	loading   bool
	err       error
	fatalErr  error
	updatedAt time.Time
	stale     bool

	// refreshSeq tags each refresh; only the newest request's result
	// is applied.
	refreshSeq int

	state        appState
	menu         []menuEntry
	menuIndex    int
	titleInput   textinput.Model
	descInput    textinput.Model
	descFocused  bool
	inputErr     string
	notice       string
	spinnerFrame int
}

func New(deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())

	delegate := list.NewDefaultDelegate()

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Tasks"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	ti := textinput.New()
	ti.Placeholder = "e.g. Add login flow"
	ti.CharLimit = 120

	di := textinput.New()
	di.Placeholder = "optional description"
	di.CharLimit = 500

	return Model{
		deps:       deps,
		ctx:        ctx,
		cancel:     cancel,
		list:       l,
		loading:    true,
		titleInput: ti,
		descInput:  di,
	}
}

// — commands ————————————————————————————————————————————————————————————————

// fetchViewsCmd loads tasks and PR statuses through the cache, merges
// them with local branches, and reports back under reqID. Tasks and
// PRs load concurrently.
func fetchViewsCmd(ctx context.Context, d Deps, reqID int) tea.Cmd {
	return func() tea.Msg {
		var (
			wg sync.WaitGroup
			in reconcile.Inputs

			tasksErr error
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks, stale, err := cache.GetOrFetch(ctx, d.Store, action.TasksCacheKey,
				func(ctx context.Context) ([]model.TaskRecord, error) {
					var out []model.TaskRecord
					for task, err := range d.Tracker.ListTasks(ctx, tracker.Filter{AssigneeSelf: true, ExcludeDone: true}) {
						if err != nil {
							return nil, err
						}
						out = append(out, task)
					}
					return out, nil
				})
			if err != nil {
				tasksErr = err
				in.TasksUnknown = true
				return
			}
			in.Tasks = tasks
			in.TasksStale = stale
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			prs, stale, err := cache.GetOrFetch(ctx, d.Store, action.PRsCacheKey,
				func(ctx context.Context) ([]model.PRStatus, error) {
					return d.Forge.ListStatuses(ctx)
				})
			if err != nil {
				// A missing PR source is a degraded view, not a failure.
				in.PRsUnknown = true
				return
			}
			in.PRs = prs
			in.PRsStale = stale
		}()

		wg.Wait()

		if tasksErr != nil && tracker.IsAuth(tasksErr) {
			return viewsLoadedMsg{reqID: reqID, err: tasksErr, fatal: true}
		}
		if tasksErr != nil && in.PRsUnknown {
			return viewsLoadedMsg{reqID: reqID, err: tasksErr}
		}

		in.Branches, _ = d.Git.LocalBranches(ctx)

		msg := viewsLoadedMsg{
			reqID: reqID,
			views: d.Engine.Merge(in),
			stale: in.TasksStale || in.PRsStale,
		}
		if age, ok := d.Store.Age(action.TasksCacheKey); ok {
			msg.updatedAt = time.Now().Add(-age)
		}
		return msg
	}
}

func createTaskCmd(ctx context.Context, d Deps, title, description string) tea.Cmd {
	return func() tea.Msg {
		task, err := d.Actions.NewTask(ctx, title, description)
		return taskCreatedMsg{task: task, err: err}
	}
}

func switchBranchCmd(ctx context.Context, d Deps, v model.ReconciledView) tea.Cmd {
	return func() tea.Msg {
		branch, created, err := d.Actions.SwitchBranch(ctx, v.Task)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		verb := "switched to"
		if created {
			verb = "created"
		}
		return actionDoneMsg{info: fmt.Sprintf("%s %s", verb, branch)}
	}
}

func commitCmd(ctx context.Context, d Deps, v model.ReconciledView) tea.Cmd {
	return func() tea.Msg {
		msg, err := d.Actions.CommitStaged(ctx, v.Task)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: "committed " + msg}
	}
}

func createPRCmd(ctx context.Context, d Deps, v model.ReconciledView) tea.Cmd {
	return func() tea.Msg {
		res, err := d.Actions.CreatePR(ctx, v.Task, "", false)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if res.Existed {
			return actionDoneMsg{info: "PR already open: " + res.URL}
		}
		return actionDoneMsg{info: "opened " + res.URL}
	}
}

// agentPromptCmd gathers task context and builds the prompt named by
// build. Runs before ExecProcess takes over the terminal.
func agentPromptCmd(ctx context.Context, d Deps, v model.ReconciledView, build func(taskContext string) (string, error)) tea.Cmd {
	return func() tea.Msg {
		comments, err := d.Tracker.Comments(ctx, v.Key)
		if err != nil && !tracker.IsNotFound(err) {
			return agentPromptMsg{err: err}
		}
		prompt, err := build(agent.TaskContext(v.Task, comments))
		return agentPromptMsg{prompt: prompt, err: err}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		cmd.Run()
		return nil
	}
}

// buildItems rebuilds the list items from the current views.
func (m *Model) buildItems() {
	items := make([]list.Item, len(m.views))
	for i, v := range m.views {
		items[i] = taskItem{v: v}
	}
	m.list.SetItems(items)
}

// refresh invalidates nothing but starts a new fetch; results from any
// refresh started earlier are ignored when they arrive.
func (m *Model) refresh() tea.Cmd {
	m.refreshSeq++
	return fetchViewsCmd(m.ctx, m.deps, m.refreshSeq)
}

func (m *Model) forceRefresh() tea.Cmd {
	_ = m.deps.Store.Invalidate(action.TasksCacheKey)
	_ = m.deps.Store.Invalidate(action.PRsCacheKey)
	return m.refresh()
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		lw, lh := m.listDimensions()
		m.list.SetSize(lw, lh)
		return m, nil

	case tickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, tickCmd()

	case viewsLoadedMsg:
		// A newer refresh is in flight; this result is stale.
		if msg.reqID != m.refreshSeq {
			return m, nil
		}
		m.loading = false
		if msg.fatal {
			m.fatalErr = msg.err
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.views = msg.views
		m.updatedAt = msg.updatedAt
		m.stale = msg.stale
		m.buildItems()
		return m, nil

	case taskCreatedMsg:
		if msg.err != nil {
			m.inputErr = msg.err.Error()
			return m, nil
		}
		m.state = stateNormal
		m.inputErr = ""
		m.titleInput.Reset()
		m.descInput.Reset()
		m.titleInput.Blur()
		m.descInput.Blur()
		m.notice = "created " + msg.task.Key.String()
		m.loading = true
		return m, m.refresh()

	case actionDoneMsg:
		m.state = stateNormal
		if msg.err != nil {
			m.notice = ""
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.notice = msg.info
		m.loading = true
		return m, m.refresh()

	case agentPromptMsg:
		m.state = stateNormal
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		cmd, err := m.deps.Agent.Command(m.ctx, msg.prompt)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, tea.ExecProcess(cmd, func(err error) tea.Msg {
			return agentExitedMsg{err: err}
		})

	case agentExitedMsg:
		// The agent may have changed branches or pushed work; refresh.
		if msg.err != nil {
			m.err = msg.err
		}
		m.loading = true
		return m, m.refresh()
	}

	switch m.state {
	case stateActionMenu:
		return m.updateActionMenu(msg)
	case stateNewTask:
		return m.updateNewTask(msg)
	case stateHelp:
		return m.updateHelp(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// Cancel any in-flight fetches before tearing down.
			m.cancel()
			return m, tea.Quit
		case "r":
			m.loading = true
			m.notice = ""
			return m, m.forceRefresh()
		case "n":
			m.state = stateNewTask
			m.inputErr = ""
			m.titleInput.Reset()
			m.descInput.Reset()
			m.descFocused = false
			m.titleInput.Focus()
			return m, textinput.Blink
		case "c":
			if v := m.selectedView(); v != nil {
				return m, switchBranchCmd(m.ctx, m.deps, *v)
			}
			return m, nil
		case "o":
			if v := m.selectedView(); v != nil && v.Task.URL != "" {
				return m, openURLCmd(v.Task.URL)
			}
			return m, nil
		case "h":
			m.state = stateHelp
			return m, nil
		case "enter":
			if v := m.selectedView(); v != nil {
				m.state = stateActionMenu
				m.menu = m.menuFor(*v)
				m.menuIndex = 0
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateActionMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc", "q":
		m.state = stateNormal
		return m, nil
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
		return m, nil
	case "down", "j":
		if m.menuIndex < len(m.menu)-1 {
			m.menuIndex++
		}
		return m, nil
	case "enter":
		v := m.selectedView()
		if v == nil || m.menuIndex >= len(m.menu) {
			m.state = stateNormal
			return m, nil
		}
		cmd := m.menu[m.menuIndex].run(&m, *v)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateNewTask(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.state = stateNormal
			m.inputErr = ""
			m.titleInput.Blur()
			m.descInput.Blur()
			return m, nil
		case "tab":
			m.descFocused = !m.descFocused
			if m.descFocused {
				m.titleInput.Blur()
				m.descInput.Focus()
			} else {
				m.descInput.Blur()
				m.titleInput.Focus()
			}
			return m, textinput.Blink
		case "enter":
			title := strings.TrimSpace(m.titleInput.Value())
			if title == "" {
				m.inputErr = "title cannot be empty"
				return m, nil
			}
			m.inputErr = ""
			return m, createTaskCmd(m.ctx, m.deps, title, strings.TrimSpace(m.descInput.Value()))
		}
	}
	var cmd tea.Cmd
	if m.descFocused {
		m.descInput, cmd = m.descInput.Update(msg)
	} else {
		m.titleInput, cmd = m.titleInput.Update(msg)
	}
	return m, cmd
}

func (m Model) updateHelp(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "q", "h", "enter":
			m.state = stateNormal
		}
	}
	return m, nil
}

// menuFor builds the action menu for a task. Entries that cannot apply
// to the task's current state are left out.
func (m *Model) menuFor(v model.ReconciledView) []menuEntry {
	entries := []menuEntry{
		{"Checkout branch", func(m *Model, v model.ReconciledView) tea.Cmd {
			return switchBranchCmd(m.ctx, m.deps, v)
		}},
		{"Commit staged changes", func(m *Model, v model.ReconciledView) tea.Cmd {
			return commitCmd(m.ctx, m.deps, v)
		}},
	}
	if !v.PR.HasPR() {
		entries = append(entries, menuEntry{"Create PR", func(m *Model, v model.ReconciledView) tea.Cmd {
			return createPRCmd(m.ctx, m.deps, v)
		}})
	}
	entries = append(entries,
		menuEntry{"Implement with agent", func(m *Model, v model.ReconciledView) tea.Cmd {
			return agentPromptCmd(m.ctx, m.deps, v, func(taskContext string) (string, error) {
				return agent.ImplementPrompt(taskContext), nil
			})
		}},
		menuEntry{"Review branch with agent", func(m *Model, v model.ReconciledView) tea.Cmd {
			return agentPromptCmd(m.ctx, m.deps, v, func(taskContext string) (string, error) {
				base := m.deps.Git.DefaultBranch(m.ctx, m.deps.Cfg.DefaultBranch)
				commits, err := m.deps.Git.LogSince(m.ctx, base)
				if err != nil {
					return "", err
				}
				diff, err := m.deps.Git.DiffSince(m.ctx, base)
				if err != nil {
					return "", err
				}
				return agent.ReviewPrompt(taskContext, commits, diff, base), nil
			})
		}},
	)
	if v.PR.HasPR() {
		entries = append(entries, menuEntry{"Address PR comments with agent", func(m *Model, v model.ReconciledView) tea.Cmd {
			return agentPromptCmd(m.ctx, m.deps, v, func(taskContext string) (string, error) {
				return agent.AddressPrompt(taskContext), nil
			})
		}})
		entries = append(entries, menuEntry{"Open PR in browser", func(m *Model, v model.ReconciledView) tea.Cmd {
			m.state = stateNormal
			return openURLCmd(v.PR.URL)
		}})
	}
	if v.Task.URL != "" {
		entries = append(entries, menuEntry{"Open task in browser", func(m *Model, v model.ReconciledView) tea.Cmd {
			m.state = stateNormal
			return openURLCmd(v.Task.URL)
		}})
	}
	return entries
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.fatalErr != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			errStyle.Render("Authentication failed") + "\n\n" +
				m.fatalErr.Error() + "\n\n" +
				dimStyle.Render("Fix your credentials and restart. Press q to quit."),
		)
	}

	if m.loading && len(m.views) == 0 {
		frame := spinnerFrames[m.spinnerFrame]
		return lipgloss.NewStyle().Padding(1, 2).Render(frame + " Loading tasks…")
	}

	if m.err != nil && len(m.views) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit.", m.err),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), m.renderDetail())
	base := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderHelp())

	switch m.state {
	case stateActionMenu:
		return m.renderMenuOver(base)
	case stateNewTask:
		return m.renderNewTaskOver(base)
	case stateHelp:
		return m.renderHelpOver(base)
	}
	return base
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) listDimensions() (width, height int) {
	return m.width / 2, m.height - 4
}

func (m Model) renderHeader() string {
	var parts []string
	if !m.updatedAt.IsZero() {
		parts = append(parts, "Updated "+humanize.Time(m.updatedAt))
	}
	if m.stale {
		parts = append(parts, warnStyle.Render("stale"))
	}
	if m.loading {
		parts = append(parts, spinnerFrames[m.spinnerFrame]+" refreshing")
	}
	if m.err != nil {
		parts = append(parts, errStyle.Render("refresh failed: "+m.err.Error()))
	} else if m.notice != "" {
		parts = append(parts, okStyle.Render(m.notice))
	}
	return helpStyle.Render(strings.Join(parts, "   "))
}

func (m Model) renderDetail() string {
	lw, _ := m.listDimensions()
	dw := m.width - lw
	dh := m.height - 4

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(dh)

	contentWidth := (dw - 1) - 3 - 2

	v := m.selectedView()
	if v == nil {
		return style.Render(dimStyle.Render("No tasks found"))
	}

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	sep := dimStyle.Render(strings.Repeat("─", max(contentWidth, 0)))

	var b strings.Builder
	b.WriteString(detailHeadStyle.Render(v.Key.String()) + "\n\n")
	b.WriteString(truncate(v.Task.Title, contentWidth) + "\n\n")

	statusVal := string(v.Task.Status)
	if v.TaskStale {
		statusVal += warnStyle.Render(" (stale)")
	}
	if v.TaskUnknown {
		statusVal = dimStyle.Render("unknown")
	}
	b.WriteString(row("Status   ", statusVal))
	if v.Branch != "" {
		b.WriteString(row("Branch   ", truncate(v.Branch, contentWidth-9)))
	}
	if !v.Task.UpdatedAt.IsZero() {
		b.WriteString(row("Updated  ", humanize.Time(v.Task.UpdatedAt)))
	}
	b.WriteString("\n" + sep + "\n\n")

	if v.PRUnknown {
		b.WriteString(dimStyle.Render("PR status unavailable") + "\n")
	} else if v.PR.HasPR() {
		b.WriteString(row("Review   ", reviewLabel(v.PR.Review)))
		b.WriteString(row("CI       ", ciLabel(v.PR.CI)))
		b.WriteString(row("URL      ", truncate(v.PR.URL, contentWidth-9)))
		if v.PRStale {
			b.WriteString(warnStyle.Render("PR data is stale") + "\n")
		}
	} else {
		b.WriteString(dimStyle.Render("No PR yet") + "\n")
	}

	if v.Task.Description != "" {
		b.WriteString("\n" + sep + "\n\n")
		b.WriteString(dimStyle.Render(truncate(v.Task.Description, contentWidth*6)) + "\n")
	}

	return style.Render(b.String())
}

func reviewLabel(r model.ReviewState) string {
	switch r {
	case model.ReviewApproved:
		return okStyle.Render("approved")
	case model.ReviewChangesRequested:
		return errStyle.Render("changes requested")
	case model.ReviewPending:
		return warnStyle.Render("awaiting review")
	default:
		return dimStyle.Render("—")
	}
}

func reviewLabelPlain(r model.ReviewState) string {
	switch r {
	case model.ReviewApproved:
		return "approved"
	case model.ReviewChangesRequested:
		return "changes requested"
	case model.ReviewPending:
		return "awaiting review"
	default:
		return ""
	}
}

func ciLabel(c model.CIState) string {
	switch c {
	case model.CIPassing:
		return okStyle.Render("passing")
	case model.CIFailing:
		return errStyle.Render("failing")
	case model.CIRunning:
		return warnStyle.Render("running")
	default:
		return dimStyle.Render("—")
	}
}

func (m Model) renderHelp() string {
	var text string
	switch m.state {
	case stateActionMenu:
		text = "↑/↓ navigate   Enter run   Esc cancel"
	case stateNewTask:
		text = "Tab switch field   Enter create   Esc cancel"
	case stateHelp:
		text = "Esc close"
	default:
		text = "↑/↓ navigate   Enter actions   n new task   c checkout   o open   r refresh   h help   q quit"
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderMenuOver(base string) string {
	v := m.selectedView()
	var b strings.Builder
	b.WriteString(boldStyle.Render("Actions") + "\n")
	if v != nil {
		b.WriteString(dimStyle.Render(v.Key.String()+"  "+truncate(v.Task.Title, 40)) + "\n")
	}
	b.WriteString("\n")
	for i, entry := range m.menu {
		cursor := "  "
		label := entry.label
		if i == m.menuIndex {
			cursor = "> "
			label = boldStyle.Render(label)
		}
		b.WriteString(cursor + label + "\n")
	}

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderNewTaskOver(base string) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("New Task") + "\n\n")
	b.WriteString("Title\n")
	b.WriteString(m.titleInput.View() + "\n\n")
	b.WriteString("Description\n")
	b.WriteString(m.descInput.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Creates the task assigned to you"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderHelpOver(base string) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Keys") + "\n\n")
	rows := [][2]string{
		{"enter", "action menu for the selected task"},
		{"n", "create a new task"},
		{"c", "checkout the task's branch"},
		{"o", "open the task in the browser"},
		{"r", "refresh from the tracker and forge"},
		{"h", "this help"},
		{"q / esc", "quit"},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", r[0])) + r[1] + "\n")
	}

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) selectedView() *model.ReconciledView {
	if len(m.views) == 0 {
		return nil
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.views) {
		return nil
	}
	return &m.views[idx]
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
