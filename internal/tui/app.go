// Package tui provides the interactive terminal UI for Nandy: a board of a
// person's routines and todos driven through the daemon's HTTP API.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// Board modes.
const (
	modeRoutines = "routines"
	modeToDos    = "todos"
)

// refreshInterval is how often the board reloads on its own; other clients
// and the daemon's cascades move routines along in the meantime.
const refreshInterval = 5 * time.Second

// App is the main TUI application model.
type App struct {
	client       *Client
	routines     []RoutineItem
	todos        []ToDoItem
	routineIdx   int
	taskIdx      int
	todoIdx      int
	input        textinput.Model
	suggestions  *Suggestions
	width        int
	height       int
	mode         string
	status       string
	message      string
	loading      bool
	daemonOnline bool
}

var statusFilters = []string{"opened", "closed", ""}
var statusFilterNames = []string{"OPEN", "CLOSED", "ALL"}

// New creates a new TUI application for person, which may be empty.
func New(apiAddr, person string) *App {
	ti := textinput.New()
	ti.Placeholder = "Press / for commands, @ for routine templates"
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr, person),
		input:       ti,
		suggestions: NewSuggestions(),
		mode:        modeRoutines,
		status:      statusFilters[0],
		loading:     true,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.checkDaemon(),
		a.fetchBoard(),
		a.fetchTemplates(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.input.Focused() {
			return a.updateInput(msg)
		}
		return a, a.handleKey(msg.String())

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6

	case boardLoadedMsg:
		a.loading = false
		a.routines = msg.routines
		a.todos = msg.todos
		a.clampSelection()

	case templatesLoadedMsg:
		a.suggestions.SetTemplates(msg.templates)

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		return a, tea.Batch(a.fetchBoard(), a.checkDaemon(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchBoard()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}
	return a, nil
}

func (a *App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.input.SetValue("")
		a.input.Blur()
		a.suggestions.Update("")
		return a, nil
	case "up":
		a.suggestions.Prev()
		return a, nil
	case "down":
		a.suggestions.Next()
		return a, nil
	case "tab":
		if a.suggestions.IsVisible() {
			a.input.SetValue(a.suggestions.Accept())
			a.input.CursorEnd()
			a.suggestions.Update("")
		}
		return a, nil
	case "enter":
		if a.suggestions.IsVisible() {
			a.input.SetValue(a.suggestions.Accept())
			a.input.CursorEnd()
			a.suggestions.Update("")
			return a, nil
		}
		line := strings.TrimSpace(a.input.Value())
		a.input.SetValue("")
		a.input.Blur()
		if line == "" {
			return a, nil
		}
		return a, a.executeCommand(line)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.suggestions.Update(a.input.Value())
	return a, cmd
}

// handleKey maps single-key shortcuts to board actions.
func (a *App) handleKey(key string) tea.Cmd {
	switch key {
	case "ctrl+c", "q":
		return tea.Quit
	case "/", "@":
		a.input.Focus()
		a.input.SetValue(key)
		a.input.CursorEnd()
		a.suggestions.Update(key)
		return textinput.Blink
	case ":":
		a.input.Focus()
		return textinput.Blink
	case "tab":
		if a.mode == modeRoutines {
			a.mode = modeToDos
		} else {
			a.mode = modeRoutines
		}
		return nil
	case "f":
		for i, s := range statusFilters {
			if s == a.status {
				a.status = statusFilters[(i+1)%len(statusFilters)]
				break
			}
		}
		a.loading = true
		return a.fetchBoard()
	case "r":
		return a.fetchBoard()
	case "up", "k":
		a.move(-1)
	case "down", "j":
		a.move(1)
	case "left", "h":
		if a.taskIdx > 0 {
			a.taskIdx--
		}
	case "right", "l":
		if r := a.selectedRoutine(); r != nil && a.taskIdx < len(r.Tasks)-1 {
			a.taskIdx++
		}
	case "n":
		if r := a.selectedRoutine(); r != nil && a.mode == modeRoutines {
			return a.routineAction(r, "next")
		}
	case "p":
		return a.togglePause()
	case "c":
		return a.selectedAction("complete")
	case "u":
		return a.selectedAction("uncomplete")
	case "s":
		return a.selectedAction("skip")
	case "S":
		return a.selectedAction("unskip")
	case "m":
		if t := a.selectedToDo(); t != nil && a.mode == modeToDos {
			return a.todoAction(t, "remind")
		}
		if r := a.selectedRoutine(); r != nil {
			return a.routineAction(r, "remind")
		}
	}
	return nil
}

func (a *App) move(delta int) {
	if a.mode == modeRoutines {
		a.routineIdx += delta
		a.taskIdx = 0
	} else {
		a.todoIdx += delta
	}
	a.clampSelection()
}

func (a *App) clampSelection() {
	a.routineIdx = clamp(a.routineIdx, len(a.routines))
	a.todoIdx = clamp(a.todoIdx, len(a.todos))
	if r := a.selectedRoutine(); r != nil {
		a.taskIdx = clamp(a.taskIdx, len(r.Tasks))
	} else {
		a.taskIdx = 0
	}
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (a *App) selectedRoutine() *RoutineItem {
	if len(a.routines) == 0 {
		return nil
	}
	return &a.routines[a.routineIdx]
}

func (a *App) selectedToDo() *ToDoItem {
	if len(a.todos) == 0 {
		return nil
	}
	return &a.todos[a.todoIdx]
}

// selectedAction applies a lifecycle verb to the selected task or todo.
func (a *App) selectedAction(action string) tea.Cmd {
	if a.mode == modeToDos {
		if t := a.selectedToDo(); t != nil {
			return a.todoAction(t, action)
		}
		return nil
	}
	r := a.selectedRoutine()
	if r == nil || len(r.Tasks) == 0 {
		return nil
	}
	task := r.Tasks[a.taskIdx]
	return a.actionCmd(fmt.Sprintf("%s task %q", action, task.Text), func() (bool, error) {
		return a.client.TaskAction(r.ID, task.Index, action)
	})
}

// togglePause pauses or unpauses the selected routine or todo.
func (a *App) togglePause() tea.Cmd {
	if a.mode == modeToDos {
		t := a.selectedToDo()
		if t == nil {
			return nil
		}
		if t.Paused {
			return a.todoAction(t, "unpause")
		}
		return a.todoAction(t, "pause")
	}
	r := a.selectedRoutine()
	if r == nil {
		return nil
	}
	if r.Paused {
		return a.routineAction(r, "unpause")
	}
	return a.routineAction(r, "pause")
}

func (a *App) routineAction(r *RoutineItem, action string) tea.Cmd {
	id, name := r.ID, r.Name
	return a.actionCmd(fmt.Sprintf("%s routine %q", action, name), func() (bool, error) {
		return a.client.RoutineAction(id, action)
	})
}

func (a *App) todoAction(t *ToDoItem, action string) tea.Cmd {
	id, name := t.ID, t.Name
	return a.actionCmd(fmt.Sprintf("%s todo %q", action, name), func() (bool, error) {
		return a.client.ToDoAction(id, action)
	})
}

func (a *App) actionCmd(what string, fn func() (bool, error)) tea.Cmd {
	return func() tea.Msg {
		updated, err := fn()
		if err != nil {
			return errMsg{err}
		}
		if !updated {
			return commandResultMsg{message: "Nothing to " + what}
		}
		return commandResultMsg{message: "✓ " + what}
	}
}

// executeCommand runs a line typed into the command input.
func (a *App) executeCommand(line string) tea.Cmd {
	line = strings.TrimPrefix(line, "/")
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "todo":
		if arg == "" {
			return errCmd(fmt.Errorf("usage: todo <name>"))
		}
		return func() tea.Msg {
			t, err := a.client.CreateToDo(arg)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{message: fmt.Sprintf("✓ Added todo %q", t.Name)}
		}
	case "routine", "@":
		arg = strings.TrimPrefix(arg, "@")
		if arg == "" {
			return errCmd(fmt.Errorf("usage: routine <template-id>"))
		}
		return func() tea.Msg {
			r, err := a.client.StartRoutine(arg)
			if err != nil {
				return errMsg{err}
			}
			return commandResultMsg{message: fmt.Sprintf("✓ Started routine %q", r.Name)}
		}
	case "remind":
		return a.actionCmd("remind about open todos", a.client.Remind)
	case "expire", "unexpire":
		if a.mode == modeToDos {
			if t := a.selectedToDo(); t != nil {
				return a.todoAction(t, verb)
			}
			return nil
		}
		if r := a.selectedRoutine(); r != nil {
			return a.routineAction(r, verb)
		}
		return nil
	case "refresh":
		return a.fetchBoard()
	}
	if strings.HasPrefix(verb, "@") {
		return a.executeCommand("routine " + strings.TrimPrefix(verb, "@"))
	}
	return errCmd(fmt.Errorf("unknown command %q", verb))
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	person := a.client.Person()
	if person == "" {
		person = "everyone"
	}

	header := titleStyle.Render("NANDY")
	header += "  " + daemonStatus
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(person)
	header += "  " + lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("[%s]", statusFilterNames[a.filterIndex()]))
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	contentHeight := a.height - 9
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch {
	case a.loading:
		b.WriteString("\n  Loading...\n")
	case a.mode == modeRoutines:
		b.WriteString(a.renderRoutines(contentHeight))
	default:
		b.WriteString(a.renderToDos(contentHeight))
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case modeRoutines:
		status = fmt.Sprintf(" Routines: %d | ↑↓:routine ←→:task | n:next c:complete s:skip p:pause m:remind | tab:todos f:filter q:quit", len(a.routines))
	default:
		status = fmt.Sprintf(" ToDos: %d | ↑↓:nav | c:complete u:uncomplete s:skip p:pause m:remind | tab:routines f:filter q:quit", len(a.todos))
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) filterIndex() int {
	for i, s := range statusFilters {
		if s == a.status {
			return i
		}
	}
	return 0
}

// --- Commands ---

func (a *App) fetchBoard() tea.Cmd {
	status := a.status
	return func() tea.Msg {
		routines, err := a.client.ListRoutines(status)
		if err != nil {
			return errMsg{err}
		}
		todos, err := a.client.ListToDos(status)
		if err != nil {
			return errMsg{err}
		}
		return boardLoadedMsg{routines: routines, todos: todos}
	}
}

func (a *App) fetchTemplates() tea.Cmd {
	return func() tea.Msg {
		templates, err := a.client.RoutineTemplates()
		if err != nil {
			return errMsg{err}
		}
		return templatesLoadedMsg{templates: templates}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		return daemonStatusMsg{online: a.client.Health() == nil}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return errMsg{err} }
}

// --- Messages ---

type boardLoadedMsg struct {
	routines []RoutineItem
	todos    []ToDoItem
}

type templatesLoadedMsg struct {
	templates map[string]string
}

type daemonStatusMsg struct {
	online bool
}

type commandResultMsg struct {
	message string
}

type tickMsg struct{}

type errMsg struct {
	err error
}
