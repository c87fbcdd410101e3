package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) renderRoutines(height int) string {
	if len(a.routines) == 0 {
		return "\n  No routines. Type @ to start one from a template.\n"
	}

	var lines []string
	for i, r := range a.routines {
		label := fmt.Sprintf("%s  %s  %s", formatStatus(r.Status, r.Paused), r.Name, progress(r.Tasks))
		if i == a.routineIdx {
			lines = append(lines, selectedStyle.Render("▶ "+label))
		} else {
			lines = append(lines, itemStyle.Render("  "+label))
		}
	}
	list := strings.Join(window(lines, a.routineIdx, height/2), "\n")

	r := a.selectedRoutine()
	if r == nil {
		return list
	}
	var tasks []string
	for i, t := range r.Tasks {
		line := fmt.Sprintf("%d. %s %s", t.Index, formatState(t.State), t.Text)
		if t.Todo != "" {
			line += lipgloss.NewStyle().Foreground(mutedColor).Render("  (todo)")
		}
		if i == a.taskIdx {
			line = selectedStyle.Render(line)
		}
		tasks = append(tasks, line)
	}
	if len(tasks) == 0 {
		tasks = []string{lipgloss.NewStyle().Foreground(mutedColor).Render("no tasks")}
	}
	panel := panelStyle.Width(max(a.width-4, 20)).Render(strings.Join(window(tasks, a.taskIdx, height/2), "\n"))
	return list + "\n" + panel
}

func (a *App) renderToDos(height int) string {
	if len(a.todos) == 0 {
		return "\n  No todos. Type /todo <name> to add one.\n"
	}

	var lines []string
	for i, t := range a.todos {
		label := fmt.Sprintf("%s  %s", formatStatus(t.Status, t.Paused), t.Name)
		if t.Text != "" && t.Text != t.Name {
			label += lipgloss.NewStyle().Foreground(mutedColor).Render("  " + t.Text)
		}
		if i == a.todoIdx {
			lines = append(lines, selectedStyle.Render("▶ "+label))
		} else {
			lines = append(lines, itemStyle.Render("  "+label))
		}
	}
	return strings.Join(window(lines, a.todoIdx, height), "\n")
}

// window limits lines to height, keeping selected in view.
func window(lines []string, selected, height int) []string {
	if height < 1 || len(lines) <= height {
		return lines
	}
	start := selected - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(lines) {
		end = len(lines)
		start = max(0, end-height)
	}
	return lines[start:end]
}

func progress(tasks []TaskItem) string {
	if len(tasks) == 0 {
		return ""
	}
	done := 0
	for _, t := range tasks {
		if t.State == StateDone || t.State == StateSkipped {
			done++
		}
	}
	return lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("%d/%d", done, len(tasks)))
}

func formatStatus(status string, paused bool) string {
	if paused {
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐ " + strings.ToUpper(status))
	}
	switch status {
	case "opened", "positive":
		return lipgloss.NewStyle().Foreground(cyanColor).Render("○ " + strings.ToUpper(status))
	case "closed":
		return lipgloss.NewStyle().Foreground(successColor).Render("● CLOSED")
	case "negative":
		return lipgloss.NewStyle().Foreground(errorColor).Render("● NEGATIVE")
	}
	return strings.ToUpper(status)
}

func formatState(state string) string {
	switch state {
	case StateActive:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("▶")
	case StatePaused:
		return lipgloss.NewStyle().Foreground(warningColor).Render("‖")
	case StateDone:
		return lipgloss.NewStyle().Foreground(successColor).Render("✓")
	case StateSkipped:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("↷")
	}
	return lipgloss.NewStyle().Foreground(mutedColor).Render("○")
}
