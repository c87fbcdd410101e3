package tui

import (
	"fmt"

	"github.com/fentz26/nandy/internal/models"
)

// RoutineItem is a routine and its tasks as shown on the board.
type RoutineItem struct {
	ID     string
	Name   string
	Status string
	Paused bool
	Tasks  []TaskItem
}

// TaskItem is one task of a routine. Index addresses it in task actions.
type TaskItem struct {
	Index int
	Text  string
	State string
	Todo  string
}

// ToDoItem is a summary of a todo for the list view.
type ToDoItem struct {
	ID     string
	Name   string
	Text   string
	Status string
	Paused bool
}

// Task states derived from the lifecycle flags.
const (
	StatePending = "pending"
	StateActive  = "active"
	StatePaused  = "paused"
	StateDone    = "done"
	StateSkipped = "skipped"
)

func taskState(f *models.Flags) string {
	switch {
	case f.Done() && f.IsSkipped():
		return StateSkipped
	case f.Done():
		return StateDone
	case f.Active() && f.IsPaused():
		return StatePaused
	case f.Active():
		return StateActive
	}
	return StatePending
}

func routineItem(r models.Routine) RoutineItem {
	item := RoutineItem{
		ID:     r.ID,
		Name:   r.Name,
		Status: r.Status,
		Paused: r.Data.IsPaused(),
		Tasks:  make([]TaskItem, len(r.Data.Tasks)),
	}
	for i := range r.Data.Tasks {
		t := &r.Data.Tasks[i]
		text := t.Text
		if text == "" {
			text = fmt.Sprintf("task %d", i)
		}
		item.Tasks[i] = TaskItem{Index: i, Text: text, State: taskState(&t.Flags), Todo: t.Todo}
	}
	return item
}

func todoItem(t models.ToDo) ToDoItem {
	return ToDoItem{
		ID:     t.ID,
		Name:   t.Name,
		Text:   t.Data.Text,
		Status: t.Status,
		Paused: t.Data.IsPaused(),
	}
}
