package tui

import (
	"testing"

	"github.com/fentz26/nandy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskState(t *testing.T) {
	tests := []struct {
		name  string
		flags models.Flags
		want  string
	}{
		{"pending", models.Flags{}, StatePending},
		{"active", models.Flags{Start: models.Float(1)}, StateActive},
		{"paused", models.Flags{Start: models.Float(1), Paused: models.Bool(true)}, StatePaused},
		{"done", models.Flags{Start: models.Float(1), End: models.Float(2)}, StateDone},
		{"skipped", models.Flags{Start: models.Float(1), End: models.Float(2), Skipped: models.Bool(true)}, StateSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, taskState(&tt.flags))
		})
	}
}

func TestNavigationClamps(t *testing.T) {
	a := New("http://127.0.0.1:0", "unit")
	a.routines = []RoutineItem{
		{ID: "r1", Tasks: []TaskItem{{Index: 0}, {Index: 1}}},
		{ID: "r2"},
	}
	a.todos = []ToDoItem{{ID: "t1"}}

	a.handleKey("right")
	a.handleKey("right")
	assert.Equal(t, 1, a.taskIdx)

	a.handleKey("down")
	a.handleKey("down")
	assert.Equal(t, 1, a.routineIdx)
	assert.Equal(t, 0, a.taskIdx)

	a.handleKey("tab")
	assert.Equal(t, modeToDos, a.mode)
	a.handleKey("down")
	assert.Equal(t, 0, a.todoIdx)
}

func TestFilterCycles(t *testing.T) {
	a := New("http://127.0.0.1:0", "")
	for _, want := range []string{"closed", "", "opened"} {
		require.NotNil(t, a.handleKey("f"))
		assert.Equal(t, want, a.status)
	}
}

func TestExecuteCommandErrors(t *testing.T) {
	a := New("http://127.0.0.1:0", "unit")

	msg := a.executeCommand("/dance")()
	require.IsType(t, errMsg{}, msg)
	assert.ErrorContains(t, msg.(errMsg).err, "unknown command")

	msg = a.executeCommand("todo")()
	require.IsType(t, errMsg{}, msg)
	assert.ErrorContains(t, msg.(errMsg).err, "usage")
}

func TestSuggestions(t *testing.T) {
	s := NewSuggestions()
	s.Update("/rem")
	require.True(t, s.IsVisible())
	assert.Equal(t, "remind", s.Selected().Text)
	assert.Equal(t, "remind ", s.Accept())

	s.Update("todo x")
	assert.False(t, s.IsVisible())

	s.SetTemplates(map[string]string{"id-b": "bedtime", "id-m": "morning"})
	s.Update("@")
	require.True(t, s.IsVisible())
	assert.Equal(t, "id-b", s.Selected().Text)
	s.Next()
	assert.Equal(t, "routine id-m", s.Accept())
	s.Prev()
	s.Prev()
	assert.Equal(t, "id-m", s.Selected().Text)
}
