package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/notify"
	"github.com/fentz26/nandy/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	sent   *notify.Recorder
	sched  *Scheduler
	now    int64
	person *models.Person
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{t: t, ctx: context.Background(), store: s, sent: &notify.Recorder{}, now: 7}
	eng := engine.New(f.sent, engine.WithClock(func() time.Time { return time.Unix(f.now, 0) }))
	f.sched = New(eng)

	f.person = &models.Person{Name: "unit", Email: "unit@test.com"}
	require.NoError(t, s.CreatePerson(f.ctx, f.person))
	return f
}

// run executes fn as one operation. fn must read through tx: the SQLite store
// has a single connection, held by the transaction.
func (f *fixture) run(fn func(op *Op, tx *store.Tx) error) error {
	return f.store.RunInTx(f.ctx, func(tx *store.Tx) error {
		return fn(f.sched.Begin(tx), tx)
	})
}

func (f *fixture) create(data map[string]any) *models.Routine {
	f.t.Helper()
	var r *models.Routine
	require.NoError(f.t, f.run(func(op *Op, _ *store.Tx) (err error) {
		r, err = op.Create(f.ctx, engine.BuildRequest{PersonID: f.person.ID, Name: "Unit", Data: data})
		return err
	}))
	return r
}

func (f *fixture) get(id string) *models.Routine {
	f.t.Helper()
	r, err := f.store.GetRoutine(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) routineAction(id string, action engine.Action) bool {
	f.t.Helper()
	var updated bool
	require.NoError(f.t, f.run(func(op *Op, tx *store.Tx) error {
		r, err := tx.GetRoutine(f.ctx, id)
		if err != nil {
			return err
		}
		updated, err = op.RoutineAction(f.ctx, r, action)
		return err
	}))
	return updated
}

func (f *fixture) taskAction(id string, task int, action engine.Action) bool {
	f.t.Helper()
	var updated bool
	require.NoError(f.t, f.run(func(op *Op, tx *store.Tx) error {
		r, err := tx.GetRoutine(f.ctx, id)
		if err != nil {
			return err
		}
		updated, err = op.TaskAction(f.ctx, r, task, action)
		return err
	}))
	return updated
}

func tasks(texts ...string) []any {
	out := make([]any, len(texts))
	for i, text := range texts {
		out[i] = map[string]any{"text": text}
	}
	return out
}

// activeTasks returns the indexes of tasks that started and have not ended.
func activeTasks(r *models.Routine) []int {
	var out []int
	for i := range r.Data.Tasks {
		if r.Data.Tasks[i].Active() {
			out = append(out, i)
		}
	}
	return out
}

func TestRoutineLifecycle(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})

	got := f.get(r.ID)
	assert.Equal(t, "opened", got.Status)
	assert.Equal(t, "en-us", got.Data.Language)
	assert.Equal(t, 7.0, *got.Data.Start)
	require.Len(t, got.Data.Tasks, 1)
	assert.Equal(t, 0, *got.Data.Tasks[0].ID)
	assert.Equal(t, 7.0, *got.Data.Tasks[0].Start)
	assert.Equal(t, 7.0, *got.Data.Tasks[0].Notified)
	assert.Equal(t, []string{"routine:start", "task:start"}, f.sent.Actions())

	f.sent.Reset()
	f.now = 8
	require.True(t, f.taskAction(r.ID, 0, engine.Complete))

	got = f.get(r.ID)
	assert.Equal(t, 8.0, *got.Data.Tasks[0].End)
	assert.Equal(t, "closed", got.Status)
	assert.Equal(t, 8.0, *got.Data.End)
	assert.Equal(t, 8.0, got.Updated)
	assert.Equal(t, []string{"task:complete", "routine:complete"}, f.sent.Actions())

	msgs := f.sent.Messages()
	require.NotNil(t, msgs[0].Task)
	require.NotNil(t, msgs[0].Routine)
	assert.Equal(t, r.ID, msgs[0].Routine.ID)
	assert.Equal(t, f.person.ID, msgs[0].Person.ID)
}

func TestCheckAnnouncesPausedTask(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": []any{
		map[string]any{"text": "do it"},
		map[string]any{"text": "moo it", "paused": true},
	}})
	assert.Equal(t, []int{0}, activeTasks(f.get(r.ID)))

	f.sent.Reset()
	f.now = 8
	require.True(t, f.taskAction(r.ID, 0, engine.Complete))

	got := f.get(r.ID)
	assert.Equal(t, 8.0, *got.Data.Tasks[1].Start)
	assert.Equal(t, "opened", got.Status)
	assert.Equal(t, []string{"task:complete", "task:pause"}, f.sent.Actions())
}

func TestCheckActivatesInListOrder(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("first", "second", "third")})
	assert.Equal(t, []int{0}, activeTasks(f.get(r.ID)))

	// skipping a later task leaves the active one alone
	require.True(t, f.taskAction(r.ID, 2, engine.Skip))
	assert.Equal(t, []int{0}, activeTasks(f.get(r.ID)))

	require.True(t, f.taskAction(r.ID, 0, engine.Complete))
	assert.Equal(t, []int{1}, activeTasks(f.get(r.ID)))

	require.True(t, f.taskAction(r.ID, 1, engine.Complete))
	got := f.get(r.ID)
	assert.Empty(t, activeTasks(got))
	assert.Equal(t, "closed", got.Status)
}

func TestTaskSkipAndUnskip(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})

	f.now = 8
	require.True(t, f.taskAction(r.ID, 0, engine.Skip))
	assert.False(t, f.taskAction(r.ID, 0, engine.Skip))
	got := f.get(r.ID)
	assert.True(t, got.Data.Tasks[0].IsSkipped())
	assert.Equal(t, 8.0, *got.Data.Tasks[0].End)
	assert.Equal(t, "closed", got.Status)

	f.sent.Reset()
	f.now = 9
	require.True(t, f.taskAction(r.ID, 0, engine.Unskip))
	got = f.get(r.ID)
	assert.False(t, got.Data.Tasks[0].IsSkipped())
	assert.Nil(t, got.Data.Tasks[0].End)
	assert.Equal(t, "opened", got.Status)
	assert.Nil(t, got.Data.End)
	assert.Equal(t, []string{"task:unskip", "routine:uncomplete"}, f.sent.Actions())
}

func TestTaskUncompleteKeepsOneActive(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("first", "second")})
	require.True(t, f.taskAction(r.ID, 0, engine.Complete))
	assert.Equal(t, []int{1}, activeTasks(f.get(r.ID)))

	require.True(t, f.taskAction(r.ID, 0, engine.Uncomplete))
	assert.False(t, f.taskAction(r.ID, 0, engine.Uncomplete))
	got := f.get(r.ID)
	assert.Equal(t, []int{0}, activeTasks(got))
	assert.True(t, got.Data.Tasks[1].Pending())

	require.True(t, f.taskAction(r.ID, 0, engine.Complete))
	assert.Equal(t, []int{1}, activeTasks(f.get(r.ID)))
}

func TestTaskUncompleteReopensRoutine(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})
	require.True(t, f.taskAction(r.ID, 0, engine.Complete))
	require.Equal(t, "closed", f.get(r.ID).Status)

	f.sent.Reset()
	require.True(t, f.taskAction(r.ID, 0, engine.Uncomplete))
	got := f.get(r.ID)
	assert.Equal(t, "opened", got.Status)
	assert.Nil(t, got.Data.End)
	assert.Equal(t, []int{0}, activeTasks(got))
	assert.Equal(t, []string{"task:uncomplete", "routine:uncomplete"}, f.sent.Actions())
}

func TestTaskPauseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})
	f.sent.Reset()

	assert.True(t, f.taskAction(r.ID, 0, engine.Pause))
	assert.False(t, f.taskAction(r.ID, 0, engine.Pause))
	assert.True(t, f.taskAction(r.ID, 0, engine.Unpause))
	assert.False(t, f.taskAction(r.ID, 0, engine.Unpause))
	assert.True(t, f.taskAction(r.ID, 0, engine.Remind))
	assert.Equal(t, []string{"task:pause", "task:unpause", "task:remind"}, f.sent.Actions())
}

func TestNext(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("first", "second")})

	require.True(t, f.routineAction(r.ID, engine.Next))
	assert.Equal(t, []int{1}, activeTasks(f.get(r.ID)))
	require.True(t, f.routineAction(r.ID, engine.Next))
	assert.Equal(t, "closed", f.get(r.ID).Status)
	assert.False(t, f.routineAction(r.ID, engine.Next))
}

func TestRoutineActions(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})
	f.sent.Reset()

	f.now = 8
	assert.True(t, f.routineAction(r.ID, engine.Pause))
	assert.False(t, f.routineAction(r.ID, engine.Pause))
	assert.True(t, f.get(r.ID).Data.IsPaused())

	assert.True(t, f.routineAction(r.ID, engine.Expire))
	got := f.get(r.ID)
	assert.Equal(t, "closed", got.Status)
	assert.True(t, got.Data.IsExpired())
	assert.Equal(t, 8.0, *got.Data.End)

	assert.True(t, f.routineAction(r.ID, engine.Unexpire))
	assert.Equal(t, "opened", f.get(r.ID).Status)

	assert.True(t, f.routineAction(r.ID, engine.Remind))
	assert.Equal(t, []string{"routine:pause", "routine:expire", "routine:unexpire", "routine:remind"}, f.sent.Actions())
}

func TestRoutineWithoutTasks(t *testing.T) {
	f := newFixture(t)
	r := f.create(nil)
	got := f.get(r.ID)
	assert.Equal(t, "opened", got.Status)
	assert.Nil(t, got.Data.Tasks)
	assert.False(t, f.routineAction(r.ID, engine.Next))

	// an explicit empty list has nothing left to do
	r = f.create(map[string]any{"tasks": []any{}})
	assert.Equal(t, "closed", f.get(r.ID).Status)
}

func TestTaskCompleteCascadesToToDo(t *testing.T) {
	f := newFixture(t)

	var area *models.Area
	var todo *models.ToDo
	require.NoError(t, f.run(func(op *Op, _ *store.Tx) (err error) {
		area, err = op.CreateArea(f.ctx, engine.BuildRequest{PersonID: f.person.ID, Name: "Room", Status: "negative"})
		if err != nil {
			return err
		}
		todo, err = op.CreateToDo(f.ctx, engine.BuildRequest{
			PersonID: f.person.ID,
			Name:     "Clean",
			Data:     map[string]any{"text": "clean room", "area": area.ID},
		})
		return err
	}))

	r := f.create(map[string]any{"todos": true, "tasks": tasks("brush teeth")})
	got := f.get(r.ID)
	require.Len(t, got.Data.Tasks, 2)
	assert.Equal(t, todo.ID, got.Data.Tasks[0].Todo)
	assert.Equal(t, "clean room", got.Data.Tasks[0].Text)

	f.sent.Reset()
	f.now = 8
	require.True(t, f.taskAction(r.ID, 0, engine.Complete))

	gotToDo, err := f.store.GetToDo(f.ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", gotToDo.Status)
	assert.Equal(t, 8.0, *gotToDo.Data.End)

	gotArea, err := f.store.GetArea(f.ctx, area.ID)
	require.NoError(t, err)
	assert.Equal(t, "positive", gotArea.Status)
	assert.Equal(t, []string{"task:complete", "task:start", "todo:complete", "area:right"}, f.sent.Actions())

	require.True(t, f.taskAction(r.ID, 0, engine.Uncomplete))
	gotToDo, err = f.store.GetToDo(f.ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "opened", gotToDo.Status)
}

func TestTaskErrors(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": tasks("do it")})

	err := f.run(func(op *Op, _ *store.Tx) error {
		_, err := op.TaskAction(f.ctx, r, 5, engine.Complete)
		return err
	})
	assert.ErrorIs(t, err, engine.ErrTaskNotFound)

	err = f.run(func(op *Op, _ *store.Tx) error {
		_, err := op.TaskAction(f.ctx, r, 0, engine.Expire)
		return err
	})
	assert.ErrorIs(t, err, engine.ErrUnknownAction)

	err = f.run(func(op *Op, _ *store.Tx) error {
		_, err := op.RoutineAction(f.ctx, r, engine.Right)
		return err
	})
	assert.ErrorIs(t, err, engine.ErrUnknownAction)
}

func TestLinkedToDoMissingRollsBack(t *testing.T) {
	f := newFixture(t)
	r := f.create(map[string]any{"tasks": []any{map[string]any{"text": "gone", "todo": "missing"}}})

	err := f.run(func(op *Op, tx *store.Tx) error {
		got, err := tx.GetRoutine(f.ctx, r.ID)
		if err != nil {
			return err
		}
		_, err = op.TaskAction(f.ctx, got, 0, engine.Complete)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, f.get(r.ID).Data.Tasks[0].End)
}
