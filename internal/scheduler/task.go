package scheduler

import (
	"context"
	"fmt"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/notify"
)

// TaskAction applies action to the task at index taskID of r and saves r when
// anything changed.
func (op *Op) TaskAction(ctx context.Context, r *models.Routine, taskID int, action engine.Action) (bool, error) {
	if !engine.Has(TaskActions, action) {
		return false, engine.ErrUnknownAction
	}
	if taskID < 0 || taskID >= len(r.Data.Tasks) {
		return false, fmt.Errorf("%w: %d in routine %s", engine.ErrTaskNotFound, taskID, r.ID)
	}
	updated, err := op.taskAction(ctx, r, taskID, action)
	if err != nil || !updated {
		return updated, err
	}
	return true, op.save(ctx, r)
}

// taskAction mutates the i-th task and cascades into the routine and the
// linked todo. It does not save r.
func (op *Op) taskAction(ctx context.Context, r *models.Routine, i int, action engine.Action) (bool, error) {
	updated, err := op.Transition(ctx, &taskSubject{op: op, r: r, i: i}, action)
	if err != nil || !updated {
		return updated, err
	}

	switch action {
	case engine.Skip:
		return true, op.Check(ctx, r)
	case engine.Unskip:
		op.reopen(r, i)
		_, err := op.Transition(ctx, op.routine(r), engine.Uncomplete)
		return true, err
	case engine.Complete:
		if err := op.Check(ctx, r); err != nil {
			return true, err
		}
		if id := r.Data.Tasks[i].Todo; id != "" {
			t, err := op.store.GetToDo(ctx, id)
			if err != nil {
				return true, fmt.Errorf("todo %s of task %d: %w", id, i, err)
			}
			if _, err := op.CompleteToDo(ctx, t); err != nil {
				return true, err
			}
		}
	case engine.Uncomplete:
		op.reopen(r, i)
		if _, err := op.Transition(ctx, op.routine(r), engine.Uncomplete); err != nil {
			return true, err
		}
		if id := r.Data.Tasks[i].Todo; id != "" {
			t, err := op.store.GetToDo(ctx, id)
			if err != nil {
				return true, fmt.Errorf("todo %s of task %d: %w", id, i, err)
			}
			if _, err := op.UncompleteToDo(ctx, t); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

// reopen makes the reopened i-th task the only active one: any other task
// that started but has not ended goes back to pending.
func (op *Op) reopen(r *models.Routine, i int) {
	for j := range r.Data.Tasks {
		if j != i && r.Data.Tasks[j].Active() {
			r.Data.Tasks[j].Start = nil
		}
	}
}

// notifyTask stamps the task and its routine and publishes
// {kind: task, action, task, routine, person}.
func (op *Op) notifyTask(ctx context.Context, r *models.Routine, i int, action engine.Action) error {
	task := &r.Data.Tasks[i]
	task.Notified = models.Float(op.Now())
	r.Data.Notified = models.Float(op.Now())
	r.Updated = op.Now()

	person, err := op.Person(ctx, r.PersonID)
	if err != nil {
		return fmt.Errorf("notify task %s: %w", action, err)
	}
	snapshot := *task
	op.Publish(ctx, notify.Message{
		Kind:    models.KindTask,
		Action:  string(action),
		Task:    &snapshot,
		Routine: r,
		Person:  person,
	})
	return nil
}

// taskSubject adapts one embedded task to the lifecycle table. A task has no
// status column; it counts as terminal once it has ended.
type taskSubject struct {
	op *Op
	r  *models.Routine
	i  int
}

func (t *taskSubject) Flags() *models.Flags { return &t.r.Data.Tasks[t.i].Flags }

func (t *taskSubject) Terminal() bool { return t.r.Data.Tasks[t.i].End != nil }

func (t *taskSubject) SetTerminal(bool) {}

func (t *taskSubject) Notify(ctx context.Context, action engine.Action) error {
	return t.op.notifyTask(ctx, t.r, t.i, action)
}
