// Package scheduler runs routines: it decides which embedded task is active,
// advances it on completion, rolls the outcome up to the routine and cascades
// into linked todos.
package scheduler

import (
	"context"
	"fmt"

	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/models"
)

// Store is what a routine operation needs from the store. *store.Tx
// satisfies it.
type Store interface {
	engine.Store
	CreateRoutine(ctx context.Context, r *models.Routine) error
	UpdateRoutine(ctx context.Context, r *models.Routine) error
}

// RoutineActions are the verbs a routine accepts.
var RoutineActions = []engine.Action{
	engine.Remind, engine.Next,
	engine.Pause, engine.Unpause,
	engine.Skip, engine.Unskip,
	engine.Complete, engine.Uncomplete,
	engine.Expire, engine.Unexpire,
}

// TaskActions are the verbs a routine task accepts.
var TaskActions = []engine.Action{
	engine.Remind,
	engine.Pause, engine.Unpause,
	engine.Skip, engine.Unskip,
	engine.Complete, engine.Uncomplete,
}

// Scheduler starts routine operations.
type Scheduler struct {
	eng *engine.Engine
}

// New creates a scheduler on top of eng.
func New(eng *engine.Engine) *Scheduler {
	return &Scheduler{eng: eng}
}

// Op is one routine operation. It shares its clock reading and store with the
// embedded engine operation, so todo and area cascades stamp the same time.
type Op struct {
	*engine.Op
	store Store
}

// Begin starts an operation against s.
func (s *Scheduler) Begin(st Store) *Op {
	return &Op{Op: s.eng.Begin(st), store: st}
}

// Create builds a routine, stores it, starts it and stores it again.
func (op *Op) Create(ctx context.Context, req engine.BuildRequest) (*models.Routine, error) {
	rec, err := op.Build(ctx, models.KindRoutine, req)
	if err != nil {
		return nil, err
	}
	r := &models.Routine{Record: *rec}
	if err := op.store.CreateRoutine(ctx, r); err != nil {
		return nil, fmt.Errorf("create routine: %w", err)
	}
	if err := op.Start(ctx, r); err != nil {
		return nil, err
	}
	if err := op.save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Start stamps the routine's start, announces it and activates its first task.
func (op *Op) Start(ctx context.Context, r *models.Routine) error {
	if r.Data.Start == nil {
		r.Data.Start = models.Float(op.Now())
	}
	if err := op.NotifyRecord(ctx, models.KindRoutine, engine.Start, &r.Record); err != nil {
		return err
	}
	return op.Check(ctx, r)
}

// Check reconciles the task list. If a task is active nothing happens.
// Otherwise the first pending task in list order starts, announced as "pause"
// when it is flagged paused and "start" otherwise. With no pending task left
// the routine completes.
func (op *Op) Check(ctx context.Context, r *models.Routine) error {
	tasks := r.Data.Tasks
	if tasks == nil {
		return nil
	}
	for i := range tasks {
		if tasks[i].Active() {
			return nil
		}
	}
	for i := range tasks {
		if !tasks[i].Pending() {
			continue
		}
		tasks[i].Start = models.Float(op.Now())
		action := engine.Start
		if tasks[i].IsPaused() {
			action = engine.Pause
		}
		return op.notifyTask(ctx, r, i, action)
	}
	_, err := op.Transition(ctx, op.routine(r), engine.Complete)
	return err
}

// RoutineAction applies action to r and saves it when anything changed.
func (op *Op) RoutineAction(ctx context.Context, r *models.Routine, action engine.Action) (bool, error) {
	if !engine.Has(RoutineActions, action) {
		return false, engine.ErrUnknownAction
	}

	var (
		updated bool
		err     error
	)
	if action == engine.Next {
		updated, err = op.next(ctx, r)
	} else {
		updated, err = op.Transition(ctx, op.routine(r), action)
	}
	if err != nil || !updated {
		return updated, err
	}
	return true, op.save(ctx, r)
}

// next completes the active task, if there is one.
func (op *Op) next(ctx context.Context, r *models.Routine) (bool, error) {
	for i := range r.Data.Tasks {
		if r.Data.Tasks[i].Active() {
			return op.taskAction(ctx, r, i, engine.Complete)
		}
	}
	return false, nil
}

func (op *Op) routine(r *models.Routine) engine.Subject {
	return op.Subject(models.KindRoutine, &r.Record)
}

func (op *Op) save(ctx context.Context, r *models.Routine) error {
	if err := op.store.UpdateRoutine(ctx, r); err != nil {
		return fmt.Errorf("update routine %s: %w", r.ID, err)
	}
	return nil
}
