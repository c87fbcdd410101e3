package engine

import (
	"context"
	"fmt"

	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/notify"
	"github.com/fentz26/nandy/internal/store"
)

// CreateToDo builds, announces and stores a new todo.
func (op *Op) CreateToDo(ctx context.Context, req BuildRequest) (*models.ToDo, error) {
	rec, err := op.Build(ctx, models.KindToDo, req)
	if err != nil {
		return nil, err
	}
	t := &models.ToDo{Record: *rec}
	if err := op.NotifyRecord(ctx, models.KindToDo, Create, &t.Record); err != nil {
		return nil, err
	}
	if err := op.store.CreateToDo(ctx, t); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return t, nil
}

// ToDoAction applies action to t and saves it when anything changed.
func (op *Op) ToDoAction(ctx context.Context, t *models.ToDo, action Action) (bool, error) {
	if !Has(ToDoActions, action) {
		return false, ErrUnknownAction
	}
	if action == Complete {
		return op.CompleteToDo(ctx, t)
	}
	updated, err := op.Transition(ctx, op.Subject(models.KindToDo, &t.Record), action)
	if err != nil || !updated {
		return updated, err
	}
	return true, op.saveToDo(ctx, t)
}

// CompleteToDo closes t, rights its area and records its act, then saves it.
func (op *Op) CompleteToDo(ctx context.Context, t *models.ToDo) (bool, error) {
	updated, err := op.Transition(ctx, op.Subject(models.KindToDo, &t.Record), Complete)
	if err != nil || !updated {
		return updated, err
	}

	if t.Data.Area != "" {
		area, err := op.store.GetArea(ctx, t.Data.Area)
		if err != nil {
			return false, fmt.Errorf("area %s of todo %s: %w", t.Data.Area, t.ID, err)
		}
		if _, err := op.AreaAction(ctx, area, Right); err != nil {
			return false, err
		}
	}

	if t.Data.Act != nil {
		_, err := op.CreateAct(ctx, BuildRequest{
			PersonID: t.PersonID,
			Status:   op.eng.statuses.Act.Active,
			Template: t.Data.Act,
		})
		if err != nil {
			return false, fmt.Errorf("act of todo %s: %w", t.ID, err)
		}
	}
	return true, op.saveToDo(ctx, t)
}

// UncompleteToDo reopens t and saves it.
func (op *Op) UncompleteToDo(ctx context.Context, t *models.ToDo) (bool, error) {
	return op.ToDoAction(ctx, t, Uncomplete)
}

func (op *Op) saveToDo(ctx context.Context, t *models.ToDo) error {
	if err := op.store.UpdateToDo(ctx, t); err != nil {
		return fmt.Errorf("update todo %s: %w", t.ID, err)
	}
	return nil
}

// RemindRequest selects whose todos to remind about. PersonID wins over
// Person, which is a name.
type RemindRequest struct {
	PersonID string         `json:"person_id,omitempty"`
	Person   string         `json:"person,omitempty"`
	Speech   map[string]any `json:"speech,omitempty"`
}

// RemindToDos stamps every open todo of a person and publishes one bulk
// reminder listing them. It reports false when there is nothing open.
func (op *Op) RemindToDos(ctx context.Context, req RemindRequest) (bool, error) {
	var (
		person *models.Person
		err    error
	)
	switch {
	case req.PersonID != "":
		person, err = op.Person(ctx, req.PersonID)
	case req.Person != "":
		person, err = op.store.FindPersonByName(ctx, req.Person)
	default:
		return false, ErrNoPerson
	}
	if err != nil {
		return false, fmt.Errorf("remind todos: %w", err)
	}

	todos, err := op.store.ListToDos(ctx, store.Filter{
		PersonID: person.ID,
		Status:   op.eng.statuses.ToDo.Active,
	})
	if err != nil {
		return false, fmt.Errorf("list open todos: %w", err)
	}
	if len(todos) == 0 {
		return false, nil
	}

	for i := range todos {
		todos[i].Data.Notified = models.Float(op.now)
		todos[i].Updated = op.now
		if err := op.saveToDo(ctx, &todos[i]); err != nil {
			return false, err
		}
	}

	op.Publish(ctx, notify.Message{
		Kind:   models.KindToDos,
		Action: string(Remind),
		Person: person,
		Speech: req.Speech,
		ToDos:  todos,
	})
	return true, nil
}
