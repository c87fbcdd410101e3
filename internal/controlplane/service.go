// Package controlplane provides the HTTP API and service layer for Nandy.
package controlplane

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fentz26/nandy/internal/audit"
	"github.com/fentz26/nandy/internal/engine"
	"github.com/fentz26/nandy/internal/metrics"
	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/scheduler"
	"github.com/fentz26/nandy/internal/store"
)

// Service provides the control plane business logic. Every write runs in its
// own store transaction; audit and metrics are recorded once it has finished.
type Service struct {
	store   *store.Store
	eng     *engine.Engine
	sched   *scheduler.Scheduler
	pdr     *audit.PDRWriter
	metrics *metrics.Metrics
	clock   func() time.Time
}

// NewService creates a new control plane service. pdr and m may be nil.
func NewService(s *store.Store, eng *engine.Engine, pdr *audit.PDRWriter, m *metrics.Metrics) *Service {
	return &Service{
		store:   s,
		eng:     eng,
		sched:   scheduler.New(eng),
		pdr:     pdr,
		metrics: m,
		clock:   time.Now,
	}
}

// call describes one write for audit and metrics.
type call struct {
	kind     models.Kind
	action   string
	entityID string
	inputs   any
}

func (s *Service) run(ctx context.Context, c *call, fn func(tx *store.Tx) (bool, error)) (bool, error) {
	start := time.Now()
	var updated bool
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		updated, err = fn(tx)
		return err
	})
	if err != nil {
		updated = false
		log.Printf("%s %s %s: %v", c.kind, c.action, c.entityID, err)
	}

	outcome := audit.Outcome(updated, err)
	s.metrics.ObserveAction(string(c.kind), c.action, outcome, time.Since(start))
	details := ""
	if err != nil {
		details = err.Error()
	}
	s.pdr.Record(ctx, c.kind, c.action, c.inputs, outcome, c.entityID, details)
	return updated, err
}

// --- Person Operations ---

// CreatePerson stores a new person.
func (s *Service) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.Name == "" {
		return fmt.Errorf("%w: person name is required", ErrInvalidInput)
	}
	c := &call{kind: models.KindPerson, action: "create", inputs: p}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		if err := tx.CreatePerson(ctx, p); err != nil {
			return false, err
		}
		c.entityID = p.ID
		return true, nil
	})
	return err
}

// GetPerson retrieves a person by ID.
func (s *Service) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// ListPersons returns every person, optionally only those with the given name.
func (s *Service) ListPersons(ctx context.Context, name string) ([]models.Person, error) {
	if name != "" {
		p, err := s.store.FindPersonByName(ctx, name)
		if store.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.Person{*p}, nil
	}
	return s.store.ListPersons(ctx)
}

// PersonPatch holds the person fields to change.
type PersonPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// UpdatePerson applies patch to the person with the given ID.
func (s *Service) UpdatePerson(ctx context.Context, id string, patch PersonPatch) error {
	c := &call{kind: models.KindPerson, action: "update", entityID: id, inputs: patch}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		p, err := tx.GetPerson(ctx, id)
		if err != nil {
			return false, err
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Email != nil {
			p.Email = *patch.Email
		}
		return true, tx.UpdatePerson(ctx, p)
	})
	return err
}

// DeletePerson removes a person.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	c := &call{kind: models.KindPerson, action: "delete", entityID: id}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		return true, tx.DeletePerson(ctx, id)
	})
	return err
}

// --- Template Operations ---

// CreateTemplate stores a new template.
func (s *Service) CreateTemplate(ctx context.Context, t *models.Template) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, t.Kind)
	}
	if t.Data == nil {
		t.Data = map[string]any{}
	}
	c := &call{kind: models.KindTemplate, action: "create", inputs: t}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		if err := tx.CreateTemplate(ctx, t); err != nil {
			return false, err
		}
		c.entityID = t.ID
		return true, nil
	})
	return err
}

// GetTemplate retrieves a template by ID.
func (s *Service) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns templates, optionally only those of one kind.
func (s *Service) ListTemplates(ctx context.Context, kind models.Kind) ([]models.Template, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.store.ListTemplates(ctx, kind)
}

// TemplatePatch holds the template fields to change. Data replaces the
// stored payload wholesale.
type TemplatePatch struct {
	Name *string        `json:"name,omitempty"`
	Kind *models.Kind   `json:"kind,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// UpdateTemplate applies patch to the template with the given ID.
func (s *Service) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) error {
	if patch.Kind != nil && !patch.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, *patch.Kind)
	}
	c := &call{kind: models.KindTemplate, action: "update", entityID: id, inputs: patch}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		t, err := tx.GetTemplate(ctx, id)
		if err != nil {
			return false, err
		}
		if patch.Name != nil {
			t.Name = *patch.Name
		}
		if patch.Kind != nil {
			t.Kind = *patch.Kind
		}
		if patch.Data != nil {
			t.Data = patch.Data
		}
		return true, tx.UpdateTemplate(ctx, t)
	})
	return err
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	c := &call{kind: models.KindTemplate, action: "delete", entityID: id}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		return true, tx.DeleteTemplate(ctx, id)
	})
	return err
}

// --- Routine, ToDo, Act and Area Operations ---

// Create builds and stores a new routine, todo, act or area, running its
// creation side effects: routines start, todos, acts and areas announce
// themselves, and negative acts create their todo.
func (s *Service) Create(ctx context.Context, kind models.Kind, req engine.BuildRequest) (*models.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	var rec *models.Record
	c := &call{kind: kind, action: string(engine.Create), inputs: req}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		switch kind {
		case models.KindRoutine:
			r, err := s.sched.Begin(tx).Create(ctx, req)
			if err != nil {
				return false, err
			}
			rec = &r.Record
		case models.KindToDo:
			t, err := s.eng.Begin(tx).CreateToDo(ctx, req)
			if err != nil {
				return false, err
			}
			rec = &t.Record
		case models.KindAct:
			a, err := s.eng.Begin(tx).CreateAct(ctx, req)
			if err != nil {
				return false, err
			}
			rec = &a.Record
		case models.KindArea:
			a, err := s.eng.Begin(tx).CreateArea(ctx, req)
			if err != nil {
				return false, err
			}
			rec = &a.Record
		}
		c.entityID = rec.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves a record of kind by ID.
func (s *Service) Get(ctx context.Context, kind models.Kind, id string) (*models.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return getRecord(ctx, s.store, kind, id)
}

// List returns records of kind matching f.
func (s *Service) List(ctx context.Context, kind models.Kind, f store.Filter) ([]models.Record, error) {
	switch kind {
	case models.KindRoutine:
		items, err := s.store.ListRoutines(ctx, f)
		return records(items, func(r models.Routine) models.Record { return r.Record }), err
	case models.KindToDo:
		items, err := s.store.ListToDos(ctx, f)
		return records(items, func(t models.ToDo) models.Record { return t.Record }), err
	case models.KindAct:
		items, err := s.store.ListActs(ctx, f)
		return records(items, func(a models.Act) models.Record { return a.Record }), err
	case models.KindArea:
		items, err := s.store.ListAreas(ctx, f)
		return records(items, func(a models.Area) models.Record { return a.Record }), err
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// RecordPatch holds the record fields to change. Data replaces the stored
// payload wholesale. Patching bypasses the state machine: no notification
// goes out.
type RecordPatch struct {
	Name   *string        `json:"name,omitempty"`
	Status *string        `json:"status,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Update applies patch to the record of kind with the given ID.
func (s *Service) Update(ctx context.Context, kind models.Kind, id string, patch RecordPatch) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	c := &call{kind: kind, action: "update", entityID: id, inputs: patch}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		rec, err := getRecord(ctx, tx, kind, id)
		if err != nil {
			return false, err
		}
		if patch.Name != nil {
			rec.Name = *patch.Name
		}
		if patch.Status != nil {
			rec.Status = *patch.Status
		}
		if patch.Data != nil {
			payload, err := models.PayloadFromMap(patch.Data)
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			rec.Data = payload
		}
		rec.Updated = models.Epoch(s.clock())
		return true, updateRecord(ctx, tx, kind, rec)
	})
	return err
}

// Delete removes the record of kind with the given ID.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	c := &call{kind: kind, action: "delete", entityID: id}
	_, err := s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		switch kind {
		case models.KindRoutine:
			return true, tx.DeleteRoutine(ctx, id)
		case models.KindToDo:
			return true, tx.DeleteToDo(ctx, id)
		case models.KindAct:
			return true, tx.DeleteAct(ctx, id)
		default:
			return true, tx.DeleteArea(ctx, id)
		}
	})
	return err
}

// Action applies a verb to the record of kind with the given ID. It reports
// whether anything changed.
func (s *Service) Action(ctx context.Context, kind models.Kind, id string, action engine.Action) (bool, error) {
	c := &call{kind: kind, action: string(action), entityID: id, inputs: map[string]string{"id": id, "action": string(action)}}
	return s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		switch kind {
		case models.KindRoutine:
			r, err := tx.GetRoutine(ctx, id)
			if err != nil {
				return false, err
			}
			return s.sched.Begin(tx).RoutineAction(ctx, r, action)
		case models.KindToDo:
			t, err := tx.GetToDo(ctx, id)
			if err != nil {
				return false, err
			}
			return s.eng.Begin(tx).ToDoAction(ctx, t, action)
		case models.KindAct:
			a, err := tx.GetAct(ctx, id)
			if err != nil {
				return false, err
			}
			return s.eng.Begin(tx).ActAction(ctx, a, action)
		case models.KindArea:
			a, err := tx.GetArea(ctx, id)
			if err != nil {
				return false, err
			}
			return s.eng.Begin(tx).AreaAction(ctx, a, action)
		}
		return false, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	})
}

// TaskAction applies a verb to the task at index taskID of a routine.
func (s *Service) TaskAction(ctx context.Context, routineID string, taskID int, action engine.Action) (bool, error) {
	c := &call{
		kind:     models.KindTask,
		action:   string(action),
		entityID: routineID,
		inputs:   map[string]any{"routine_id": routineID, "task": taskID, "action": string(action)},
	}
	return s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		r, err := tx.GetRoutine(ctx, routineID)
		if err != nil {
			return false, err
		}
		return s.sched.Begin(tx).TaskAction(ctx, r, taskID, action)
	})
}

// RemindToDos sends one reminder covering all of a person's open todos.
func (s *Service) RemindToDos(ctx context.Context, req engine.RemindRequest) (bool, error) {
	c := &call{kind: models.KindToDos, action: string(engine.Remind), entityID: req.PersonID, inputs: req}
	return s.run(ctx, c, func(tx *store.Tx) (bool, error) {
		return s.eng.Begin(tx).RemindToDos(ctx, req)
	})
}

// History returns the audit trail of an entity, newest first.
func (s *Service) History(ctx context.Context, entityID string) ([]models.PDREntry, error) {
	if s.pdr == nil {
		return nil, nil
	}
	return s.pdr.History(ctx, entityID)
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// recordStore is implemented by both *store.Store and *store.Tx.
type recordStore interface {
	GetRoutine(ctx context.Context, id string) (*models.Routine, error)
	GetToDo(ctx context.Context, id string) (*models.ToDo, error)
	GetAct(ctx context.Context, id string) (*models.Act, error)
	GetArea(ctx context.Context, id string) (*models.Area, error)
}

func getRecord(ctx context.Context, st recordStore, kind models.Kind, id string) (*models.Record, error) {
	switch kind {
	case models.KindRoutine:
		r, err := st.GetRoutine(ctx, id)
		if err != nil {
			return nil, err
		}
		return &r.Record, nil
	case models.KindToDo:
		t, err := st.GetToDo(ctx, id)
		if err != nil {
			return nil, err
		}
		return &t.Record, nil
	case models.KindAct:
		a, err := st.GetAct(ctx, id)
		if err != nil {
			return nil, err
		}
		return &a.Record, nil
	case models.KindArea:
		a, err := st.GetArea(ctx, id)
		if err != nil {
			return nil, err
		}
		return &a.Record, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

func updateRecord(ctx context.Context, tx *store.Tx, kind models.Kind, rec *models.Record) error {
	switch kind {
	case models.KindRoutine:
		return tx.UpdateRoutine(ctx, &models.Routine{Record: *rec})
	case models.KindToDo:
		return tx.UpdateToDo(ctx, &models.ToDo{Record: *rec})
	case models.KindAct:
		return tx.UpdateAct(ctx, &models.Act{Record: *rec})
	case models.KindArea:
		return tx.UpdateArea(ctx, &models.Area{Record: *rec})
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

func records[T any](items []T, rec func(T) models.Record) []models.Record {
	out := make([]models.Record, len(items))
	for i, item := range items {
		out[i] = rec(item)
	}
	return out
}
