package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/store"
	"github.com/google/uuid"
)

// BuildRequest describes a new routine, todo, act or area. The payload is the
// template (inline or by id) deep-merged with Data; the scalar fields win over
// the same keys found in that merged payload.
type BuildRequest struct {
	Template   map[string]any `json:"template,omitempty"`
	TemplateID string         `json:"template_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`

	PersonID string   `json:"person_id,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Status   string   `json:"status,omitempty"`
	Language string   `json:"language,omitempty"`
	Created  *float64 `json:"created,omitempty"`
	Updated  *float64 `json:"updated,omitempty"`
}

// Build resolves req into a new record of kind with a fresh id. It reads
// persons, templates and, for routines, open todos, but writes nothing.
func (op *Op) Build(ctx context.Context, kind models.Kind, req BuildRequest) (*models.Record, error) {
	tmpl := req.Template
	if tmpl == nil && req.TemplateID != "" {
		t, err := op.store.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", req.TemplateID, err)
		}
		tmpl = t.Data
	}

	data := make(map[string]any)
	mergeInto(data, tmpl)
	mergeInto(data, req.Data)

	rec := &models.Record{ID: uuid.New().String()}

	personID, err := op.resolvePerson(ctx, req, data)
	if err != nil {
		return nil, err
	}
	rec.PersonID = personID

	rec.Name = req.Name
	if rec.Name == "" {
		rec.Name, _ = data["name"].(string)
	}
	rec.Status = req.Status
	if rec.Status == "" {
		rec.Status, _ = data["status"].(string)
	}
	if rec.Status == "" {
		rec.Status = op.eng.statuses.For(kind).Active
	}

	created, ok := pick(req.Created, data["created"])
	if !ok {
		created = op.now
	}
	rec.Created = created
	updated, ok := pick(req.Updated, data["updated"])
	if !ok {
		updated = created
	}
	rec.Updated = updated

	for _, key := range []string{"person_id", "name", "status", "created", "updated"} {
		delete(data, key)
	}

	if kind == models.KindRoutine {
		if req.Language != "" {
			data["language"] = req.Language
		}
		if lang, _ := data["language"].(string); lang == "" {
			data["language"] = op.eng.language
		}
	}

	payload, err := models.PayloadFromMap(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	rec.Data = payload

	if kind == models.KindRoutine {
		if err := op.seedTasks(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// resolvePerson picks the owner: explicit id, then person_id in the payload,
// then the explicit email, then a person name in the payload.
func (op *Op) resolvePerson(ctx context.Context, req BuildRequest, data map[string]any) (string, error) {
	id := req.PersonID
	if id == "" {
		id, _ = data["person_id"].(string)
	}
	if id != "" {
		p, err := op.Person(ctx, id)
		if err != nil {
			return "", fmt.Errorf("person %s: %w", id, err)
		}
		return p.ID, nil
	}

	var (
		p   *models.Person
		err error
	)
	switch name, _ := data["person"].(string); {
	case req.Email != "":
		p, err = op.store.FindPersonByEmail(ctx, req.Email)
		if err != nil {
			return "", fmt.Errorf("person with email %s: %w", req.Email, err)
		}
	case name != "":
		p, err = op.store.FindPersonByName(ctx, name)
		if err != nil {
			return "", fmt.Errorf("person %q: %w", name, err)
		}
	default:
		return "", ErrNoPerson
	}
	op.persons[p.ID] = p
	return p.ID, nil
}

// seedTasks prepends one task per open todo when the payload asks for it, then
// numbers every unnumbered task by position. The resulting ids must be the
// positions 0..n-1 in some order; a duplicate or out-of-range explicit id is
// ErrInvalidTemplate.
func (op *Op) seedTasks(ctx context.Context, rec *models.Record) error {
	if rec.Data.Todos {
		todos, err := op.store.ListToDos(ctx, store.Filter{
			PersonID: rec.PersonID,
			Status:   op.eng.statuses.ToDo.Active,
		})
		if err != nil {
			return fmt.Errorf("list open todos: %w", err)
		}
		seeded := make([]models.Task, 0, len(todos)+len(rec.Data.Tasks))
		for _, t := range todos {
			text := t.Data.Text
			if text == "" {
				text = t.Name
			}
			seeded = append(seeded, models.Task{Text: text, Todo: t.ID})
		}
		rec.Data.Tasks = append(seeded, rec.Data.Tasks...)
	}
	n := len(rec.Data.Tasks)
	seen := make(map[int]bool, n)
	for i := range rec.Data.Tasks {
		t := &rec.Data.Tasks[i]
		if t.ID == nil {
			t.ID = models.Int(i)
		}
		id := *t.ID
		if id < 0 || id >= n {
			return fmt.Errorf("%w: task %d has id %d outside 0..%d", ErrInvalidTemplate, i, id, n-1)
		}
		if seen[id] {
			return fmt.Errorf("%w: task %d repeats id %d", ErrInvalidTemplate, i, id)
		}
		seen[id] = true
	}
	return nil
}

// mergeInto deep-copies src into dst. Nested maps merge key by key; any other
// value replaces what dst held.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				mergeInto(cur, sub)
				continue
			}
			m := make(map[string]any, len(sub))
			mergeInto(m, sub)
			dst[k] = m
			continue
		}
		dst[k] = copyValue(v)
	}
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		mergeInto(m, x)
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

// pick returns explicit when set, else the numeric payload value.
func pick(explicit *float64, fallback any) (float64, bool) {
	if explicit != nil {
		return *explicit, true
	}
	switch n := fallback.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
