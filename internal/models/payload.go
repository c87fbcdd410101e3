package models

import (
	"encoding/json"
	"fmt"
)

// Flags are the lifecycle fields shared by entity payloads and embedded tasks.
// Pointers keep "never set" apart from "set to false", which the guarded
// transitions rely on.
type Flags struct {
	Paused   *bool    `json:"paused,omitempty"`
	Skipped  *bool    `json:"skipped,omitempty"`
	Expired  *bool    `json:"expired,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	End      *float64 `json:"end,omitempty"`
	Notified *float64 `json:"notified,omitempty"`
}

// IsPaused reports a paused flag that is set and true.
func (f *Flags) IsPaused() bool { return f.Paused != nil && *f.Paused }

// IsSkipped reports a skipped flag that is set and true.
func (f *Flags) IsSkipped() bool { return f.Skipped != nil && *f.Skipped }

// IsExpired reports an expired flag that is set and true.
func (f *Flags) IsExpired() bool { return f.Expired != nil && *f.Expired }

// Pending reports a task that has not started.
func (f *Flags) Pending() bool { return f.Start == nil }

// Active reports a task that started but has not ended.
func (f *Flags) Active() bool { return f.Start != nil && f.End == nil }

// Done reports a task that ended.
func (f *Flags) Done() bool { return f.End != nil }

// Payload is the mutable working document ("data") of a routine, todo, act or
// area. Fields the engine reads are typed; everything else lands in Extra and
// is written back untouched.
type Payload struct {
	Flags

	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	// Person is a person name the builder resolves to a person id.
	Person string `json:"person,omitempty"`
	// Todos asks the builder to prepend the person's open todos as tasks.
	Todos bool `json:"todos,omitempty"`
	// Area is the id of the area a todo rights on completion.
	Area string `json:"area,omitempty"`
	// ActID is the id of the act a todo was created from.
	ActID string `json:"act_id,omitempty"`
	// Act is an inline template for the act a todo creates on completion.
	Act map[string]any `json:"act,omitempty"`
	// Todo is an inline template for the todo an area or act creates when wrong.
	Todo map[string]any `json:"todo,omitempty"`
	// Tasks is nil when the routine has no task list at all.
	Tasks []Task `json:"tasks,omitempty"`

	Extra map[string]any `json:"-"`
}

var payloadKeys = []string{
	"paused", "skipped", "expired", "start", "end", "notified",
	"text", "language", "person", "todos", "area", "act_id", "act", "todo", "tasks",
}

type payloadFields Payload

// MarshalJSON merges the typed fields over Extra.
func (p Payload) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(payloadFields(p))
	if err != nil {
		return nil, err
	}
	out, err := mergeExtra(known, p.Extra)
	if err != nil {
		return nil, err
	}
	if p.Tasks != nil && len(p.Tasks) == 0 {
		out["tasks"] = []Task{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a document into typed fields and Extra.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var fields payloadFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	extra, err := splitExtra(b, payloadKeys)
	if err != nil {
		return err
	}
	*p = Payload(fields)
	p.Extra = extra
	return nil
}

// Map renders the payload as a plain document.
func (p Payload) Map() (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// PayloadFromMap decodes a plain document into a Payload.
func PayloadFromMap(m map[string]any) (Payload, error) {
	var p Payload
	if m == nil {
		return p, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return p, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// Task is one step of a routine. ID is its position in the routine's task
// list, assigned once when the routine is built.
type Task struct {
	Flags

	ID   *int   `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
	// Todo is the id of a linked todo completed alongside the task.
	Todo string `json:"todo,omitempty"`

	Extra map[string]any `json:"-"`
}

var taskKeys = []string{
	"paused", "skipped", "expired", "start", "end", "notified", "id", "text", "todo",
}

type taskFields Task

// MarshalJSON merges the typed fields over Extra.
func (t Task) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(taskFields(t))
	if err != nil {
		return nil, err
	}
	out, err := mergeExtra(known, t.Extra)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a task document into typed fields and Extra.
func (t *Task) UnmarshalJSON(b []byte) error {
	var fields taskFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	extra, err := splitExtra(b, taskKeys)
	if err != nil {
		return err
	}
	*t = Task(fields)
	t.Extra = extra
	return nil
}

func mergeExtra(known []byte, extra map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func splitExtra(b []byte, known []string) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode extra fields: %w", err)
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i.
func Int(i int) *int { return &i }
