// Package models defines the core domain types for Nandy.
package models

import "time"

// Kind names an entity type. It doubles as the notification "kind".
type Kind string

const (
	KindPerson   Kind = "person"
	KindTemplate Kind = "template"
	KindRoutine  Kind = "routine"
	KindTask     Kind = "task"
	KindToDo     Kind = "todo"
	KindAct      Kind = "act"
	KindArea     Kind = "area"

	// KindToDos marks the bulk reminder covering all of a person's open todos.
	KindToDos Kind = "todos"
)

// Valid reports whether k is a template kind (area, act, todo or routine).
func (k Kind) Valid() bool {
	switch k {
	case KindRoutine, KindToDo, KindAct, KindArea:
		return true
	}
	return false
}

// Person owns every other entity.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Template is a named payload snapshot used to seed new entities. The engine
// never mutates it.
type Template struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Kind Kind           `json:"kind"`
	Data map[string]any `json:"data"`
}

// Record is the row shape shared by routines, todos, acts and areas.
// Created and Updated are Unix epoch seconds.
type Record struct {
	ID       string  `json:"id"`
	PersonID string  `json:"person_id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Created  float64 `json:"created"`
	Updated  float64 `json:"updated"`
	Data     Payload `json:"data"`
}

// Routine is a multi-task guided activity. Its tasks live in Data.Tasks.
type Routine struct {
	Record
}

// ToDo is a standalone reminder.
type ToDo struct {
	Record
}

// Act is a recorded positive or negative event.
type Act struct {
	Record
}

// Area is a binary-outcome checkpoint toggled right or wrong.
type Area struct {
	Record
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	EntityID   string    `json:"entity_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Epoch converts t to the fractional Unix seconds used for every timestamp
// stored on records and payloads.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
