// Package engine implements the status state machine shared by todos, acts,
// areas and routines, the builder that seeds new entities, and the cascades
// between todos, areas and acts.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/nandy/internal/models"
	"github.com/fentz26/nandy/internal/notify"
	"github.com/fentz26/nandy/internal/store"
)

// DefaultLanguage is stamped on routines that do not name a language.
const DefaultLanguage = "en-us"

// Store is the slice of the entity store the engine works against. A
// *store.Tx satisfies it, so every Op runs inside one transaction.
type Store interface {
	GetPerson(ctx context.Context, id string) (*models.Person, error)
	FindPersonByName(ctx context.Context, name string) (*models.Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*models.Person, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)

	CreateToDo(ctx context.Context, t *models.ToDo) error
	GetToDo(ctx context.Context, id string) (*models.ToDo, error)
	ListToDos(ctx context.Context, f store.Filter) ([]models.ToDo, error)
	UpdateToDo(ctx context.Context, t *models.ToDo) error

	CreateAct(ctx context.Context, a *models.Act) error
	UpdateAct(ctx context.Context, a *models.Act) error

	CreateArea(ctx context.Context, a *models.Area) error
	GetArea(ctx context.Context, id string) (*models.Area, error)
	UpdateArea(ctx context.Context, a *models.Area) error
}

// StatusNames are the literals one kind uses for its active and terminal states.
type StatusNames struct {
	Active   string `yaml:"active" mapstructure:"active"`
	Terminal string `yaml:"terminal" mapstructure:"terminal"`
}

// Statuses holds the status literals for every status-bearing kind. For areas
// and acts Active is the positive value and Terminal the negative one.
type Statuses struct {
	Routine StatusNames `yaml:"routine" mapstructure:"routine"`
	ToDo    StatusNames `yaml:"todo" mapstructure:"todo"`
	Area    StatusNames `yaml:"area" mapstructure:"area"`
	Act     StatusNames `yaml:"act" mapstructure:"act"`
}

// DefaultStatuses returns opened/closed for routines and todos and
// positive/negative for areas and acts.
func DefaultStatuses() Statuses {
	return Statuses{
		Routine: StatusNames{Active: "opened", Terminal: "closed"},
		ToDo:    StatusNames{Active: "opened", Terminal: "closed"},
		Area:    StatusNames{Active: "positive", Terminal: "negative"},
		Act:     StatusNames{Active: "positive", Terminal: "negative"},
	}
}

// For returns the names used by kind.
func (s Statuses) For(kind models.Kind) StatusNames {
	switch kind {
	case models.KindRoutine:
		return s.Routine
	case models.KindToDo:
		return s.ToDo
	case models.KindArea:
		return s.Area
	case models.KindAct:
		return s.Act
	}
	return StatusNames{}
}

// Engine holds the dependencies shared by every operation.
type Engine struct {
	notifier notify.Notifier
	clock    func() time.Time
	statuses Statuses
	language string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithStatuses replaces the default status literals.
func WithStatuses(s Statuses) Option {
	return func(e *Engine) { e.statuses = s }
}

// WithLanguage replaces DefaultLanguage.
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		if lang != "" {
			e.language = lang
		}
	}
}

// New creates an engine publishing to n.
func New(n notify.Notifier, opts ...Option) *Engine {
	if n == nil {
		n = notify.Nop{}
	}
	e := &Engine{
		notifier: n,
		clock:    time.Now,
		statuses: DefaultStatuses(),
		language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Statuses returns the configured status literals.
func (e *Engine) Statuses() Statuses {
	return e.statuses
}

// Op is one logical operation: a store unit of work plus a single clock
// reading that every timestamp written during the operation shares.
type Op struct {
	eng     *Engine
	store   Store
	now     float64
	persons map[string]*models.Person
}

// Begin starts an operation against s, reading the clock once.
func (e *Engine) Begin(s Store) *Op {
	return &Op{
		eng:     e,
		store:   s,
		now:     models.Epoch(e.clock()),
		persons: make(map[string]*models.Person),
	}
}

// Now returns the timestamp of this operation.
func (op *Op) Now() float64 {
	return op.now
}

// Statuses returns the engine's status literals.
func (op *Op) Statuses() Statuses {
	return op.eng.statuses
}

// Person loads a person once per operation.
func (op *Op) Person(ctx context.Context, id string) (*models.Person, error) {
	if p, ok := op.persons[id]; ok {
		return p, nil
	}
	p, err := op.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	op.persons[id] = p
	return p, nil
}

// Publish hands msg to the notifier.
func (op *Op) Publish(ctx context.Context, msg notify.Message) {
	op.eng.notifier.Publish(ctx, msg)
}

// NotifyRecord stamps notified/updated on rec and publishes
// {kind, action, <kind>: rec, person}.
func (op *Op) NotifyRecord(ctx context.Context, kind models.Kind, action Action, rec *models.Record) error {
	rec.Data.Notified = models.Float(op.now)
	rec.Updated = op.now

	person, err := op.Person(ctx, rec.PersonID)
	if err != nil {
		return fmt.Errorf("notify %s %s: %w", kind, action, err)
	}

	msg := notify.Message{Kind: kind, Action: string(action), Person: person}
	switch kind {
	case models.KindRoutine:
		msg.Routine = &models.Routine{Record: *rec}
	case models.KindToDo:
		msg.ToDo = &models.ToDo{Record: *rec}
	case models.KindAct:
		msg.Act = &models.Act{Record: *rec}
	case models.KindArea:
		msg.Area = &models.Area{Record: *rec}
	}
	op.Publish(ctx, msg)
	return nil
}

// Subject adapts a record of kind to the lifecycle table.
func (op *Op) Subject(kind models.Kind, rec *models.Record) Subject {
	return &recordSubject{op: op, kind: kind, rec: rec, names: op.eng.statuses.For(kind)}
}

type recordSubject struct {
	op    *Op
	kind  models.Kind
	rec   *models.Record
	names StatusNames
}

func (s *recordSubject) Flags() *models.Flags { return &s.rec.Data.Flags }

func (s *recordSubject) Terminal() bool { return s.rec.Status == s.names.Terminal }

func (s *recordSubject) SetTerminal(terminal bool) {
	if terminal {
		s.rec.Status = s.names.Terminal
	} else {
		s.rec.Status = s.names.Active
	}
}

func (s *recordSubject) Notify(ctx context.Context, action Action) error {
	return s.op.NotifyRecord(ctx, s.kind, action, s.rec)
}
