package engine

import (
	"context"

	"github.com/fentz26/nandy/internal/models"
)

// Action is a verb applied to an entity.
type Action string

// Lifecycle verbs.
const (
	Remind     Action = "remind"
	Pause      Action = "pause"
	Unpause    Action = "unpause"
	Skip       Action = "skip"
	Unskip     Action = "unskip"
	Complete   Action = "complete"
	Uncomplete Action = "uncomplete"
	Expire     Action = "expire"
	Unexpire   Action = "unexpire"
)

// Other verbs and notification actions.
const (
	Create Action = "create"
	Start  Action = "start"
	Next   Action = "next"
	Right  Action = "right"
	Wrong  Action = "wrong"
)

// ToDoActions are the verbs a todo accepts.
var ToDoActions = []Action{Remind, Pause, Unpause, Skip, Unskip, Complete, Uncomplete, Expire, Unexpire}

// ValueActions are the verbs areas and acts accept.
var ValueActions = []Action{Right, Wrong}

// Has reports whether a is in actions.
func Has(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

// Subject is anything the lifecycle table can transition: a record with a
// status column or a routine task whose terminal state is its end flag.
type Subject interface {
	Flags() *models.Flags
	Terminal() bool
	SetTerminal(terminal bool)
	Notify(ctx context.Context, action Action) error
}

type transition struct {
	guard func(s Subject) bool
	apply func(s Subject, now float64)
}

var lifecycle = map[Action]transition{
	Remind: {
		guard: func(Subject) bool { return true },
		apply: func(Subject, float64) {},
	},
	Pause: {
		guard: func(s Subject) bool { return !s.Flags().IsPaused() },
		apply: func(s Subject, _ float64) { s.Flags().Paused = models.Bool(true) },
	},
	Unpause: {
		guard: func(s Subject) bool { return s.Flags().IsPaused() },
		apply: func(s Subject, _ float64) { s.Flags().Paused = models.Bool(false) },
	},
	Skip: {
		guard: func(s Subject) bool { return !s.Flags().IsSkipped() },
		apply: func(s Subject, now float64) {
			f := s.Flags()
			f.Skipped = models.Bool(true)
			finish(f, now)
			s.SetTerminal(true)
		},
	},
	Unskip: {
		guard: func(s Subject) bool { return s.Flags().IsSkipped() },
		apply: func(s Subject, _ float64) {
			f := s.Flags()
			f.Skipped = models.Bool(false)
			f.End = nil
			s.SetTerminal(false)
		},
	},
	Complete: {
		guard: func(s Subject) bool { return s.Flags().End == nil || !s.Terminal() },
		apply: func(s Subject, now float64) {
			finish(s.Flags(), now)
			s.SetTerminal(true)
		},
	},
	Uncomplete: {
		guard: func(s Subject) bool { return s.Flags().End != nil || s.Terminal() },
		apply: func(s Subject, _ float64) {
			s.Flags().End = nil
			s.SetTerminal(false)
		},
	},
	Expire: {
		guard: func(s Subject) bool { return !s.Flags().IsExpired() },
		apply: func(s Subject, now float64) {
			f := s.Flags()
			f.Expired = models.Bool(true)
			f.End = models.Float(now)
			s.SetTerminal(true)
		},
	},
	Unexpire: {
		guard: func(s Subject) bool { return s.Flags().IsExpired() },
		apply: func(s Subject, _ float64) {
			f := s.Flags()
			f.Expired = models.Bool(false)
			f.End = nil
			s.SetTerminal(false)
		},
	},
}

// finish sets end, and start when it was never set.
func finish(f *models.Flags, now float64) {
	if f.Start == nil {
		f.Start = models.Float(now)
	}
	f.End = models.Float(now)
}

// Transition applies a lifecycle verb to s. When the guard fails nothing
// changes and no notification goes out; otherwise the mutation is applied and
// s is notified with the verb. It never persists s.
func (op *Op) Transition(ctx context.Context, s Subject, action Action) (bool, error) {
	t, ok := lifecycle[action]
	if !ok {
		return false, ErrUnknownAction
	}
	if !t.guard(s) {
		return false, nil
	}
	t.apply(s, op.now)
	if err := s.Notify(ctx, action); err != nil {
		return false, err
	}
	return true, nil
}
