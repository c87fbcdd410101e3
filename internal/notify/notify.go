// Package notify defines the change-notification contract for Nandy and its
// publishers.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/fentz26/nandy/internal/models"
)

// Message is one change notification. The entity field matching Kind is set;
// task messages also carry their routine and bulk reminders carry ToDos.
type Message struct {
	Kind    models.Kind     `json:"kind"`
	Action  string          `json:"action"`
	Person  *models.Person  `json:"person,omitempty"`
	Routine *models.Routine `json:"routine,omitempty"`
	Task    *models.Task    `json:"task,omitempty"`
	ToDo    *models.ToDo    `json:"todo,omitempty"`
	ToDos   []models.ToDo   `json:"todos,omitempty"`
	Act     *models.Act     `json:"act,omitempty"`
	Area    *models.Area    `json:"area,omitempty"`
	Speech  map[string]any  `json:"speech,omitempty"`
}

// Notifier publishes change notifications. Delivery is fire-and-forget:
// implementations report failures through their own logging.
type Notifier interface {
	Publish(ctx context.Context, msg Message)
}

// Nop discards every message.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, Message) {}

// Log writes every message to the standard logger.
type Log struct{}

// Publish implements Notifier.
func (Log) Publish(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: encode %s %s: %v", msg.Kind, msg.Action, err)
		return
	}
	log.Printf("notify: %s", data)
}

// Multi fans a message out to several notifiers in order.
type Multi []Notifier

// Publish implements Notifier.
func (m Multi) Publish(ctx context.Context, msg Message) {
	for _, n := range m {
		n.Publish(ctx, msg)
	}
}

// Recorder keeps a JSON snapshot of every published message. Snapshots are
// taken at publish time, so later mutation of the entities does not leak in.
type Recorder struct {
	mu  sync.Mutex
	raw [][]byte
}

// Publish implements Notifier.
func (r *Recorder) Publish(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: encode %s %s: %v", msg.Kind, msg.Action, err)
		return
	}
	r.mu.Lock()
	r.raw = append(r.raw, data)
	r.mu.Unlock()
}

// Messages decodes every recorded message in publish order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, 0, len(r.raw))
	for _, data := range r.raw {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Actions returns "kind:action" for every recorded message.
func (r *Recorder) Actions() []string {
	msgs := r.Messages()
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = string(msg.Kind) + ":" + msg.Action
	}
	return out
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.raw)
}

// Reset drops all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.raw = nil
	r.mu.Unlock()
}
