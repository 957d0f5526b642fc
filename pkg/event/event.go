// Package event provides the notification feed the UI subscribes to.
//
// Design principles:
// - Events are notifications; payloads carry ids, not full records
// - Each event type is a separate Go type for type safety
// - Clients refetch actual data over the HTTP API after a notification
package event

import (
	"sync"

	"github.com/ideanator/ideanator/pkg/utils"
)

// Event is the interface all event types must implement.
type Event interface {
	// EventName returns the unique name for this event type (e.g., "conversation.created")
	EventName() string
}

// Listener is a callback function for handling events.
type Listener func(Event)

// registration binds a listener to the stable id its unsubscribe function
// removes it by. Functions are not comparable, ids are.
type registration struct {
	id int
	fn Listener
}

// Emitter manages event subscriptions and dispatching.
type Emitter struct {
	mu           sync.RWMutex
	nextID       int
	listeners    map[string][]registration // eventName -> listeners
	allListeners []registration            // listeners for all events
}

// NewEmitter creates a new event emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]registration),
	}
}

// On subscribes to a specific event type.
// Returns an unsubscribe function.
func (e *Emitter) On(eventName string, fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[eventName] = append(e.listeners[eventName], registration{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		regs := e.listeners[eventName]
		for i, r := range regs {
			if r.id == id {
				e.listeners[eventName] = append(regs[:i], regs[i+1:]...)
				return
			}
		}
	}
}

// OnAny subscribes to all events.
func (e *Emitter) OnAny(fn Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.allListeners = append(e.allListeners, registration{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, r := range e.allListeners {
			if r.id == id {
				e.allListeners = append(e.allListeners[:i], e.allListeners[i+1:]...)
				return
			}
		}
	}
}

// Emit dispatches an event to all matching listeners.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy listeners to avoid holding lock during callbacks
	specific := make([]Listener, 0, len(e.listeners[ev.EventName()]))
	for _, r := range e.listeners[ev.EventName()] {
		specific = append(specific, r.fn)
	}
	all := make([]Listener, 0, len(e.allListeners))
	for _, r := range e.allListeners {
		all = append(all, r.fn)
	}
	e.mu.RUnlock()

	utils.GetLogger().Debug("Emitting event", "event", ev.EventName(),
		"specific", len(specific), "wildcard", len(all))

	for _, fn := range specific {
		fn(ev)
	}
	for _, fn := range all {
		fn(ev)
	}
}

// ---- Global Emitter ----

var globalEmitter *Emitter
var globalOnce sync.Once

// Global returns the global event emitter.
func Global() *Emitter {
	globalOnce.Do(func() {
		globalEmitter = NewEmitter()
	})
	return globalEmitter
}

// Emit is a shortcut for Global().Emit(ev).
func Emit(ev Event) {
	Global().Emit(ev)
}

// On is a shortcut for Global().On(eventName, fn).
func On(eventName string, fn Listener) func() {
	return Global().On(eventName, fn)
}
