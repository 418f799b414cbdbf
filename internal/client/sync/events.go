package sync

import "github.com/hearthside/homekeeper/internal/models"

// EventKind classifies engine notifications.
type EventKind int

const (
	// EventSyncStarted fires when a sync pass begins.
	EventSyncStarted EventKind = iota
	// EventSyncFinished fires when a sync pass ends, successfully or not.
	EventSyncFinished
	// EventConflict fires when an entity enters the Conflicted state.
	EventConflict
	// EventOperationFailed fires when an operation is abandoned after
	// exhausting its retries.
	EventOperationFailed
)

// Event is one engine notification delivered to subscribers.
type Event struct {
	Result     *Result
	LocalID    string
	Message    string
	EntityType models.EntityType
	Kind       EventKind
}

// Subscribe registers an event callback. The returned function removes the
// subscription. Callbacks run synchronously on the syncing goroutine and
// must not block.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

func (e *Engine) publish(ev Event) {
	e.mu.Lock()
	subs := make([]func(Event), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
