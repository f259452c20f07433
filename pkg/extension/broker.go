package extension

import (
	"slices"
	"sync"
)

// listenerList is an ordered set of named listeners. Callers hold the broker lock.
type listenerList[F any] struct {
	names []string
	funcs []F
}

func (l *listenerList[F]) add(name string, fn F) {
	l.remove(name)
	l.names = append(l.names, name)
	l.funcs = append(l.funcs, fn)
}

func (l *listenerList[F]) remove(name string) {
	if i := slices.Index(l.names, name); i >= 0 {
		l.names = slices.Delete(l.names, i, i+1)
		l.funcs = slices.Delete(l.funcs, i, i+1)
	}
}

// EventBroker maintains an ordered list of listeners answering a synchronous event, such
// as a hook request arriving at a stage.
type EventBroker[E any, R any] struct {
	sync.RWMutex
	listeners listenerList[func(E) *R]
}

// Emit sends the event to each registered listener in order, until one returns a non-nil
// result. That result is returned along with the name of the listener that produced it;
// both are zero if no listener answered.
func (eb *EventBroker[E, R]) Emit(event *E) (*R, string) {
	eb.RLock()
	defer eb.RUnlock()

	for i, l := range eb.listeners.funcs {
		// Listeners get a copy of the event.
		if result := l(*event); result != nil {
			return result, eb.listeners.names[i]
		}
	}

	return nil, ""
}

// AddListener registers the named listener, replacing one with a duplicate name if
// present. Listeners should be added in order of priority, most significant first.
func (eb *EventBroker[E, R]) AddListener(name string, listener func(E) *R) {
	eb.Lock()
	defer eb.Unlock()

	eb.listeners.add(name, listener)
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.Lock()
	defer eb.Unlock()

	eb.listeners.remove(name)
}

// Listeners returns the registered listener names in priority order.
func (eb *EventBroker[E, R]) Listeners() []string {
	eb.RLock()
	defer eb.RUnlock()

	return slices.Clone(eb.listeners.names)
}
