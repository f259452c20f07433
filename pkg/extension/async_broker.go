package extension

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// AsyncEventBroker maintains a list of listeners notified after an event has completed.
// Events are sent in parallel to all listeners, and no result is returned.
type AsyncEventBroker[E any] struct {
	sync.RWMutex
	listeners listenerList[func(E)]
	wg        sync.WaitGroup
}

// Emit sends the event to each registered listener in its own goroutine.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.RLock()
	defer eb.RUnlock()

	for _, l := range eb.listeners.funcs {
		l := l
		eb.wg.Add(1)
		// Listeners get a copy of the event.
		go func(ev E) {
			defer eb.wg.Done()
			l(ev)
		}(*event)
	}
}

// Wait blocks until every listener started by Emit has returned.
func (eb *AsyncEventBroker[E]) Wait() {
	eb.wg.Wait()
}

// AddListener registers the named listener, replacing one with a duplicate name if
// present.
func (eb *AsyncEventBroker[E]) AddListener(name string, listener func(E)) {
	eb.Lock()
	defer eb.Unlock()

	eb.listeners.add(name, listener)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.Lock()
	defer eb.Unlock()

	eb.listeners.remove(name)
}

// Listeners returns the registered listener names.
func (eb *AsyncEventBroker[E]) Listeners() []string {
	eb.RLock()
	defer eb.RUnlock()

	return slices.Clone(eb.listeners.names)
}

// AsyncTestListener returns a func that will wait for an event and return it, or timeout
// with an error.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(ev E) {
		events <- ev
	})

	count := 0
	return func() (*E, error) {
		count++
		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case ev := <-events:
			return &ev, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
