package poller

import (
	"slices"
	"sync"
	"time"
)

// StatusEvent is published on every phase transition.
type StatusEvent struct {
	State Phase     `json:"state"`
	At    time.Time `json:"at"`
}

// notifier fans status events out to registered callbacks. Callbacks run
// synchronously on the publishing goroutine and must not block.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(StatusEvent)
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]func(StatusEvent))}
}

func (n *notifier) subscribe(fn func(StatusEvent)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(event StatusEvent) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	callbacks := make([]func(StatusEvent), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		callbacks = append(callbacks, n.subs[id])
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}
