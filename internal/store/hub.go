package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh document id. ULIDs sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

// Hub fans snapshots out to subscribers. Each subscriber gets its own
// delivery goroutine and a one-slot mailbox: if a newer snapshot arrives
// before the previous one was delivered, the older one is dropped.
//
// Backends call Add and Publish while holding their own write lock so that
// no change slips between the initial snapshot and the first Publish.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[string]*subscription
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]*subscription)}
}

type subscription struct {
	id      string
	fn      Listener
	mailbox chan Snapshot
	done    chan struct{}
	once    sync.Once
}

// Add registers fn for collection, queues initial for delivery and returns
// the func that ends the subscription. Cancelling ctx ends it too.
func (h *Hub) Add(ctx context.Context, collection string, initial Snapshot, fn Listener) Unsubscribe {
	s := &subscription{
		id:      uuid.NewString(),
		fn:      fn,
		mailbox: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[collection]
	if !ok {
		set = make(map[string]*subscription)
		h.subs[collection] = set
	}
	set[s.id] = s
	h.mu.Unlock()

	s.offer(initial)
	go s.run()

	end := func() {
		s.once.Do(func() {
			close(s.done)
			h.remove(collection, s.id)
		})
	}
	stop := context.AfterFunc(ctx, end)
	return func() {
		stop()
		end()
	}
}

// Publish hands snap to every subscriber of snap.Collection.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.subs[snap.Collection]))
	for _, s := range h.subs[snap.Collection] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.offer(snap)
	}
}

// Len reports the number of live subscriptions on collection.
func (h *Hub) Len(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*subscription
	for _, set := range h.subs {
		for _, s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[string]*subscription)
	h.mu.Unlock()

	for _, s := range all {
		s.once.Do(func() { close(s.done) })
	}
}

func (h *Hub) remove(collection, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[collection]
	delete(set, id)
	if len(set) == 0 {
		delete(h.subs, collection)
	}
}

// offer replaces whatever is waiting in the mailbox with snap.
func (s *subscription) offer(snap Snapshot) {
	for {
		select {
		case s.mailbox <- snap:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.mailbox:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(snap)
		}
	}
}
