package docstore

import (
	"log/slog"
	"sync"
)

// Hub fans collection-change notifications out to live subscriptions.
//
// Each subscription owns a single goroutine that reloads and delivers
// snapshots, so at most one SnapshotFunc invocation runs at a time per
// subscription. Notifications collapse: a burst of writes while a delivery
// is in flight results in one trailing snapshot, which is fine because every
// snapshot carries the full collection.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*hubSubscription]struct{}
}

// LoadFunc produces the current ordered snapshot of a collection. Failures
// are logged and the previous snapshot simply stands; failed loads are not
// retried and are indistinguishable from no change, matching the store
// contract.
type LoadFunc func() ([]Doc, error)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*hubSubscription]struct{})}
}

type hubSubscription struct {
	hub        *Hub
	collection string
	load       LoadFunc
	fn         SnapshotFunc

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Subscribe registers fn for the collection and schedules the initial
// snapshot delivery.
func (h *Hub) Subscribe(collection string, load LoadFunc, fn SnapshotFunc) Subscription {
	sub := &hubSubscription{
		hub:        h,
		collection: collection,
		load:       load,
		fn:         fn,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	set := h.subs[collection]
	if set == nil {
		set = make(map[*hubSubscription]struct{})
		h.subs[collection] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	sub.wake <- struct{}{}
	go sub.run()

	return sub
}

// Notify wakes every subscription on the collection. Safe to call from any
// goroutine, including inside a write path.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[collection] {
		select {
		case sub.wake <- struct{}{}:
		default: // a delivery is already pending; it will pick up this change
		}
	}
}

// Close cancels every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*hubSubscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
}

func (s *hubSubscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			docs, err := s.load()
			if err != nil {
				slog.Warn("Snapshot load failed", "collection", s.collection, "error", err)
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(docs)
		}
	}
}

// Unsubscribe stops delivery. Idempotent; a snapshot already executing may
// complete, but nothing further is delivered.
func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.hub.mu.Lock()
		if set := s.hub.subs[s.collection]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.collection)
			}
		}
		s.hub.mu.Unlock()
	})
}
