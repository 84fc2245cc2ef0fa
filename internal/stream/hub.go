package stream

import "sync"

// Hub is a multicast, latest-value broadcaster. Every subscriber holds at most
// one pending value; a publish replaces whatever the subscriber has not read
// yet, so a slow reader never blocks the publisher and always ends up with the
// newest value.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	latest T
	has    bool
}

// Subscription receives values published to a Hub until it is closed.
type Subscription[T any] struct {
	c    chan T
	hub  *Hub[T]
	once sync.Once
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Publish records v as the latest value and delivers it to every subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = v
	h.has = true
	for s := range h.subs {
		offer(s.c, v)
	}
}

// Update publishes the value returned by fn, which receives the current latest
// value. Returning false leaves the hub untouched. fn runs with the hub locked
// and must not call back into it.
func (h *Hub[T]) Update(fn func(old T, has bool) (T, bool)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := fn(h.latest, h.has)
	if !ok {
		return false
	}
	h.latest = v
	h.has = true
	for s := range h.subs {
		offer(s.c, v)
	}
	return true
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

// Subscribe registers a new subscriber. If a value was already published, it is
// delivered immediately.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{c: make(chan T, 1), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[s] = struct{}{}
	if h.has {
		s.c <- h.latest
	}
	return s
}

// Len reports the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// C returns the receive channel. It is closed when the subscription is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.c
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.c)
		s.hub.mu.Unlock()
	})
}

// offer must be called with the hub lock held; the lock makes the hub the only
// sender, so draining then sending cannot block.
func offer[T any](c chan T, v T) {
	select {
	case c <- v:
		return
	default:
	}
	select {
	case <-c:
	default:
	}
	c <- v
}
