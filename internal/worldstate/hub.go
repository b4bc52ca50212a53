package worldstate

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrFeedClosed is reported by subscriptions of a client that stopped
// without a more specific error.
var ErrFeedClosed = errors.New("worldstate feed closed")

// Hub is an in-memory fanout of T.
//
// Publish never blocks: a subscriber whose buffer is full misses the value
// and the drop is counted. Close ends every subscription with an error.
type Hub[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription[T]
	seq    atomic.Uint64
	closed bool
	err    error

	dropped atomic.Uint64
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: map[uint64]*Subscription[T]{}}
}

// Subscription is a receive side of a Hub.
type Subscription[T any] struct {
	C <-chan T

	ch   chan T
	once sync.Once
	err  atomic.Value // stores error
	hub  *Hub[T]
	id   uint64
}

// Err is the reason C was closed, or nil while it is open.
func (s *Subscription[T]) Err() error {
	v := s.err.Load()
	if v == nil {
		return nil
	}
	return v.(error)
}

// Unsubscribe detaches and closes C. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	s.close(ErrFeedClosed)
}

func (s *Subscription[T]) close(err error) {
	s.once.Do(func() {
		s.err.Store(err)
		close(s.ch)
	})
}

func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan T, buffer)
	s := &Subscription[T]{C: ch, ch: ch, hub: h, id: h.seq.Add(1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close(h.err)
		return s
	}
	h.subs[s.id] = s
	return s
}

func (h *Hub[T]) Publish(v T) {
	// Hold the read lock while sending so Close cannot close a channel
	// underneath us; sends never block.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.ch <- v:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close ends all current and future subscriptions with err.
func (h *Hub[T]) Close(err error) {
	if err == nil {
		err = ErrFeedClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed, h.err = true, err
	for id, s := range h.subs {
		delete(h.subs, id)
		s.close(err)
	}
}

// Dropped is the number of values subscribers missed because their buffer was full.
func (h *Hub[T]) Dropped() uint64 { return h.dropped.Load() }
