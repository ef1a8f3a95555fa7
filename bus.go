package eventsocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// bus is a hot multicast publish point. It keeps no replay buffer: an event
// published while nobody is subscribed is dropped, and a subscriber only sees
// events published after it attached. Publishing never blocks; every
// subscriber buffers its own backlog in order.
type bus struct {
	mu         sync.Mutex
	subs       map[string]*subscriber
	terminated bool
	err        error
}

func newBus() *bus {
	return &bus{
		subs: make(map[string]*subscriber),
	}
}

// subscribe attaches a subscriber that receives the events accept admits.
// On a terminated bus the subscriber is finished immediately with the
// terminal outcome.
func (b *bus) subscribe(accept func(Event) bool) *subscriber {
	s := newSubscriber(accept)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terminated {
		s.finish(b.err)
		return s
	}
	b.subs[s.id] = s
	return s
}

// unsubscribe detaches s. It never affects the socket.
func (b *bus) unsubscribe(s *subscriber) {
	b.mu.Lock()
	delete(b.subs, s.id)
	b.mu.Unlock()
	s.cancel()
}

// publish delivers ev to every current subscriber and reports whether anyone
// was listening.
func (b *bus) publish(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terminated || len(b.subs) == 0 {
		return false
	}
	for _, s := range b.subs {
		s.push(ev)
	}
	return true
}

// subscribers returns the number of attached subscribers.
func (b *bus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// complete ends every subscription without error.
func (b *bus) complete() {
	b.terminate(nil)
}

// fail ends every subscription with err.
func (b *bus) fail(err error) {
	b.terminate(err)
}

func (b *bus) terminate(err error) {
	b.mu.Lock()
	if b.terminated {
		b.mu.Unlock()
		return
	}
	b.terminated = true
	b.err = err
	subs := b.subs
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.finish(err)
	}
}

// subscriber is one attachment to the bus with an unbounded FIFO backlog.
type subscriber struct {
	id     string
	accept func(Event) bool

	mu        sync.Mutex
	queue     []Event
	finished  bool
	cancelled bool
	err       error
	notify    chan struct{}
}

func newSubscriber(accept func(Event) bool) *subscriber {
	return &subscriber{
		id:     uuid.New().String(),
		accept: accept,
		notify: make(chan struct{}, 1),
	}
}

func (s *subscriber) push(ev Event) {
	if s.accept != nil && !s.accept(ev) {
		return
	}

	s.mu.Lock()
	if s.finished || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	s.signal()
}

func (s *subscriber) finish(err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.err = err
	s.mu.Unlock()

	s.signal()
}

func (s *subscriber) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.queue = nil
	s.mu.Unlock()

	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// next returns the next buffered event. Buffered events are drained before
// the terminal outcome is reported. A nil event with a nil error means the
// subscription completed.
func (s *subscriber) next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		switch {
		case s.cancelled:
			s.mu.Unlock()
			return nil, ErrStreamClosed
		case len(s.queue) > 0:
			ev := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		case s.finished:
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}
