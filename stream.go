package eventsocket

import (
	"context"
	"iter"
)

// Stream is an ongoing, non-replayable sequence of events of type E, starting
// at the moment the stream was created. Closing a stream only detaches it; it
// never closes the socket.
type Stream[E Event] struct {
	bus *bus
	sub *subscriber
}

func newStream[E Event](b *bus) *Stream[E] {
	return &Stream[E]{
		bus: b,
		sub: b.subscribe(func(ev Event) bool {
			_, ok := ev.(E)
			return ok
		}),
	}
}

// Next returns the next event, blocking until one arrives.
// It returns the zero E and a nil error once the connection completed after a
// caller-initiated disconnect, and a non-nil error when the connection
// terminated abnormally, the stream was closed, or ctx is done.
func (s *Stream[E]) Next(ctx context.Context) (E, error) {
	ev, _, err := s.next(ctx)
	return ev, err
}

func (s *Stream[E]) next(ctx context.Context) (E, bool, error) {
	var zero E

	ev, err := s.sub.next(ctx)
	if err != nil {
		return zero, false, err
	}
	if ev == nil {
		return zero, false, nil
	}
	return ev.(E), true, nil
}

// All returns an iterator over the remaining events in the stream.
// The iteration ends after yielding an error, or silently on completion.
func (s *Stream[E]) All(ctx context.Context) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		for {
			ev, ok, err := s.next(ctx)
			if err != nil {
				yield(ev, err)
				return
			}
			if !ok {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close detaches the stream from the connection.
func (s *Stream[E]) Close() {
	s.bus.unsubscribe(s.sub)
}

// Decoded returns an iterator that decodes every message of s into a T.
// Decoding failures are yielded as errors and end the iteration.
func Decoded[T any](ctx context.Context, s *Stream[*Message]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for msg, err := range s.All(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			value, err := Data[T](msg)
			if err != nil {
				yield(value, err)
				return
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}
