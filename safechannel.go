package sched_go

import (
	"fmt"
	"sync"
)

// SafeChannel is a buffered channel that tolerates sends after close and
// double closes. The scheduler uses it to publish structural errors without
// ever blocking Add or Remove.
type SafeChannel[T any] struct {
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

// NewSafeChannelGen creates a new SafeChannel with the given buffer size.
func NewSafeChannelGen[T any](buffer int) *SafeChannel[T] {
	return &SafeChannel[T]{ch: make(chan T, buffer)}
}

// Send delivers value without blocking. It returns false when the channel is
// closed or its buffer is full.
func (sc *SafeChannel[T]) Send(value T) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if sc.closed {
		return false
	}
	select {
	case sc.ch <- value:
		return true
	default:
		return false
	}
}

// Drain removes and returns every value currently buffered.
func (sc *SafeChannel[T]) Drain() []T {
	var out []T
	for {
		select {
		case v, ok := <-sc.ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

// Close closes the underlying channel exactly once.
func (sc *SafeChannel[T]) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return fmt.Errorf("channel already closed")
	}
	close(sc.ch)
	sc.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (sc *SafeChannel[T]) IsClosed() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.closed
}

// GetChannel returns the underlying channel for range/select operations.
func (sc *SafeChannel[T]) GetChannel() <-chan T {
	return sc.ch
}
