package coordinator

import (
	"container/list"
	"context"
	"sync"
)

// transitionLock is a mutex that hands ownership to waiters strictly in the
// order they called lock. A waiter whose context ends leaves the queue
// without ever holding the lock.
type transitionLock struct {
	mu      sync.Mutex
	held    bool
	waiters list.List // of chan struct{}
}

func (l *transitionLock) lock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held && l.waiters.Len() == 0 {
		l.held = true
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := l.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// Ownership arrived while we were giving up; pass it on.
			l.mu.Unlock()
			l.unlock()
		default:
			l.waiters.Remove(elem)
			l.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (l *transitionLock) unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		panic("coordinator: unlock of unlocked transition lock")
	}

	front := l.waiters.Front()
	if front == nil {
		l.held = false
		return
	}
	// held stays true: ownership moves straight to the next waiter
	l.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// queued returns how many callers are waiting for the lock.
func (l *transitionLock) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}
