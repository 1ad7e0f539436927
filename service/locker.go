package service

import (
	"context"
	"sync"
)

// LocalLocker is a Locker scoped to the current process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

// Lock blocks until name is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, name string) (func() error, error) {
	l.mu.Lock()
	ch, ok := l.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[name] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
