package i

import "context"

// Locker hands out locks shared by every server instance.
type Locker interface {
	// Lock blocks until the named lock is held and returns its release function.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}
