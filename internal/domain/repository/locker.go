package repository

import "context"

// Locker serializes work on a key across requests.
// Acquire blocks until the lock is held or ctx ends; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
