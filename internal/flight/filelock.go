package flight

import (
	"fmt"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock file placed in a feature's cast
// directory when cross-process locking is enabled.
const LockFileName = ".castkeeper.lock"

// TryLockFile takes a non-blocking exclusive flock on path. ok is false
// when another process holds it. The returned unlock is always non-nil.
func TryLockFile(path string) (unlock func(), ok bool, err error) {
	noop := func() {}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return noop, false, fmt.Errorf("flight: lock %s: %w", path, err)
	}
	if !locked {
		return noop, false, nil
	}

	// The file is left in place; removing it would let a waiter lock a
	// stale inode.
	return func() { _ = lock.Unlock() }, true, nil
}
