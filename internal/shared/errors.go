package shared

import "errors"

// ErrLockNotAcquired indicates a distributed lock is held elsewhere.
var ErrLockNotAcquired = errors.New("lock not acquired")
