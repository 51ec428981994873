package coordinator

import "errors"

// ErrLocked is returned by operations the lock screen hides.
var ErrLocked = errors.New("app is locked")
