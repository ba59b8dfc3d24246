package queue

import "errors"

// ErrInvalidTransition indicates an update would violate the monotonic
// status lifecycle (pending/scheduled -> uploading -> success/failed).
var ErrInvalidTransition = errors.New("invalid status transition")
