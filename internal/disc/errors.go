package disc

import "errors"

// ErrBackendUnavailable marks failures caused by the disc tooling not being
// installed or reachable yet.
var ErrBackendUnavailable = errors.New("disc backend unavailable")

// ErrNotEjectable marks drives MakeMKV reported without a device node.
var ErrNotEjectable = errors.New("drive has no device node")
