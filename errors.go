package bootsel

import "errors"

// Sentinel errors for the taxonomy this core distinguishes internally.
// Recoverable causes (invalid header, validation failure, ROM mismatch,
// revert erase, RAM-load failure, dependency-unsatisfied) never escape
// C4/C7 as errors; they drive the selection/retry loop instead. Only
// unrecoverable causes are returned to callers.
var (
	ErrOpenArea       = errors.New("bootsel: failed to open a required flash area")
	ErrHeaderIO       = errors.New("bootsel: I/O fault reading an image header")
	ErrNoCandidate    = errors.New("bootsel: no bootable slot remains for an image")
	ErrRollbackUpdate = errors.New("bootsel: security counter update failed")
	ErrSharedData     = errors.New("bootsel: shared data injection failed")
	ErrScrambleFailed = errors.New("bootsel: could not erase a slot marked for revert")
	ErrBadDependency  = errors.New("bootsel: malformed dependency TLV")
	ErrDegenerateLoop = errors.New("bootsel: dependency loop invoked with no images to check")
	ErrBootFailed     = errors.New("bootsel: boot_go failed")
	ErrNotImplemented = errors.New("bootsel: mode not implemented")
)
