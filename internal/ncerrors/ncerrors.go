// Package ncerrors defines the error-kind taxonomy shared by the recording
// lifecycle engine. Components wrap one of these sentinels with fmt.Errorf
// and %w so callers can classify failures with errors.Is regardless of which
// subsystem produced them.
package ncerrors

import "errors"

var (
	// InvalidArgument marks a caller error: null path, empty stream name,
	// negative seconds. No state change is made.
	InvalidArgument = errors.New("invalid argument")

	// NotFound marks a missing entity: unknown stream, unknown recording id.
	NotFound = errors.New("not found")

	// Conflict marks a rejected duplicate or a racing operation, such as a
	// duplicate stream name or a commit without a matching begin.
	Conflict = errors.New("conflict")

	// Exhausted marks a resource budget hit, such as the packet buffer pool
	// being at its global memory budget.
	Exhausted = errors.New("resource exhausted")

	// Unavailable marks a subsystem that has not been initialized.
	Unavailable = errors.New("subsystem unavailable")

	// Io marks a filesystem or disk failure: missing file, disk full.
	Io = errors.New("i/o error")

	// Corruption marks a schema or data integrity failure.
	Corruption = errors.New("corruption detected")

	// Transient marks a retryable condition such as a storage lock
	// contention; callers retry with bounded backoff internally.
	Transient = errors.New("transient failure")

	// InvalidHandle marks an operation against a destroyed or unknown
	// handle (e.g. adding a packet to a destroyed buffer).
	InvalidHandle = errors.New("invalid handle")

	// UnknownFeature marks an operation against a feature flag name outside
	// the closed set the stream state manager recognizes.
	UnknownFeature = errors.New("unknown feature")
)

// Is reports whether err is, or wraps, kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
