package sync

import "errors"

// Error kinds from spec.md §7. These are sentinels wrapped with
// fmt.Errorf("...: %w", ErrX) by callers, matching the teacher's own
// error-wrapping idiom (internal/client, internal/cache) rather than
// introducing a typed-error hierarchy the rest of the module doesn't
// use.
var (
	// ErrStore marks an upstream backend rejection: network, auth or
	// protocol failure surfaced with source context.
	ErrStore = errors.New("store error")

	// ErrCache marks a cache DB open/execute/constraint failure.
	ErrCache = errors.New("cache error")

	// ErrIDMap marks a parse or I/O failure on the identifier-map file.
	ErrIDMap = errors.New("id-map error")

	// ErrLock marks a failed per-account lock acquisition: another run
	// is already in progress for this account.
	ErrLock = errors.New("sync already in progress")

	// ErrData marks an expected envelope/email that a previous hunk
	// assumed would be present and wasn't — a concurrent external
	// mutation. Non-fatal: the hunk is skipped and the run continues.
	ErrData = errors.New("expected data missing")

	// ErrCancelled marks cooperative cancellation observed at a stage
	// boundary.
	ErrCancelled = errors.New("sync cancelled")

	// ErrNotImplemented is returned by Store methods a backend doesn't
	// support (PurgeFolder/CopyEmails/MoveEmails on Remote, or SetFlags
	// on a store that only offers Add/Remove).
	ErrNotImplemented = errors.New("not implemented")
)
