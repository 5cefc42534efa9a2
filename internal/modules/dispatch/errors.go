// README: Engine failure taxonomy mapped to transport codes at the edges.
package dispatch

import "errors"

var (
	// ErrValidation marks malformed or missing input. Recoverable by the
	// caller correcting the request.
	ErrValidation = errors.New("validation failure")
	// ErrConflict marks a state-incompatible transition. The caller should
	// re-fetch current state and retry the correct action.
	ErrConflict = errors.New("order state conflict")
	// ErrAccessDenied marks tenant mismatch or role violations. Not
	// retryable without re-authentication.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound marks an absent order, rider, or table.
	ErrNotFound = errors.New("not found")
)
