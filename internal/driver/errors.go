package driver

import "errors"

// Sentinel errors a Driver implementation returns so callers can classify
// failures with errors.Is regardless of the underlying transport.
var (
	ErrNotFound     = errors.New("driver: object not found")
	ErrAlreadyExist = errors.New("driver: object already exists")
	ErrNotSupported = errors.New("driver: operation not supported by this driver")
	ErrUnavailable  = errors.New("driver: destination unavailable")
)

// Error wraps a sentinel with the remote path and an optional
// driver-specific message, so errors.Is(err, ErrNotFound) keeps working
// through fmt.Errorf("%w", ...) wrapping upstream.
type Error struct {
	Op      string // e.g. "list", "copy_to", "delete"
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "driver: " + e.Op + " " + e.Path + ": " + e.Message
	}

	return "driver: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
