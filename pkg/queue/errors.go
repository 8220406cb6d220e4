package queue

import "errors"

// Sentinel errors forming the registry/driver-registry error taxonomy.
// Callers compare with errors.Is; wrapped causes are reachable via errors.Unwrap.
var (
	ErrAlreadyRegistered     = errors.New("queue: type already registered")
	ErrUnknownType           = errors.New("queue: unknown job type")
	ErrMissingType           = errors.New("queue: envelope missing \"type\"")
	ErrDeserializationFailed = errors.New("queue: deserialization failed")

	ErrDriverNotFound         = errors.New("queue: driver not found")
	ErrDriverAlreadyRegistered = errors.New("queue: driver already registered")
	ErrNoDefaultDriver        = errors.New("queue: no default driver configured")

	ErrDriverUnavailable = errors.New("queue: driver unavailable")
	ErrTimeout           = errors.New("queue: handler timed out")
	ErrHandlerFailure    = errors.New("queue: handler failure")
	ErrPersistence       = errors.New("queue: persistence failure")
	ErrValidation        = errors.New("queue: validation failure")

	ErrMiddlewareNotFound = errors.New("queue: middleware not found")
)

// PermanentError wraps a handler error to signal that no further retry
// should be attempted — the driver dead-letters it on the next failure path
// regardless of remaining attempts. Not part of the distilled spec; grounded
// in the pack's storacha-piri jobqueue worker, which has the same escape
// hatch for errors a caller already knows are non-retryable.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the driver treats it as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or a wrapped cause) is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
