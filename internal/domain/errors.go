package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// NotImplementedError marks an operation the active backend does not
// support. Adapters must return it rather than silently no-op.
type NotImplementedError struct {
	Op string
}

func (e NotImplementedError) Error() string {
	if e.Op == "" {
		return "not implemented"
	}
	return fmt.Sprintf("%s not implemented", e.Op)
}

// Is enables errors.Is matching on NotImplementedError.
func (e NotImplementedError) Is(target error) bool {
	_, ok := target.(NotImplementedError)
	if ok {
		return true
	}
	_, ok = target.(*NotImplementedError)
	return ok
}

// ErrNotImplemented is the sentinel error for unsupported adapter
// operations.
var ErrNotImplemented = NotImplementedError{}

// StorageError distinguishes a failed local read/write from an empty
// result. The cloud-restore path depends on this distinction.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("local storage %s failed: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// Is enables errors.Is matching on StorageError.
func (e StorageError) Is(target error) bool {
	_, ok := target.(StorageError)
	if ok {
		return true
	}
	_, ok = target.(*StorageError)
	return ok
}

// TokenError marks a failed credentials exchange with the recognition
// provider, as opposed to a failed recognition call.
type TokenError struct {
	Err error
}

func (e TokenError) Error() string {
	return fmt.Sprintf("token fetch failed: %v", e.Err)
}

func (e TokenError) Unwrap() error { return e.Err }

// Is enables errors.Is matching on TokenError.
func (e TokenError) Is(target error) bool {
	_, ok := target.(TokenError)
	if ok {
		return true
	}
	_, ok = target.(*TokenError)
	return ok
}

// RecognitionError marks a failed identification call made with a
// valid token.
type RecognitionError struct {
	Err error
}

func (e RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed: %v", e.Err)
}

func (e RecognitionError) Unwrap() error { return e.Err }

// Is enables errors.Is matching on RecognitionError.
func (e RecognitionError) Is(target error) bool {
	_, ok := target.(RecognitionError)
	if ok {
		return true
	}
	_, ok = target.(*RecognitionError)
	return ok
}
