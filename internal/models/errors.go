package models

import "fmt"

// AuthError indicates there is no authenticated session. Raised before any
// network call is attempted.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "not authenticated"
	}
	return "not authenticated: " + e.Reason
}

// HTTPError is a non-2xx response from the catalog API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog API returned status %d", e.StatusCode)
}

// NetworkError is a transport-level failure talking to the catalog API.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DatabaseError is a local store I/O failure. Transactions are atomic, so a
// DatabaseError never leaves partially written state behind.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// ItemNotFoundError indicates an entry was absent where a fetch or lookup
// expected one.
type ItemNotFoundError struct {
	ID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q not found", e.ID)
}

// UnknownError is the catch-all, including "transcoding required but the
// server cannot transcode this source".
type UnknownError struct {
	Message string
	Err     error
}

func (e *UnknownError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UnknownError) Unwrap() error { return e.Err }
