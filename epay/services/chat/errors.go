package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSendInProgress   = errors.New("chat: a send is already in flight")
	ErrUploadInProgress = errors.New("chat: an image upload is already in flight")
	ErrSessionClosed    = errors.New("chat: session closed")
	ErrRosterClosed     = errors.New("chat: roster closed")
	ErrReplyNotFound    = errors.New("chat: saved reply not found")

	errNoBlobStore = errors.New("no blob store configured")
)

// StoreError wraps a failed fetch, insert, delete or list.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Timeout reports whether the operation ran out of time.
func (e *StoreError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// UploadError wraps a blob store failure.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ValidationError is raised before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "required"}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
