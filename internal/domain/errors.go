package domain

import "fmt"

// TransportError wraps a network or timeout failure talking to the
// asset store or the search sidecar. Always recoverable: handlers turn
// it into a user-facing message, never a crash.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UploadError means the store rejected the file (quota, invalid file,
// network). The listing is left untouched.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upload failed: %s", e.Reason)
}

func (e *UploadError) Unwrap() error { return e.Err }

// RenameConflictError means the target identifier already exists in the
// store. Surfaced verbatim to the caller, no retry.
type RenameConflictError struct {
	Target string
}

func (e *RenameConflictError) Error() string {
	return fmt.Sprintf("a file named %q already exists", e.Target)
}

// DeletePartialFailure reports a bulk delete where some items failed.
// Failures are counted, not itemized.
type DeletePartialFailure struct {
	Deleted int
	Failed  int
}

func (e *DeletePartialFailure) Error() string {
	return fmt.Sprintf("Deleted %d file(s), %d failed", e.Deleted, e.Failed)
}

// ServiceUnavailableError means the semantic search sidecar did not
// pass its health probe. Literal search keeps working.
type ServiceUnavailableError struct {
	Service string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s service is not available", e.Service)
}
