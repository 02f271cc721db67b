package storage

import "errors"

// Sentinel errors forming the datastore failure taxonomy. Callers classify
// failures with errors.Is and map them to transport-level responses; raw
// storage errors never leak past this package's wrapping.
var (
	// ErrNotFound indicates the referenced video, profile, or binding does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation: a duplicate video id or
	// a display name already held by another user.
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument indicates malformed caller input, such as an
	// unknown vote value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceBusy indicates a resource token could not be acquired
	// within the configured deadline.
	ErrResourceBusy = errors.New("resource busy")

	// ErrCorruptDataset indicates the persisted dataset failed to parse.
	// The store treats the data as absent and starts empty rather than
	// refusing to serve.
	ErrCorruptDataset = errors.New("corrupt dataset")
)
