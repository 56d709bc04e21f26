package tools

import "errors"

// Operation registry errors.
var (
	// ErrOperationNotFound is returned when an operation is not registered.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrOperationNameEmpty is returned when an operation has no name.
	ErrOperationNameEmpty = errors.New("operation name cannot be empty")

	// ErrOperationInvokeNil is returned when an operation has no invoke function.
	ErrOperationInvokeNil = errors.New("operation invoke function cannot be nil")

	// ErrDuplicateOperation is returned when registering a duplicate name.
	ErrDuplicateOperation = errors.New("operation already registered")

	// ErrRegistryFrozen is returned when registering after the catalog is frozen.
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrMissingRequiredArg is returned when a required argument is missing.
	ErrMissingRequiredArg = errors.New("missing required argument")
)

// Adapter errors, shared by all source connectors.
var (
	// ErrNotFound indicates the requested entity does not exist upstream.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the upstream source throttled the call.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransport indicates a network or protocol failure.
	ErrTransport = errors.New("transport error")

	// ErrMalformedArgs indicates arguments that fail the adapter's contract.
	ErrMalformedArgs = errors.New("malformed arguments")
)
