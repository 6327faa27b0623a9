package generator

import "errors"

// Errors returned by Registry mutations. All failed operations are no-ops on the
// data model; callers can retry with a corrected id or surface a message.
var (
	// ErrNotFound indicates an unknown generator id was referenced by a mutation or strict lookup.
	ErrNotFound = errors.New("generator: not found")

	// ErrDuplicateID indicates a registration collision on an already-registered id.
	ErrDuplicateID = errors.New("generator: duplicate id")

	// ErrUnknownParameter indicates a parameter name not present in the generator's schema.
	ErrUnknownParameter = errors.New("generator: unknown parameter")

	// ErrInvalidSchema indicates a parameter schema that violates its own bounds
	// (default outside [min, max], or a non-positive step).
	ErrInvalidSchema = errors.New("generator: invalid parameter schema")
)
