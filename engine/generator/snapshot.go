package generator

import "time"

// ParamValue pairs a parameter's schema with its current value, for read-only
// consumers such as export collaborators and UI panels.
type ParamValue struct {
	// Schema is the parameter's declared schema.
	Schema ParamSchema

	// Value is the current stored value. May lie outside [Min, Max] because
	// SetParameter does not clamp.
	Value float64
}

// Snapshot is a read-only view of one registered generator, sufficient for an
// export collaborator to archive it: identity, metadata, the full parameter
// list with current values, iteration count, timestamps, and changelog.
type Snapshot struct {
	// ID is the generator identity.
	ID string

	// Name is the display name.
	Name string

	// Description is the optional description text.
	Description string

	// Params is the ordered parameter list with current values.
	Params []ParamValue

	// Iterations is the per-frame pass count (0 means single pass).
	Iterations int

	// Active reports whether the generator is in the active-set.
	Active bool

	// CreatedAt is the definition's creation time.
	CreatedAt time.Time

	// UpdatedAt is the definition's last source-update time.
	UpdatedAt time.Time

	// Changelog is the optional revision notes.
	Changelog string
}
