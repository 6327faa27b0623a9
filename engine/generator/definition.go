package generator

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/google/uuid"
)

// Definition describes one procedural texture generator: its identity, display
// metadata, compiled compute program, ordered parameter schema, optional
// iteration count, and timestamps. Definitions are immutable once registered
// except through Registry.UpdateSource, which replaces the program and schema
// atomically.
type Definition struct {
	// ID is the unique generator identity.
	ID string

	// Name is the display name shown to users.
	Name string

	// Description is optional free-form text describing what the generator produces.
	Description string

	// Program is the generator's compute program.
	Program shader.Shader

	// Params is the ordered list of tunable inputs the program declares.
	Params []ParamSchema

	// Iterations is the optional number of compute passes to run per frame.
	// Zero or negative values are treated as a single pass.
	Iterations int

	// CreatedAt is when the definition was first constructed.
	CreatedAt time.Time

	// UpdatedAt is bumped whenever the program or schema is replaced.
	UpdatedAt time.Time

	// Changelog is optional free-form revision notes.
	Changelog string
}

// DefinitionOption is a functional option used to configure a Definition during construction.
type DefinitionOption func(*Definition)

// WithID sets an explicit generator id instead of the generated UUID.
//
// Parameters:
//   - id: the generator identity to use
//
// Returns:
//   - DefinitionOption: option function to apply
func WithID(id string) DefinitionOption {
	return func(d *Definition) {
		d.ID = id
	}
}

// WithDescription sets the optional description text.
//
// Parameters:
//   - description: free-form text describing the generator
//
// Returns:
//   - DefinitionOption: option function to apply
func WithDescription(description string) DefinitionOption {
	return func(d *Definition) {
		d.Description = description
	}
}

// WithIterations sets the number of compute passes the generator runs per frame.
//
// Parameters:
//   - iterations: pass count (values <= 0 mean a single pass)
//
// Returns:
//   - DefinitionOption: option function to apply
func WithIterations(iterations int) DefinitionOption {
	return func(d *Definition) {
		d.Iterations = iterations
	}
}

// WithChangelog sets the optional revision notes.
//
// Parameters:
//   - changelog: free-form revision text
//
// Returns:
//   - DefinitionOption: option function to apply
func WithChangelog(changelog string) DefinitionOption {
	return func(d *Definition) {
		d.Changelog = changelog
	}
}

// NewDefinition constructs a Definition with the given display name, compute
// program, and parameter schema. A UUID id is generated unless WithID overrides
// it, and both timestamps are set to the current time.
//
// Parameters:
//   - name: the display name
//   - program: the generator's compute program (must not be nil)
//   - params: the ordered parameter schema list
//   - options: functional options (id, description, iterations, changelog)
//
// Returns:
//   - Definition: the constructed definition
//   - error: an error if the program is nil or the schema is invalid
func NewDefinition(name string, program shader.Shader, params []ParamSchema, options ...DefinitionOption) (Definition, error) {
	if program == nil {
		return Definition{}, fmt.Errorf("generator: definition %q requires a program", name)
	}
	if err := ValidateSchema(params); err != nil {
		return Definition{}, err
	}

	now := time.Now()
	d := Definition{
		ID:        uuid.NewString(),
		Name:      name,
		Program:   program,
		Params:    append([]ParamSchema(nil), params...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range options {
		opt(&d)
	}
	return d, nil
}

// paramNamed returns the schema entry with the given name, if declared.
func (d Definition) paramNamed(name string) (ParamSchema, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSchema{}, false
}
