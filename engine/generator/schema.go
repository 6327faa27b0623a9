package generator

import "fmt"

// ParamKind identifies the numeric kind of a tunable parameter.
type ParamKind int

const (
	// ParamKindFloat is a floating point parameter.
	ParamKindFloat ParamKind = iota

	// ParamKindInt is an integer parameter. Values are still carried as float64
	// in the value map; the kind tells UI-facing code to snap to whole numbers.
	ParamKindInt
)

// ParamSchema describes one tunable input of a generator program: its name,
// numeric kind, bounds, default, and optional step increment.
type ParamSchema struct {
	// Name is the parameter identifier, unique within a generator.
	Name string

	// Kind is the numeric kind (float or integer).
	Kind ParamKind

	// Min is the lower bound of the suggested range.
	Min float64

	// Max is the upper bound of the suggested range.
	Max float64

	// Default is the value a fresh generator starts with. Must lie within [Min, Max].
	Default float64

	// Step is the optional UI increment. Zero means unset; when set it must be positive.
	Step float64
}

// Validate checks the schema invariants: min <= default <= max, and a positive
// step when one is set.
//
// Returns:
//   - error: ErrInvalidSchema (wrapped with detail) if an invariant is violated
func (p ParamSchema) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter has no name", ErrInvalidSchema)
	}
	if p.Min > p.Max {
		return fmt.Errorf("%w: %s has min %v > max %v", ErrInvalidSchema, p.Name, p.Min, p.Max)
	}
	if p.Default < p.Min || p.Default > p.Max {
		return fmt.Errorf("%w: %s default %v outside [%v, %v]", ErrInvalidSchema, p.Name, p.Default, p.Min, p.Max)
	}
	if p.Step < 0 {
		return fmt.Errorf("%w: %s step %v must be positive", ErrInvalidSchema, p.Name, p.Step)
	}
	return nil
}

// ValidateSchema validates a full parameter list, additionally rejecting
// duplicate parameter names.
//
// Parameters:
//   - params: the ordered parameter schema list to validate
//
// Returns:
//   - error: ErrInvalidSchema (wrapped with detail) on the first violation found
func ValidateSchema(params []ParamSchema) error {
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %s", ErrInvalidSchema, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// DefaultValues builds a fresh value map from a schema list, seeding every
// parameter with its declared default.
//
// Parameters:
//   - params: the parameter schema list
//
// Returns:
//   - map[string]float64: one entry per schema parameter, set to its default
func DefaultValues(params []ParamSchema) map[string]float64 {
	values := make(map[string]float64, len(params))
	for _, p := range params {
		values[p.Name] = p.Default
	}
	return values
}

// ReconcileValues merges an existing value map against a new schema: values for
// names present in both are preserved, names new to the schema are seeded from
// their default, and values for names the schema no longer declares are dropped.
//
// Parameters:
//   - params: the new parameter schema list
//   - old: the prior value map (may be nil)
//
// Returns:
//   - map[string]float64: a value map with exactly one entry per schema parameter
func ReconcileValues(params []ParamSchema, old map[string]float64) map[string]float64 {
	values := make(map[string]float64, len(params))
	for _, p := range params {
		if v, ok := old[p.Name]; ok {
			values[p.Name] = v
		} else {
			values[p.Name] = p.Default
		}
	}
	return values
}
