package generator

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/texforge-go/engine/shader"
)

// ChangeKind identifies which registry mutation produced a ChangeEvent.
type ChangeKind int

const (
	// ChangeRegistered fires after a definition is inserted.
	ChangeRegistered ChangeKind = iota

	// ChangeUnregistered fires after a definition is removed.
	ChangeUnregistered

	// ChangeSourceUpdated fires after a program/schema replacement.
	ChangeSourceUpdated

	// ChangeParameterSet fires after a single parameter value write.
	ChangeParameterSet

	// ChangeActiveToggled fires after active-set membership flips.
	ChangeActiveToggled

	// ChangeSelected fires after the editing focus pointer moves or clears.
	ChangeSelected

	// ChangeCleared fires after the registry is emptied.
	ChangeCleared
)

// ChangeEvent describes one successful registry mutation. Consumers use it to
// re-render UI panels or re-prime GPU resources; failed operations never emit.
type ChangeEvent struct {
	// Kind is the mutation that occurred.
	Kind ChangeKind

	// ID is the affected generator id (empty for ChangeCleared and for a
	// cleared selection).
	ID string
}

// registry is the implementation of the Registry interface.
// All four collections (definitions, active-set, value maps, selection) are
// mutated together so the containment invariants hold after every operation.
type registry struct {
	mu *sync.RWMutex

	defs   map[string]Definition
	order  []string
	active map[string]struct{}
	values map[string]map[string]float64

	// selected is the single editing-focus id. Plain key, never a live
	// reference; resolved against defs at use time.
	selected string

	onChange func(ChangeEvent)
}

// Registry tracks every known generator Definition together with its current
// parameter values and active/inactive flag, plus a single editing-focus
// pointer. Mutations keep the collections consistent: the active-set and value
// maps only ever reference registered ids, and removing a generator removes it
// everywhere atomically.
type Registry interface {
	// Register inserts a definition, seeds its value map from schema defaults
	// (with initial overrides filling in where provided), and adds the id to
	// the active-set.
	//
	// Parameters:
	//   - def: the definition to insert
	//   - initial: optional value overrides by parameter name (nil safe;
	//     names not in the schema are ignored)
	//
	// Returns:
	//   - error: ErrDuplicateID if the id is already registered, ErrInvalidSchema
	//     for a bad schema, or an error for a definition with no id
	Register(def Definition, initial map[string]float64) error

	// Unregister removes the definition, its active-set membership, and its
	// value map, and clears the selection if it pointed at the removed id.
	// Removing an unknown id is a silent no-op, making deletion idempotent.
	//
	// Parameters:
	//   - id: the generator id to remove
	Unregister(id string)

	// UpdateSource replaces the generator's program and parameter schema
	// atomically, reconciles its value map (preserve-by-name, seed new
	// parameters from their defaults, drop stale names), and bumps the
	// modification timestamp.
	//
	// Parameters:
	//   - id: the generator id to update
	//   - program: the replacement compute program
	//   - params: the replacement parameter schema
	//
	// Returns:
	//   - error: ErrNotFound for an unknown id, ErrInvalidSchema for a bad schema
	UpdateSource(id string, program shader.Shader, params []ParamSchema) error

	// SetParameter overwrites one parameter value. Values are stored as given;
	// no clamping to [Min, Max] is performed — range validity is the caller's
	// responsibility.
	//
	// Parameters:
	//   - id: the generator id
	//   - name: the parameter name (must be declared in the schema)
	//   - value: the value to store
	//
	// Returns:
	//   - error: ErrNotFound for an unknown id, ErrUnknownParameter for an undeclared name
	SetParameter(id, name string, value float64) error

	// ToggleActive flips the generator's active-set membership.
	//
	// Parameters:
	//   - id: the generator id
	//
	// Returns:
	//   - error: ErrNotFound for an unknown id
	ToggleActive(id string) error

	// Select moves the editing-focus pointer. Passing an empty string clears
	// it. Unknown ids are accepted — the selection is advisory, resolved by
	// key at use time, so a stale id simply resolves to nothing.
	//
	// Parameters:
	//   - id: the generator id to focus, or "" to clear
	Select(id string)

	// Selected returns the current editing-focus id, or "" when none is set.
	//
	// Returns:
	//   - string: the focused generator id, or ""
	Selected() string

	// Get retrieves a definition by id.
	//
	// Parameters:
	//   - id: the generator id
	//
	// Returns:
	//   - Definition: the definition (zero value if absent)
	//   - bool: true if the id is registered
	Get(id string) (Definition, bool)

	// IDs returns all registered ids in registration order.
	//
	// Returns:
	//   - []string: registered ids, oldest first
	IDs() []string

	// ListActive returns the definitions whose ids are in the active-set,
	// in registration order.
	//
	// Returns:
	//   - []Definition: active definitions, oldest first
	ListActive() []Definition

	// IsActive reports whether the id is in the active-set.
	//
	// Parameters:
	//   - id: the generator id
	//
	// Returns:
	//   - bool: true if registered and active
	IsActive(id string) bool

	// Parameters returns a copy of the generator's current value map.
	//
	// Parameters:
	//   - id: the generator id
	//
	// Returns:
	//   - map[string]float64: a copy of the value map (nil if absent)
	//   - bool: true if the id is registered
	Parameters(id string) (map[string]float64, bool)

	// Snapshot builds a read-only export view of one generator.
	//
	// Parameters:
	//   - id: the generator id
	//
	// Returns:
	//   - Snapshot: the read-only view (zero value if absent)
	//   - bool: true if the id is registered
	Snapshot(id string) (Snapshot, bool)

	// Snapshots builds read-only export views of every registered generator,
	// in registration order.
	//
	// Returns:
	//   - []Snapshot: one snapshot per registered generator
	Snapshots() []Snapshot

	// Count returns the number of registered generators.
	//
	// Returns:
	//   - int: the registered generator count
	Count() int

	// Clear empties all four collections atomically.
	Clear()

	// SetChangeCallback registers the observer invoked after every successful
	// mutation. The callback runs outside the registry lock, so it may call
	// back into the registry. Pass nil to disable.
	//
	// Parameters:
	//   - callback: function receiving the change event (or nil)
	SetChangeCallback(callback func(ChangeEvent))
}

var _ Registry = &registry{}

// RegistryBuilderOption is a functional option used to configure a Registry during construction.
type RegistryBuilderOption func(*registry)

// WithChangeCallback registers the change observer during construction.
//
// Parameters:
//   - callback: function receiving change events
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithChangeCallback(callback func(ChangeEvent)) RegistryBuilderOption {
	return func(r *registry) {
		r.onChange = callback
	}
}

// NewRegistry creates an empty Registry.
//
// Parameters:
//   - options: functional options to configure the registry
//
// Returns:
//   - Registry: the newly created registry
func NewRegistry(options ...RegistryBuilderOption) Registry {
	r := &registry{
		mu:     &sync.RWMutex{},
		defs:   make(map[string]Definition),
		active: make(map[string]struct{}),
		values: make(map[string]map[string]float64),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// notify invokes the change callback outside the lock. Callers must not hold
// the mutex when calling it.
func (r *registry) notify(ev ChangeEvent) {
	r.mu.RLock()
	callback := r.onChange
	r.mu.RUnlock()
	if callback != nil {
		callback(ev)
	}
}

func (r *registry) Register(def Definition, initial map[string]float64) error {
	// NewDefinition validates these, but Register also accepts hand-built
	// definitions. An empty id would collide with the cleared-selection value.
	if def.ID == "" {
		return fmt.Errorf("generator: definition %q requires an id", def.Name)
	}
	if err := ValidateSchema(def.Params); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.defs[def.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
	}

	values := DefaultValues(def.Params)
	for name, v := range initial {
		if _, declared := def.paramNamed(name); declared {
			values[name] = v
		}
	}

	r.defs[def.ID] = def
	r.order = append(r.order, def.ID)
	r.active[def.ID] = struct{}{}
	r.values[def.ID] = values
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeRegistered, ID: def.ID})
	return nil
}

func (r *registry) Unregister(id string) {
	r.mu.Lock()
	if _, exists := r.defs[id]; !exists {
		r.mu.Unlock()
		return
	}

	delete(r.defs, id)
	delete(r.active, id)
	delete(r.values, id)
	for i, ordered := range r.order {
		if ordered == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	selectionCleared := r.selected == id
	if selectionCleared {
		r.selected = ""
	}
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeUnregistered, ID: id})
	if selectionCleared {
		r.notify(ChangeEvent{Kind: ChangeSelected})
	}
}

func (r *registry) UpdateSource(id string, program shader.Shader, params []ParamSchema) error {
	if program == nil {
		return fmt.Errorf("generator: update of %s requires a program", id)
	}
	if err := ValidateSchema(params); err != nil {
		return err
	}

	r.mu.Lock()
	def, exists := r.defs[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	def.Program = program
	def.Params = append([]ParamSchema(nil), params...)
	def.UpdatedAt = time.Now()
	r.defs[id] = def
	r.values[id] = ReconcileValues(def.Params, r.values[id])
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeSourceUpdated, ID: id})
	return nil
}

func (r *registry) SetParameter(id, name string, value float64) error {
	r.mu.Lock()
	def, exists := r.defs[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, declared := def.paramNamed(name); !declared {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParameter, id, name)
	}

	r.values[id][name] = value
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeParameterSet, ID: id})
	return nil
}

func (r *registry) ToggleActive(id string) error {
	r.mu.Lock()
	if _, exists := r.defs[id]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if _, isActive := r.active[id]; isActive {
		delete(r.active, id)
	} else {
		r.active[id] = struct{}{}
	}
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeActiveToggled, ID: id})
	return nil
}

func (r *registry) Select(id string) {
	r.mu.Lock()
	r.selected = id
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeSelected, ID: id})
}

func (r *registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

func (r *registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, exists := r.defs[id]
	return def, exists
}

func (r *registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *registry) ListActive() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.active))
	for _, id := range r.order {
		if _, isActive := r.active[id]; isActive {
			defs = append(defs, r.defs[id])
		}
	}
	return defs
}

func (r *registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, isActive := r.active[id]
	return isActive
}

func (r *registry) Parameters(id string) (map[string]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values, exists := r.values[id]
	if !exists {
		return nil, false
	}
	cp := make(map[string]float64, len(values))
	for name, v := range values {
		cp[name] = v
	}
	return cp, true
}

func (r *registry) Snapshot(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(id)
}

func (r *registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		if snap, ok := r.snapshotLocked(id); ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// snapshotLocked builds the export view for one id. Must be called with at
// least a read lock held.
func (r *registry) snapshotLocked(id string) (Snapshot, bool) {
	def, exists := r.defs[id]
	if !exists {
		return Snapshot{}, false
	}

	values := r.values[id]
	params := make([]ParamValue, 0, len(def.Params))
	for _, p := range def.Params {
		params = append(params, ParamValue{Schema: p, Value: values[p.Name]})
	}

	_, isActive := r.active[id]
	return Snapshot{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Params:      params,
		Iterations:  def.Iterations,
		Active:      isActive,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
		Changelog:   def.Changelog,
	}, true
}

func (r *registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

func (r *registry) Clear() {
	r.mu.Lock()
	r.defs = make(map[string]Definition)
	r.order = nil
	r.active = make(map[string]struct{})
	r.values = make(map[string]map[string]float64)
	r.selected = ""
	r.mu.Unlock()

	r.notify(ChangeEvent{Kind: ChangeCleared})
}

func (r *registry) SetChangeCallback(callback func(ChangeEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = callback
}
