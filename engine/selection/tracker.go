package selection

import "sync"

// MinComposeCount is the number of checked generators required before a
// composite (blend) operation makes sense.
const MinComposeCount = 2

// tracker is the implementation of the Tracker interface.
type tracker struct {
	mu      *sync.RWMutex
	checked map[string]struct{}
}

// Tracker maintains the multi-select checkbox state over generator ids. It is
// deliberately independent of the registry: membership here is a plain set of
// keys, so ids may go stale when generators are removed. Callers reconcile by
// passing the surviving id set to Prune.
type Tracker interface {
	// Toggle flips the checked state of an id.
	//
	// Parameters:
	//   - id: the generator id to toggle
	//
	// Returns:
	//   - bool: true if the id is checked after the toggle
	Toggle(id string) bool

	// Add marks an id as checked. Adding an already-checked id is a no-op.
	//
	// Parameters:
	//   - id: the generator id to check
	Add(id string)

	// Remove unmarks an id. Removing an unchecked id is a no-op.
	//
	// Parameters:
	//   - id: the generator id to uncheck
	Remove(id string)

	// IsChecked reports whether an id is currently checked.
	//
	// Parameters:
	//   - id: the generator id to query
	//
	// Returns:
	//   - bool: true if the id is checked
	IsChecked(id string) bool

	// Count returns the number of checked ids.
	//
	// Returns:
	//   - int: the checked id count
	Count() int

	// CanCompose reports whether enough generators are checked to blend.
	//
	// Returns:
	//   - bool: true when at least MinComposeCount ids are checked
	CanCompose() bool

	// IDs returns the checked ids. Order is unspecified.
	//
	// Returns:
	//   - []string: the checked generator ids
	IDs() []string

	// Prune drops every checked id not present in validIDs. Called after
	// generators are unregistered so the set never accumulates dead keys.
	//
	// Parameters:
	//   - validIDs: the ids that are still registered
	//
	// Returns:
	//   - int: the number of ids dropped
	Prune(validIDs []string) int

	// Clear unchecks everything.
	Clear()
}

var _ Tracker = &tracker{}

// NewTracker creates an empty selection Tracker.
//
// Returns:
//   - Tracker: the newly created tracker
func NewTracker() Tracker {
	return &tracker{
		mu:      &sync.RWMutex{},
		checked: make(map[string]struct{}),
	}
}

func (t *tracker) Toggle(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.checked[id]; ok {
		delete(t.checked, id)
		return false
	}
	t.checked[id] = struct{}{}
	return true
}

func (t *tracker) Add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checked[id] = struct{}{}
}

func (t *tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.checked, id)
}

func (t *tracker) IsChecked(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.checked[id]
	return ok
}

func (t *tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.checked)
}

func (t *tracker) CanCompose() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.checked) >= MinComposeCount
}

func (t *tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.checked))
	for id := range t.checked {
		ids = append(ids, id)
	}
	return ids
}

func (t *tracker) Prune(validIDs []string) int {
	valid := make(map[string]struct{}, len(validIDs))
	for _, id := range validIDs {
		valid[id] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := 0
	for id := range t.checked {
		if _, ok := valid[id]; !ok {
			delete(t.checked, id)
			dropped++
		}
	}
	return dropped
}

func (t *tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checked = make(map[string]struct{})
}
