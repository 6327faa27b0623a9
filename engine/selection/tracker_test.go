package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerToggle(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.Toggle("g1"), "first toggle checks")
	assert.True(t, tr.IsChecked("g1"))
	assert.Equal(t, 1, tr.Count())

	assert.False(t, tr.Toggle("g1"), "second toggle unchecks")
	assert.False(t, tr.IsChecked("g1"))
	assert.Equal(t, 0, tr.Count())
}

func TestTrackerAddRemove(t *testing.T) {
	tr := NewTracker()

	tr.Add("g1")
	tr.Add("g1")
	assert.Equal(t, 1, tr.Count(), "repeated add does not double-count")

	tr.Remove("g1")
	tr.Remove("g1")
	assert.Equal(t, 0, tr.Count())
	tr.Remove("never-added")
}

func TestTrackerCanCompose(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.CanCompose())

	tr.Add("g1")
	assert.False(t, tr.CanCompose(), "one checked generator cannot blend with itself")

	tr.Add("g2")
	assert.True(t, tr.CanCompose())

	tr.Remove("g2")
	assert.False(t, tr.CanCompose())
}

func TestTrackerPrune(t *testing.T) {
	tr := NewTracker()
	tr.Add("g1")
	tr.Add("g2")
	tr.Add("g3")

	dropped := tr.Prune([]string{"g1", "g3"})
	assert.Equal(t, 1, dropped)
	assert.True(t, tr.IsChecked("g1"))
	assert.False(t, tr.IsChecked("g2"))
	assert.True(t, tr.IsChecked("g3"))

	dropped = tr.Prune(nil)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 0, tr.Count())
}

func TestTrackerIDs(t *testing.T) {
	tr := NewTracker()
	tr.Add("g1")
	tr.Add("g2")

	assert.ElementsMatch(t, []string{"g1", "g2"}, tr.IDs())
}

func TestTrackerClear(t *testing.T) {
	tr := NewTracker()
	tr.Add("g1")
	tr.Add("g2")

	tr.Clear()
	assert.Equal(t, 0, tr.Count())
	assert.Empty(t, tr.IDs())
}
