package generator

import (
	"testing"

	"github.com/Carmen-Shannon/texforge-go/engine/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
@group(0) @binding(0) var output: texture_storage_2d<rgba32float, write>;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(output, vec2<i32>(id.xy), vec4<f32>(0.0, 0.0, 0.0, 1.0));
}
`

func testProgram(t *testing.T, key string) shader.Shader {
	t.Helper()
	program, err := shader.NewShaderFromSource(key, shader.ShaderTypeCompute, testComputeSource)
	require.NoError(t, err)
	return program
}

func testDefinition(t *testing.T, id, name string, params ...ParamSchema) Definition {
	t.Helper()
	def, err := NewDefinition(name, testProgram(t, id), params, WithID(id))
	require.NoError(t, err)
	return def
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
	)

	require.NoError(t, reg.Register(def, nil))
	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.IsActive("g1"), "newly registered generators start active")

	values, ok := reg.Parameters("g1")
	require.True(t, ok)
	assert.Equal(t, 6.0, values["scale"], "values seed from schema defaults")

	err := reg.Register(def, nil)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, reg.Count())
}

func TestRegistryRegisterRejectsInvalidDefinitions(t *testing.T) {
	var events []ChangeEvent
	reg := NewRegistry(WithChangeCallback(func(ev ChangeEvent) {
		events = append(events, ev)
	}))

	// Hand-built definitions bypass NewDefinition's validation, so Register
	// checks again. An empty id would alias the cleared-selection value.
	noID := Definition{Name: "plasma", Program: testProgram(t, "plasma")}
	assert.Error(t, reg.Register(noID, nil))

	badSchema := Definition{
		ID:      "g1",
		Name:    "plasma",
		Program: testProgram(t, "g1"),
		Params: []ParamSchema{
			{Name: "scale", Kind: ParamKindFloat, Min: 10, Max: 1, Default: 5},
		},
	}
	assert.ErrorIs(t, reg.Register(badSchema, nil), ErrInvalidSchema)

	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, events, "failed registrations never emit change events")
}

func TestRegistryRegisterInitialOverrides(t *testing.T) {
	reg := NewRegistry()
	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		ParamSchema{Name: "speed", Kind: ParamKindFloat, Min: 0, Max: 4, Default: 1},
	)

	require.NoError(t, reg.Register(def, map[string]float64{
		"scale":   10,
		"unknown": 42,
	}))

	values, ok := reg.Parameters("g1")
	require.True(t, ok)
	assert.Equal(t, 10.0, values["scale"])
	assert.Equal(t, 1.0, values["speed"])
	assert.NotContains(t, values, "unknown", "overrides not in the schema are ignored")
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))
	reg.Select("g1")

	reg.Unregister("g1")
	assert.Equal(t, 0, reg.Count())
	assert.False(t, reg.IsActive("g1"))
	assert.Empty(t, reg.Selected(), "removing the focused generator clears the selection")

	_, ok := reg.Parameters("g1")
	assert.False(t, ok)

	// Idempotent: deleting an unknown id is a silent no-op.
	reg.Unregister("g1")
	reg.Unregister("never-registered")
}

func TestRegistryUnregisterKeepsUnrelatedSelection(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))
	require.NoError(t, reg.Register(testDefinition(t, "g2", "voronoi"), nil))
	reg.Select("g2")

	reg.Unregister("g1")
	assert.Equal(t, "g2", reg.Selected())
}

func TestRegistryUpdateSource(t *testing.T) {
	reg := NewRegistry()
	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		ParamSchema{Name: "ghost", Kind: ParamKindFloat, Min: 0, Max: 1, Default: 0},
	)
	require.NoError(t, reg.Register(def, nil))
	require.NoError(t, reg.SetParameter("g1", "scale", 12))

	before, _ := reg.Get("g1")

	err := reg.UpdateSource("g1", testProgram(t, "g1-v2"), []ParamSchema{
		{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		{Name: "octaves", Kind: ParamKindInt, Min: 1, Max: 8, Default: 4, Step: 1},
	})
	require.NoError(t, err)

	after, ok := reg.Get("g1")
	require.True(t, ok)
	assert.Equal(t, "g1-v2", after.Program.Key())
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	values, _ := reg.Parameters("g1")
	assert.Equal(t, 12.0, values["scale"], "surviving parameter keeps its value across the swap")
	assert.Equal(t, 4.0, values["octaves"], "new parameter seeds from its default")
	assert.NotContains(t, values, "ghost")

	err = reg.UpdateSource("missing", testProgram(t, "x"), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	err = reg.UpdateSource("g1", testProgram(t, "g1-v3"), []ParamSchema{
		{Name: "scale", Kind: ParamKindFloat, Min: 5, Max: 1, Default: 5},
	})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestRegistrySetParameter(t *testing.T) {
	reg := NewRegistry()
	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
	)
	require.NoError(t, reg.Register(def, nil))

	require.NoError(t, reg.SetParameter("g1", "scale", 12))
	values, _ := reg.Parameters("g1")
	assert.Equal(t, 12.0, values["scale"])

	// Out-of-range values are stored verbatim; the schema range drives UI
	// widgets, not storage.
	require.NoError(t, reg.SetParameter("g1", "scale", 100))
	values, _ = reg.Parameters("g1")
	assert.Equal(t, 100.0, values["scale"])

	assert.ErrorIs(t, reg.SetParameter("missing", "scale", 1), ErrNotFound)
	assert.ErrorIs(t, reg.SetParameter("g1", "nope", 1), ErrUnknownParameter)
}

func TestRegistryToggleActive(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))

	require.NoError(t, reg.ToggleActive("g1"))
	assert.False(t, reg.IsActive("g1"))

	require.NoError(t, reg.ToggleActive("g1"))
	assert.True(t, reg.IsActive("g1"))

	assert.ErrorIs(t, reg.ToggleActive("missing"), ErrNotFound)
}

func TestRegistrySelect(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))

	reg.Select("g1")
	assert.Equal(t, "g1", reg.Selected())

	// Unknown ids are accepted; the selection is advisory and resolved by
	// key at use time.
	reg.Select("not-registered")
	assert.Equal(t, "not-registered", reg.Selected())

	reg.Select("")
	assert.Empty(t, reg.Selected())
}

func TestRegistryListActiveOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))
	require.NoError(t, reg.Register(testDefinition(t, "g2", "voronoi"), nil))
	require.NoError(t, reg.Register(testDefinition(t, "g3", "noise"), nil))
	require.NoError(t, reg.ToggleActive("g2"))

	active := reg.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, "g1", active[0].ID)
	assert.Equal(t, "g3", active[1].ID)

	assert.Equal(t, []string{"g1", "g2", "g3"}, reg.IDs())
}

func TestRegistrySnapshot(t *testing.T) {
	reg := NewRegistry()
	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
	)
	require.NoError(t, reg.Register(def, nil))
	require.NoError(t, reg.SetParameter("g1", "scale", 12))
	require.NoError(t, reg.ToggleActive("g1"))

	snap, ok := reg.Snapshot("g1")
	require.True(t, ok)
	assert.Equal(t, "g1", snap.ID)
	assert.Equal(t, "plasma", snap.Name)
	assert.False(t, snap.Active)
	require.Len(t, snap.Params, 1)
	assert.Equal(t, "scale", snap.Params[0].Schema.Name)
	assert.Equal(t, 12.0, snap.Params[0].Value)

	_, ok = reg.Snapshot("missing")
	assert.False(t, ok)

	snaps := reg.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "g1", snaps[0].ID)
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))
	require.NoError(t, reg.Register(testDefinition(t, "g2", "voronoi"), nil))
	reg.Select("g1")

	reg.Clear()
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.IDs())
	assert.Empty(t, reg.Selected())
}

func TestRegistryChangeCallback(t *testing.T) {
	var events []ChangeEvent
	reg := NewRegistry(WithChangeCallback(func(ev ChangeEvent) {
		events = append(events, ev)
	}))

	def := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
	)
	require.NoError(t, reg.Register(def, nil))
	require.NoError(t, reg.SetParameter("g1", "scale", 12))
	reg.Select("g1")
	require.NoError(t, reg.ToggleActive("g1"))
	reg.Unregister("g1")

	// Unregister of the focused id emits both the removal and the implied
	// selection clear.
	require.Len(t, events, 6)
	assert.Equal(t, ChangeEvent{Kind: ChangeRegistered, ID: "g1"}, events[0])
	assert.Equal(t, ChangeEvent{Kind: ChangeParameterSet, ID: "g1"}, events[1])
	assert.Equal(t, ChangeEvent{Kind: ChangeSelected, ID: "g1"}, events[2])
	assert.Equal(t, ChangeEvent{Kind: ChangeActiveToggled, ID: "g1"}, events[3])
	assert.Equal(t, ChangeEvent{Kind: ChangeUnregistered, ID: "g1"}, events[4])
	assert.Equal(t, ChangeEvent{Kind: ChangeSelected}, events[5])

	// Failed mutations never emit.
	before := len(events)
	assert.Error(t, reg.SetParameter("missing", "scale", 1))
	assert.Len(t, events, before)
}

func TestRegistryCallbackMayReenter(t *testing.T) {
	reg := NewRegistry()
	var observed string
	reg.SetChangeCallback(func(ev ChangeEvent) {
		if ev.Kind == ChangeRegistered {
			observed = reg.Selected()
		}
	})

	require.NoError(t, reg.Register(testDefinition(t, "g1", "plasma"), nil))
	assert.Empty(t, observed)
}

func TestRegistryEndToEndEditingSession(t *testing.T) {
	reg := NewRegistry()

	g1 := testDefinition(t, "g1", "plasma",
		ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
	)
	g2 := testDefinition(t, "g2", "voronoi",
		ParamSchema{Name: "cells", Kind: ParamKindInt, Min: 2, Max: 64, Default: 8, Step: 1},
	)
	require.NoError(t, reg.Register(g1, nil))
	require.NoError(t, reg.Register(g2, nil))

	reg.Select("g1")
	require.NoError(t, reg.SetParameter("g1", "scale", 12))

	values, _ := reg.Parameters("g1")
	assert.Equal(t, 12.0, values["scale"])

	snap, ok := reg.Snapshot(reg.Selected())
	require.True(t, ok)
	assert.Equal(t, 12.0, snap.Params[0].Value)

	reg.Select("g2")
	reg.Unregister("g1")

	assert.Equal(t, []string{"g2"}, reg.IDs())
	assert.Equal(t, "g2", reg.Selected())
}
