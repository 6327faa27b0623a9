package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  ParamSchema
		wantErr bool
	}{
		{
			name:   "valid float",
			schema: ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		},
		{
			name:   "valid int with step",
			schema: ParamSchema{Name: "cells", Kind: ParamKindInt, Min: 2, Max: 64, Default: 8, Step: 1},
		},
		{
			name:    "empty name",
			schema:  ParamSchema{Kind: ParamKindFloat, Min: 0, Max: 1},
			wantErr: true,
		},
		{
			name:    "min above max",
			schema:  ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 5, Max: 1, Default: 5},
			wantErr: true,
		},
		{
			name:    "default out of range",
			schema:  ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 40},
			wantErr: true,
		},
		{
			name:    "negative step",
			schema:  ParamSchema{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6, Step: -1},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.schema.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchema)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSchemaRejectsDuplicateNames(t *testing.T) {
	err := ValidateSchema([]ParamSchema{
		{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		{Name: "scale", Kind: ParamKindFloat, Min: 0, Max: 1, Default: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestDefaultValues(t *testing.T) {
	values := DefaultValues([]ParamSchema{
		{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		{Name: "speed", Kind: ParamKindFloat, Min: 0, Max: 4, Default: 1},
	})
	require.Len(t, values, 2)
	assert.Equal(t, 6.0, values["scale"])
	assert.Equal(t, 1.0, values["speed"])
}

func TestReconcileValues(t *testing.T) {
	old := map[string]float64{
		"scale": 12,   // kept by name
		"ghost": 99,   // dropped, no longer declared
	}
	params := []ParamSchema{
		{Name: "scale", Kind: ParamKindFloat, Min: 1, Max: 20, Default: 6},
		{Name: "octaves", Kind: ParamKindInt, Min: 1, Max: 8, Default: 4, Step: 1},
	}

	values := ReconcileValues(params, old)
	require.Len(t, values, 2)
	assert.Equal(t, 12.0, values["scale"], "surviving parameter keeps its old value")
	assert.Equal(t, 4.0, values["octaves"], "new parameter seeds from its default")
	assert.NotContains(t, values, "ghost")
}
