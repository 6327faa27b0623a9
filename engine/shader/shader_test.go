package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const combinedSource = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

const computeSource = `
// @compute fn commented_out() — must not be picked up
@compute @workgroup_size(16, 16, 2)
fn generate(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestNewShaderFromSource(t *testing.T) {
	vertex, err := NewShaderFromSource("combined", ShaderTypeVertex, combinedSource)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", vertex.EntryPoint())
	assert.Equal(t, "combined", vertex.Key())
	assert.Equal(t, ShaderTypeVertex, vertex.ShaderType())

	fragment, err := NewShaderFromSource("combined", ShaderTypeFragment, combinedSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", fragment.EntryPoint())

	_, err = NewShaderFromSource("combined", ShaderTypeCompute, combinedSource)
	assert.Error(t, err, "no compute entry point in a vertex/fragment source")
}

func TestNewShaderFromSourceCompute(t *testing.T) {
	compute, err := NewShaderFromSource("gen", ShaderTypeCompute, computeSource)
	require.NoError(t, err)
	assert.Equal(t, "generate", compute.EntryPoint())
	assert.Equal(t, [3]uint32{16, 16, 2}, compute.WorkgroupSize())

	module := compute.Module()
	require.NotNil(t, module)
	assert.Equal(t, "gen", module.Label)
	assert.Equal(t, compute.Source(), module.WGSLDescriptor.Code)
}

func TestNewShaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(computeSource), 0o644))

	compute, err := NewShader("gen", ShaderTypeCompute, path)
	require.NoError(t, err)
	assert.Equal(t, "generate", compute.EntryPoint())

	_, err = NewShader("gen", ShaderTypeCompute, filepath.Join(dir, "missing.wgsl"))
	assert.Error(t, err)

	_, err = NewShader("gen", ShaderTypeCompute, "")
	assert.Error(t, err)
}

func TestParseWorkgroupSizeDefaults(t *testing.T) {
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize(`@compute fn main() {}`))
	assert.Equal(t, [3]uint32{64, 1, 1}, parseWorkgroupSize(`@compute @workgroup_size(64) fn main() {}`))
	assert.Equal(t, [3]uint32{8, 8, 1}, parseWorkgroupSize(`@compute @workgroup_size(8, 8) fn main() {}`))
}

func TestParseEntryPointIgnoresComments(t *testing.T) {
	source := `
/* @vertex
fn dead() {} */
@vertex
fn live() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }
`
	assert.Equal(t, "live", parseEntryPoint(source, ShaderTypeVertex))
	assert.Empty(t, parseEntryPoint(source, ShaderTypeCompute))
}
