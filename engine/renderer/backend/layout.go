// Package backend turns compiled draw shader mappings into wgpu descriptors and dirty
// draw calls into buffer writes. It does not create GPU objects; a renderer owning a
// wgpu.Device consumes the descriptors and writes as-is.
package backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// floatSize is the byte size of one slot.
const floatSize = 4

// vertexFormats maps a slot count to its wgpu vertex format.
var vertexFormats = map[int]wgpu.VertexFormat{
	1: wgpu.VertexFormatFloat32,
	2: wgpu.VertexFormatFloat32x2,
	3: wgpu.VertexFormatFloat32x3,
	4: wgpu.VertexFormatFloat32x4,
}

// UniformBuffer is one uniform block binding of a shader.
type UniformBuffer struct {
	// Group is the mapping group name, such as "user_uniforms".
	Group      string
	Binding    uint32
	Descriptor wgpu.BufferDescriptor
}

// TextureBinding is the texture and sampler bindings of one texture slot.
type TextureBinding struct {
	Slot           int
	TextureBinding uint32
	SamplerBinding uint32
}

// ShaderLayout is everything a renderer needs to build the pipeline state of one compiled
// draw shader.
type ShaderLayout struct {
	ShaderId int
	Label    string
	// VertexLayouts holds the geometry buffer layout followed by the instance buffer layout;
	// empty groups are left out.
	VertexLayouts   []wgpu.VertexBufferLayout
	BindGroupLayout wgpu.BindGroupLayoutDescriptor
	UniformBuffers  []UniformBuffer
	Textures        []TextureBinding
	// LiveUniforms is the resolved live uniform buffer, ready to upload.
	LiveUniforms []byte
}

// Describe builds the wgpu layout of a compiled shader. Geometry attributes take shader
// locations from 0, instance attributes continue after them, and unnamed padding inputs
// only widen the stride. Every non-empty uniform group gets a binding in mapping order,
// then every texture a texture and a sampler binding.
//
// Parameters:
//   - cs: the compiled shader
//
// Returns:
//   - ShaderLayout: the descriptors
func Describe(cs *drawshader.CompiledShader) ShaderLayout {
	m := cs.Mapping
	label := fmt.Sprintf("%s#%d", cs.TypeName, cs.Id)
	out := ShaderLayout{
		ShaderId:     cs.Id,
		Label:        label,
		LiveUniforms: Marshal(m.LiveUniformsBuf),
	}

	var location uint32
	if vl, ok := vertexBufferLayout(m.Geometries, wgpu.VertexStepModeVertex, &location); ok {
		out.VertexLayouts = append(out.VertexLayouts, vl)
	}
	if vl, ok := vertexBufferLayout(m.Instances, wgpu.VertexStepModeInstance, &location); ok {
		out.VertexLayouts = append(out.VertexLayouts, vl)
	}

	var entries []wgpu.BindGroupLayoutEntry
	var binding uint32
	for _, g := range uniformGroups(m) {
		if g.Inputs.TotalSlots == 0 {
			continue
		}
		size := uint64(g.Inputs.TotalSlots * floatSize)
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: size,
			},
		})
		out.UniformBuffers = append(out.UniformBuffers, UniformBuffer{
			Group:   g.Name,
			Binding: binding,
			Descriptor: wgpu.BufferDescriptor{
				Label: label + " " + g.Name,
				Size:  size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			},
		})
		binding++
	}

	for i := range m.Textures {
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    binding + 1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		)
		out.Textures = append(out.Textures, TextureBinding{Slot: i, TextureBinding: binding, SamplerBinding: binding + 1})
		binding += 2
	}

	out.BindGroupLayout = wgpu.BindGroupLayoutDescriptor{
		Label:   label + " Bind Group Layout",
		Entries: entries,
	}
	return out
}

// uniformGroups returns the uniform groups in binding order.
func uniformGroups(m *layout.Mapping) []layout.Group {
	var out []layout.Group
	for _, g := range m.Groups() {
		switch g.Inputs {
		case m.LiveUniforms, m.UserUniforms, m.DrawUniforms, m.ViewUniforms, m.PassUniforms:
			out = append(out, g)
		}
	}
	return out
}

// vertexBufferLayout converts a packed group into a vertex buffer layout, advancing
// location past the attributes it adds.
func vertexBufferLayout(in *layout.Inputs, step wgpu.VertexStepMode, location *uint32) (wgpu.VertexBufferLayout, bool) {
	if in.TotalSlots == 0 {
		return wgpu.VertexBufferLayout{}, false
	}
	attrs := make([]wgpu.VertexAttribute, 0, len(in.Inputs))
	for _, input := range in.Inputs {
		if input.Id == "" {
			continue
		}
		format, ok := vertexFormats[input.Slots]
		if !ok {
			panic(fmt.Sprintf("backend: vertex input %q has %d slots", input.Id, input.Slots))
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(input.Offset * floatSize),
			ShaderLocation: *location,
		})
		*location++
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(in.TotalSlots * floatSize),
		StepMode:    step,
		Attributes:  attrs,
	}, true
}
