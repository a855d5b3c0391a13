package layout

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
)

// TextureInput is one texture slot of a compiled shader.
type TextureInput struct {
	Id live.Id
	Ty shader.ShaderTy
}

// Mapping is the packed layout of a compiled draw shader.
type Mapping struct {
	Flags shader.Flags

	Geometries *Inputs
	Instances  *Inputs
	// VarInstances holds the instance fields declared in the shader body. They lead the
	// instance row, so their offsets match their Instances offsets.
	VarInstances *Inputs
	// LiveInstances copies the Live-kind entries of Instances, offsets included.
	LiveInstances *Inputs
	LiveUniforms  *Inputs
	UserUniforms  *Inputs
	DrawUniforms  *Inputs
	ViewUniforms  *Inputs
	PassUniforms  *Inputs

	Textures []TextureInput

	// RectPos and RectSize are the instance offsets of the rect_pos and rect_size fields,
	// or -1 when the shader has none.
	RectPos  int
	RectSize int

	// LiveUniformsBuf holds the resolved live uniform values, LiveUniforms.TotalSlots long.
	LiveUniformsBuf []float32
}

// Group names one packed group of a Mapping.
type Group struct {
	Name   string
	Inputs *Inputs
}

// FromDef packs a shader definition. Geometry and instance groups use instancePacking;
// the live and block uniform groups use uniformPacking. Live references are pushed before
// the groups are finalized.
//
// Parameters:
//   - def: the analysed shader definition
//   - uniformPacking: the packing of uniform groups
//   - instancePacking: the packing of geometry and instance groups
//
// Returns:
//   - *Mapping: the packed layout with a zeroed live uniform buffer
func FromDef(def *shader.ShaderDef, uniformPacking, instancePacking Packing) *Mapping {
	m := &Mapping{
		Flags:         def.Flags,
		Geometries:    NewInputs(instancePacking),
		Instances:     NewInputs(instancePacking),
		VarInstances:  NewInputs(instancePacking),
		LiveInstances: NewInputs(instancePacking),
		LiveUniforms:  NewInputs(uniformPacking),
		UserUniforms:  NewInputs(uniformPacking),
		DrawUniforms:  NewInputs(uniformPacking),
		ViewUniforms:  NewInputs(uniformPacking),
		PassUniforms:  NewInputs(uniformPacking),
		RectPos:       -1,
		RectSize:      -1,
	}

	for _, f := range def.Fields {
		switch f.Category {
		case shader.CategoryGeometry:
			m.Geometries.Push(f.Id, f.Ty, nil)
		case shader.CategoryInstance:
			if f.VarDef {
				m.VarInstances.Push(f.Id, f.Ty, nil)
			}
			input := m.Instances.Push(f.Id, f.Ty, nil)
			switch f.Id {
			case live.IdRectPos:
				m.RectPos = input.Offset
			case live.IdRectSize:
				m.RectSize = input.Offset
			}
			if f.Kind == live.FieldLive {
				m.LiveInstances.Inputs = append(m.LiveInstances.Inputs, input)
			}
		case shader.CategoryUniform:
			switch f.Block {
			case shader.BlockUser:
				m.UserUniforms.Push(f.Id, f.Ty, nil)
			case shader.BlockDraw:
				m.DrawUniforms.Push(f.Id, f.Ty, nil)
			case shader.BlockView:
				m.ViewUniforms.Push(f.Id, f.Ty, nil)
			case shader.BlockPass:
				m.PassUniforms.Push(f.Id, f.Ty, nil)
			}
		case shader.CategoryTexture:
			m.Textures = append(m.Textures, TextureInput{Id: f.Id, Ty: f.Ty})
		}
	}

	for _, ref := range def.LiveRefs {
		ptr := ref.Ptr
		m.LiveUniforms.Push(ref.Id, ref.Ty, &ptr)
	}

	for _, g := range m.Groups() {
		g.Inputs.Finalize()
	}
	m.LiveUniformsBuf = make([]float32, m.LiveUniforms.TotalSlots)
	return m
}

// Groups returns the nine packed groups in a fixed order.
func (m *Mapping) Groups() []Group {
	return []Group{
		{Name: "geometries", Inputs: m.Geometries},
		{Name: "instances", Inputs: m.Instances},
		{Name: "var_instances", Inputs: m.VarInstances},
		{Name: "live_instances", Inputs: m.LiveInstances},
		{Name: "live_uniforms", Inputs: m.LiveUniforms},
		{Name: "user_uniforms", Inputs: m.UserUniforms},
		{Name: "draw_uniforms", Inputs: m.DrawUniforms},
		{Name: "view_uniforms", Inputs: m.ViewUniforms},
		{Name: "pass_uniforms", Inputs: m.PassUniforms},
	}
}

// UpdateLiveUniforms re-reads every live uniform from the registry into a zeroed
// LiveUniformsBuf. Values whose kind does not match the slot count leave zeros.
// Panics on a slot count other than 1 to 4, which only a packing bug can produce.
//
// Parameters:
//   - reg: the registry holding the current document values
func (m *Mapping) UpdateLiveUniforms(reg live.Registry) {
	clear(m.LiveUniformsBuf)
	for _, input := range m.LiveUniforms.Inputs {
		if input.LivePtr == nil {
			continue
		}
		node, ok := reg.Node(*input.LivePtr)
		if !ok {
			continue
		}
		v, o := node.Value, input.Offset
		switch input.Slots {
		case 1:
			if v.Kind == live.ValueFloat {
				m.LiveUniformsBuf[o] = float32(v.Float)
			}
		case 2:
			if v.Kind == live.ValueVec2 {
				copy(m.LiveUniformsBuf[o:o+2], v.Vec[:2])
			}
		case 3:
			if v.Kind == live.ValueVec3 {
				copy(m.LiveUniformsBuf[o:o+3], v.Vec[:3])
			}
		case 4:
			if v.Kind == live.ValueVec4 || v.Kind == live.ValueColor {
				c := v.Vec4()
				copy(m.LiveUniformsBuf[o:o+4], c[:])
			}
		default:
			panic(fmt.Sprintf("layout: live uniform %q has %d slots; only float, vec2, vec3, vec4 and color values can be live", input.Id, input.Slots))
		}
	}
}
