// Package drawvars holds the per-object instance state of a draw shader: the bound shader
// handle, the user uniform block, texture slots and the instance row. Values from the
// document are applied by field name into the buffer the bound shader's layout assigns
// them to, and edits made after recording are patched straight into the recorded draw
// call.
package drawvars

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Context is the owning execution context a DrawVars binds and records against.
type Context interface {
	Registry() live.Registry
	DrawShaders() drawshader.Cache
	Recorder() drawlist.Recorder
	Reporter() diagnostics.Reporter
}

// ApplyFrom says where applied values come from.
type ApplyFrom int

const (
	// ApplyNewFromDoc is the first apply of a document.
	ApplyNewFromDoc ApplyFrom = iota
	// ApplyUpdateFromDoc re-applies a reloaded or edited document.
	ApplyUpdateFromDoc
	// ApplyAnimate sets values from code.
	ApplyAnimate
)

// IsFromDoc reports whether the values come from a document.
func (a ApplyFrom) IsFromDoc() bool {
	return a == ApplyNewFromDoc || a == ApplyUpdateFromDoc
}

// DrawVars is the instance state of one drawable. The zero value is unbound.
type DrawVars struct {
	Area          drawlist.Area
	DrawCallGroup live.Id

	// VarInstanceStart is where the instance row begins in VarInstances; the row runs to
	// VarInstanceStart+VarInstanceSlots.
	VarInstanceStart int
	VarInstanceSlots int

	// Shader is the bound handle, nil while unbound.
	Shader *drawshader.DrawShader
	// Geometry supplies vertex inputs to the shader at bind time, may be nil.
	Geometry shader.GeometryFields

	UserUniforms [drawshader.DrawCallUserUniforms]float32
	TextureSlots [drawshader.DrawCallTextureSlots]drawlist.TextureId
	VarInstances [drawshader.DrawCallVarInstances]float32
}

// New creates unbound instance state with a geometry provider.
//
// Parameters:
//   - geom: the geometry provider, may be nil
//
// Returns:
//   - *DrawVars: the unbound state
func New(geom shader.GeometryFields) *DrawVars {
	return &DrawVars{Geometry: geom}
}

// CanInstance reports whether a shader is bound.
func (d *DrawVars) CanInstance() bool {
	return d.Shader != nil
}

// compiled returns the bound shader when the handle is still current.
func (d *DrawVars) compiled(cx Context) (*drawshader.CompiledShader, bool) {
	if d.Shader == nil {
		return nil, false
	}
	return cx.DrawShaders().Shader(*d.Shader)
}

// InitShader binds the class node at ptr through the context's shader cache and sets up
// the instance row. A compile failure leaves the state unbound; the cache reports it.
//
// Parameters:
//   - cx: the owning context
//   - ptr: the class node
//
// Returns:
//   - error: the compile error, if any
func (d *DrawVars) InitShader(cx Context, ptr live.Ptr) error {
	b, err := cx.DrawShaders().Bind(cx.Registry(), ptr, d.Geometry)
	if err != nil {
		d.Shader = nil
		return err
	}
	ds := b.Shader
	d.Shader = &ds
	d.DrawCallGroup = b.DrawCallGroup
	d.InitSlicer(cx)
	return nil
}

// InitSlicer places the instance row at the end of VarInstances.
func (d *DrawVars) InitSlicer(cx Context) {
	cs, ok := d.compiled(cx)
	if !ok {
		return
	}
	slots := cs.Mapping.Instances.TotalSlots
	d.VarInstanceStart = len(d.VarInstances) - slots
	d.VarInstanceSlots = slots
}

// AsSlice returns the instance row.
func (d *DrawVars) AsSlice() []float32 {
	return d.VarInstances[d.VarInstanceStart : d.VarInstanceStart+d.VarInstanceSlots]
}

// rebind binds again when the handle is missing, from an older flush generation, or bound
// to a different class node whose declaration does not match the bound shader.
func (d *DrawVars) rebind(cx Context, ptr live.Ptr) error {
	cs, ok := d.compiled(cx)
	if ok && d.Shader.Ptr == ptr {
		return nil
	}
	if ok {
		fp, group := drawshader.NewFingerprint(cx.Registry(), ptr, d.Geometry)
		if fp.Equal(cs.Fingerprint) {
			d.Shader.Ptr = ptr
			d.DrawCallGroup = group
			return nil
		}
	}
	return d.InitShader(cx, ptr)
}

// BeforeApply binds the shader of the class node being applied if needed.
//
// Parameters:
//   - cx: the owning context
//   - ptr: the class node
//
// Returns:
//   - error: the compile error when no shader could be bound
func (d *DrawVars) BeforeApply(cx Context, ptr live.Ptr) error {
	return d.rebind(cx, ptr)
}

// ApplyValue writes one named value into the buffer the bound shader assigns it to.
// User uniforms are searched first, then the instance fields declared in the shader body,
// then the remaining instance fields. Unknown names carrying a concrete value are reported
// as no matching field and otherwise ignored.
//
// Parameters:
//   - cx: the owning context
//   - id: the field name
//   - v: the value
//   - span: the value's source location for diagnostics
//
// Returns:
//   - bool: true if the value was written
func (d *DrawVars) ApplyValue(cx Context, id live.Id, v live.Value, span live.Span) bool {
	if !v.IsValueType() {
		return false
	}
	if d.Shader != nil && d.rebind(cx, d.Shader.Ptr) != nil {
		return false
	}
	cs, ok := d.compiled(cx)
	if !ok {
		cx.Reporter().Report(diagnostics.Diagnostic{
			Kind:    diagnostics.KindUnbound,
			Span:    span,
			Message: fmt.Sprintf("%s applied to draw vars without a shader", id),
		})
		return false
	}

	m := cs.Mapping
	if input, ok := m.UserUniforms.Find(id); ok {
		return d.applySlots(cx, input, d.UserUniforms[:], input.Offset, v, span)
	}
	if input, ok := m.VarInstances.Find(id); ok {
		return d.applySlots(cx, input, d.VarInstances[:], d.VarInstanceStart+input.Offset, v, span)
	}
	if id != "" {
		if input, ok := m.Instances.Find(id); ok {
			return d.applySlots(cx, input, d.VarInstances[:], d.VarInstanceStart+input.Offset, v, span)
		}
	}

	switch id {
	case live.IdDebug, live.IdDrawCallGroup:
		return false
	}
	cx.Reporter().Report(diagnostics.Diagnostic{
		Kind:    diagnostics.KindNoMatchingField,
		Span:    span,
		Message: fmt.Sprintf("%s is not a field of %s", id, cs.TypeName),
	})
	return false
}

func (d *DrawVars) applySlots(cx Context, input layout.Input, out []float32, offset int, v live.Value, span live.Span) bool {
	if input.Slots < 1 || input.Slots > 4 {
		return false
	}
	vec, ok := decode(cx.Registry(), input, v)
	if !ok {
		cx.Reporter().Report(diagnostics.Diagnostic{
			Kind:    diagnostics.KindTypeMismatch,
			Span:    span,
			Message: fmt.Sprintf("%s is %s, cannot assign %s", input.Id, input.Ty, v.Kind),
		})
		return false
	}
	copy(out[offset:offset+input.Slots], vec[:input.Slots])
	return true
}

// decode converts a value to the slot count of input. Enum fields take a variant id and
// store its index.
func decode(reg live.Registry, input layout.Input, v live.Value) (mgl32.Vec4, bool) {
	switch input.Slots {
	case 1:
		switch v.Kind {
		case live.ValueFloat:
			return mgl32.Vec4{float32(v.Float)}, true
		case live.ValueBool:
			if v.Bool {
				return mgl32.Vec4{1}, true
			}
			return mgl32.Vec4{}, true
		case live.ValueId:
			if input.Ty.Kind != shader.KindEnum {
				return mgl32.Vec4{}, false
			}
			info, ok := reg.TypeInfo(input.Ty.Enum)
			if !ok {
				return mgl32.Vec4{}, false
			}
			for i, variant := range info.Variants {
				if variant == v.Id {
					return mgl32.Vec4{float32(i)}, true
				}
			}
		}
	case 2:
		if v.Kind == live.ValueVec2 {
			return v.Vec, true
		}
	case 3:
		if v.Kind == live.ValueVec3 {
			return v.Vec, true
		}
	case 4:
		if v.Kind == live.ValueVec4 || v.Kind == live.ValueColor {
			return v.Vec4(), true
		}
	}
	return mgl32.Vec4{}, false
}

// AfterApply refreshes the instance row and patches the recorded draw call.
//
// Parameters:
//   - cx: the owning context
//   - from: where the values came from
func (d *DrawVars) AfterApply(cx Context, from ApplyFrom) {
	if from.IsFromDoc() {
		d.InitSlicer(cx)
	}
	d.UpdateVarsInPlace(cx)
}

// Apply binds the class node at ptr and applies its child values in document order.
// Children of an unbound class are skipped; the compile failure is reported once by the
// cache.
//
// Parameters:
//   - cx: the owning context
//   - from: where the values come from
//   - ptr: the class node
//
// Returns:
//   - error: the compile error when no shader could be bound
func (d *DrawVars) Apply(cx Context, from ApplyFrom, ptr live.Ptr) error {
	if err := d.BeforeApply(cx, ptr); err != nil {
		return err
	}
	reg := cx.Registry()
	for _, child := range reg.Children(ptr) {
		node, ok := reg.Node(child)
		if !ok || node.Value.IsDsl() {
			continue
		}
		d.ApplyValue(cx, node.Id, node.Value, node.Span)
	}
	d.AfterApply(cx, from)
	return nil
}

// SetTexture assigns a texture to a named texture slot of the bound shader.
//
// Parameters:
//   - cx: the owning context
//   - id: the texture field name
//   - tex: the backend texture
//
// Returns:
//   - bool: false if unbound or the shader has no such texture
func (d *DrawVars) SetTexture(cx Context, id live.Id, tex drawlist.TextureId) bool {
	cs, ok := d.compiled(cx)
	if !ok {
		return false
	}
	for i, t := range cs.Mapping.Textures {
		if t.Id == id {
			d.TextureSlots[i] = tex
			return true
		}
	}
	return false
}

// Instance returns the instance row range of a named field.
//
// Parameters:
//   - cx: the owning context
//   - id: the instance field name
//
// Returns:
//   - []float32: the field's slots, writes go to the row
//   - bool: false if unbound or the field is not an instance field
func (d *DrawVars) Instance(cx Context, id live.Id) ([]float32, bool) {
	cs, ok := d.compiled(cx)
	if !ok {
		return nil, false
	}
	input, ok := cs.Mapping.Instances.Find(id)
	if !ok {
		return nil, false
	}
	return d.AsSlice()[input.Offset : input.Offset+input.Slots], true
}

// Record appends repeat copies of the instance row to a pass and remembers the area.
// Unbound state records nothing.
//
// Parameters:
//   - cx: the owning context
//   - pass: the pass to record into
//   - repeat: the number of instances
//
// Returns:
//   - error: a recorder error
func (d *DrawVars) Record(cx Context, pass drawlist.PassId, repeat int) error {
	cs, ok := d.compiled(cx)
	if !ok || repeat <= 0 {
		d.Area = drawlist.Area{}
		return nil
	}
	row := d.AsSlice()
	instances := make([]float32, 0, len(row)*repeat)
	for range repeat {
		instances = append(instances, row...)
	}
	area, err := cx.Recorder().AddInstances(pass, drawlist.InstanceRequest{
		ShaderId:     cs.Id,
		Group:        d.DrawCallGroup,
		Stride:       cs.Mapping.Instances.TotalSlots,
		NoCompare:    cs.Mapping.Flags.DrawCallNoCompare,
		Always:       cs.Mapping.Flags.DrawCallAlways,
		Instances:    instances,
		UserUniforms: d.UserUniforms,
		Textures:     d.TextureSlots,
	})
	if err != nil {
		d.Area = drawlist.Area{}
		return fmt.Errorf("record %s: %w", cs.TypeName, err)
	}
	d.Area = area
	return nil
}

// UpdateVarsInPlace copies the current live instance fields into every recorded repetition
// of this state's area and the user uniforms into its draw call, then flags the pass and
// draw call dirty. Nothing happens when the area is no longer valid; an area recorded
// with another shader or stride is dropped.
//
// Parameters:
//   - cx: the owning context
func (d *DrawVars) UpdateVarsInPlace(cx Context) {
	cs, ok := d.compiled(cx)
	if !ok {
		return
	}
	dc, ok := cx.Recorder().ValidInstance(d.Area)
	if !ok {
		return
	}

	m := cs.Mapping
	repeat := d.Area.InstanceCount
	stride := m.Instances.TotalSlots
	// the area was recorded with another layout
	if dc.ShaderId != cs.Id || dc.Stride != stride {
		d.Area = drawlist.Area{}
		return
	}
	instances := dc.Instances[d.Area.InstanceOffset:]
	row := d.AsSlice()

	for _, input := range m.LiveInstances.Inputs {
		for j := 0; j < repeat; j++ {
			copy(instances[input.Offset+j*stride:input.Offset+j*stride+input.Slots], row[input.Offset:input.Offset+input.Slots])
		}
	}
	for _, input := range m.UserUniforms.Inputs {
		copy(dc.UserUniforms[input.Offset:input.Offset+input.Slots], d.UserUniforms[input.Offset:input.Offset+input.Slots])
	}

	cx.Recorder().MarkPaintDirty(d.Area.Pass)
	dc.InstanceDirty = true
	dc.UniformsDirty = true
}
