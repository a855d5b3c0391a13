package drawshader

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const buttonsDoc = `[theme]
accent = "#00ff00ff"

[ButtonA]
class = "DrawQuad"
draw_call_group = "buttons"
shader = """
//@oxy:instance hover f32
//@oxy:uniform tint vec4
//@oxy:live theme.accent color
"""
hover = 0.0

[ButtonB]
class = "DrawQuad"
shader = """
//@oxy:instance   hover  f32
//@oxy:uniform tint vec4
//@oxy:live theme.accent color
"""
hover = 1.0

[Label]
class = "DrawQuad"
shader = """
//@oxy:instance hover f32
"""

[Other]
class = "DrawText"
shader = """
//@oxy:instance hover f32
//@oxy:uniform tint vec4
//@oxy:live theme.accent color
"""

[Broken]
class = "DrawMissing"
`

var (
	drawVarsField = live.FieldInfo{Id: live.IdDrawVars, Type: live.TypeDrawVars, Kind: live.FieldCalc}
	drawQuadType  = live.TypeInfo{
		Name:   "DrawQuad",
		Kind:   live.TypeStruct,
		Fields: []live.FieldInfo{drawVarsField, {Id: "rect_pos", Type: live.TypeVec2}, {Id: "rect_size", Type: live.TypeVec2}},
	}
	drawTextType = live.TypeInfo{
		Name:   "DrawText",
		Kind:   live.TypeStruct,
		Fields: []live.FieldInfo{drawVarsField, {Id: "rect_pos", Type: live.TypeVec2}, {Id: "rect_size", Type: live.TypeVec2}},
	}
)

type testGeometry []shader.GeometryField

func (g testGeometry) GeometryFields() []shader.GeometryField { return g }

func loadButtons(t *testing.T) live.Registry {
	t.Helper()
	doc, err := live.ParseDocument("buttons.toml", buttonsDoc)
	require.NoError(t, err)
	reg := live.NewRegistry()
	reg.AddDocument(doc)
	reg.RegisterType(drawQuadType, drawTextType)
	return reg
}

func ptrOf(t *testing.T, reg live.Registry, path string) live.Ptr {
	t.Helper()
	ptr, ok := reg.Resolve(path)
	require.True(t, ok, path)
	return ptr
}

func TestBindDeduplicatesByFingerprint(t *testing.T) {
	reg := loadButtons(t)
	c := NewCache(WithUniformPacking(layout.PackingGLSL))

	a, err := c.Bind(reg, ptrOf(t, reg, "ButtonA"), nil)
	require.NoError(t, err)
	assert.Equal(t, Compiled, a.State)
	assert.Equal(t, live.Id("buttons"), a.DrawCallGroup)

	b, err := c.Bind(reg, ptrOf(t, reg, "ButtonB"), nil)
	require.NoError(t, err)
	assert.Equal(t, FingerprintHit, b.State)
	assert.Equal(t, a.Shader.Id, b.Shader.Id)
	assert.Empty(t, b.DrawCallGroup)

	again, err := c.Bind(reg, ptrOf(t, reg, "ButtonA"), nil)
	require.NoError(t, err)
	assert.Equal(t, IdentityHit, again.State)
	assert.Equal(t, live.Id("buttons"), again.DrawCallGroup)

	assert.Equal(t, Stats{IdentityHits: 1, FingerprintHits: 1, Compiles: 1, Shaders: 1}, c.Stats())
	assert.Equal(t, []int{a.Shader.Id}, c.TakeCompileQueue())
	assert.Empty(t, c.TakeCompileQueue())

	cs, ok := c.Shader(b.Shader)
	require.True(t, ok)
	assert.Equal(t, live.Id("ButtonA"), cs.Field)
	assert.Equal(t, live.Id("DrawQuad"), cs.TypeName)
	assert.Equal(t, []float32{0, 1, 0, 1}, cs.Mapping.LiveUniformsBuf)
}

func TestBindSeparatesDistinctDeclarations(t *testing.T) {
	reg := loadButtons(t)
	c := NewCache()

	a, err := c.Bind(reg, ptrOf(t, reg, "ButtonA"), nil)
	require.NoError(t, err)
	label, err := c.Bind(reg, ptrOf(t, reg, "Label"), nil)
	require.NoError(t, err)
	other, err := c.Bind(reg, ptrOf(t, reg, "Other"), nil)
	require.NoError(t, err)
	withGeom, err := c.Bind(reg, ptrOf(t, reg, "ButtonB"), testGeometry{{Id: "geom_pos", Ty: shader.TyVec2}})
	require.NoError(t, err)

	ids := map[int]bool{a.Shader.Id: true, label.Shader.Id: true, other.Shader.Id: true, withGeom.Shader.Id: true}
	assert.Len(t, ids, 4)
	assert.Equal(t, Compiled, withGeom.State)
}

func TestFlushInvalidatesHandles(t *testing.T) {
	reg := loadButtons(t)
	c := NewCache()
	ptr := ptrOf(t, reg, "ButtonA")

	before, err := c.Bind(reg, ptr, nil)
	require.NoError(t, err)
	_, ok := c.Shader(before.Shader)
	require.True(t, ok)

	c.Flush()
	assert.Equal(t, uint64(1), c.Generation())
	_, ok = c.Shader(before.Shader)
	assert.False(t, ok)
	assert.Empty(t, c.TakeCompileQueue())

	after, err := c.Bind(reg, ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, Compiled, after.State)
	assert.Equal(t, uint64(1), after.Shader.Generation)
	_, ok = c.Shader(after.Shader)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Flushes)
}

func TestBindReportsCompileFailureOnce(t *testing.T) {
	reg := loadButtons(t)
	rep := diagnostics.NewReporter(0)
	c := NewCache(WithReporter(rep))
	ptr := ptrOf(t, reg, "Broken")

	for i := 0; i < 2; i++ {
		b, err := c.Bind(reg, ptr, nil)
		require.ErrorIs(t, err, shader.ErrMissingDeclaration)
		assert.Equal(t, CompileFailed, b.State)
	}

	require.Len(t, rep.Diagnostics(), 1)
	d := rep.Diagnostics()[0]
	assert.Equal(t, diagnostics.KindCompileFailed, d.Kind)
	assert.Equal(t, "buttons.toml", d.Span.File)
	assert.Equal(t, 37, d.Span.Line)
	assert.Equal(t, Stats{Failures: 2}, c.Stats())
	assert.Empty(t, c.TakeCompileQueue())
}

func TestBindRejectsOversizedInstanceRow(t *testing.T) {
	fields := []live.FieldInfo{drawVarsField}
	for i := 0; i < 9; i++ {
		fields = append(fields, live.FieldInfo{Id: live.Id(fmt.Sprintf("v%d", i)), Type: live.TypeVec4})
	}
	doc, err := live.ParseDocument("big.toml", "[Big]\nclass = \"DrawBig\"\n")
	require.NoError(t, err)
	reg := live.NewRegistry()
	reg.AddDocument(doc)
	reg.RegisterType(live.TypeInfo{Name: "DrawBig", Kind: live.TypeStruct, Fields: fields})

	c := NewCache()
	_, err = c.Bind(reg, ptrOf(t, reg, "Big"), nil)
	assert.ErrorIs(t, err, ErrInstanceCapacity)
	assert.Zero(t, c.Stats().Shaders)
}

func TestUpdateLiveUniformsAfterEdit(t *testing.T) {
	reg := loadButtons(t)
	c := NewCache(WithUniformPacking(layout.PackingGLSL))
	b, err := c.Bind(reg, ptrOf(t, reg, "ButtonA"), nil)
	require.NoError(t, err)

	require.NoError(t, reg.SetValue(ptrOf(t, reg, "theme.accent"), live.NewColor(0xff0000ff)))
	c.UpdateLiveUniforms(reg)

	cs, _ := c.Shader(b.Shader)
	assert.Equal(t, []float32{1, 0, 0, 1}, cs.Mapping.LiveUniformsBuf)
}

func TestFingerprintEqualityIgnoresSpans(t *testing.T) {
	reg := loadButtons(t)
	a, groupA := NewFingerprint(reg, ptrOf(t, reg, "ButtonA"), nil)
	b, groupB := NewFingerprint(reg, ptrOf(t, reg, "ButtonB"), nil)
	assert.True(t, a.Equal(b))
	assert.Equal(t, live.Id("buttons"), groupA)
	assert.Empty(t, groupB)

	label, _ := NewFingerprint(reg, ptrOf(t, reg, "Label"), nil)
	assert.False(t, a.Equal(label))

	collided := Fingerprint{Hash: a.Hash, Nodes: label.Nodes}
	assert.False(t, a.Equal(collided))
}

func TestBindRecompilesAfterTypeChange(t *testing.T) {
	reg := loadButtons(t)
	c := NewCache()

	a, err := c.Bind(reg, ptrOf(t, reg, "ButtonA"), nil)
	require.NoError(t, err)

	wider := drawQuadType
	wider.Fields = append(append([]live.FieldInfo(nil), drawQuadType.Fields...), live.FieldInfo{Id: "glow", Type: live.TypeF32})
	reg.RegisterType(wider)

	b, err := c.Bind(reg, ptrOf(t, reg, "ButtonB"), nil)
	require.NoError(t, err)
	assert.Equal(t, Compiled, b.State)
	assert.NotEqual(t, a.Shader.Id, b.Shader.Id)

	cs, ok := c.Shader(b.Shader)
	require.True(t, ok)
	var ids []live.Id
	for _, in := range cs.Mapping.Instances.Inputs {
		ids = append(ids, in.Id)
	}
	assert.Contains(t, ids, live.Id("glow"))
	assert.Equal(t, 6, cs.Mapping.Instances.TotalSlots)
}

func TestFingerprintStopsAtForwardingCycle(t *testing.T) {
	doc, err := live.ParseDocument("loop.toml", "[Loop]\nclass = \"DrawLoop\"\n")
	require.NoError(t, err)
	reg := live.NewRegistry()
	reg.AddDocument(doc)
	reg.RegisterType(
		live.TypeInfo{Name: "DrawLoop", Kind: live.TypeStruct, Fields: []live.FieldInfo{{Id: live.IdDerefTarget, Type: "Inner"}}},
		live.TypeInfo{Name: "Inner", Kind: live.TypeStruct, Fields: []live.FieldInfo{{Id: live.IdDerefTarget, Type: "DrawLoop"}}},
	)

	fp, _ := NewFingerprint(reg, ptrOf(t, reg, "Loop"), nil)
	assert.NotEmpty(t, fp.Nodes)

	_, err = NewCache().Bind(reg, ptrOf(t, reg, "Loop"), nil)
	assert.ErrorIs(t, err, shader.ErrForwardingCycle)
}
