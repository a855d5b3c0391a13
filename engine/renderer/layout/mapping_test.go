package layout

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instance(id live.Id, ty shader.ShaderTy, kind live.FieldKind, varDef bool) shader.FieldDecl {
	return shader.FieldDecl{Id: id, Ty: ty, Category: shader.CategoryInstance, Kind: kind, VarDef: varDef}
}

func uniform(id live.Id, ty shader.ShaderTy, block live.Id) shader.FieldDecl {
	return shader.FieldDecl{Id: id, Ty: ty, Category: shader.CategoryUniform, Block: block}
}

func TestFromDefExample(t *testing.T) {
	def := &shader.ShaderDef{Fields: []shader.FieldDecl{
		{Id: "pos", Ty: shader.TyVec2, Category: shader.CategoryGeometry},
		instance("a", shader.TyVec3, live.FieldLive, false),
		instance("b", shader.TyFloat, live.FieldLive, false),
	}}

	m := FromDef(def, PackingMetal, PackingMetal)

	a, _ := m.Instances.Find("a")
	b, _ := m.Instances.Find("b")
	assert.Equal(t, 0, a.Offset)
	assert.Equal(t, 4, b.Offset)
	assert.Equal(t, 8, m.Instances.TotalSlots)
	assert.Equal(t, 4, m.Geometries.TotalSlots)
}

func TestFromDefGroups(t *testing.T) {
	def := &shader.ShaderDef{
		Flags: shader.Flags{Debug: true},
		Fields: []shader.FieldDecl{
			instance("brightness", shader.TyFloat, live.FieldLive, true),
			uniform("tint", shader.TyVec4, shader.BlockUser),
			uniform("zoom", shader.TyFloat, shader.BlockUser),
			uniform("camera", shader.TyVec4, shader.BlockView),
			uniform("time", shader.TyFloat, shader.BlockPass),
			uniform("depth", shader.TyFloat, shader.BlockDraw),
			{Id: "image", Ty: shader.TyTexture2D, Category: shader.CategoryTexture},
			instance("rect_pos", shader.TyVec2, live.FieldCalc, false),
			instance("rect_size", shader.TyVec2, live.FieldCalc, false),
			instance("color", shader.TyVec4, live.FieldLive, false),
		},
		LiveRefs: []shader.LiveRef{{Id: "accent", Ty: shader.TyVec4}, {Id: "scale", Ty: shader.TyFloat}},
	}

	m := FromDef(def, PackingGLSL, PackingAttribute)

	assert.True(t, m.Flags.Debug)
	assert.Equal(t, 1, m.RectPos)
	assert.Equal(t, 3, m.RectSize)
	assert.Equal(t, 9, m.Instances.TotalSlots)

	require.Len(t, m.VarInstances.Inputs, 1)
	assert.Equal(t, live.Id("brightness"), m.VarInstances.Inputs[0].Id)
	assert.Equal(t, 1, m.VarInstances.TotalSlots)

	require.Len(t, m.LiveInstances.Inputs, 2)
	assert.Equal(t, live.Id("brightness"), m.LiveInstances.Inputs[0].Id)
	assert.Equal(t, live.Id("color"), m.LiveInstances.Inputs[1].Id)
	assert.Equal(t, 5, m.LiveInstances.Inputs[1].Offset)

	zoom, _ := m.UserUniforms.Find("zoom")
	assert.Equal(t, 4, zoom.Offset)
	assert.Equal(t, 8, m.UserUniforms.TotalSlots)
	assert.Len(t, m.ViewUniforms.Inputs, 1)
	assert.Len(t, m.PassUniforms.Inputs, 1)
	assert.Len(t, m.DrawUniforms.Inputs, 1)
	assert.Equal(t, []TextureInput{{Id: "image", Ty: shader.TyTexture2D}}, m.Textures)

	assert.Equal(t, 8, m.LiveUniforms.TotalSlots)
	assert.Len(t, m.LiveUniformsBuf, 8)
	for _, g := range m.Groups() {
		if g.Inputs.Packing != PackingAttribute {
			assert.Zero(t, g.Inputs.TotalSlots%4, g.Name)
		}
	}
}

func TestFromDefWithoutRect(t *testing.T) {
	m := FromDef(&shader.ShaderDef{}, PackingHLSL, PackingAttribute)
	assert.Equal(t, -1, m.RectPos)
	assert.Equal(t, -1, m.RectSize)
	assert.Len(t, m.Groups(), 9)
}

const liveDoc = `[vals]
f = 1.5
v2 = [1.0, 2.0]
c = "#ff000080"
wrong = 3.0
`

func liveMapping(t *testing.T) (live.Registry, *Mapping) {
	t.Helper()
	doc, err := live.ParseDocument("vals.toml", liveDoc)
	require.NoError(t, err)
	reg := live.NewRegistry()
	reg.AddDocument(doc)

	ref := func(path string, ty shader.ShaderTy) shader.LiveRef {
		ptr, ok := reg.Resolve(path)
		require.True(t, ok, path)
		return shader.LiveRef{Id: live.Id(path), Ptr: ptr, Ty: ty}
	}
	def := &shader.ShaderDef{LiveRefs: []shader.LiveRef{
		ref("vals.f", shader.TyFloat),
		ref("vals.v2", shader.TyVec2),
		ref("vals.c", shader.TyVec4),
		ref("vals.wrong", shader.TyVec3),
	}}
	return reg, FromDef(def, PackingGLSL, PackingAttribute)
}

func TestUpdateLiveUniforms(t *testing.T) {
	reg, m := liveMapping(t)
	require.Equal(t, 12, m.LiveUniforms.TotalSlots)

	m.UpdateLiveUniforms(reg)
	buf := m.LiveUniformsBuf
	assert.Equal(t, []float32{1.5, 1, 2, 1, 0, 0}, buf[:6])
	assert.InDelta(t, 128.0/255.0, buf[6], 1e-6)
	assert.Equal(t, []float32{0, 0, 0, 0, 0}, buf[7:])

	ptr, _ := reg.Resolve("vals.f")
	require.NoError(t, reg.SetValue(ptr, live.NewFloat(4)))
	m.UpdateLiveUniforms(reg)
	assert.Equal(t, float32(4), m.LiveUniformsBuf[0])
}

func TestUpdateLiveUniformsPanicsOnUnsupportedSlots(t *testing.T) {
	reg, _ := liveMapping(t)
	ptr, _ := reg.Resolve("vals.f")
	m := FromDef(&shader.ShaderDef{LiveRefs: []shader.LiveRef{{Id: "tex", Ptr: ptr, Ty: shader.TyTexture2D}}}, PackingGLSL, PackingAttribute)
	assert.Panics(t, func() { m.UpdateLiveUniforms(reg) })
}
