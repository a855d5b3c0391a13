package live

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DrawVars stands in for the renderer's marker type; only the name matters.
type DrawVars struct{}

type testShape int

func (testShape) LiveVariants() []Id { return []Id{"box", "circle"} }

type testRect struct {
	RectPos  mgl32.Vec2
	RectSize mgl32.Vec2
}

type testQuad struct {
	testRect
	Geom     mgl32.Vec2 `live:"geom,geometry"`
	DrawVars DrawVars
	Color    mgl32.Vec4
	Shape    testShape
	Scale    float32    `live:"zoom,calc"`
	Tint     mgl32.Vec4 `live:",uniform:draw"`
	Skipped  float32    `live:"-"`
	hidden   float32
}

func TestReflectType(t *testing.T) {
	infos := ReflectType(&testQuad{})
	require.Len(t, infos, 3)

	quad := infos[0]
	assert.Equal(t, Id("testQuad"), quad.Name)
	assert.Equal(t, TypeStruct, quad.Kind)
	assert.Equal(t, []FieldInfo{
		{Id: IdDerefTarget, Type: "testRect", Kind: FieldLive},
		{Id: "geom", Type: TypeVec2, Kind: FieldLive, Role: RoleGeometry},
		{Id: IdDrawVars, Type: TypeDrawVars, Kind: FieldCalc},
		{Id: "color", Type: TypeVec4, Kind: FieldLive},
		{Id: "shape", Type: "testShape", Kind: FieldLive},
		{Id: "zoom", Type: TypeF32, Kind: FieldCalc},
		{Id: "tint", Type: TypeVec4, Kind: FieldLive, Role: RoleUniform, Block: "draw"},
	}, quad.Fields)

	rect := infos[1]
	assert.Equal(t, Id("testRect"), rect.Name)
	assert.Equal(t, []FieldInfo{
		{Id: "rect_pos", Type: TypeVec2, Kind: FieldLive},
		{Id: "rect_size", Type: TypeVec2, Kind: FieldLive},
	}, rect.Fields)

	shape := infos[2]
	assert.Equal(t, TypeEnum, shape.Kind)
	assert.Equal(t, []Id{"box", "circle"}, shape.Variants)
}

func TestReflectTypeRejectsNonStruct(t *testing.T) {
	assert.Panics(t, func() { ReflectType(3) })
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"RectPos":    "rect_pos",
		"UVScale":    "uv_scale",
		"Color":      "color",
		"Brightness": "brightness",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
