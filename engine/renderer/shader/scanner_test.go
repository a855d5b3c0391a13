package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var drawVarsField = live.FieldInfo{Id: live.IdDrawVars, Type: live.TypeDrawVars, Kind: live.FieldCalc}

func scanFields(t *testing.T, typeName live.Id, types ...live.TypeInfo) ([]FieldDecl, error) {
	t.Helper()
	reg := live.NewRegistry()
	reg.RegisterType(types...)
	b := NewDefBuilder(typeName, live.Ptr{})
	err := Scan(reg, typeName, b, live.Ptr{}, live.Span{File: "test.toml"})
	return b.Build().Fields, err
}

type fieldShape struct {
	Id       live.Id
	Ty       ShaderTy
	Category Category
}

func shapes(fields []FieldDecl) []fieldShape {
	out := make([]fieldShape, len(fields))
	for i, f := range fields {
		out[i] = fieldShape{Id: f.Id, Ty: f.Ty, Category: f.Category}
	}
	return out
}

func TestScanClassifiesAfterMarker(t *testing.T) {
	fields, err := scanFields(t, "DrawExample", live.TypeInfo{
		Name: "DrawExample",
		Kind: live.TypeStruct,
		Fields: []live.FieldInfo{
			{Id: "pos", Type: live.TypeVec2, Role: live.RoleGeometry},
			{Id: "ignored", Type: live.TypeF32},
			drawVarsField,
			{Id: "a", Type: live.TypeVec3},
			{Id: "b", Type: live.TypeF32},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []fieldShape{
		{Id: "pos", Ty: TyVec2, Category: CategoryGeometry},
		{Id: "a", Ty: TyVec3, Category: CategoryInstance},
		{Id: "b", Ty: TyFloat, Category: CategoryInstance},
	}, shapes(fields))
}

func TestScanExplicitRoles(t *testing.T) {
	fields, err := scanFields(t, "DrawImage", live.TypeInfo{
		Name: "DrawImage",
		Kind: live.TypeStruct,
		Fields: []live.FieldInfo{
			{Id: "image", Type: "Texture", Role: live.RoleTexture},
			{Id: "tint", Type: live.TypeVec4, Role: live.RoleUniform},
			{Id: "time", Type: live.TypeF32, Role: live.RoleUniform, Block: BlockPass},
			drawVarsField,
		},
	})
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, CategoryTexture, fields[0].Category)
	assert.Equal(t, TyTexture2D, fields[0].Ty)
	assert.Equal(t, BlockUser, fields[1].Block)
	assert.Equal(t, BlockPass, fields[2].Block)
}

func TestScanPadsOddNestedTypes(t *testing.T) {
	fields, err := scanFields(t, "Outer",
		live.TypeInfo{
			Name: "Outer",
			Kind: live.TypeStruct,
			Fields: []live.FieldInfo{
				drawVarsField,
				{Id: live.IdDerefTarget, Type: "Inner"},
				{Id: "c", Type: live.TypeF32},
			},
		},
		live.TypeInfo{
			Name: "Inner",
			Kind: live.TypeStruct,
			Fields: []live.FieldInfo{
				{Id: "x", Type: live.TypeF32},
				{Id: "y", Type: live.TypeVec2},
			},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []fieldShape{
		{Id: "x", Ty: TyFloat, Category: CategoryInstance},
		{Id: "y", Ty: TyVec2, Category: CategoryInstance},
		{Id: "", Ty: TyFloat, Category: CategoryInstance},
		{Id: "c", Ty: TyFloat, Category: CategoryInstance},
	}, shapes(fields))
	assert.Equal(t, live.FieldCalc, fields[2].Kind)
}

func TestScanMarkerInsideForwardedType(t *testing.T) {
	fields, err := scanFields(t, "DrawButton",
		live.TypeInfo{
			Name: "DrawButton",
			Kind: live.TypeStruct,
			Fields: []live.FieldInfo{
				{Id: live.IdDerefTarget, Type: "DrawQuad"},
				{Id: "hover", Type: live.TypeF32},
			},
		},
		live.TypeInfo{
			Name: "DrawQuad",
			Kind: live.TypeStruct,
			Fields: []live.FieldInfo{
				drawVarsField,
				{Id: "rect_pos", Type: live.TypeVec2},
				{Id: "rect_size", Type: live.TypeVec2},
			},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, []fieldShape{
		{Id: "rect_pos", Ty: TyVec2, Category: CategoryInstance},
		{Id: "rect_size", Ty: TyVec2, Category: CategoryInstance},
		{Id: "hover", Ty: TyFloat, Category: CategoryInstance},
	}, shapes(fields))
}

func TestScanEnumTakesOneSlot(t *testing.T) {
	fields, err := scanFields(t, "DrawShape",
		live.TypeInfo{
			Name:   "DrawShape",
			Kind:   live.TypeStruct,
			Fields: []live.FieldInfo{drawVarsField, {Id: "shape", Type: "Shape"}},
		},
		live.TypeInfo{Name: "Shape", Kind: live.TypeEnum, Variants: []live.Id{"box", "circle"}},
	)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, EnumTy("Shape"), fields[0].Ty)
	assert.Equal(t, 1, fields[0].Ty.Slots())
}

func TestScanForwardingCycle(t *testing.T) {
	_, err := scanFields(t, "A",
		live.TypeInfo{Name: "A", Kind: live.TypeStruct, Fields: []live.FieldInfo{{Id: live.IdDerefTarget, Type: "B"}}},
		live.TypeInfo{Name: "B", Kind: live.TypeStruct, Fields: []live.FieldInfo{{Id: live.IdDerefTarget, Type: "A"}}},
	)
	require.ErrorIs(t, err, ErrForwardingCycle)
	assert.Contains(t, err.Error(), "A -> B -> A")

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "test.toml", ce.Span.File)
}

func TestScanMissingDeclaration(t *testing.T) {
	_, err := scanFields(t, "A",
		live.TypeInfo{Name: "A", Kind: live.TypeStruct, Fields: []live.FieldInfo{{Id: live.IdDerefTarget, Type: "Gone"}}},
	)
	assert.ErrorIs(t, err, ErrMissingDeclaration)

	_, err = scanFields(t, "Nowhere")
	assert.ErrorIs(t, err, ErrMissingDeclaration)
}

func TestScanPanicsOnAuthoringErrors(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = scanFields(t, "A", live.TypeInfo{
			Name:   "A",
			Kind:   live.TypeStruct,
			Fields: []live.FieldInfo{drawVarsField, {Id: "m", Type: "Mat4"}},
		})
	})
	assert.Panics(t, func() {
		_, _ = scanFields(t, "A", live.TypeInfo{
			Name:   "A",
			Kind:   live.TypeStruct,
			Fields: []live.FieldInfo{{Id: live.IdDrawVars, Type: live.TypeDrawVars, Kind: live.FieldLive}},
		})
	})
}
