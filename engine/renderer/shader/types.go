// Package shader turns a draw shader's declarations into an ordered ShaderDef. Fields come
// from two places: //@oxy: annotations in the class node's shader body, and the field list
// of the registered Go type, where every field after the draw_vars marker becomes a
// per-instance input. The resulting ShaderDef is what the layout packer consumes.
package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

// Kind is the scalar/vector shape of a shader field.
type Kind int

const (
	KindFloat Kind = iota
	KindVec2
	KindVec3
	KindVec4
	// KindEnum holds a registered enum's variant index in one slot.
	KindEnum
	// KindTexture2D is opaque to the packer and occupies no float slots.
	KindTexture2D
)

// ShaderTy is the semantic type of a shader field.
type ShaderTy struct {
	Kind Kind
	// Enum names the registered enum type for KindEnum.
	Enum live.Id
}

var (
	TyFloat     = ShaderTy{Kind: KindFloat}
	TyVec2      = ShaderTy{Kind: KindVec2}
	TyVec3      = ShaderTy{Kind: KindVec3}
	TyVec4      = ShaderTy{Kind: KindVec4}
	TyTexture2D = ShaderTy{Kind: KindTexture2D}
)

// EnumTy returns the type of a field holding a variant of the named enum.
func EnumTy(name live.Id) ShaderTy {
	return ShaderTy{Kind: KindEnum, Enum: name}
}

// Slots returns the number of float slots the type occupies.
func (t ShaderTy) Slots() int {
	switch t.Kind {
	case KindFloat, KindEnum:
		return 1
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	case KindVec4:
		return 4
	default:
		return 0
	}
}

func (t ShaderTy) String() string {
	switch t.Kind {
	case KindFloat:
		return "float"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindEnum:
		return "enum " + string(t.Enum)
	case KindTexture2D:
		return "texture2d"
	default:
		return fmt.Sprintf("ty(%d)", int(t.Kind))
	}
}

// tyFromLiveType maps a registered primitive type name to its shader type.
func tyFromLiveType(name live.Id) (ShaderTy, bool) {
	switch name {
	case live.TypeF32:
		return TyFloat, true
	case live.TypeVec2:
		return TyVec2, true
	case live.TypeVec3:
		return TyVec3, true
	case live.TypeVec4:
		return TyVec4, true
	}
	return ShaderTy{}, false
}

// Category is the closed set of destinations a field can be packed into.
type Category int

const (
	CategoryGeometry Category = iota
	CategoryInstance
	CategoryUniform
	CategoryTexture
)

func (c Category) String() string {
	switch c {
	case CategoryGeometry:
		return "geometry"
	case CategoryInstance:
		return "instance"
	case CategoryUniform:
		return "uniform"
	case CategoryTexture:
		return "texture"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Uniform blocks.
const (
	BlockUser live.Id = "user"
	BlockDraw live.Id = "draw"
	BlockView live.Id = "view"
	BlockPass live.Id = "pass"
)

// FieldDecl is one classified shader field.
type FieldDecl struct {
	Id       live.Id
	Ty       ShaderTy
	Category Category
	// Block is the uniform block of CategoryUniform fields.
	Block live.Id
	// Ptr is the declaring node, the class node for fields of the Go type.
	Ptr  live.Ptr
	Span live.Span
	// VarDef is set for instance fields declared in the shader body rather than the Go type.
	VarDef bool
	Kind   live.FieldKind
}

// LiveRef is a hot-reloadable uniform constant: a document value resolved into the live
// uniform buffer at compile time and again after every value-only edit.
type LiveRef struct {
	Id   live.Id
	Ptr  live.Ptr
	Ty   ShaderTy
	Span live.Span
}

// Flags are behavior switches declared with //@oxy:flag.
type Flags struct {
	Debug bool
	// DrawCallNoCompare batches instances without comparing draw call groups.
	DrawCallNoCompare bool
	// DrawCallAlways starts a new draw call for every recorded instance.
	DrawCallAlways bool
}

// ShaderDef is the ordered result of analysing a draw shader.
type ShaderDef struct {
	// TypeName is the registered Go type of the class node.
	TypeName live.Id
	Fields   []FieldDecl
	Flags    Flags
	LiveRefs []LiveRef
}

// FieldsOf returns the fields of one category in declaration order.
//
// Parameters:
//   - c: the category to select
//
// Returns:
//   - []FieldDecl: the matching fields
func (d *ShaderDef) FieldsOf(c Category) []FieldDecl {
	var out []FieldDecl
	for _, f := range d.Fields {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}
