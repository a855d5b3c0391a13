package live

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ValueKind tags the contents of a Value.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueBool
	ValueFloat
	ValueVec2
	ValueVec3
	ValueVec4
	ValueColor
	ValueId
	ValueString

	// ValueObject is a structural node: a nested table without a class.
	ValueObject
	// ValueClass is a structural node describing a draw shader; Id holds the type name.
	ValueClass
	// ValueDsl is a single declaration line from a shader body; Str holds the normalized text.
	ValueDsl
)

// String returns the kind name used in diagnostics.
func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueBool:
		return "bool"
	case ValueFloat:
		return "float"
	case ValueVec2:
		return "vec2"
	case ValueVec3:
		return "vec3"
	case ValueVec4:
		return "vec4"
	case ValueColor:
		return "color"
	case ValueId:
		return "id"
	case ValueString:
		return "string"
	case ValueObject:
		return "object"
	case ValueClass:
		return "class"
	case ValueDsl:
		return "dsl"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged document value. Only the fields matching Kind are meaningful.
// Values are comparable with ==, which is what fingerprinting relies on.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Float float64
	// Vec holds Vec2/Vec3/Vec4 components; unused trailing components are zero.
	Vec   mgl32.Vec4
	Color uint32
	// Id holds identifier values and the type name of class nodes.
	Id Id
	// Str holds string values and DSL declaration text.
	Str string
}

func NewBool(b bool) Value       { return Value{Kind: ValueBool, Bool: b} }
func NewFloat(f float64) Value   { return Value{Kind: ValueFloat, Float: f} }
func NewColor(c uint32) Value    { return Value{Kind: ValueColor, Color: c} }
func NewId(id Id) Value          { return Value{Kind: ValueId, Id: id} }
func NewString(s string) Value   { return Value{Kind: ValueString, Str: s} }
func NewObject() Value           { return Value{Kind: ValueObject} }
func NewClass(typeName Id) Value { return Value{Kind: ValueClass, Id: typeName} }
func NewDsl(text string) Value   { return Value{Kind: ValueDsl, Str: text} }
func NewVec4(v mgl32.Vec4) Value { return Value{Kind: ValueVec4, Vec: v} }
func NewVec3(v mgl32.Vec3) Value { return Value{Kind: ValueVec3, Vec: v.Vec4(0)} }
func NewVec2(v mgl32.Vec2) Value { return Value{Kind: ValueVec2, Vec: mgl32.Vec4{v[0], v[1], 0, 0}} }

// IsValueType reports whether the value is concrete data rather than document structure.
func (v Value) IsValueType() bool {
	switch v.Kind {
	case ValueBool, ValueFloat, ValueVec2, ValueVec3, ValueVec4, ValueColor, ValueId, ValueString:
		return true
	}
	return false
}

// IsDsl reports whether the value is a shader declaration line.
func (v Value) IsDsl() bool {
	return v.Kind == ValueDsl
}

// Vec4 returns the value as four floats. Colors are unpacked with ColorToVec4.
func (v Value) Vec4() mgl32.Vec4 {
	if v.Kind == ValueColor {
		return ColorToVec4(v.Color)
	}
	return v.Vec
}

// String formats the value for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueVec2:
		return fmt.Sprintf("vec2(%g, %g)", v.Vec[0], v.Vec[1])
	case ValueVec3:
		return fmt.Sprintf("vec3(%g, %g, %g)", v.Vec[0], v.Vec[1], v.Vec[2])
	case ValueVec4:
		return fmt.Sprintf("vec4(%g, %g, %g, %g)", v.Vec[0], v.Vec[1], v.Vec[2], v.Vec[3])
	case ValueColor:
		return fmt.Sprintf("#%08x", v.Color)
	case ValueId:
		return string(v.Id)
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueClass:
		return "class " + string(v.Id)
	case ValueDsl:
		return v.Str
	default:
		return v.Kind.String()
	}
}

// ColorToVec4 unpacks a 0xRRGGBBAA color into normalized RGBA components.
//
// Parameters:
//   - c: the packed color, red in the high byte
//
// Returns:
//   - mgl32.Vec4: red, green, blue and alpha in [0, 1]
func ColorToVec4(c uint32) mgl32.Vec4 {
	return mgl32.Vec4{
		float32((c>>24)&0xff) / 255.0,
		float32((c>>16)&0xff) / 255.0,
		float32((c>>8)&0xff) / 255.0,
		float32(c&0xff) / 255.0,
	}
}

// ParseColor parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa" into 0xRRGGBBAA.
// Colors without alpha are opaque.
//
// Parameters:
//   - s: the color literal including the leading '#'
//
// Returns:
//   - uint32: the packed color
//   - error: if the literal is malformed
func ParseColor(s string) (uint32, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return 0, fmt.Errorf("color %q must start with '#'", s)
	}
	if len(hex) == 3 || len(hex) == 4 {
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return 0, fmt.Errorf("color %q must have 3, 4, 6 or 8 hex digits", s)
	}
	c, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return uint32(c), nil
}
