package live

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-gl/mathgl/mgl32"
)

// TypeKind distinguishes registered type shapes.
type TypeKind int

const (
	TypeStruct TypeKind = iota
	TypeEnum
	TypePrimitive
)

// FieldKind says where a field's value comes from.
type FieldKind int

const (
	// FieldLive fields are applied from the document and may be live-edited.
	FieldLive FieldKind = iota
	// FieldCalc fields are computed by code at draw time.
	FieldCalc
)

// FieldRole pins a type field to a shader category regardless of its position
// relative to the draw_vars marker.
type FieldRole int

const (
	RoleNone FieldRole = iota
	RoleGeometry
	RoleUniform
	RoleTexture
)

// FieldInfo describes one declared field of a registered type.
type FieldInfo struct {
	Id   Id
	Type Id
	Kind FieldKind
	Role FieldRole
	// Block is the uniform block for RoleUniform fields ("user" when empty).
	Block Id
}

// TypeInfo describes a registered type: its ordered fields, or its variants for enums.
type TypeInfo struct {
	Name     Id
	Kind     TypeKind
	Fields   []FieldInfo
	Variants []Id
}

// Enum is implemented by Go types that should register as enumerated shader values.
// An enum field occupies one slot holding the variant index.
type Enum interface {
	LiveVariants() []Id
}

var (
	float32Type = reflect.TypeOf(float32(0))
	vec2Type    = reflect.TypeOf(mgl32.Vec2{})
	vec3Type    = reflect.TypeOf(mgl32.Vec3{})
	vec4Type    = reflect.TypeOf(mgl32.Vec4{})
	enumType    = reflect.TypeOf((*Enum)(nil)).Elem()
)

// ReflectType derives TypeInfo values for a Go struct and every struct or enum type
// reachable through its fields. Field ids default to the snake_case field name and
// can be overridden with a `live:"name,opts"` tag. Options:
//   - deref: forwarding field, scanning continues into its type (embedded structs imply it)
//   - calc: computed at draw time, not applied from the document
//   - geometry, texture, uniform, uniform:<block>: explicit shader role
//
// A field whose type is named DrawVars becomes the draw_vars marker. Unexported fields
// and fields tagged `live:"-"` are skipped; embedded structs are followed even when unexported.
//
// Parameters:
//   - v: a struct value or pointer to one
//
// Returns:
//   - []TypeInfo: the root type first, followed by every nested type
func ReflectType(v any) []TypeInfo {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("live: ReflectType requires a struct, got %v", t))
	}
	r := &reflector{seen: make(map[reflect.Type]bool)}
	r.walk(t)
	return r.infos
}

type reflector struct {
	infos []TypeInfo
	seen  map[reflect.Type]bool
}

func (r *reflector) walk(t reflect.Type) Id {
	name := reflectTypeName(t)
	if r.seen[t] {
		return name
	}
	r.seen[t] = true

	if t.Implements(enumType) {
		e := reflect.Zero(t).Interface().(Enum)
		r.infos = append(r.infos, TypeInfo{Name: name, Kind: TypeEnum, Variants: e.LiveVariants()})
		return name
	}
	if reflect.PointerTo(t).Implements(enumType) {
		e := reflect.New(t).Interface().(Enum)
		r.infos = append(r.infos, TypeInfo{Name: name, Kind: TypeEnum, Variants: e.LiveVariants()})
		return name
	}
	if t.Kind() != reflect.Struct || t == vec2Type || t == vec3Type || t == vec4Type {
		return name
	}

	idx := len(r.infos)
	r.infos = append(r.infos, TypeInfo{Name: name, Kind: TypeStruct})
	var fields []FieldInfo
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}
		tag := f.Tag.Get("live")
		if tag == "-" {
			continue
		}
		if f.Type.Kind() == reflect.Struct && f.Type.Name() == string(TypeDrawVars) {
			fields = append(fields, FieldInfo{Id: IdDrawVars, Type: TypeDrawVars, Kind: FieldCalc})
			continue
		}

		fi := FieldInfo{Id: Id(snakeCase(f.Name)), Kind: FieldLive}
		tagName, opts, _ := strings.Cut(tag, ",")
		if tagName != "" {
			fi.Id = Id(tagName)
		}
		deref := f.Anonymous && f.Type.Kind() == reflect.Struct
		for _, opt := range strings.Split(opts, ",") {
			switch {
			case opt == "deref":
				deref = true
			case opt == "calc":
				fi.Kind = FieldCalc
			case opt == "geometry":
				fi.Role = RoleGeometry
			case opt == "texture":
				fi.Role = RoleTexture
			case opt == "uniform":
				fi.Role = RoleUniform
			case strings.HasPrefix(opt, "uniform:"):
				fi.Role = RoleUniform
				fi.Block = Id(strings.TrimPrefix(opt, "uniform:"))
			}
		}
		if deref {
			fi.Id = IdDerefTarget
		}
		fi.Type = r.walk(f.Type)
		fields = append(fields, fi)
	}
	r.infos[idx].Fields = fields
	return name
}

func reflectTypeName(t reflect.Type) Id {
	switch t {
	case float32Type:
		return TypeF32
	case vec2Type:
		return TypeVec2
	case vec3Type:
		return TypeVec3
	case vec4Type:
		return TypeVec4
	}
	if t.Name() != "" {
		return Id(t.Name())
	}
	return Id(t.String())
}

// snakeCase converts a Go identifier such as "RectPos" or "UVScale" to "rect_pos" / "uv_scale".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
