package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

// scanner walks a registered type's fields depth-first, following forwarding fields, and
// classifies every field after the draw_vars marker as a per-instance input.
type scanner struct {
	reg  live.Registry
	b    DefBuilder
	ptr  live.Ptr
	span live.Span

	// chain holds the types currently being expanded.
	chain         []live.Id
	afterDrawVars bool
}

// Scan classifies the fields of a registered type into b.
//
// Fields before the draw_vars marker are ignored unless they carry an explicit geometry,
// uniform or texture role. Fields after it become instance fields: registered enums take
// one slot, f32/Vec2/Vec3/Vec4 map to their vector type, and anything else panics. Nested
// types that contribute an odd number of instance slots are padded with one unnamed float.
//
// Parameters:
//   - reg: the registry holding type infos
//   - typeName: the type to scan
//   - b: the builder receiving the fields
//   - ptr: the class node the type is instantiated from
//   - span: the class node's span, used for every emitted field and error
//
// Returns:
//   - error: a *CompileError wrapping ErrMissingDeclaration or ErrForwardingCycle
func Scan(reg live.Registry, typeName live.Id, b DefBuilder, ptr live.Ptr, span live.Span) error {
	s := &scanner{reg: reg, b: b, ptr: ptr, span: span}
	return s.expand(typeName, 0)
}

func (s *scanner) expand(typeName live.Id, level int) error {
	if slices.Contains(s.chain, typeName) {
		path := make([]string, 0, len(s.chain)+1)
		for _, t := range s.chain {
			path = append(path, string(t))
		}
		path = append(path, string(typeName))
		return compileErr(s.span, fmt.Errorf("%w: %s", ErrForwardingCycle, strings.Join(path, " -> ")))
	}
	info, ok := s.reg.TypeInfo(typeName)
	if !ok {
		return compileErr(s.span, fmt.Errorf("%w: type %q", ErrMissingDeclaration, typeName))
	}

	s.chain = append(s.chain, typeName)
	defer func() { s.chain = s.chain[:len(s.chain)-1] }()

	slots := 0
	for _, f := range info.Fields {
		if f.Id == live.IdDerefTarget {
			if err := s.expand(f.Type, level+1); err != nil {
				return err
			}
			continue
		}
		if f.Id == live.IdDrawVars {
			if f.Kind != live.FieldCalc || f.Type != live.TypeDrawVars {
				panic(fmt.Sprintf("shader: draw_vars marker on %s must be a calc field of type %s, got %s", typeName, live.TypeDrawVars, f.Type))
			}
			s.afterDrawVars = true
			continue
		}
		if f.Role != live.RoleNone {
			s.addRole(typeName, f)
			continue
		}
		if !s.afterDrawVars {
			continue
		}
		ty := s.instanceTy(typeName, f)
		slots += ty.Slots()
		s.b.AddInstance(f.Id, ty, s.span, f.Kind)
	}

	if level > 0 && slots%2 == 1 {
		s.b.AddInstance("", TyFloat, s.span, live.FieldCalc)
	}
	return nil
}

func (s *scanner) instanceTy(owner live.Id, f live.FieldInfo) ShaderTy {
	if info, ok := s.reg.TypeInfo(f.Type); ok && info.Kind == live.TypeEnum {
		return EnumTy(f.Type)
	}
	ty, ok := tyFromLiveType(f.Type)
	if !ok {
		panic(fmt.Sprintf("shader: field %s.%s has type %s; only f32, Vec2, Vec3, Vec4 and registered enums may follow draw_vars", owner, f.Id, f.Type))
	}
	return ty
}

func (s *scanner) addRole(owner live.Id, f live.FieldInfo) {
	decl := FieldDecl{Id: f.Id, Ptr: s.ptr, Span: s.span, Kind: f.Kind}
	switch f.Role {
	case live.RoleTexture:
		decl.Category = CategoryTexture
		decl.Ty = TyTexture2D
	case live.RoleGeometry, live.RoleUniform:
		ty, ok := tyFromLiveType(f.Type)
		if !ok {
			panic(fmt.Sprintf("shader: field %s.%s has type %s; geometry and uniform fields must be f32, Vec2, Vec3 or Vec4", owner, f.Id, f.Type))
		}
		decl.Ty = ty
		decl.Category = CategoryGeometry
		if f.Role == live.RoleUniform {
			decl.Category = CategoryUniform
			decl.Block = f.Block
			if decl.Block == "" {
				decl.Block = BlockUser
			}
			if !slices.Contains([]live.Id{BlockUser, BlockDraw, BlockView, BlockPass}, decl.Block) {
				panic(fmt.Sprintf("shader: field %s.%s names unknown uniform block %q", owner, f.Id, decl.Block))
			}
		}
	}
	s.b.AddField(decl)
}
