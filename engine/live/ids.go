// Package live models the declarative document that draw shaders are authored in.
// A document is a tree of nodes; class nodes describe draw shaders, their concrete
// child values are applied to instance state, and their DSL children carry the
// //@oxy: field declarations that shape the compiled layout. Documents are held by a
// Registry which also knows the field layout of every registered Go type and signals
// structural reloads through a generation counter.
package live

import "fmt"

// Id identifies a node, a field or a registered type.
type Id string

// Well-known identifiers recognized by the declaration scanner and the apply pass.
const (
	// IdDerefTarget names a forwarding field: scanning continues into the field's type.
	IdDerefTarget Id = "deref_target"

	// IdDrawVars names the marker field that switches subsequent fields into the
	// dynamic instance zone.
	IdDrawVars Id = "draw_vars"

	// IdClass is the document key that turns a table into a class node.
	IdClass Id = "class"

	// IdShader is the document key holding //@oxy: declaration lines.
	IdShader Id = "shader"

	// IdDrawCallGroup is the class key whose identifier groups draw calls for batching.
	IdDrawCallGroup Id = "draw_call_group"

	// IdDebug is never reported as an unknown field.
	IdDebug Id = "debug"

	// IdRectPos and IdRectSize are instance fields whose offsets are recorded while packing.
	IdRectPos  Id = "rect_pos"
	IdRectSize Id = "rect_size"
)

// Registered primitive and marker type names.
const (
	TypeF32      Id = "f32"
	TypeVec2     Id = "Vec2"
	TypeVec3     Id = "Vec3"
	TypeVec4     Id = "Vec4"
	TypeDrawVars Id = "DrawVars"
)

// FileId identifies a document within a Registry.
type FileId int

// Ptr addresses a single node: the owning document and the node's index in it.
type Ptr struct {
	File  FileId
	Index int
}

// String formats the pointer as "file#index".
func (p Ptr) String() string {
	return fmt.Sprintf("%d#%d", p.File, p.Index)
}

// Span is the source location of a node, used for diagnostics.
type Span struct {
	// File is the document path or name.
	File string
	// Path is the dotted key path of the node (e.g. "DrawQuad.color").
	Path string
	// Line is the 1-based source line, or 0 when unknown.
	Line int
}

// String formats the span as "file:line (path)".
func (s Span) String() string {
	loc := s.File
	if s.Line > 0 {
		loc = fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	if s.Path == "" {
		return loc
	}
	return fmt.Sprintf("%s (%s)", loc, s.Path)
}
