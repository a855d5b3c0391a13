package shader

import "github.com/Carmen-Shannon/oxy-live/engine/live"

// DefBuilderOption is a functional option used to configure a DefBuilder during construction.
type DefBuilderOption func(*defBuilder)

// WithFlags seeds the builder's flags.
//
// Parameters:
//   - f: the initial flags
//
// Returns:
//   - DefBuilderOption: a function that sets the flags
func WithFlags(f Flags) DefBuilderOption {
	return func(b *defBuilder) {
		b.def.Flags = f
	}
}

// WithFieldCapacity preallocates room for n fields.
//
// Parameters:
//   - n: the expected field count
//
// Returns:
//   - DefBuilderOption: a function that sizes the field slice
func WithFieldCapacity(n int) DefBuilderOption {
	return func(b *defBuilder) {
		b.def.Fields = make([]FieldDecl, 0, n)
	}
}

// DefBuilder assembles classified fields, flags and live references into a ShaderDef.
// Fields keep the order they were added in.
type DefBuilder interface {
	// AddField appends an already classified field.
	//
	// Parameters:
	//   - f: the field
	AddField(f FieldDecl)

	// AddInstance appends a per-instance field of the Go type.
	//
	// Parameters:
	//   - id: the field id, empty for padding
	//   - ty: the field type
	//   - span: the declaring class node's span
	//   - kind: whether the field is applied from the document or computed
	AddInstance(id live.Id, ty ShaderTy, span live.Span, kind live.FieldKind)

	// AddLiveRef appends a resolved live uniform reference.
	//
	// Parameters:
	//   - ref: the resolved reference
	AddLiveRef(ref LiveRef)

	// MergeFlags ORs f into the builder's flags.
	//
	// Parameters:
	//   - f: the flags to merge
	MergeFlags(f Flags)

	// Build returns the assembled definition. The builder must not be used afterwards.
	//
	// Returns:
	//   - *ShaderDef: the definition
	Build() *ShaderDef
}

type defBuilder struct {
	def *ShaderDef
	ptr live.Ptr
}

var _ DefBuilder = &defBuilder{}

// NewDefBuilder creates a DefBuilder for the class node at ptr.
//
// Parameters:
//   - typeName: the registered Go type of the class node
//   - ptr: the class node, recorded as the origin of Go type fields
//   - opts: functional options
//
// Returns:
//   - DefBuilder: an empty builder
func NewDefBuilder(typeName live.Id, ptr live.Ptr, opts ...DefBuilderOption) DefBuilder {
	b := &defBuilder{def: &ShaderDef{TypeName: typeName}, ptr: ptr}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *defBuilder) AddField(f FieldDecl) {
	b.def.Fields = append(b.def.Fields, f)
}

func (b *defBuilder) AddInstance(id live.Id, ty ShaderTy, span live.Span, kind live.FieldKind) {
	b.AddField(FieldDecl{
		Id:       id,
		Ty:       ty,
		Category: CategoryInstance,
		Ptr:      b.ptr,
		Span:     span,
		Kind:     kind,
	})
}

func (b *defBuilder) AddLiveRef(ref LiveRef) {
	b.def.LiveRefs = append(b.def.LiveRefs, ref)
}

func (b *defBuilder) MergeFlags(f Flags) {
	b.def.Flags.Debug = b.def.Flags.Debug || f.Debug
	b.def.Flags.DrawCallNoCompare = b.def.Flags.DrawCallNoCompare || f.DrawCallNoCompare
	b.def.Flags.DrawCallAlways = b.def.Flags.DrawCallAlways || f.DrawCallAlways
}

func (b *defBuilder) Build() *ShaderDef {
	return b.def
}
