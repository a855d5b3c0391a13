// pre_processor.go implements the declaration pre-processor. It scans the DSL lines of a
// draw shader for //@oxy: annotations and turns them into field declarations, live
// uniform requests and flags. The annotation list is kept in source order for callers
// that need the raw declarations.
//
// The pre-processor maintains two registries:
//   - tyRegistry: maps type arguments to shader types
//   - blockRegistry: maps block arguments to uniform block ids
package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

// Line is one DSL node of a shader body.
type Line struct {
	Text string
	Ptr  live.Ptr
	Span live.Span
}

// LiveRequest is an unresolved //@oxy:live declaration.
type LiveRequest struct {
	Path string
	Ty   ShaderTy
	Ptr  live.Ptr
	Span live.Span
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	tyRegistry    map[AnnotationArg]ShaderTy
	blockRegistry map[AnnotationArg]live.Id

	// declarations, fields, liveRequests and flags are reset at the start of each Process call.
	declarations []Annotation
	fields       []FieldDecl
	liveRequests []LiveRequest
	flags        Flags
}

// PreProcessor turns the DSL lines of a draw shader into declarations.
type PreProcessor interface {
	// Process parses every line. Lines without the annotation prefix are skipped. Results
	// of the previous call are discarded.
	//
	// Parameters:
	//   - lines: the DSL lines in document order
	//
	// Returns:
	//   - error: a *CompileError wrapping ErrMalformedDeclaration for the first bad annotation
	Process(lines []Line) error

	// Declarations returns every annotation parsed by the last Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the parsed annotations
	Declarations() []Annotation

	// Fields returns the geometry, instance, uniform and texture fields declared by the
	// last Process call. Instance fields are marked VarDef.
	//
	// Returns:
	//   - []FieldDecl: the declared fields in source order
	Fields() []FieldDecl

	// LiveRequests returns the //@oxy:live declarations of the last Process call.
	//
	// Returns:
	//   - []LiveRequest: the unresolved live uniform requests
	LiveRequests() []LiveRequest

	// Flags returns the flags set by the last Process call.
	//
	// Returns:
	//   - Flags: the declared flags
	Flags() Flags
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the type and block registries pre-populated.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		tyRegistry: map[AnnotationArg]ShaderTy{
			AnnotationArgF32:       TyFloat,
			AnnotationArgFloat:     TyFloat,
			AnnotationArgVec2:      TyVec2,
			AnnotationArgVec3:      TyVec3,
			AnnotationArgVec4:      TyVec4,
			AnnotationArgColor:     TyVec4,
			AnnotationArgTexture2D: TyTexture2D,
		},
		blockRegistry: map[AnnotationArg]live.Id{
			AnnotationArgBlockUser: BlockUser,
			AnnotationArgBlockDraw: BlockDraw,
			AnnotationArgBlockView: BlockView,
			AnnotationArgBlockPass: BlockPass,
		},
	}
}

func (p *preProcessor) Process(lines []Line) error {
	p.declarations = p.declarations[:0]
	p.fields = p.fields[:0]
	p.liveRequests = p.liveRequests[:0]
	p.flags = Flags{}

	for _, l := range lines {
		a, err := parseAnnotation(l.Text, l.Span.Line)
		if err != nil {
			return compileErr(l.Span, fmt.Errorf("%w: %v", ErrMalformedDeclaration, err))
		}
		if a == nil {
			continue
		}
		a.Ptr = l.Ptr
		a.Span = l.Span

		switch a.Type {
		case AnnotationTypeGeometry:
			p.fields = append(p.fields, p.field(a, CategoryGeometry, ""))
		case AnnotationTypeInstance:
			f := p.field(a, CategoryInstance, "")
			f.VarDef = true
			p.fields = append(p.fields, f)
		case AnnotationTypeUniform:
			p.fields = append(p.fields, p.field(a, CategoryUniform, p.blockRegistry[a.Args[2]]))
		case AnnotationTypeTexture:
			p.fields = append(p.fields, p.field(a, CategoryTexture, ""))
		case AnnotationTypeLive:
			p.liveRequests = append(p.liveRequests, LiveRequest{
				Path: string(a.Args[0]),
				Ty:   p.tyRegistry[a.Args[1]],
				Ptr:  a.Ptr,
				Span: a.Span,
			})
		case AnnotationTypeFlag:
			switch a.Args[0] {
			case AnnotationArgDebug:
				p.flags.Debug = true
			case AnnotationArgDrawCallNoCompare:
				p.flags.DrawCallNoCompare = true
			case AnnotationArgDrawCallAlways:
				p.flags.DrawCallAlways = true
			}
		default:
			return compileErr(l.Span, fmt.Errorf("%w: line %d: unknown annotation type %q", ErrMalformedDeclaration, a.Line, a.Type))
		}
		p.declarations = append(p.declarations, *a)
	}
	return nil
}

func (p *preProcessor) field(a *Annotation, c Category, block live.Id) FieldDecl {
	return FieldDecl{
		Id:       live.Id(a.Args[0]),
		Ty:       p.tyRegistry[a.Args[1]],
		Category: c,
		Block:    block,
		Ptr:      a.Ptr,
		Span:     a.Span,
		Kind:     live.FieldLive,
	}
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Fields() []FieldDecl {
	return p.fields
}

func (p *preProcessor) LiveRequests() []LiveRequest {
	return p.liveRequests
}

func (p *preProcessor) Flags() Flags {
	return p.flags
}
