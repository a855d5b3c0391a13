package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

// GeometryField is one vertex input supplied from outside the document.
type GeometryField struct {
	Id live.Id
	Ty ShaderTy
}

// GeometryFields is implemented by geometry providers, such as a quad or mesh, whose
// vertex inputs are prepended to a shader's geometry group.
type GeometryFields interface {
	GeometryFields() []GeometryField
}

// Analyse builds the ShaderDef of the class node at classPtr. Geometry provider fields come
// first, then the shader body's declarations in source order, then the fields of the
// class's registered Go type. Live references are resolved last.
//
// Parameters:
//   - reg: the registry holding the document and type infos
//   - classPtr: the class node to analyse
//   - geom: optional provider of geometry fields, may be nil
//
// Returns:
//   - *ShaderDef: the analysed definition
//   - error: a *CompileError describing the first problem found
func Analyse(reg live.Registry, classPtr live.Ptr, geom GeometryFields) (*ShaderDef, error) {
	node, ok := reg.Node(classPtr)
	if !ok {
		return nil, compileErr(live.Span{}, fmt.Errorf("%w: %s", live.ErrUnknownNode, classPtr))
	}
	if node.Value.Kind != live.ValueClass {
		return nil, compileErr(node.Span, fmt.Errorf("%w: %s is %s", ErrNotAClass, node.Id, node.Value.Kind))
	}

	b := NewDefBuilder(node.Value.Id, classPtr)
	if geom != nil {
		for _, g := range geom.GeometryFields() {
			b.AddField(FieldDecl{
				Id:       g.Id,
				Ty:       g.Ty,
				Category: CategoryGeometry,
				Ptr:      classPtr,
				Span:     node.Span,
				Kind:     live.FieldCalc,
			})
		}
	}

	pp := NewPreProcessor()
	if err := pp.Process(DslLines(reg, classPtr)); err != nil {
		return nil, err
	}
	for _, f := range pp.Fields() {
		b.AddField(f)
	}
	b.MergeFlags(pp.Flags())

	if err := Scan(reg, node.Value.Id, b, classPtr, node.Span); err != nil {
		return nil, err
	}

	for _, req := range pp.LiveRequests() {
		ptr, ok := resolveLive(reg, classPtr, req.Path)
		if !ok {
			return nil, compileErr(req.Span, fmt.Errorf("%w: %q", ErrUnresolvedLiveRef, req.Path))
		}
		id := req.Path
		if i := strings.LastIndexByte(id, '.'); i >= 0 {
			id = id[i+1:]
		}
		b.AddLiveRef(LiveRef{Id: live.Id(id), Ptr: ptr, Ty: req.Ty, Span: req.Span})
	}
	return b.Build(), nil
}

// DslLines returns the DSL children of a class node in document order.
//
// Parameters:
//   - reg: the registry holding the document
//   - classPtr: the class node
//
// Returns:
//   - []Line: one line per DSL child
func DslLines(reg live.Registry, classPtr live.Ptr) []Line {
	var lines []Line
	for _, c := range reg.Children(classPtr) {
		n, _ := reg.Node(c)
		if n.Value.IsDsl() {
			lines = append(lines, Line{Text: n.Value.Str, Ptr: c, Span: n.Span})
		}
	}
	return lines
}

// resolveLive looks a dotted path up below the class node, then from the document roots.
// Only concrete values can back a live uniform.
func resolveLive(reg live.Registry, classPtr live.Ptr, path string) (live.Ptr, bool) {
	cur, found := classPtr, true
	for _, seg := range strings.Split(path, ".") {
		found = false
		for _, c := range reg.Children(cur) {
			if n, _ := reg.Node(c); n.Id == live.Id(seg) && !n.Value.IsDsl() {
				cur, found = c, true
				break
			}
		}
		if !found {
			break
		}
	}
	if !found {
		cur, found = reg.Resolve(path)
	}
	if !found {
		return live.Ptr{}, false
	}
	n, _ := reg.Node(cur)
	return cur, n.Value.IsValueType()
}
