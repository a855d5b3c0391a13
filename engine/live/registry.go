package live

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownDocument is returned when a FileId does not name a loaded document.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrUnknownNode is returned when a Ptr does not address a node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrStructuralEdit is returned by SetValue when the edit would change document
	// structure. Structural changes must go through ReplaceDocument.
	ErrStructuralEdit = errors.New("structural edit requires a document reload")
)

// Registry holds every loaded document and the field layout of every registered type.
// It is single-writer state owned by the engine.
type Registry interface {
	// AddDocument stores a parsed document and assigns its FileId.
	//
	// Parameters:
	//   - doc: the parsed document
	//
	// Returns:
	//   - FileId: the id now stamped on doc
	AddDocument(doc *Document) FileId

	// Document returns a loaded document.
	//
	// Parameters:
	//   - file: the document id
	//
	// Returns:
	//   - *Document: the document
	//   - bool: false if file is unknown
	Document(file FileId) (*Document, bool)

	// ReplaceDocument swaps the contents of a loaded document after a structural reload.
	// The generation counter is incremented and every OnReload listener is called.
	//
	// Parameters:
	//   - file: the document id to replace
	//   - doc: the freshly parsed document
	//
	// Returns:
	//   - error: ErrUnknownDocument if file is not loaded
	ReplaceDocument(file FileId, doc *Document) error

	// Node returns the node addressed by ptr.
	//
	// Parameters:
	//   - ptr: the node pointer
	//
	// Returns:
	//   - Node: the node
	//   - bool: false if ptr is out of range
	Node(ptr Ptr) (Node, bool)

	// Children returns pointers to the direct children of ptr in document order.
	//
	// Parameters:
	//   - ptr: the parent node pointer
	//
	// Returns:
	//   - []Ptr: the child pointers, nil if ptr is unknown
	Children(ptr Ptr) []Ptr

	// Resolve looks up a dotted key path such as "DrawQuad.color", searching documents
	// in load order. A "name:" prefix restricts the search to the document with that name.
	//
	// Parameters:
	//   - path: the dotted key path
	//
	// Returns:
	//   - Ptr: the node pointer
	//   - bool: false if no node matches
	Resolve(path string) (Ptr, bool)

	// SetValue edits a concrete value in place. Value-only edits do not bump the generation.
	//
	// Parameters:
	//   - ptr: the node to edit
	//   - v: the new value
	//
	// Returns:
	//   - error: ErrUnknownNode, or ErrStructuralEdit if either value is not a value type
	SetValue(ptr Ptr, v Value) error

	// RegisterType records the field layout of a type, replacing any previous entry.
	//
	// Parameters:
	//   - infos: the type infos to record
	RegisterType(infos ...TypeInfo)

	// TypeInfo returns a registered type.
	//
	// Parameters:
	//   - name: the type name
	//
	// Returns:
	//   - TypeInfo: the registered layout
	//   - bool: false if the type is unknown
	TypeInfo(name Id) (TypeInfo, bool)

	// Generation returns the structural reload counter.
	//
	// Returns:
	//   - uint64: the number of structural reloads so far
	Generation() uint64

	// OnReload registers a listener called after every structural reload.
	//
	// Parameters:
	//   - fn: the listener, receiving the new generation
	OnReload(fn func(generation uint64))
}

// registry is the implementation of the Registry interface.
type registry struct {
	docs       []*Document
	types      map[Id]TypeInfo
	generation uint64
	listeners  []func(uint64)
}

var _ Registry = &registry{}

// NewRegistry creates an empty Registry with the primitive shader types pre-registered.
//
// Returns:
//   - Registry: a ready-to-use registry
func NewRegistry() Registry {
	r := &registry{types: make(map[Id]TypeInfo)}
	for _, name := range []Id{TypeF32, TypeVec2, TypeVec3, TypeVec4} {
		r.types[name] = TypeInfo{Name: name, Kind: TypePrimitive}
	}
	return r
}

func (r *registry) AddDocument(doc *Document) FileId {
	id := FileId(len(r.docs))
	doc.File = id
	r.docs = append(r.docs, doc)
	return id
}

func (r *registry) Document(file FileId) (*Document, bool) {
	if int(file) < 0 || int(file) >= len(r.docs) {
		return nil, false
	}
	return r.docs[file], true
}

func (r *registry) ReplaceDocument(file FileId, doc *Document) error {
	if _, ok := r.Document(file); !ok {
		return fmt.Errorf("replace %d: %w", file, ErrUnknownDocument)
	}
	doc.File = file
	r.docs[file] = doc
	r.generation++
	for _, fn := range r.listeners {
		fn(r.generation)
	}
	return nil
}

func (r *registry) Node(ptr Ptr) (Node, bool) {
	doc, ok := r.Document(ptr.File)
	if !ok || ptr.Index < 0 || ptr.Index >= len(doc.Nodes) {
		return Node{}, false
	}
	return doc.Nodes[ptr.Index], true
}

func (r *registry) Children(ptr Ptr) []Ptr {
	n, ok := r.Node(ptr)
	if !ok {
		return nil
	}
	out := make([]Ptr, len(n.Children))
	for i, c := range n.Children {
		out[i] = Ptr{File: ptr.File, Index: c}
	}
	return out
}

func (r *registry) Resolve(path string) (Ptr, bool) {
	docName, keys, scoped := strings.Cut(path, ":")
	if !scoped {
		keys = path
	}
	parts := strings.Split(keys, ".")
	for _, doc := range r.docs {
		if scoped && doc.Name != docName {
			continue
		}
		idx, found := 0, true
		for _, p := range parts {
			if idx, found = doc.Child(idx, Id(p)); !found {
				break
			}
		}
		if found {
			return Ptr{File: doc.File, Index: idx}, true
		}
	}
	return Ptr{}, false
}

func (r *registry) SetValue(ptr Ptr, v Value) error {
	doc, ok := r.Document(ptr.File)
	if !ok || ptr.Index < 0 || ptr.Index >= len(doc.Nodes) {
		return fmt.Errorf("set %s: %w", ptr, ErrUnknownNode)
	}
	n := &doc.Nodes[ptr.Index]
	if !n.Value.IsValueType() || !v.IsValueType() {
		return fmt.Errorf("set %s (%s -> %s): %w", n.Span.Path, n.Value.Kind, v.Kind, ErrStructuralEdit)
	}
	n.Value = v
	return nil
}

func (r *registry) RegisterType(infos ...TypeInfo) {
	for _, info := range infos {
		r.types[info.Name] = info
	}
}

func (r *registry) TypeInfo(name Id) (TypeInfo, bool) {
	info, ok := r.types[name]
	return info, ok
}

func (r *registry) Generation() uint64 {
	return r.generation
}

func (r *registry) OnReload(fn func(generation uint64)) {
	r.listeners = append(r.listeners, fn)
}
