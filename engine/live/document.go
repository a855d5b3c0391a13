package live

// Node is a single entry of a document tree.
type Node struct {
	Id    Id
	Value Value
	Span  Span
	// Parent is the index of the parent node, or -1 for the root.
	Parent int
	// Children holds child node indices in document order.
	Children []int
}

// Document is a parsed declarative source file. Nodes[0] is the root object; every
// top-level table is one of its children.
type Document struct {
	File  FileId
	Name  string
	Nodes []Node
}

// NewDocument creates a document holding only its root node.
//
// Parameters:
//   - name: the document name or path, used in spans
//
// Returns:
//   - *Document: the empty document
func NewDocument(name string) *Document {
	return &Document{
		Name:  name,
		Nodes: []Node{{Id: Id(name), Value: NewObject(), Span: Span{File: name}, Parent: -1}},
	}
}

// Append adds a node under parent and returns its index.
//
// Parameters:
//   - parent: the parent node index
//   - n: the node to add; its Parent field is overwritten
//
// Returns:
//   - int: the new node's index
func (d *Document) Append(parent int, n Node) int {
	n.Parent = parent
	idx := len(d.Nodes)
	d.Nodes = append(d.Nodes, n)
	d.Nodes[parent].Children = append(d.Nodes[parent].Children, idx)
	return idx
}

// Child finds the direct child of parent with the given id.
//
// Parameters:
//   - parent: the parent node index
//   - id: the child id to look for
//
// Returns:
//   - int: the child index
//   - bool: false if no child has that id
func (d *Document) Child(parent int, id Id) (int, bool) {
	for _, c := range d.Nodes[parent].Children {
		if d.Nodes[c].Id == id {
			return c, true
		}
	}
	return -1, false
}
