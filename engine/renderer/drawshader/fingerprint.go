package drawshader

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"math"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
)

// FingerprintNode is one declaration node of a fingerprint with its span stripped.
type FingerprintNode struct {
	Id    live.Id
	Value live.Value
}

// Fingerprint is the ordered structural snapshot of a draw shader declaration: the class
// node's type and the registered field lists it expands to, every DSL child, and any
// external geometry fields. Two declarations at
// different source locations with equal fingerprints compile to identical layouts.
type Fingerprint struct {
	Hash  uint64
	Nodes []FingerprintNode
}

// Equal compares the full node lists. The hash is only a fast reject.
func (f Fingerprint) Equal(o Fingerprint) bool {
	if f.Hash != o.Hash || len(f.Nodes) != len(o.Nodes) {
		return false
	}
	for i := range f.Nodes {
		if f.Nodes[i] != o.Nodes[i] {
			return false
		}
	}
	return true
}

// NewFingerprint snapshots the declaration subtree of a class node. The draw_call_group
// identifier found among the class's children is returned alongside.
//
// Parameters:
//   - reg: the registry holding the document
//   - classPtr: the class node
//   - geom: optional geometry provider, may be nil
//
// Returns:
//   - Fingerprint: the snapshot and its FNV-1a hash
//   - live.Id: the draw call group, empty when not set
func NewFingerprint(reg live.Registry, classPtr live.Ptr, geom shader.GeometryFields) (Fingerprint, live.Id) {
	var fp Fingerprint
	var group live.Id

	// the class key is a location, only its type takes part
	if class, ok := reg.Node(classPtr); ok {
		fp.Nodes = append(fp.Nodes, FingerprintNode{Value: class.Value})
		fp.Nodes = appendTypeFields(fp.Nodes, reg, class.Value.Id, nil)
	}
	for _, c := range reg.Children(classPtr) {
		n, _ := reg.Node(c)
		if n.Value.IsDsl() {
			fp.Nodes = append(fp.Nodes, FingerprintNode{Id: n.Id, Value: n.Value})
		}
		if n.Id == live.IdDrawCallGroup && n.Value.Kind == live.ValueId {
			group = n.Value.Id
		}
	}
	if geom != nil {
		for _, g := range geom.GeometryFields() {
			fp.Nodes = append(fp.Nodes, FingerprintNode{Id: g.Id, Value: live.NewId(live.Id(g.Ty.String()))})
		}
	}
	fp.Hash = hashNodes(fp.Nodes)
	return fp, group
}

// appendTypeFields snapshots the fields of a registered type, following forwarding fields.
// A type already on the chain is recorded once more and not expanded; binding reports the cycle.
func appendTypeFields(nodes []FingerprintNode, reg live.Registry, typeName live.Id, chain []live.Id) []FingerprintNode {
	for _, t := range chain {
		if t == typeName {
			return append(nodes, FingerprintNode{Id: live.IdDerefTarget, Value: live.NewId(typeName)})
		}
	}
	info, ok := reg.TypeInfo(typeName)
	if !ok {
		return append(nodes, FingerprintNode{Value: live.NewId(typeName)})
	}
	chain = append(chain, typeName)
	for _, f := range info.Fields {
		shape := "unregistered"
		if ti, ok := reg.TypeInfo(f.Type); ok {
			shape = fmt.Sprint(ti.Kind)
		}
		desc := fmt.Sprintf("%s/%d/%d/%s/%s", f.Type, f.Kind, f.Role, f.Block, shape)
		nodes = append(nodes, FingerprintNode{Id: f.Id, Value: live.NewString(desc)})
		if f.Id == live.IdDerefTarget {
			nodes = appendTypeFields(nodes, reg, f.Type, chain)
		}
	}
	return nodes
}

func hashNodes(nodes []FingerprintNode) uint64 {
	h := fnv.New64a()
	hashWriteUint32(h, uint32(len(nodes)))
	for _, n := range nodes {
		hashWriteString(h, string(n.Id))
		hashWriteValue(h, n.Value)
	}
	return h.Sum64()
}

func hashWriteValue(h hash.Hash64, v live.Value) {
	hashWriteUint32(h, uint32(v.Kind))
	hashWriteBool(h, v.Bool)
	hashWriteUint64(h, math.Float64bits(v.Float))
	for _, c := range v.Vec {
		hashWriteUint32(h, math.Float32bits(c))
	}
	hashWriteUint32(h, v.Color)
	hashWriteString(h, string(v.Id))
	hashWriteString(h, v.Str)
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
