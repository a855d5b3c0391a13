// Package drawshader owns the table of compiled draw shaders. Binding a class node goes
// through three lookups: the node pointer (identity), the structural fingerprint of its
// declarations, and finally a fresh compile. Compiled shaders live until the next Flush,
// which invalidates every handed-out DrawShader handle at once.
package drawshader

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/common"
	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
)

// Fixed per-draw-call storage capacities.
const (
	DrawCallUserUniforms = 16
	DrawCallTextureSlots = 4
	DrawCallVarInstances = 32
)

var (
	// ErrInstanceCapacity is returned when a shader's instance row does not fit DrawCallVarInstances.
	ErrInstanceCapacity = errors.New("instance row exceeds capacity")

	// ErrUniformCapacity is returned when a shader's user uniforms do not fit DrawCallUserUniforms.
	ErrUniformCapacity = errors.New("user uniforms exceed capacity")

	// ErrTextureCapacity is returned when a shader declares more than DrawCallTextureSlots textures.
	ErrTextureCapacity = errors.New("textures exceed capacity")
)

// BindState is the outcome of a Bind call.
type BindState int

const (
	Unbound BindState = iota
	IdentityHit
	FingerprintHit
	Compiled
	CompileFailed
)

func (s BindState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case IdentityHit:
		return "identity hit"
	case FingerprintHit:
		return "fingerprint hit"
	case Compiled:
		return "compiled"
	case CompileFailed:
		return "compile failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DrawShader is a handle to a compiled shader. Handles from an earlier generation are stale.
type DrawShader struct {
	Ptr        live.Ptr
	Id         int
	Generation uint64
}

// Binding is the result of binding a class node.
type Binding struct {
	Shader DrawShader
	State  BindState
	// DrawCallGroup is the class's draw_call_group identifier, empty when not set.
	DrawCallGroup live.Id
}

// CompiledShader is one entry of the table.
type CompiledShader struct {
	Id          int
	Fingerprint Fingerprint
	Mapping     *layout.Mapping
	Def         *shader.ShaderDef
	// Field is the key of the class node the shader was first compiled from.
	Field    live.Id
	TypeName live.Id
}

// Stats counts binding outcomes since the cache was created.
type Stats struct {
	IdentityHits    uint64
	FingerprintHits uint64
	Compiles        uint64
	Failures        uint64
	Flushes         uint64
	// Shaders is the current table size.
	Shaders int
}

// Cache is the compiled draw shader table. It is single-writer state owned by the engine.
type Cache interface {
	// Bind resolves a class node to a compiled shader, compiling it when neither its
	// pointer nor its fingerprint is known.
	//
	// Parameters:
	//   - reg: the registry holding the document
	//   - ptr: the class node
	//   - geom: optional geometry provider, may be nil
	//
	// Returns:
	//   - Binding: the handle and how it was obtained; State is CompileFailed on error
	//   - error: a *shader.CompileError when the shader could not be compiled
	Bind(reg live.Registry, ptr live.Ptr, geom shader.GeometryFields) (Binding, error)

	// Shader returns the compiled shader behind a handle.
	//
	// Parameters:
	//   - ds: the handle
	//
	// Returns:
	//   - *CompiledShader: the shader
	//   - bool: false if the handle is stale or unknown
	Shader(ds DrawShader) (*CompiledShader, bool)

	// ShaderById returns a compiled shader of the current generation by id.
	//
	// Parameters:
	//   - id: the shader id
	//
	// Returns:
	//   - *CompiledShader: the shader
	//   - bool: false if id is out of range
	ShaderById(id int) (*CompiledShader, bool)

	// Flush drops every compiled shader and bumps the generation.
	Flush()

	// Generation returns the flush counter stamped into handles.
	//
	// Returns:
	//   - uint64: the current generation
	Generation() uint64

	// Stats returns binding statistics.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// UpdateLiveUniforms re-resolves every shader's live uniform buffer after value-only edits.
	//
	// Parameters:
	//   - reg: the registry holding the current values
	UpdateLiveUniforms(reg live.Registry)

	// TakeCompileQueue returns the ids compiled since the last call and clears the queue.
	//
	// Returns:
	//   - []int: the newly compiled shader ids in compile order
	TakeCompileQueue() []int
}

// cache is the implementation of the Cache interface.
type cache struct {
	shaders  []*CompiledShader
	ptrToId  map[live.Ptr]int
	ptrGroup map[live.Ptr]live.Id
	// buckets maps fingerprint hashes to the ids sharing that hash.
	buckets map[uint64][]int
	// errorSet holds class nodes whose compile failure was already reported.
	errorSet     map[live.Ptr]struct{}
	compileQueue []int
	generation   uint64
	stats        Stats

	uniformPacking  layout.Packing
	instancePacking layout.Packing
	reporter        diagnostics.Reporter
}

var _ Cache = &cache{}

// NewCache creates an empty Cache. Uniform groups default to the platform packing and
// instance groups to attribute packing.
//
// Parameters:
//   - opts: functional options
//
// Returns:
//   - Cache: the empty cache
func NewCache(opts ...CacheOption) Cache {
	c := &cache{
		uniformPacking:  layout.DefaultPacking(),
		instancePacking: layout.PackingAttribute,
	}
	c.reset()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cache) reset() {
	c.shaders = nil
	c.ptrToId = make(map[live.Ptr]int)
	c.ptrGroup = make(map[live.Ptr]live.Id)
	c.buckets = make(map[uint64][]int)
	c.errorSet = make(map[live.Ptr]struct{})
	c.compileQueue = nil
}

func (c *cache) handle(ptr live.Ptr, id int) DrawShader {
	return DrawShader{Ptr: ptr, Id: id, Generation: c.generation}
}

func (c *cache) Bind(reg live.Registry, ptr live.Ptr, geom shader.GeometryFields) (Binding, error) {
	if id, ok := c.ptrToId[ptr]; ok {
		c.stats.IdentityHits++
		return Binding{Shader: c.handle(ptr, id), State: IdentityHit, DrawCallGroup: c.ptrGroup[ptr]}, nil
	}

	fp, group := NewFingerprint(reg, ptr, geom)
	for _, id := range c.buckets[fp.Hash] {
		if c.shaders[id].Fingerprint.Equal(fp) {
			c.stats.FingerprintHits++
			c.ptrToId[ptr] = id
			c.ptrGroup[ptr] = group
			return Binding{Shader: c.handle(ptr, id), State: FingerprintHit, DrawCallGroup: group}, nil
		}
	}

	cs, err := c.compile(reg, ptr, geom)
	if err != nil {
		c.stats.Failures++
		c.reportFailure(ptr, err)
		return Binding{State: CompileFailed}, err
	}

	cs.Id = len(c.shaders)
	cs.Fingerprint = fp
	c.shaders = append(c.shaders, cs)
	c.ptrToId[ptr] = cs.Id
	c.ptrGroup[ptr] = group
	c.buckets[fp.Hash] = append(c.buckets[fp.Hash], cs.Id)
	c.compileQueue = append(c.compileQueue, cs.Id)
	c.stats.Compiles++
	delete(c.errorSet, ptr)

	common.Logger().Debug("[DrawShader] compiled",
		"id", cs.Id, "type", string(cs.TypeName), "field", string(cs.Field),
		"instance_slots", cs.Mapping.Instances.TotalSlots, "user_uniform_slots", cs.Mapping.UserUniforms.TotalSlots)
	return Binding{Shader: c.handle(ptr, cs.Id), State: Compiled, DrawCallGroup: group}, nil
}

func (c *cache) compile(reg live.Registry, ptr live.Ptr, geom shader.GeometryFields) (*CompiledShader, error) {
	def, err := shader.Analyse(reg, ptr, geom)
	if err != nil {
		return nil, err
	}
	m := layout.FromDef(def, c.uniformPacking, c.instancePacking)
	node, _ := reg.Node(ptr)
	if err := checkCapacity(m); err != nil {
		return nil, &shader.CompileError{Span: node.Span, Err: err}
	}
	m.UpdateLiveUniforms(reg)
	return &CompiledShader{Mapping: m, Def: def, Field: node.Id, TypeName: def.TypeName}, nil
}

func checkCapacity(m *layout.Mapping) error {
	if m.Instances.TotalSlots > DrawCallVarInstances {
		return fmt.Errorf("%w: %d slots, capacity %d", ErrInstanceCapacity, m.Instances.TotalSlots, DrawCallVarInstances)
	}
	if m.UserUniforms.TotalSlots > DrawCallUserUniforms {
		return fmt.Errorf("%w: %d slots, capacity %d", ErrUniformCapacity, m.UserUniforms.TotalSlots, DrawCallUserUniforms)
	}
	if len(m.Textures) > DrawCallTextureSlots {
		return fmt.Errorf("%w: %d textures, capacity %d", ErrTextureCapacity, len(m.Textures), DrawCallTextureSlots)
	}
	return nil
}

func (c *cache) reportFailure(ptr live.Ptr, err error) {
	if c.reporter == nil {
		return
	}
	if _, seen := c.errorSet[ptr]; seen {
		return
	}
	c.errorSet[ptr] = struct{}{}

	d := diagnostics.Diagnostic{Kind: diagnostics.KindCompileFailed, Message: err.Error()}
	var ce *shader.CompileError
	if errors.As(err, &ce) {
		d.Span = ce.Span
		d.Message = ce.Err.Error()
	}
	c.reporter.Report(d)
}

func (c *cache) Shader(ds DrawShader) (*CompiledShader, bool) {
	if ds.Generation != c.generation {
		return nil, false
	}
	return c.ShaderById(ds.Id)
}

func (c *cache) ShaderById(id int) (*CompiledShader, bool) {
	if id < 0 || id >= len(c.shaders) {
		return nil, false
	}
	return c.shaders[id], true
}

func (c *cache) Flush() {
	dropped := len(c.shaders)
	c.generation++
	c.stats.Flushes++
	c.reset()
	common.Logger().Info("[DrawShader] flushed", "generation", c.generation, "dropped", dropped)
}

func (c *cache) Generation() uint64 {
	return c.generation
}

func (c *cache) Stats() Stats {
	s := c.stats
	s.Shaders = len(c.shaders)
	return s
}

func (c *cache) UpdateLiveUniforms(reg live.Registry) {
	for _, cs := range c.shaders {
		cs.Mapping.UpdateLiveUniforms(reg)
	}
}

func (c *cache) TakeCompileQueue() []int {
	q := c.compileQueue
	c.compileQueue = nil
	return q
}
