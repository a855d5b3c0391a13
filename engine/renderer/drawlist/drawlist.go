// Package drawlist records draw calls into passes. Instances recorded with the same shader
// and uniforms are batched into one draw call; the returned Area addresses the recorded
// rows so later value edits can be patched straight into the instance buffer. Dirty flags
// tell the backend which buffers to re-upload.
package drawlist

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
	"github.com/google/uuid"
)

var (
	// ErrUnknownPass is returned for a PassId the recorder did not create.
	ErrUnknownPass = errors.New("unknown pass")

	// ErrStride is returned when recorded instance data is not a whole number of rows.
	ErrStride = errors.New("instance data does not match stride")
)

// TextureId identifies a backend texture. NoTexture marks an empty slot.
type TextureId uint32

const NoTexture TextureId = 0

// PassId identifies a render pass.
type PassId string

// Area addresses the rows one InstanceState recorded into a draw call.
type Area struct {
	Pass     PassId
	DrawCall int
	// InstanceOffset is the float offset of the first row in the draw call's instance buffer.
	InstanceOffset int
	InstanceCount  int
	// RedrawId is the pass redraw the area was recorded in.
	RedrawId uint64
}

// IsEmpty reports whether the area was never recorded.
func (a Area) IsEmpty() bool {
	return a.Pass == ""
}

// DrawCall is one GPU submission: repeated instances of a shader sharing its uniforms.
type DrawCall struct {
	ShaderId int
	Group    live.Id
	// Stride is the instance row length in floats.
	Stride       int
	Instances    []float32
	UserUniforms [drawshader.DrawCallUserUniforms]float32
	Textures     [drawshader.DrawCallTextureSlots]TextureId

	InstanceDirty bool
	UniformsDirty bool

	always bool
}

// InstanceCount returns the number of recorded rows.
func (d *DrawCall) InstanceCount() int {
	if d.Stride == 0 {
		return 0
	}
	return len(d.Instances) / d.Stride
}

// Pass is an ordered list of draw calls.
type Pass struct {
	Id         PassId
	Name       string
	DrawCalls  []*DrawCall
	PaintDirty bool
	RedrawId   uint64
}

// InstanceRequest describes rows to record.
type InstanceRequest struct {
	ShaderId int
	Group    live.Id
	Stride   int
	// NoCompare batches with the previous draw call of the same shader without comparing
	// group, uniforms or textures.
	NoCompare bool
	// Always starts a new draw call.
	Always       bool
	Instances    []float32
	UserUniforms [drawshader.DrawCallUserUniforms]float32
	Textures     [drawshader.DrawCallTextureSlots]TextureId
}

// Recorder owns every pass and its draw calls.
type Recorder interface {
	// NewPass creates an empty pass.
	//
	// Parameters:
	//   - name: a label for logging
	//
	// Returns:
	//   - PassId: the new pass id
	NewPass(name string) PassId

	// Pass returns a pass by id.
	//
	// Parameters:
	//   - id: the pass id
	//
	// Returns:
	//   - *Pass: the pass
	//   - bool: false if id is unknown
	Pass(id PassId) (*Pass, bool)

	// Passes returns every pass in creation order.
	//
	// Returns:
	//   - []*Pass: the passes
	Passes() []*Pass

	// BeginRedraw drops a pass's draw calls and invalidates every Area recorded into it.
	//
	// Parameters:
	//   - id: the pass id
	//
	// Returns:
	//   - error: ErrUnknownPass
	BeginRedraw(id PassId) error

	// Reset begins a redraw of every pass.
	Reset()

	// AddInstances records rows into a pass, batching into the last draw call when allowed.
	//
	// Parameters:
	//   - id: the pass id
	//   - req: the rows and the state they are drawn with
	//
	// Returns:
	//   - Area: where the rows were recorded
	//   - error: ErrUnknownPass or ErrStride
	AddInstances(id PassId, req InstanceRequest) (Area, error)

	// ValidInstance resolves an area recorded in the pass's current redraw.
	//
	// Parameters:
	//   - a: the area
	//
	// Returns:
	//   - *DrawCall: the draw call holding the rows
	//   - bool: false if the area is empty, stale, or out of range
	ValidInstance(a Area) (*DrawCall, bool)

	// MarkPaintDirty flags a pass for repaint.
	//
	// Parameters:
	//   - id: the pass id
	MarkPaintDirty(id PassId)

	// TakeDirty returns the draw calls of a pass with a dirty buffer and clears every dirty
	// flag of the pass.
	//
	// Parameters:
	//   - id: the pass id
	//
	// Returns:
	//   - []DirtyDrawCall: the dirty draw calls with the flags they had before clearing
	TakeDirty(id PassId) []DirtyDrawCall
}

// DirtyDrawCall is a draw call with the buffers that need re-uploading.
type DirtyDrawCall struct {
	Index     int
	DrawCall  *DrawCall
	Instances bool
	Uniforms  bool
}

// recorder is the implementation of the Recorder interface.
type recorder struct {
	passes []*Pass
	byId   map[PassId]*Pass
}

var _ Recorder = &recorder{}

// NewRecorder creates a recorder with no passes.
//
// Returns:
//   - Recorder: the empty recorder
func NewRecorder() Recorder {
	return &recorder{byId: make(map[PassId]*Pass)}
}

func (r *recorder) NewPass(name string) PassId {
	p := &Pass{Id: PassId(uuid.NewString()), Name: name}
	r.passes = append(r.passes, p)
	r.byId[p.Id] = p
	return p.Id
}

func (r *recorder) Pass(id PassId) (*Pass, bool) {
	p, ok := r.byId[id]
	return p, ok
}

func (r *recorder) Passes() []*Pass {
	return r.passes
}

func (r *recorder) BeginRedraw(id PassId) error {
	p, ok := r.byId[id]
	if !ok {
		return fmt.Errorf("begin redraw %s: %w", id, ErrUnknownPass)
	}
	p.DrawCalls = p.DrawCalls[:0]
	p.RedrawId++
	p.PaintDirty = true
	return nil
}

func (r *recorder) Reset() {
	for _, p := range r.passes {
		_ = r.BeginRedraw(p.Id)
	}
}

func (r *recorder) AddInstances(id PassId, req InstanceRequest) (Area, error) {
	p, ok := r.byId[id]
	if !ok {
		return Area{}, fmt.Errorf("add instances to %s: %w", id, ErrUnknownPass)
	}
	if req.Stride <= 0 || len(req.Instances)%req.Stride != 0 {
		return Area{}, fmt.Errorf("%w: %d floats, stride %d", ErrStride, len(req.Instances), req.Stride)
	}

	dc, index := r.batchTarget(p, req)
	if dc == nil {
		dc = &DrawCall{
			ShaderId:     req.ShaderId,
			Group:        req.Group,
			Stride:       req.Stride,
			UserUniforms: req.UserUniforms,
			Textures:     req.Textures,
			always:       req.Always,
		}
		p.DrawCalls = append(p.DrawCalls, dc)
		index = len(p.DrawCalls) - 1
	}

	area := Area{
		Pass:           id,
		DrawCall:       index,
		InstanceOffset: len(dc.Instances),
		InstanceCount:  len(req.Instances) / req.Stride,
		RedrawId:       p.RedrawId,
	}
	dc.Instances = append(dc.Instances, req.Instances...)
	dc.InstanceDirty = true
	dc.UniformsDirty = true
	p.PaintDirty = true
	return area, nil
}

func (r *recorder) batchTarget(p *Pass, req InstanceRequest) (*DrawCall, int) {
	if req.Always || len(p.DrawCalls) == 0 {
		return nil, -1
	}
	index := len(p.DrawCalls) - 1
	last := p.DrawCalls[index]
	if last.always || last.ShaderId != req.ShaderId || last.Stride != req.Stride {
		return nil, -1
	}
	if req.NoCompare {
		return last, index
	}
	if last.Group != req.Group || last.UserUniforms != req.UserUniforms || last.Textures != req.Textures {
		return nil, -1
	}
	return last, index
}

func (r *recorder) ValidInstance(a Area) (*DrawCall, bool) {
	if a.IsEmpty() {
		return nil, false
	}
	p, ok := r.byId[a.Pass]
	if !ok || p.RedrawId != a.RedrawId || a.DrawCall < 0 || a.DrawCall >= len(p.DrawCalls) {
		return nil, false
	}
	dc := p.DrawCalls[a.DrawCall]
	if a.InstanceOffset+a.InstanceCount*dc.Stride > len(dc.Instances) {
		return nil, false
	}
	return dc, true
}

func (r *recorder) MarkPaintDirty(id PassId) {
	if p, ok := r.byId[id]; ok {
		p.PaintDirty = true
	}
}

func (r *recorder) TakeDirty(id PassId) []DirtyDrawCall {
	p, ok := r.byId[id]
	if !ok {
		return nil
	}
	var out []DirtyDrawCall
	for i, dc := range p.DrawCalls {
		if dc.InstanceDirty || dc.UniformsDirty {
			out = append(out, DirtyDrawCall{Index: i, DrawCall: dc, Instances: dc.InstanceDirty, Uniforms: dc.UniformsDirty})
			dc.InstanceDirty = false
			dc.UniformsDirty = false
		}
	}
	p.PaintDirty = false
	return out
}
