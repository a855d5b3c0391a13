package backend

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
)

// BufferKind names the per-draw-call buffer a write targets.
type BufferKind int

const (
	BufferInstances BufferKind = iota
	BufferUserUniforms
	// BufferLiveUniforms targets a shader's live uniform buffer; Pass is empty and DrawCall is -1.
	BufferLiveUniforms
)

// BufferWrite describes a single GPU buffer write for one draw call of a pass, or for one
// shader when Kind is BufferLiveUniforms.
type BufferWrite struct {
	Pass     drawlist.PassId
	DrawCall int
	ShaderId int
	Kind     BufferKind
	Offset   uint64
	Data     []byte
}

// Marshal encodes floats as little-endian bytes.
//
// Parameters:
//   - data: the floats to encode
//
// Returns:
//   - []byte: 4 bytes per float
func Marshal(data []float32) []byte {
	buf := make([]byte, len(data)*floatSize)
	for i, f := range data {
		binary.LittleEndian.PutUint32(buf[i*floatSize:], math.Float32bits(f))
	}
	return buf
}

// CollectWrites drains the dirty draw calls of a pass into buffer writes, instances
// before uniforms for each draw call. The pass's dirty flags are cleared.
//
// Parameters:
//   - r: the recorder owning the pass
//   - pass: the pass to drain
//
// Returns:
//   - []BufferWrite: the writes in draw call order
func CollectWrites(r drawlist.Recorder, pass drawlist.PassId) []BufferWrite {
	var writes []BufferWrite
	for _, d := range r.TakeDirty(pass) {
		if d.Instances {
			writes = append(writes, BufferWrite{
				Pass:     pass,
				DrawCall: d.Index,
				ShaderId: d.DrawCall.ShaderId,
				Kind:     BufferInstances,
				Data:     Marshal(d.DrawCall.Instances),
			})
		}
		if d.Uniforms {
			writes = append(writes, BufferWrite{
				Pass:     pass,
				DrawCall: d.Index,
				ShaderId: d.DrawCall.ShaderId,
				Kind:     BufferUserUniforms,
				Data:     Marshal(d.DrawCall.UserUniforms[:]),
			})
		}
	}
	return writes
}

// LiveUniformWrite returns the upload of a shader's resolved live uniform buffer.
//
// Parameters:
//   - cs: the compiled shader
//
// Returns:
//   - BufferWrite: the write
//   - bool: false if the shader has no live uniforms
func LiveUniformWrite(cs *drawshader.CompiledShader) (BufferWrite, bool) {
	if len(cs.Mapping.LiveUniformsBuf) == 0 {
		return BufferWrite{}, false
	}
	return BufferWrite{
		DrawCall: -1,
		ShaderId: cs.Id,
		Kind:     BufferLiveUniforms,
		Data:     Marshal(cs.Mapping.LiveUniformsBuf),
	}, true
}
