// Package layout packs classified shader fields into flat float-slot buffers. Inputs packs
// one group under one of four alignment disciplines; Mapping assembles the nine groups a
// compiled draw shader exposes to the backend and to value application.
package layout

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
)

// Packing is the alignment discipline applied while packing a group.
type Packing int

const (
	// PackingAttribute places fields back to back with no alignment.
	PackingAttribute Packing = iota

	// PackingGLSL places fields back to back and rounds the group to a multiple of 4 slots.
	PackingGLSL

	// PackingHLSL moves a field to the next 4-slot boundary when it would straddle one.
	PackingHLSL

	// PackingMetal is PackingHLSL with 3-slot fields reserving 4 slots.
	PackingMetal
)

func (p Packing) String() string {
	switch p {
	case PackingAttribute:
		return "attribute"
	case PackingGLSL:
		return "glsl"
	case PackingHLSL:
		return "hlsl"
	case PackingMetal:
		return "metal"
	default:
		return fmt.Sprintf("packing(%d)", int(p))
	}
}

// ParsePacking parses a packing name as written in configuration. "auto" selects
// DefaultPacking.
//
// Parameters:
//   - s: one of attribute, glsl, hlsl, metal or auto (case-insensitive)
//
// Returns:
//   - Packing: the parsed packing
//   - error: if s is not a known packing
func ParsePacking(s string) (Packing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attribute":
		return PackingAttribute, nil
	case "glsl", "packed":
		return PackingGLSL, nil
	case "hlsl", "boundary":
		return PackingHLSL, nil
	case "metal", "vector":
		return PackingMetal, nil
	case "", "auto":
		return DefaultPacking(), nil
	default:
		return 0, fmt.Errorf("unknown packing %q", s)
	}
}

// DefaultPacking returns the uniform packing of the platform's native backend.
func DefaultPacking() Packing {
	switch runtime.GOOS {
	case "darwin", "ios":
		return PackingMetal
	case "windows":
		return PackingHLSL
	default:
		return PackingGLSL
	}
}

// Input is one packed field.
type Input struct {
	Id     live.Id
	Ty     shader.ShaderTy
	Offset int
	Slots  int
	// LivePtr is the document value backing a live uniform, nil for other groups.
	LivePtr *live.Ptr
}

// Inputs is one packed group. Fields keep insertion order.
type Inputs struct {
	Inputs     []Input
	Packing    Packing
	TotalSlots int
}

// NewInputs creates an empty group.
//
// Parameters:
//   - p: the packing discipline
//
// Returns:
//   - *Inputs: the empty group
func NewInputs(p Packing) *Inputs {
	return &Inputs{Packing: p}
}

// Push places a field at the next offset allowed by the group's packing.
//
// Parameters:
//   - id: the field id
//   - ty: the field type
//   - livePtr: the value backing a live uniform, or nil
//
// Returns:
//   - Input: the placed field
func (in *Inputs) Push(id live.Id, ty shader.ShaderTy, livePtr *live.Ptr) Input {
	slots := ty.Slots()
	advance := slots
	switch in.Packing {
	case PackingHLSL:
		in.alignTo(slots)
	case PackingMetal:
		if slots == 3 {
			advance = 4
		}
		in.alignTo(advance)
	}
	input := Input{Id: id, Ty: ty, Offset: in.TotalSlots, Slots: slots, LivePtr: livePtr}
	in.Inputs = append(in.Inputs, input)
	in.TotalSlots += advance
	return input
}

// alignTo jumps to the next 4-slot boundary when n slots would straddle the current one.
func (in *Inputs) alignTo(n int) {
	if (in.TotalSlots&3)+n > 4 {
		in.TotalSlots += 4 - (in.TotalSlots & 3)
	}
}

// Finalize rounds every non-attribute group up to a multiple of 4 slots.
func (in *Inputs) Finalize() {
	if in.Packing == PackingAttribute {
		return
	}
	if in.TotalSlots&3 > 0 {
		in.TotalSlots += 4 - (in.TotalSlots & 3)
	}
}

// Find returns the first input with the given id.
//
// Parameters:
//   - id: the field id
//
// Returns:
//   - Input: the input
//   - bool: false if no input has that id
func (in *Inputs) Find(id live.Id) (Input, bool) {
	for _, input := range in.Inputs {
		if input.Id == id {
			return input, true
		}
	}
	return Input{}, false
}
