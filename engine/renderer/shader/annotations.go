// annotations.go defines the annotation types, argument constants, and parser for the
// //@oxy: declaration lines found in a draw shader's shader body. Each annotation declares
// one field, one hot-reloadable uniform constant, or one behavior flag. Lines without the
// prefix are shader code and are left to the backend; they still take part in the
// shader's fingerprint.
package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-live/engine/live"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a declaration line.
type AnnotationType string

const (
	// AnnotationTypeGeometry declares a per-vertex geometry input.
	//
	// Syntax: //@oxy:geometry <name> <type>
	//
	// Example: //@oxy:geometry pos vec2
	AnnotationTypeGeometry AnnotationType = "geometry"

	// AnnotationTypeInstance declares a per-instance input whose value is applied from the
	// document. These fields lead the instance row, ahead of the Go type's fields.
	//
	// Syntax: //@oxy:instance <name> <type>
	//
	// Example: //@oxy:instance brightness f32
	AnnotationTypeInstance AnnotationType = "instance"

	// AnnotationTypeUniform declares a uniform in one of the four uniform blocks. The
	// block defaults to user, the only block written by value application.
	//
	// Syntax: //@oxy:uniform <name> <type> [block]
	//
	// Example: //@oxy:uniform tint vec4 user
	AnnotationTypeUniform AnnotationType = "uniform"

	// AnnotationTypeTexture declares a texture slot.
	//
	// Syntax: //@oxy:texture <name> texture2d
	//
	// Example: //@oxy:texture image texture2d
	AnnotationTypeTexture AnnotationType = "texture"

	// AnnotationTypeLive declares a hot-reloadable uniform constant read from a document
	// value. The path is resolved relative to the class node first, then from the
	// document roots.
	//
	// Syntax: //@oxy:live <path> <type>
	//
	// Example: //@oxy:live theme.accent color
	AnnotationTypeLive AnnotationType = "live"

	// AnnotationTypeFlag sets a behavior flag on the shader.
	//
	// Syntax: //@oxy:flag <flag>
	//
	// Example: //@oxy:flag draw_call_nocompare
	AnnotationTypeFlag AnnotationType = "flag"
)

// Annotation is a single parsed //@oxy: declaration.
type Annotation struct {
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - geometry, instance, texture: [0] = field name, [1] = type
	//   - uniform: [0] = field name, [1] = type, [2] = block
	//   - live: [0] = value path, [1] = type
	//   - flag: [0] = flag name
	Args []AnnotationArg

	// Line is the 1-based source line, used for error reporting.
	Line int

	// Ptr and Span locate the DSL node the annotation was read from.
	Ptr  live.Ptr
	Span live.Span
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

// ── Type arguments ─────────────────────────────────────────────────────────────

const (
	AnnotationArgF32       AnnotationArg = "f32"
	AnnotationArgFloat     AnnotationArg = "float"
	AnnotationArgVec2      AnnotationArg = "vec2"
	AnnotationArgVec3      AnnotationArg = "vec3"
	AnnotationArgVec4      AnnotationArg = "vec4"
	AnnotationArgTexture2D AnnotationArg = "texture2d"

	// AnnotationArgColor is accepted by live annotations only; the value unpacks to a vec4.
	AnnotationArgColor AnnotationArg = "color"
)

// ── Uniform block arguments ────────────────────────────────────────────────────

const (
	AnnotationArgBlockUser AnnotationArg = "user"
	AnnotationArgBlockDraw AnnotationArg = "draw"
	AnnotationArgBlockView AnnotationArg = "view"
	AnnotationArgBlockPass AnnotationArg = "pass"
)

// ── Flag arguments ─────────────────────────────────────────────────────────────

const (
	AnnotationArgDebug             AnnotationArg = "debug"
	AnnotationArgDrawCallNoCompare AnnotationArg = "draw_call_nocompare"
	AnnotationArgDrawCallAlways    AnnotationArg = "draw_call_always"
)

// validFieldTypes lists the types accepted by geometry, instance and uniform annotations.
var validFieldTypes = []AnnotationArg{
	AnnotationArgF32,
	AnnotationArgFloat,
	AnnotationArgVec2,
	AnnotationArgVec3,
	AnnotationArgVec4,
}

// validLiveTypes lists the types accepted by live annotations.
var validLiveTypes = []AnnotationArg{
	AnnotationArgF32,
	AnnotationArgFloat,
	AnnotationArgVec2,
	AnnotationArgVec3,
	AnnotationArgVec4,
	AnnotationArgColor,
}

var validBlocks = []AnnotationArg{
	AnnotationArgBlockUser,
	AnnotationArgBlockDraw,
	AnnotationArgBlockView,
	AnnotationArgBlockPass,
}

var validFlags = []AnnotationArg{
	AnnotationArgDebug,
	AnnotationArgDrawCallNoCompare,
	AnnotationArgDrawCallAlways,
}

// parseAnnotation attempts to parse a single declaration line as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the declaration line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeGeometry, AnnotationTypeInstance:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation requires exactly two arguments (name, type)", lineNum, args[0])
		}
		if !slices.Contains(validFieldTypes, AnnotationArg(args[2])) {
			return nil, fmt.Errorf("line %d: unknown field type %q in @oxy %s annotation", lineNum, args[2], args[0])
		}
		return &Annotation{
			Type: AnnotationType(args[0]),
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])},
			Line: lineNum,
		}, nil
	case AnnotationTypeUniform:
		if len(args) < 3 || len(args) > 4 {
			return nil, fmt.Errorf("line %d: @oxy uniform annotation requires two or three arguments (name, type[, block])", lineNum)
		}
		if !slices.Contains(validFieldTypes, AnnotationArg(args[2])) {
			return nil, fmt.Errorf("line %d: unknown field type %q in @oxy uniform annotation", lineNum, args[2])
		}
		block := AnnotationArgBlockUser
		if len(args) == 4 {
			block = AnnotationArg(args[3])
			if !slices.Contains(validBlocks, block) {
				return nil, fmt.Errorf("line %d: unknown uniform block %q in @oxy uniform annotation", lineNum, args[3])
			}
		}
		return &Annotation{
			Type: AnnotationTypeUniform,
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2]), block},
			Line: lineNum,
		}, nil
	case AnnotationTypeTexture:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy texture annotation requires exactly two arguments (name, type)", lineNum)
		}
		if AnnotationArg(args[2]) != AnnotationArgTexture2D {
			return nil, fmt.Errorf("line %d: unknown texture type %q in @oxy texture annotation", lineNum, args[2])
		}
		return &Annotation{
			Type: AnnotationTypeTexture,
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])},
			Line: lineNum,
		}, nil
	case AnnotationTypeLive:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy live annotation requires exactly two arguments (path, type)", lineNum)
		}
		if !slices.Contains(validLiveTypes, AnnotationArg(args[2])) {
			return nil, fmt.Errorf("line %d: unknown live type %q in @oxy live annotation", lineNum, args[2])
		}
		return &Annotation{
			Type: AnnotationTypeLive,
			Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])},
			Line: lineNum,
		}, nil
	case AnnotationTypeFlag:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy flag annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validFlags, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown flag %q in @oxy flag annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeFlag,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
