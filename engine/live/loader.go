package live

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/blang/semver/v4"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsupportedFormat is returned when a document's format key is missing the
	// supported major version.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnsupportedValue is returned for TOML values with no document representation,
	// such as arrays of tables or vectors with more than four components.
	ErrUnsupportedValue = errors.New("unsupported document value")
)

// formatKey is the optional top-level key carrying the document format version.
const formatKey = "format"

// supportedFormats is the accepted document format range.
var supportedFormats = semver.MustParseRange(">=1.0.0 <2.0.0")

// LoadDocument reads and parses a document from disk.
//
// Parameters:
//   - path: the TOML file to read; also used as the document name
//
// Returns:
//   - *Document: the parsed document
//   - error: if the file cannot be read or parsed
func LoadDocument(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return ParseDocument(path, string(src))
}

// ParseDocument parses TOML source into a Document. Tables become object nodes, or class
// nodes when they carry a "class" key naming a registered type. A "shader" string is split
// into one DSL node per non-blank line with whitespace normalized. Strings starting with
// '#' are colors, arrays of 2, 3 or 4 numbers are vectors, integers are floats and all
// other strings are identifiers. Key order follows the source.
//
// Parameters:
//   - name: the document name used in spans
//   - src: the TOML source
//
// Returns:
//   - *Document: the parsed document
//   - error: on TOML syntax errors, unsupported values or an unsupported format version
func ParseDocument(name, src string) (*Document, error) {
	var raw map[string]any
	md, err := toml.Decode(src, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := checkFormat(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	p := &docParser{
		doc:   NewDocument(name),
		raw:   raw,
		lines: strings.Split(src, "\n"),
		index: map[string]int{"": 0},
		line:  map[string]int{"": 0},
	}
	for _, key := range md.Keys() {
		if err := p.add(key); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return p.doc, nil
}

func checkFormat(raw map[string]any) error {
	f, ok := raw[formatKey]
	if !ok {
		return nil
	}
	s, ok := f.(string)
	if !ok {
		return fmt.Errorf("%w: format must be a version string, got %T", ErrUnsupportedFormat, f)
	}
	v, err := semver.ParseTolerant(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !supportedFormats(v) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, v)
	}
	return nil
}

type docParser struct {
	doc   *Document
	raw   map[string]any
	lines []string
	// index maps a dotted key path to its node index.
	index map[string]int
	// line maps a dotted key path to its 0-based source line.
	line map[string]int
}

func (p *docParser) add(key toml.Key) error {
	path := strings.Join(key, ".")
	if _, done := p.index[path]; done {
		return nil
	}
	last := key[len(key)-1]
	if len(key) == 1 && last == formatKey {
		return nil
	}

	parentPath := strings.Join(key[:len(key)-1], ".")
	parent, err := p.ensure(key[:len(key)-1])
	if err != nil {
		return err
	}
	v := lookupRaw(p.raw, key)

	if last == string(IdClass) && len(key) > 1 {
		return nil
	}

	if tbl, ok := v.(map[string]any); ok {
		lineNo := p.findHeader(path, p.line[parentPath])
		p.line[path] = lineNo
		p.index[path] = p.doc.Append(parent, Node{Id: Id(last), Value: tableValue(tbl), Span: p.span(path, lineNo)})
		return nil
	}

	lineNo := p.findKey(last, p.line[parentPath])
	if s, ok := v.(string); ok && last == string(IdShader) {
		p.addDsl(parent, path, s, lineNo)
		p.index[path] = parent
		return nil
	}

	val, err := convertValue(v)
	if err != nil {
		return fmt.Errorf("%s (line %d): %w", path, lineNo+1, err)
	}
	p.line[path] = lineNo
	p.index[path] = p.doc.Append(parent, Node{Id: Id(last), Value: val, Span: p.span(path, lineNo)})
	return nil
}

// ensure returns the node index for a table path, creating implicit tables on demand.
func (p *docParser) ensure(key toml.Key) (int, error) {
	path := strings.Join(key, ".")
	if idx, ok := p.index[path]; ok {
		return idx, nil
	}
	if err := p.add(key); err != nil {
		return 0, err
	}
	return p.index[path], nil
}

func (p *docParser) addDsl(parent int, path, body string, keyLine int) {
	first := keyLine
	if raw := p.lines[keyLine]; strings.HasSuffix(strings.TrimSpace(raw), `"""`) || strings.HasSuffix(strings.TrimSpace(raw), `'''`) {
		first = keyLine + 1
	}
	for i, l := range strings.Split(body, "\n") {
		text := strings.Join(strings.Fields(l), " ")
		if text == "" {
			continue
		}
		p.doc.Append(parent, Node{Id: IdShader, Value: NewDsl(text), Span: p.span(path, first+i)})
	}
}

func (p *docParser) span(path string, lineNo int) Span {
	return Span{File: p.doc.Name, Path: path, Line: lineNo + 1}
}

func (p *docParser) findHeader(path string, from int) int {
	header := "[" + path + "]"
	for i := from; i < len(p.lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(p.lines[i]), header) {
			return i
		}
	}
	return from
}

func (p *docParser) findKey(key string, from int) int {
	for i := from; i < len(p.lines); i++ {
		rest, ok := strings.CutPrefix(strings.TrimSpace(p.lines[i]), key)
		if ok && strings.HasPrefix(strings.TrimSpace(rest), "=") {
			return i
		}
	}
	return from
}

func lookupRaw(m map[string]any, key toml.Key) any {
	var cur any = m
	for _, k := range key {
		tbl, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = tbl[k]
	}
	return cur
}

func tableValue(tbl map[string]any) Value {
	if class, ok := tbl[string(IdClass)].(string); ok {
		return NewClass(Id(class))
	}
	return NewObject()
}

func convertValue(v any) (Value, error) {
	switch t := v.(type) {
	case bool:
		return NewBool(t), nil
	case float64:
		return NewFloat(t), nil
	case int64:
		return NewFloat(float64(t)), nil
	case string:
		if strings.HasPrefix(t, "#") {
			c, err := ParseColor(t)
			if err != nil {
				return Value{}, err
			}
			return NewColor(c), nil
		}
		return NewId(Id(t)), nil
	case []any:
		return convertVector(t)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func convertVector(arr []any) (Value, error) {
	if len(arr) < 2 || len(arr) > 4 {
		return Value{}, fmt.Errorf("%w: array of %d elements", ErrUnsupportedValue, len(arr))
	}
	var vec mgl32.Vec4
	for i, e := range arr {
		switch n := e.(type) {
		case float64:
			vec[i] = float32(n)
		case int64:
			vec[i] = float32(n)
		default:
			return Value{}, fmt.Errorf("%w: vector component %T", ErrUnsupportedValue, e)
		}
	}
	switch len(arr) {
	case 2:
		return NewVec2(mgl32.Vec2{vec[0], vec[1]}), nil
	case 3:
		return NewVec3(vec.Vec3()), nil
	default:
		return NewVec4(vec), nil
	}
}
