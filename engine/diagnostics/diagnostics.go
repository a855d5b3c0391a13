// Package diagnostics carries authoring problems found while binding and applying
// declarative draw shader documents back to the user. Diagnostics never abort
// processing; they are recorded, logged once per distinct message, and left for the
// host to display.
package diagnostics

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-live/common"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	lru "github.com/hashicorp/golang-lru"
)

// Kind classifies a reported diagnostic.
type Kind int

const (
	// KindCompileFailed is reported when a draw shader could not be compiled. The
	// instance state stays unbound and its draw calls are skipped.
	KindCompileFailed Kind = iota

	// KindNoMatchingField is reported when a concrete value names a field that none of
	// the bound shader's groups declare.
	KindNoMatchingField

	// KindTypeMismatch is reported when a value cannot be decoded into the slot count
	// of the field it targets.
	KindTypeMismatch

	// KindUnbound is reported when values are applied to an instance state that has no
	// shader and could not be bound.
	KindUnbound
)

// String returns the short name used in log lines.
func (k Kind) String() string {
	switch k {
	case KindCompileFailed:
		return "compile failed"
	case KindNoMatchingField:
		return "no matching field"
	case KindTypeMismatch:
		return "value type mismatch"
	case KindUnbound:
		return "unbound"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Diagnostic is a single human-readable problem anchored at a source location.
type Diagnostic struct {
	Kind    Kind
	Span    live.Span
	Message string
}

// Error formats the diagnostic as "<span>: <kind>: <message>".
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Kind, d.Message)
}

// Reporter receives diagnostics from the binding and apply passes.
type Reporter interface {
	// Report records a diagnostic.
	//
	// Parameters:
	//   - d: the diagnostic to record
	Report(d Diagnostic)

	// Diagnostics returns every diagnostic recorded since the last Reset, in report order.
	//
	// Returns:
	//   - []Diagnostic: the recorded diagnostics
	Diagnostics() []Diagnostic

	// Reset forgets recorded diagnostics and the log dedupe window.
	Reset()
}

// collector is the default Reporter. Every diagnostic is recorded; only diagnostics
// whose text has not been seen within the dedupe window are logged, so a broken
// declaration re-encountered every frame does not flood the log.
type collector struct {
	recorded []Diagnostic
	seen     *lru.Cache
	logAll   bool
}

// ReporterOption configures the default Reporter.
type ReporterOption func(*collector)

// WithLogAll logs every reported diagnostic, duplicates included.
//
// Parameters:
//   - enabled: if true, the dedupe window no longer suppresses log lines
//
// Returns:
//   - ReporterOption: option function to apply
func WithLogAll(enabled bool) ReporterOption {
	return func(c *collector) {
		c.logAll = enabled
	}
}

var _ Reporter = &collector{}

// DefaultDedupeSize is the number of distinct diagnostic texts remembered for log dedupe.
const DefaultDedupeSize = 256

// NewReporter creates the default Reporter.
//
// Parameters:
//   - dedupeSize: how many distinct diagnostics to remember for log suppression; values <= 0 use DefaultDedupeSize
//   - opts: functional options
//
// Returns:
//   - Reporter: a ready-to-use reporter
func NewReporter(dedupeSize int, opts ...ReporterOption) Reporter {
	if dedupeSize <= 0 {
		dedupeSize = DefaultDedupeSize
	}
	seen, err := lru.New(dedupeSize)
	if err != nil {
		panic(fmt.Sprintf("diagnostics: failed to create dedupe cache: %v", err))
	}
	c := &collector{seen: seen}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *collector) Report(d Diagnostic) {
	c.recorded = append(c.recorded, d)
	text := d.Error()
	if seen, _ := c.seen.ContainsOrAdd(text, struct{}{}); seen && !c.logAll {
		return
	}
	common.Logger().Warn("[Diagnostics] "+text, "kind", d.Kind.String(), "file", d.Span.File, "line", d.Span.Line)
}

func (c *collector) Diagnostics() []Diagnostic {
	return c.recorded
}

func (c *collector) Reset() {
	c.recorded = nil
	c.seen.Purge()
}
