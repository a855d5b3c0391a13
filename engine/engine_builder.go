package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables profiling output.
//
// Parameters:
//   - enabled: if true, enables profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithUniformPacking sets the packing of uniform groups.
//
// Parameters:
//   - p: the uniform packing
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithUniformPacking(p layout.Packing) EngineBuilderOption {
	return func(e *engine) {
		e.uniformPacking = p
	}
}

// WithInstancePacking sets the packing of geometry and instance groups.
//
// Parameters:
//   - p: the instance packing
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInstancePacking(p layout.Packing) EngineBuilderOption {
	return func(e *engine) {
		e.instancePacking = p
	}
}

// WithDebug logs every diagnostic at warn level as it is reported, duplicates included.
// Applies to the default reporter only; a reporter passed with WithReporter logs as it likes.
//
// Parameters:
//   - enabled: if true, enables debug output
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDebug(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.debug = enabled
	}
}

// WithDiagnosticCacheSize sets how many distinct diagnostics are remembered for log
// deduplication. Values <= 0 keep the default.
//
// Parameters:
//   - n: the cache size
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDiagnosticCacheSize(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.diagnosticCacheSize = n
		}
	}
}

// WithReporter replaces the default diagnostics collector.
//
// Parameters:
//   - r: the reporter
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithReporter(r diagnostics.Reporter) EngineBuilderOption {
	return func(e *engine) {
		e.reporter = r
	}
}
