package drawshader

import (
	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
)

// CacheOption is a functional option used to configure a Cache during construction.
type CacheOption func(*cache)

// WithUniformPacking sets the packing of the live and block uniform groups.
//
// Parameters:
//   - p: the uniform packing
//
// Returns:
//   - CacheOption: a function that sets the uniform packing
func WithUniformPacking(p layout.Packing) CacheOption {
	return func(c *cache) {
		c.uniformPacking = p
	}
}

// WithInstancePacking sets the packing of the geometry and instance groups.
//
// Parameters:
//   - p: the instance packing
//
// Returns:
//   - CacheOption: a function that sets the instance packing
func WithInstancePacking(p layout.Packing) CacheOption {
	return func(c *cache) {
		c.instancePacking = p
	}
}

// WithReporter sets the reporter receiving compile failures. Without one, failures are
// only returned from Bind.
//
// Parameters:
//   - r: the diagnostics reporter
//
// Returns:
//   - CacheOption: a function that sets the reporter
func WithReporter(r diagnostics.Reporter) CacheOption {
	return func(c *cache) {
		c.reporter = r
	}
}
