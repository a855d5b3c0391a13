package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-live/common"
	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/profiler"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawlist"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawvars"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
)

// ErrUnknownPath is returned when a dotted key path does not resolve to a node.
var ErrUnknownPath = errors.New("unknown path")

// Frame is the GPU work produced by one Prepare call.
type Frame struct {
	// Layouts describes every shader compiled since the previous frame.
	Layouts []backend.ShaderLayout
	// Writes holds live uniform uploads after value edits, then the buffer uploads of every
	// dirty draw call, pass by pass.
	Writes []backend.BufferWrite
}

// tracked is a DrawVars applied through the engine, re-applied on reloads and live edits.
type tracked struct {
	path string
	ptr  live.Ptr
}

// engine implements the Engine interface.
// Owns the document registry, the draw shader cache, the draw call recorder and the
// diagnostics reporter. Everything runs on the goroutine calling Run or the methods below.
type engine struct {
	tickRateChannel chan time.Duration

	running     atomic.Bool
	quitChannel chan struct{}
	quitOnce    sync.Once

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	frameCallback  func(frame Frame)

	registry            live.Registry
	cache               drawshader.Cache
	recorder            drawlist.Recorder
	reporter            diagnostics.Reporter
	diagnosticCacheSize int
	debug               bool

	uniformPacking  layout.Packing
	instancePacking layout.Packing

	vars map[*drawvars.DrawVars]tracked
	// liveDirty is set when a value edit changed live uniform buffers.
	liveDirty bool
}

// Engine is the owning execution context of the draw shader pipeline.
// It loads and reloads documents, binds and applies draw vars, and turns compiled shaders
// and dirty draw calls into GPU work once per tick.
type Engine interface {
	drawvars.Context

	// RegisterTypes reflects Go structs into type infos the declaration scanner can expand.
	//
	// Parameters:
	//   - values: struct values or pointers to them
	RegisterTypes(values ...any)

	// LoadDocument reads and registers a TOML document.
	//
	// Parameters:
	//   - path: the document file
	//
	// Returns:
	//   - live.FileId: the document id
	//   - error: if the file cannot be read or parsed
	LoadDocument(path string) (live.FileId, error)

	// ParseDocument registers a TOML document held in memory.
	//
	// Parameters:
	//   - name: the document name used in spans and paths
	//   - src: the TOML source
	//
	// Returns:
	//   - live.FileId: the document id
	//   - error: if the source cannot be parsed
	ParseDocument(name, src string) (live.FileId, error)

	// ReloadDocument replaces a document after a structural change. Every compiled shader
	// is flushed, every pass is reset, and every tracked DrawVars is applied again.
	//
	// Parameters:
	//   - file: the document id
	//   - src: the new TOML source
	//
	// Returns:
	//   - error: if the source cannot be parsed or file is unknown
	ReloadDocument(file live.FileId, src string) error

	// EditValue changes one concrete value without a reload. Live uniforms are re-resolved
	// and tracked DrawVars of the edited class are patched in place.
	//
	// Parameters:
	//   - path: the dotted key path of the value
	//   - v: the new value
	//
	// Returns:
	//   - error: ErrUnknownPath, or live.ErrStructuralEdit
	EditValue(path string, v live.Value) error

	// Apply binds vars to the class node at path, applies its values and tracks vars for
	// reloads and live edits.
	//
	// Parameters:
	//   - vars: the instance state
	//   - from: where the values come from
	//   - path: the dotted key path of the class node
	//
	// Returns:
	//   - error: ErrUnknownPath, or the compile error of the class
	Apply(vars *drawvars.DrawVars, from drawvars.ApplyFrom, path string) error

	// Release stops tracking vars.
	//
	// Parameters:
	//   - vars: the instance state
	Release(vars *drawvars.DrawVars)

	// Prepare drains newly compiled shaders into backend layouts and dirty draw calls into
	// buffer writes.
	//
	// Returns:
	//   - Frame: the GPU work
	Prepare() Frame

	// Tick prepares a frame, hands it to the frame callback and feeds the profiler.
	//
	// Returns:
	//   - Frame: the prepared frame
	Tick() Frame

	// EnableProfiler enables profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second. Safe to call from any
	// goroutine while Run is executing; before that, call it from Run's goroutine.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called at the start of each tick.
	// Use this to record draw calls and apply animated values.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function receiving each tick's frame.
	//
	// Parameters:
	//   - callback: function receiving the prepared frame
	SetFrameCallback(callback func(frame Frame))

	// Run ticks at the configured rate until ctx is done or Quit is called.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: ctx.Err() when cancelled, nil after Quit
	Run(ctx context.Context) error

	// Quit stops Run. Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	defaults := DefaultConfig()
	e := &engine{
		tickRateChannel:     make(chan time.Duration, 1),
		quitChannel:         make(chan struct{}),
		profiler:            profiler.NewProfiler(time.Second),
		engineTickRate:      time.Second / 60,
		registry:            live.NewRegistry(),
		recorder:            drawlist.NewRecorder(),
		diagnosticCacheSize: defaults.DiagnosticCacheSize,
		uniformPacking:      layout.DefaultPacking(),
		instancePacking:     layout.PackingAttribute,
		vars:                make(map[*drawvars.DrawVars]tracked),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.reporter == nil {
		e.reporter = diagnostics.NewReporter(e.diagnosticCacheSize, diagnostics.WithLogAll(e.debug))
	}
	e.cache = drawshader.NewCache(
		drawshader.WithUniformPacking(e.uniformPacking),
		drawshader.WithInstancePacking(e.instancePacking),
		drawshader.WithReporter(e.reporter),
	)
	e.registry.OnReload(e.onReload)
	return e
}

// NewEngineFromConfig creates an Engine from a loaded configuration.
//
// Parameters:
//   - conf: the configuration
//   - options: further options applied after the configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: if the configuration is invalid
func NewEngineFromConfig(conf Config, options ...EngineBuilderOption) (Engine, error) {
	opts, err := conf.Options()
	if err != nil {
		return nil, err
	}
	return NewEngine(append(opts, options...)...), nil
}

func (e *engine) Registry() live.Registry        { return e.registry }
func (e *engine) DrawShaders() drawshader.Cache  { return e.cache }
func (e *engine) Recorder() drawlist.Recorder    { return e.recorder }
func (e *engine) Reporter() diagnostics.Reporter { return e.reporter }

func (e *engine) RegisterTypes(values ...any) {
	for _, v := range values {
		e.registry.RegisterType(live.ReflectType(v)...)
	}
}

func (e *engine) LoadDocument(path string) (live.FileId, error) {
	doc, err := live.LoadDocument(path)
	if err != nil {
		return 0, err
	}
	id := e.registry.AddDocument(doc)
	common.Logger().Info("[Engine] loaded document", "path", path, "nodes", len(doc.Nodes))
	return id, nil
}

func (e *engine) ParseDocument(name, src string) (live.FileId, error) {
	doc, err := live.ParseDocument(name, src)
	if err != nil {
		return 0, err
	}
	id := e.registry.AddDocument(doc)
	common.Logger().Info("[Engine] loaded document", "name", name, "nodes", len(doc.Nodes))
	return id, nil
}

func (e *engine) ReloadDocument(file live.FileId, src string) error {
	old, ok := e.registry.Document(file)
	if !ok {
		return fmt.Errorf("reload %d: %w", file, live.ErrUnknownDocument)
	}
	doc, err := live.ParseDocument(old.Name, src)
	if err != nil {
		return err
	}
	return e.registry.ReplaceDocument(file, doc)
}

// onReload flushes every compiled shader and re-applies tracked vars after a structural
// reload.
func (e *engine) onReload(generation uint64) {
	e.cache.Flush()
	e.recorder.Reset()
	common.Logger().Info("[Engine] reloaded", "generation", generation, "tracked", len(e.vars))

	for vars, t := range e.vars {
		ptr, ok := e.registry.Resolve(t.path)
		if !ok {
			common.Logger().Warn("[Engine] tracked class vanished on reload", "path", t.path)
			delete(e.vars, vars)
			continue
		}
		vars.Shader = nil
		vars.Area = drawlist.Area{}
		e.vars[vars] = tracked{path: t.path, ptr: ptr}
		// Failures are reported by the cache and leave vars unbound.
		_ = vars.Apply(e, drawvars.ApplyUpdateFromDoc, ptr)
	}
}

func (e *engine) EditValue(path string, v live.Value) error {
	ptr, ok := e.registry.Resolve(path)
	if !ok {
		return fmt.Errorf("edit %s: %w", path, ErrUnknownPath)
	}
	if err := e.registry.SetValue(ptr, v); err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}
	e.cache.UpdateLiveUniforms(e.registry)
	e.liveDirty = true

	node, _ := e.registry.Node(ptr)
	class := live.Ptr{File: ptr.File, Index: node.Parent}
	for vars, t := range e.vars {
		if t.ptr != class {
			continue
		}
		vars.ApplyValue(e, node.Id, node.Value, node.Span)
		vars.AfterApply(e, drawvars.ApplyAnimate)
	}
	return nil
}

func (e *engine) Apply(vars *drawvars.DrawVars, from drawvars.ApplyFrom, path string) error {
	ptr, ok := e.registry.Resolve(path)
	if !ok {
		return fmt.Errorf("apply %s: %w", path, ErrUnknownPath)
	}
	e.vars[vars] = tracked{path: path, ptr: ptr}
	return vars.Apply(e, from, ptr)
}

func (e *engine) Release(vars *drawvars.DrawVars) {
	delete(e.vars, vars)
}

func (e *engine) Prepare() Frame {
	var frame Frame
	for _, id := range e.cache.TakeCompileQueue() {
		cs, ok := e.cache.ShaderById(id)
		if !ok {
			continue
		}
		frame.Layouts = append(frame.Layouts, backend.Describe(cs))
	}
	if e.liveDirty {
		for id := 0; ; id++ {
			cs, ok := e.cache.ShaderById(id)
			if !ok {
				break
			}
			if w, ok := backend.LiveUniformWrite(cs); ok {
				frame.Writes = append(frame.Writes, w)
			}
		}
		e.liveDirty = false
	}
	for _, p := range e.recorder.Passes() {
		frame.Writes = append(frame.Writes, backend.CollectWrites(e.recorder, p.Id)...)
	}
	return frame
}

func (e *engine) Tick() Frame {
	frame := e.Prepare()
	if e.frameCallback != nil {
		e.frameCallback(frame)
	}
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(e.cache.Stats())
	}
	return frame
}

func (e *engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quitChannel:
			return nil
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			e.Tick()
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// Quit signals Run to return.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// EnableProfiler enables profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// While Run is executing the new rate is handed to the loop over a channel and takes
// effect on its next iteration; any goroutine may call it then. Before Run starts it must
// be called from the goroutine that will call Run.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetFrameCallback(callback func(frame Frame)) {
	e.frameCallback = callback
}
