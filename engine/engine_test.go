package engine

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-live/common"
	"github.com/Carmen-Shannon/oxy-live/engine/diagnostics"
	"github.com/Carmen-Shannon/oxy-live/engine/live"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawvars"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uiDoc = `format = "1.0.0"

[theme]
accent = "#00ff00ff"

[Button]
class = "DrawButton"
shader = """
//@oxy:uniform brightness f32
//@oxy:instance hover f32
//@oxy:live theme.accent color
"""
brightness = 0.5
hover = 0.0

[Broken]
class = "DrawMissing"
`

const uiDocReloaded = `format = "1.0.0"

[theme]
accent = "#00ff00ff"

[Button]
class = "DrawButton"
shader = """
//@oxy:uniform brightness f32
//@oxy:instance hover f32
//@oxy:instance glow f32
//@oxy:live theme.accent color
"""
brightness = 0.5
hover = 0.0
glow = 0.5
`

// DrawButton has the instance row hover, rect_pos: offsets 0 and 1, stride 3.
type DrawButton struct {
	Vars    drawvars.DrawVars
	RectPos mgl32.Vec2
}

func newTestEngine(t *testing.T) (Engine, live.FileId) {
	t.Helper()
	e := NewEngine(WithUniformPacking(layout.PackingGLSL))
	e.RegisterTypes(DrawButton{})
	file, err := e.ParseDocument("ui.toml", uiDoc)
	require.NoError(t, err)
	return e, file
}

func TestApplyRecordPrepare(t *testing.T) {
	e, _ := newTestEngine(t)
	vars := drawvars.New(nil)
	require.NoError(t, e.Apply(vars, drawvars.ApplyNewFromDoc, "Button"))
	assert.Equal(t, float32(0.5), vars.UserUniforms[0])

	pass := e.Recorder().NewPass("ui")
	require.NoError(t, vars.Record(e, pass, 2))

	frame := e.Prepare()
	require.Len(t, frame.Layouts, 1)
	assert.Equal(t, backend.Marshal([]float32{0, 1, 0, 1}), frame.Layouts[0].LiveUniforms)
	require.Len(t, frame.Writes, 2)
	assert.Equal(t, backend.BufferInstances, frame.Writes[0].Kind)
	assert.Equal(t, backend.Marshal(make([]float32, 6)), frame.Writes[0].Data)

	frame = e.Prepare()
	assert.Empty(t, frame.Layouts)
	assert.Empty(t, frame.Writes)
}

func TestApplyErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.Apply(drawvars.New(nil), drawvars.ApplyNewFromDoc, "Missing")
	assert.ErrorIs(t, err, ErrUnknownPath)

	err = e.Apply(drawvars.New(nil), drawvars.ApplyNewFromDoc, "Broken")
	assert.ErrorIs(t, err, shader.ErrMissingDeclaration)
	diags := e.Reporter().Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.KindCompileFailed, diags[0].Kind)
	assert.Equal(t, uint64(1), e.DrawShaders().Stats().Failures)
}

func TestEditValuePatchesRecordedInstances(t *testing.T) {
	e, _ := newTestEngine(t)
	vars := drawvars.New(nil)
	require.NoError(t, e.Apply(vars, drawvars.ApplyNewFromDoc, "Button"))
	pass := e.Recorder().NewPass("ui")
	require.NoError(t, vars.Record(e, pass, 2))
	e.Prepare()

	require.NoError(t, e.EditValue("Button.hover", live.NewFloat(1)))

	dc, ok := e.Recorder().ValidInstance(vars.Area)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 1, 0, 0}, dc.Instances)

	frame := e.Prepare()
	require.Len(t, frame.Writes, 3)
	assert.Equal(t, backend.BufferLiveUniforms, frame.Writes[0].Kind)
	assert.Equal(t, backend.Marshal([]float32{1, 0, 0, 1, 0, 0}), frame.Writes[1].Data)
}

func TestEditValueLiveUniform(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Apply(drawvars.New(nil), drawvars.ApplyNewFromDoc, "Button"))

	require.NoError(t, e.EditValue("theme.accent", live.NewColor(0xff0000ff)))
	cs, ok := e.DrawShaders().ShaderById(0)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 1}, cs.Mapping.LiveUniformsBuf)
	assert.Equal(t, uint64(0), e.DrawShaders().Stats().Flushes)
}

func TestEditValueErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.EditValue("Button.missing", live.NewFloat(1)), ErrUnknownPath)
	assert.ErrorIs(t, e.EditValue("Button", live.NewFloat(1)), live.ErrStructuralEdit)
}

func TestReloadDocumentRebinds(t *testing.T) {
	e, file := newTestEngine(t)
	vars := drawvars.New(nil)
	require.NoError(t, e.Apply(vars, drawvars.ApplyNewFromDoc, "Button"))
	assert.Len(t, vars.AsSlice(), 3)

	require.NoError(t, e.ReloadDocument(file, uiDocReloaded))

	stats := e.DrawShaders().Stats()
	assert.Equal(t, uint64(1), stats.Flushes)
	assert.Equal(t, uint64(2), stats.Compiles)
	require.NotNil(t, vars.Shader)
	assert.Equal(t, uint64(1), vars.Shader.Generation)
	require.Len(t, vars.AsSlice(), 4)
	assert.Equal(t, float32(0.5), vars.AsSlice()[1])

	assert.ErrorIs(t, e.ReloadDocument(live.FileId(9), uiDoc), live.ErrUnknownDocument)
}

func TestReleaseStopsTracking(t *testing.T) {
	e, file := newTestEngine(t)
	vars := drawvars.New(nil)
	require.NoError(t, e.Apply(vars, drawvars.ApplyNewFromDoc, "Button"))
	e.Release(vars)

	require.NoError(t, e.ReloadDocument(file, uiDocReloaded))
	assert.Equal(t, uint64(0), vars.Shader.Generation)
	assert.Equal(t, 3, vars.VarInstanceSlots)
}

func TestRunTicksUntilQuit(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTickRate(1000)

	ticks, frames := 0, 0
	e.SetTickCallback(func(float32) {
		ticks++
		if ticks == 3 {
			e.Quit()
		}
	})
	e.SetFrameCallback(func(Frame) { frames++ })

	require.NoError(t, e.Run(context.Background()))
	assert.GreaterOrEqual(t, ticks, 3)
	assert.Equal(t, ticks, frames)
	e.Quit()
}

func TestRunStopsOnContext(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Run(ctx), context.DeadlineExceeded)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	conf := DefaultConfig()
	conf.UniformPacking = "metal"
	conf.Debug = true
	require.NoError(t, WriteConfig(path, conf))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, conf, loaded)

	opts, err := loaded.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 6)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("profiling = true\n"), 0644))

	conf, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, conf.Profiling)
	assert.Equal(t, "attribute", conf.InstancePacking)
	assert.Equal(t, 128, conf.DiagnosticCacheSize)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfigOptionsErrors(t *testing.T) {
	conf := DefaultConfig()
	conf.UniformPacking = "std140"
	_, err := conf.Options()
	assert.ErrorContains(t, err, "uniform_packing")

	_, err = NewEngineFromConfig(conf)
	assert.Error(t, err)

	conf = DefaultConfig()
	conf.InstancePacking = "nope"
	_, err = conf.Options()
	assert.ErrorContains(t, err, "instance_packing")

	e, err := NewEngineFromConfig(DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, e.Registry())
}

func TestDebugLogsEachDiagnosticOnce(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	e := NewEngine(WithDebug(true))
	e.RegisterTypes(DrawButton{})
	_, err := e.ParseDocument("ui.toml", uiDoc)
	require.NoError(t, err)

	assert.Error(t, e.Apply(drawvars.New(nil), drawvars.ApplyNewFromDoc, "Broken"))
	assert.Equal(t, 1, strings.Count(buf.String(), "[Diagnostics]"))
}

func TestSetTickRateWhileRunning(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTickRate(1000)

	var mu sync.Mutex
	ticks := 0
	e.SetTickCallback(func(float32) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks > 0
	}, time.Second, time.Millisecond)
	e.SetTickRate(500)
	e.SetTickRate(250)
	e.Quit()
	assert.NoError(t, <-done)
}
