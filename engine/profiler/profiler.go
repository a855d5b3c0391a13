package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-live/common"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/drawshader"
)

// Report is one interval of profiling data.
type Report struct {
	TicksPerSecond float64
	HeapMB         float64
	AllocRateMB    float64
	GCCount        uint32

	// Compiles, IdentityHits, FingerprintHits and Failures count bind outcomes during the
	// interval.
	Compiles        uint64
	IdentityHits    uint64
	FingerprintHits uint64
	Failures        uint64
	// HitRate is the share of binds during the interval served without compiling.
	HitRate float64
	Shaders int
}

// Profiler tracks tick rate, memory and draw shader cache statistics. Outputs a report to
// the logger at a configurable interval.
type Profiler struct {
	tickCount      int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64
	lastStats      drawshader.Stats
	last           Report
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - interval: how often a report is produced; defaults to 1 second when not positive
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
	}
}

// Tick should be called once per engine tick with the current cache statistics.
// Logs a report when the update interval has elapsed.
//
// Parameters:
//   - stats: the draw shader cache statistics
//
// Returns:
//   - bool: true if a report was produced this tick, false otherwise
func (p *Profiler) Tick(stats drawshader.Stats) bool {
	p.tickCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc

	r := Report{
		TicksPerSecond:  float64(p.tickCount) / elapsed.Seconds(),
		HeapMB:          float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB:     float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:         p.memStats.NumGC,
		Compiles:        stats.Compiles - p.lastStats.Compiles,
		IdentityHits:    stats.IdentityHits - p.lastStats.IdentityHits,
		FingerprintHits: stats.FingerprintHits - p.lastStats.FingerprintHits,
		Failures:        stats.Failures - p.lastStats.Failures,
		Shaders:         stats.Shaders,
	}
	hits := r.IdentityHits + r.FingerprintHits
	if total := hits + r.Compiles + r.Failures; total > 0 {
		r.HitRate = float64(hits) / float64(total)
	}

	common.Logger().Info("[Profiler]",
		"tps", r.TicksPerSecond, "heap_mb", r.HeapMB, "alloc_rate_mb", r.AllocRateMB, "gc", r.GCCount,
		"compiles", r.Compiles, "hit_rate", r.HitRate, "failures", r.Failures, "shaders", r.Shaders)

	p.tickCount = 0
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.lastStats = stats
	p.last = r
	return true
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	return p.last
}
