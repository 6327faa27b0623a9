package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks frame rate, compute dispatch counts, and memory statistics
// for performance monitoring. Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	dispatchCount  int
	generatorCount int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// RecordDispatches adds to the compute dispatch count for the current interval
// and records how many generators rendered this frame.
//
// Parameters:
//   - dispatches: compute passes encoded this frame
//   - generators: active generators this frame
func (p *Profiler) RecordDispatches(dispatches, generators int) {
	p.dispatchCount += dispatches
	p.generatorCount = generators
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, dispatches per frame, active generators, heap
// usage, allocation rate, GC count.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()
		dispatchesPerFrame := 0.0
		if p.frameCount > 0 {
			dispatchesPerFrame = float64(p.dispatchCount) / float64(p.frameCount)
		}

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024

		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		log.Printf("[Profiler] FPS: %.2f | Generators: %d | Dispatches/frame: %.1f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
			fps, p.generatorCount, dispatchesPerFrame, allocMB, allocRateMB, p.memStats.NumGC)

		p.frameCount = 0
		p.dispatchCount = 0
		p.lastTime = currentTime
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
