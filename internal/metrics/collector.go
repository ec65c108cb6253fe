// Package metrics collects and exposes real-time updater statistics.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of server metrics, safe to marshal to JSON.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	ActiveRequests int64   `json:"active_requests"`
	Scans          int64   `json:"scans"`
	Diffs          int64   `json:"diffs"`
	Plans          int64   `json:"plans"`
	Applies        int64   `json:"applies"`
	FilesScanned   int64   `json:"files_scanned"`
	LastScanMs     float64 `json:"last_scan_ms"`
	AvgScanMs      float64 `json:"avg_scan_ms"`
	AvgPlanMs      float64 `json:"avg_plan_ms"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	SnapshotStale  bool    `json:"snapshot_stale"`
}

// Collector is a thread-safe metrics store.
type Collector struct {
	startTime time.Time

	totalRequests  atomic.Int64
	activeRequests atomic.Int64
	scans          atomic.Int64
	diffs          atomic.Int64
	plans          atomic.Int64
	applies        atomic.Int64
	filesScanned   atomic.Int64
	stale          atomic.Bool

	mu          sync.Mutex
	lastScanMs  float64
	scanSamples []float64
	planSamples []float64
}

// NewCollector creates and starts a Collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// RequestStart marks a request as active and returns a done function
// that should be deferred by the handler.
func (c *Collector) RequestStart() func() {
	c.totalRequests.Add(1)
	c.activeRequests.Add(1)
	return func() {
		c.activeRequests.Add(-1)
	}
}

// RecordScan records one completed scan: file count and wall time.
func (c *Collector) RecordScan(files int, elapsed time.Duration) {
	c.scans.Add(1)
	c.filesScanned.Add(int64(files))

	ms := float64(elapsed.Microseconds()) / 1000.0

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastScanMs = ms
	c.scanSamples = append(c.scanSamples, ms)
	if len(c.scanSamples) > 1000 {
		c.scanSamples = c.scanSamples[len(c.scanSamples)-1000:]
	}
}

// RecordDiff records one computed diff.
func (c *Collector) RecordDiff() {
	c.diffs.Add(1)
}

// RecordPlan records one planner round trip and its wall time.
func (c *Collector) RecordPlan(elapsed time.Duration) {
	c.plans.Add(1)

	ms := float64(elapsed.Microseconds()) / 1000.0

	c.mu.Lock()
	defer c.mu.Unlock()
	c.planSamples = append(c.planSamples, ms)
	if len(c.planSamples) > 1000 {
		c.planSamples = c.planSamples[len(c.planSamples)-1000:]
	}
}

// RecordApply records one apply run (dry runs included).
func (c *Collector) RecordApply() {
	c.applies.Add(1)
}

// SetStale flags whether the current snapshot is out of date with the
// working tree. Set by the file watcher, cleared by the next scan.
func (c *Collector) SetStale(stale bool) {
	c.stale.Store(stale)
}

// Stale reports whether the current snapshot is flagged out of date.
func (c *Collector) Stale() bool {
	return c.stale.Load()
}

// Snapshot returns current metrics as an immutable value.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		TotalRequests:  c.totalRequests.Load(),
		ActiveRequests: c.activeRequests.Load(),
		Scans:          c.scans.Load(),
		Diffs:          c.diffs.Load(),
		Plans:          c.plans.Load(),
		Applies:        c.applies.Load(),
		FilesScanned:   c.filesScanned.Load(),
		LastScanMs:     c.lastScanMs,
		AvgScanMs:      average(c.scanSamples),
		AvgPlanMs:      average(c.planSamples),
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		SnapshotStale:  c.stale.Load(),
	}
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
