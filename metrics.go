package drmoutput

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the commit-latency histogram buckets in
// nanoseconds, covering 100us (comfortably inside one vblank) to 100ms
// (a clearly missed deadline) with logarithmic spacing.
var LatencyBuckets = []uint64{
	100_000,       // 100us
	1_000_000,     // 1ms
	4_000_000,     // 4ms
	8_000_000,     // 8ms
	16_000_000,    // 16ms (one 60Hz frame)
	33_000_000,    // 33ms (one 30Hz frame)
	66_000_000,    // 66ms
	100_000_000,   // 100ms
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Device.
type Metrics struct {
	// Commit counters, split by KMS wire kind.
	CommitsAtomic atomic.Uint64
	CommitsLegacy atomic.Uint64
	CommitErrors  atomic.Uint64
	ModesetCount  atomic.Uint64

	// Page-flip completions observed off the DRM fd.
	PageFlips atomic.Uint64

	// Allocator activity.
	AllocOps    atomic.Uint64
	AllocBytes  atomic.Uint64
	AllocErrors atomic.Uint64

	// Events dropped under allocation pressure (spec §4.9: pushing an
	// event onto a full/failed queue silently drops it rather than
	// blocking or erroring the caller).
	EventsDropped atomic.Uint64

	// Device-lease sub-protocol activity (C10).
	LeaseGrants  atomic.Uint64
	LeaseRevokes atomic.Uint64

	// Performance tracking for commit latency.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative): bucket[i] counts commits
	// with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // Device open timestamp (UnixNano)
	StopTime  atomic.Int64 // Device close timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommit records one KMS commit (atomic or legacy) and its latency.
func (m *Metrics) RecordCommit(kind kmsKindForMetrics, modeset bool, latencyNs uint64, success bool) {
	switch kind {
	case kmsKindAtomicMetric:
		m.CommitsAtomic.Add(1)
	case kmsKindLegacyMetric:
		m.CommitsLegacy.Add(1)
	}
	if modeset {
		m.ModesetCount.Add(1)
	}
	if !success {
		m.CommitErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordPageFlip records a decoded FLIP_COMPLETE event.
func (m *Metrics) RecordPageFlip() {
	m.PageFlips.Add(1)
}

// RecordAlloc records a buffer allocation attempt.
func (m *Metrics) RecordAlloc(bytes uint64, success bool) {
	m.AllocOps.Add(1)
	if success {
		m.AllocBytes.Add(bytes)
	} else {
		m.AllocErrors.Add(1)
	}
}

// RecordEventDropped records an event pushed onto a full/failed queue.
func (m *Metrics) RecordEventDropped() {
	m.EventsDropped.Add(1)
}

// RecordLeaseGrant records a successful DRM_IOCTL_MODE_CREATE_LEASE.
func (m *Metrics) RecordLeaseGrant() {
	m.LeaseGrants.Add(1)
}

// RecordLeaseRevoke records a lease revocation, by the lessor or the kernel.
func (m *Metrics) RecordLeaseRevoke() {
	m.LeaseRevokes.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the device as closed.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// kmsKindForMetrics avoids metrics.go importing internal/kms purely for a
// two-value enum; Device.wireMetrics translates the backend's kms.Kind
// into this at the call site.
type kmsKindForMetrics int

const (
	kmsKindAtomicMetric kmsKindForMetrics = iota
	kmsKindLegacyMetric
)

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	CommitsAtomic uint64
	CommitsLegacy uint64
	CommitErrors  uint64
	ModesetCount  uint64
	PageFlips     uint64

	AllocOps    uint64
	AllocBytes  uint64
	AllocErrors uint64

	EventsDropped uint64
	LeaseGrants   uint64
	LeaseRevokes  uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalCommits uint64
	CommitRate   float64 // commits per second
	ErrorRate    float64 // percentage of failed commits
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CommitsAtomic: m.CommitsAtomic.Load(),
		CommitsLegacy: m.CommitsLegacy.Load(),
		CommitErrors:  m.CommitErrors.Load(),
		ModesetCount:  m.ModesetCount.Load(),
		PageFlips:     m.PageFlips.Load(),
		AllocOps:      m.AllocOps.Load(),
		AllocBytes:    m.AllocBytes.Load(),
		AllocErrors:   m.AllocErrors.Load(),
		EventsDropped: m.EventsDropped.Load(),
		LeaseGrants:   m.LeaseGrants.Load(),
		LeaseRevokes:  m.LeaseRevokes.Load(),
	}

	snap.TotalCommits = snap.CommitsAtomic + snap.CommitsLegacy

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.CommitRate = float64(snap.TotalCommits) / uptimeSeconds
	}

	if snap.TotalCommits > 0 {
		snap.ErrorRate = float64(snap.CommitErrors) / float64(snap.TotalCommits) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful in tests that build a Device
// against the same fake backend repeatedly.
func (m *Metrics) Reset() {
	m.CommitsAtomic.Store(0)
	m.CommitsLegacy.Store(0)
	m.CommitErrors.Store(0)
	m.ModesetCount.Store(0)
	m.PageFlips.Store(0)
	m.AllocOps.Store(0)
	m.AllocBytes.Store(0)
	m.AllocErrors.Store(0)
	m.EventsDropped.Store(0)
	m.LeaseGrants.Store(0)
	m.LeaseRevokes.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, e.g. a Prometheus exporter
// wired in by the embedding compositor.
type Observer interface {
	ObserveCommit(kind kmsKindForMetrics, modeset bool, latencyNs uint64, success bool)
	ObservePageFlip()
	ObserveAlloc(bytes uint64, success bool)
	ObserveEventDropped()
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommit(kmsKindForMetrics, bool, uint64, bool) {}
func (NoOpObserver) ObservePageFlip()                                   {}
func (NoOpObserver) ObserveAlloc(uint64, bool)                          {}
func (NoOpObserver) ObserveEventDropped()                                {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommit(kind kmsKindForMetrics, modeset bool, latencyNs uint64, success bool) {
	o.metrics.RecordCommit(kind, modeset, latencyNs, success)
}

func (o *MetricsObserver) ObservePageFlip() {
	o.metrics.RecordPageFlip()
}

func (o *MetricsObserver) ObserveAlloc(bytes uint64, success bool) {
	o.metrics.RecordAlloc(bytes, success)
}

func (o *MetricsObserver) ObserveEventDropped() {
	o.metrics.RecordEventDropped()
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
