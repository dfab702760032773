package drmoutput

import (
	"testing"
	"time"
)

func TestMetricsRecordCommit(t *testing.T) {
	m := NewMetrics()

	m.RecordCommit(kmsKindAtomicMetric, true, 1_000_000, true)
	m.RecordCommit(kmsKindAtomicMetric, false, 2_000_000, true)
	m.RecordCommit(kmsKindLegacyMetric, false, 500_000, false)

	snap := m.Snapshot()

	if snap.CommitsAtomic != 2 {
		t.Errorf("CommitsAtomic = %d, want 2", snap.CommitsAtomic)
	}
	if snap.CommitsLegacy != 1 {
		t.Errorf("CommitsLegacy = %d, want 1", snap.CommitsLegacy)
	}
	if snap.ModesetCount != 1 {
		t.Errorf("ModesetCount = %d, want 1", snap.ModesetCount)
	}
	if snap.CommitErrors != 1 {
		t.Errorf("CommitErrors = %d, want 1", snap.CommitErrors)
	}
	if snap.TotalCommits != 3 {
		t.Errorf("TotalCommits = %d, want 3", snap.TotalCommits)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("ErrorRate = %.2f, want ~%.2f", snap.ErrorRate, expectedErrorRate)
	}
}

func TestMetricsRecordPageFlipAndAlloc(t *testing.T) {
	m := NewMetrics()

	m.RecordPageFlip()
	m.RecordPageFlip()
	m.RecordAlloc(4096, true)
	m.RecordAlloc(0, false)

	snap := m.Snapshot()

	if snap.PageFlips != 2 {
		t.Errorf("PageFlips = %d, want 2", snap.PageFlips)
	}
	if snap.AllocOps != 2 {
		t.Errorf("AllocOps = %d, want 2", snap.AllocOps)
	}
	if snap.AllocBytes != 4096 {
		t.Errorf("AllocBytes = %d, want 4096", snap.AllocBytes)
	}
	if snap.AllocErrors != 1 {
		t.Errorf("AllocErrors = %d, want 1", snap.AllocErrors)
	}
}

func TestMetricsLeaseAndEventCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordLeaseGrant()
	m.RecordLeaseGrant()
	m.RecordLeaseRevoke()
	m.RecordEventDropped()

	snap := m.Snapshot()

	if snap.LeaseGrants != 2 {
		t.Errorf("LeaseGrants = %d, want 2", snap.LeaseGrants)
	}
	if snap.LeaseRevokes != 1 {
		t.Errorf("LeaseRevokes = %d, want 1", snap.LeaseRevokes)
	}
	if snap.EventsDropped != 1 {
		t.Errorf("EventsDropped = %d, want 1", snap.EventsDropped)
	}
}

func TestMetricsAverageLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordCommit(kmsKindAtomicMetric, false, 1_000_000, true)
	m.RecordCommit(kmsKindAtomicMetric, false, 2_000_000, true)

	snap := m.Snapshot()

	want := uint64(1_500_000)
	if snap.AvgLatencyNs != want {
		t.Errorf("AvgLatencyNs = %d, want %d", snap.AvgLatencyNs, want)
	}
}

func TestMetricsUptimeStopsAfterStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("UptimeNs = %d, want >= 10ms", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 {
		t.Errorf("uptime grew after Stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordCommit(kmsKindAtomicMetric, true, 1_000_000, true)
	m.RecordPageFlip()
	m.RecordAlloc(1024, true)
	m.RecordLeaseGrant()

	if snap := m.Snapshot(); snap.TotalCommits == 0 {
		t.Fatal("expected recorded commits before reset")
	}

	m.Reset()

	snap := m.Snapshot()
	if snap.TotalCommits != 0 || snap.PageFlips != 0 || snap.AllocBytes != 0 || snap.LeaseGrants != 0 {
		t.Errorf("Reset did not clear counters: %+v", snap)
	}
}

func TestObserverNoOpDoesNotPanic(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveCommit(kmsKindAtomicMetric, false, 1000, true)
	o.ObservePageFlip()
	o.ObserveAlloc(1024, true)
	o.ObserveEventDropped()
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveCommit(kmsKindAtomicMetric, false, 1_000_000, true)
	o.ObservePageFlip()
	o.ObserveAlloc(2048, true)
	o.ObserveEventDropped()

	snap := m.Snapshot()
	if snap.CommitsAtomic != 1 {
		t.Errorf("CommitsAtomic = %d, want 1", snap.CommitsAtomic)
	}
	if snap.PageFlips != 1 {
		t.Errorf("PageFlips = %d, want 1", snap.PageFlips)
	}
	if snap.AllocBytes != 2048 {
		t.Errorf("AllocBytes = %d, want 2048", snap.AllocBytes)
	}
	if snap.EventsDropped != 1 {
		t.Errorf("EventsDropped = %d, want 1", snap.EventsDropped)
	}
}

func TestMetricsLatencyPercentiles(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordCommit(kmsKindAtomicMetric, false, 500_000, true)
	}
	for i := 0; i < 49; i++ {
		m.RecordCommit(kmsKindAtomicMetric, false, 5_000_000, true)
	}
	m.RecordCommit(kmsKindAtomicMetric, false, 50_000_000, true)

	snap := m.Snapshot()

	if snap.TotalCommits != 100 {
		t.Fatalf("TotalCommits = %d, want 100", snap.TotalCommits)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("LatencyP50Ns = %d, want in [100us, 1ms]", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 4_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("LatencyP99Ns = %d, want in [4ms, 100ms]", snap.LatencyP99Ns)
	}

	var totalInBuckets uint64
	for _, c := range snap.LatencyHistogram {
		totalInBuckets += c
	}
	if totalInBuckets == 0 {
		t.Error("expected histogram buckets to be populated")
	}
}
