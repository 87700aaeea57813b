package server

import (
	"sync"
	"time"

	"github.com/tracktitans/layoutrt/train"
)

// Rolling-window KPI tracking: occupied blocks, running trains, and the
// restart-timer backlog, snapshotted on a fixed interval.
const (
	snapshotInterval  = 60 * time.Second
	maxSnapshots      = 1440 // 24h at one-minute resolution
	historicalDefault = 60 * time.Minute
)

type kpiSnapshot struct {
	ts            time.Time
	trainsTotal   int
	trainsRunning int
	blocksTotal   int
	blocksOccupied int
	utilization   float64
	timerBacklog  int
}

type metricsState struct {
	mu        sync.RWMutex
	snapshots []kpiSnapshot
}

var metrics = &metricsState{}

func takeSnapshot() {
	if rt == nil {
		return
	}
	trains := rt.Trains()
	blocks := rt.Graph.Blocks()

	occupied := make(map[string]bool, len(trains))
	running := 0
	for _, tr := range trains {
		if tr.BlockID != "" {
			occupied[tr.BlockID] = true
		}
		if tr.State == train.StateRunning {
			running++
		}
	}

	util := 0.0
	if len(blocks) > 0 {
		util = float64(len(occupied)) * 100.0 / float64(len(blocks))
	}

	snap := kpiSnapshot{
		ts:             time.Now().UTC(),
		trainsTotal:    len(trains),
		trainsRunning:  running,
		blocksTotal:    len(blocks),
		blocksOccupied: len(occupied),
		utilization:    util,
		timerBacklog:   rt.TimerBacklog(),
	}

	metrics.mu.Lock()
	metrics.snapshots = append(metrics.snapshots, snap)
	if len(metrics.snapshots) > maxSnapshots {
		metrics.snapshots = metrics.snapshots[len(metrics.snapshots)-maxSnapshots:]
	}
	metrics.mu.Unlock()
}

func startMetricsTicker() {
	go func() {
		ticker := time.NewTicker(snapshotInterval)
		for range ticker.C {
			takeSnapshot()
		}
	}()
}

func latestSnapshot() kpiSnapshot {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	if len(metrics.snapshots) == 0 {
		return kpiSnapshot{ts: time.Now().UTC()}
	}
	return metrics.snapshots[len(metrics.snapshots)-1]
}

// historicalSnapshots returns every snapshot taken within the last window,
// oldest first.
func historicalSnapshots(window time.Duration) []kpiSnapshot {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-window)
	out := make([]kpiSnapshot, 0, len(metrics.snapshots))
	for _, s := range metrics.snapshots {
		if s.ts.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// peakUtilization reports the highest utilization seen within window,
// sorted snapshots are not required since we scan the whole slice.
func peakUtilization(window time.Duration) float64 {
	snaps := historicalSnapshots(window)
	peak := 0.0
	for _, s := range snaps {
		if s.utilization > peak {
			peak = s.utilization
		}
	}
	return peak
}
