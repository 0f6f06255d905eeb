package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	sweepRunsTotal       atomic.Uint64
	sweepRunsFailedTotal atomic.Uint64
	sweepCandidatesTotal atomic.Uint64
	sweepRemovedTotal    atomic.Uint64
	sweepPendingTotal    atomic.Uint64
	sweepSkippedTotal    atomic.Uint64
	sweepFailedTotal     atomic.Uint64

	reconcileRunsTotal       atomic.Uint64
	reconcileRunsFailedTotal atomic.Uint64
	reconcileListedTotal     atomic.Uint64
	reconcileRetainedTotal   atomic.Uint64
	reconcileDeletedTotal    atomic.Uint64
	reconcileFailedTotal     atomic.Uint64

	triggersReceivedTotal atomic.Uint64

	jobDuration = newHistogram([]float64{100, 250, 500, 1000, 5000, 15000, 60000, 300000, 900000})
)

// SweepCounts is the per-run tally recorded after a sweep.
type SweepCounts struct {
	Candidates int
	Removed    int
	Pending    int
	Skipped    int
	Failed     int
}

// ReconcileCounts is the per-run tally recorded after a reconcile.
type ReconcileCounts struct {
	Listed   int
	Retained int
	Deleted  int
	Failed   int
}

// ObserveSweep records the outcome counters of one sweep run.
func ObserveSweep(c SweepCounts) {
	sweepRunsTotal.Add(1)
	sweepCandidatesTotal.Add(uint64(nonNegative(c.Candidates)))
	sweepRemovedTotal.Add(uint64(nonNegative(c.Removed)))
	sweepPendingTotal.Add(uint64(nonNegative(c.Pending)))
	sweepSkippedTotal.Add(uint64(nonNegative(c.Skipped)))
	sweepFailedTotal.Add(uint64(nonNegative(c.Failed)))
}

// IncSweepRunFailed increments the aborted sweep counter.
func IncSweepRunFailed() {
	sweepRunsFailedTotal.Add(1)
}

// ObserveReconcile records the outcome counters of one reconcile run.
func ObserveReconcile(c ReconcileCounts) {
	reconcileRunsTotal.Add(1)
	reconcileListedTotal.Add(uint64(nonNegative(c.Listed)))
	reconcileRetainedTotal.Add(uint64(nonNegative(c.Retained)))
	reconcileDeletedTotal.Add(uint64(nonNegative(c.Deleted)))
	reconcileFailedTotal.Add(uint64(nonNegative(c.Failed)))
}

// IncReconcileRunFailed increments the aborted reconcile counter.
func IncReconcileRunFailed() {
	reconcileRunsFailedTotal.Add(1)
}

// IncTriggersReceived increments the queue trigger counter.
func IncTriggersReceived() {
	triggersReceivedTotal.Add(1)
}

// ObserveJobDurationMs records a job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "sweep_runs_total", "Total attachment sweep runs completed", sweepRunsTotal.Load())
	writeCounter(&buf, "sweep_runs_failed_total", "Total attachment sweep runs aborted", sweepRunsFailedTotal.Load())
	writeCounter(&buf, "sweep_candidates_total", "Uncommitted attachments evaluated", sweepCandidatesTotal.Load())
	writeCounter(&buf, "sweep_removed_total", "Orphaned attachments removed", sweepRemovedTotal.Load())
	writeCounter(&buf, "sweep_pending_total", "Candidates kept because their update is still staged", sweepPendingTotal.Load())
	writeCounter(&buf, "sweep_skipped_total", "Candidates skipped for lack of a removal strategy", sweepSkippedTotal.Load())
	writeCounter(&buf, "sweep_failed_total", "Candidates whose evaluation or removal failed", sweepFailedTotal.Load())
	writeCounter(&buf, "reconcile_runs_total", "Total audit asset reconcile runs completed", reconcileRunsTotal.Load())
	writeCounter(&buf, "reconcile_runs_failed_total", "Total audit asset reconcile runs aborted", reconcileRunsFailedTotal.Load())
	writeCounter(&buf, "reconcile_listed_total", "Blobs enumerated by reconcile", reconcileListedTotal.Load())
	writeCounter(&buf, "reconcile_retained_total", "Blobs kept by reconcile", reconcileRetainedTotal.Load())
	writeCounter(&buf, "reconcile_deleted_total", "Surplus blobs deleted by reconcile", reconcileDeletedTotal.Load())
	writeCounter(&buf, "reconcile_failed_total", "Surplus blob deletions that failed", reconcileFailedTotal.Load())
	writeCounter(&buf, "janitor_triggers_received_total", "Queue trigger messages received", triggersReceivedTotal.Load())
	writeHistogram(&buf, "janitor_job_duration_ms", "Job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe places value in the first bucket whose bound admits it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
