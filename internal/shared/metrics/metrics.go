package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	generationStartedTotal   atomic.Uint64
	generationSucceededTotal atomic.Uint64
	generationFailedTotal    atomic.Uint64
	generationTimedOutTotal  atomic.Uint64
	generationCanceledTotal  atomic.Uint64
	jobsReceivedTotal        atomic.Uint64
	jobsCompletedTotal       atomic.Uint64
	jobsFailedTotal          atomic.Uint64
	jobsDroppedTotal         atomic.Uint64
	ledgerReconcileTotal     atomic.Uint64

	generationDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncGenerationStarted increments the started counter.
func IncGenerationStarted() {
	generationStartedTotal.Add(1)
}

// IncGenerationSucceeded increments the succeeded counter.
func IncGenerationSucceeded() {
	generationSucceededTotal.Add(1)
}

// IncGenerationFailed increments the failed counter.
func IncGenerationFailed() {
	generationFailedTotal.Add(1)
}

// IncGenerationTimedOut increments the timed-out counter.
func IncGenerationTimedOut() {
	generationTimedOutTotal.Add(1)
}

// IncGenerationCanceled increments the canceled counter.
func IncGenerationCanceled() {
	generationCanceledTotal.Add(1)
}

// IncJobsReceived increments the queue messages received counter.
func IncJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobsCompleted increments the queue messages completed counter.
func IncJobsCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobsFailed increments the queue messages failed counter.
func IncJobsFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobsDeletedUnrecoverable counts malformed messages dropped without retry.
func IncJobsDeletedUnrecoverable() {
	jobsDroppedTotal.Add(1)
}

// IncLedgerReconcileRequired counts debits that failed after a successful job
// and need manual reconciliation.
func IncLedgerReconcileRequired() {
	ledgerReconcileTotal.Add(1)
}

// ObserveGenerationDurationMs records a generation duration in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
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
	writeCounter(&buf, "generation_started_total", "Total generation jobs started", generationStartedTotal.Load())
	writeCounter(&buf, "generation_succeeded_total", "Total generation jobs succeeded", generationSucceededTotal.Load())
	writeCounter(&buf, "generation_failed_total", "Total generation jobs failed", generationFailedTotal.Load())
	writeCounter(&buf, "generation_timed_out_total", "Total generation jobs failed by the running-duration limit", generationTimedOutTotal.Load())
	writeCounter(&buf, "generation_canceled_total", "Total generation jobs canceled", generationCanceledTotal.Load())
	writeCounter(&buf, "generation_jobs_received_total", "Total queue messages received by workers", jobsReceivedTotal.Load())
	writeCounter(&buf, "generation_jobs_completed_total", "Total queue messages processed and deleted", jobsCompletedTotal.Load())
	writeCounter(&buf, "generation_jobs_failed_total", "Total queue messages whose processing failed", jobsFailedTotal.Load())
	writeCounter(&buf, "generation_jobs_deleted_unrecoverable_total", "Total malformed queue messages dropped", jobsDroppedTotal.Load())
	writeCounter(&buf, "ledger_reconcile_required_total", "Total post-success debits requiring manual reconciliation", ledgerReconcileTotal.Load())
	writeHistogram(&buf, "generation_duration_ms", "Generation duration in milliseconds", generationDuration.Snapshot())
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

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
