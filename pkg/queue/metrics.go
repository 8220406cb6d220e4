package queue

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultSampleCap  = 10_000
	defaultHistoryCap = 1_000
)

// utilizationSample is one RecordWorkerUtilization observation.
type utilizationSample struct {
	active, total int
}

// Metrics accumulates counters, rolling processing-time samples, and
// bounded queue-depth/worker-utilization history for one driver. Safe for
// concurrent use — it is the sink a driver's ProcessOne path increments on
// every transition.
type Metrics struct {
	mu sync.Mutex

	startedAt time.Time

	totalQueued           int64
	totalStarted          int64
	totalCompleted        int64
	totalFailed           int64
	totalRetried          int64
	totalTimedOut         int64
	currentlyProcessing   int64
	totalDriverErrors     int64

	queuedByType     map[string]int64
	queuedByPriority map[string]int64
	completedByType  map[string]int64
	failedByType     map[string]int64

	samples    []time.Duration // bounded rolling processing-time samples
	sampleCap  int

	depthHistory       []int
	utilizationHistory []utilizationSample
	historyCap         int
}

// NewMetrics returns a ready-to-use Metrics with default bounds (10,000
// processing-time samples, 1,000 history entries).
func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:        time.Now(),
		queuedByType:     make(map[string]int64),
		queuedByPriority: make(map[string]int64),
		completedByType:  make(map[string]int64),
		failedByType:     make(map[string]int64),
		sampleCap:        defaultSampleCap,
		historyCap:       defaultHistoryCap,
	}
}

func (m *Metrics) JobQueued(typeName string, priority Priority) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalQueued++
	m.queuedByType[typeName]++
	m.queuedByPriority[priority.String()]++
}

func (m *Metrics) JobStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalStarted++
	m.currentlyProcessing++
}

func (m *Metrics) JobCompleted(typeName string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalCompleted++
	m.currentlyProcessing--
	m.completedByType[typeName]++
	m.addSample(duration)
}

// DriverFailure records a connection/backend-level failure that happened
// before a job was ever dequeued (e.g. Redis exhausting its retry budget) —
// distinct from JobFailed, which tracks a dequeued job's own outcome and
// participates in the totalStarted/completed+failed+timedOut+processing
// invariant.
func (m *Metrics) DriverFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDriverErrors++
}

func (m *Metrics) JobFailed(typeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFailed++
	m.currentlyProcessing--
	m.failedByType[typeName]++
}

func (m *Metrics) JobRetried(typeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRetried++
}

func (m *Metrics) JobTimedOut(typeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTimedOut++
	m.currentlyProcessing--
}

func (m *Metrics) RecordQueueDepth(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depthHistory = append(m.depthHistory, n)
	if len(m.depthHistory) > m.historyCap {
		m.depthHistory = m.depthHistory[len(m.depthHistory)-m.historyCap:]
	}
}

func (m *Metrics) RecordWorkerUtilization(active, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utilizationHistory = append(m.utilizationHistory, utilizationSample{active: active, total: total})
	if len(m.utilizationHistory) > m.historyCap {
		m.utilizationHistory = m.utilizationHistory[len(m.utilizationHistory)-m.historyCap:]
	}
}

// Reset zeroes all counters, samples, and history.
func (m *Metrics) Reset() {
	fresh := NewMetrics()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = fresh.startedAt
	m.totalQueued, m.totalStarted, m.totalCompleted, m.totalFailed = 0, 0, 0, 0
	m.totalRetried, m.totalTimedOut, m.currentlyProcessing, m.totalDriverErrors = 0, 0, 0, 0
	m.queuedByType = fresh.queuedByType
	m.queuedByPriority = fresh.queuedByPriority
	m.completedByType = fresh.completedByType
	m.failedByType = fresh.failedByType
	m.samples = nil
	m.depthHistory = nil
	m.utilizationHistory = nil
}

func (m *Metrics) addSample(d time.Duration) {
	m.samples = append(m.samples, d)
	if len(m.samples) > m.sampleCap {
		m.samples = m.samples[len(m.samples)-m.sampleCap:]
	}
}

// ── Derived statistics (call with m.mu held) ──────────────────────────────

func (m *Metrics) successRateLocked() float64 {
	denom := m.totalCompleted + m.totalFailed
	if denom == 0 {
		return 0
	}
	return float64(m.totalCompleted) / float64(denom)
}

func (m *Metrics) failureRateLocked() float64 {
	denom := m.totalCompleted + m.totalFailed
	if denom == 0 {
		return 0
	}
	return float64(m.totalFailed) / float64(denom)
}

func (m *Metrics) timeoutRateLocked() float64 {
	if m.totalStarted == 0 {
		return 0
	}
	return float64(m.totalTimedOut) / float64(m.totalStarted)
}

func sortedSamplesMs(samples []time.Duration) []float64 {
	out := make([]float64, len(samples))
	for i, d := range samples {
		out[i] = float64(d.Microseconds()) / 1000.0
	}
	sort.Float64s(out)
	return out
}

// percentile returns the p-th percentile (0..1) of a pre-sorted slice, or 0
// for an empty set.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
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

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := average(vals)
	var sumSq float64
	for _, v := range vals {
		sumSq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}

// ToMap produces a flat key-value snapshot with stable keys, per spec 4.6.
func (m *Metrics) ToMap() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	msSamples := sortedSamplesMs(m.samples)

	depthSum, depthPeak := 0, 0
	for _, d := range m.depthHistory {
		depthSum += d
		if d > depthPeak {
			depthPeak = d
		}
	}
	avgDepth := 0.0
	if len(m.depthHistory) > 0 {
		avgDepth = float64(depthSum) / float64(len(m.depthHistory))
	}
	currentDepth := 0
	if len(m.depthHistory) > 0 {
		currentDepth = m.depthHistory[len(m.depthHistory)-1]
	}

	var utilSum float64
	peakUtil := 0.0
	currentUtil := 0.0
	for i, u := range m.utilizationHistory {
		ratio := 0.0
		if u.total > 0 {
			ratio = float64(u.active) / float64(u.total)
		}
		utilSum += ratio
		if ratio > peakUtil {
			peakUtil = ratio
		}
		if i == len(m.utilizationHistory)-1 {
			currentUtil = ratio
		}
	}
	avgUtil := 0.0
	if len(m.utilizationHistory) > 0 {
		avgUtil = utilSum / float64(len(m.utilizationHistory))
	}

	uptime := time.Since(m.startedAt).Seconds()
	throughput := 0.0
	if uptime > 0 {
		throughput = float64(m.totalCompleted) / uptime
	}

	return map[string]any{
		"total_queued":             m.totalQueued,
		"total_started":            m.totalStarted,
		"total_completed":          m.totalCompleted,
		"total_failed":             m.totalFailed,
		"total_retried":            m.totalRetried,
		"total_timed_out":          m.totalTimedOut,
		"total_driver_errors":      m.totalDriverErrors,
		"currently_processing":     m.currentlyProcessing,
		"queued_by_type":           copyIntMap(m.queuedByType),
		"queued_by_priority":       copyIntMap(m.queuedByPriority),
		"completed_by_type":        copyIntMap(m.completedByType),
		"failed_by_type":           copyIntMap(m.failedByType),
		"success_rate":             m.successRateLocked(),
		"failure_rate":             m.failureRateLocked(),
		"timeout_rate":             m.timeoutRateLocked(),
		"average_processing_time_ms": average(msSamples),
		"p50_processing_time_ms":   percentile(msSamples, 0.50),
		"p95_processing_time_ms":   percentile(msSamples, 0.95),
		"p99_processing_time_ms":   percentile(msSamples, 0.99),
		"p999_processing_time_ms":  percentile(msSamples, 0.999),
		"min_processing_time_ms":   minOf(msSamples),
		"max_processing_time_ms":   maxOf(msSamples),
		"stddev_processing_time_ms": stddev(msSamples),
		"throughput":               throughput,
		"average_queue_depth":      avgDepth,
		"peak_queue_depth":         depthPeak,
		"current_queue_depth":      currentDepth,
		"average_worker_utilization": avgUtil,
		"peak_worker_utilization":    peakUtil,
		"current_worker_utilization": currentUtil,
	}
}

func copyIntMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func minOf(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[0]
}

func maxOf(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1]
}

// ToPrometheus emits standard `# HELP`/`# TYPE` Prometheus text exposition
// lines for the current snapshot, all named "<prefix>_...". It builds
// transient prometheus.Collector values rather than keeping long-lived
// registered metrics, since Metrics itself (not a global registry) owns the
// counters — this mirrors the teacher's pkg/metrics use of client_golang for
// the shape of the text format while letting Metrics remain the source of
// truth for values.
func (m *Metrics) ToPrometheus(prefix string) string {
	if prefix == "" {
		prefix = "queue"
	}
	snap := m.ToMap()

	var b strings.Builder
	writeCounter := func(name, help string, key string) {
		fmt.Fprintf(&b, "# HELP %s_%s %s\n# TYPE %s_%s counter\n%s_%s %v\n",
			prefix, name, help, prefix, name, prefix, name, snap[key])
	}
	writeGauge := func(name, help string, key string) {
		fmt.Fprintf(&b, "# HELP %s_%s %s\n# TYPE %s_%s gauge\n%s_%s %v\n",
			prefix, name, help, prefix, name, prefix, name, snap[key])
	}

	writeCounter("total_queued", "Total jobs enqueued.", "total_queued")
	writeCounter("total_completed", "Total jobs completed successfully.", "total_completed")
	writeCounter("total_failed", "Total jobs dead-lettered.", "total_failed")

	writeGauge("currently_processing", "Jobs currently being processed.", "currently_processing")
	writeGauge("throughput", "Completed jobs per second of uptime.", "throughput")
	writeGauge("queue_depth", "Current queue depth.", "current_queue_depth")
	writeGauge("worker_utilization", "Current fraction of workers active.", "current_worker_utilization")

	fmt.Fprintf(&b, "# HELP %s_processing_time_seconds Job processing time.\n# TYPE %s_processing_time_seconds summary\n",
		prefix, prefix)
	for _, q := range []struct {
		label string
		key   string
	}{
		{"0.5", "p50_processing_time_ms"},
		{"0.95", "p95_processing_time_ms"},
		{"0.99", "p99_processing_time_ms"},
	} {
		ms, _ := snap[q.key].(float64)
		fmt.Fprintf(&b, "%s_processing_time_seconds{quantile=\"%s\"} %v\n", prefix, q.label, ms/1000.0)
	}

	return b.String()
}

// ── prometheus.Collector ───────────────────────────────────────────────────
//
// Metrics also implements prometheus.Collector directly, so a caller with its
// own registry (outside this module's CLI) can register it alongside other
// application metrics rather than scraping ToPrometheus text.

var (
	descTotalQueued    = prometheus.NewDesc("queue_jobs_queued_total", "Total jobs enqueued.", nil, nil)
	descTotalCompleted = prometheus.NewDesc("queue_jobs_completed_total", "Total jobs completed successfully.", nil, nil)
	descTotalFailed    = prometheus.NewDesc("queue_jobs_failed_total", "Total jobs dead-lettered.", nil, nil)
	descTotalRetried   = prometheus.NewDesc("queue_jobs_retried_total", "Total retry attempts scheduled.", nil, nil)
	descProcessing     = prometheus.NewDesc("queue_jobs_processing", "Jobs currently being processed.", nil, nil)
	descQueueDepth     = prometheus.NewDesc("queue_depth", "Most recently recorded queue depth.", nil, nil)
	descUtilization    = prometheus.NewDesc("queue_worker_utilization", "Most recently recorded fraction of workers active.", nil, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTotalQueued
	ch <- descTotalCompleted
	ch <- descTotalFailed
	ch <- descTotalRetried
	ch <- descProcessing
	ch <- descQueueDepth
	ch <- descUtilization
}

// Collect implements prometheus.Collector, emitting the same counters as
// ToPrometheus but as typed prometheus.Metric values for a caller's own
// registry.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.ToMap()
	ch <- prometheus.MustNewConstMetric(descTotalQueued, prometheus.CounterValue, float64(snap["total_queued"].(int64)))
	ch <- prometheus.MustNewConstMetric(descTotalCompleted, prometheus.CounterValue, float64(snap["total_completed"].(int64)))
	ch <- prometheus.MustNewConstMetric(descTotalFailed, prometheus.CounterValue, float64(snap["total_failed"].(int64)))
	ch <- prometheus.MustNewConstMetric(descTotalRetried, prometheus.CounterValue, float64(snap["total_retried"].(int64)))
	ch <- prometheus.MustNewConstMetric(descProcessing, prometheus.GaugeValue, float64(snap["currently_processing"].(int64)))
	ch <- prometheus.MustNewConstMetric(descQueueDepth, prometheus.GaugeValue, float64(snap["current_queue_depth"].(int)))
	ch <- prometheus.MustNewConstMetric(descUtilization, prometheus.GaugeValue, snap["current_worker_utilization"].(float64))
}
