// Package aggregator implements C10: folding per-request result events
// into periodic progress snapshots, a terminal summary, and a
// per-second time series.
//
// Follows the shape of github.com/georgi-georgiev/testmesh's
// loadtest.calculateResponseTimeMetrics and percentile helpers
// (internal/loadtest/load_tester.go) for the *shape* of the result
// (min/mean/p50/p95/p99/max), but the arithmetic is delegated to
// github.com/HdrHistogram/hdrhistogram-go, which keeps a bounded-memory
// representation of the full latency distribution regardless of sample
// count. The histogram holds three significant digits: latencies up to
// 2047 ms are recorded at 1 ms resolution, larger ones to within about
// 0.1%, so summary percentiles are approximate above that range. A
// latency above histMax (10 minutes) is not recorded in the histogram
// at all and is absent from p50/p95/p99, while still counting toward
// the totals, min, max and mean. The streaming p95_ms on every progress tick uses the hand-rolled P²
// estimator in p2.go instead, since recomputing a histogram quantile on
// every result would defeat the point of a lock-light hot path.
package aggregator

import (
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/Rixmerz/rmeter/internal/pipeline"
)

const (
	histMin    = 1
	histMax    = 10 * 60 * 1000 // 10 minutes, in ms
	histSigFig = 3

	rpsHorizon = 2 * time.Second
)

// ProgressSnapshot is the periodic progress record published while a
// run is active.
type ProgressSnapshot struct {
	CompletedRequests int64
	TotalErrors       int64
	ActiveVUs         int
	ElapsedMs         int64
	CurrentRPS        float64
	MeanMs            float64
	P95Ms             float64
	MinMs             int64
	MaxMs             int64
}

// Summary is the terminal summary record published once a run finishes.
type Summary struct {
	RunID              string
	PlanID             string
	PlanName           string
	StartedAt          time.Time
	FinishedAt         time.Time
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	MinMs              int64
	MeanMs             float64
	P50Ms              int64
	P95Ms              int64
	P99Ms              int64
	MaxMs              int64
	AvgRPS             float64
	TotalBytes         int64
}

// Bucket is one entry of the per-second time series kept for post-hoc
// charting.
type Bucket struct {
	Second   int64
	Requests int64
	Errors   int64
	AvgMs    float64
	MinMs    int64
	MaxMs    int64
}

// Aggregator accumulates result events for one run. Safe for
// concurrent use: VUs across every thread-group call Record from their
// own goroutines.
type Aggregator struct {
	mu sync.Mutex

	startedAt time.Time
	hist      *hdrhistogram.Histogram
	p95       *p2Estimator

	completed  int64
	errors     int64
	minMs      int64
	maxMs      int64
	sumMs      int64
	totalBytes int64

	lastEventAt time.Time
	rpsEWMA     float64

	buckets []Bucket

	activeVUs func() int
}

// New starts a fresh Aggregator for a run beginning at startedAt.
// activeVUs is consulted on every Progress() call to read live VU
// count from the controller.
func New(startedAt time.Time, activeVUs func() int) *Aggregator {
	return &Aggregator{
		startedAt: startedAt,
		hist:      hdrhistogram.New(histMin, histMax, histSigFig),
		p95:       newP2(0.95),
		activeVUs: activeVUs,
	}
}

// Record folds one pipeline result into the running aggregates.
func (a *Aggregator) Record(result pipeline.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := result.ElapsedMs
	a.hist.RecordValue(elapsed)
	a.p95.Add(float64(elapsed))
	mirrorToPrometheus(elapsed)

	a.completed++
	if result.Err != "" || !result.AssertionsPassed {
		a.errors++
	}
	if a.completed == 1 || elapsed < a.minMs {
		a.minMs = elapsed
	}
	if elapsed > a.maxMs {
		a.maxMs = elapsed
	}
	a.sumMs += elapsed
	a.totalBytes += result.SizeBytes

	now := time.Now()
	if !a.lastEventAt.IsZero() {
		dt := now.Sub(a.lastEventAt).Seconds()
		if dt > 0 {
			instantRate := 1.0 / dt
			alpha := 1 - math.Exp(-dt/rpsHorizon.Seconds())
			a.rpsEWMA += alpha * (instantRate - a.rpsEWMA)
		}
	}
	a.lastEventAt = now

	a.recordBucket(now, elapsed, result.Err != "" || !result.AssertionsPassed)
}

func (a *Aggregator) recordBucket(now time.Time, elapsedMs int64, isError bool) {
	second := int64(now.Sub(a.startedAt).Seconds())
	if second < 0 {
		second = 0
	}
	for int64(len(a.buckets)) <= second {
		a.buckets = append(a.buckets, Bucket{Second: int64(len(a.buckets)), MinMs: -1})
	}

	b := &a.buckets[second]
	if isError {
		b.Errors++
	}
	sum := b.AvgMs * float64(b.Requests)
	b.Requests++
	sum += float64(elapsedMs)
	b.AvgMs = sum / float64(b.Requests)
	if b.MinMs < 0 || elapsedMs < b.MinMs {
		b.MinMs = elapsedMs
	}
	if elapsedMs > b.MaxMs {
		b.MaxMs = elapsedMs
	}
}

// Progress returns a snapshot of the aggregates collected so far.
func (a *Aggregator) Progress() ProgressSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var mean float64
	if a.completed > 0 {
		mean = float64(a.sumMs) / float64(a.completed)
	}

	active := 0
	if a.activeVUs != nil {
		active = a.activeVUs()
	}
	activeVUsGauge.Set(float64(active))

	return ProgressSnapshot{
		CompletedRequests: a.completed,
		TotalErrors:       a.errors,
		ActiveVUs:         active,
		ElapsedMs:         time.Since(a.startedAt).Milliseconds(),
		CurrentRPS:        a.rpsEWMA,
		MeanMs:            mean,
		P95Ms:             a.p95.Value(),
		MinMs:             a.minMs,
		MaxMs:             a.maxMs,
	}
}

// Summary returns the terminal summary, taking p50/p95/p99 from the
// histogram (exact up to 2047 ms, three significant digits beyond).
func (a *Aggregator) Summary(runID, planID, planName string, finishedAt time.Time) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	var mean float64
	if a.completed > 0 {
		mean = float64(a.sumMs) / float64(a.completed)
	}

	wallSeconds := finishedAt.Sub(a.startedAt).Seconds()
	var avgRPS float64
	if wallSeconds > 0 {
		avgRPS = float64(a.completed) / wallSeconds
	}

	return Summary{
		RunID:              runID,
		PlanID:             planID,
		PlanName:           planName,
		StartedAt:          a.startedAt,
		FinishedAt:         finishedAt,
		TotalRequests:      a.completed,
		SuccessfulRequests: a.completed - a.errors,
		FailedRequests:     a.errors,
		MinMs:              a.minMs,
		MeanMs:             mean,
		P50Ms:              a.hist.ValueAtQuantile(50),
		P95Ms:              a.hist.ValueAtQuantile(95),
		P99Ms:              a.hist.ValueAtQuantile(99),
		MaxMs:              a.maxMs,
		AvgRPS:             avgRPS,
		TotalBytes:         a.totalBytes,
	}
}

// TimeSeries returns the per-second buckets accumulated so far.
func (a *Aggregator) TimeSeries() []Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Bucket, len(a.buckets))
	copy(out, a.buckets)
	return out
}
