package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Rixmerz/rmeter/internal/pipeline"
)

func TestRecordAccumulatesCountersAndExtremes(t *testing.T) {
	a := New(time.Now(), func() int { return 3 })

	a.Record(pipeline.Result{ElapsedMs: 100, AssertionsPassed: true})
	a.Record(pipeline.Result{ElapsedMs: 50, AssertionsPassed: true})
	a.Record(pipeline.Result{ElapsedMs: 200, Err: "timeout"})

	p := a.Progress()
	assert.EqualValues(t, 3, p.CompletedRequests)
	assert.EqualValues(t, 1, p.TotalErrors)
	assert.Equal(t, 3, p.ActiveVUs)
	assert.Equal(t, int64(50), p.MinMs)
	assert.Equal(t, int64(200), p.MaxMs)
	assert.InDelta(t, 116.67, p.MeanMs, 0.01)
}

func TestRecordCountsFailedAssertionsAsErrors(t *testing.T) {
	a := New(time.Now(), nil)
	a.Record(pipeline.Result{ElapsedMs: 10, AssertionsPassed: false})

	p := a.Progress()
	assert.EqualValues(t, 1, p.TotalErrors)
}

func TestProgressActiveVUsNilFuncDefaultsToZero(t *testing.T) {
	a := New(time.Now(), nil)
	assert.Equal(t, 0, a.Progress().ActiveVUs)
}

func TestSummaryUsesExactHistogramPercentiles(t *testing.T) {
	start := time.Now().Add(-time.Second)
	a := New(start, nil)

	for _, ms := range []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100} {
		a.Record(pipeline.Result{ElapsedMs: ms, AssertionsPassed: true})
	}

	s := a.Summary("run-1", "plan-1", "Smoke Test", start.Add(time.Second))
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "plan-1", s.PlanID)
	assert.Equal(t, "Smoke Test", s.PlanName)
	assert.EqualValues(t, 10, s.TotalRequests)
	assert.EqualValues(t, 10, s.SuccessfulRequests)
	assert.EqualValues(t, 0, s.FailedRequests)
	assert.Equal(t, int64(10), s.MinMs)
	assert.Equal(t, int64(100), s.MaxMs)
	assert.Equal(t, int64(50), s.P50Ms)
	assert.Equal(t, int64(100), s.P95Ms)
	assert.Equal(t, int64(100), s.P99Ms)
	assert.Greater(t, s.AvgRPS, 0.0)
}

func TestSummaryTotalBytesSumsSizeBytesNotTruncatedBody(t *testing.T) {
	start := time.Now()
	a := New(start, nil)

	// Body is truncated to httpdispatch.MaxBodyOnResult while SizeBytes
	// carries the real response size; TotalBytes must reflect the latter.
	a.Record(pipeline.Result{ElapsedMs: 10, Body: []byte("short"), SizeBytes: 1 << 20, AssertionsPassed: true})
	a.Record(pipeline.Result{ElapsedMs: 10, Body: []byte("short"), SizeBytes: 2048, AssertionsPassed: true})

	s := a.Summary("r", "p", "n", start)
	assert.EqualValues(t, (1<<20)+2048, s.TotalBytes)
}

func TestSummarySeparatesSuccessfulFromFailed(t *testing.T) {
	start := time.Now()
	a := New(start, nil)
	a.Record(pipeline.Result{ElapsedMs: 10, AssertionsPassed: true})
	a.Record(pipeline.Result{ElapsedMs: 10, Err: "boom"})

	s := a.Summary("r", "p", "n", start)
	assert.EqualValues(t, 2, s.TotalRequests)
	assert.EqualValues(t, 1, s.SuccessfulRequests)
	assert.EqualValues(t, 1, s.FailedRequests)
}

func TestTimeSeriesBucketsBySecondSinceStart(t *testing.T) {
	start := time.Now().Add(-2 * time.Second)
	a := New(start, nil)
	a.recordBucket(start, 10, false)
	a.recordBucket(start.Add(1500*time.Millisecond), 20, true)

	buckets := a.TimeSeries()
	if assert.GreaterOrEqual(t, len(buckets), 2) {
		assert.EqualValues(t, 0, buckets[0].Second)
		assert.EqualValues(t, 1, buckets[1].Requests)
		assert.EqualValues(t, 1, buckets[1].Errors)
	}
}

func TestTimeSeriesReturnsACopy(t *testing.T) {
	a := New(time.Now(), nil)
	a.Record(pipeline.Result{ElapsedMs: 5, AssertionsPassed: true})

	out := a.TimeSeries()
	out[0].Requests = 999

	again := a.TimeSeries()
	assert.NotEqual(t, int64(999), again[0].Requests)
}
