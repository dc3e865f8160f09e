package summary

import (
	"fmt"
	"math"
)

// bucketDef is one histogram bucket, identified by its inclusive upper
// bound. Buckets are contiguous: a value lands in the first bucket whose
// bound it does not exceed, so nothing is dropped or double-counted.
type bucketDef struct {
	label string
	max   float64
}

var coarseBuckets = []bucketDef{
	{"0-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"91-120", 120},
	{"121+", math.Inf(1)},
}

var driftBuckets = []bucketDef{
	{"0-2", 2},
	{"3-5", 5},
	{"6-10", 10},
	{"11+", math.Inf(1)},
}

// fineBuckets covers 15-minute steps up to three hours, then open-ended.
var fineBuckets = makeFineBuckets()

func makeFineBuckets() []bucketDef {
	var out []bucketDef
	for lo := 0; lo < 180; lo += 15 {
		label := fmt.Sprintf("%d-%d", lo, lo+15)
		if lo > 0 {
			label = fmt.Sprintf("%d-%d", lo+1, lo+15)
		}
		out = append(out, bucketDef{label, float64(lo + 15)})
	}
	out = append(out, bucketDef{"181+", math.Inf(1)})
	return out
}

func bucketIndex(v float64, buckets []bucketDef) int {
	for i, b := range buckets {
		if v <= b.max {
			return i
		}
	}
	return len(buckets) - 1
}

func buildHistogram(vals []float64, buckets []bucketDef) []HistogramBucket {
	out := make([]HistogramBucket, len(buckets))
	for i, b := range buckets {
		out[i].Bucket = b.label
	}
	for _, v := range vals {
		out[bucketIndex(v, buckets)].Count++
	}
	return out
}

func bucketLabels(buckets []bucketDef) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.label
	}
	return out
}

// mean of the empty set is 0, never NaN.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// percentile linearly interpolates over sorted values; p in [0,1].
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
