// Package summary derives the aggregate operational picture from a
// normalized tape set. Every function here is a pure computation over its
// inputs and the single now it is handed; recomputing with the same inputs
// reproduces the same report.
package summary

import (
	"fmt"
	"math"
	"sort"
	"time"

	"vhsops/internal/tape"
)

const (
	dailyWindowDays    = 30
	densityWindowWeeks = 12
	sequenceTop        = 12
	issueTagTop        = 8
	recentFeedSize     = 30
)

// Build computes the full report. stageNames is the configured pipeline
// stage list; the synthetic Blocked row is appended if not already present.
func Build(tapes []tape.Tape, stageNames []string, now time.Time) Report {
	r := Report{
		GeneratedAt: now,
		Tapes:       tapes,
	}

	r.StageCounts = buildStageCounts(tapes, stageNames)
	r.Kpis = buildKpis(tapes, now)

	r.ReceivedDaily = buildDaily(tapes, now, func(t *tape.Tape) *time.Time { return t.ReceivedDate })
	r.CompletedDaily = buildDaily(tapes, now, func(t *tape.Tape) *time.Time {
		if t.Stage != tape.StageArchived {
			return nil
		}
		return t.CompletedDate
	})
	r.AcquisitionDaily = buildDaily(tapes, now, func(t *tape.Tape) *time.Time { return t.AcquisitionAt })
	r.CapturedDaily = buildDaily(tapes, now, func(t *tape.Tape) *time.Time { return t.CapturedAt })
	r.ContentRecordedDaily = buildDaily(tapes, now, func(t *tape.Tape) *time.Time { return t.ContentRecordedAt })

	r.CapturedDateCoveragePercent = coveragePercent(tapes, func(t *tape.Tape) bool { return t.CapturedAt != nil })
	r.ContentRecordedCoveragePercent = coveragePercent(tapes, func(t *tape.Tape) bool { return t.ContentRecordedAt != nil })

	r.BacklogTrend = buildBacklogTrend(tapes, now)

	r.RuntimeHistograms = RuntimeHistograms{
		LabelRuntime: buildHistogram(collect(tapes, func(t *tape.Tape) *float64 { return t.LabelRuntimeMinutes }), coarseBuckets),
		QTRuntime:    buildHistogram(collect(tapes, func(t *tape.Tape) *float64 { return t.QTRuntimeMinutes }), coarseBuckets),
		FinalRuntime: buildHistogram(collect(tapes, func(t *tape.Tape) *float64 { return t.FinalClipDurationMinutes }), coarseBuckets),
	}
	drifts := collect(tapes, func(t *tape.Tape) *float64 { return t.RuntimeDrift() })
	r.RuntimeDriftHistogram = buildHistogram(drifts, driftBuckets)

	r.RuntimeStats = RuntimeStats{
		LabelAverage: round1(mean(collect(tapes, func(t *tape.Tape) *float64 { return t.LabelRuntimeMinutes }))),
		QTAverage:    round1(mean(collect(tapes, func(t *tape.Tape) *float64 { return t.QTRuntimeMinutes }))),
		FinalAverage: round1(mean(collect(tapes, func(t *tape.Tape) *float64 { return t.FinalClipDurationMinutes }))),
		DriftAverage: round1(mean(drifts)),
	}

	r.StageRuntimes = buildStageRuntimes(tapes)
	r.SequenceProgress = buildSequenceProgress(tapes)
	r.IssueTagCounts = buildIssueTagCounts(tapes)
	r.OldestWaiting = findOldestWaiting(tapes)
	r.LargestQueueStage = findLargestQueue(r.StageCounts)

	weeks := trailingWeeks(now, densityWindowWeeks)
	r.WeeklyCohorts = buildWeeklyCohorts(tapes, weeks)
	r.RuntimeDensityGrid = buildDensityGrid(tapes, weeks)
	r.AgingBuckets = buildAgingBuckets(tapes)
	r.RecentAcquisitions = buildRecentAcquisitions(tapes)

	return r
}

func isBlocked(t *tape.Tape) bool {
	return t.Stage != tape.StageArchived && len(t.IssueTags) > 0
}

func buildStageCounts(tapes []tape.Tape, stageNames []string) []StageCount {
	seen := map[tape.Stage]bool{}
	stages := make([]tape.Stage, 0, len(stageNames)+1)
	for _, name := range stageNames {
		s := tape.Stage(name)
		if !seen[s] {
			seen[s] = true
			stages = append(stages, s)
		}
	}
	if !seen[tape.StageBlocked] {
		stages = append(stages, tape.StageBlocked)
	}

	out := make([]StageCount, 0, len(stages))
	for _, s := range stages {
		count := 0
		for i := range tapes {
			if s == tape.StageBlocked {
				if isBlocked(&tapes[i]) {
					count++
				}
			} else if tapes[i].Stage == s {
				count++
			}
		}
		out = append(out, StageCount{Stage: s, Count: count})
	}
	return out
}

func buildKpis(tapes []tape.Tape, now time.Time) Kpis {
	k := Kpis{TotalTapes: len(tapes)}
	today := tape.DayStart(now)

	var queueAges []float64
	for i := range tapes {
		t := &tapes[i]
		if t.Captured {
			k.CapturedCount++
		}
		if t.Trimmed {
			k.TrimmedCount++
		}
		if t.Combined {
			k.CombinedCount++
		}
		if t.TransferredToNas {
			k.TransferredCount++
		}
		if t.ReceivedDate != nil && tape.DayStart(*t.ReceivedDate).Equal(today) {
			k.ReceivedToday++
		}
		switch t.Stage {
		case tape.StageIntake:
			k.IntakeQueue++
		case tape.StageCapture:
			k.CaptureQueue++
		case tape.StageTrim, tape.StageCombine:
			k.ProcessingQueue++
		case tape.StageTransfer:
			k.TransferQueue++
		case tape.StageArchived:
			k.ArchivedTotal++
			if t.CompletedDate != nil && tape.DayStart(*t.CompletedDate).Equal(today) {
				k.ArchivedToday++
			}
		}
		if isBlocked(t) {
			k.BlockedQueue++
		}
		if t.Stage != tape.StageArchived {
			queueAges = append(queueAges, float64(t.AgeInStageDays))
		}
	}
	k.AwaitingCaptureCount = k.IntakeQueue

	k.AvgQueueAgeDays = round1(mean(queueAges))
	k.AvgRuntimeDriftMinutes = round1(mean(collect(tapes, func(t *tape.Tape) *float64 { return t.RuntimeDrift() })))
	if len(tapes) > 0 {
		k.ArchiveCompletionRate = round1(float64(k.ArchivedTotal) / float64(len(tapes)) * 100)
	}
	return k
}

// buildDaily produces one zero-filled bucket per calendar day over the
// trailing window, endpoints inclusive.
func buildDaily(tapes []tape.Tape, now time.Time, at func(*tape.Tape) *time.Time) []DailyPoint {
	counts := map[string]int{}
	for i := range tapes {
		if ts := at(&tapes[i]); ts != nil {
			counts[dayKey(*ts)]++
		}
	}
	out := make([]DailyPoint, 0, dailyWindowDays)
	start := tape.DayStart(now).AddDate(0, 0, -(dailyWindowDays - 1))
	for d := 0; d < dailyWindowDays; d++ {
		key := dayKey(start.AddDate(0, 0, d))
		out = append(out, DailyPoint{Date: key, Count: counts[key]})
	}
	return out
}

// buildBacklogTrend reports, per day of the window, how many tapes had been
// received by that day and were not yet completed.
func buildBacklogTrend(tapes []tape.Tape, now time.Time) []BacklogPoint {
	out := make([]BacklogPoint, 0, dailyWindowDays)
	start := tape.DayStart(now).AddDate(0, 0, -(dailyWindowDays - 1))
	for d := 0; d < dailyWindowDays; d++ {
		day := start.AddDate(0, 0, d)
		nextDay := day.AddDate(0, 0, 1)
		backlog := 0
		for i := range tapes {
			t := &tapes[i]
			if t.ReceivedDate == nil || !t.ReceivedDate.Before(nextDay) {
				continue
			}
			if t.CompletedDate == nil || !t.CompletedDate.Before(nextDay) {
				backlog++
			}
		}
		out = append(out, BacklogPoint{Date: dayKey(day), Backlog: backlog})
	}
	return out
}

func buildStageRuntimes(tapes []tape.Tape) []StageRuntimeRow {
	out := make([]StageRuntimeRow, 0, len(tape.Stages))
	for _, s := range tape.Stages {
		var vals []float64
		for i := range tapes {
			if tapes[i].Stage == s && tapes[i].QTRuntimeMinutes != nil {
				vals = append(vals, *tapes[i].QTRuntimeMinutes)
			}
		}
		row := StageRuntimeRow{Stage: s, Count: len(vals)}
		if len(vals) > 0 {
			sort.Float64s(vals)
			row.Min = round1(vals[0])
			row.P25 = round1(percentile(vals, 0.25))
			row.Median = round1(percentile(vals, 0.5))
			row.P75 = round1(percentile(vals, 0.75))
			row.Max = round1(vals[len(vals)-1])
		}
		out = append(out, row)
	}
	return out
}

func buildSequenceProgress(tapes []tape.Tape) []SequenceProgress {
	groups := map[string][]*tape.Tape{}
	var order []string
	for i := range tapes {
		key := tapes[i].TapeSequence
		if key == "" {
			key = "Unsequenced"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], &tapes[i])
	}

	out := make([]SequenceProgress, 0, len(order))
	for _, key := range order {
		members := groups[key]
		expected := 0
		captured := 0
		archived := 0
		for _, m := range members {
			if m.TapesInSequence != nil && int(*m.TapesInSequence) > expected {
				expected = int(*m.TapesInSequence)
			}
			if m.Captured {
				captured++
			}
			if m.Stage == tape.StageArchived {
				archived++
			}
		}
		if expected == 0 {
			expected = len(members)
		}
		rate := 0.0
		if expected > 0 {
			rate = round1(float64(archived) / float64(expected) * 100)
		}
		// Declared counts lag reality in hand-edited bases; a group can hold
		// more archived tapes than it claims to contain.
		if rate > 100 {
			rate = 100
		}
		out = append(out, SequenceProgress{
			Sequence:       key,
			Expected:       expected,
			Total:          len(members),
			Captured:       captured,
			Archived:       archived,
			CompletionRate: rate,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Expected != out[j].Expected {
			return out[i].Expected > out[j].Expected
		}
		return out[i].Sequence < out[j].Sequence
	})
	if len(out) > sequenceTop {
		out = out[:sequenceTop]
	}
	return out
}

func buildIssueTagCounts(tapes []tape.Tape) []TagCount {
	counts := map[string]int{}
	var order []string
	for i := range tapes {
		for _, tag := range tapes[i].IssueTags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(order))
	for _, tag := range order {
		out = append(out, TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > issueTagTop {
		out = out[:issueTagTop]
	}
	return out
}

// findOldestWaiting picks the non-archived tape with a received date and the
// highest age; ties keep the first encountered.
func findOldestWaiting(tapes []tape.Tape) *tape.Tape {
	var oldest *tape.Tape
	for i := range tapes {
		t := &tapes[i]
		if t.Stage == tape.StageArchived || t.ReceivedDate == nil {
			continue
		}
		if oldest == nil || t.AgeInStageDays > oldest.AgeInStageDays {
			oldest = t
		}
	}
	return oldest
}

// findLargestQueue picks the biggest non-Archived row of the stage counts;
// ties keep the first in configured order.
func findLargestQueue(counts []StageCount) *StageCount {
	var largest *StageCount
	for i := range counts {
		if counts[i].Stage == tape.StageArchived {
			continue
		}
		if largest == nil || counts[i].Count > largest.Count {
			largest = &counts[i]
		}
	}
	return largest
}

func buildWeeklyCohorts(tapes []tape.Tape, weeks []string) []WeeklyPoint {
	counts := map[string]int{}
	for i := range tapes {
		if tapes[i].AcquisitionAt != nil {
			counts[weekKey(*tapes[i].AcquisitionAt)]++
		}
	}
	out := make([]WeeklyPoint, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, WeeklyPoint{Week: w, Count: counts[w]})
	}
	return out
}

func buildDensityGrid(tapes []tape.Tape, weeks []string) DensityGrid {
	grid := DensityGrid{
		Weeks:   weeks,
		Buckets: bucketLabels(fineBuckets),
		Counts:  make([][]int, len(weeks)),
	}
	weekIdx := map[string]int{}
	for i, w := range weeks {
		weekIdx[w] = i
		grid.Counts[i] = make([]int, len(fineBuckets))
	}
	for i := range tapes {
		t := &tapes[i]
		if t.AcquisitionAt == nil || t.QTRuntimeMinutes == nil {
			continue
		}
		wi, ok := weekIdx[weekKey(*t.AcquisitionAt)]
		if !ok {
			continue
		}
		grid.Counts[wi][bucketIndex(*t.QTRuntimeMinutes, fineBuckets)]++
	}
	return grid
}

var agingBuckets = []bucketDef{
	{"0-2", 2},
	{"3-5", 5},
	{"6-10", 10},
	{"11+", math.Inf(1)},
}

func buildAgingBuckets(tapes []tape.Tape) []AgingBucket {
	vals := make([]float64, 0, len(tapes))
	for i := range tapes {
		if tapes[i].Stage != tape.StageArchived {
			vals = append(vals, float64(tapes[i].AgeInStageDays))
		}
	}
	hist := buildHistogram(vals, agingBuckets)
	out := make([]AgingBucket, len(hist))
	for i, h := range hist {
		out[i] = AgingBucket{Bucket: h.Bucket, Count: h.Count}
	}
	return out
}

func buildRecentAcquisitions(tapes []tape.Tape) []tape.Tape {
	recent := make([]tape.Tape, 0, len(tapes))
	for i := range tapes {
		if tapes[i].AcquisitionAt != nil {
			recent = append(recent, tapes[i])
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].AcquisitionAt.After(*recent[j].AcquisitionAt)
	})
	if len(recent) > recentFeedSize {
		recent = recent[:recentFeedSize]
	}
	return recent
}

func coveragePercent(tapes []tape.Tape, has func(*tape.Tape) bool) float64 {
	if len(tapes) == 0 {
		return 0
	}
	n := 0
	for i := range tapes {
		if has(&tapes[i]) {
			n++
		}
	}
	return round1(float64(n) / float64(len(tapes)) * 100)
}

func collect(tapes []tape.Tape, get func(*tape.Tape) *float64) []float64 {
	var out []float64
	for i := range tapes {
		if v := get(&tapes[i]); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// trailingWeeks lists the ISO week labels of the n weeks ending at now,
// oldest first.
func trailingWeeks(now time.Time, n int) []string {
	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, weekKey(now.AddDate(0, 0, -7*i)))
	}
	return out
}
