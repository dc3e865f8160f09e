package summary

import (
	"time"

	"vhsops/internal/tape"
)

// Report is the full aggregate snapshot one dashboard fetch consumes. It is
// plain data, regenerated per request, with no identity of its own.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`

	Kpis        Kpis         `json:"kpis"`
	StageCounts []StageCount `json:"stageCounts"`

	ReceivedDaily        []DailyPoint `json:"receivedDaily"`
	CompletedDaily       []DailyPoint `json:"completedDaily"`
	AcquisitionDaily     []DailyPoint `json:"acquisitionDaily"`
	CapturedDaily        []DailyPoint `json:"capturedDaily"`
	ContentRecordedDaily []DailyPoint `json:"contentRecordedDaily"`

	CapturedDateCoveragePercent    float64 `json:"capturedDateCoveragePercent"`
	ContentRecordedCoveragePercent float64 `json:"contentRecordedCoveragePercent"`

	BacklogTrend []BacklogPoint `json:"backlogTrend"`

	RuntimeHistograms     RuntimeHistograms `json:"runtimeHistograms"`
	RuntimeDriftHistogram []HistogramBucket `json:"runtimeDriftHistogram"`
	RuntimeStats          RuntimeStats      `json:"runtimeStats"`
	StageRuntimes         []StageRuntimeRow `json:"stageRuntimes"`

	SequenceProgress []SequenceProgress `json:"sequenceProgress"`
	IssueTagCounts   []TagCount         `json:"issueTagCounts"`

	OldestWaiting     *tape.Tape  `json:"oldestWaiting,omitempty"`
	LargestQueueStage *StageCount `json:"largestQueueStage,omitempty"`

	WeeklyCohorts      []WeeklyPoint `json:"weeklyCohorts"`
	RuntimeDensityGrid DensityGrid   `json:"runtimeDensityGrid"`
	AgingBuckets       []AgingBucket `json:"agingBuckets"`

	RecentAcquisitions []tape.Tape `json:"recentAcquisitions"`
	Tapes              []tape.Tape `json:"tapes"`
}

// Kpis are the headline dashboard numbers.
type Kpis struct {
	TotalTapes           int `json:"totalTapes"`
	AwaitingCaptureCount int `json:"awaitingCaptureCount"`
	CapturedCount        int `json:"capturedCount"`
	TrimmedCount         int `json:"trimmedCount"`
	CombinedCount        int `json:"combinedCount"`
	TransferredCount     int `json:"transferredCount"`
	ReceivedToday        int `json:"receivedToday"`

	IntakeQueue     int `json:"intakeQueue"`
	CaptureQueue    int `json:"captureQueue"`
	ProcessingQueue int `json:"processingQueue"`
	TransferQueue   int `json:"transferQueue"`
	BlockedQueue    int `json:"blockedQueue"`
	ArchivedTotal   int `json:"archivedTotal"`
	ArchivedToday   int `json:"archivedToday"`

	AvgQueueAgeDays        float64 `json:"avgQueueAgeDays"`
	AvgRuntimeDriftMinutes float64 `json:"avgRuntimeDriftMinutes"`
	ArchiveCompletionRate  float64 `json:"archiveCompletionRate"`
}

type StageCount struct {
	Stage tape.Stage `json:"stage"`
	Count int        `json:"count"`
}

type DailyPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type BacklogPoint struct {
	Date    string `json:"date"`
	Backlog int    `json:"backlog"`
}

type HistogramBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// RuntimeHistograms holds the coarse distribution of each runtime measure.
type RuntimeHistograms struct {
	LabelRuntime []HistogramBucket `json:"labelRuntime"`
	QTRuntime    []HistogramBucket `json:"qtRuntime"`
	FinalRuntime []HistogramBucket `json:"finalRuntime"`
}

// RuntimeStats are arithmetic means in minutes, one decimal, zero when no
// values exist.
type RuntimeStats struct {
	LabelAverage float64 `json:"labelAverage"`
	QTAverage    float64 `json:"qtAverage"`
	FinalAverage float64 `json:"finalAverage"`
	DriftAverage float64 `json:"driftAverage"`
}

// StageRuntimeRow is a box-plot row over the QT runtimes of one stage.
type StageRuntimeRow struct {
	Stage  tape.Stage `json:"stage"`
	Count  int        `json:"count"`
	Min    float64    `json:"min"`
	P25    float64    `json:"p25"`
	Median float64    `json:"median"`
	P75    float64    `json:"p75"`
	Max    float64    `json:"max"`
}

// SequenceProgress tracks partial completion of a named tape group.
type SequenceProgress struct {
	Sequence       string  `json:"sequence"`
	Expected       int     `json:"expected"`
	Total          int     `json:"total"`
	Captured       int     `json:"captured"`
	Archived       int     `json:"archived"`
	CompletionRate float64 `json:"completionRate"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type WeeklyPoint struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// DensityGrid is a weeks-by-runtime-bucket count matrix for heatmap views.
// Counts[i][j] is the number of tapes acquired in Weeks[i] whose QT runtime
// falls in Buckets[j].
type DensityGrid struct {
	Weeks   []string `json:"weeks"`
	Buckets []string `json:"buckets"`
	Counts  [][]int  `json:"counts"`
}

type AgingBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}
