package tape

import "time"

// Stage is the pipeline position of a tape, inferred from its progress
// flags. StageBlocked is a view-level classification used by aggregate
// counts only; it is never assigned as a tape's own stage.
type Stage string

const (
	StageIntake   Stage = "Intake"
	StageCapture  Stage = "Capture"
	StageTrim     Stage = "Trim"
	StageCombine  Stage = "Combine"
	StageTransfer Stage = "Transfer"
	StageArchived Stage = "Archived"
	StageBlocked  Stage = "Blocked"
)

// Stages lists the real pipeline stages in order.
var Stages = []Stage{StageIntake, StageCapture, StageTrim, StageCombine, StageTransfer, StageArchived}

// Priority buckets a tape by how long it has been waiting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityRush   Priority = "rush"
)

// Tape is the normalized per-item record derived from one raw source row.
// Optional fields are nil when the source value was absent or unparseable.
type Tape struct {
	ID              string   `json:"id"`
	TapeID          string   `json:"tapeId"`
	TapeName        string   `json:"tapeName"`
	TapeSequence    string   `json:"tapeSequence,omitempty"`
	TapesInSequence *float64 `json:"tapesInSequence,omitempty"`

	ReceivedDate      *time.Time `json:"receivedDate,omitempty"`
	AcquisitionAt     *time.Time `json:"acquisitionAt,omitempty"`
	CapturedAt        *time.Time `json:"capturedAt,omitempty"`
	ContentRecordedAt *time.Time `json:"contentRecordedAt,omitempty"`
	CompletedDate     *time.Time `json:"completedDate,omitempty"`
	UpdatedTime       *time.Time `json:"updatedTime,omitempty"`

	LabelRuntimeMinutes      *float64 `json:"labelRuntimeMinutes,omitempty"`
	QTRuntimeMinutes         *float64 `json:"qtRuntimeMinutes,omitempty"`
	FinalClipDurationMinutes *float64 `json:"finalClipDurationMinutes,omitempty"`

	QTFilename       string `json:"qtFilename,omitempty"`
	ArchivalFilename string `json:"archivalFilename,omitempty"`
	Notes            string `json:"notes,omitempty"`

	Captured         bool `json:"captured"`
	Trimmed          bool `json:"trimmed"`
	Combined         bool `json:"combined"`
	TransferredToNas bool `json:"transferredToNas"`

	Stage          Stage    `json:"stage"`
	Priority       Priority `json:"priority"`
	AgeInStageDays int      `json:"ageInStageDays"`
	IssueTags      []string `json:"issueTags"`
}

// RuntimeDrift is the absolute difference in minutes between the source
// runtime (label, falling back to QT) and the output runtime (final clip,
// falling back to QT). Nil when neither side is known.
func (t *Tape) RuntimeDrift() *float64 {
	source := t.LabelRuntimeMinutes
	if source == nil {
		source = t.QTRuntimeMinutes
	}
	output := t.FinalClipDurationMinutes
	if output == nil {
		output = t.QTRuntimeMinutes
	}
	if source == nil || output == nil {
		return nil
	}
	d := *output - *source
	if d < 0 {
		d = -d
	}
	return &d
}
