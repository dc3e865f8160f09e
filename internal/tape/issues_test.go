package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func TestMissingQTFile(t *testing.T) {
	issues := InferIssues(&Tape{Captured: true})
	assert.Contains(t, issues, IssueMissingQTFile)

	issues = InferIssues(&Tape{Captured: true, QTFilename: "t.mov"})
	assert.NotContains(t, issues, IssueMissingQTFile)
}

func TestRuntimeMismatchThreshold(t *testing.T) {
	issues := InferIssues(&Tape{LabelRuntimeMinutes: fptr(50), QTRuntimeMinutes: fptr(65)})
	assert.Contains(t, issues, IssueRuntimeMismatch)

	// 8 minutes of drift is within tolerance
	issues = InferIssues(&Tape{LabelRuntimeMinutes: fptr(50), QTRuntimeMinutes: fptr(58)})
	assert.NotContains(t, issues, IssueRuntimeMismatch)

	// exactly at the threshold does not flag
	issues = InferIssues(&Tape{LabelRuntimeMinutes: fptr(50), QTRuntimeMinutes: fptr(60)})
	assert.NotContains(t, issues, IssueRuntimeMismatch)

	// one side absent never flags
	issues = InferIssues(&Tape{QTRuntimeMinutes: fptr(65)})
	assert.NotContains(t, issues, IssueRuntimeMismatch)
}

func TestPendingArchivalFilename(t *testing.T) {
	issues := InferIssues(&Tape{TransferredToNas: true})
	assert.Contains(t, issues, IssuePendingArchivalFilename)

	issues = InferIssues(&Tape{TransferredToNas: true, ArchivalFilename: "a.mov"})
	assert.NotContains(t, issues, IssuePendingArchivalFilename)
}

func TestStuckRulesNeedAge(t *testing.T) {
	young := &Tape{Captured: true, QTFilename: "t.mov", AgeInStageDays: 5}
	assert.NotContains(t, InferIssues(young), IssueStuckPostCapture)

	old := &Tape{Captured: true, QTFilename: "t.mov", AgeInStageDays: 6}
	assert.Contains(t, InferIssues(old), IssueStuckPostCapture)

	trimmed := &Tape{Captured: true, Trimmed: true, QTFilename: "t.mov", AgeInStageDays: 12}
	assert.Contains(t, InferIssues(trimmed), IssueStuckPostTrim)
	assert.NotContains(t, InferIssues(trimmed), IssueStuckPostCapture)

	combined := &Tape{Captured: true, Trimmed: true, Combined: true, QTFilename: "t.mov", AgeInStageDays: 12}
	assert.Contains(t, InferIssues(combined), IssueStuckPreTransfer)
}

func TestIssueOrderMatchesRuleOrder(t *testing.T) {
	tp := &Tape{
		Captured:            true,
		TransferredToNas:    true,
		LabelRuntimeMinutes: fptr(50),
		QTRuntimeMinutes:    fptr(90),
		AgeInStageDays:      10,
	}
	issues := InferIssues(tp)
	assert.Equal(t, []string{
		IssueMissingQTFile,
		IssueRuntimeMismatch,
		IssuePendingArchivalFilename,
		IssueStuckPostCapture,
	}, issues)
}

func TestCleanTapeHasNoIssues(t *testing.T) {
	assert.Empty(t, InferIssues(&Tape{}))
}
