package tape

// Issue tag codes.
const (
	IssueMissingQTFile           = "missing-qt-file"
	IssueRuntimeMismatch         = "runtime-mismatch"
	IssuePendingArchivalFilename = "pending-archival-filename"
	IssueStuckPostCapture        = "stuck-post-capture"
	IssueStuckPostTrim           = "stuck-post-trim"
	IssueStuckPreTransfer        = "stuck-pre-transfer"
)

const (
	// runtimeMismatchMinutes is how far the QT runtime may drift from the
	// label runtime before the pair is flagged.
	runtimeMismatchMinutes = 10
	// stuckAfterDays is how long a tape may sit between stage flags before
	// it is considered stuck.
	stuckAfterDays = 5
)

type issueRule struct {
	tag   string
	match func(*Tape) bool
}

// Rules run in declaration order over the final normalized fields; each
// appends at most one tag, so duplicates cannot occur.
var issueRules = []issueRule{
	{IssueMissingQTFile, func(t *Tape) bool {
		return t.Captured && t.QTFilename == ""
	}},
	{IssueRuntimeMismatch, func(t *Tape) bool {
		if t.QTRuntimeMinutes == nil || t.LabelRuntimeMinutes == nil {
			return false
		}
		variance := *t.QTRuntimeMinutes - *t.LabelRuntimeMinutes
		if variance < 0 {
			variance = -variance
		}
		return variance > runtimeMismatchMinutes
	}},
	{IssuePendingArchivalFilename, func(t *Tape) bool {
		return t.TransferredToNas && t.ArchivalFilename == ""
	}},
	{IssueStuckPostCapture, func(t *Tape) bool {
		return t.Captured && !t.Trimmed && t.AgeInStageDays > stuckAfterDays
	}},
	{IssueStuckPostTrim, func(t *Tape) bool {
		return t.Trimmed && !t.Combined && t.AgeInStageDays > stuckAfterDays
	}},
	{IssueStuckPreTransfer, func(t *Tape) bool {
		return t.Combined && !t.TransferredToNas && t.AgeInStageDays > stuckAfterDays
	}},
}

// InferIssues evaluates the anomaly rules against a fully normalized tape.
// Stage and age must already be final; the stuck rules read the age.
func InferIssues(t *Tape) []string {
	issues := []string{}
	for _, r := range issueRules {
		if r.match(t) {
			issues = append(issues, r.tag)
		}
	}
	return issues
}
