package tape

import (
	"time"

	"vhsops/internal/airtable"
	"vhsops/internal/coerce"
	"vhsops/internal/config"
)

// Normalize derives one Tape from a raw source row. Derivation order
// matters: stage is inferred before age is used by the issue rules, and
// issue rules read only final normalized fields. A malformed row never
// fails; unusable fields degrade to absent and the derived values fall back
// to their documented defaults (no baseline date means age 0, priority low).
//
// All rows of one fetch are normalized against the same now so that day
// boundaries cannot drift mid-pass.
func Normalize(rec airtable.Record, fields config.FieldMap, unit config.DurationUnit, now time.Time) Tape {
	fv := func(name string) any {
		if name == "" {
			return nil
		}
		return rec.Fields[name]
	}

	var createdTime *time.Time
	if !rec.CreatedTime.IsZero() {
		ct := rec.CreatedTime.UTC()
		createdTime = &ct
	}

	t := Tape{
		ID:                       rec.ID,
		TapeSequence:             coerce.Text(fv(fields.TapeSequence)),
		TapesInSequence:          coerce.Number(fv(fields.TapesInSequence)),
		ReceivedDate:             coerce.Date(fv(fields.ReceivedDate)),
		CapturedAt:               coerce.Date(fv(fields.CapturedAt)),
		ContentRecordedAt:        coerce.Date(fv(fields.ContentRecordedAt)),
		LabelRuntimeMinutes:      coerce.Minutes(fv(fields.LabelRuntime), unit),
		QTRuntimeMinutes:         coerce.Minutes(fv(fields.QTRuntime), unit),
		FinalClipDurationMinutes: coerce.Minutes(fv(fields.FinalClipDuration), unit),
		QTFilename:               coerce.Text(fv(fields.QTFilename)),
		ArchivalFilename:         coerce.Text(fv(fields.ArchivalFilename)),
		Notes:                    coerce.Text(fv(fields.InternalNotes)),
		Captured:                 coerce.Bool(fv(fields.Captured)),
		Trimmed:                  coerce.Bool(fv(fields.Trimmed)),
		Combined:                 coerce.Bool(fv(fields.Combined)),
		TransferredToNas:         coerce.Bool(fv(fields.TransferredToNas)),
		UpdatedTime:              createdTime,
	}

	t.TapeID = coerce.Text(fv(fields.TapeID))
	if t.TapeID == "" {
		t.TapeID = rec.ID
	}
	t.TapeName = coerce.Text(fv(fields.TapeName))
	if t.TapeName == "" {
		t.TapeName = "Untitled Tape"
	}

	// Canonical fallback chains: acquisition prefers the capture timestamp,
	// then receipt, then the row's own creation time; age baselines on
	// receipt, then creation time.
	t.AcquisitionAt = firstTime(t.CapturedAt, t.ReceivedDate, createdTime)
	baseline := firstTime(t.ReceivedDate, createdTime)

	t.AgeInStageDays = ageInDays(baseline, now)
	t.Priority = inferPriority(t.AgeInStageDays)
	t.Stage = InferStage(Flags{
		Captured:         t.Captured,
		Trimmed:          t.Trimmed,
		Combined:         t.Combined,
		TransferredToNas: t.TransferredToNas,
		QTFilename:       t.QTFilename,
		ArchivalFilename: t.ArchivalFilename,
	})

	t.CompletedDate = coerce.Date(fv(fields.CompletedDate))
	if t.CompletedDate == nil && t.Stage == StageArchived {
		// No completion column in the stock schema; the row creation time
		// is the surrogate, as the dashboard has always reported it.
		t.CompletedDate = t.UpdatedTime
	}

	t.IssueTags = InferIssues(&t)
	return t
}

// NormalizeAll maps a full fetch through Normalize under one captured now.
func NormalizeAll(recs []airtable.Record, fields config.FieldMap, unit config.DurationUnit, now time.Time) []Tape {
	tapes := make([]Tape, 0, len(recs))
	for _, rec := range recs {
		tapes = append(tapes, Normalize(rec, fields, unit, now))
	}
	return tapes
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

// DayStart truncates a time to its UTC calendar day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ageInDays(baseline *time.Time, now time.Time) int {
	if baseline == nil {
		return 0
	}
	days := int(DayStart(now).Sub(DayStart(*baseline)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Priority breakpoints by age in stage.
func inferPriority(ageInStageDays int) Priority {
	switch {
	case ageInStageDays > 21:
		return PriorityRush
	case ageInStageDays > 10:
		return PriorityHigh
	case ageInStageDays > 4:
		return PriorityNormal
	default:
		return PriorityLow
	}
}
