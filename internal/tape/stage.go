package tape

// Flags carries the progress signals stage inference reads. Flags are not
// guaranteed monotonic (hand-edited rows can have combined set without
// trimmed), so inference trusts the most advanced signal it finds.
type Flags struct {
	Captured         bool
	Trimmed          bool
	Combined         bool
	TransferredToNas bool
	QTFilename       string
	ArchivalFilename string
}

type stageRule struct {
	stage Stage
	match func(Flags) bool
}

// Ordered priority cascade: first match wins, each rule assumes the ones
// above it failed.
var stageRules = []stageRule{
	{StageArchived, func(f Flags) bool { return f.ArchivalFilename != "" }},
	{StageTransfer, func(f Flags) bool { return f.TransferredToNas }},
	{StageCombine, func(f Flags) bool { return f.Combined }},
	{StageTrim, func(f Flags) bool { return f.Trimmed }},
	{StageCapture, func(f Flags) bool { return f.Captured || f.QTFilename != "" }},
}

// InferStage maps progress flags to exactly one pipeline stage.
func InferStage(f Flags) Stage {
	for _, r := range stageRules {
		if r.match(f) {
			return r.stage
		}
	}
	return StageIntake
}
