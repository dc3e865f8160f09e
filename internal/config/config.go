package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DurationUnit controls how bare numeric runtime values are interpreted.
type DurationUnit string

const (
	UnitSeconds DurationUnit = "seconds"
	UnitMinutes DurationUnit = "minutes"
	UnitAuto    DurationUnit = "auto"
)

// FieldMap binds each semantic field this service reads or writes to the
// source column name configured for it. Empty names mean the source has no
// such column; downstream views degrade rather than fail.
type FieldMap struct {
	TapeID            string `yaml:"tape_id"`
	TapeName          string `yaml:"tape_name"`
	TapeSequence      string `yaml:"tape_sequence"`
	TapesInSequence   string `yaml:"tapes_in_sequence"`
	ReceivedDate      string `yaml:"received_date"`
	LabelRuntime      string `yaml:"label_runtime"`
	QTRuntime         string `yaml:"qt_runtime"`
	QTFilename        string `yaml:"qt_filename"`
	Captured          string `yaml:"captured"`
	CapturedAt        string `yaml:"captured_at"`
	ContentRecordedAt string `yaml:"content_recorded_at"`
	Trimmed           string `yaml:"trimmed"`
	Combined          string `yaml:"combined"`
	TransferredToNas  string `yaml:"transferred_to_nas"`
	ArchivalFilename  string `yaml:"archival_filename"`
	FinalClipDuration string `yaml:"final_clip_duration"`
	CompletedDate     string `yaml:"completed_date"`
	InternalNotes     string `yaml:"internal_notes"`
}

// Config holds all environment-driven settings.
type Config struct {
	AirtableAPIKey   string
	AirtableBaseID   string
	AirtableTableRef string
	AirtableViewID   string
	AirtableEndpoint string

	HTTPPort         string
	DBPath           string
	ConfigFile       string
	InternalPassword string
	AppTitle         string

	DurationUnit   DurationUnit
	PipelineStages []string
	Fields         FieldMap

	FetchRetries   int
	FetchBaseDelay time.Duration
	MaxRecords     int
	SummaryTTL     time.Duration
	TapesTTL       time.Duration
}

// Load reads configuration from environment and optional .env file.
func Load() Config {
	_ = godotenv.Load()

	base, table, view := parseBaseInput(getenv("AIRTABLE_BASE_ID", ""))
	if v := os.Getenv("AIRTABLE_TABLE_NAME"); v != "" {
		table = v
	}
	if table == "" {
		table = "Titled Table"
	}
	if v := os.Getenv("AIRTABLE_VIEW_NAME"); v != "" {
		view = v
	}

	cfg := Config{
		AirtableAPIKey:   getenv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:   base,
		AirtableTableRef: table,
		AirtableViewID:   view,
		AirtableEndpoint: getenv("AIRTABLE_ENDPOINT_URL", "https://api.airtable.com"),
		HTTPPort:         getenv("PORT", "8080"),
		DBPath:           getenv("DB_PATH", ""),
		ConfigFile:       getenv("CONFIG_FILE", ""),
		InternalPassword: getenv("INTERNAL_APP_PASSWORD", "change-me"),
		AppTitle:         getenv("APP_TITLE", "VHS Ops Flow"),
		DurationUnit:     parseUnit(getenv("DURATION_UNIT", string(UnitSeconds))),
		PipelineStages:   splitList(getenv("AIRTABLE_PIPELINE_STAGES", "Intake,Capture,Trim,Combine,Transfer,Archived")),
		Fields:           fieldsFromEnv(),
		FetchRetries:     clampInt(getenvInt("FETCH_RETRIES", 4), 0, 10),
		FetchBaseDelay:   500 * time.Millisecond,
		MaxRecords:       clampInt(getenvInt("MAX_RECORDS", 500), 1, 10000),
		SummaryTTL:       60 * time.Second,
		TapesTTL:         30 * time.Second,
	}

	if cfg.ConfigFile != "" {
		if fm, err := LoadFieldMapFile(cfg.ConfigFile); err == nil {
			cfg.Fields = MergeFields(cfg.Fields, fm)
		}
	}
	return cfg
}

// DefaultFields returns the stock column names of the source base.
func DefaultFields() FieldMap {
	return FieldMap{
		TapeID:            "📼",
		TapeName:          "Tape Name",
		TapeSequence:      "Tape Sequence",
		TapesInSequence:   "Tapes in Sequence",
		ReceivedDate:      "Rec Date",
		LabelRuntime:      "Label RT",
		QTRuntime:         "QT TRT",
		QTFilename:        "QT Filename",
		Captured:          "Captured",
		Trimmed:           "Trimmed",
		Combined:          "Combined",
		TransferredToNas:  "Transferred to NAS",
		ArchivalFilename:  "Archival Filename",
		FinalClipDuration: "Final Clip Duration",
		InternalNotes:     "Internal Notes",
	}
}

func fieldsFromEnv() FieldMap {
	f := DefaultFields()
	// Field overrides use LookupEnv so an explicitly empty name disables the
	// column and the views fed by it degrade instead of reading a wrong one.
	setField(&f.TapeID, "AIRTABLE_TAPE_ID_FIELD")
	setField(&f.TapeName, "AIRTABLE_TAPE_NAME_FIELD")
	setField(&f.TapeSequence, "AIRTABLE_TAPE_SEQUENCE_FIELD")
	setField(&f.TapesInSequence, "AIRTABLE_SEQUENCE_COUNT_FIELD")
	setField(&f.ReceivedDate, "AIRTABLE_RECEIVED_DATE_FIELD")
	setField(&f.LabelRuntime, "AIRTABLE_LABEL_RUNTIME_FIELD")
	setField(&f.QTRuntime, "AIRTABLE_QT_RUNTIME_FIELD")
	setField(&f.QTFilename, "AIRTABLE_QT_FILENAME_FIELD")
	setField(&f.Captured, "AIRTABLE_CAPTURED_FIELD")
	setField(&f.CapturedAt, "AIRTABLE_CAPTURED_AT_FIELD")
	setField(&f.ContentRecordedAt, "AIRTABLE_CONTENT_DATE_FIELD")
	setField(&f.Trimmed, "AIRTABLE_TRIMMED_FIELD")
	setField(&f.Combined, "AIRTABLE_COMBINED_FIELD")
	setField(&f.TransferredToNas, "AIRTABLE_TRANSFERRED_FIELD")
	setField(&f.ArchivalFilename, "AIRTABLE_ARCHIVAL_FILENAME_FIELD")
	setField(&f.FinalClipDuration, "AIRTABLE_FINAL_DURATION_FIELD")
	setField(&f.CompletedDate, "AIRTABLE_COMPLETED_DATE_FIELD")
	setField(&f.InternalNotes, "AIRTABLE_INTERNAL_NOTES_FIELD")
	return f
}

func setField(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

// LoadFieldMapFile reads column-name overrides from a YAML file.
func LoadFieldMapFile(path string) (FieldMap, error) {
	var fm FieldMap
	data, err := os.ReadFile(path)
	if err != nil {
		return fm, err
	}
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return fm, err
	}
	return fm, nil
}

// MergeFields applies non-empty overrides onto base.
func MergeFields(base, over FieldMap) FieldMap {
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&base.TapeID, over.TapeID)
	merge(&base.TapeName, over.TapeName)
	merge(&base.TapeSequence, over.TapeSequence)
	merge(&base.TapesInSequence, over.TapesInSequence)
	merge(&base.ReceivedDate, over.ReceivedDate)
	merge(&base.LabelRuntime, over.LabelRuntime)
	merge(&base.QTRuntime, over.QTRuntime)
	merge(&base.QTFilename, over.QTFilename)
	merge(&base.Captured, over.Captured)
	merge(&base.CapturedAt, over.CapturedAt)
	merge(&base.ContentRecordedAt, over.ContentRecordedAt)
	merge(&base.Trimmed, over.Trimmed)
	merge(&base.Combined, over.Combined)
	merge(&base.TransferredToNas, over.TransferredToNas)
	merge(&base.ArchivalFilename, over.ArchivalFilename)
	merge(&base.FinalClipDuration, over.FinalClipDuration)
	merge(&base.CompletedDate, over.CompletedDate)
	merge(&base.InternalNotes, over.InternalNotes)
	return base
}

// parseBaseInput accepts either a bare base id or a pasted compound like
// "appXXX/tblYYY/viwZZZ" and picks out each segment by prefix.
func parseBaseInput(raw string) (base, table, view string) {
	for _, p := range strings.Split(raw, "/") {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "app") && base == "":
			base = p
		case strings.HasPrefix(p, "tbl") && table == "":
			table = p
		case strings.HasPrefix(p, "viw") && view == "":
			view = p
		}
	}
	if base == "" {
		base = strings.TrimSpace(raw)
	}
	return base, table, view
}

func parseUnit(v string) DurationUnit {
	switch DurationUnit(strings.ToLower(strings.TrimSpace(v))) {
	case UnitMinutes:
		return UnitMinutes
	case UnitAuto:
		return UnitAuto
	default:
		return UnitSeconds
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
