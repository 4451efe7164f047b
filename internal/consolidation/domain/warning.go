package consolidation

import "fmt"

// WarningKind classifies a recoverable, per-file or per-sheet condition.
type WarningKind string

const (
	WarningMissingTableMarker          WarningKind = "missing_table_marker"
	WarningInvalidChannelFile          WarningKind = "invalid_channel_file"
	WarningDuplicateChannel            WarningKind = "duplicate_channel"
	WarningMissingChannel              WarningKind = "missing_channel"
	WarningDuplicateReadings           WarningKind = "duplicate_readings"
	WarningDiscardedReadings           WarningKind = "discarded_readings"
	WarningUnmatchedSupplementarySheet WarningKind = "unmatched_supplementary_sheet"
	WarningUnknownSupplementarySheet   WarningKind = "unknown_supplementary_sheet"
	WarningInvalidHolidayFormat        WarningKind = "invalid_holiday_format"
	WarningInvalidSupplementarySheet   WarningKind = "invalid_supplementary_sheet"
	WarningInvalidWorkbook             WarningKind = "invalid_supplementary_workbook"
)

// Warning is reported to the caller; it never aborts a run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

// NewWarning builds a warning with a formatted message.
func NewWarning(kind WarningKind, subject, format string, args ...any) Warning {
	return Warning{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Subject, w.Message)
}
