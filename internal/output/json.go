package output

import (
	"encoding/json"
	"io"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	jsonstore "github.com/khanhnv2901/seca-probe/internal/infrastructure/persistence/json"
)

// WriteJSON writes the report as indented JSON, in the same shape as stored reports.
func WriteJSON(w io.Writer, report *scan.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonstore.ToDTO(report))
}

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatText, "":
		return FormatText, true
	case FormatJSON:
		return FormatJSON, true
	}
	return "", false
}

// Write renders report in the given format.
func Write(w io.Writer, report *scan.Report, format Format, formatStatus StatusFormatter) error {
	if format == FormatJSON {
		return WriteJSON(w, report)
	}
	return WriteText(w, report, formatStatus)
}
