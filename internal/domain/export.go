package domain

import (
	"strings"
	"unicode"
)

// ExportFormat selects the file type produced by the export endpoints.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat accepts "csv" or "json" in any case.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return "", false
	}
}

// ContentType is the MIME type the service returns for the format.
func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ExportFile is a downloaded export payload.
type ExportFile struct {
	Data        []byte
	ContentType string
}

// ExportFilename builds weather_<location>_<date>.<ext> with a file-system-safe
// location.
func ExportFilename(req CheckRequest, format ExportFormat) string {
	return "weather_" + sanitizeFilePart(req.Location) + "_" + sanitizeFilePart(req.Date) + "." + string(format)
}

func sanitizeFilePart(s string) string {
	runs := strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.')
	})
	kept := runs[:0]
	for _, run := range runs {
		if strings.Trim(run, ".") != "" {
			kept = append(kept, run)
		}
	}
	out := strings.Trim(strings.Join(kept, "_"), ".")
	if out == "" {
		return "location"
	}
	return out
}
