package normalize

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format identifies how a file's bytes are turned into records.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXML  Format = "xml"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// extensions maps lower-case file extensions (without the dot) to formats.
var extensions = map[string]Format{
	"csv":    FormatCSV,
	"tsv":    FormatTSV,
	"json":   FormatJSON,
	"ndjson": FormatJSON,
	"jsonl":  FormatJSON,
	"pdf":    FormatPDF,
	"docx":   FormatDOCX,
	"xml":    FormatXML,
	"txt":    FormatText,
	"text":   FormatText,
	"log":    FormatText,
	"md":     FormatText,
	"html":   FormatHTML,
	"htm":    FormatHTML,
}

// FormatFromFilename derives the format from the filename's extension. The
// second result is false for unsupported or missing extensions.
func FormatFromFilename(name string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	f, ok := extensions[ext]
	return f, ok
}

// Supported reports whether name has a recognized extension.
func Supported(name string) bool {
	_, ok := FormatFromFilename(name)
	return ok
}

// Extensions returns the recognized extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
