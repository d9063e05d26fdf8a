package httpds

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// mediaExtensions maps response media types to the extension the normalizer
// recognizes.
var mediaExtensions = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",

	"text/csv":                  ".csv",
	"text/tab-separated-values": ".tsv",
	"application/json":          ".json",
	"application/x-ndjson":      ".ndjson",
	"application/pdf":           ".pdf",
	"application/xml":           ".xml",
	"text/xml":                  ".xml",
	"text/plain":                ".txt",
	"text/markdown":             ".md",
	"text/html":                 ".html",
	"application/xhtml+xml":     ".html",
}

// HashString returns a stable hex digest of s.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// SafeFilenameFromURL derives a filesystem-safe stem from a raw URL. It uses
// the cleaned query string when there is one and a hash of the whole URL
// otherwise.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	clean := filenameCleaner.ReplaceAllString(u.RawQuery, "_")
	if clean == "" {
		return HashString(rawURL)
	}
	return clean
}

// FilenameFromURL names the document behind rawURL. The last path segment is
// used when it has an extension; otherwise a safe stem gets the extension
// implied by contentType (which may be empty).
func FilenameFromURL(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && path.Ext(base) != "" {
			return base
		}
	}
	return SafeFilenameFromURL(rawURL) + ExtensionFor(contentType)
}

// ExtensionFor maps a Content-Type header value to a file extension, or ""
// when the media type is unknown.
func ExtensionFor(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaExtensions[mt]
}
