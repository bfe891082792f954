package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Word characters (any script), digits, underscore and hyphen survive sanitization.
var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)

// SanitizeFilename strips everything except word characters and hyphens from the
// stem of filename while preserving its extension. Leading dots do not start an
// extension, so ".env" has no extension.
//
// Examples:
//   - SanitizeFilename("Tender Notice (v2).pdf") → "TenderNoticev2.pdf"
//   - SanitizeFilename("boq.final.xlsx") → "boqfinal.xlsx"
func SanitizeFilename(filename string) string {
	ext := filepath.Ext(strings.TrimLeft(filename, "."))
	stem := strings.TrimSuffix(filename, ext)

	return SanitizePathComponent(stem) + ext
}

// SanitizePathComponent strips everything except word characters and hyphens
func SanitizePathComponent(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "")
}
