package filecache

import (
	"testing"
	"time"
)

func TestGenerateTargetPath(t *testing.T) {
	at := time.Date(2025, time.March, 7, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name     string
		owner    string
		filename string
		want     string
	}{
		{"plain", "T-1042", "notice.pdf", "/tenders/2025/03/07/T-1042/files/notice.pdf"},
		{"spaces and punctuation", "T-1042", "Tender Notice (v2).pdf", "/tenders/2025/03/07/T-1042/files/TenderNoticev2.pdf"},
		{"inner dots", "T-1042", "boq.final.xlsx", "/tenders/2025/03/07/T-1042/files/boqfinal.xlsx"},
		{"owner sanitized", "acme/../corp", "a.pdf", "/tenders/2025/03/07/acmecorp/files/a.pdf"},
		{"directory components dropped", "T1", "../../etc/passwd", "/tenders/2025/03/07/T1/files/passwd"},
		{"windows separators", "T1", `C:\docs\spec.docx`, "/tenders/2025/03/07/T1/files/spec.docx"},
		{"stem sanitizes to nothing", "T1", "???.pdf", "/tenders/2025/03/07/T1/files/file.pdf"},
		{"empty owner", "", "a.pdf", "/tenders/2025/03/07/unknown/files/a.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateTargetPath(tt.owner, tt.filename, at)
			if got != tt.want {
				t.Errorf("GenerateTargetPath(%q, %q) = %q, want %q", tt.owner, tt.filename, got, tt.want)
			}
		})
	}
}

func TestGenerateTargetPath_Deterministic(t *testing.T) {
	at := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	first := GenerateTargetPath("owner", "Report 2024.pdf", at)
	for i := 0; i < 3; i++ {
		if got := GenerateTargetPath("owner", "Report 2024.pdf", at); got != first {
			t.Fatalf("path changed between calls: %q then %q", first, got)
		}
	}
}
