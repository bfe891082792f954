package utils

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "notice.pdf", "notice.pdf"},
		{"spaces and punctuation", "Tender Notice (v2).pdf", "TenderNoticev2.pdf"},
		{"inner dots dropped", "boq.final.xlsx", "boqfinal.xlsx"},
		{"hyphen and underscore kept", "scope_of-work.docx", "scope_of-work.docx"},
		{"no extension", "README", "README"},
		{"leading dot is not an extension", ".env", "env"},
		{"directory separators stripped", "../../etc/passwd", "etcpasswd"},
		{"unicode letters kept", "Ausschreibung_München.pdf", "Ausschreibung_München.pdf"},
		{"only unsafe stem", "???.pdf", ".pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeFolderPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/Legal/Cases/", "/Legal/Cases/", false},
		{"Legal/Cases", "/Legal/Cases/", false},
		{"/Legal/", "/Legal/", false},
		{"/", "", true},
		{"", "", true},
		{"/a//b/", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeFolderPath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeFolderPath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeFolderPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00 B"},
		{512, "512.00 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.00 TB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
