package format

import "testing"

func TestSniff(t *testing.T) {
	docx := buildZip(t, map[string]string{"word/document.xml": "<w:document/>"})
	stored := buildStoredZip(t, "notes.txt", "%PDF is the header every PDF file starts with.")

	tests := []struct {
		name         string
		file         string
		data         []byte
		want         Format
		byContent    bool
		wantMismatch bool
	}{
		{"pdf named pdf", "a.pdf", []byte("%PDF-1.4\n"), PDF, true, false},
		{"pdf named docx", "a.docx", []byte("%PDF-1.4\n"), PDF, true, true},
		{"docx named zip", "a.zip", docx, DOCX, true, true},
		{"docx without extension", "upload", docx, DOCX, true, false},
		{"csv named csv", "data.csv", []byte("a,b,c\n1,2,3\n4,5,6\n"), CSV, true, false},
		{"markdown named md", "notes.md", []byte("# Title\n\nSome text.\n"), Markdown, true, false},
		{"markdown without name", "notes", []byte("# Title\n\nSome text.\n"), Markdown, true, false},
		{"text named txt", "notes.txt", []byte("plain words only\n"), TXT, true, false},
		{"html named txt", "page.txt", []byte("<!DOCTYPE html><html><body>x</body></html>"), HTML, true, true},
		{"stored zip mentioning pdf", "bundle.zip", stored, ZIP, true, false},
		{"text mentioning pdf header", "readme.txt", []byte("A PDF file begins with %PDF-1.7 and ends with %%EOF.\n"), TXT, true, false},
		{"empty named dwg", "x.dwg", nil, DWG, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sniff(tt.file, tt.data)
			if res.Format != tt.want {
				t.Errorf("Format = %v, want %v", res.Format, tt.want)
			}
			if res.ByContent != tt.byContent {
				t.Errorf("ByContent = %v, want %v", res.ByContent, tt.byContent)
			}
			if res.ExtensionMismatch != tt.wantMismatch {
				t.Errorf("ExtensionMismatch = %v, want %v", res.ExtensionMismatch, tt.wantMismatch)
			}
			if res.MIME != tt.want.MIME() {
				t.Errorf("MIME = %q, want %q", res.MIME, tt.want.MIME())
			}
		})
	}
}
