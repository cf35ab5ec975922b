package textimport

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtract_Text(t *testing.T) {
	in := "  Once upon   a time.\r\n\r\n\r\nThe end.  \n"
	got, err := Extract(strings.NewReader(in), "story.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := "Once upon a time.\n\nThe end."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_HTML(t *testing.T) {
	in := `<html><head><title>Ignored</title><style>p { color: red }</style></head>
<body><h1>Bong-Wi</h1><p>He went to the
 pond.</p><script>track()</script><p>Ducks<br>everywhere.</p></body></html>`

	got, err := Extract(strings.NewReader(in), "story.html")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Bong-Wi\n\nHe went to the pond.\n\nDucks\neverywhere."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_SniffsHTMLWithoutExtension(t *testing.T) {
	got, err := Extract(strings.NewReader("<!DOCTYPE html><p>Sniffed</p>"), "download")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Sniffed" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"empty text", "blank.md", " \n\t\n", ErrEmpty},
		{"empty html", "blank.html", "<html><script>x()</script></html>", ErrEmpty},
		{"binary", "image.bin", "\x89PNG\r\n\x1a\n\x00\x00", ErrUnsupported},
		{"invalid utf8", "story.txt", "caf\xe9", ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(strings.NewReader(tt.content), tt.file)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtract_MalformedPDF(t *testing.T) {
	if _, err := Extract(strings.NewReader("%PDF-1.4\nnot really a pdf"), "story.pdf"); err == nil {
		t.Fatal("expected error for a malformed pdf")
	}
}

func TestExtract_TooLarge(t *testing.T) {
	big := strings.Repeat("a", MaxSize+1)
	if _, err := Extract(strings.NewReader(big), "big.txt"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		head string
		want Format
	}{
		{"a.TXT", "", FormatText},
		{"notes.md", "", FormatText},
		{"paper.pdf", "", FormatPDF},
		{"page.htm", "", FormatHTML},
		{"noext", "%PDF-1.7", FormatPDF},
		{"noext", "just words", FormatText},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name, []byte(tt.head))
		if err != nil {
			t.Errorf("DetectFormat(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.md")
	if err := os.WriteFile(path, []byte("# Title\n\nBody text."), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got != "# Title\n\nBody text." {
		t.Errorf("got %q", got)
	}

	if _, err := ExtractFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}
