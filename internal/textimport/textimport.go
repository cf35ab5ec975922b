// Package textimport extracts plain story text from text, Markdown, PDF and
// HTML files.
package textimport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrEmpty       = errors.New("no text found")
	ErrTooLarge    = errors.New("file too large")
)

// MaxSize bounds the bytes read from any single import.
const MaxSize = 8 << 20

// Format is a supported input format.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// DetectFormat picks the format from the file extension, falling back to
// content sniffing of head.
func DetectFormat(name string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".text":
		return FormatText, nil
	case ".pdf":
		return FormatPDF, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	}

	ct := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return FormatPDF, nil
	case strings.HasPrefix(ct, "text/html"):
		return FormatHTML, nil
	case strings.HasPrefix(ct, "text/plain"):
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, ct)
}

// ExtractFile reads path and returns its text.
func ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Extract(f, filepath.Base(path))
}

// Extract reads r, named name for format detection, and returns its text
// with whitespace normalized.
func Extract(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, MaxSize)
	}

	format, err := DetectFormat(name, data)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatHTML:
		text, err = extractHTML(bytes.NewReader(data))
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupported, name)
		}
		text = string(data)
	}
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", name, err)
	}

	text = normalize(text)
	if text == "" {
		return "", fmt.Errorf("%w in %s", ErrEmpty, name)
	}
	return text, nil
}

// normalize collapses runs of spaces within lines and runs of blank lines
// into a single paragraph break.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
