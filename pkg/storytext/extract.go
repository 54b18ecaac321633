// Package storytext turns uploaded story files into plain narration text.
package storytext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Story is the extracted narration input.
type Story struct {
	Content string
	Pages   int
}

// SupportedTypes lists the upload formats narration accepts.
func SupportedTypes() []string {
	return []string{".pdf", ".txt"}
}

// Extract pulls narration text out of an uploaded story file.
func Extract(data io.ReaderAt, size int64, fileType string) (*Story, error) {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf", "application/pdf":
		return extractPDF(data, size)
	case "txt", "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported story file type: %s", fileType)
	}
}

func extractPDF(data io.ReaderAt, size int64) (*Story, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// skip unreadable pages rather than losing the story
			continue
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}

	return &Story{
		Content: strings.TrimSpace(buf.String()),
		Pages:   numPages,
	}, nil
}

func extractTXT(data io.ReaderAt, size int64) (*Story, error) {
	buf := make([]byte, size)
	if _, err := data.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}

	return &Story{
		Content: string(bytes.TrimSpace(buf)),
		Pages:   1,
	}, nil
}
