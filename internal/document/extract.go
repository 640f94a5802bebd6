package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument means the source yielded no extractable text.
var ErrEmptyDocument = errors.New("document has no extractable text")

// ErrNotPDF is returned when the input does not start with a PDF header.
var ErrNotPDF = errors.New("file is not a PDF document")

// ExtractText reads the PDF at path and returns its plain text with
// whitespace collapsed.
func ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ExtractPDF(data)
}

// ExtractPDF extracts plain text from an in-memory PDF.
func ExtractPDF(data []byte) (text string, err error) {
	if !isPDF(data) {
		return "", ErrNotPDF
	}
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	text = collapseWhitespace(string(b))
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// SaveTempFile saves data under the OS temp directory with a unique prefix.
// The caller owns removal of the returned path.
func SaveTempFile(data []byte, filename string) (string, error) {
	tempFile := filepath.Join(os.TempDir(), uuid.New().String()+"_"+filepath.Base(filename))
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save temporary file: %w", err)
	}
	return tempFile, nil
}
