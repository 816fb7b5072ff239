// Package extractor turns uploaded lecture documents into plain text.
//
// Format is chosen strictly by file-name extension: pdf, docx and pptx are
// supported. Malformed input yields ErrCorruptDocument, anything else
// ErrUnsupportedFormat.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrCorruptDocument   = errors.New("corrupt document")
)

// ExtractText returns the plain text of data, interpreted according to the
// extension of fileName.
func ExtractText(data []byte, fileName string) (string, error) {
	ext := Extension(fileName)

	switch ext {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "pptx":
		return extractPPTX(data)
	}
	return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

// Extension is the lower-cased extension without the dot. A name without a
// dot is treated as its own extension.
func Extension(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return strings.ToLower(filepath.Base(fileName))
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func corrupt(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptDocument, format, err)
}
