package validation

import (
	"bytes"
	"path/filepath"
	"strings"
)

var pdfSignature = []byte("%PDF-")

// ValidateUpload checks the declared name and size of an uploaded deck.
func ValidateUpload(filename string, size, maxSize int64) error {
	if filename == "" {
		return ErrMissingFile
	}
	if !IsPDFName(filename) {
		return ErrInvalidFileType
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && size > maxSize {
		return ErrFileTooLarge
	}
	return nil
}

func IsPDFName(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// HasPDFSignature reports whether data starts with the PDF header. Some
// producers emit a few junk bytes first, so the first KiB is searched.
func HasPDFSignature(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, pdfSignature)
}
