package validation

import "errors"

var (
	ErrMissingFile     = errors.New("file is required")
	ErrInvalidFileType = errors.New("only PDF files are supported, export the presentation to .pdf first")
	ErrFileTooLarge    = errors.New("file size exceeds 50MB limit")
	ErrEmptyFile       = errors.New("file is empty")
)
