package rendering

import (
	"fmt"
	"strings"

	"tailorcv/internal/errors"
)

// Format is an output document format.
type Format string

const (
	PDF  Format = "pdf"
	DOCX Format = "docx"
)

// ParseFormat accepts "pdf" or "docx", case-insensitively and with an
// optional leading dot. Anything else is an input error.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")) {
	case PDF:
		return PDF, nil
	case DOCX:
		return DOCX, nil
	}
	return "", errors.NewValidationError(
		errors.ErrCodeInvalidOutputFormat,
		fmt.Sprintf("unsupported output format %q, expected pdf or docx", s),
		nil,
	).WithContext("output_format", s)
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == PDF || f == DOCX
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == DOCX {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/pdf"
}

// Extension is the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}
