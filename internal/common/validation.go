package common

import (
	"fmt"
	"slices"

	"tailorcv/internal/templates"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ResolveTemplate parses a template flag, falling back to the configured
// default when the flag is empty.
func ResolveTemplate(flag, configured string) (templates.Template, error) {
	name := flag
	if name == "" {
		name = configured
	}
	if name == "" {
		return templates.Original, nil
	}
	return templates.Parse(name)
}
