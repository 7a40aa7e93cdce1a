// Package utils holds path and size helpers shared by the CLI and server.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Kind is the résumé file type implied by an extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindMarkdown
	KindText
	KindPDF
	KindDOCX
)

var kindNames = [...]string{"unknown", "markdown", "text", "pdf", "docx"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Document reports whether text must be extracted from the file.
func (k Kind) Document() bool { return k == KindPDF || k == KindDOCX }

// Readable reports whether the file can be used as plain text directly.
func (k Kind) Readable() bool { return k == KindMarkdown || k == KindText }

// KindOf classifies a path by its extension, case-insensitively.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return KindMarkdown
	case ".txt", ".text":
		return KindText
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	}
	return KindUnknown
}

// CheckReadable fails unless path names a regular file that can be opened.
func CheckReadable(path string) error {
	if path == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("file does not exist: %s", path)
	case err != nil:
		return fmt.Errorf("cannot access %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return f.Close()
}

// PrepareOutput makes sure the parent directory of path exists. Empty and
// "-" mean stdout.
func PrepareOutput(path string) error {
	if path == "" || path == "-" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	return nil
}

// HumanSize formats a byte count with binary units, e.g. "500 KiB".
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
