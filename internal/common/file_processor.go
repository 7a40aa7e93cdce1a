package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tailorcv/internal/errors"
	"tailorcv/internal/extract"
	"tailorcv/internal/rendering"
	"tailorcv/internal/scoring"
	"tailorcv/internal/utils"
)

// ResumeFile is a résumé loaded from disk. Documents are converted to text
// the way a parser would read them.
type ResumeFile struct {
	Path   string
	Text   string
	Size   int64
	Format scoring.FileFormat
}

// FileProcessor handles common file operations
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64 // zero means unlimited
}

// NewFileProcessor creates a file processor that refuses files over maxSize bytes.
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadBytes reads a whole file, enforcing the size limit.
func (fp *FileProcessor) ReadBytes(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil && fp.logger != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	var r io.Reader = file
	if fp.maxSize > 0 {
		r = io.LimitReader(file, fp.maxSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	if fp.maxSize > 0 && int64(len(content)) > fp.maxSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s exceeds the %s limit", filename, utils.HumanSize(fp.maxSize)), nil).
			WithContext("filename", filename)
	}
	return content, nil
}

// ReadFile reads a text file.
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	content, err := fp.ReadBytes(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// LoadResume reads a markdown, PDF or DOCX résumé.
func (fp *FileProcessor) LoadResume(filename string) (*ResumeFile, error) {
	if err := utils.CheckReadable(filename); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidInputFile,
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	data, err := fp.ReadBytes(filename)
	if err != nil {
		return nil, err
	}

	rf := &ResumeFile{Path: filename, Size: int64(len(data)), Format: scoring.FormatFromPath(filename)}
	if !utils.KindOf(filename).Document() {
		rf.Text = string(data)
		return rf, nil
	}

	rf.Text, err = extract.Text(data, rendering.Format(rf.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if fp.logger != nil {
		fp.logger.Debug("Extracted document text", "filename", filename, "bytes", rf.Size, "chars", len(rf.Text))
	}
	return rf, nil
}

// WriteFile writes content to a file, creating parent directories.
func (fp *FileProcessor) WriteFile(filename string, content []byte) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeFileNotWritable,
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, content, 0600)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateAndReadFiles validates and reads multiple input files
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		if err := utils.CheckReadable(filename); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidInputFile,
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		if !utils.KindOf(filename).Readable() && fp.logger != nil {
			fp.logger.Warn("File may not be a text file", "filename", filename)
		}

		content, err := fp.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		contents[i] = content
	}

	return contents, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.PrepareOutput(filename); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidOutputFile,
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
