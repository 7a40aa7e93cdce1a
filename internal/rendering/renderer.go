// Package rendering turns parsed resumes into PDF and DOCX documents laid
// out by one of the built-in templates.
package rendering

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"tailorcv/internal/errors"
	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

const defaultCreator = "tailorcv"

// Metadata is written into the document properties.
type Metadata struct {
	Title   string
	Author  string
	Creator string
	Created time.Time
}

func (m Metadata) creator() string {
	if m.Creator == "" {
		return defaultCreator
	}
	return m.Creator
}

// Result is a rendered document.
type Result struct {
	Data     []byte
	Template templates.Template // template actually used
	Format   Format
	FellBack bool // the requested template failed and original was used
}

// Renderer lays out and writes documents. It is safe for concurrent use.
type Renderer struct {
	strategies [3]strategy
	logger     *errors.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used to report template fallbacks.
func WithLogger(l *errors.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a renderer with the built-in layouts.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		strategies: defaultStrategies(),
		logger:     errors.NewLoggerWithWriter(io.Discard, slog.LevelError),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = NewRenderer()

// Render renders doc with the default renderer.
func Render(doc *resume.Document, tmpl templates.Template, format Format) ([]byte, error) {
	return defaultRenderer.Render(doc, tmpl, format)
}

// Render renders doc and returns the document bytes.
func (r *Renderer) Render(doc *resume.Document, tmpl templates.Template, format Format) ([]byte, error) {
	res, err := r.RenderWithResult(doc, tmpl, format, Metadata{})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// RenderWithResult renders doc with tmpl. If the template fails to lay out
// the document it is rendered again with the original template; only when
// that also fails is an error returned.
func (r *Renderer) RenderWithResult(doc *resume.Document, tmpl templates.Template, format Format, meta Metadata) (*Result, error) {
	if !tmpl.Valid() {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidTemplate,
			fmt.Sprintf("unknown template %s", tmpl), nil).WithContext("template", tmpl.String())
	}
	if !format.Valid() {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidOutputFormat,
			fmt.Sprintf("unsupported output format %q", string(format)), nil).WithContext("output_format", string(format))
	}
	if doc == nil {
		doc = &resume.Document{}
	}
	if meta.Title == "" {
		if c, ok := doc.Contact(); ok && c.Name != "" {
			meta.Title = c.Name + " - Resume"
		}
	}

	data, err := r.render(doc, tmpl, format, meta)
	if err == nil {
		return &Result{Data: data, Template: tmpl, Format: format}, nil
	}
	if tmpl == templates.Original {
		return nil, errors.NewRenderError(errors.ErrCodeRenderFailed, "failed to render document", err).
			WithContext("template", tmpl.String()).
			WithContext("format", string(format))
	}

	r.logger.Warn("template failed, falling back to original",
		"error_code", errors.ErrCodeRenderFallback,
		"template", tmpl.String(), "format", string(format), "error", err)

	data, fallbackErr := r.render(doc, templates.Original, format, meta)
	if fallbackErr != nil {
		return nil, errors.NewRenderError(errors.ErrCodeRenderFailed, "failed to render document", fallbackErr).
			WithContext("template", tmpl.String()).
			WithContext("format", string(format)).
			WithContext("template_error", err.Error())
	}
	return &Result{Data: data, Template: templates.Original, Format: format, FellBack: true}, nil
}

func (r *Renderer) render(doc *resume.Document, tmpl templates.Template, format Format, meta Metadata) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("%s layout panicked: %v", tmpl, p)
		}
	}()

	spec := tmpl.Spec()
	p := r.strategies[tmpl].plan(doc, spec)
	if meta.Author == "" {
		meta.Author = p.name
	}
	switch format {
	case DOCX:
		return renderDOCX(spec, p, meta)
	default:
		return renderPDF(spec, p, meta)
	}
}
