package rendering

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

const (
	bulletIndent = 0.18 // inches
	partGap      = 0.08
	ptPerInch    = 72.0
)

var linkColor = [3]int{20, 60, 160}

type pdfWriter struct {
	pdf  *fpdf.Fpdf
	spec templates.Spec
	plan plan
	tr   func(string) string

	pageW     float64
	textW     float64
	lineH     float64
	fontSize  float64
	fontStyle string
}

func renderPDF(spec templates.Spec, p plan, meta Metadata) ([]byte, error) {
	pdf := fpdf.New("P", "in", "Letter", "")
	m := spec.Margins
	pdf.SetMargins(m.Left, m.Top, m.Right)
	pdf.SetAutoPageBreak(true, m.Bottom)
	pdf.SetCreator(meta.creator(), true)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}

	pageW, _ := pdf.GetPageSize()
	w := &pdfWriter{
		pdf:   pdf,
		spec:  spec,
		plan:  p,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		pageW: pageW,
		textW: pageW - m.Left - m.Right,
		lineH: spec.BodySize * spec.LineHeight / ptPerInch,
	}
	pdf.SetAcceptPageBreakFunc(w.breakPage)

	pdf.AddPage()
	w.setFont("", spec.BodySize)
	w.header()
	w.columns()

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("pdf layout: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// breakPage continues the current column on the next page, reusing pages
// an earlier column already created.
func (w *pdfWriter) breakPage() bool {
	x := w.pdf.GetX()
	next := w.pdf.PageNo() + 1
	if next <= w.pdf.PageCount() {
		w.pdf.SetPage(next)
		w.refreshFont()
	} else {
		w.pdf.AddPage()
	}
	w.pdf.SetXY(x, w.spec.Margins.Top)
	return false
}

func (w *pdfWriter) setFont(style string, size float64) {
	w.fontStyle, w.fontSize = style, size
	w.pdf.SetFont(w.spec.PDFFont, style, size)
}

// refreshFont re-emits the current font into the page being written,
// which may last have seen a different one.
func (w *pdfWriter) refreshFont() {
	w.pdf.SetFontSize(w.fontSize)
}

func (w *pdfWriter) header() {
	pdf, spec := w.pdf, w.spec
	align := "L"
	if spec.CenterName {
		align = "C"
	}

	if w.plan.name != "" {
		w.setFont("B", spec.NameSize)
		pdf.CellFormat(0, spec.NameSize*1.25/ptPerInch, w.tr(w.plan.name), "", 1, align, false, 0, "")
	}

	if c := w.plan.contact; c != nil {
		w.setFont("", spec.BodySize)
		w.inlineContact(contactItems(*c), spec.CenterName)
		pdf.Ln(w.lineH)
	}

	for _, b := range w.plan.intro {
		w.block(b)
	}

	if spec.Layout == templates.TwoColumn {
		y := pdf.GetY() + 0.04
		pdf.SetDrawColor(120, 120, 120)
		pdf.SetLineWidth(0.01)
		pdf.Line(spec.Margins.Left, y, w.pageW-spec.Margins.Right, y)
		pdf.SetY(y + 0.1)
	}
}

// inlineContact writes contact items on one line separated by bars,
// centered when there is room.
func (w *pdfWriter) inlineContact(items []contactItem, center bool) {
	const sep = "  |  "
	if center {
		width := 0.0
		for i, it := range items {
			if i > 0 {
				width += w.pdf.GetStringWidth(sep)
			}
			width += w.pdf.GetStringWidth(w.tr(it.text))
		}
		if width < w.textW {
			w.pdf.SetX(w.spec.Margins.Left + (w.textW-width)/2)
		}
	}
	for i, it := range items {
		if i > 0 {
			w.pdf.Write(w.lineH, sep)
		}
		w.writeText(it.text, it.href, w.fontStyle)
	}
}

func (w *pdfWriter) columns() {
	pdf, m := w.pdf, w.spec.Margins
	startPage, startY := pdf.PageNo(), pdf.GetY()

	offset := 0.0
	for i, col := range w.plan.columns {
		width := col.share * w.textW
		x := m.Left + offset
		inner := width
		if len(w.plan.columns) > 1 {
			if i > 0 {
				x += w.spec.Gutter / 2
			}
			inner -= w.spec.Gutter / 2
		}
		offset += width

		if i > 0 {
			pdf.SetPage(startPage)
			w.refreshFont()
		}
		pdf.SetLeftMargin(x)
		pdf.SetRightMargin(w.pageW - x - inner)
		pdf.SetXY(x, startY)

		for _, part := range col.parts {
			w.part(part, inner)
		}
	}

	pdf.SetLeftMargin(m.Left)
	pdf.SetRightMargin(m.Right)
	pdf.SetPage(pdf.PageCount())
}

func (w *pdfWriter) part(p resume.Part, width float64) {
	pdf, spec := w.pdf, w.spec
	if title := headerTitle(p, spec); title != "" {
		pdf.Ln(partGap)
		w.setFont("B", spec.HeadSize)
		pdf.CellFormat(width, spec.HeadSize*1.3/ptPerInch, w.tr(title), "", 1, "L", false, 0, "")
		if spec.HeaderRule {
			y := pdf.GetY()
			left, _, _, _ := pdf.GetMargins()
			pdf.SetDrawColor(0, 0, 0)
			pdf.SetLineWidth(0.008)
			pdf.Line(left, y, left+width, y)
			pdf.SetY(y + 0.04)
		}
		w.setFont("", spec.BodySize)
	}
	for _, b := range p.Blocks {
		w.block(b)
	}
}

func (w *pdfWriter) block(b resume.Block) {
	pdf, spec := w.pdf, w.spec
	switch b.Kind {
	case resume.KindHeading:
		w.setFont("B", spec.BodySize+0.5)
		w.spans(b.Spans, true)
		pdf.Ln(w.lineH)
		w.setFont("", spec.BodySize)
	case resume.KindBullet:
		left, _, _, _ := pdf.GetMargins()
		pdf.SetX(left)
		w.setFont("", spec.BodySize)
		pdf.CellFormat(bulletIndent, w.lineH, w.tr("•"), "", 0, "L", false, 0, "")
		pdf.SetLeftMargin(left + bulletIndent)
		w.spans(b.Spans, false)
		pdf.Ln(w.lineH)
		pdf.SetLeftMargin(left)
		pdf.SetX(left)
	case resume.KindContact:
		if b.Contact == nil {
			return
		}
		w.setFont("", spec.BodySize)
		if spec.Layout == templates.TwoColumn {
			for _, it := range contactItems(*b.Contact) {
				w.writeText(it.text, it.href, "")
				pdf.Ln(w.lineH)
			}
			return
		}
		w.inlineContact(contactItems(*b.Contact), false)
		pdf.Ln(w.lineH)
	default:
		w.setFont("", spec.BodySize)
		w.spans(b.Spans, false)
		pdf.Ln(w.lineH)
	}
}

func (w *pdfWriter) spans(spans []resume.Span, bold bool) {
	for _, s := range spans {
		style := ""
		if s.Bold || bold {
			style += "B"
		}
		if s.Italic {
			style += "I"
		}
		w.writeText(s.Text, s.Link, style)
	}
}

// writeText writes a run of flowing text; runs with a target become link
// annotations.
func (w *pdfWriter) writeText(text, href, style string) {
	text = w.tr(w.plan.text(text))
	if href == "" {
		w.setFont(style, w.fontSize)
		w.pdf.Write(w.lineH, text)
		return
	}
	w.setFont(style+"U", w.fontSize)
	w.pdf.SetTextColor(linkColor[0], linkColor[1], linkColor[2])
	w.pdf.WriteLinkString(w.lineH, text, href)
	w.pdf.SetTextColor(0, 0, 0)
	w.setFont(strings.TrimSuffix(style, "U"), w.fontSize)
}
