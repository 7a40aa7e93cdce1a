package rendering

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strings"
	"time"

	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

const (
	twipsPerInch = 1440
	hyperlinkRel = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	wordNS       = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

type docxWriter struct {
	spec  templates.Spec
	plan  plan
	body  strings.Builder
	links []string // hyperlink targets, relationship ids follow
}

func renderDOCX(spec templates.Spec, p plan, meta Metadata) ([]byte, error) {
	w := &docxWriter{spec: spec, plan: p}
	w.document()

	files := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", w.documentXML()},
		{"word/_rels/document.xml.rels", w.relsXML()},
		{"word/styles.xml", w.stylesXML()},
		{"docProps/core.xml", coreXML(meta)},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("docx part %s: %w", f.name, err)
		}
		if _, err := fw.Write([]byte(f.data)); err != nil {
			return nil, fmt.Errorf("docx part %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *docxWriter) document() {
	spec := w.spec
	align := ""
	if spec.CenterName {
		align = "center"
	}

	if w.plan.name != "" {
		w.paragraph(pPr{align: align, after: 60}, run{text: w.plan.name, bold: true, size: spec.NameSize})
	}
	if c := w.plan.contact; c != nil {
		w.contactLine(contactItems(*c), align)
	}
	for _, b := range w.plan.intro {
		w.block(b)
	}

	if len(w.plan.columns) > 1 {
		// The header is its own section so the columns start below it.
		w.body.WriteString(`<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="787878"/></w:pBdr>`)
		w.body.WriteString(w.sectPr(nil))
		w.body.WriteString(`</w:pPr></w:p>`)
	}

	for i, col := range w.plan.columns {
		if i > 0 {
			w.body.WriteString(`<w:p><w:r><w:br w:type="column"/></w:r></w:p>`)
		}
		for _, part := range col.parts {
			w.part(part)
		}
	}
	w.body.WriteString(w.sectPr(w.plan.columns))
}

// sectPr describes page size, margins and, for multi-column plans, the
// column widths of the section it closes.
func (w *docxWriter) sectPr(cols []column) string {
	m := w.spec.Margins
	var b strings.Builder
	b.WriteString(`<w:sectPr>`)
	if len(cols) > 1 {
		b.WriteString(`<w:type w:val="continuous"/>`)
	}
	fmt.Fprintf(&b, `<w:pgSz w:w="%d" w:h="%d"/>`, 12240, 15840)
	fmt.Fprintf(&b, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="720" w:footer="720" w:gutter="0"/>`,
		twips(m.Top), twips(m.Right), twips(m.Bottom), twips(m.Left))
	if len(cols) > 1 {
		textW := 8.5 - m.Left - m.Right - w.spec.Gutter
		fmt.Fprintf(&b, `<w:cols w:num="%d" w:space="%d" w:equalWidth="0">`, len(cols), twips(w.spec.Gutter))
		for i, c := range cols {
			if i < len(cols)-1 {
				fmt.Fprintf(&b, `<w:col w:w="%d" w:space="%d"/>`, twips(c.share*textW), twips(w.spec.Gutter))
			} else {
				fmt.Fprintf(&b, `<w:col w:w="%d"/>`, twips(c.share*textW))
			}
		}
		b.WriteString(`</w:cols>`)
	}
	b.WriteString(`</w:sectPr>`)
	return b.String()
}

func (w *docxWriter) part(p resume.Part) {
	if title := headerTitle(p, w.spec); title != "" {
		w.paragraph(pPr{before: 160, after: 60, rule: w.spec.HeaderRule, keepNext: true},
			run{text: title, bold: true, size: w.spec.HeadSize})
	}
	for _, b := range p.Blocks {
		w.block(b)
	}
}

func (w *docxWriter) block(b resume.Block) {
	switch b.Kind {
	case resume.KindHeading:
		w.paragraph(pPr{before: 80, keepNext: true}, w.runs(b.Spans, true)...)
	case resume.KindBullet:
		runs := append([]run{{text: "•\t"}}, w.runs(b.Spans, false)...)
		w.paragraph(pPr{indent: true}, runs...)
	case resume.KindContact:
		if b.Contact == nil {
			return
		}
		if len(w.plan.columns) > 1 {
			for _, it := range contactItems(*b.Contact) {
				w.paragraph(pPr{}, run{text: it.text, link: it.href})
			}
			return
		}
		w.contactLine(contactItems(*b.Contact), "")
	default:
		w.paragraph(pPr{}, w.runs(b.Spans, false)...)
	}
}

func (w *docxWriter) contactLine(items []contactItem, align string) {
	runs := make([]run, 0, 2*len(items))
	for i, it := range items {
		if i > 0 {
			runs = append(runs, run{text: "  |  "})
		}
		runs = append(runs, run{text: it.text, link: it.href})
	}
	w.paragraph(pPr{align: align, after: 120}, runs...)
}

func (w *docxWriter) runs(spans []resume.Span, bold bool) []run {
	runs := make([]run, 0, len(spans))
	for _, s := range spans {
		runs = append(runs, run{text: s.Text, bold: s.Bold || bold, italic: s.Italic, link: s.Link})
	}
	return runs
}

type pPr struct {
	align    string
	before   int // twentieths of a point
	after    int
	indent   bool
	rule     bool
	keepNext bool
}

type run struct {
	text   string
	bold   bool
	italic bool
	size   float64 // points, zero for the body size
	link   string
}

func (w *docxWriter) paragraph(p pPr, runs ...run) {
	b := &w.body
	b.WriteString(`<w:p><w:pPr>`)
	if p.keepNext {
		b.WriteString(`<w:keepNext/>`)
	}
	if p.rule {
		b.WriteString(`<w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="000000"/></w:pBdr>`)
	}
	if p.indent {
		b.WriteString(`<w:tabs><w:tab w:val="left" w:pos="360"/></w:tabs>`)
	}
	fmt.Fprintf(b, `<w:spacing w:before="%d" w:after="%d" w:line="%d" w:lineRule="auto"/>`,
		p.before, p.after, int(math.Round(240*w.spec.LineHeight)))
	if p.indent {
		b.WriteString(`<w:ind w:left="360" w:hanging="360"/>`)
	}
	if p.align != "" {
		fmt.Fprintf(b, `<w:jc w:val="%s"/>`, p.align)
	}
	b.WriteString(`</w:pPr>`)
	for _, r := range runs {
		w.run(r)
	}
	b.WriteString(`</w:p>`)
}

func (w *docxWriter) run(r run) {
	b := &w.body
	if r.link != "" {
		w.links = append(w.links, r.link)
		fmt.Fprintf(b, `<w:hyperlink r:id="%s">`, linkID(len(w.links)))
	}
	b.WriteString(`<w:r><w:rPr>`)
	if r.bold {
		b.WriteString(`<w:b/>`)
	}
	if r.italic {
		b.WriteString(`<w:i/>`)
	}
	if r.link != "" {
		b.WriteString(`<w:color w:val="143CA0"/>`)
	}
	if r.size > 0 {
		fmt.Fprintf(b, `<w:sz w:val="%d"/>`, halfPoints(r.size))
	}
	if r.link != "" {
		b.WriteString(`<w:u w:val="single"/>`)
	}
	b.WriteString(`</w:rPr>`)
	for i, seg := range strings.Split(w.plan.text(r.text), "\t") {
		if i > 0 {
			b.WriteString(`<w:tab/>`)
		}
		if seg == "" {
			continue
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		b.WriteString(escape(seg))
		b.WriteString(`</w:t>`)
	}
	b.WriteString(`</w:r>`)
	if r.link != "" {
		b.WriteString(`</w:hyperlink>`)
	}
}

func (w *docxWriter) documentXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document ` + wordNS + `><w:body>` + w.body.String() + `</w:body></w:document>`
}

func (w *docxWriter) relsXML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rIdStyles" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	for i, target := range w.links {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s" TargetMode="External"/>`,
			linkID(i+1), hyperlinkRel, escape(target))
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func (w *docxWriter) stylesXML() string {
	font := escape(w.spec.DOCXFont)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles %s><w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="%s" w:hAnsi="%s" w:cs="%s" w:eastAsia="%s"/><w:sz w:val="%d"/><w:szCs w:val="%d"/></w:rPr></w:rPrDefault><w:pPrDefault><w:pPr><w:spacing w:after="0"/></w:pPr></w:pPrDefault></w:docDefaults><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`,
		wordNS, font, font, font, font, halfPoints(w.spec.BodySize), halfPoints(w.spec.BodySize))
}

// coreXML carries timestamps only when the caller supplies one, so the same
// input always yields the same bytes.
func coreXML(meta Metadata) string {
	var dates string
	if !meta.Created.IsZero() {
		at := meta.Created.UTC().Format(time.RFC3339)
		dates = fmt.Sprintf(`<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created><dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`, at, at)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:title>%s</dc:title><dc:creator>%s</dc:creator><cp:lastModifiedBy>%s</cp:lastModifiedBy>%s</cp:coreProperties>`,
		escape(meta.Title), escape(meta.Author), escape(meta.creator()), dates)
}

func linkID(n int) string {
	return fmt.Sprintf("rIdLink%d", n)
}

func twips(inches float64) int {
	return int(math.Round(inches * twipsPerInch))
}

func halfPoints(pt float64) int {
	return int(math.Round(pt * 2))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
