package rendering

import (
	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

// column is a vertical flow of parts taking share of the text width.
type column struct {
	share float64
	parts []resume.Part
}

// plan is what a layout strategy decides; the PDF and DOCX writers only
// draw it.
type plan struct {
	name  string
	intro []resume.Block // preamble text shown under the name
	// contact is drawn in the page header when set. Layouts that give
	// contact details a column leave it nil and place them in a part.
	contact   *resume.ContactFields
	columns   []column
	transform func(string) string
}

func (p plan) text(s string) string {
	if p.transform == nil {
		return s
	}
	return p.transform(s)
}

// strategy turns a document into a plan.
type strategy interface {
	plan(doc *resume.Document, spec templates.Spec) plan
}

func defaultStrategies() [3]strategy {
	return [3]strategy{
		templates.Original: originalLayout{},
		templates.Modern:   modernLayout{},
		templates.Harvard:  harvardLayout{},
	}
}

// preamble is what precedes the first section heading.
type preamble struct {
	name    string
	contact *resume.ContactFields
	intro   []resume.Block
}

func splitPreamble(doc *resume.Document) (preamble, []resume.Part) {
	var pre preamble
	parts := doc.Parts()
	if len(parts) > 0 && parts[0].Heading == nil {
		for _, b := range parts[0].Blocks {
			switch {
			case b.Kind == resume.KindHeading && pre.name == "":
				pre.name = b.Text
			case b.Kind == resume.KindContact && b.Contact != nil:
				c := *b.Contact
				pre.contact = &c
			default:
				pre.intro = append(pre.intro, b)
			}
		}
		parts = parts[1:]
	}
	// A contact line inside a section is drawn in place; it still names
	// the candidate when nothing else does.
	if pre.name == "" {
		if c, ok := doc.Contact(); ok {
			pre.name = c.Name
		}
	}
	return pre, parts
}

// originalLayout is a single column in document order.
type originalLayout struct{}

func (originalLayout) plan(doc *resume.Document, _ templates.Spec) plan {
	pre, parts := splitPreamble(doc)
	return plan{
		name:    pre.name,
		intro:   pre.intro,
		contact: pre.contact,
		columns: []column{{share: 1, parts: parts}},
	}
}

// harvardLayout is a single column with normalized dates.
type harvardLayout struct{}

func (harvardLayout) plan(doc *resume.Document, spec templates.Spec) plan {
	p := originalLayout{}.plan(doc, spec)
	p.transform = NormalizeDates
	return p
}

// modernLayout puts experience, education and everything else on the left
// and contact, summary and skills on the right. The left column is written
// first so text extraction reads it before the right one.
type modernLayout struct{}

func (modernLayout) plan(doc *resume.Document, spec templates.Spec) plan {
	pre, parts := splitPreamble(doc)

	var left, contact, summary, skills []resume.Part
	for _, p := range parts {
		switch p.Section {
		case resume.SectionContact:
			contact = append(contact, p)
		case resume.SectionSummary:
			summary = append(summary, p)
		case resume.SectionSkills:
			skills = append(skills, p)
		default:
			left = append(left, p)
		}
	}

	if pre.contact != nil {
		block := resume.Block{Kind: resume.KindContact, Contact: pre.contact}
		if len(contact) > 0 {
			contact[0].Blocks = append([]resume.Block{block}, contact[0].Blocks...)
		} else {
			contact = []resume.Part{{Section: resume.SectionContact, Title: resume.SectionContact.Title(), Blocks: []resume.Block{block}}}
		}
	}

	right := make([]resume.Part, 0, len(contact)+len(summary)+len(skills))
	right = append(right, contact...)
	right = append(right, summary...)
	right = append(right, skills...)

	return plan{
		name:  pre.name,
		intro: pre.intro,
		columns: []column{
			{share: spec.LeftRatio, parts: left},
			{share: 1 - spec.LeftRatio, parts: right},
		},
	}
}

// headerTitle returns the title a part is drawn with, or "" for parts
// that carry no heading of their own.
func headerTitle(p resume.Part, spec templates.Spec) string {
	if p.Heading == nil && p.Title == "" {
		return ""
	}
	return spec.HeaderCase.Apply(p.Title)
}

type contactItem struct {
	text string
	href string
}

// contactItems lists the contact details to draw, name excluded.
func contactItems(c resume.ContactFields) []contactItem {
	var items []contactItem
	if c.Email != "" {
		items = append(items, contactItem{text: c.Email, href: "mailto:" + c.Email})
	}
	if c.Phone != "" {
		items = append(items, contactItem{text: c.Phone})
	}
	for _, l := range c.Links {
		items = append(items, contactItem{text: l, href: resume.Href(l)})
	}
	for _, o := range c.Other {
		items = append(items, contactItem{text: o})
	}
	return items
}
