// Package resume parses the constrained markdown dialect résumés are written
// in into an ordered sequence of typed blocks. Both the scorer and the
// renderer work from this representation.
package resume

import (
	"strings"
)

// Kind tags a block.
type Kind int

const (
	KindHeading Kind = iota + 1
	KindBullet
	KindParagraph
	KindContact
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindBullet:
		return "bullet"
	case KindParagraph:
		return "paragraph"
	case KindContact:
		return "contact"
	default:
		return "unknown"
	}
}

// Span is a run of text sharing one inline style.
type Span struct {
	Text   string `json:"text"`
	Bold   bool   `json:"bold,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Link   string `json:"link,omitempty"`
}

// ContactFields are the parts of a contact line.
type ContactFields struct {
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Links []string `json:"links,omitempty"`
	Other []string `json:"other,omitempty"`
}

// Block is one parsed unit of content.
type Block struct {
	Kind    Kind           `json:"kind"`
	Level   int            `json:"level,omitempty"` // headings only
	Text    string         `json:"text"`
	Spans   []Span         `json:"spans,omitempty"`
	Contact *ContactFields `json:"contact,omitempty"`
	Line    int            `json:"line"`
}

// Links returns the link targets carried by the block's spans.
func (b Block) Links() []string {
	var links []string
	for _, s := range b.Spans {
		if s.Link != "" {
			links = append(links, s.Link)
		}
	}
	return links
}

// Part is a contiguous run of blocks under one section heading. The
// preamble before the first section heading has a nil Heading.
type Part struct {
	Section Section
	Title   string
	Heading *Block
	Blocks  []Block
}

// Document is a parsed résumé. Block order matches source line order.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// Parts partitions the document by its section headings. Level 1 and 2
// headings always open a new part; deeper headings open one only when they
// are an exact section alias, otherwise they stay inside the current part.
// A leading level 1 heading that names no section is treated as the
// candidate's name and kept in the preamble.
func (d *Document) Parts() []Part {
	parts := []Part{{}}
	for i := range d.Blocks {
		b := d.Blocks[i]
		if b.Kind == KindHeading {
			section, known := headingSection(b)
			preambleName := b.Level == 1 && !known && len(parts) == 1 && !hasHeading(parts[0].Blocks)
			opens := !preambleName && (b.Level <= 2 || known)
			if opens {
				heading := d.Blocks[i]
				parts = append(parts, Part{Section: section, Title: b.Text, Heading: &heading})
				continue
			}
		}
		last := &parts[len(parts)-1]
		last.Blocks = append(last.Blocks, b)
	}
	if len(parts[0].Blocks) == 0 {
		parts = parts[1:]
	}
	return parts
}

func hasHeading(blocks []Block) bool {
	for _, b := range blocks {
		if b.Kind == KindHeading {
			return true
		}
	}
	return false
}

// Has reports whether a heading names the section. Contact is also present
// when the document carries a contact line.
func (d *Document) Has(s Section) bool {
	for _, b := range d.Blocks {
		if b.Kind == KindHeading {
			if got, ok := headingSection(b); ok && got == s {
				return true
			}
		}
		if s == SectionContact && b.Kind == KindContact {
			return true
		}
	}
	return false
}

// Sections lists the known sections present, in first-appearance order.
func (d *Document) Sections() []Section {
	seen := make(map[Section]bool)
	var out []Section
	for _, b := range d.Blocks {
		var s Section
		switch b.Kind {
		case KindHeading:
			got, ok := headingSection(b)
			if !ok {
				continue
			}
			s = got
		case KindContact:
			s = SectionContact
		default:
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// SectionBlocks returns the blocks of every part belonging to s, without
// the section headings themselves.
func (d *Document) SectionBlocks(s Section) []Block {
	var out []Block
	for _, p := range d.Parts() {
		if p.Section == s {
			out = append(out, p.Blocks...)
		}
	}
	return out
}

// SectionText joins the text of the given sections' blocks.
func (d *Document) SectionText(sections ...Section) string {
	var sb strings.Builder
	for _, s := range sections {
		for _, b := range d.SectionBlocks(s) {
			sb.WriteString(b.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Headings returns every heading block.
func (d *Document) Headings() []Block {
	return d.filter(KindHeading)
}

// Bullets returns every bullet block.
func (d *Document) Bullets() []Block {
	return d.filter(KindBullet)
}

func (d *Document) filter(k Kind) []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Kind == k {
			out = append(out, b)
		}
	}
	return out
}

// Text joins the text of all blocks, one per line.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		sb.WriteString(b.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// BodyText joins the text of all non-heading blocks.
func (d *Document) BodyText() string {
	var sb strings.Builder
	for _, b := range d.Blocks {
		if b.Kind == KindHeading {
			continue
		}
		sb.WriteString(b.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Contact returns the fields of the contact line, if there is one.
func (d *Document) Contact() (ContactFields, bool) {
	for _, b := range d.Blocks {
		if b.Kind == KindContact && b.Contact != nil {
			return *b.Contact, true
		}
	}
	return ContactFields{}, false
}

// Links returns every distinct link target in document order.
func (d *Document) Links() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range d.Blocks {
		for _, l := range b.Links() {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

// Empty reports whether the document has no blocks.
func (d *Document) Empty() bool {
	return len(d.Blocks) == 0
}
