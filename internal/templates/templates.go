// Package templates holds the closed set of résumé layouts and the static
// data each one carries. The table is read-only; callers receive copies.
package templates

import (
	"fmt"
	"strings"

	"tailorcv/internal/errors"
)

// Template identifies one of the supported layouts.
type Template int

const (
	Original Template = iota
	Modern
	Harvard
)

// FontFamily is the generic family a template sets its body text in.
type FontFamily string

const (
	Sans  FontFamily = "sans-serif"
	Serif FontFamily = "serif"
)

// Layout describes how sections are placed on the page.
type Layout int

const (
	SingleColumn Layout = iota
	TwoColumn
)

func (l Layout) String() string {
	if l == TwoColumn {
		return "two-column"
	}
	return "single-column"
}

// HeaderCase is the casing rule applied to section headers.
type HeaderCase int

const (
	UpperCase HeaderCase = iota
	AsWritten
)

// Apply returns the header text with the casing rule applied.
func (c HeaderCase) Apply(s string) string {
	if c == UpperCase {
		return strings.ToUpper(s)
	}
	return s
}

// Margins are page margins in inches.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// All returns the four margins in top, right, bottom, left order.
func (m Margins) All() [4]float64 {
	return [4]float64{m.Top, m.Right, m.Bottom, m.Left}
}

// Spec is the associated data of a template.
type Spec struct {
	Name       string
	Family     FontFamily
	PDFFont    string // core PDF font name
	DOCXFont   string
	Layout     Layout
	LeftRatio  float64 // share of the text width given to the left column
	Gutter     float64 // inches between columns
	HeaderCase HeaderCase
	Margins    Margins
	NameSize   float64
	HeadSize   float64
	BodySize   float64
	LineHeight float64 // multiple of the body size

	// NormalizeDates rewrites detected date tokens to "Jan 2006" form.
	NormalizeDates bool
	// CenterName centers the leading name heading.
	CenterName bool
	// HeaderRule draws a rule under each section header.
	HeaderRule bool

	BaseBonus   float64
	FormatBonus float64
}

var table = [...]Spec{
	Original: {
		Name:       "original",
		Family:     Sans,
		PDFFont:    "Helvetica",
		DOCXFont:   "Arial",
		Layout:     SingleColumn,
		LeftRatio:  1,
		HeaderCase: UpperCase,
		Margins:    Margins{Top: 0.75, Right: 0.75, Bottom: 0.75, Left: 0.75},
		NameSize:   18,
		HeadSize:   12,
		BodySize:   10,
		LineHeight: 1.4,
	},
	Modern: {
		Name:       "modern",
		Family:     Sans,
		PDFFont:    "Helvetica",
		DOCXFont:   "Calibri",
		Layout:     TwoColumn,
		LeftRatio:  0.60,
		Gutter:     0.3,
		HeaderCase: UpperCase,
		Margins:    Margins{Top: 0.6, Right: 0.6, Bottom: 0.6, Left: 0.6},
		NameSize:   22,
		HeadSize:   11,
		BodySize:   9.5,
		LineHeight: 1.4,
		HeaderRule: true,

		BaseBonus:   1,
		FormatBonus: 2,
	},
	Harvard: {
		Name:           "harvard",
		Family:         Serif,
		PDFFont:        "Times",
		DOCXFont:       "Times New Roman",
		Layout:         SingleColumn,
		LeftRatio:      1,
		HeaderCase:     UpperCase,
		Margins:        Margins{Top: 1, Right: 1, Bottom: 1, Left: 1},
		NameSize:       16,
		HeadSize:       11.5,
		BodySize:       11,
		LineHeight:     1.3,
		NormalizeDates: true,
		CenterName:     true,
		HeaderRule:     true,

		BaseBonus:   2,
		FormatBonus: 4,
	},
}

// Spec returns a copy of the template's data.
func (t Template) Spec() Spec {
	if !t.Valid() {
		return table[Original]
	}
	return table[t]
}

// Valid reports whether t is one of the declared templates.
func (t Template) Valid() bool {
	return t >= Original && int(t) < len(table)
}

func (t Template) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Template(%d)", int(t))
	}
	return table[t].Name
}

// MarshalText encodes the template as its identifier.
func (t Template) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid template %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts only the literal identifiers.
func (t *Template) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// All lists every template in declaration order.
func All() []Template {
	return []Template{Original, Modern, Harvard}
}

// Names lists the valid identifiers.
func Names() []string {
	names := make([]string, 0, len(table))
	for _, s := range table {
		names = append(names, s.Name)
	}
	return names
}

// Parse resolves a template identifier. Only the exact identifiers are
// accepted (surrounding whitespace aside); there is no silent default.
func Parse(name string) (Template, error) {
	trimmed := strings.TrimSpace(name)
	for i, s := range table {
		if s.Name == trimmed {
			return Template(i), nil
		}
	}
	return Original, errors.NewValidationError(
		errors.ErrCodeInvalidTemplate,
		fmt.Sprintf("unknown template %q, expected one of: %s", name, strings.Join(Names(), ", ")),
		nil,
	).WithContext("template", name)
}

// MustParse is Parse for static identifiers; it panics on error.
func MustParse(name string) Template {
	t, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return t
}
