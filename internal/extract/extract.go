// Package extract reads the text and link targets back out of rendered PDF
// and DOCX documents, the way an applicant tracking system would see them.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"tailorcv/internal/errors"
	"tailorcv/internal/rendering"
)

// Content is what a parser can recover from a document.
type Content struct {
	Text  string
	Links []string // distinct link targets in document order
	Pages int      // zero for DOCX
}

// Extract reads text and links from a document of the given format.
func Extract(data []byte, format rendering.Format) (*Content, error) {
	switch format {
	case rendering.PDF:
		return extractPDF(data)
	case rendering.DOCX:
		return extractDOCX(data)
	}
	return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("cannot extract from %q documents", string(format)), nil)
}

// Text returns only the document text.
func Text(data []byte, format rendering.Format) (string, error) {
	c, err := Extract(data, format)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// PDFLinks returns the URI link annotation targets of a PDF.
func PDFLinks(data []byte) ([]string, error) {
	c, err := extractPDF(data)
	if err != nil {
		return nil, err
	}
	return c.Links, nil
}

// DOCXLinks returns the external hyperlink targets of a DOCX document.
func DOCXLinks(data []byte) ([]string, error) {
	links, err := documentLinks(data)
	if err != nil {
		return nil, extractFailed(rendering.DOCX, err)
	}
	return links, nil
}

func extractFailed(format rendering.Format, err error) error {
	return errors.NewIOError(errors.ErrCodeExtractFailed,
		fmt.Sprintf("failed to read %s document", format), err).WithContext("format", string(format))
}

func extractPDF(data []byte) (*Content, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extractFailed(rendering.PDF, err)
	}

	c := &Content{Pages: r.NumPage()}
	var text strings.Builder
	seen := make(map[string]bool)
	for i := 1; i <= c.Pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, extractFailed(rendering.PDF, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")

		annots := page.V.Key("Annots")
		for j := 0; j < annots.Len(); j++ {
			uri := annots.Index(j).Key("A").Key("URI").Text()
			if uri != "" && !seen[uri] {
				seen[uri] = true
				c.Links = append(c.Links, uri)
			}
		}
	}
	c.Text = text.String()
	return c, nil
}

func extractDOCX(data []byte) (*Content, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extractFailed(rendering.DOCX, err)
	}
	defer doc.Close()

	text, err := documentText(doc.Editable().GetContent())
	if err != nil {
		return nil, extractFailed(rendering.DOCX, err)
	}
	links, err := documentLinks(data)
	if err != nil {
		return nil, extractFailed(rendering.DOCX, err)
	}
	return &Content{Text: text, Links: links}, nil
}

// documentText flattens WordprocessingML into plain text with one line per
// paragraph.
func documentText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var b strings.Builder
	inText, inProps := false, false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				inProps = true
			case "t":
				inText = true
			case "tab":
				if !inProps {
					b.WriteString("\t")
				}
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr":
				inProps = false
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

type relationships struct {
	Items []struct {
		ID         string `xml:"Id,attr"`
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// documentLinks lists external hyperlink targets from the document
// relationships.
func documentLinks(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if f.Name != "word/_rels/document.xml.rels" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		var rels relationships
		if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
			return nil, err
		}
		var links []string
		seen := make(map[string]bool)
		for _, rel := range rels.Items {
			if !strings.HasSuffix(rel.Type, "/hyperlink") || seen[rel.Target] {
				continue
			}
			seen[rel.Target] = true
			links = append(links, rel.Target)
		}
		return links, nil
	}
	return nil, nil
}
