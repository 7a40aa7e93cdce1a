package resume

import (
	"regexp"
	"strings"
)

// ParseOptions tunes Parse.
type ParseOptions struct {
	// OnDegrade is called for lines carrying markup the dialect does not
	// support. Such lines are kept as paragraphs.
	OnDegrade func(line int, text, reason string)
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*+]\s+|•\s*)(.*)$`)
	ruleRe    = regexp.MustCompile(`^\s*([-*_])(?:\s*[-*_]){2,}\s*$`)

	degradeChecks = []struct {
		re     *regexp.Regexp
		reason string
	}{
		{regexp.MustCompile(`^\s*\|.*\|\s*$`), "table row"},
		{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), "image"},
		{regexp.MustCompile(`(?i)<\s*(img|svg|table|div|span|br)\b`), "html"},
		{regexp.MustCompile("^\\s*```"), "code fence"},
		{regexp.MustCompile(`^\s*>`), "blockquote"},
	}
)

// Parse turns markdown into a Document. It never fails; anything it does
// not recognise becomes a paragraph.
func Parse(markdown string) *Document {
	return ParseWith(markdown, ParseOptions{})
}

// ParseWith is Parse with options.
func ParseWith(markdown string, opts ParseOptions) *Document {
	markdown = strings.ToValidUTF8(markdown, "�")
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	doc := &Document{Blocks: make([]Block, 0, len(lines))}
	contactSeen := false

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" || ruleRe.MatchString(line) {
			continue
		}

		if m := headingRe.FindStringSubmatch(strings.TrimLeft(line, " \t")); m != nil {
			spans := parseInline(m[2])
			doc.Blocks = append(doc.Blocks, Block{
				Kind:  KindHeading,
				Level: len(m[1]),
				Text:  spansText(spans),
				Spans: spans,
				Line:  lineNo,
			})
			continue
		}

		kind := KindParagraph
		content := strings.TrimSpace(line)
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			kind = KindBullet
			content = strings.TrimSpace(m[1])
		}

		if opts.OnDegrade != nil {
			for _, c := range degradeChecks {
				if c.re.MatchString(line) {
					opts.OnDegrade(lineNo, line, c.reason)
					break
				}
			}
		}

		if !contactSeen && looksLikeContact(content) {
			contactSeen = true
			fields := splitContact(content)
			if fields.Name == "" {
				fields.Name = inferName(doc.Blocks)
			}
			spans := linkify(parseInline(content), literalFinder(fields.Links))
			doc.Blocks = append(doc.Blocks, Block{
				Kind:    KindContact,
				Text:    spansText(spans),
				Spans:   spans,
				Contact: &fields,
				Line:    lineNo,
			})
			continue
		}

		spans := parseInline(content)
		doc.Blocks = append(doc.Blocks, Block{
			Kind:  kind,
			Text:  spansText(spans),
			Spans: spans,
			Line:  lineNo,
		})
	}
	return doc
}

// inferName picks the candidate's name from what precedes the contact
// line: a leading level 1 heading, or a short paragraph right before it.
func inferName(prev []Block) string {
	for _, b := range prev {
		if b.Kind == KindHeading {
			if _, known := headingSection(b); b.Level == 1 && !known {
				return b.Text
			}
			break
		}
	}
	if n := len(prev); n > 0 {
		last := prev[n-1]
		if last.Kind == KindParagraph && len(strings.Fields(last.Text)) <= 5 && !strings.ContainsAny(last.Text, "0123456789@") {
			return last.Text
		}
	}
	return ""
}

func spansText(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
