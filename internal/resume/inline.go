package resume

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	mdLinkRe   = regexp.MustCompile(`^\[([^\]]*)\]\(([^)\s]+)\)`)
	bareLinkRe = regexp.MustCompile(`(?i)\b(?:https?://[^\s<>()|]+|www\.[^\s<>()|]+|(?:[a-z0-9-]+\.)*(?:linkedin\.com|github\.com|gitlab\.com|bitbucket\.org|medium\.com|behance\.net|dribbble\.com|stackoverflow\.com|kaggle\.com)(?:/[^\s<>()|]*)?)`)
)

// Href turns a link as written into an absolute URL.
func Href(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") || strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		return raw
	}
	return "https://" + raw
}

// parseInline splits text into styled spans. Markers that are never
// closed stay in the text as written.
func parseInline(s string) []Span {
	var (
		spans  []Span
		buf    strings.Builder
		bold   string
		italic string
	)
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = appendSpan(spans, Span{Text: buf.String(), Bold: bold != "", Italic: italic != ""})
		buf.Reset()
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c == '[' {
			if m := mdLinkRe.FindStringSubmatch(s[i:]); m != nil {
				flush()
				text := spansText(parseInline(m[1]))
				if text == "" {
					text = m[2]
				}
				spans = append(spans, Span{Text: text, Bold: bold != "", Italic: italic != "", Link: Href(m[2])})
				i += len(m[0])
				continue
			}
		}
		if c != '*' && c != '_' {
			buf.WriteByte(c)
			i++
			continue
		}

		run := 1
		for i+run < len(s) && s[i+run] == c && run < 3 {
			run++
		}
		single, double := string(c), strings.Repeat(string(c), 2)
		rest := s[i+run:]
		opening := canOpen(s, i, run, c)

		switch {
		case run == 3 && bold == double && italic == single:
			flush()
			bold, italic = "", ""
		case run == 3 && bold == "" && italic == "" && opening && strings.Contains(rest, strings.Repeat(single, 3)):
			flush()
			bold, italic = double, single
		case run >= 2 && bold == double:
			flush()
			bold = ""
			run = 2
		case run >= 2 && bold == "" && opening && strings.Contains(rest, double):
			flush()
			bold = double
			run = 2
		case run == 1 && italic == single && canClose(s, i+1, c):
			flush()
			italic = ""
		case run == 1 && italic == "" && opening && strings.Contains(rest, single):
			flush()
			italic = single
		default:
			buf.WriteString(s[i : i+run])
		}
		i += run
	}
	flush()
	return linkify(spans, bareLinkRe.FindAllStringIndex)
}

func canOpen(s string, i, run int, c byte) bool {
	next := i + run
	if next >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[next:])
	if unicode.IsSpace(r) {
		return false
	}
	if c == '_' && i > 0 {
		p, _ := utf8.DecodeLastRuneInString(s[:i])
		if unicode.IsLetter(p) || unicode.IsDigit(p) {
			return false
		}
	}
	return true
}

func canClose(s string, next int, c byte) bool {
	if c != '_' || next >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[next:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func appendSpan(spans []Span, s Span) []Span {
	if n := len(spans); n > 0 {
		last := &spans[n-1]
		if last.Link == "" && s.Link == "" && last.Bold == s.Bold && last.Italic == s.Italic {
			last.Text += s.Text
			return spans
		}
	}
	return append(spans, s)
}

// linkify splits unlinked spans around the ranges find reports and marks
// those ranges as links.
func linkify(spans []Span, find func(string, int) [][]int) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Link != "" {
			out = append(out, sp)
			continue
		}
		matches := find(sp.Text, -1)
		if len(matches) == 0 {
			out = append(out, sp)
			continue
		}
		pos := 0
		for _, m := range matches {
			start, end := m[0], trimLinkEnd(sp.Text, m[0], m[1])
			if start < pos || end <= start || insideWord(sp.Text, start) {
				continue
			}
			if start > pos {
				out = append(out, Span{Text: sp.Text[pos:start], Bold: sp.Bold, Italic: sp.Italic})
			}
			target := sp.Text[start:end]
			out = append(out, Span{Text: target, Bold: sp.Bold, Italic: sp.Italic, Link: Href(target)})
			pos = end
		}
		if pos < len(sp.Text) {
			out = append(out, Span{Text: sp.Text[pos:], Bold: sp.Bold, Italic: sp.Italic})
		}
	}
	return out
}

// insideWord reports whether a match starts mid-token, as a host inside an
// email address does.
func insideWord(s string, start int) bool {
	if start == 0 {
		return false
	}
	p, _ := utf8.DecodeLastRuneInString(s[:start])
	return p == '@' || p == '.' || p == '-' || p == '/' || unicode.IsLetter(p) || unicode.IsDigit(p)
}

func trimLinkEnd(s string, start, end int) int {
	for end > start && strings.ContainsRune(".,;:!?'\")]", rune(s[end-1])) {
		end--
	}
	return end
}

// literalFinder finds the given terms verbatim, in addition to bare links.
func literalFinder(terms []string) func(string, int) [][]int {
	return func(s string, n int) [][]int {
		found := bareLinkRe.FindAllStringIndex(s, n)
		for _, term := range terms {
			if term == "" {
				continue
			}
			for off := 0; ; {
				idx := strings.Index(s[off:], term)
				if idx < 0 {
					break
				}
				found = append(found, []int{off + idx, off + idx + len(term)})
				off += idx + len(term)
			}
		}
		sort.Slice(found, func(i, j int) bool {
			if found[i][0] != found[j][0] {
				return found[i][0] < found[j][0]
			}
			return found[i][1] > found[j][1]
		})
		return found
	}
}
