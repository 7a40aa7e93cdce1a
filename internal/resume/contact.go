package resume

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b|\+\d[\d\s().-]{7,}\d`)

	contactLinkRe = regexp.MustCompile(`(?i)^(?:[a-z][a-z0-9+.-]*://\S+|(?:www\.)?(?:[a-z0-9-]+\.)+(?:com|org|net|io|dev|me|co|ai|app|info|tech|site|page|xyz|us|uk|ca|de|eu|in)(?:/\S*)?)$`)
	contactSepRe  = regexp.MustCompile(`\s*(?:\||•|·|\s[-–—]\s|\t|\s{2,})\s*`)
	contactLabel  = regexp.MustCompile(`(?i)^(?:e-?mail|phone|tel|mobile|cell|linkedin|github|gitlab|web|website|portfolio|site|blog|location|address)\s*:\s*`)
	mdLinkAnyRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
)

func looksLikeContact(s string) bool {
	return emailRe.MatchString(s) || phoneRe.MatchString(s)
}

// splitContact classifies the fields of a contact line. Fields are split
// on pipes, bullets, spaced dashes, tabs and runs of spaces; within a
// field, emails, links and phone numbers are pulled out by pattern and
// what remains is the name (first field only) or kept as other text.
func splitContact(line string) ContactFields {
	var f ContactFields

	plain := mdLinkAnyRe.ReplaceAllString(line, " $2 ")
	plain = strings.NewReplacer("**", "", "__", "", "*", "").Replace(plain)

	for i, field := range contactSepRe.Split(strings.TrimSpace(plain), -1) {
		field = contactLabel.ReplaceAllString(strings.TrimSpace(field), "")
		if field == "" {
			continue
		}

		for _, email := range emailRe.FindAllString(field, -1) {
			if f.Email == "" {
				f.Email = email
			} else {
				f.Other = append(f.Other, email)
			}
		}
		field = emailRe.ReplaceAllString(field, " ")

		var rest []string
		for _, tok := range strings.Fields(field) {
			trimmed := strings.TrimRight(tok, ".,;")
			if contactLinkRe.MatchString(trimmed) {
				f.Links = append(f.Links, trimmed)
				continue
			}
			rest = append(rest, tok)
		}
		field = strings.Join(rest, " ")

		if phone := phoneRe.FindString(field); phone != "" {
			if f.Phone == "" {
				f.Phone = strings.TrimSpace(phone)
			}
			field = strings.Replace(field, phone, " ", 1)
		}

		field = strings.Trim(strings.TrimSpace(field), ",;")
		if field == "" {
			continue
		}
		if i == 0 && f.Name == "" && looksLikeName(field) {
			f.Name = field
			continue
		}
		f.Other = append(f.Other, field)
	}
	return f
}

func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > 5 || strings.ContainsAny(s, ",@/:") {
		return false
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return false
		}
	}
	first := []rune(words[0])
	return unicode.IsUpper(first[0])
}
