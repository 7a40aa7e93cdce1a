package resume

import (
	"strings"
	"unicode"
)

// Section is the canonical name of a résumé section.
type Section string

const (
	SectionContact        Section = "CONTACT"
	SectionSummary        Section = "SUMMARY"
	SectionExperience     Section = "EXPERIENCE"
	SectionEducation      Section = "EDUCATION"
	SectionSkills         Section = "SKILLS"
	SectionCertifications Section = "CERTIFICATIONS"
	SectionProjects       Section = "PROJECTS"
	SectionAchievements   Section = "ACHIEVEMENTS"
)

// RequiredSections are the sections every résumé is expected to carry.
var RequiredSections = []Section{
	SectionContact,
	SectionSummary,
	SectionExperience,
	SectionEducation,
	SectionSkills,
}

// OptionalSections earn extra structure credit when present.
var OptionalSections = []Section{
	SectionCertifications,
	SectionProjects,
	SectionAchievements,
}

// Title returns the section name in title case, e.g. "Experience".
func (s Section) Title() string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(string(s))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// sectionWords maps a single normalized word to its section. Top-level
// headings are scanned from their last word backwards, so "Work Experience"
// and "Technical Skills" resolve by their head noun.
var sectionWords = map[string]Section{
	"contact":        SectionContact,
	"contacts":       SectionContact,
	"summary":        SectionSummary,
	"profile":        SectionSummary,
	"objective":      SectionSummary,
	"about":          SectionSummary,
	"overview":       SectionSummary,
	"experience":     SectionExperience,
	"experiences":    SectionExperience,
	"employment":     SectionExperience,
	"work":           SectionExperience,
	"career":         SectionExperience,
	"education":      SectionEducation,
	"academic":       SectionEducation,
	"academics":      SectionEducation,
	"qualifications": SectionEducation,
	"skills":         SectionSkills,
	"skill":          SectionSkills,
	"competencies":   SectionSkills,
	"technologies":   SectionSkills,
	"expertise":      SectionSkills,
	"certifications": SectionCertifications,
	"certification":  SectionCertifications,
	"certificates":   SectionCertifications,
	"licenses":       SectionCertifications,
	"projects":       SectionProjects,
	"project":        SectionProjects,
	"portfolio":      SectionProjects,

	"achievements":    SectionAchievements,
	"achievement":     SectionAchievements,
	"accomplishments": SectionAchievements,
	"awards":          SectionAchievements,
	"honors":          SectionAchievements,
}

// sectionPhrases catch headings whose head noun alone would mislead.
var sectionPhrases = map[string]Section{
	"contact information":  SectionContact,
	"personal information": SectionContact,
	"work history":         SectionExperience,
	"employment history":   SectionExperience,
	"professional history": SectionExperience,
	"about me":             SectionSummary,
	"professional profile": SectionSummary,
	"tech stack":           SectionSkills,
	"toolbox":              SectionSkills,
}

// CanonicalSection maps a heading to its section, ignoring case,
// punctuation, and common qualifiers.
func CanonicalSection(heading string) (Section, bool) {
	norm := normalizeHeading(heading)
	if norm == "" {
		return "", false
	}
	if s, ok := sectionPhrases[norm]; ok {
		return s, true
	}
	words := strings.Fields(norm)
	for i := len(words) - 1; i >= 0; i-- {
		if s, ok := sectionWords[words[i]]; ok {
			return s, true
		}
	}
	return "", false
}

// sectionQualifiers may precede a section word in an exact alias, as in
// "Technical Skills" or "Selected Projects".
var sectionQualifiers = map[string]bool{
	"technical":    true,
	"professional": true,
	"work":         true,
	"relevant":     true,
	"key":          true,
	"core":         true,
	"selected":     true,
	"additional":   true,
	"personal":     true,
	"notable":      true,
}

// ExactSection matches the whole heading against the known aliases. Only
// qualifier words may precede the section word, so "Project Manager" or
// "Senior Engineer, Data Technologies" are not sections.
func ExactSection(heading string) (Section, bool) {
	norm := normalizeHeading(heading)
	if norm == "" {
		return "", false
	}
	if s, ok := sectionPhrases[norm]; ok {
		return s, true
	}
	words := strings.Fields(norm)
	last := len(words) - 1
	for _, w := range words[:last] {
		if !sectionQualifiers[w] {
			return "", false
		}
	}
	s, ok := sectionWords[words[last]]
	return s, ok
}

// headingSection classifies a heading block. Sub-headings below level 2
// usually name a role, school, or project, so they count as a section only
// on an exact alias.
func headingSection(b Block) (Section, bool) {
	if b.Level >= 3 {
		return ExactSection(b.Text)
	}
	return CanonicalSection(b.Text)
}

func normalizeHeading(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
			continue
		}
		space = true
	}
	return sb.String()
}
