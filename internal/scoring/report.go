package scoring

import (
	"fmt"
	"strings"

	"tailorcv/internal/templates"
)

// Subscores are the eight rubric dimensions.
type Subscores struct {
	KeywordMatching       float64 `json:"keyword_matching"`
	KeywordDensity        float64 `json:"keyword_density"`
	QuantifiableResults   float64 `json:"quantifiable_results"`
	ActionVerbs           float64 `json:"action_verbs"`
	SkillsSection         float64 `json:"skills_section"`
	FormatCompliance      float64 `json:"format_compliance"`
	StructureCompleteness float64 `json:"structure_completeness"`
	FileCompatibility     float64 `json:"file_compatibility"`
}

func (s Subscores) sum() float64 {
	return s.KeywordMatching + s.KeywordDensity + s.QuantifiableResults + s.ActionVerbs +
		s.SkillsSection + s.FormatCompliance + s.StructureCompleteness + s.FileCompatibility
}

// Categories group the subscores into the four reported categories.
type Categories struct {
	ContentQuality        float64 `json:"content_quality"`
	FormatCompliance      float64 `json:"format_compliance"`
	StructureCompleteness float64 `json:"structure_completeness"`
	FileCompatibility     float64 `json:"file_compatibility"`
}

// Report is the result of one scoring call.
type Report struct {
	TotalScore  float64    `json:"total_score"`
	Grade       string     `json:"grade"`
	Subscores   Subscores  `json:"subscores"`
	Suggestions []string   `json:"suggestions"`
	Categories  Categories `json:"categories"`

	Template        templates.Template `json:"template"`
	BaseBonus       float64            `json:"base_bonus"`
	KeywordSource   string             `json:"keyword_source"`
	MatchedKeywords []string           `json:"matched_keywords,omitempty"`
	MissingKeywords []string           `json:"missing_keywords,omitempty"`
	DensityPercent  float64            `json:"keyword_density_percent"`
}

var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{97, "A+"},
	{93, "A"},
	{90, "A-"},
	{85, "B+"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
}

// Grade maps a total score to its letter grade.
func Grade(total float64) string {
	for _, g := range gradeThresholds {
		if total >= g.min {
			return g.grade
		}
	}
	return "F"
}

const maxListed = 5

func (s *Scorer) suggestions(sub Subscores, kw keywordResult, density densityResult, quant, verbs countResult,
	skills skillsResult, format formatResult, structure structureResult, file fileResult) []string {
	out := []string{}
	low := func(score, limit float64) bool {
		return score < s.rubric.SuggestionRatio*limit
	}
	r := s.rubric

	if low(sub.KeywordMatching, MaxKeywordMatching) {
		switch kw.source {
		case sourceJob:
			out = append(out, fmt.Sprintf(
				"Keyword matching: %d of %d job keywords found. Work in the missing ones where they honestly apply: %s.",
				len(kw.matched), len(kw.terms), listTerms(kw.missing)))
		case sourceResume:
			out = append(out, fmt.Sprintf(
				"Keyword matching: only %d of %d listed skills show up in your experience or summary. Show where you used %s.",
				len(kw.matched), len(kw.terms), listTerms(kw.missing)))
		default:
			out = append(out, "Keyword matching: add a Skills section or supply a job description, then reference those skills in your experience bullets.")
		}
	}

	if low(sub.KeywordDensity, MaxKeywordDensity) {
		switch {
		case !density.measured:
			out = append(out, "Keyword density: there are no keywords to measure; supply job keywords or list your skills.")
		case density.percent > r.DensityBandHigh:
			out = append(out, fmt.Sprintf(
				"Keyword density is %.1f%%, which reads as keyword stuffing. Cut repetition to reach the %.0f-%.0f%% range.",
				density.percent, r.DensityBandLow, r.DensityBandHigh))
		default:
			out = append(out, fmt.Sprintf(
				"Keyword density is %.1f%%. Mention your key skills more often to reach the %.0f-%.0f%% range.",
				density.percent, r.DensityBandLow, r.DensityBandHigh))
		}
	}

	if low(sub.QuantifiableResults, MaxQuantifiableResults) {
		out = append(out, fmt.Sprintf(
			"Add %d more quantifiable metrics to reach the %d-metric target (percentages, amounts, counts, time saved).",
			r.MetricTarget-quant.count, r.MetricTarget))
	}

	if low(sub.ActionVerbs, MaxActionVerbs) {
		out = append(out, fmt.Sprintf(
			"Start %d more bullets with strong action verbs such as led, built or reduced to reach the %d-bullet target.",
			r.VerbTarget-verbs.count, r.VerbTarget))
	}

	if low(sub.SkillsSection, MaxSkillsSection) {
		var fixes []string
		if skills.terms < r.SkillsTarget {
			fixes = append(fixes, fmt.Sprintf("list %d more distinct skills to reach %d", r.SkillsTarget-skills.terms, r.SkillsTarget))
		}
		if skills.categories < r.SkillsGroups {
			fixes = append(fixes, fmt.Sprintf("group them under at least %d category labels such as \"Languages: ...\"", r.SkillsGroups))
		}
		out = append(out, "Skills section: "+strings.Join(fixes, " and ")+".")
	}

	if low(sub.FormatCompliance, MaxFormatCompliance) {
		var fixes []string
		if format.noContent {
			fixes = append(fixes, "add body content so the layout can be assessed")
		}
		if format.tables {
			fixes = append(fixes, "replace tables with plain lines")
		}
		if format.graphics {
			fixes = append(fixes, "remove images and graphics")
		}
		if format.wrongFont {
			fixes = append(fixes, fmt.Sprintf("use a %s body font", format.required))
		}
		if format.badMargins {
			fixes = append(fixes, fmt.Sprintf("keep margins between %.1f\" and %.1f\"", r.MarginMin, r.MarginMax))
		}
		if format.headerIssue {
			fixes = append(fixes, "use standard ALL-CAPS section headers")
		}
		out = append(out, "Format compliance: "+strings.Join(fixes, "; ")+".")
	}

	if low(sub.StructureCompleteness, MaxStructure) {
		names := make([]string, 0, len(structure.missing))
		for _, m := range structure.missing {
			names = append(names, m.Title())
		}
		out = append(out, fmt.Sprintf("Add the missing sections: %s.", strings.Join(names, ", ")))
	}

	if low(sub.FileCompatibility, MaxFileCompatibility) {
		if file.unknown {
			name := string(file.format)
			if name == "" {
				name = "unspecified"
			}
			out = append(out, fmt.Sprintf("Deliver the résumé as PDF or DOCX; the %q format is not reliably parsed.", name))
		} else {
			out = append(out, fmt.Sprintf("Reduce the file size from %d KB to under %d KB.",
				file.size/1024, r.SizeLimit/1024))
		}
	}

	return out
}

func listTerms(terms []string) string {
	if len(terms) <= maxListed {
		return strings.Join(terms, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(terms[:maxListed], ", "), len(terms)-maxListed)
}

// Issues lists the subscores below the suggestion threshold, by JSON name.
func (r Report) Issues() []string {
	rub := DefaultRubric()
	var out []string
	for _, d := range r.Dimensions() {
		if d.Score < rub.SuggestionRatio*d.Max {
			out = append(out, d.Name)
		}
	}
	return out
}

// Dimension is one subscore with its maximum.
type Dimension struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Max   float64 `json:"max"`
}

// Dimensions lists the subscores in report order.
func (r Report) Dimensions() []Dimension {
	s := r.Subscores
	return []Dimension{
		{"keyword_matching", "Keyword Matching", s.KeywordMatching, MaxKeywordMatching},
		{"keyword_density", "Keyword Density", s.KeywordDensity, MaxKeywordDensity},
		{"quantifiable_results", "Quantifiable Results", s.QuantifiableResults, MaxQuantifiableResults},
		{"action_verbs", "Action Verbs", s.ActionVerbs, MaxActionVerbs},
		{"skills_section", "Skills Section", s.SkillsSection, MaxSkillsSection},
		{"format_compliance", "Format Compliance", s.FormatCompliance, MaxFormatCompliance},
		{"structure_completeness", "Structure Completeness", s.StructureCompleteness, MaxStructure},
		{"file_compatibility", "File Compatibility", s.FileCompatibility, MaxFileCompatibility},
	}
}
