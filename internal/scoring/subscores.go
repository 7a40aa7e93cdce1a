package scoring

import (
	"math"
	"regexp"
	"strings"

	"tailorcv/internal/resume"
	"tailorcv/internal/templates"
)

const (
	sourceJob    = "job"
	sourceResume = "resume"
	sourceNone   = "none"
)

type keywordResult struct {
	score   float64
	source  string
	terms   []string
	matched []string
	missing []string
}

// keywordMatching awards credit for job keywords found in the résumé.
// Without job keywords the résumé's own skills are checked against its
// experience and summary instead.
func (s *Scorer) keywordMatching(a *analysis, job *JobSignal) keywordResult {
	var terms []string
	if job != nil {
		terms = normalizeTerms(job.Keywords, job.RequiredSkills)
	}

	res := keywordResult{source: sourceJob, terms: terms}
	haystack := a.text
	if len(terms) == 0 {
		res.terms = a.skills.terms
		res.source = sourceResume
		haystack = a.narrative
		if len(res.terms) == 0 {
			res.source = sourceNone
			return res
		}
	}

	for _, t := range res.terms {
		if strings.Contains(haystack, t) {
			res.matched = append(res.matched, t)
		} else {
			res.missing = append(res.missing, t)
		}
	}
	ratio := math.Min(float64(len(res.matched))/float64(len(res.terms)), 1)
	res.score = math.Round(MaxKeywordMatching * ratio)
	return res
}

type densityResult struct {
	score    float64
	percent  float64
	measured bool
}

func (s *Scorer) keywordDensity(a *analysis, terms []string) densityResult {
	if len(terms) == 0 || len(a.bodyTokens) == 0 {
		return densityResult{}
	}
	occurrences := 0
	for _, t := range terms {
		occurrences += countPhrase(a.bodyTokens, tokenize(t))
	}
	pct := float64(occurrences) / float64(len(a.bodyTokens)) * 100
	return densityResult{
		score:    round1(s.densityCurve(pct)),
		percent:  pct,
		measured: true,
	}
}

func (s *Scorer) densityCurve(pct float64) float64 {
	r := s.rubric
	switch {
	case pct < r.DensityFloor || pct > r.DensityCeiling:
		return 0
	case pct < r.DensityBandLow:
		return MaxKeywordDensity * (pct - r.DensityFloor) / (r.DensityBandLow - r.DensityFloor)
	case pct <= r.DensityBandHigh:
		return MaxKeywordDensity
	default:
		return MaxKeywordDensity * (r.DensityCeiling - pct) / (r.DensityCeiling - r.DensityBandHigh)
	}
}

func countPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return 0
	}
	n := 0
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		n++
		i += len(phrase) - 1
	}
	return n
}

type countResult struct {
	score float64
	count int
}

func (s *Scorer) quantifiableResults(a *analysis) countResult {
	n := 0
	for _, b := range a.doc.Bullets() {
		n += len(s.metrics.FindAllStringIndex(b.Text, -1))
	}
	return countResult{
		score: round1(MaxQuantifiableResults * math.Min(float64(n)/float64(s.rubric.MetricTarget), 1)),
		count: n,
	}
}

func (s *Scorer) actionVerbs(a *analysis) countResult {
	n := 0
	for _, b := range a.doc.Bullets() {
		words := tokenize(b.Text)
		if len(words) > 0 && s.verbs[words[0]] {
			n++
		}
	}
	return countResult{
		score: round1(MaxActionVerbs * math.Min(float64(n)/float64(s.rubric.VerbTarget), 1)),
		count: n,
	}
}

type skillsResult struct {
	score      float64
	terms      int
	categories int
}

func (s *Scorer) skillsSection(a *analysis) skillsResult {
	n, c := len(a.skills.terms), a.skills.categories
	res := skillsResult{terms: n, categories: c}
	if n >= s.rubric.SkillsTarget && c >= s.rubric.SkillsGroups {
		res.score = MaxSkillsSection
		return res
	}
	countPart := 0.7 * MaxSkillsSection * math.Min(float64(n)/float64(s.rubric.SkillsTarget), 1)
	groupPart := math.Min(float64(c), float64(s.rubric.SkillsGroups)) * 0.15 * MaxSkillsSection
	if n == 0 {
		groupPart = 0
	}
	res.score = round1(math.Min(countPart+groupPart, MaxSkillsSection))
	return res
}

type skillsList struct {
	terms      []string
	categories int
}

var skillSplitRe = regexp.MustCompile(`[,;|•·]|\s/\s`)

// parseSkills reads the terms and category labels of a skills section.
// "Label: a, b" lines and sub-headings both count as categories.
func parseSkills(blocks []resume.Block) skillsList {
	var (
		raw        []string
		categories int
	)
	for _, b := range blocks {
		if b.Kind == resume.KindHeading {
			categories++
			continue
		}
		text := b.Text
		if label, rest, ok := strings.Cut(text, ":"); ok && len(strings.Fields(label)) <= 4 && strings.TrimSpace(label) != "" {
			categories++
			text = rest
		}
		for _, t := range skillSplitRe.Split(text, -1) {
			t = strings.Trim(strings.TrimSpace(t), ".")
			if t == "" || len(strings.Fields(t)) > 5 {
				continue
			}
			raw = append(raw, t)
		}
	}
	return skillsList{terms: normalizeTerms(raw), categories: categories}
}

type formatResult struct {
	score       float64
	tables      bool
	graphics    bool
	wrongFont   bool
	badMargins  bool
	headerIssue bool
	noContent   bool
	required    templates.FontFamily
}

var (
	tableRowRe  = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
	tableSepRe  = regexp.MustCompile(`(?m)^\s*\|?\s*:?-{3,}:?\s*(?:\|\s*:?-{3,}:?\s*)+\|?\s*$`)
	graphicRe   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	htmlGraphic = regexp.MustCompile(`(?i)<\s*(?:img|svg|table|div|canvas|figure|iframe)\b`)
)

// formatCompliance deducts for layout features ATS parsers trip on. Fonts,
// margins and header casing come from the template the document is
// rendered with. A document without body text earns only the template
// bonus.
func (s *Scorer) formatCompliance(raw string, a *analysis, tmpl templates.Template, spec templates.Spec) formatResult {
	r := s.rubric
	res := formatResult{required: r.RequiredFonts[tmpl]}
	if len(a.bodyTokens) == 0 {
		res.noContent = true
		res.score = math.Min(spec.FormatBonus, MaxFormatCompliance)
		return res
	}

	score := MaxFormatCompliance
	if tableRowRe.MatchString(raw) || tableSepRe.MatchString(raw) {
		res.tables = true
		score -= r.TableDeduction
	}
	if graphicRe.MatchString(raw) || htmlGraphic.MatchString(raw) {
		res.graphics = true
		score -= r.GraphicDeduction
	}
	if spec.Family != res.required {
		res.wrongFont = true
		score -= r.FontDeduction
	}
	for _, m := range spec.Margins.All() {
		if m < r.MarginMin || m > r.MarginMax {
			res.badMargins = true
			score -= r.MarginDeduction
			break
		}
	}
	if !sectionHeadersUpper(a.doc, spec.HeaderCase) {
		res.headerIssue = true
		score -= r.HeaderDeduction
	}

	res.score = round1(math.Min(math.Max(score, 0)+spec.FormatBonus, MaxFormatCompliance))
	return res
}

// sectionHeadersUpper reports whether the document has section headers
// and every one of them comes out in capitals under the casing rule.
func sectionHeadersUpper(doc *resume.Document, casing templates.HeaderCase) bool {
	found := false
	for _, p := range doc.Parts() {
		if p.Heading == nil {
			continue
		}
		found = true
		if !isUpper(casing.Apply(p.Heading.Text)) {
			return false
		}
	}
	return found
}

func isUpper(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}

type structureResult struct {
	score   float64
	missing []resume.Section
}

func (s *Scorer) structureCompleteness(doc *resume.Document) structureResult {
	var res structureResult
	required := 0.0
	for _, sec := range resume.RequiredSections {
		if doc.Has(sec) {
			required += s.rubric.PerRequiredSection
		} else {
			res.missing = append(res.missing, sec)
		}
	}
	optional := 0.0
	for _, sec := range resume.OptionalSections {
		if doc.Has(sec) {
			optional++
		}
	}
	res.score = math.Min(required+math.Min(optional, s.rubric.OptionalBonusCap), MaxStructure)
	return res
}

type fileResult struct {
	score   float64
	unknown bool
	format  FileFormat
	size    int64
}

func (s *Scorer) fileCompatibility(f FileFormat, size *int64) fileResult {
	res := fileResult{format: f}
	if !f.Known() {
		res.unknown = true
		return res
	}
	if size == nil || *size < s.rubric.SizeLimit {
		res.score = MaxFileCompatibility
		if size != nil {
			res.size = *size
		}
		return res
	}
	res.size = *size
	res.score = round1(math.Max(MaxFileCompatibility*float64(s.rubric.SizeLimit)/float64(*size), 0))
	return res
}
