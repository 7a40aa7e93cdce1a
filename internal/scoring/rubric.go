package scoring

import (
	"tailorcv/internal/templates"
)

// Maximum points per subscore.
const (
	MaxKeywordMatching     = 15.0
	MaxKeywordDensity      = 10.0
	MaxQuantifiableResults = 5.0
	MaxActionVerbs         = 5.0
	MaxSkillsSection       = 5.0
	MaxFormatCompliance    = 30.0
	MaxStructure           = 20.0
	MaxFileCompatibility   = 10.0

	MaxContentQuality = MaxKeywordMatching + MaxKeywordDensity + MaxQuantifiableResults + MaxActionVerbs + MaxSkillsSection
)

// Rubric is the static data the scorer works from. It is a plain value:
// NewScorer copies what it needs and never writes back.
type Rubric struct {
	ActionVerbs    []string
	MetricPatterns []string

	DensityFloor    float64 // percent; no credit below
	DensityBandLow  float64
	DensityBandHigh float64
	DensityCeiling  float64 // percent; no credit above

	MetricTarget  int
	VerbTarget    int
	SkillsTarget  int
	SkillsGroups  int
	SizeLimit     int64 // bytes
	MarginMin     float64
	MarginMax     float64
	RequiredFonts [3]templates.FontFamily // indexed by templates.Template

	PerRequiredSection float64
	OptionalBonusCap   float64

	TableDeduction   float64
	GraphicDeduction float64
	FontDeduction    float64
	MarginDeduction  float64
	HeaderDeduction  float64

	SuggestionRatio float64 // subscores below this share of their max get a suggestion
}

// DefaultRubric returns a fresh copy of the built-in rubric.
func DefaultRubric() Rubric {
	return Rubric{
		ActionVerbs:    append([]string(nil), actionVerbs...),
		MetricPatterns: append([]string(nil), metricPatterns...),

		DensityFloor:    0.5,
		DensityBandLow:  2,
		DensityBandHigh: 4,
		DensityCeiling:  8,

		MetricTarget: 10,
		VerbTarget:   15,
		SkillsTarget: 15,
		SkillsGroups: 2,
		SizeLimit:    500 * 1024,
		MarginMin:    0.5,
		MarginMax:    1.0,
		RequiredFonts: [3]templates.FontFamily{
			templates.Original: templates.Sans,
			templates.Modern:   templates.Sans,
			templates.Harvard:  templates.Serif,
		},

		PerRequiredSection: 4,
		OptionalBonusCap:   2,

		TableDeduction:   8,
		GraphicDeduction: 6,
		FontDeduction:    6,
		MarginDeduction:  5,
		HeaderDeduction:  5,

		SuggestionRatio: 0.8,
	}
}

var actionVerbs = []string{
	"accelerated", "achieved", "acquired", "adapted", "administered", "advised",
	"analyzed", "architected", "assembled", "automated", "boosted", "budgeted",
	"built", "captured", "championed", "coached", "collaborated", "completed",
	"composed", "conceived", "configured", "consolidated", "constructed",
	"coordinated", "created", "cut", "debugged", "decreased", "defined",
	"delivered", "deployed", "designed", "developed", "devised", "diagnosed",
	"directed", "doubled", "drove", "eliminated", "enabled", "engineered",
	"enhanced", "established", "evaluated", "executed", "expanded", "expedited",
	"facilitated", "forecasted", "formulated", "founded", "generated", "grew",
	"guided", "halved", "headed", "identified", "implemented", "improved",
	"increased", "influenced", "initiated", "innovated", "installed", "instituted",
	"integrated", "introduced", "invented", "launched", "led", "maintained",
	"managed", "maximized", "mentored", "migrated", "minimized", "modernized",
	"monitored", "negotiated", "optimized", "orchestrated", "organized",
	"overhauled", "oversaw", "partnered", "performed", "pioneered", "planned",
	"presented", "prioritized", "produced", "programmed", "promoted", "proposed",
	"published", "raised", "rebuilt", "recommended", "recruited", "redesigned",
	"reduced", "refactored", "reengineered", "reorganized", "replaced", "resolved",
	"restructured", "revamped", "saved", "scaled", "secured", "shipped",
	"simplified", "spearheaded", "standardized", "streamlined", "strengthened",
	"supervised", "surpassed", "tested", "trained", "transformed", "tripled",
	"troubleshot", "unified", "upgraded", "won", "wrote",
}

var metricPatterns = []string{
	`[$€£¥]\s?\d[\d,]*(?:\.\d+)?\s?(?:[kmb]\b|million\b|billion\b|thousand\b)?`,
	`\d+(?:\.\d+)?\s?(?:%|percent\b)`,
	`\d+(?:\.\d+)?\s?x\b`,
	`\d+(?:\.\d+)?\s?(?:ms|milliseconds?|seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|months?|quarters?|years?|yrs?)\b`,
	`\d[\d,]*\+`,
	`\d[\d,]*(?:\.\d+)?\s?[kmb]?\s+(?:users|customers|clients|engineers|developers|people|members|teams|services|servers|nodes|requests|transactions|projects|applications|apps|products|countries|markets|stores|records|employees|accounts|downloads|installs|reports|hires|tickets|deployments|microservices|pipelines|students|patients|partners|vendors)\b`,
}
