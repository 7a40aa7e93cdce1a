// Package types holds the request and response shapes exchanged with the
// LLM provider.
package types

// TailorResumeInput is everything the generator sees when tailoring the
// candidate profile to one job.
type TailorResumeInput struct {
	BaseResume     string   `json:"baseResume"`
	JobDescription string   `json:"jobDescription"`
	Keywords       []string `json:"keywords,omitempty"`
	RequiredSkills []string `json:"requiredSkills,omitempty"`
	CompanyBrief   string   `json:"companyBrief,omitempty"`
	Template       string   `json:"template,omitempty"`
}

// TailorResumeOutput is the generated résumé in the constrained markdown
// dialect together with the generator's notes.
type TailorResumeOutput struct {
	TailoredResume string   `json:"tailoredResume"`
	Changes        []string `json:"changes"`
	UsedKeywords   []string `json:"usedKeywords"`
}

// EvaluateResumeInput represents the input for evaluating a resume
type EvaluateResumeInput struct {
	BaseResume     string `json:"baseResume"`
	TailoredResume string `json:"tailoredResume"`
}

// EvaluationFinding represents a specific issue found in the evaluation
type EvaluationFinding struct {
	Type        string `json:"type"` // "Overclaim", "Invention", or "Incorrect Linking"
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

// EvaluateResumeOutput represents the output from evaluating a resume
type EvaluateResumeOutput struct {
	Summary  string              `json:"summary"`
	Findings []EvaluationFinding `json:"findings"`
}

// Clean reports whether the evaluation found nothing.
func (o EvaluateResumeOutput) Clean() bool {
	return len(o.Findings) == 0
}

// AnalyzeJobInput represents the input for analyzing a job description
type AnalyzeJobInput struct {
	JobDescription string `json:"jobDescription"`
}

// AnalyzeJobOutput is the scoring signal extracted from a posting plus the
// facts needed to file it.
type AnalyzeJobOutput struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Seniority      string   `json:"seniority,omitempty"`
	Keywords       []string `json:"keywords"`
	RequiredSkills []string `json:"requiredSkills"`
	Summary        string   `json:"summary,omitempty"`
}
