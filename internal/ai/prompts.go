package ai

// SystemPrompts contains all system-level instructions for AI interactions
type SystemPrompts struct {
	TailorResume   string
	EvaluateResume string
	AnalyzeJob     string
}

// UserPrompts contains user-level prompts with placeholders for dynamic content
type UserPrompts struct {
	TailorResume   string
	EvaluateResume string
	AnalyzeJob     string
}

// markdownRules describes the only markdown the renderer and scorer read.
const markdownRules = `Write the resume in this markdown dialect and nothing else:
- Line 1: "# Full Name".
- Line 2: contact details on one line separated by " | " (email | phone | city | https://linkedin.com/in/... | https://github.com/...).
- Section headings as "## SUMMARY", "## EXPERIENCE", "## EDUCATION", "## SKILLS", then optionally "## PROJECTS", "## CERTIFICATIONS", "## ACHIEVEMENTS".
- Under EXPERIENCE and EDUCATION, one "### Role | Organization | Location | Jan 2020 - Present" line per entry followed by "- " bullets.
- Start every bullet with a strong past-tense action verb and quantify results where the base resume gives numbers.
- SKILLS is a list of "- Category: skill, skill, skill" bullets.
- Use **bold**, *italic* and [text](url) only. No tables, images, HTML, code blocks or block quotes.`

// DefaultSystemPrompts provides the default system instructions
var DefaultSystemPrompts = SystemPrompts{
	TailorResume: `You are an expert resume writer with a strict commitment to honesty and accuracy. Your core principles are:

- NEVER invent, exaggerate, or misattribute any skills or experiences
- Every piece of information must be directly traceable to the base resume
- Prefer the job's own wording when the candidate genuinely has the skill
- Keep the resume parseable by applicant tracking systems

` + markdownRules,

	EvaluateResume: `You are an expert resume reviewer and integrity analyst with a focus on accuracy and authenticity. Your role is to:

- Identify discrepancies between original and tailored content
- Detect fabrications, exaggerations, and misattributions
- Ensure factual consistency across documents
- Provide detailed evidence-based findings

You specialize in detecting three types of integrity issues:
1. Overclaims: Exaggerated or embellished content
2. Inventions: Completely fabricated information
3. Incorrect Linking: Misattributed skills or achievements`,

	AnalyzeJob: `You are a technical recruiter who reads job postings the way an applicant tracking system does.
You extract the exact terms a screening system would match a resume against: technologies, tools, methodologies, certifications and domain phrases.
You copy terms as they are written in the posting and never add terms that are not there.`,
}

// DefaultUserPrompts provides the default user prompt templates
var DefaultUserPrompts = UserPrompts{
	TailorResume: `Tailor the base resume to the job description below.

**Tasks:**

1. **Tailor Resume**:
   Rewrite the summary, reorder bullets and choose wording so that the most relevant experience *explicitly present in the base resume* comes first.
   Only include a target keyword if the corresponding skill or experience exists in the base resume.

2. **Changes**:
   List each meaningful change you made in one short sentence.

3. **Used Keywords**:
   List the target keywords and required skills that appear in the tailored resume.

**Base Resume:**
-----
%s
-----

**Job Description:**
-----
%s
-----

**Target Keywords:** %s

**Required Skills:** %s

**Company Context:**
-----
%s
-----`,

	EvaluateResume: `Please analyze the "Tailored Resume" and compare it against the "Base Resume" to identify any potential fabrications or exaggerations.

**Focus on these three specific types of issues:**

1. **Overclaim**: Identify any skills, responsibilities, or achievements that have been exaggerated or embellished in the tailored resume compared to what is stated in the base resume.

2. **Invention**: Find any skills, metrics, KPIs, or achievements in the tailored resume that are completely absent from the base resume.

3. **Incorrect Linking**: Detect instances where a skill or accomplishment from one part of the base resume has been incorrectly attributed to a different job or project in the tailored resume.

For each issue you find, create a "finding" with the type of issue, a detailed description, and the specific text from the tailored resume that constitutes the issue.
If no issues are found, state that clearly in the summary and provide an empty findings array.

**Base Resume:**
-----
%s
-----

**Tailored Resume:**
-----
%s
-----`,

	AnalyzeJob: `Extract the screening signal from the job description below.

**Fields:**

1. **title**: the job title as posted.
2. **company**: the hiring company, or an empty string if the posting does not name it.
3. **seniority**: one of intern, junior, mid, senior, staff, principal, manager, director, or an empty string.
4. **keywords**: 10 to 25 distinct terms a resume should contain to match this posting, most important first.
5. **requiredSkills**: the skills the posting states as required or must-have, a subset of keywords where possible.
6. **summary**: two sentences describing the role.

**Job Description:**
-----
%s
-----`,
}
