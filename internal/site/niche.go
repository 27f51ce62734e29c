package site

import "strings"

// Known niches.
const (
	NicheAddiction       = "addiction_treatment"
	NicheHomeServices    = "home_services"
	NicheHealthInsurance = "health_insurance"
)

// Niche carries the question templates and content rules of a market.
type Niche struct {
	// QuestionTemplates contain a {keyword} placeholder.
	QuestionTemplates []string
	Requirements      map[string]string
}

// Niches maps niche names to their templates.
var Niches = map[string]Niche{
	NicheAddiction: {
		QuestionTemplates: []string{
			"How much does {keyword} cost?",
			"Does insurance cover {keyword}?",
			"How long is {keyword}?",
			"What is the success rate of {keyword}?",
			"What happens during {keyword}?",
		},
		Requirements: map[string]string{
			"insurance": "PPO only, never mention Medicaid/Medicare",
			"tone":      "Helpful directory, not facility marketing",
			"cta":       "Free consultation, no pressure",
		},
	},
	NicheHomeServices: {
		QuestionTemplates: []string{
			"How much does {keyword} cost?",
			"How long does {keyword} take?",
			"Is {keyword} worth it?",
			"What should I look for in {keyword}?",
			"When is the best time for {keyword}?",
		},
		Requirements: map[string]string{
			"tone": "Local expert, trustworthy",
			"cta":  "Free estimate",
		},
	},
	NicheHealthInsurance: {
		QuestionTemplates: []string{
			"How much does {keyword} cost?",
			"What does {keyword} cover?",
			"How do I qualify for {keyword}?",
			"When can I enroll in {keyword}?",
			"What's the difference between {keyword} plans?",
		},
		Requirements: map[string]string{
			"compliance": "No specific health claims",
			"tone":       "Helpful broker, educational",
		},
	},
}

// FallbackQuestions fills the niche's templates with keyword. Unknown
// niches yield nil.
func FallbackQuestions(niche, keyword string) []string {
	n, ok := Niches[niche]
	if !ok {
		return nil
	}
	out := make([]string, len(n.QuestionTemplates))
	for i, t := range n.QuestionTemplates {
		out[i] = strings.ReplaceAll(t, "{keyword}", keyword)
	}
	return out
}
