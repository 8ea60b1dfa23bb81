package analysis

import (
	"fmt"
	"strings"

	"github.com/symptomly/apiserver/types"
)

const systemPrompt = `You are a medical AI assistant. Analyze the provided symptoms and give a professional medical assessment.
Always include:
1. Possible conditions based on symptoms
2. Severity assessment
3. Recommended next steps
4. When to seek immediate medical attention

IMPORTANT: This is for informational purposes only and should not replace professional medical advice.`

// fallbackSummary is persisted as the analysis text of a failed check.
const fallbackSummary = `I apologize, but I'm currently unable to analyze your symptoms due to a technical issue.

Please consider:
1. Contacting a healthcare provider for professional medical advice
2. Visiting an emergency room if symptoms are severe
3. Trying again later

This is for informational purposes only and should not replace professional medical advice.`

// FallbackSummary returns the text stored in place of an analysis when
// the provider could not be reached.
func FallbackSummary() string {
	return fallbackSummary
}

// buildPrompt renders the deterministic analysis prompt for a submission.
func buildPrompt(input types.SymptomInput) string {
	notes := strings.TrimSpace(input.AdditionalNotes)
	if notes == "" {
		notes = "None"
	}

	var b strings.Builder
	b.WriteString("Please analyze the following patient symptoms:\n\n")
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Age: %d years\n", input.Age)
	fmt.Fprintf(&b, "- Sex: %s\n", input.Sex)
	fmt.Fprintf(&b, "- Symptoms: %s\n", input.Symptoms)
	fmt.Fprintf(&b, "- Duration: %s\n", input.Duration)
	fmt.Fprintf(&b, "- Severity (1-10): %d\n", input.Severity)
	fmt.Fprintf(&b, "- Additional Notes: %s\n", notes)
	b.WriteString(`
Please provide a comprehensive analysis including:
1. Possible medical conditions
2. Severity assessment
3. Recommended next steps
4. When to seek immediate medical attention
5. General health recommendations

Format your response in a clear, structured manner.`)
	return b.String()
}
