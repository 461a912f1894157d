package analyzer

import (
	"fmt"
	"strings"

	"github.com/atlas-diligence/riskscan/internal/model"
)

// extractionSystemPrompt is shared by every chunk in a run and carries the
// cache breakpoint. Only the user message varies per chunk.
const extractionSystemPrompt = `You are a risk analyst reviewing project documents. You identify concrete risks and outright errors in the text you are given.

Respond with a single JSON object and nothing else:

{
  "risks": [
    {
      "type": "risk" | "error",
      "description": "what can go wrong, specific to this text",
      "justification": "the passage or fact this is based on",
      "recommendations": ["concrete mitigation step"],
      "category": "financial" | "operational" | "legal" | "technological" | "reputational" | "regulatory" | "documentation" | "business_process",
      "severity": "low" | "medium" | "high" | "critical",
      "probability": "low" | "medium" | "high",
      "impact": "consequence if it materializes",
      "mitigation": "how to reduce it"
    }
  ]
}

Rules:
- Only report risks supported by the text. Never invent facts.
- An empty list is a valid answer for clean text.
- description must be self-contained: readable without the source text.`

func extractionUserPrompt(topic, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis topic: %s\n\n", topic)
	b.WriteString("Documents to analyze:\n\n")
	b.WriteString(text)
	return b.String()
}

const dedupBatchSystemPrompt = `You deduplicate a small batch of risk records. Two records are duplicates when they describe the same underlying risk, even with different wording.

Merge each set of duplicates into one record that keeps the most specific description, the union of recommendations and source documents, and the highest severity and probability among its members. Keep unique records unchanged.

Respond with a single JSON object and nothing else, using the same schema as the inputs:

{
  "risks": [ ...the deduplicated records... ]
}

Never drop a record that has no duplicate. When in doubt, keep records separate.`

func dedupBatchUserPrompt(batch []model.Risk) (string, error) {
	payload, err := model.RisksJSON(batch)
	if err != nil {
		return "", err
	}
	return "Risk records to deduplicate:\n\n" + payload, nil
}

const dedupCompactSystemPrompt = `You compact a full list of risk records into its final deduplicated form. Two records are duplicates when they describe the same underlying risk, even with different wording.

Merge each set of duplicates into one record that keeps the most specific description, the union of recommendations and source documents, and the highest severity and probability among its members.

Respond with a single JSON object and nothing else, using the same schema as the inputs:

{
  "risks": [ ...the final records... ]
}

Never drop a record that has no duplicate. When in doubt, keep records separate.`

func dedupCompactUserPrompt(risks []model.Risk) (string, error) {
	payload, err := model.RisksJSON(risks)
	if err != nil {
		return "", err
	}
	return "All risk records:\n\n" + payload, nil
}

const relevanceSystemPrompt = `You classify how a risk record relates to the analysis topic. The classes are:

- "deal": specific to the transaction or engagement being analyzed
- "product": about the product or system itself
- "documentation": about the quality or completeness of the documents
- "universal": a general risk that applies regardless of topic
- "not_relevant": unrelated to the topic

You receive a numbered list of risk descriptions. Respond with a single JSON object and nothing else:

{
  "relevance": ["deal", "universal", "not_relevant"]
}

The array has one entry per input record, in order.`

func relevanceUserPrompt(topic string, descriptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis topic: %s\n\nRisk records:\n\n", topic)
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i, d)
	}
	return b.String()
}

const reportSystemPrompt = `You write an executive risk report in markdown from a list of risk records. Structure:

1. A title and a two-paragraph summary of the overall risk picture.
2. A section per category, ordered by severity, each risk with its description, impact, and mitigation.
3. A closing table of counts by severity.

Write only the report. Do not wrap it in code fences.`

func reportUserPrompt(topic string, risks []model.Risk) (string, error) {
	payload, err := model.RisksJSON(risks)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Analysis topic: %s\n\nRisk records:\n\n%s", topic, payload), nil
}
