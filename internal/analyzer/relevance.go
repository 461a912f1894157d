package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/internal/llmjson"
	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/internal/textproc"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// relevancePromptBudget bounds the total description text in the
// classification prompt. Longer lists get proportionally trimmed
// descriptions rather than a failed request.
const relevancePromptBudget = 60000

// relevanceKeywords maps description keywords to a relevance class. The
// keyword pass is free and deterministic; the model only sees what it could
// not classify.
var relevanceKeywords = []struct {
	class model.Relevance
	words []string
}{
	{model.RelevanceDeal, []string{"contract", "agreement", "payment", "deadline", "milestone", "deliverable", "penalty", "counterparty"}},
	{model.RelevanceProduct, []string{"architecture", "performance", "scalability", "integration", "api", "security", "availability", "data loss"}},
	{model.RelevanceDocumentation, []string{"missing section", "inconsistent", "undocumented", "ambiguous wording", "outdated document", "no specification"}},
}

// Classifier assigns a relevance class to each risk.
type Classifier struct {
	caller   caller
	useModel bool
}

func NewClassifier(client anthropic.Client, cfg *config.Config) *Classifier {
	return &Classifier{
		caller:   caller{client: client, cfg: cfg.Anthropic},
		useModel: cfg.Analysis.LLMRelevance,
	}
}

// Classify fills the Relevance field of every risk. Keyword matches win;
// remaining risks go to the model in one request. Any failure leaves the
// affected risks classified as universal.
func (c *Classifier) Classify(ctx context.Context, topic string, risks []model.Risk) ([]model.Risk, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	var unresolved []int
	for i := range risks {
		if risks[i].Relevance != "" {
			continue
		}
		if class, ok := keywordRelevance(risks[i]); ok {
			risks[i].Relevance = class
			continue
		}
		unresolved = append(unresolved, i)
	}

	if len(unresolved) == 0 {
		return risks, usage
	}
	if !c.useModel {
		for _, idx := range unresolved {
			risks[idx].Relevance = model.RelevanceUniversal
		}
		return risks, usage
	}

	subset := make([]model.Risk, len(unresolved))
	for i, idx := range unresolved {
		subset[i] = risks[idx]
	}

	classes, callUsage, err := c.classifyWithModel(ctx, topic, subset)
	usage.Add(callUsage)
	if err != nil {
		zap.L().Warn("relevance classification failed, defaulting to universal", zap.Error(err))
		for _, idx := range unresolved {
			risks[idx].Relevance = model.RelevanceUniversal
		}
		return risks, usage
	}

	for i, idx := range unresolved {
		risks[idx].Relevance = classes[i]
	}
	return risks, usage
}

func keywordRelevance(r model.Risk) (model.Relevance, bool) {
	text := strings.ToLower(r.Description + " " + r.Justification)
	for _, entry := range relevanceKeywords {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.class, true
			}
		}
	}
	return "", false
}

// trimmedDescriptions caps the combined description text sent for
// classification. The reply is index-aligned with the input, so only the
// prompt sees trimmed text and the mapping must stay 1:1; if proportional
// trimming would drop a description entirely, every description gets an
// equal cap instead.
func trimmedDescriptions(risks []model.Risk) []string {
	descs := make([]string, len(risks))
	for i, r := range risks {
		descs[i] = r.Description
	}

	trimmed := textproc.TrimProportional(descs, relevancePromptBudget)
	if len(trimmed) != len(descs) {
		per := relevancePromptBudget / len(risks)
		trimmed = make([]string, len(descs))
		for i, d := range descs {
			trimmed[i] = textproc.TrimText(d, per)
		}
	}

	for i := range trimmed {
		if trimmed[i] == "" {
			trimmed[i] = descs[i]
		}
	}
	return trimmed
}

func (c *Classifier) classifyWithModel(ctx context.Context, topic string, risks []model.Risk) ([]model.Relevance, anthropic.TokenUsage, error) {
	raw, usage, err := c.caller.complete(ctx, relevanceSystemPrompt, relevanceUserPrompt(topic, trimmedDescriptions(risks)))
	if err != nil {
		return nil, usage, err
	}

	payload, err := llmjson.Extract(raw)
	if err != nil {
		return nil, usage, err
	}

	var wrapped struct {
		Relevance []string `json:"relevance"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, usage, eris.Wrap(err, "analyzer: decode relevance")
	}
	if len(wrapped.Relevance) != len(risks) {
		return nil, usage, eris.Errorf("analyzer: relevance count %d does not match %d risks",
			len(wrapped.Relevance), len(risks))
	}

	classes := make([]model.Relevance, len(wrapped.Relevance))
	for i, s := range wrapped.Relevance {
		class := model.Relevance(strings.ToLower(strings.TrimSpace(s)))
		switch class {
		case model.RelevanceDeal, model.RelevanceProduct, model.RelevanceDocumentation,
			model.RelevanceUniversal, model.RelevanceNotRelevant:
			classes[i] = class
		default:
			classes[i] = model.RelevanceUniversal
		}
	}
	return classes, usage, nil
}
