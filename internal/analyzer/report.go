package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// Reporter renders the final markdown report. The model writes it when it
// can; a deterministic local renderer covers model failures so a run never
// ends without a report.
type Reporter struct {
	caller caller
}

func NewReporter(client anthropic.Client, cfg *config.Config) *Reporter {
	return &Reporter{caller: caller{client: client, cfg: cfg.Anthropic}}
}

// Render produces the report text. The returned bool reports whether the
// model wrote it or the local fallback did.
func (r *Reporter) Render(ctx context.Context, topic string, risks []model.Risk) (string, bool, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage

	prompt, err := reportUserPrompt(topic, risks)
	if err == nil {
		text, callUsage, callErr := r.caller.complete(ctx, reportSystemPrompt, prompt)
		usage.Add(callUsage)
		if callErr == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text) + "\n", true, usage
		}
		err = callErr
	}

	zap.L().Warn("report generation failed, using local renderer", zap.Error(err))
	return RenderFallback(topic, risks), false, usage
}

var severityOrder = map[model.Severity]int{
	model.SeverityCritical: 0,
	model.SeverityHigh:     1,
	model.SeverityMedium:   2,
	model.SeverityLow:      3,
}

// RenderFallback builds the report locally: risks grouped by category,
// ordered by severity, with a closing severity tally.
func RenderFallback(topic string, risks []model.Risk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Risk Report: %s\n\n", topic)
	fmt.Fprintf(&b, "Generated %s. %d risks identified.\n\n",
		time.Now().UTC().Format("2006-01-02"), len(risks))

	if len(risks) == 0 {
		b.WriteString("No risks were identified in the analyzed documents.\n")
		return b.String()
	}

	byCategory := make(map[model.Category][]model.Risk)
	for _, r := range risks {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}
	categories := make([]model.Category, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	for _, cat := range categories {
		group := byCategory[cat]
		sort.SliceStable(group, func(i, j int) bool {
			return severityOrder[group[i].Severity] < severityOrder[group[j].Severity]
		})

		fmt.Fprintf(&b, "## %s\n\n", categoryTitle(cat))
		for _, r := range group {
			fmt.Fprintf(&b, "### %s\n\n", r.Description)
			fmt.Fprintf(&b, "- Severity: %s, probability: %s\n", r.Severity, r.Probability)
			if r.Relevance != "" {
				fmt.Fprintf(&b, "- Relevance: %s\n", r.Relevance)
			}
			if r.Impact != "" {
				fmt.Fprintf(&b, "- Impact: %s\n", r.Impact)
			}
			if r.Mitigation != "" {
				fmt.Fprintf(&b, "- Mitigation: %s\n", r.Mitigation)
			}
			if r.SourceDocument != "" {
				fmt.Fprintf(&b, "- Source: %s\n", r.SourceDocument)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Totals by Severity\n\n")
	b.WriteString("| Severity | Count |\n|---|---|\n")
	counts := SeverityCounts(risks)
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, counts[sev])
	}
	return b.String()
}

// SeverityCounts tallies risks by severity.
func SeverityCounts(risks []model.Risk) map[model.Severity]int {
	counts := make(map[model.Severity]int)
	for _, r := range risks {
		counts[r.Severity]++
	}
	return counts
}

func categoryTitle(c model.Category) string {
	s := strings.ReplaceAll(string(c), "_", " ")
	if s == "" {
		return "Uncategorized"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
