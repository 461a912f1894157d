package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

func TestRender_ModelWritesReport(t *testing.T) {
	client := &mockClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse("# Risk Report\n\nAll clear."), nil
	}}
	r := NewReporter(client, testConfig())

	report, byModel, usage := r.Render(context.Background(), "topic", []model.Risk{risk("1", "a")})
	assert.True(t, byModel)
	assert.Contains(t, report, "# Risk Report")
	assert.Positive(t, usage.InputTokens)
}

func TestRender_FallsBackOnFailure(t *testing.T) {
	client := &mockClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, eris.New("api down")
	}}
	r := NewReporter(client, testConfig())

	report, byModel, _ := r.Render(context.Background(), "vendor audit", []model.Risk{risk("1", "a")})
	assert.False(t, byModel)
	assert.Contains(t, report, "vendor audit")
}

func TestRenderFallback_GroupsAndCounts(t *testing.T) {
	risks := []model.Risk{
		{ID: "1", Type: model.RiskTypeRisk, Description: "low legal issue",
			Category: model.CategoryLegal, Severity: model.SeverityLow,
			Probability: model.ProbabilityLow},
		{ID: "2", Type: model.RiskTypeRisk, Description: "critical legal issue",
			Category: model.CategoryLegal, Severity: model.SeverityCritical,
			Probability: model.ProbabilityHigh, Impact: "contract voided",
			Mitigation: "add counsel review", SourceDocument: "contract.md"},
		{ID: "3", Type: model.RiskTypeError, Description: "financial typo",
			Category: model.CategoryFinancial, Severity: model.SeverityMedium,
			Probability: model.ProbabilityMedium},
	}

	report := RenderFallback("acquisition", risks)

	assert.Contains(t, report, "# Risk Report: acquisition")
	assert.Contains(t, report, "## Legal")
	assert.Contains(t, report, "## Financial")
	assert.Contains(t, report, "contract voided")
	assert.Contains(t, report, "add counsel review")
	assert.Contains(t, report, "contract.md")
	assert.Contains(t, report, "| critical | 1 |")
	assert.Contains(t, report, "| medium | 1 |")

	// Within a category, higher severity comes first.
	criticalPos := strings.Index(report, "critical legal issue")
	lowPos := strings.Index(report, "low legal issue")
	require.GreaterOrEqual(t, criticalPos, 0)
	require.GreaterOrEqual(t, lowPos, 0)
	assert.Less(t, criticalPos, lowPos)
}

func TestRenderFallback_NoRisks(t *testing.T) {
	report := RenderFallback("clean project", nil)
	assert.Contains(t, report, "No risks were identified")
}

func TestSeverityCounts(t *testing.T) {
	counts := SeverityCounts([]model.Risk{
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityHigh},
		{Severity: model.SeverityLow},
	})
	assert.Equal(t, 2, counts[model.SeverityHigh])
	assert.Equal(t, 1, counts[model.SeverityLow])
	assert.Equal(t, 0, counts[model.SeverityCritical])
}
