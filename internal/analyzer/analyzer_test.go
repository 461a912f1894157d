package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/internal/store"
	"github.com/atlas-diligence/riskscan/internal/textproc"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// The extraction payload uses a deal keyword so relevance resolves locally.
const e2eRiskJSON = `{"risks": [{"type": "risk", "description": "contract deadline is unrealistic", "category": "legal", "severity": "high", "probability": "medium"}]}`

func newE2EClient() *mockClient {
	return &mockClient{respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		switch systemText(req) {
		case extractionSystemPrompt:
			return textResponse(e2eRiskJSON), nil
		case dedupBatchSystemPrompt, dedupCompactSystemPrompt:
			return textResponse(e2eRiskJSON), nil
		case reportSystemPrompt:
			return textResponse("# Final Report\n\nOne legal risk."), nil
		default:
			return nil, assert.AnError
		}
	}}
}

func newE2EAnalyzer(t *testing.T, client anthropic.Client) (*Analyzer, store.Store, string) {
	t.Helper()

	cfg := testConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Report.Dir = filepath.Join(t.TempDir(), "reports")

	st, err := store.NewSQLite(cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	a, err := New(cfg, st, client)
	require.NoError(t, err)

	docs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "one.txt"), []byte("First document body with enough text."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "two.md"), []byte("Second document body, different text."), 0o644))
	return a, st, docs
}

func TestAnalyzer_RunEndToEnd(t *testing.T) {
	a, st, docs := newE2EAnalyzer(t, newE2EClient())
	ctx := context.Background()

	run, err := a.Run(ctx, "supplier onboarding", docs)
	require.NoError(t, err)
	require.NotNil(t, run.Result)

	result := run.Result
	assert.Equal(t, 2, result.DocumentCount)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 2, result.RisksFound)
	// Identical descriptions collapse in signature dedup.
	assert.Equal(t, 1, result.RisksAfterDedup)
	assert.Equal(t, 0, result.FailedItems)
	assert.Contains(t, result.Report, "# Final Report")
	assert.Positive(t, result.TokenUsage.InputTokens)

	// Report file on disk.
	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Final Report")

	// Run, phases, risks persisted.
	stored, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
	require.NotNil(t, stored.Result)

	phaseNames := make([]string, 0, len(result.Phases))
	for _, p := range result.Phases {
		phaseNames = append(phaseNames, p.Name)
		assert.Equal(t, model.PhaseStatusComplete, p.Status)
	}
	assert.Equal(t, []string{"load", "segment", "extract", "deduplicate", "classify", "report"}, phaseNames)

	risks, err := st.GetRisks(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, model.RelevanceDeal, risks[0].Relevance)
}

func TestAnalyzer_RunFailsWhenFolderMissing(t *testing.T) {
	a, st, _ := newE2EAnalyzer(t, newE2EClient())
	ctx := context.Background()

	_, err := a.Run(ctx, "topic", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	// The created run is marked failed, not left queued.
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestAnalyzer_ExtractionFailuresDegradeNotFail(t *testing.T) {
	client := &mockClient{respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		switch systemText(req) {
		case extractionSystemPrompt:
			return nil, assert.AnError
		case reportSystemPrompt:
			return textResponse("# Empty Report"), nil
		default:
			return textResponse(`{"risks": []}`), nil
		}
	}}
	a, _, docs := newE2EAnalyzer(t, client)

	run, err := a.Run(context.Background(), "topic", docs)
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.FailedItems)
	assert.Equal(t, 0, run.Result.RisksFound)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestBuildItems_FewDocumentsKeepSingleSource(t *testing.T) {
	cfg := testConfig()
	seg, err := textproc.NewSegmenter(cfg.Analysis.MaxChunkSize, cfg.Analysis.ChunkOverlap)
	require.NoError(t, err)
	a := &Analyzer{cfg: cfg, segmenter: seg}

	docs := []model.Document{
		{Name: "a.txt", Content: "alpha body"},
		{Name: "b.txt", Content: "beta body"},
	}
	result := &model.RunResult{}
	items := a.buildItems(docs, result)

	require.Len(t, items, 2)
	assert.Equal(t, []string{"a.txt"}, items[0].Sources)
	assert.Equal(t, []string{"b.txt"}, items[1].Sources)
	assert.Equal(t, 2, result.ChunkCount)
}

func TestBuildItems_ManyDocumentsPackAcrossSources(t *testing.T) {
	cfg := testConfig()
	seg, err := textproc.NewSegmenter(cfg.Analysis.MaxChunkSize, cfg.Analysis.ChunkOverlap)
	require.NoError(t, err)
	a := &Analyzer{cfg: cfg, segmenter: seg}

	docs := make([]model.Document, groupDocsThreshold+2)
	for i := range docs {
		docs[i] = model.Document{
			Name:    fmt.Sprintf("doc-%02d.txt", i),
			Content: fmt.Sprintf("Short document body number %02d.", i),
		}
	}
	result := &model.RunResult{}
	items := a.buildItems(docs, result)

	// All bodies together fit one request, so they pack into a single batch
	// attributed to every document.
	require.Len(t, items, 1)
	assert.Len(t, items[0].Sources, len(docs))
	assert.Equal(t, []string{"doc-00.txt"}, items[0].Sources[:1])
	assert.Contains(t, items[0].Text, "Short document body number 11.")
	assert.Equal(t, len(docs), result.ChunkCount)
}
