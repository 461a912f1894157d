package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-diligence/riskscan/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "vendor contract review", "/tmp/docs")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "vendor contract review", got.Topic)
	assert.Equal(t, "/tmp/docs", got.Folder)
	assert.Nil(t, got.Result)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetRun(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t", "/f")
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusExtracting))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusExtracting, got.Status)

	assert.Error(t, st.UpdateRunStatus(ctx, "missing", model.RunStatusComplete))
}

func TestSQLite_UpdateRunResult(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t", "/f")
	require.NoError(t, err)

	result := &model.RunResult{
		DocumentCount:   2,
		ChunkCount:      5,
		RisksFound:      7,
		RisksAfterDedup: 4,
		FailedItems:     1,
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 4, got.Result.RisksAfterDedup)
	assert.Equal(t, 1, got.Result.FailedItems)
}

func TestSQLite_MarkRunFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t", "/f")
	require.NoError(t, err)

	require.NoError(t, st.MarkRunFailed(ctx, run.ID, eris.New("folder unreadable")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "topic-a", "/f1")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "topic-b", "/f2")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, r1.ID, model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	byTopic, err := st.ListRuns(ctx, RunFilter{Topic: "topic-b"})
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, "topic-b", byTopic[0].Topic)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Phases(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t", "/f")
	require.NoError(t, err)

	phase, err := st.CreatePhase(ctx, run.ID, "extract")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	require.NoError(t, st.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name:     "extract",
		Status:   model.PhaseStatusComplete,
		Duration: 120,
	}))

	assert.Error(t, st.CompletePhase(ctx, "missing", &model.PhaseResult{
		Status: model.PhaseStatusComplete,
	}))
}

func TestSQLite_SaveAndGetRisks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "t", "/f")
	require.NoError(t, err)

	risks := []model.Risk{
		{ID: "r1", Type: model.RiskTypeRisk, Description: "first",
			Severity: model.SeverityHigh, Probability: model.ProbabilityLow,
			Category: model.CategoryLegal},
		{ID: "r2", Type: model.RiskTypeError, Description: "second",
			Severity: model.SeverityLow, Probability: model.ProbabilityHigh,
			Category: model.CategoryFinancial, Recommendations: []string{"fix it"}},
	}
	require.NoError(t, st.SaveRisks(ctx, run.ID, risks))

	got, err := st.GetRisks(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, []string{"fix it"}, got[1].Recommendations)

	none, err := st.GetRisks(ctx, "other-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}
