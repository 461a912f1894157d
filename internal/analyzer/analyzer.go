// Package analyzer orchestrates a document risk analysis run: load, segment,
// extract, deduplicate, classify, report. Item-level failures degrade the
// result instead of failing the run; only infrastructure errors are fatal.
package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/internal/loader"
	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/internal/store"
	"github.com/atlas-diligence/riskscan/internal/textproc"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// Analyzer wires the run phases together.
type Analyzer struct {
	cfg        *config.Config
	store      store.Store
	loader     *loader.Loader
	segmenter  *textproc.Segmenter
	extractor  *Extractor
	dedup      *Deduplicator
	classifier *Classifier
	reporter   *Reporter
	writer     *ReportWriter
}

// New creates an Analyzer with all dependencies.
func New(cfg *config.Config, st store.Store, client anthropic.Client) (*Analyzer, error) {
	seg, err := textproc.NewSegmenter(cfg.Analysis.MaxChunkSize, cfg.Analysis.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg:        cfg,
		store:      st,
		loader:     loader.New(),
		segmenter:  seg,
		extractor:  NewExtractor(client, cfg),
		dedup:      NewDeduplicator(client, cfg),
		classifier: NewClassifier(client, cfg),
		reporter:   NewReporter(client, cfg),
		writer:     NewReportWriter(cfg.Report.Dir),
	}, nil
}

// Run executes a full analysis of the documents in folder against topic.
func (a *Analyzer) Run(ctx context.Context, topic, folder string) (*model.Run, error) {
	log := zap.L().With(zap.String("topic", topic), zap.String("folder", folder))
	log.Info("analysis: starting run")

	run, err := a.store.CreateRun(ctx, topic, folder)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: create run")
	}

	result, err := a.execute(ctx, run, log)
	if err != nil {
		if markErr := a.store.MarkRunFailed(ctx, run.ID, err); markErr != nil {
			log.Warn("analysis: failed to record failure", zap.Error(markErr))
		}
		return nil, err
	}

	if err := a.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		return nil, eris.Wrap(err, "analysis: store result")
	}
	run.Status = model.RunStatusComplete
	run.Result = result

	log.Info("analysis: run complete",
		zap.String("run_id", run.ID),
		zap.Int("risks", result.RisksAfterDedup),
		zap.Int("failed_items", result.FailedItems),
		zap.Int64("duration_ms", result.Duration))
	return run, nil
}

func (a *Analyzer) execute(ctx context.Context, run *model.Run, log *zap.Logger) (*model.RunResult, error) {
	start := time.Now()
	result := &model.RunResult{}
	var usage anthropic.TokenUsage

	setStatus := func(status model.RunStatus) {
		if err := a.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
			log.Warn("analysis: failed to update status", zap.Error(err))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := a.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("analysis: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		phaseStart := time.Now()
		pr, fnErr := fn()
		duration := time.Since(phaseStart).Milliseconds()

		if pr == nil {
			pr = &model.PhaseResult{}
		}
		pr.Name = name
		pr.Duration = duration

		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("analysis: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr))
		} else {
			pr.Status = model.PhaseStatusComplete
			log.Info("analysis: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration))
		}

		if phase != nil {
			_ = a.store.CompletePhase(ctx, phase.ID, pr)
		}
		result.Phases = append(result.Phases, *pr)
		return fnErr
	}

	// Phase 1: load documents.
	setStatus(model.RunStatusLoading)
	var docs []model.Document
	if err := trackPhase("load", func() (*model.PhaseResult, error) {
		var loadErr error
		docs, loadErr = a.loader.LoadFolder(run.Folder)
		if loadErr != nil {
			return nil, loadErr
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"documents": len(docs)},
		}, nil
	}); err != nil {
		return nil, err
	}
	result.DocumentCount = len(docs)

	// Phase 2: segment and batch.
	setStatus(model.RunStatusSegmenting)
	var items []Item
	_ = trackPhase("segment", func() (*model.PhaseResult, error) {
		items = a.buildItems(docs, result)
		return &model.PhaseResult{
			Metadata: map[string]any{"chunks": result.ChunkCount, "batches": len(items)},
		}, nil
	})

	// Phase 3: extract risks.
	setStatus(model.RunStatusExtracting)
	var risks []model.Risk
	if err := trackPhase("extract", func() (*model.PhaseResult, error) {
		var stats ExtractStats
		var extErr error
		risks, stats, extErr = a.extractor.Extract(ctx, run.Topic, items)
		if extErr != nil {
			return nil, extErr
		}
		usage.Add(stats.Usage)
		result.FailedItems = stats.FailedItems
		return &model.PhaseResult{
			Metadata: map[string]any{"risks": len(risks), "failed_items": stats.FailedItems},
		}, nil
	}); err != nil {
		return nil, err
	}
	result.RisksFound = len(risks)

	// Phase 4: deduplicate. Signature matches first, then the model.
	setStatus(model.RunStatusDeduplicating)
	_ = trackPhase("deduplicate", func() (*model.PhaseResult, error) {
		before := len(risks)
		risks = SimpleDeduplicate(risks)
		if a.cfg.Analysis.LLMDedup {
			var dedupUsage anthropic.TokenUsage
			risks, dedupUsage = a.dedup.Deduplicate(ctx, risks, a.cfg.Analysis.BatchSize)
			usage.Add(dedupUsage)
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"before": before, "after": len(risks)},
		}, nil
	})
	result.RisksAfterDedup = len(risks)

	// Phase 5: classify relevance.
	setStatus(model.RunStatusClassifying)
	_ = trackPhase("classify", func() (*model.PhaseResult, error) {
		var classUsage anthropic.TokenUsage
		risks, classUsage = a.classifier.Classify(ctx, run.Topic, risks)
		usage.Add(classUsage)
		return nil, nil
	})

	if err := a.store.SaveRisks(ctx, run.ID, risks); err != nil {
		log.Warn("analysis: failed to persist risks", zap.Error(err))
	}

	// Phase 6: report.
	setStatus(model.RunStatusReporting)
	_ = trackPhase("report", func() (*model.PhaseResult, error) {
		report, byModel, reportUsage := a.reporter.Render(ctx, run.Topic, risks)
		usage.Add(reportUsage)
		result.Report = report

		path, writeErr := a.writer.Write(run, risks, report)
		if writeErr != nil {
			return &model.PhaseResult{
				Metadata: map[string]any{"model_written": byModel},
			}, writeErr
		}
		result.ReportPath = path
		return &model.PhaseResult{
			Metadata: map[string]any{"model_written": byModel, "path": path},
		}, nil
	})

	result.Duration = time.Since(start).Milliseconds()
	result.TokenUsage = model.TokenUsage{
		InputTokens:         int(usage.InputTokens),
		OutputTokens:        int(usage.OutputTokens),
		CacheCreationTokens: int(usage.CacheCreationInputTokens),
		CacheReadTokens:     int(usage.CacheReadInputTokens),
		Cost:                usage.EstimateCost(a.cfg.Anthropic.Model),
	}
	usage.LogCost(a.cfg.Anthropic.Model, "run")
	return result, nil
}

// groupDocsThreshold is the document count past which chunks are packed into
// batches across documents instead of one batch stream per document.
const groupDocsThreshold = 10

// buildItems segments every document and packs the chunks into request-sized
// batches. With few documents every batch stays within one document, so a
// request maps to a single source; past groupDocsThreshold the chunks of all
// documents are packed together to cut the request count, and each batch
// carries every source it draws from.
func (a *Analyzer) buildItems(docs []model.Document, result *model.RunResult) []Item {
	perDoc := make([][]string, len(docs))
	for i, doc := range docs {
		chunks := a.segmenter.Segment(doc.Name, doc.Content)
		result.ChunkCount += len(chunks)

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Text
		}
		perDoc[i] = texts
	}

	var items []Item
	if len(docs) <= groupDocsThreshold {
		for i, texts := range perDoc {
			for _, batch := range a.segmenter.Group(texts) {
				items = append(items, Item{
					Text:    strings.Join(batch, "\n\n"),
					Sources: []string{docs[i].Name},
				})
			}
		}
		return items
	}

	sourcesByText := make(map[string][]string)
	var all []string
	for i, texts := range perDoc {
		for _, t := range texts {
			sourcesByText[t] = append(sourcesByText[t], docs[i].Name)
			all = append(all, t)
		}
	}
	for _, batch := range a.segmenter.Group(all) {
		items = append(items, Item{
			Text:    strings.Join(batch, "\n\n"),
			Sources: batchSources(batch, sourcesByText),
		})
	}
	return items
}

// batchSources resolves the documents a packed batch draws from. Identical
// chunk text appearing in several documents attributes to all of them.
func batchSources(batch []string, sourcesByText map[string][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range batch {
		for _, s := range sourcesByText[t] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
