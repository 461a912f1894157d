package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/internal/dispatch"
	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// Deduplicator merges duplicate risks in two model stages: a batched compare
// over slices of the input, then one global compaction over the combined
// output. Every model failure is non-fatal; the worst outcome is risks left
// unmerged.
type Deduplicator struct {
	caller caller
	limit  int
}

func NewDeduplicator(client anthropic.Client, cfg *config.Config) *Deduplicator {
	return &Deduplicator{
		caller: caller{client: client, cfg: cfg.Anthropic},
		limit:  cfg.Analysis.MaxConcurrency,
	}
}

// Deduplicate returns the risk list with duplicates merged. Stage one splits
// the input into batches of batchSize and merges duplicates within each
// batch; a batch whose reply cannot be used passes through unchanged. Stage
// two compacts the combined stage-one output in a single call, keeping that
// output when the call fails.
func (d *Deduplicator) Deduplicate(ctx context.Context, risks []model.Risk, batchSize int) ([]model.Risk, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage
	if len(risks) < 2 {
		return risks, usage
	}
	if batchSize < 1 {
		batchSize = 1
	}

	compared, compareUsage := d.compareBatches(ctx, risks, batchSize)
	usage.Add(compareUsage)

	compacted, compactUsage := d.compactAll(ctx, compared)
	usage.Add(compactUsage)
	return compacted, usage
}

// compareBatches runs stage one. Batches are submitted concurrently; outputs
// are concatenated in batch order. A failed batch keeps its members.
func (d *Deduplicator) compareBatches(ctx context.Context, risks []model.Risk, batchSize int) ([]model.Risk, anthropic.TokenUsage) {
	var batches [][]model.Risk
	for start := 0; start < len(risks); start += batchSize {
		end := min(start+batchSize, len(risks))
		batches = append(batches, risks[start:end])
	}

	results, err := dispatch.Map(ctx, batches, d.limit,
		func(ctx context.Context, batch []model.Risk) (extractOutcome, error) {
			return d.compareOne(ctx, batch)
		})

	var usage anthropic.TokenUsage
	if err != nil {
		zap.L().Warn("batch compare dispatch failed, keeping all risks", zap.Error(err))
		return risks, usage
	}

	out := make([]model.Risk, 0, len(risks))
	for i, res := range results {
		usage.Add(res.Value.usage)
		if res.Err != nil {
			zap.L().Warn("batch compare failed, keeping batch members",
				zap.Int("batch", i),
				zap.Error(res.Err))
			out = append(out, batches[i]...)
			continue
		}
		out = append(out, res.Value.risks...)
	}
	return out, usage
}

func (d *Deduplicator) compareOne(ctx context.Context, batch []model.Risk) (extractOutcome, error) {
	prompt, err := dedupBatchUserPrompt(batch)
	if err != nil {
		return extractOutcome{}, err
	}
	raw, usage, err := d.caller.complete(ctx, dedupBatchSystemPrompt, prompt)
	if err != nil {
		return extractOutcome{usage: usage}, err
	}

	decoded, err := decodeRisks(raw)
	if err != nil {
		return extractOutcome{usage: usage}, eris.Wrap(err, "analyzer: decode compared batch")
	}
	return extractOutcome{risks: validMerged(decoded), usage: usage}, nil
}

// compactAll runs stage two: one call over the full stage-one output. Any
// failure keeps the input unchanged.
func (d *Deduplicator) compactAll(ctx context.Context, risks []model.Risk) ([]model.Risk, anthropic.TokenUsage) {
	var usage anthropic.TokenUsage
	if len(risks) < 2 {
		return risks, usage
	}

	prompt, err := dedupCompactUserPrompt(risks)
	if err != nil {
		return risks, usage
	}
	raw, callUsage, err := d.caller.complete(ctx, dedupCompactSystemPrompt, prompt)
	usage.Add(callUsage)
	if err != nil {
		zap.L().Warn("global compaction failed, keeping compared risks", zap.Error(err))
		return risks, usage
	}

	decoded, err := decodeRisks(raw)
	if err != nil {
		zap.L().Warn("global compaction reply unusable, keeping compared risks", zap.Error(err))
		return risks, usage
	}
	return validMerged(decoded), usage
}

// validMerged normalizes and validates model-returned records, dropping the
// invalid ones. Records missing an ID or timestamp get fresh values so the
// model does not have to echo bookkeeping fields.
func validMerged(decoded []model.Risk) []model.Risk {
	now := time.Now().UTC().Format(time.RFC3339)
	kept := decoded[:0]
	for _, r := range decoded {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt == "" {
			r.CreatedAt = now
		}
		r.Normalize()
		if err := r.Validate(); err != nil {
			zap.L().Warn("dropping malformed merged risk", zap.Error(err))
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// SimpleDeduplicate removes exact duplicates by content signature, keeping
// the first occurrence. It needs no model and never fails.
func SimpleDeduplicate(risks []model.Risk) []model.Risk {
	seen := make(map[string]bool, len(risks))
	out := make([]model.Risk, 0, len(risks))
	for _, r := range risks {
		sig := r.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}
