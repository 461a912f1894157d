package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/internal/dispatch"
	"github.com/atlas-diligence/riskscan/internal/llmjson"
	"github.com/atlas-diligence/riskscan/internal/model"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// Item is one unit of extraction work: a batch of chunk texts small enough for
// a single request, with the documents it came from.
type Item struct {
	Text    string
	Sources []string
}

// ExtractStats reports what happened across a full extraction pass.
type ExtractStats struct {
	Items       int
	FailedItems int
	Usage       anthropic.TokenUsage
}

// Extractor runs risk extraction over batches with bounded concurrency. A
// failed batch costs only its own risks; the pass itself succeeds as long as
// the dispatcher does.
type Extractor struct {
	caller  caller
	limit   int
	limiter *rate.Limiter
}

func NewExtractor(client anthropic.Client, cfg *config.Config) *Extractor {
	var limiter *rate.Limiter
	if cfg.Anthropic.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Anthropic.RatePerSec), 1)
	}
	return &Extractor{
		caller:  caller{client: client, cfg: cfg.Anthropic},
		limit:   cfg.Analysis.MaxConcurrency,
		limiter: limiter,
	}
}

type extractOutcome struct {
	risks []model.Risk
	usage anthropic.TokenUsage
}

// Extract dispatches every item and collects the risks of the ones that
// succeeded. Item order is preserved in the returned risks.
func (e *Extractor) Extract(ctx context.Context, topic string, items []Item) ([]model.Risk, ExtractStats, error) {
	var opts []dispatch.Option
	if e.limiter != nil {
		opts = append(opts, dispatch.WithRateLimit(e.limiter))
	}

	results, err := dispatch.Map(ctx, items, e.limit,
		func(ctx context.Context, item Item) (extractOutcome, error) {
			return e.extractOne(ctx, topic, item)
		}, opts...)
	if err != nil {
		return nil, ExtractStats{}, err
	}

	stats := ExtractStats{Items: len(items)}
	var risks []model.Risk
	for i, res := range results {
		if res.Err != nil {
			stats.FailedItems++
			zap.L().Warn("extraction item failed",
				zap.Int("item", i),
				zap.Strings("sources", items[i].Sources),
				zap.Error(res.Err))
			continue
		}
		risks = append(risks, res.Value.risks...)
		stats.Usage.Add(res.Value.usage)
	}
	return risks, stats, nil
}

func (e *Extractor) extractOne(ctx context.Context, topic string, item Item) (extractOutcome, error) {
	raw, usage, err := e.caller.complete(ctx, extractionSystemPrompt, extractionUserPrompt(topic, item.Text))
	if err != nil {
		return extractOutcome{}, err
	}

	risks, err := decodeRisks(raw)
	if err != nil {
		return extractOutcome{usage: usage}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	source := strings.Join(item.Sources, ", ")
	kept := risks[:0]
	for _, r := range risks {
		r.ID = uuid.NewString()
		r.CreatedAt = now
		if r.SourceDocument == "" {
			r.SourceDocument = source
		}
		r.Normalize()
		if err := r.Validate(); err != nil {
			zap.L().Warn("dropping malformed risk", zap.Error(err))
			continue
		}
		kept = append(kept, r)
	}
	return extractOutcome{risks: kept, usage: usage}, nil
}

// decodeRisks extracts the {"risks": [...]} payload from raw model output.
// A bare top-level array is accepted too.
func decodeRisks(raw string) ([]model.Risk, error) {
	payload, err := llmjson.Extract(raw)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Risks []model.Risk `json:"risks"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Risks != nil {
		return wrapped.Risks, nil
	}

	var bare []model.Risk
	if err := json.Unmarshal(payload, &bare); err == nil {
		return bare, nil
	}

	// An object without a risks key is a valid empty answer.
	var anyObj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &anyObj); err == nil {
		return nil, nil
	}
	return nil, eris.New("analyzer: payload is not a risk list")
}
