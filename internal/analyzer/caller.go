package analyzer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlas-diligence/riskscan/internal/config"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// caller wraps the Anthropic client with the run's model settings. The system
// prompt carries a cache breakpoint so repeated calls within a run hit the
// warm prompt cache.
type caller struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

func (c *caller) complete(ctx context.Context, system, user string) (string, anthropic.TokenUsage, error) {
	req := anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   int64(c.cfg.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(system),
		Temperature: &c.cfg.Temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: user},
		},
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return "", anthropic.TokenUsage{}, err
	}

	text := resp.Text()
	if text == "" {
		return "", resp.Usage, eris.New("analyzer: empty model response")
	}
	return text, resp.Usage, nil
}
