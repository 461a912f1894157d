package analyzer

import (
	"context"
	"sync"

	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

// mockClient implements anthropic.Client with a scripted respond function.
type mockClient struct {
	mu      sync.Mutex
	calls   []anthropic.MessageRequest
	respond func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (m *mockClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.respond(req)
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

// systemText returns the first system block of a request, or "".
func systemText(req anthropic.MessageRequest) string {
	if len(req.System) == 0 {
		return ""
	}
	return req.System[0].Text
}

func userText(req anthropic.MessageRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[0].Content
}
