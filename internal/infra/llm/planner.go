package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/answerer"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// toolDefinitions is the closed set of tools exposed to the planner model
// (spec §4.10: search_all, search_specific, get_document_metadata).
var toolDefinitions = []Tool{
	{
		Type: "function",
		Function: ToolFunction{
			Name:        string(answerer.ToolSearchAll),
			Description: "Search across every document the caller may view for chunks relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        string(answerer.ToolSearchSpecific),
			Description: "Search within a single named document for chunks relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string"},
					"document_id": map[string]any{"type": "string"},
				},
				"required": []string{"query", "document_id"},
			},
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        string(answerer.ToolGetMetadata),
			Description: "Fetch the metadata summary for a single named document.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_id": map[string]any{"type": "string"},
				},
				"required": []string{"document_id"},
			},
		},
	},
}

type toolArguments struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id"`
}

// Planner adapts Client's tool-calling protocol to answerer.Planner, so
// C10 never sees wire-format details (spec §4.10).
type Planner struct {
	client      *Client
	model       string
	temperature float32
	systemMsg   string
}

// NewPlanner constructs C10's LLM-backed planner adapter.
func NewPlanner(client *Client, model string, temperature float32) *Planner {
	return &Planner{
		client:      client,
		model:       model,
		temperature: temperature,
		systemMsg: "You are BEACON, a retrieval assistant for a national " +
			"education ministry's document platform. Answer only from " +
			"tool results; cite every claim by document. If the tools " +
			"return nothing relevant, say so rather than guessing.",
	}
}

// NextStep implements answerer.Planner.
func (p *Planner) NextStep(ctx context.Context, history []answerer.Message, results []answerer.ToolResult) (answerer.Step, error) {
	messages := make([]Message, 0, len(history)+len(results)+1)
	messages = append(messages, Message{Role: "system", Content: p.systemMsg})
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	for _, r := range results {
		content := r.Summary
		if r.Err != nil {
			content = fmt.Sprintf("tool error: %v", r.Err)
		}
		messages = append(messages, Message{
			Role:    "tool",
			Content: fmt.Sprintf("[%s] %s", r.Call.Tool, content),
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		Tools:       toolDefinitions,
	})
	if err != nil {
		return answerer.Step{}, apperrors.Wrap(apperrors.CodeUpstreamError, "planner completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return answerer.Step{}, apperrors.Wrap(apperrors.CodeUpstreamError, "planner returned no choices", nil)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return answerer.Step{Final: msg.Content}, nil
	}

	call := msg.ToolCalls[0]
	var args toolArguments
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return answerer.Step{}, apperrors.Wrap(apperrors.CodeUpstreamError, "planner emitted malformed tool arguments", err)
	}

	toolCall := answerer.ToolCall{
		Tool:  answerer.ToolName(call.Function.Name),
		Query: args.Query,
	}
	if args.DocumentID != "" {
		if id, err := uuid.Parse(args.DocumentID); err == nil {
			toolCall.DocumentID = &id
		}
	}
	return answerer.Step{Call: &toolCall}, nil
}
