package llm

import (
	"context"

	"github.com/moe-gov/beacon/internal/domain/answerer"
)

// NaivePlanner avoids a network call by always issuing exactly one
// search_all tool call, then synthesizing a final answer from whatever
// came back. Used in tests and local/offline development so C10 can run
// without an LLM provider configured, mirroring embedder.DeterministicEmbedder.
type NaivePlanner struct{}

// NewNaivePlanner constructs the offline planner.
func NewNaivePlanner() *NaivePlanner {
	return &NaivePlanner{}
}

var _ answerer.Planner = (*NaivePlanner)(nil)

func (p *NaivePlanner) NextStep(ctx context.Context, history []answerer.Message, results []answerer.ToolResult) (answerer.Step, error) {
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Summary != "" {
			return answerer.Step{Final: last.Summary}, nil
		}
		return answerer.Step{Final: "no matching chunks found"}, nil
	}
	var query string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			query = history[i].Content
			break
		}
	}
	return answerer.Step{Call: &answerer.ToolCall{Tool: answerer.ToolSearchAll, Query: query}}, nil
}
