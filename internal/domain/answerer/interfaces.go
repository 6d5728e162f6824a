package answerer

import (
	"context"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// ToolName is the closed set of tools the planner may invoke (spec §4.10).
type ToolName string

const (
	ToolSearchAll      ToolName = "search_all"
	ToolSearchSpecific ToolName = "search_specific"
	ToolGetMetadata    ToolName = "get_document_metadata"
)

// ToolCall is one planner-issued invocation.
type ToolCall struct {
	Tool       ToolName
	Query      string
	DocumentID *uuid.UUID
}

// ToolResult is what a tool invocation returned, fed back to the model on
// the next planning step.
type ToolResult struct {
	Call     ToolCall
	Chunks   []retrieval.Result
	Summary  string
	Degraded bool
	Err      error
}

// Step is one decision the planner LLM makes: either another tool call, or
// a final grounded answer (spec §4.10: "terminate either when the model
// emits a final answer or the cap is reached").
type Step struct {
	Call  *ToolCall
	Final string
}

// Planner is C10's reasoning collaborator: given conversation history and
// prior tool results, decide the next step. A thin wrapper around an LLM's
// tool-calling protocol; the wire format is the adapter's concern.
type Planner interface {
	NextStep(ctx context.Context, history []Message, results []ToolResult) (Step, error)
}

// MemoryStore persists and replays conversation turns for a thread (spec
// §4.10: "prior messages in the same thread are prepended; threads are
// identified by an opaque key supplied by the caller").
type MemoryStore interface {
	Append(ctx context.Context, threadID string, msg Message) error
	Recent(ctx context.Context, threadID string, maxMessages int) ([]Message, error)
}

// Retriever is C9's surface as seen by C10's search_all tool.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, viewer identity.Viewer, k int, explicitTargets []uuid.UUID) (retrieval.RetrieveResponse, error)
}

// DocumentAccess is C4+C3's combined surface as seen by C10's
// search_specific and get_document_metadata tools: a row-level access
// check plus the document/metadata read it gates.
type DocumentAccess interface {
	CanView(ctx context.Context, viewer identity.Viewer, docID uuid.UUID) (bool, error)
	Metadata(ctx context.Context, docID uuid.UUID) (document.Document, document.Metadata, bool, error)
}

// SpecificSearcher is C8+C7 as seen by search_specific: ensure the target
// document is embedded, then search within it only.
type SpecificSearcher interface {
	SearchWithin(ctx context.Context, docID uuid.UUID, queryText string, viewer identity.Viewer, k int) ([]retrieval.Result, error)
}
