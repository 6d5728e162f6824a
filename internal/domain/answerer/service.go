package answerer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/identity"
	"github.com/moe-gov/beacon/internal/domain/retrieval"
	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// maxToolInvocations is the planner's hard cap per question (spec §4.10:
// "bounded number of tool invocations per question (hard cap, e.g., 10)").
const maxToolInvocations = 10

// Service implements C10, the agentic answerer: a thin orchestrator whose
// correctness is that it never bypasses C4 and never leaks chunks a
// viewer could not obtain directly (spec §4.10).
type Service struct {
	planner   Planner
	retriever Retriever
	specific  SpecificSearcher
	docs      DocumentAccess
	memory    MemoryStore
	logger    *slog.Logger
}

// NewService constructs C10.
func NewService(planner Planner, retriever Retriever, specific SpecificSearcher, docs DocumentAccess, memory MemoryStore, logger *slog.Logger) *Service {
	return &Service{
		planner:   planner,
		retriever: retriever,
		specific:  specific,
		docs:      docs,
		memory:    memory,
		logger:    logger.With("component", "answerer.service"),
	}
}

// Query implements the `Query(viewer, query_text, thread_id?)` inbound
// operation (spec §6).
func (s *Service) Query(ctx context.Context, viewer identity.Viewer, queryText string, threadID string) (Answer, error) {
	var history []Message
	if threadID != "" {
		h, err := s.memory.Recent(ctx, threadID, 20)
		if err != nil {
			s.logger.Warn("failed to load conversation memory", "thread_id", threadID, "error", err)
		} else {
			history = h
		}
	}
	history = append(history, Message{Role: "user", Content: queryText})

	citations := make(map[uuid.UUID]Citation)
	degraded := false
	var results []ToolResult

	for i := 0; i < maxToolInvocations; i++ {
		step, err := s.planner.NextStep(ctx, history, results)
		if err != nil {
			return Answer{}, apperrors.Wrap(apperrors.CodeFatal, "planner step failed", err)
		}
		if step.Call == nil {
			return s.finish(ctx, threadID, queryText, step.Final, citations, degraded)
		}

		result := s.invoke(ctx, *step.Call, viewer)
		if result.Err != nil {
			s.logger.Warn("tool invocation failed", "tool", step.Call.Tool, "error", result.Err)
		}
		if result.Degraded {
			degraded = true
		}
		for _, chunk := range result.Chunks {
			c := citations[chunk.DocumentID]
			c.DocumentID = chunk.DocumentID
			c.ApprovalStatus = chunk.ApprovalStatus
			if chunk.Title != "" {
				c.Title = chunk.Title
			}
			if chunk.FusedScore > c.Confidence {
				c.Confidence = chunk.FusedScore
			}
			citations[chunk.DocumentID] = c
		}
		results = append(results, result)
	}

	// Cap reached without a final answer: return what was gathered rather
	// than failing the whole question (spec §4.10: "terminate ... when
	// the cap is reached").
	return s.finish(ctx, threadID, queryText, "", citations, degraded)
}

func (s *Service) invoke(ctx context.Context, call ToolCall, viewer identity.Viewer) ToolResult {
	switch call.Tool {
	case ToolSearchAll:
		resp, err := s.retriever.Retrieve(ctx, call.Query, viewer, 5, nil)
		if err != nil {
			return ToolResult{Call: call, Err: err}
		}
		return ToolResult{Call: call, Chunks: resp.Results, Summary: summarize(resp.Results), Degraded: resp.Degraded}

	case ToolSearchSpecific:
		if call.DocumentID == nil {
			return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeInvalidInput, "search_specific requires a document id", nil)}
		}
		allowed, err := s.docs.CanView(ctx, viewer, *call.DocumentID)
		if err != nil {
			return ToolResult{Call: call, Err: err}
		}
		if !allowed {
			return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeUnauthorized, "viewer may not access this document", nil)}
		}
		chunks, err := s.specific.SearchWithin(ctx, *call.DocumentID, call.Query, viewer, 5)
		if err != nil {
			return ToolResult{Call: call, Err: err}
		}
		return ToolResult{Call: call, Chunks: chunks, Summary: summarize(chunks)}

	case ToolGetMetadata:
		if call.DocumentID == nil {
			return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeInvalidInput, "get_document_metadata requires a document id", nil)}
		}
		allowed, err := s.docs.CanView(ctx, viewer, *call.DocumentID)
		if err != nil {
			return ToolResult{Call: call, Err: err}
		}
		if !allowed {
			return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeUnauthorized, "viewer may not access this document", nil)}
		}
		doc, meta, found, err := s.docs.Metadata(ctx, *call.DocumentID)
		if err != nil || !found {
			return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeNotFound, "document not found", err)}
		}
		return ToolResult{Call: call, Summary: meta.Summary, Chunks: []retrieval.Result{{
			DocumentID:     doc.ID,
			Title:          doc.Title,
			ApprovalStatus: doc.ApprovalStatus,
		}}}

	default:
		return ToolResult{Call: call, Err: apperrors.Wrap(apperrors.CodeInvalidInput, "unknown tool: "+string(call.Tool), nil)}
	}
}

func (s *Service) finish(ctx context.Context, threadID, queryText, answerText string, citations map[uuid.UUID]Citation, degraded bool) (Answer, error) {
	list := make([]Citation, 0, len(citations))
	var confidenceSum float64
	for _, c := range citations {
		list = append(list, c)
		confidenceSum += c.Confidence
	}
	var avgConfidence float64
	if len(list) > 0 {
		avgConfidence = confidenceSum / float64(len(list))
	}
	answer := Answer{Text: answerText, Citations: list, PerQueryConfidence: avgConfidence, Degraded: degraded}

	if threadID != "" {
		if err := s.memory.Append(ctx, threadID, Message{Role: "user", Content: queryText}); err != nil {
			s.logger.Warn("failed to append user message", "thread_id", threadID, "error", err)
		}
		if err := s.memory.Append(ctx, threadID, Message{Role: "assistant", Content: answerText}); err != nil {
			s.logger.Warn("failed to append assistant message", "thread_id", threadID, "error", err)
		}
	}
	return answer, nil
}

func summarize(results []retrieval.Result) string {
	if len(results) == 0 {
		return "no matching chunks"
	}
	return results[0].Text
}
