// Package answerer implements C10, the agentic question-answerer: a small
// bounded tool-call planner over C9/C8/C3, with conversation memory and
// deduplicated citations.
package answerer

import (
	"github.com/google/uuid"

	"github.com/moe-gov/beacon/internal/domain/document"
)

// Citation is a deduplicated-by-document answer source (spec §4.10:
// "deduplicate by doc_id; attach approval_status and a per-citation
// confidence").
type Citation struct {
	DocumentID     uuid.UUID
	Title          string
	ApprovalStatus document.ApprovalStatus
	Confidence     float64
}

// Answer is the `Query(...)` inbound operation's result shape (spec §6).
type Answer struct {
	Text               string
	Citations          []Citation
	PerQueryConfidence float64
	Degraded           bool
}

// Message is one turn of conversation memory, prepended to the planner's
// context for threads sharing the same key (spec §4.10).
type Message struct {
	Role    string
	Content string
}
