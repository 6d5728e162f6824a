// Package chunker implements C6's chunking half: a sentence-boundary-aware,
// token-budgeted splitter built on the same tiktoken encoding the teacher
// repo uses for its upload pipeline.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// sentenceBoundary splits on '.', '!', or '?' followed by whitespace, so a
// chunk boundary never falls mid-sentence unless a single sentence alone
// exceeds the token budget (spec §4.6: "sentence-boundary-aware").
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// TiktokenChunker splits text into overlapping, token-budgeted chunks along
// sentence boundaries. Deterministic for a given input (spec §4.6).
type TiktokenChunker struct {
	targetTokens  int
	overlapTokens int
	encoder       *tiktoken.Tiktoken
}

// NewTiktokenChunker constructs C6's chunker with the spec's defaults
// (W=512, O=50) unless overridden by config.
func NewTiktokenChunker(targetTokens, overlapTokens int) *TiktokenChunker {
	if targetTokens <= 0 {
		targetTokens = 512
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &TiktokenChunker{targetTokens: targetTokens, overlapTokens: overlapTokens, encoder: enc}
}

// Chunk implements retrieval.Chunker.
func (c *TiktokenChunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	maxRunes := c.targetTokens * 5 // conservative guard against token-inflating input

	var (
		out     []string
		current strings.Builder
	)

	flush := func() string {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content == "" {
			return ""
		}
		out = append(out, content)
		return content
	}

	for _, sentence := range sentences {
		if utf8.RuneCountInString(sentence) > maxRunes {
			for _, piece := range splitOversizedSentence(sentence, maxRunes) {
				c.appendPiece(&current, piece, &out, flush)
			}
			continue
		}
		c.appendPiece(&current, sentence, &out, flush)
	}
	if strings.TrimSpace(current.String()) != "" {
		flush()
	}
	return out
}

func (c *TiktokenChunker) appendPiece(current *strings.Builder, piece string, out *[]string, flush func() string) {
	candidate := strings.TrimSpace(current.String() + " " + piece)
	if current.Len() > 0 && c.countTokens(candidate) > c.targetTokens {
		last := flush()
		if c.overlapTokens > 0 && last != "" {
			current.WriteString(c.tailTokens(last, c.overlapTokens))
			current.WriteString(" ")
		}
	}
	if current.Len() > 0 {
		current.WriteString(" ")
	}
	current.WriteString(piece)
}

func (c *TiktokenChunker) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func (c *TiktokenChunker) tailTokens(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}
	if c.encoder != nil {
		ids := c.encoder.Encode(text, nil, nil)
		if len(ids) <= limit {
			return text
		}
		return c.encoder.Decode(ids[len(ids)-limit:])
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[len(words)-limit:], " ")
}

var _ retrieval.Chunker = (*TiktokenChunker)(nil)

func splitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	raw := strings.Split(marked, "\x00")
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitOversizedSentence slices a single sentence that alone exceeds the
// chunk's rune budget into manageable word-aligned pieces.
func splitOversizedSentence(sentence string, maxRunes int) []string {
	words := strings.Fields(sentence)
	var (
		out     []string
		current strings.Builder
		runes   int
	)
	for _, word := range words {
		wordRunes := utf8.RuneCountInString(word)
		if runes+wordRunes > maxRunes && current.Len() > 0 {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
			runes = 0
		}
		current.WriteString(word)
		current.WriteString(" ")
		runes += wordRunes + 1
	}
	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}
