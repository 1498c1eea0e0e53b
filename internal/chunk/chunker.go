// Package chunk splits file text into token-bounded chunks.
//
// The chunker is line-based: it accumulates whole lines until adding the
// next line would overflow the token budget, then emits the buffer as one
// chunk. Chunks are produced lazily through an iterator so arbitrarily
// large files never need to be materialized as a chunk list.
package chunk

import (
	"iter"
	"strings"
)

// DefaultMaxTokens is the default per-chunk token budget.
const DefaultMaxTokens = 4096

// TokenCounter converts one line of text to a token count.
// The tokenization scheme is a collaborator decision; EstimateTokens is the
// built-in approximation.
type TokenCounter func(line string) int

// Chunk is a contiguous run of a file's lines whose joined text stays within
// the token budget (except for a single line that alone exceeds it).
type Chunk struct {
	// Text is the chunk's lines rejoined with newlines, exactly as they
	// appeared in the source.
	Text string

	// StartLine and EndLine are 1-indexed, inclusive.
	StartLine int
	EndLine   int

	// Tokens is the accumulated token count of the chunk's lines.
	Tokens int
}

// Chunker splits text into token-bounded chunks.
type Chunker struct {
	// MaxTokens is the per-chunk token budget (default: DefaultMaxTokens).
	MaxTokens int

	// Count converts a line to its token count (default: EstimateTokens).
	Count TokenCounter
}

// New creates a Chunker with the given budget and the default token counter.
func New(maxTokens int) *Chunker {
	return &Chunker{MaxTokens: maxTokens}
}

// Split returns a lazy sequence of chunks covering text. The sequence is
// finite and restartable: ranging over it again re-chunks from scratch and
// yields identical chunks. Concatenating all chunks' lines in order
// reconstructs the input's lines exactly. A zero-line input yields nothing.
func (c *Chunker) Split(text string) iter.Seq[Chunk] {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	count := c.Count
	if count == nil {
		count = EstimateTokens
	}

	return func(yield func(Chunk) bool) {
		var buf []string
		tokens := 0
		start := 1
		lineNo := 0

		flush := func() bool {
			if len(buf) == 0 {
				return true
			}
			ok := yield(Chunk{
				Text:      strings.Join(buf, "\n"),
				StartLine: start,
				EndLine:   lineNo,
				Tokens:    tokens,
			})
			buf = buf[:0]
			tokens = 0
			start = lineNo + 1
			return ok
		}

		for line := range Lines(text) {
			t := count(line)
			// Flush before adding when the line would overflow the budget.
			// A single line larger than the budget still goes into its own
			// chunk rather than being split sub-line.
			if tokens+t > maxTokens {
				if !flush() {
					return
				}
			}
			lineNo++
			buf = append(buf, line)
			tokens += t
		}

		flush()
	}
}

// Lines iterates over the lines of text without their line endings,
// mirroring how files are read line-by-line: "\r\n" and "\n" both
// terminate a line, and a trailing newline does not produce a final
// empty line. Empty input yields no lines.
func Lines(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for len(text) > 0 {
			line := text
			if i := strings.IndexByte(text, '\n'); i >= 0 {
				line = text[:i]
				text = text[i+1:]
			} else {
				text = ""
			}
			line = strings.TrimSuffix(line, "\r")
			if !yield(line) {
				return
			}
		}
	}
}
