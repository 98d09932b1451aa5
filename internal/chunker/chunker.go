// Package chunker splits long document text into overlapping, separator-aligned chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/acervolegal/acervo/internal/models"
)

// CharsPerToken is the deterministic chars-per-token estimate used to convert
// token budgets into character offsets. Chunking never loads a tokenizer, so
// the same input always produces the same cuts within a run.
const CharsPerToken = 4

// Config holds chunking parameters. Sizes are in tokens (see CharsPerToken).
// Separators is an ordered preference hierarchy: the first separator found
// inside the cut window wins, so paragraph breaks beat sentence breaks beat
// word breaks.
type Config struct {
	TargetTokens  int
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
	Separators    []string
}

// DefaultConfig returns the chunking defaults used across the service.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  500,
		MinTokens:     50,
		MaxTokens:     600,
		OverlapTokens: 50,
		Separators:    []string{"\n\n", "\n", ". ", ", ", " "},
	}
}

type span struct {
	start, end int
	text       string
}

// Chunk splits doc into ordered chunks. A document at or under the max
// threshold yields exactly one chunk; empty or whitespace-only text yields
// none. Each chunk inherits the parent's structured fields, gets the id
// "{parent}_chunk_{i}", and records original_id, chunk_index, total_chunks,
// and its pre-trim char_start/char_end span in Meta.
//
// Chunking is a pure transformation: it performs no I/O and never fails.
func Chunk(doc *models.Document, cfg Config) []*models.Document {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}
	if cfg.TargetTokens <= 0 || cfg.MaxTokens <= 0 || len(cfg.Separators) == 0 {
		def := DefaultConfig()
		if cfg.TargetTokens <= 0 {
			cfg.TargetTokens = def.TargetTokens
		}
		if cfg.MaxTokens <= 0 {
			cfg.MaxTokens = def.MaxTokens
		}
		if len(cfg.Separators) == 0 {
			cfg.Separators = def.Separators
		}
	}

	spans := splitSpans(doc.Text, cfg)
	total := len(spans)
	chunks := make([]*models.Document, 0, total)
	for i, sp := range spans {
		c := doc.Clone()
		c.ID = fmt.Sprintf("%s_chunk_%d", doc.ID, i)
		c.Text = sp.text
		c.Meta[models.MetaOriginalID] = doc.ID
		c.Meta[models.MetaChunkIndex] = i
		c.Meta[models.MetaTotalChunks] = total
		c.Meta[models.MetaCharStart] = sp.start
		c.Meta[models.MetaCharEnd] = sp.end
		chunks = append(chunks, c)
	}
	return chunks
}

func splitSpans(text string, cfg Config) []span {
	maxChars := cfg.MaxTokens * CharsPerToken
	if len(text) <= maxChars {
		return []span{{start: 0, end: len(text), text: strings.TrimSpace(text)}}
	}

	targetChars := cfg.TargetTokens * CharsPerToken
	overlapChars := cfg.OverlapTokens * CharsPerToken
	minChars := cfg.MinTokens * CharsPerToken
	window := targetChars / 10

	var spans []span
	offset := 0
	for offset < len(text) {
		ideal := offset + targetChars
		var cut int
		if ideal >= len(text) {
			cut = len(text)
		} else {
			cut = findCut(text, offset, ideal, window, cfg.Separators)
		}
		piece := strings.TrimSpace(text[offset:cut])
		if piece != "" {
			// A short trailing remainder is folded into the previous chunk
			// instead of being emitted as a fragment on its own.
			if cut >= len(text) && len(piece) < minChars && len(spans) > 0 {
				last := &spans[len(spans)-1]
				last.end = cut
				last.text = strings.TrimSpace(text[last.start:cut])
			} else {
				spans = append(spans, span{start: offset, end: cut, text: piece})
			}
		}
		if cut >= len(text) {
			break
		}
		next := cut - overlapChars
		for next > 0 && next < len(text) && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= offset {
			// Guarantees forward progress and termination even when the
			// overlap exceeds the distance advanced by this cut.
			next = offset + 1
			for next < len(text) && !utf8.RuneStart(text[next]) {
				next++
			}
		}
		offset = next
	}
	return spans
}

// findCut returns the cut position for a chunk starting at offset. It scans
// the ±window region around ideal for separators in preference order; within
// one separator, the occurrence closest to ideal wins. The cut lands just
// after the separator. With no separator in the window, cuts at ideal
// (adjusted to a rune boundary).
func findCut(text string, offset, ideal, window int, separators []string) int {
	lo := ideal - window
	if lo <= offset {
		lo = offset + 1
	}
	hi := ideal + window
	if hi > len(text) {
		hi = len(text)
	}
	if lo < hi {
		region := text[lo:hi]
		for _, sep := range separators {
			best := -1
			from := 0
			for {
				i := strings.Index(region[from:], sep)
				if i < 0 {
					break
				}
				cut := lo + from + i + len(sep)
				if best == -1 || abs(cut-ideal) < abs(best-ideal) {
					best = cut
				}
				from += i + 1
			}
			if best != -1 {
				return best
			}
		}
	}
	cut := ideal
	if cut > len(text) {
		cut = len(text)
	}
	for cut > offset+1 && cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
