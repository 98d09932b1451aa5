package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/acervolegal/acervo/internal/models"
)

func testConfig(target, overlap int) Config {
	return Config{
		TargetTokens:  target,
		MinTokens:     10,
		MaxTokens:     target,
		OverlapTokens: overlap,
		Separators:    []string{"\n\n", ". ", " "},
	}
}

// longText returns deterministic legal-looking prose of at least n chars.
func longText(n int) string {
	var b strings.Builder
	i := 0
	for b.Len() < n {
		fmt.Fprintf(&b, "O tribunal reconheceu a tese %d firmada em repercussão geral. ", i)
		i++
		if i%5 == 0 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func TestChunkEmptyText(t *testing.T) {
	if got := Chunk(&models.Document{ID: "d", Text: ""}, DefaultConfig()); len(got) != 0 {
		t.Errorf("empty text should yield zero chunks, got %d", len(got))
	}
	if got := Chunk(&models.Document{ID: "d", Text: "  \n\t "}, DefaultConfig()); len(got) != 0 {
		t.Errorf("whitespace text should yield zero chunks, got %d", len(got))
	}
}

func TestChunkSmallDocumentSingleChunk(t *testing.T) {
	doc := &models.Document{ID: "cf88-art5", Text: "Todos são iguais perante a lei."}
	chunks := Chunk(doc, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.ID != "cf88-art5_chunk_0" {
		t.Errorf("ID=%q", c.ID)
	}
	if c.Meta[models.MetaChunkIndex] != 0 || c.Meta[models.MetaTotalChunks] != 1 {
		t.Errorf("meta=%v", c.Meta)
	}
	if c.Text != doc.Text {
		t.Errorf("Text=%q", c.Text)
	}
}

func TestChunkInheritsStructuredFields(t *testing.T) {
	doc := &models.Document{
		ID:      "hc-228302",
		Title:   "HC 228302",
		Text:    longText(5000),
		Court:   "STF",
		Code:    "CPP",
		Article: "648",
		Date:    "2023-05-11",
		Meta:    map[string]interface{}{"relator": "Min. Example"},
	}
	chunks := Chunk(doc, testConfig(100, 0))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Court != "STF" || c.Code != "CPP" || c.Article != "648" || c.Date != "2023-05-11" {
			t.Errorf("chunk %d lost structured fields: %+v", i, c)
		}
		if c.Meta["relator"] != "Min. Example" {
			t.Errorf("chunk %d lost parent meta", i)
		}
		if c.Meta[models.MetaOriginalID] != "hc-228302" {
			t.Errorf("chunk %d original_id=%v", i, c.Meta[models.MetaOriginalID])
		}
	}
	// Parent meta must not be mutated by chunking.
	if _, ok := doc.Meta[models.MetaChunkIndex]; ok {
		t.Error("parent Meta was mutated")
	}
}

func TestChunkReconstructionNoOverlap(t *testing.T) {
	text := longText(4000)
	doc := &models.Document{ID: "d", Text: text}
	chunks := Chunk(doc, testConfig(100, 0))
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	// With zero overlap the pre-trim spans tile the text exactly.
	prevEnd := 0
	var rebuilt strings.Builder
	for i, c := range chunks {
		start := c.Meta[models.MetaCharStart].(int)
		end := c.Meta[models.MetaCharEnd].(int)
		if start != prevEnd {
			t.Errorf("chunk %d starts at %d, want %d (contiguous spans)", i, start, prevEnd)
		}
		rebuilt.WriteString(text[start:end])
		prevEnd = end
	}
	if prevEnd != len(text) {
		t.Errorf("last span ends at %d, want %d", prevEnd, len(text))
	}
	if rebuilt.String() != text {
		t.Error("span concatenation does not reproduce the original text")
	}
	// The trimmed chunk texts reproduce the original modulo boundary whitespace.
	stripped := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	joined := stripped(strings.Join(chunkTexts(chunks), " "))
	if joined != stripped(text) {
		t.Error("joined chunk texts do not match original (whitespace-insensitive)")
	}
}

func TestChunkBound(t *testing.T) {
	cfg := testConfig(100, 0)
	chunks := Chunk(&models.Document{ID: "d", Text: longText(6000)}, cfg)
	targetChars := cfg.TargetTokens * CharsPerToken
	limit := targetChars + targetChars/10
	for i, c := range chunks {
		start := c.Meta[models.MetaCharStart].(int)
		end := c.Meta[models.MetaCharEnd].(int)
		// The final chunk may absorb a short remainder.
		if i < len(chunks)-1 && end-start > limit {
			t.Errorf("chunk %d span = %d chars, want <= %d", i, end-start, limit)
		}
	}
}

func TestChunkOverlapSharing(t *testing.T) {
	cfg := testConfig(100, 20)
	text := longText(4000)
	chunks := Chunk(&models.Document{ID: "d", Text: text}, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected >=2 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].Meta[models.MetaCharEnd].(int)
		start := chunks[i].Meta[models.MetaCharStart].(int)
		if start >= prevEnd {
			t.Errorf("chunks %d/%d share no overlap region: prev end %d, next start %d", i-1, i, prevEnd, start)
		}
	}
}

func TestChunkForwardProgressWithLargeOverlap(t *testing.T) {
	// Overlap larger than the target must still terminate.
	cfg := Config{TargetTokens: 25, MaxTokens: 25, OverlapTokens: 100, Separators: []string{" "}}
	chunks := Chunk(&models.Document{ID: "d", Text: longText(2000)}, cfg)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Meta[models.MetaCharStart].(int)
		cur := chunks[i].Meta[models.MetaCharStart].(int)
		if cur <= prev {
			t.Fatalf("offsets not strictly increasing: %d then %d", prev, cur)
		}
	}
}

func TestChunkOverlapRuneBoundaries(t *testing.T) {
	// "ação" is a 6-byte word, so an overlap rewind measured in bytes can
	// land on a UTF-8 continuation byte unless adjusted to a rune start.
	text := strings.Repeat("ação ", 60)
	cfg := Config{
		TargetTokens:  10,
		MinTokens:     2,
		MaxTokens:     10,
		OverlapTokens: 3,
		Separators:    []string{" "},
	}
	chunks := Chunk(&models.Document{ID: "d", Text: text}, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d text is not valid UTF-8: %q", i, c.Text)
		}
		start := c.Meta[models.MetaCharStart].(int)
		if start < len(text) && !utf8.RuneStart(text[start]) {
			t.Errorf("chunk %d starts mid-rune at byte %d", i, start)
		}
	}
}

func TestChunkScenario3000Chars(t *testing.T) {
	// 3000-char document, 600-char target (150 tokens), 100-char overlap
	// (25 tokens), separator hierarchy paragraph > sentence > word.
	text := longText(3000)[:3000]
	cfg := Config{
		TargetTokens:  150,
		MinTokens:     10,
		MaxTokens:     150,
		OverlapTokens: 25,
		Separators:    []string{"\n\n", ". ", " "},
	}
	chunks := Chunk(&models.Document{ID: "re-635659", Text: text}, cfg)
	if len(chunks) < 4 {
		t.Fatalf("expected >=4 chunks, got %d", len(chunks))
	}
	total := chunks[0].Meta[models.MetaTotalChunks]
	for i, c := range chunks {
		if c.Meta[models.MetaTotalChunks] != total {
			t.Errorf("chunk %d total_chunks=%v, want %v", i, c.Meta[models.MetaTotalChunks], total)
		}
		if c.Meta[models.MetaChunkIndex] != i {
			t.Errorf("chunk %d chunk_index=%v", i, c.Meta[models.MetaChunkIndex])
		}
		if c.ID != fmt.Sprintf("re-635659_chunk_%d", i) {
			t.Errorf("chunk %d ID=%q", i, c.ID)
		}
	}
	if total != len(chunks) {
		t.Errorf("total_chunks=%v, want %d", total, len(chunks))
	}
}

func chunkTexts(chunks []*models.Document) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
