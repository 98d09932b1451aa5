package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/acervolegal/acervo/pkg/utils"
)

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "direitos fundamentais")
	b, _ := e.Embed(ctx, "direitos fundamentais")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must produce identical embeddings")
		}
	}
	if n := utils.L2Norm(a); math.Abs(n-1.0) > 1e-5 {
		t.Errorf("embedding norm = %f, want 1", n)
	}
}

func TestMockEmbedderTermSimilarity(t *testing.T) {
	e := NewMockEmbedder(128)
	ctx := context.Background()
	query, _ := e.Embed(ctx, "direitos fundamentais")
	related, _ := e.Embed(ctx, "os direitos fundamentais são invioláveis")
	unrelated, _ := e.Embed(ctx, "prazo processual de quinze dias")
	if dot(query, related) <= dot(query, unrelated) {
		t.Error("text sharing query terms should score higher than unrelated text")
	}
}

func TestMockEmbedderBatch(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	// Batch of one still returns a one-row matrix.
	one, err := e.EmbedBatch(ctx, []string{"habeas corpus"})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || len(one[0]) != 32 {
		t.Errorf("batch of one: got %dx%d", len(one), len(one[0]))
	}

	// Empty batch returns an empty, non-nil matrix, not an error.
	empty, err := e.EmbedBatch(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty batch: got %v", empty)
	}
}
