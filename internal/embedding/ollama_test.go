package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acervolegal/acervo/pkg/utils"
)

func ollamaTestServer(t *testing.T, embedding []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: embedding})
	}))
}

func TestOllamaEmbed(t *testing.T) {
	srv := ollamaTestServer(t, []float64{3, 4, 0})
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, 10, true)
	got, err := e.Embed(context.Background(), "mandado de segurança")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	// normalize=true: the raw [3 4 0] comes back unit length.
	if n := utils.L2Norm(got); math.Abs(n-1.0) > 1e-5 {
		t.Errorf("norm=%f, want 1", n)
	}
}

func TestOllamaEmbedNoNormalize(t *testing.T) {
	srv := ollamaTestServer(t, []float64{3, 4, 0})
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, 10, false)
	got, err := e.Embed(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 3 || got[1] != 4 {
		t.Errorf("got %v, want raw [3 4 0]", got)
	}
}

func TestOllamaDimensionMismatch(t *testing.T) {
	srv := ollamaTestServer(t, []float64{1, 2})
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, 10, true)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing", 3, 10, true)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
