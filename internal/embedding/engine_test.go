package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConform(t *testing.T) {
	t.Run("truncates long vectors", func(t *testing.T) {
		raw := make([]float32, 768)
		for i := range raw {
			raw[i] = 1
		}
		out := Conform(raw, 384)
		if len(out) != 384 {
			t.Fatalf("expected 384 dims, got %d", len(out))
		}
	})

	t.Run("pads short vectors", func(t *testing.T) {
		out := Conform([]float32{3, 4}, 4)
		if len(out) != 4 {
			t.Fatalf("expected 4 dims, got %d", len(out))
		}
		if out[2] != 0 || out[3] != 0 {
			t.Errorf("padding should be zero, got %v", out)
		}
	})

	t.Run("result is unit length", func(t *testing.T) {
		out := Conform([]float32{3, 4}, 2)
		var sum float64
		for _, v := range out {
			sum += float64(v) * float64(v)
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
		}
	})

	t.Run("zero vector passes through", func(t *testing.T) {
		out := Conform([]float32{0, 0}, 2)
		if out[0] != 0 || out[1] != 0 {
			t.Errorf("zero vector should stay zero, got %v", out)
		}
	})
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	sim, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("identical vectors should have similarity 1, got %f", sim)
	}

	sim, err = CosineSimilarity(a, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("orthogonal vectors should have similarity 0, got %f", sim)
	}

	if _, err := CosineSimilarity(a, []float32{1, 2}); err == nil {
		t.Error("dimension mismatch should error")
	}
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},     // orthogonal
		{1, 0},     // identical
		{0.9, 0.1}, // close
		{-1, 0},    // opposite
		{1, 2, 3},  // wrong dims, skipped
	}

	results, err := FindTopK(query, corpus, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("best match should be index 1, got %d", results[0].Index)
	}
	if results[1].Index != 2 {
		t.Errorf("second match should be index 2, got %d", results[1].Index)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results should be sorted by similarity descending")
	}
}

func TestNewEngineUnsupportedProvider(t *testing.T) {
	_, err := NewEngine(Config{Provider: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNormalizeTaskType(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Empty defaults", "", "SEMANTIC_SIMILARITY"},
		{"Known passes through", "RETRIEVAL_QUERY", "RETRIEVAL_QUERY"},
		{"Unknown defaults", "SUMMARIZE", "SEMANTIC_SIMILARITY"},
		{"Lowercase is unknown", "clustering", "SEMANTIC_SIMILARITY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeTaskType(tt.in); got != tt.want {
				t.Errorf("normalizeTaskType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewEngineGenAIRequiresKey(t *testing.T) {
	_, err := NewEngine(Config{Provider: "genai"})
	if err == nil {
		t.Fatal("expected error for missing GenAI key")
	}
}

func TestOllamaEngine(t *testing.T) {
	// Fake Ollama server returning a fixed 8-dim embedding.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			var req ollamaEmbedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Prompt == "fail" {
				http.Error(w, "model exploded", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(ollamaEmbedResponse{
				Embedding: []float32{1, 2, 3, 4, 5, 6, 7, 8},
			})
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	engine, err := NewOllamaEngine(srv.URL, "test-model", 4)
	if err != nil {
		t.Fatalf("NewOllamaEngine failed: %v", err)
	}

	ctx := context.Background()

	t.Run("embed conforms dimensions", func(t *testing.T) {
		vec, err := engine.Embed(ctx, "hello")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		if len(vec) != 4 {
			t.Fatalf("expected 4 dims, got %d", len(vec))
		}
		if engine.Dimensions() != 4 {
			t.Errorf("Dimensions() = %d, want 4", engine.Dimensions())
		}
	})

	t.Run("batch preserves order", func(t *testing.T) {
		vecs, err := engine.EmbedBatch(ctx, []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("EmbedBatch failed: %v", err)
		}
		if len(vecs) != 3 {
			t.Fatalf("expected 3 embeddings, got %d", len(vecs))
		}
	})

	t.Run("server error surfaces", func(t *testing.T) {
		if _, err := engine.Embed(ctx, "fail"); err == nil {
			t.Error("expected error from 500 response")
		}
	})

	t.Run("health check", func(t *testing.T) {
		if err := engine.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck failed: %v", err)
		}
	})

	t.Run("name includes model", func(t *testing.T) {
		if engine.Name() != "ollama:test-model" {
			t.Errorf("Name() = %q", engine.Name())
		}
	})
}
