package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embedHandler serves the /api/embed array shape and rejects the others,
// forcing the pipeline to negotiate past the first wire shape.
func embedHandler(t *testing.T, dims int, calls *[]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.URL.Path)
		switch r.URL.Path {
		case "/api/show":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req struct {
				Input   []string       `json:"input"`
				Options map[string]any `json:"options"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotNil(t, req.Options["num_ctx"], "array shape carries the context option")

			vectors := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				vec := make([]float32, dims)
				vec[0] = float32(len(text))
				vectors[i] = vec
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
		default:
			http.Error(w, "unsupported", http.StatusNotFound)
		}
	}
}

func TestEmbedNegotiatesWireShape(t *testing.T) {
	var calls []string
	server := httptest.NewServer(embedHandler(t, 8, &calls))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, Dimensions: 8}, nil)

	vectors, err := p.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2, "one vector per input")
	assert.Len(t, vectors[0], 8)

	assert.Contains(t, calls, "/api/embeddings", "first shape is tried before falling through")
	assert.Contains(t, calls, "/api/embed")
}

func TestEmbedDoesNotMixShapesAcrossBatches(t *testing.T) {
	// First shape succeeds for batch one, fails for batch two. The whole
	// shape must be abandoned and the next one serve every batch.
	firstShapeCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			w.WriteHeader(http.StatusOK)
		case "/api/embeddings":
			firstShapeCalls++
			if firstShapeCalls > 1 {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			data := make([]map[string]any, len(req.Input))
			for i := range req.Input {
				data[i] = map[string]any{"embedding": []float32{1, 0}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vectors := make([][]float32, len(req.Input))
			for i := range req.Input {
				vectors[i] = []float32{0, 1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
		default:
			http.Error(w, "unsupported", http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, BatchSize: 2, Dimensions: 2}, nil)

	vectors, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		assert.Equal(t, []float32{0, 1}, vec, "vector %d must come from the shape that served all batches", i)
	}
}

func TestEmbedRejectsVectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			w.WriteHeader(http.StatusOK)
		default:
			// Every shape answers with a single vector regardless of input size.
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data":       []map[string]any{{"embedding": []float32{1}}},
				"embeddings": [][]float32{{1}},
			})
		}
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL}, nil)

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err, "a short vector list must fail, never return partial results")
	assert.Contains(t, err.Error(), "mismatch")
}

func TestEmbedChunksAndMeanPools(t *testing.T) {
	const dims = 4
	var calls []string
	server := httptest.NewServer(embedHandler(t, dims, &calls))
	defer server.Close()

	// Budget is contextLength*4 chars; one word per chunk keeps pooling
	// arithmetic predictable: vec[0] = chunk length.
	p := New(Config{
		BaseURL:       server.URL,
		ContextLength: 1, // 4-char budget
		Dimensions:    dims,
		AllowChunking: true,
	}, nil)

	vectors, err := p.Embed(context.Background(), []string{"aaaa bbbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], dims, "pooled vector keeps the dimensionality")

	// Both chunks are 4 chars, so the mean of vec[0] is 4.
	assert.InDelta(t, 4.0, float64(vectors[0][0]), 0.001, "pooled value is the arithmetic mean of the pieces")
}

func TestEmbedFailsFastWhenChunkingDisabled(t *testing.T) {
	p := New(Config{ContextLength: 2, AllowChunking: false}, nil)

	_, err := p.Embed(context.Background(), []string{"short", "this one is far too long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input 1", "error must identify the offending input")
}

func TestEmbedFallsBackDeterministically(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, Dimensions: 16, AllowFallback: true}, nil)

	first, err := p.Embed(context.Background(), []string{"some review text"})
	require.NoError(t, err, "fallback should absorb a dead endpoint")
	second, err := p.Embed(context.Background(), []string{"some review text"})
	require.NoError(t, err)
	assert.Equal(t, first, second, "fallback vectors are stable across calls")

	var norm float64
	for _, v := range first[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 0.001, "fallback vectors are L2-normalized")
}

func TestEmbedFailsWithoutFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, AllowFallback: false}, nil)

	_, err := p.Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire shapes failed")
}

func TestHealthcheckBypassesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL, AllowFallback: true}, nil)

	err := p.Healthcheck(context.Background())
	require.Error(t, err, "healthcheck must report the real endpoint state, fallback or not")
}

func TestEmbedEmptyInput(t *testing.T) {
	p := New(Config{}, nil)
	vectors, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestDeterministicVectorProperties(t *testing.T) {
	vec := DeterministicVector("the same text", 32)
	again := DeterministicVector("the same text", 32)
	other := DeterministicVector("different text", 32)

	assert.Equal(t, vec, again, "same input yields the same vector")
	assert.NotEqual(t, vec, other)
	assert.Len(t, vec, 32)
}

func TestBatchSplitsEvenly(t *testing.T) {
	items := make([]string, 10)
	for i := range items {
		items[i] = fmt.Sprintf("t%d", i)
	}
	batches := batch(items, 4)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[2], 2)
	assert.True(t, strings.HasPrefix(batches[2][1], "t9"))
}
