package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// wireShape is one request/response dialect of the embedding endpoint
// family. Only a well-formed response whose vector count equals the batch
// size is ever accepted.
type wireShape struct {
	name  string
	path  string
	build func(model string, input []string, numCtx int) any
	parse func(body []byte) ([][]float32, error)
}

type embeddingsDataResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type embedArrayResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func parseDataShape(body []byte) ([][]float32, error) {
	var resp embeddingsDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

func parseArrayShape(body []byte) ([][]float32, error) {
	var resp embedArrayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Embeddings, nil
}

// wireShapes are tried in order; older Ollama builds answer /api/embeddings,
// newer ones /api/embed, and OpenAI-compatible gateways /v1/embeddings.
var wireShapes = []wireShape{
	{
		name: "api/embeddings",
		path: "/api/embeddings",
		build: func(model string, input []string, _ int) any {
			return map[string]any{"model": model, "input": input}
		},
		parse: parseDataShape,
	},
	{
		name: "api/embed",
		path: "/api/embed",
		build: func(model string, input []string, numCtx int) any {
			return map[string]any{
				"model":   model,
				"input":   input,
				"options": map[string]any{"num_ctx": numCtx},
			}
		},
		parse: parseArrayShape,
	},
	{
		name: "v1/embeddings",
		path: "/v1/embeddings",
		build: func(model string, input []string, _ int) any {
			return map[string]any{"model": model, "input": input}
		},
		parse: parseDataShape,
	},
}

// callShape issues one batch against one wire shape and validates the
// length invariant: exactly one vector per input, or the call fails.
func (p *Pipeline) callShape(ctx context.Context, shape wireShape, input []string) ([][]float32, error) {
	payload, err := json.Marshal(shape.build(p.cfg.Model, input, p.cfg.ContextLength))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + shape.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	vectors, err := shape.parse(body.Bytes())
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(input) {
		return nil, fmt.Errorf("vector count mismatch: got %d, want %d", len(vectors), len(input))
	}
	return vectors, nil
}
