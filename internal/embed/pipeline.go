// Package embed generates embedding vectors through an Ollama-family HTTP
// endpoint, negotiating among several incompatible wire shapes and falling
// back to deterministic vectors when explicitly allowed.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tmc/langchaingo/textsplitter"
)

// charsPerToken is the fixed heuristic used to turn the model context
// length into a character budget without a tokenizer dependency.
const charsPerToken = 4

// Config holds embedding endpoint and batching knobs.
type Config struct {
	BaseURL       string
	Model         string
	ContextLength int
	BatchSize     int
	Dimensions    int
	AllowChunking bool
	AllowFallback bool
	Timeout       time.Duration
}

// Pipeline is a stateless embedding generator; the only cross-call state is
// the one-time best-effort model bootstrap.
type Pipeline struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger

	ensureOnce sync.Once
}

// New creates a pipeline. Zero-value config fields fall back to defaults
// matching a local Ollama with nomic-embed-text.
func New(cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.ContextLength <= 0 {
		cfg.ContextLength = 2048
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Embed returns exactly one vector per input text, or fails as a unit.
// Texts over the character budget are split into ordered pieces whose
// vectors are mean-pooled back into one vector, when chunking is allowed.
func (p *Pipeline) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	p.ensureOnce.Do(func() { p.ensureModel(ctx) })

	pieces, owners, err := p.splitToBudget(texts)
	if err != nil {
		return nil, err
	}

	vectors, err := p.embedPieces(ctx, pieces)
	if err != nil {
		if p.cfg.AllowFallback {
			p.logger.Warn("embedding service unavailable, using deterministic fallback", "error", err)
			out := make([][]float32, len(texts))
			for i, t := range texts {
				out[i] = DeterministicVector(t, p.cfg.Dimensions)
			}
			return out, nil
		}
		return nil, err
	}

	return meanPool(vectors, owners, len(texts))
}

// Healthcheck verifies the embedding endpoint answers a minimal request.
// It never substitutes the deterministic fallback.
func (p *Pipeline) Healthcheck(ctx context.Context) error {
	if _, err := p.embedPieces(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("embedding healthcheck: %w", err)
	}
	return nil
}

// splitToBudget maps each text to one or more ordered pieces within the
// character budget, recording which original input owns each piece.
func (p *Pipeline) splitToBudget(texts []string) (pieces []string, owners []int, err error) {
	budget := p.cfg.ContextLength * charsPerToken

	var splitter textsplitter.RecursiveCharacter
	splitterReady := false

	for i, text := range texts {
		if len(text) <= budget {
			pieces = append(pieces, text)
			owners = append(owners, i)
			continue
		}
		if !p.cfg.AllowChunking {
			return nil, nil, fmt.Errorf("input %d is %d chars, over the %d char budget, and chunking is disabled",
				i, len(text), budget)
		}
		if !splitterReady {
			splitter = textsplitter.NewRecursiveCharacter(
				textsplitter.WithChunkSize(budget),
				textsplitter.WithChunkOverlap(0),
			)
			splitterReady = true
		}
		chunks, splitErr := splitter.SplitText(text)
		if splitErr != nil {
			return nil, nil, fmt.Errorf("split input %d: %w", i, splitErr)
		}
		for _, c := range chunks {
			pieces = append(pieces, c)
			owners = append(owners, i)
		}
	}
	return pieces, owners, nil
}

// embedPieces tries every wire shape in order; the first shape that serves
// all batches wins. Shapes are never mixed within one call.
func (p *Pipeline) embedPieces(ctx context.Context, pieces []string) ([][]float32, error) {
	batches := batch(pieces, p.cfg.BatchSize)

	var failures []error
	for _, shape := range wireShapes {
		all := make([][]float32, 0, len(pieces))
		shapeOK := true
		for _, b := range batches {
			vecs, err := p.callShape(ctx, shape, b)
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", shape.name, err))
				shapeOK = false
				break
			}
			all = append(all, vecs...)
		}
		if shapeOK {
			p.logger.Debug("embedding shape negotiated", "shape", shape.name, "pieces", len(pieces))
			return all, nil
		}
	}
	return nil, fmt.Errorf("all embedding wire shapes failed: %w", errors.Join(failures...))
}

func batch(items []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end])
	}
	return out
}

// meanPool recombines per-piece vectors into one vector per original input
// via arithmetic mean, preserving input order and dimensionality.
func meanPool(vectors [][]float32, owners []int, n int) ([][]float32, error) {
	if len(vectors) != len(owners) {
		return nil, fmt.Errorf("vector count %d does not match piece count %d", len(vectors), len(owners))
	}

	sums := make([][]float32, n)
	counts := make([]int, n)
	for i, vec := range vectors {
		owner := owners[i]
		if sums[owner] == nil {
			sums[owner] = make([]float32, len(vec))
		}
		if len(vec) != len(sums[owner]) {
			return nil, fmt.Errorf("dimension mismatch within input %d: got %d, want %d",
				owner, len(vec), len(sums[owner]))
		}
		for j, v := range vec {
			sums[owner][j] += v
		}
		counts[owner]++
	}

	for i := range sums {
		if counts[i] == 0 {
			return nil, fmt.Errorf("no vector produced for input %d", i)
		}
		if counts[i] > 1 {
			inv := 1 / float32(counts[i])
			for j := range sums[i] {
				sums[i][j] *= inv
			}
		}
	}
	return sums, nil
}
