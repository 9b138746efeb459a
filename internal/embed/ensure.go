package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ensureModel checks that the target model exists and, if absent, asks the
// server to derive one with the configured context length. Strictly
// best-effort: failures are logged, never returned, and the subsequent
// embedding calls are the real gate.
func (p *Pipeline) ensureModel(ctx context.Context) {
	exists, err := p.postJSON(ctx, "/api/show", map[string]any{"name": p.cfg.Model})
	if err != nil {
		p.logger.Warn("model existence check failed", "model", p.cfg.Model, "error", err)
		return
	}
	if exists {
		return
	}

	modelfile := fmt.Sprintf("FROM nomic-embed-text:latest\nPARAMETER num_ctx %d\n", p.cfg.ContextLength)
	p.logger.Info("creating embedding model", "model", p.cfg.Model, "num_ctx", p.cfg.ContextLength)
	created, err := p.postJSON(ctx, "/api/create", map[string]any{
		"name":      p.cfg.Model,
		"modelfile": modelfile,
	})
	if err != nil {
		p.logger.Warn("model create request failed", "model", p.cfg.Model, "error", err)
		return
	}
	if !created {
		p.logger.Warn("embedding service declined to create model", "model", p.cfg.Model)
	}
}

// postJSON posts a small JSON body and reports whether the server answered
// with a success status.
func (p *Pipeline) postJSON(ctx context.Context, path string, payload any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	url := strings.TrimRight(p.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}
