package lake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Manifest is the serialized summary record of one ingestion run.
type Manifest struct {
	RunID      string            `json:"runId"`
	Layer      string            `json:"layer"`
	StartedAt  *time.Time        `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt"`
	DurationMs int64             `json:"durationMs"`
	Counts     map[string]int    `json:"counts"`
	Errors     map[string]int    `json:"errors"`
	Input      map[string]string `json:"input"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}

// ManifestWriter accumulates item counts, error counts and timing for a run
// and writes a single manifest file at completion. Counts are monotonically
// additive; Save is intended to be called exactly once per run.
type ManifestWriter struct {
	mu        sync.Mutex
	root      string
	runID     string
	layer     string
	input     map[string]string
	counts    map[string]int
	errors    map[string]int
	artifacts map[string]string
	start     *time.Time
	end       *time.Time
}

// NewManifestWriter creates a writer for one run. input is the configuration
// snapshot echoed back into the manifest for later inspection.
func NewManifestWriter(root, runID, layer string, input map[string]string) *ManifestWriter {
	return &ManifestWriter{
		root:      root,
		runID:     runID,
		layer:     layer,
		input:     input,
		counts:    make(map[string]int),
		errors:    make(map[string]int),
		artifacts: make(map[string]string),
	}
}

// Start records the run start timestamp.
func (w *ManifestWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now().UTC()
	w.start = &now
}

// Finish records the run end timestamp.
func (w *ManifestWriter) Finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now().UTC()
	w.end = &now
}

// RecordItem adds count under a free-form label, e.g. "reviews:620".
func (w *ManifestWriter) RecordItem(label string, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[label] += count
}

// RecordError increments the counter for an error category.
func (w *ManifestWriter) RecordError(kind string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors[kind] += 1
}

// AddArtifact records a named auxiliary artifact path (log, catalog, ...).
func (w *ManifestWriter) AddArtifact(name, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.artifacts[name] = path
}

// Snapshot returns a copy of the manifest as it stands.
func (w *ManifestWriter) Snapshot() Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *ManifestWriter) snapshotLocked() Manifest {
	m := Manifest{
		RunID:      w.runID,
		Layer:      w.layer,
		StartedAt:  w.start,
		FinishedAt: w.end,
		Counts:     make(map[string]int, len(w.counts)),
		Errors:     make(map[string]int, len(w.errors)),
		Input:      w.input,
	}
	if w.start != nil && w.end != nil {
		m.DurationMs = w.end.Sub(*w.start).Milliseconds()
	}
	for k, v := range w.counts {
		m.Counts[k] = v
	}
	for k, v := range w.errors {
		m.Errors[k] = v
	}
	if len(w.artifacts) > 0 {
		m.Artifacts = make(map[string]string, len(w.artifacts))
		for k, v := range w.artifacts {
			m.Artifacts[k] = v
		}
	}
	return m
}

// Save writes the manifest JSON. A manifest is written even for a run with
// zero successes so failure causes stay inspectable.
func (w *ManifestWriter) Save() error {
	w.mu.Lock()
	m := w.snapshotLocked()
	w.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := ManifestPath(w.root, w.runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
