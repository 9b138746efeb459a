package lake_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/gamesearch/internal/lake"
)

func TestManifestCountsAreAdditive(t *testing.T) {
	w := lake.NewManifestWriter(t.TempDir(), "run-1", "bronze", nil)

	w.RecordItem("reviews:620", 100)
	w.RecordItem("reviews:620", 50)
	w.RecordError("throttled")
	w.RecordError("throttled")
	w.RecordError("malformed")

	m := w.Snapshot()
	assert.Equal(t, 150, m.Counts["reviews:620"])
	assert.Equal(t, 2, m.Errors["throttled"])
	assert.Equal(t, 1, m.Errors["malformed"])
}

func TestManifestSaveWritesInspectableRecord(t *testing.T) {
	root := t.TempDir()
	input := map[string]string{"sample": "25"}
	w := lake.NewManifestWriter(root, "run-2", "bronze", input)

	w.Start()
	w.RecordItem("items:succeeded", 1)
	w.AddArtifact("log", "/tmp/run.log")
	w.Finish()
	require.NoError(t, w.Save())

	data, err := os.ReadFile(lake.ManifestPath(root, "run-2"))
	require.NoError(t, err, "manifest file should exist after Save")

	var m lake.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "run-2", m.RunID)
	assert.Equal(t, "bronze", m.Layer)
	assert.Equal(t, 1, m.Counts["items:succeeded"])
	assert.Equal(t, "25", m.Input["sample"])
	assert.Equal(t, "/tmp/run.log", m.Artifacts["log"])
	assert.NotNil(t, m.StartedAt)
	assert.NotNil(t, m.FinishedAt)
}

func TestManifestSavedEvenWithZeroSuccesses(t *testing.T) {
	root := t.TempDir()
	w := lake.NewManifestWriter(root, "run-3", "bronze", nil)

	w.Start()
	w.RecordError("catalog")
	w.Finish()
	require.NoError(t, w.Save())

	var m lake.Manifest
	data, err := os.ReadFile(lake.ManifestPath(root, "run-3"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, 1, m.Errors["catalog"], "failure causes stay inspectable after the fact")
}
