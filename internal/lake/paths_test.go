package lake_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/gamesearch/internal/lake"
)

func TestPathDerivationIsPure(t *testing.T) {
	date := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	first := lake.ReviewsPagePath("/data", date, "run-1", 620, 3)
	second := lake.ReviewsPagePath("/data", date, "run-1", 620, 3)
	assert.Equal(t, first, second, "replaying a run must re-derive the same path")
}

func TestPathLayout(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("/data", "bronze", "reviews", "2026", "01", "05", "run-1", "620", "page=2.json.gz"),
		lake.ReviewsPagePath("/data", date, "run-1", 620, 2))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "store", "2026", "01", "05", "run-1", "620.json.gz"),
		lake.StoreSnapshotPath("/data", date, "run-1", 620))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "news", "2026", "01", "05", "run-1", "620", "page=1.json.gz"),
		lake.NewsPagePath("/data", date, "run-1", 620, 1))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "manifests", "run-1.manifest.json"),
		lake.ManifestPath("/data", "run-1"))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "runstate", "run-1.json"),
		lake.RunStatePath("/data", "run-1"))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "catalog", "2026", "01", "05", "run-1", "catalog.json.gz"),
		lake.CatalogPath("/data", date, "run-1"))
	assert.Equal(t,
		filepath.Join("/data", "bronze", "logs", "2026", "01", "05", "run-1", "run.log"),
		lake.RunLogPath("/data", date, "run-1"))
}

func TestGzipJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artifact.json.gz")

	in := map[string]any{"success": true, "cursor": "abc"}
	assert.NoError(t, lake.WriteGzipJSON(path, in))

	var out map[string]any
	assert.NoError(t, lake.ReadGzipJSON(path, &out))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "abc", out["cursor"])
}
