// Package lake provides the partitioned bronze-layer artifact store:
// deterministic path derivation, gzip JSON artifact writing, run manifests
// and resumable run state.
package lake

import (
	"fmt"
	"path/filepath"
	"time"
)

// Path helpers are pure: replaying a run with the same root, date, run id
// and item id derives the same path, so resumed runs overwrite rather than
// duplicate.

func datePart(date time.Time) string {
	return filepath.Join(
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		fmt.Sprintf("%02d", date.Day()),
	)
}

// ReviewsPagePath returns the artifact path for one page of reviews.
func ReviewsPagePath(root string, date time.Time, runID string, itemID int64, page int) string {
	return filepath.Join(root, "bronze", "reviews", datePart(date), runID,
		fmt.Sprintf("%d", itemID), fmt.Sprintf("page=%d.json.gz", page))
}

// StoreSnapshotPath returns the artifact path for a store details snapshot.
func StoreSnapshotPath(root string, date time.Time, runID string, itemID int64) string {
	return filepath.Join(root, "bronze", "store", datePart(date), runID,
		fmt.Sprintf("%d.json.gz", itemID))
}

// NewsPagePath returns the artifact path for one page of news items.
func NewsPagePath(root string, date time.Time, runID string, itemID int64, page int) string {
	return filepath.Join(root, "bronze", "news", datePart(date), runID,
		fmt.Sprintf("%d", itemID), fmt.Sprintf("page=%d.json.gz", page))
}

// CatalogPath returns the artifact path for the sampled work list of a run.
func CatalogPath(root string, date time.Time, runID string) string {
	return filepath.Join(root, "bronze", "catalog", datePart(date), runID, "catalog.json.gz")
}

// ManifestPath returns the path of the run manifest.
func ManifestPath(root, runID string) string {
	return filepath.Join(root, "bronze", "manifests", runID+".manifest.json")
}

// RunStatePath returns the path of the per-item run state file.
func RunStatePath(root, runID string) string {
	return filepath.Join(root, "bronze", "runstate", runID+".json")
}

// RunLogPath returns the path of the structured run log.
func RunLogPath(root string, date time.Time, runID string) string {
	return filepath.Join(root, "bronze", "logs", datePart(date), runID, "run.log")
}
