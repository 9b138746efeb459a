package lake

import (
	"encoding/json"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
)

// ItemState is the per-item progress marker for a run.
type ItemState int

const (
	// StatePending means the item has not been picked up yet.
	StatePending ItemState = 0
	// StateStarted means a worker has begun processing the item.
	StateStarted ItemState = 1
	// StateSucceeded means every artifact for the item was written.
	// Succeeded is terminal; re-marking it is a no-op.
	StateSucceeded ItemState = 2
)

// RunStateTracker tracks per-item states for one run and yields pending
// items in random-without-replacement order. When a state path is supplied,
// every transition is flushed via write-temp-then-rename so a crash mid-write
// never corrupts the file. A corrupt or unreadable state file is treated as
// no prior progress.
type RunStateTracker struct {
	mu    sync.Mutex
	state map[int64]ItemState
	path  string // empty means in-memory only
}

// NewRunStateTracker creates a tracker. path may be empty for in-memory
// tracking; otherwise prior state is loaded from it to support resume.
func NewRunStateTracker(path string) *RunStateTracker {
	t := &RunStateTracker{
		state: make(map[int64]ItemState),
		path:  path,
	}
	if path != "" {
		t.load()
	}
	return t
}

func (t *RunStateTracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	loaded := make(map[int64]ItemState)
	if err := json.Unmarshal(data, &loaded); err != nil {
		// Corrupt state file: start from scratch rather than fail the run.
		return
	}
	t.state = loaded
}

// MarkStarted records that a worker picked up the item.
func (t *RunStateTracker) MarkStarted(itemID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state[itemID] == StateSucceeded {
		return nil
	}
	t.state[itemID] = StateStarted
	return t.persistLocked()
}

// MarkSucceeded records terminal completion for the item. Marking an
// already-succeeded item again is a no-op, never an error.
func (t *RunStateTracker) MarkSucceeded(itemID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state[itemID] == StateSucceeded {
		return nil
	}
	t.state[itemID] = StateSucceeded
	return t.persistLocked()
}

// State reports the current state of an item.
func (t *RunStateTracker) State(itemID int64) ItemState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[itemID]
}

// PendingShuffled yields every item of allItems not yet marked Succeeded,
// each exactly once, in a freshly randomized order. Items that transition
// to Succeeded while iterating are skipped at yield time.
func (t *RunStateTracker) PendingShuffled(allItems []int64) iter.Seq[int64] {
	t.mu.Lock()
	pending := make([]int64, 0, len(allItems))
	seen := make(map[int64]struct{}, len(allItems))
	for _, id := range allItems {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t.state[id] != StateSucceeded {
			pending = append(pending, id)
		}
	}
	t.mu.Unlock()

	rand.Shuffle(len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	})

	return func(yield func(int64) bool) {
		for _, id := range pending {
			if t.State(id) == StateSucceeded {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// persistLocked writes the state map atomically. Caller holds t.mu, which
// also serializes the temp-write+rename against concurrent workers.
func (t *RunStateTracker) persistLocked() error {
	if t.path == "" {
		return nil
	}

	data, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create runstate dir: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replace run state: %w", err)
	}
	return nil
}
