package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// CheckpointManager saves the cursor of an interrupted run so it can be
// resumed later. There is one checkpoint per origin.
type CheckpointManager struct {
	checkpointDir string
}

// Checkpoint is the serializable cursor of a run.
type Checkpoint struct {
	Timestamp  time.Time    `json:"timestamp"`
	Origin     string       `json:"origin"`
	Policy     types.Policy `json:"policy"`
	NextURL    string       `json:"next_url"`
	LastURL    string       `json:"last_url,omitempty"`
	Pages      int          `json:"pages"`
	Records    int          `json:"records"`
	LatestDate time.Time    `json:"latest_date,omitzero"`
	LastDiff   int          `json:"last_diff"`
	Reason     string       `json:"reason,omitempty"`
}

// NewCheckpointManager creates a manager writing under dir.
func NewCheckpointManager(dir string) *CheckpointManager {
	if dir == "" {
		dir = ".commentgoat_checkpoints"
	}
	return &CheckpointManager{checkpointDir: dir}
}

func newCheckpoint(state *RunState, now time.Time) *Checkpoint {
	cp := &Checkpoint{
		Timestamp:  now,
		Origin:     state.Origin,
		Policy:     state.Policy,
		NextURL:    state.CurrentURL,
		LastURL:    state.LastURL,
		Pages:      state.Pages,
		Records:    state.Records,
		LatestDate: state.LatestDate,
		LastDiff:   state.LastDiff,
	}
	if state.Err != nil {
		cp.Reason = state.Err.Error()
	}
	return cp
}

// restore carries the counters of cp into a fresh run state.
func (cp *Checkpoint) restore(state *RunState) {
	state.Pages = cp.Pages
	state.Records = cp.Records
	state.LatestDate = cp.LatestDate
	state.LastDiff = cp.LastDiff
	state.LastURL = cp.LastURL
}

func (cm *CheckpointManager) path(origin string) string {
	sum := sha1.Sum([]byte(origin))
	return filepath.Join(cm.checkpointDir, hex.EncodeToString(sum[:8])+".json")
}

// Save writes cp, replacing any previous checkpoint of the same origin.
func (cm *CheckpointManager) Save(cp *Checkpoint) error {
	if err := os.MkdirAll(cm.checkpointDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	finalPath := cm.path(cp.Origin)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cp); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// Load reads the checkpoint of origin. It returns nil, nil when there is none.
func (cm *CheckpointManager) Load(origin string) (*Checkpoint, error) {
	f, err := os.Open(cm.path(origin))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var cp Checkpoint
	if err := json.NewDecoder(f).Decode(&cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// HasCheckpoint returns true if origin has a checkpoint.
func (cm *CheckpointManager) HasCheckpoint(origin string) bool {
	_, err := os.Stat(cm.path(origin))
	return err == nil
}

// Clean removes the checkpoint of origin.
func (cm *CheckpointManager) Clean(origin string) error {
	if err := os.Remove(cm.path(origin)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
