package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/birdrec/internal/domain"
)

const stateFileName = "eval_status.json"

// EvalStateFile implements ports.EvalStateRepository using a JSON file
// next to the checkpoint manifest.
type EvalStateFile struct {
	dir string
}

// NewEvalStateFile creates an EvalStateFile for the given model directory.
func NewEvalStateFile(dir string) *EvalStateFile {
	return &EvalStateFile{dir: dir}
}

// Load retrieves the last saved state from disk.
// Returns an empty state and nil error if no state file exists.
func (r *EvalStateFile) Load(ctx context.Context) (domain.EvalState, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.EvalState{}, nil
		}
		return domain.EvalState{}, err
	}

	var state domain.EvalState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.EvalState{}, err
	}
	return state, nil
}

// Save persists the state atomically (write to temp file, then rename).
func (r *EvalStateFile) Save(ctx context.Context, state domain.EvalState) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the state file.
func (r *EvalStateFile) Path() string {
	return filepath.Join(r.dir, stateFileName)
}
