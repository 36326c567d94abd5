// Package dataconfig loads the data configuration consumed by "birdrec run".
package dataconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bft-labs/birdrec/internal/domain"
)

// Config describes where the records are and how wide their frequency
// axis is.
type Config struct {
	// TFRPath is the record prefix, e.g. /data/birds for
	// /data/birds_train.tfrecords.
	TFRPath    string `toml:"tfr_path" yaml:"tfr_path"`
	MelFreqs   *int   `toml:"mel_freqs" yaml:"mel_freqs"`
	WindowSize *int   `toml:"window_size" yaml:"window_size"`

	DataDir  string   `toml:"data_dir" yaml:"data_dir"`
	Datasets []string `toml:"datasets" yaml:"datasets"`
	DevInds  string   `toml:"dev_inds" yaml:"dev_inds"`
}

// Load reads a TOML file, or YAML when the extension is .yaml or .yml.
func Load(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read data config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &c)
	default:
		err = toml.Unmarshal(data, &c)
	}
	if err != nil {
		return c, fmt.Errorf("%w: parse data config %s: %v", domain.ErrConfig, path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("data config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the required keys.
func (c Config) Validate() error {
	if c.TFRPath == "" {
		return &KeyError{Key: "tfr_path"}
	}
	if c.MelFreqs != nil && *c.MelFreqs <= 0 {
		return fmt.Errorf("%w: mel_freqs must be positive, got %d", domain.ErrConfig, *c.MelFreqs)
	}
	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("%w: window_size must be positive, got %d", domain.ErrConfig, *c.WindowSize)
	}
	return nil
}

// FreqBins returns the frequency axis size of the records: mel_freqs when
// set, else window_size/2+1, else 1 for raw signals.
func (c Config) FreqBins() int {
	switch {
	case c.MelFreqs != nil:
		return *c.MelFreqs
	case c.WindowSize != nil:
		return *c.WindowSize/2 + 1
	default:
		return 1
	}
}

// KeyError reports a missing required key. It matches domain.ErrConfig.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("missing required key %q", e.Key)
}

func (e *KeyError) Is(target error) bool { return target == domain.ErrConfig }
