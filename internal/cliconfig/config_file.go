package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`

	NSeqs        int      `toml:"nseqs"`
	Transform    string   `toml:"transform"`
	PropTrain    *float64 `toml:"prop_train"`
	Seed         *int64   `toml:"seed"`
	Progress     *bool    `toml:"progress"`
	Datasets     []string `toml:"datasets"`
	ResampleRate int      `toml:"resample_rate"`

	BatchSize     int    `toml:"batch_size"`
	Augment       *bool  `toml:"augment"`
	Threshold     *bool  `toml:"threshold"`
	Steps         int    `toml:"steps"`
	PollInterval  string `toml:"poll_interval"`
	EvalTimeout   string `toml:"eval_timeout"`
	Prefetch      int    `toml:"prefetch"`
	ShuffleBuffer int    `toml:"shuffle_buffer"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.birdrec/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".birdrec", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setInt("nseqs", fc.NSeqs, &cfg.NSeqs)
	s.setString("transform", fc.Transform, &cfg.Transform)
	s.setFloat("prop-train", fc.PropTrain, &cfg.PropTrain)
	s.setInt64("seed", fc.Seed, &cfg.Seed)
	s.setBool("progress", fc.Progress, &cfg.Progress)
	s.setStrings("datasets", fc.Datasets, &cfg.Datasets)
	s.setInt("resample-rate", fc.ResampleRate, &cfg.ResampleRate)

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setBool("augment", fc.Augment, &cfg.Augment)
	s.setBool("threshold", fc.Threshold, &cfg.Threshold)
	s.setInt("steps", fc.Steps, &cfg.Steps)
	s.setInt("prefetch", fc.Prefetch, &cfg.Prefetch)
	s.setInt("shuffle-buffer", fc.ShuffleBuffer, &cfg.ShuffleBuffer)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("eval-timeout", fc.EvalTimeout, &cfg.EvalTimeout); err != nil {
		return err
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
