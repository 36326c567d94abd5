package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/birdrec/pkg/dataset"
	"github.com/bft-labs/birdrec/pkg/stream"
	"github.com/bft-labs/birdrec/pkg/transform"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "BIRDREC_"

// DefaultTrainSteps is the number of batches a train run consumes.
const DefaultTrainSteps = 20000

// Config holds CLI configuration for birdrec.
type Config struct {
	LogLevel    string
	MetricsAddr string

	// make-records
	NSeqs        int
	Transform    string
	PropTrain    float64
	Seed         int64
	Progress     bool
	Datasets     []string
	ResampleRate int

	// run
	BatchSize     int
	Augment       bool
	Threshold     bool
	Steps         int
	PollInterval  time.Duration
	EvalTimeout   time.Duration
	Prefetch      int
	ShuffleBuffer int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		Transform:     transform.Raw.String(),
		PropTrain:     dataset.DefaultPropTrain,
		Datasets:      append([]string(nil), dataset.DefaultDatasets...),
		BatchSize:     stream.DefaultBatchSize,
		Steps:         DefaultTrainSteps,
		PollInterval:  time.Second,
		Prefetch:      stream.DefaultPrefetch,
		ShuffleBuffer: stream.DefaultShuffleBuffer,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := transform.ParseKind(c.Transform); err != nil {
		return err
	}
	if c.PropTrain < 0 || c.PropTrain > 1 {
		return fmt.Errorf("prop-train must be in [0, 1], got %v", c.PropTrain)
	}
	if c.NSeqs < 0 {
		return fmt.Errorf("nseqs must not be negative")
	}
	if len(c.Datasets) == 0 {
		return fmt.Errorf("at least one dataset is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Prefetch <= 0 {
		return fmt.Errorf("prefetch must be positive")
	}
	if c.EvalTimeout < 0 {
		return fmt.Errorf("eval timeout must not be negative")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value from a pointer if not nil and flag not changed.
func (s *configSetter) setInt64(flag string, value *int64, dst *int64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value from a pointer if not nil and flag not
// changed. Zero is a meaningful proportion, so presence is what counts.
func (s *configSetter) setFloat(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setStringsFromString splits a comma-separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
