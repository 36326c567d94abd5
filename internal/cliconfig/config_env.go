package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (BIRDREC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("transform", env("TRANSFORM"), &cfg.Transform)
	s.setStringsFromString("datasets", env("DATASETS"), &cfg.Datasets)

	if err := s.setIntFromString("nseqs", env("NSEQS"), &cfg.NSeqs); err != nil {
		return err
	}
	if err := s.setFloatFromString("prop-train", env("PROP_TRAIN"), &cfg.PropTrain); err != nil {
		return err
	}
	if err := s.setInt64FromString("seed", env("SEED"), &cfg.Seed); err != nil {
		return err
	}
	if err := s.setIntFromString("resample-rate", env("RESAMPLE_RATE"), &cfg.ResampleRate); err != nil {
		return err
	}
	if err := s.setIntFromString("batch-size", env("BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("steps", env("STEPS"), &cfg.Steps); err != nil {
		return err
	}
	if err := s.setIntFromString("prefetch", env("PREFETCH"), &cfg.Prefetch); err != nil {
		return err
	}
	if err := s.setIntFromString("shuffle-buffer", env("SHUFFLE_BUFFER"), &cfg.ShuffleBuffer); err != nil {
		return err
	}

	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("eval-timeout", env("EVAL_TIMEOUT"), &cfg.EvalTimeout); err != nil {
		return err
	}

	s.setBoolFromString("progress", env("PROGRESS"), &cfg.Progress)
	s.setBoolFromString("augment", env("AUGMENT"), &cfg.Augment)
	s.setBoolFromString("threshold", env("THRESHOLD"), &cfg.Threshold)

	return nil
}
